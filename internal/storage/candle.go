package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

// CandleRow is the persisted shape of one sealed candle. Money fields
// are stored as TEXT (decimal string) per the persisted state layout;
// only sealed bars are stored, one row per symbol, timeframe and open time.
type CandleRow struct {
	Symbol    string
	Timeframe string
	OpenTime  time.Time
	CloseTime time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// FromDomainCandle converts a sealed domain.Candle into its row shape.
func FromDomainCandle(c domain.Candle) CandleRow {
	return CandleRow{
		Symbol:    c.Symbol.String(),
		Timeframe: string(c.Timeframe),
		OpenTime:  c.OpenTime,
		CloseTime: c.CloseTime,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	}
}

// ToDomainCandle reconstructs a domain.Candle from a persisted row.
func (r CandleRow) ToDomainCandle() domain.Candle {
	return domain.Candle{
		Symbol:    domain.Symbol(r.Symbol),
		Timeframe: domain.Timeframe(r.Timeframe),
		OpenTime:  r.OpenTime,
		CloseTime: r.CloseTime,
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
		Sealed:    true,
	}
}
