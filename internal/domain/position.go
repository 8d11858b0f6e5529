package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is a symbol's current holding. Quantity is signed: positive
// for long, negative for short. Quantity == 0 means closed; a position
// that re-enters after closing gets a fresh OpenedAt.
type Position struct {
	Symbol        Symbol
	Quantity      decimal.Decimal
	AvgEntryPrice decimal.Decimal
	OpenedAt      time.Time
	TrailingStop  *TrailingStopState
}

// IsOpen reports whether the position currently holds any quantity.
func (p Position) IsOpen() bool {
	return !p.Quantity.IsZero()
}

// IsLong reports whether the position is net long.
func (p Position) IsLong() bool {
	return p.Quantity.IsPositive()
}

// MarketValue returns quantity * lastPrice (signed).
func (p Position) MarketValue(lastPrice decimal.Decimal) decimal.Decimal {
	return p.Quantity.Mul(lastPrice)
}

// UnrealizedPnL returns the mark-to-market P&L versus AvgEntryPrice.
func (p Position) UnrealizedPnL(lastPrice decimal.Decimal) decimal.Decimal {
	return p.Quantity.Mul(lastPrice.Sub(p.AvgEntryPrice))
}

// TrailingStopState tracks a trailing stop that only ever tightens
// toward the current price, never loosens.
type TrailingStopState struct {
	StopPrice     decimal.Decimal
	ATRMultiplier float64
	HighWaterMark decimal.Decimal // best price seen since open, per direction
}

// Tighten updates the trailing stop given a fresh price and ATR value.
// For a long position the stop only ever moves up; for a short it only
// ever moves down. It never loosens.
func (t *TrailingStopState) Tighten(isLong bool, price, atr decimal.Decimal) {
	dist := decimal.NewFromFloat(t.ATRMultiplier).Mul(atr)
	if isLong {
		if price.GreaterThan(t.HighWaterMark) {
			t.HighWaterMark = price
		}
		candidate := t.HighWaterMark.Sub(dist)
		if candidate.GreaterThan(t.StopPrice) {
			t.StopPrice = candidate
		}
		return
	}
	if t.HighWaterMark.IsZero() || price.LessThan(t.HighWaterMark) {
		t.HighWaterMark = price
	}
	candidate := t.HighWaterMark.Add(dist)
	if t.StopPrice.IsZero() || candidate.LessThan(t.StopPrice) {
		t.StopPrice = candidate
	}
}

// Triggered reports whether the current price has breached the stop.
func (t TrailingStopState) Triggered(isLong bool, price decimal.Decimal) bool {
	if t.StopPrice.IsZero() {
		return false
	}
	if isLong {
		return price.LessThanOrEqual(t.StopPrice)
	}
	return price.GreaterThanOrEqual(t.StopPrice)
}
