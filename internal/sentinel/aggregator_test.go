package sentinel

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

func quoteAt(ts time.Time, price, qty float64) domain.Quote {
	return domain.Quote{
		Symbol:    "BTC/USD",
		Timestamp: ts,
		Price:     decimal.NewFromFloat(price),
		Quantity:  decimal.NewFromFloat(qty),
	}
}

func TestCandleAggregatorBuildsSingleCandleWithinAMinute(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	var sealed []domain.Candle
	agg := NewCandleAggregator(func(c domain.Candle) { sealed = append(sealed, c) })

	agg.OnQuote(quoteAt(base, 100, 1))
	agg.OnQuote(quoteAt(base.Add(10*time.Second), 105, 2))
	agg.OnQuote(quoteAt(base.Add(20*time.Second), 95, 1))

	assert.Empty(t, sealed, "no candle should seal until a quote from the next minute arrives")
}

func TestCandleAggregatorSealsOnMinuteBoundaryCrossing(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	var sealed []domain.Candle
	agg := NewCandleAggregator(func(c domain.Candle) { sealed = append(sealed, c) })

	agg.OnQuote(quoteAt(base, 100, 1))
	agg.OnQuote(quoteAt(base.Add(30*time.Second), 110, 1))
	agg.OnQuote(quoteAt(base.Add(65*time.Second), 90, 1))

	require.Len(t, sealed, 1)
	c := sealed[0]
	assert.True(t, c.Open.Equal(decimal.NewFromInt(100)))
	assert.True(t, c.High.Equal(decimal.NewFromInt(110)))
	assert.True(t, c.Low.Equal(decimal.NewFromInt(100)))
	assert.True(t, c.Close.Equal(decimal.NewFromInt(110)))
	assert.True(t, c.Volume.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, int64(2), c.Trades)
	assert.True(t, c.Sealed)
	assert.Equal(t, domain.Timeframe1m, c.Timeframe)
	assert.True(t, c.OpenTime.Equal(base))
	assert.True(t, c.CloseTime.Equal(base.Add(time.Minute)))
}

func TestCandleAggregatorFlushSealsPartialCandle(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	var sealed []domain.Candle
	agg := NewCandleAggregator(func(c domain.Candle) { sealed = append(sealed, c) })

	agg.OnQuote(quoteAt(base, 100, 1))
	assert.Empty(t, sealed)

	agg.Flush(base.Add(45 * time.Second))
	require.Len(t, sealed, 1)
	assert.True(t, sealed[0].Sealed)
	assert.True(t, sealed[0].Close.Equal(decimal.NewFromInt(100)))
}

func TestCandleAggregatorTracksSeparateSymbolsIndependently(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	var sealed []domain.Candle
	agg := NewCandleAggregator(func(c domain.Candle) { sealed = append(sealed, c) })

	btc := quoteAt(base, 100, 1)
	eth := quoteAt(base, 10, 5)
	eth.Symbol = "ETH/USD"

	agg.OnQuote(btc)
	agg.OnQuote(eth)
	agg.OnQuote(quoteAt(base.Add(65*time.Second), 101, 1))

	require.Len(t, sealed, 1, "only the symbol that rolled into a new minute should seal")
	assert.Equal(t, domain.Symbol("BTC/USD"), sealed[0].Symbol)
}

func candle1m(symbol domain.Symbol, open time.Time, o, h, l, c float64) domain.Candle {
	return domain.Candle{
		Symbol:    symbol,
		Timeframe: domain.Timeframe1m,
		OpenTime:  open,
		CloseTime: open.Add(time.Minute),
		Open:      decimal.NewFromFloat(o),
		High:      decimal.NewFromFloat(h),
		Low:       decimal.NewFromFloat(l),
		Close:     decimal.NewFromFloat(c),
		Volume:    decimal.NewFromInt(1),
		Trades:    1,
		Sealed:    true,
	}
}

func TestTimeframeAggregatorSeals5mAfterFiveOneMinuteBars(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	var sealed []domain.Candle
	tfAgg := NewTimeframeAggregator(func(c domain.Candle) { sealed = append(sealed, c) })

	for i := 0; i < 5; i++ {
		tfAgg.OnSealed1m(candle1m("BTC/USD", base.Add(time.Duration(i)*time.Minute), 100+float64(i), 105+float64(i), 95+float64(i), 100+float64(i)))
	}
	assert.Empty(t, sealed, "a 5m bar should not seal until the 6th one-minute bar arrives")

	tfAgg.OnSealed1m(candle1m("BTC/USD", base.Add(5*time.Minute), 200, 205, 195, 200))

	require.Len(t, sealed, 1)
	five := sealed[0]
	assert.Equal(t, domain.Timeframe5m, five.Timeframe)
	assert.True(t, five.OpenTime.Equal(base))
	assert.True(t, five.Open.Equal(decimal.NewFromInt(100)))
	assert.True(t, five.Close.Equal(decimal.NewFromInt(104)))
	assert.True(t, five.High.GreaterThanOrEqual(decimal.NewFromInt(109)))
}

func TestTimeframeAggregatorPropagatesUpTheChainOnSimultaneousBoundaries(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var sealed []domain.Candle
	tfAgg := NewTimeframeAggregator(func(c domain.Candle) { sealed = append(sealed, c) })

	// Feed a full day of 1m bars (1440 bars) to force every intraday level
	// of the chain (5m, 15m, 1h, 4h) to seal at least once; the 1d bar
	// stays open because no bar of the next day arrives.
	for i := 0; i < 1440; i++ {
		tfAgg.OnSealed1m(candle1m("BTC/USD", base.Add(time.Duration(i)*time.Minute), 100, 101, 99, 100))
	}

	seenTF := map[domain.Timeframe]bool{}
	for _, c := range sealed {
		seenTF[c.Timeframe] = true
	}
	assert.True(t, seenTF[domain.Timeframe5m])
	assert.True(t, seenTF[domain.Timeframe15m])
	assert.True(t, seenTF[domain.Timeframe1h])
	assert.True(t, seenTF[domain.Timeframe4h])
}
