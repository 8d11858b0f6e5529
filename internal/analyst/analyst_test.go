package analyst

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/indicators"
)

func testCandle(symbol domain.Symbol, open time.Time, price float64) domain.Candle {
	p := decimal.NewFromFloat(price)
	return domain.Candle{
		Symbol:    symbol,
		Timeframe: domain.Timeframe1h,
		OpenTime:  open,
		CloseTime: open.Add(time.Hour),
		Open:      p,
		High:      p.Add(decimal.NewFromFloat(0.5)),
		Low:       p.Sub(decimal.NewFromFloat(0.5)),
		Close:     p,
		Volume:    decimal.NewFromInt(10),
		Trades:    10,
		Sealed:    true,
	}
}

func newTestAnalyst() (*Analyst, chan domain.TradeProposal) {
	proposals := make(chan domain.TradeProposal, 16)
	a := New(proposals, indicators.DefaultConfig(), 5, zerolog.Nop())
	return a, proposals
}

func TestOnCandleClosedDoesNothingBeforeWarmup(t *testing.T) {
	a, _ := newTestAnalyst()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		a.OnCandleClosed(context.Background(), testCandle("BTC/USD", base.Add(time.Duration(i)*time.Hour), 100), domain.Position{})
	}

	sc := a.contextFor("BTC/USD")
	assert.Len(t, sc.CandleWindow, 10)
	assert.True(t, sc.LastCandleOpen.IsZero(), "no candle should be marked processed until the 20-bar warmup is satisfied")
}

func TestOnCandleClosedMarksCandleOpenOnceWarmedUp(t *testing.T) {
	a, _ := newTestAnalyst()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var lastOpen time.Time
	for i := 0; i < 25; i++ {
		lastOpen = base.Add(time.Duration(i) * time.Hour)
		a.OnCandleClosed(context.Background(), testCandle("BTC/USD", lastOpen, 100+float64(i%3)), domain.Position{})
	}

	sc := a.contextFor("BTC/USD")
	assert.True(t, sc.LastCandleOpen.Equal(lastOpen))
	assert.NotZero(t, sc.LastRegime)
}

func TestOnCandleClosedIgnoresRepeatOfSameOpenTime(t *testing.T) {
	a, _ := newTestAnalyst()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		a.OnCandleClosed(context.Background(), testCandle("BTC/USD", base.Add(time.Duration(i)*time.Hour), 100), domain.Position{})
	}
	sc := a.contextFor("BTC/USD")
	windowLen := len(sc.CandleWindow)

	repeat := testCandle("BTC/USD", base.Add(24*time.Hour), 999)
	a.OnCandleClosed(context.Background(), repeat, domain.Position{})

	assert.Len(t, sc.CandleWindow, windowLen, "a candle already processed for this open time must not be pushed again")
}

func TestOnCandleClosedSkipsWhileInFlight(t *testing.T) {
	a, _ := newTestAnalyst()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		a.OnCandleClosed(context.Background(), testCandle("BTC/USD", base.Add(time.Duration(i)*time.Hour), 100), domain.Position{})
	}
	sc := a.contextFor("BTC/USD")
	sc.InFlight = true
	windowLen := len(sc.CandleWindow)

	a.OnCandleClosed(context.Background(), testCandle("BTC/USD", base.Add(30*time.Hour), 100), domain.Position{})

	assert.Len(t, sc.CandleWindow, windowLen, "no new candle should be admitted while a proposal is in flight for this symbol")
}

func TestReleaseInFlightClearsStateAndQuiescentReportsTrue(t *testing.T) {
	a, _ := newTestAnalyst()
	sc := a.contextFor("BTC/USD")
	sc.InFlight = true
	assert.False(t, a.Quiescent())

	a.ReleaseInFlight("BTC/USD")
	assert.False(t, sc.InFlight)
	assert.True(t, a.Quiescent())
}

func TestQuiescentFalseWhileAnySymbolInFlight(t *testing.T) {
	a, _ := newTestAnalyst()
	a.contextFor("BTC/USD").InFlight = false
	a.contextFor("ETH/USD").InFlight = true
	assert.False(t, a.Quiescent())
}

func TestOnHigherTimeframeCandleBoundsWindowSize(t *testing.T) {
	a, _ := newTestAnalyst()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < TimeframeViewWindow+10; i++ {
		c := testCandle("BTC/USD", base.Add(time.Duration(i)*4*time.Hour), 100)
		c.Timeframe = domain.Timeframe4h
		a.OnHigherTimeframeCandle(c)
	}

	sc := a.contextFor("BTC/USD")
	view := sc.TimeframeViews[domain.Timeframe4h]
	require.Len(t, view, TimeframeViewWindow)
	assert.True(t, view[0].OpenTime.Equal(base.Add(10*4*time.Hour)), "the oldest entries beyond the window bound should be evicted")
}

func TestSetRiskScoreUpdatesActiveTier(t *testing.T) {
	a, _ := newTestAnalyst()
	a.SetRiskScore(2)
	a.mu.Lock()
	score := a.riskScore
	a.mu.Unlock()
	assert.Equal(t, 2, score)
}
