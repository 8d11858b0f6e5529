package mock

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	return New(Config{
		Symbols:        []domain.Symbol{"BTC/USD"},
		InitialCash:    decimal.NewFromInt(10000),
		CommissionRate: decimal.NewFromFloat(0.001),
		SlippageBps:    5,
		Volatility:     0.001,
		BarInterval:    time.Minute,
		Seed:           7,
	}, zerolog.Nop())
}

func TestListAvailableSymbolsReturnsConfiguredUniverse(t *testing.T) {
	b := newTestBroker(t)
	syms, err := b.ListAvailableSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Symbol{"BTC/USD"}, syms)
}

func TestHistoricalProducesContinuousCandleSeries(t *testing.T) {
	b := newTestBroker(t)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(10 * time.Hour)

	candles, err := b.Historical(context.Background(), "BTC/USD", domain.Timeframe1h, from, to)
	require.NoError(t, err)
	require.Len(t, candles, 10)

	for i, c := range candles {
		require.NoError(t, c.Validate())
		if i > 0 {
			assert.True(t, c.Open.Equal(candles[i-1].Close), "each candle should open at the previous candle's close")
		}
	}
}

func TestHistoricalIsDeterministicForSameSeedAndSymbol(t *testing.T) {
	b1 := newTestBroker(t)
	b2 := newTestBroker(t)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(5 * time.Hour)

	c1, err := b1.Historical(context.Background(), "BTC/USD", domain.Timeframe1h, from, to)
	require.NoError(t, err)
	c2, err := b2.Historical(context.Background(), "BTC/USD", domain.Timeframe1h, from, to)
	require.NoError(t, err)

	require.Equal(t, len(c1), len(c2))
	for i := range c1 {
		assert.True(t, c1[i].Close.Equal(c2[i].Close))
	}
}

func TestHistoricalRejectsUnsupportedTimeframe(t *testing.T) {
	b := newTestBroker(t)
	_, err := b.Historical(context.Background(), "BTC/USD", domain.Timeframe(""), time.Now(), time.Now().Add(time.Hour))
	assert.Error(t, err)
}

func TestSetLastPriceOverridesMark(t *testing.T) {
	b := newTestBroker(t)
	b.SetLastPrice("BTC/USD", decimal.NewFromInt(500))

	order := domain.Order{
		ID:       domain.NewOrderID(),
		Symbol:   "BTC/USD",
		Side:     domain.SideBuy,
		Kind:     domain.OrderMarket,
		Quantity: decimal.NewFromInt(1),
	}
	_, err := b.Submit(context.Background(), order)
	require.NoError(t, err)

	cash, positions, err := b.FetchPortfolio(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.True(t, cash.LessThan(decimal.NewFromInt(10000)))
	assert.True(t, positions[0].AvgEntryPrice.GreaterThan(decimal.NewFromInt(500)), "a buy fill applies positive slippage above the marked price")
}

func TestSubscribeClosesChannelOnContextCancel(t *testing.T) {
	b := newTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	events, err := b.Subscribe(ctx, []domain.Symbol{"BTC/USD"})
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok, "the channel should close once the run-walk goroutine observes ctx.Done")
	case <-time.After(time.Second):
		t.Fatal("expected the subscribe channel to close promptly after cancellation")
	}
}
