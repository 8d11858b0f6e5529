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

func buyOrder(qty int64) domain.Order {
	return domain.Order{
		ID:       domain.NewOrderID(),
		Symbol:   "BTC/USD",
		Side:     domain.SideBuy,
		Kind:     domain.OrderMarket,
		Quantity: decimal.NewFromInt(qty),
	}
}

func sellOrder(qty int64) domain.Order {
	return domain.Order{
		ID:       domain.NewOrderID(),
		Symbol:   "BTC/USD",
		Side:     domain.SideSell,
		Kind:     domain.OrderMarket,
		Quantity: decimal.NewFromInt(qty),
	}
}

func TestSubmitBuyAppliesSlippageAboveMarkAndDeductsCash(t *testing.T) {
	b := newTestBroker(t)
	b.SetLastPrice("BTC/USD", decimal.NewFromInt(100))

	brokerID, err := b.Submit(context.Background(), buyOrder(1))
	require.NoError(t, err)
	assert.NotEmpty(t, brokerID)

	cash, positions, err := b.FetchPortfolio(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)

	assert.True(t, positions[0].AvgEntryPrice.GreaterThan(decimal.NewFromInt(100)))
	assert.True(t, positions[0].Quantity.Equal(decimal.NewFromInt(1)))
	assert.True(t, cash.LessThan(decimal.NewFromInt(10000)), "cash should shrink by notional plus commission")
}

func TestSubmitSellAppliesSlippageBelowMark(t *testing.T) {
	b := newTestBroker(t)
	b.SetLastPrice("BTC/USD", decimal.NewFromInt(100))

	_, err := b.Submit(context.Background(), sellOrder(1))
	require.NoError(t, err)

	_, positions, err := b.FetchPortfolio(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].AvgEntryPrice.LessThan(decimal.NewFromInt(100)))
	assert.True(t, positions[0].Quantity.Equal(decimal.NewFromInt(-1)))
}

func TestSubmitRejectsBuyExceedingAvailableCash(t *testing.T) {
	b := New(Config{
		Symbols:     []domain.Symbol{"BTC/USD"},
		InitialCash: decimal.NewFromInt(10),
		BarInterval: time.Minute,
		Seed:        1,
	}, zerolog.Nop())
	b.SetLastPrice("BTC/USD", decimal.NewFromInt(100))

	_, err := b.Submit(context.Background(), buyOrder(5))
	assert.Error(t, err)
}

func TestSubmitRejectsUnknownSymbol(t *testing.T) {
	b := newTestBroker(t)
	order := buyOrder(1)
	order.Symbol = "ETH/USD"
	_, err := b.Submit(context.Background(), order)
	assert.Error(t, err)
}

func TestSubmitPublishesFillOnAccountEvents(t *testing.T) {
	b := newTestBroker(t)
	b.SetLastPrice("BTC/USD", decimal.NewFromInt(100))

	order := buyOrder(2)
	brokerID, err := b.Submit(context.Background(), order)
	require.NoError(t, err)

	events, err := b.AccountEvents(context.Background())
	require.NoError(t, err)

	select {
	case evt := <-events:
		assert.Equal(t, domain.AccountEventFill, evt.Type)
		assert.Equal(t, order.ID, evt.OrderID)
		assert.Equal(t, brokerID, evt.BrokerID)
		assert.True(t, evt.FillQty.Equal(decimal.NewFromInt(2)))
		assert.True(t, evt.CashDelta.IsNegative(), "a buy fill should debit cash")
	case <-time.After(time.Second):
		t.Fatal("expected a fill event on the account stream")
	}
}

func TestApplyPositionDeltaAveragesEntryPriceOnSameDirectionAdd(t *testing.T) {
	b := newTestBroker(t)
	b.SetLastPrice("BTC/USD", decimal.NewFromInt(100))
	_, err := b.Submit(context.Background(), buyOrder(1))
	require.NoError(t, err)

	b.SetLastPrice("BTC/USD", decimal.NewFromInt(200))
	_, err = b.Submit(context.Background(), buyOrder(1))
	require.NoError(t, err)

	_, positions, err := b.FetchPortfolio(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].Quantity.Equal(decimal.NewFromInt(2)))
	// average entry should land strictly between the two slipped fill prices
	assert.True(t, positions[0].AvgEntryPrice.GreaterThan(decimal.NewFromInt(100)))
	assert.True(t, positions[0].AvgEntryPrice.LessThan(decimal.NewFromInt(200)))
}

func TestApplyPositionDeltaClosesPositionOnOffsettingFill(t *testing.T) {
	b := newTestBroker(t)
	b.SetLastPrice("BTC/USD", decimal.NewFromInt(100))
	_, err := b.Submit(context.Background(), buyOrder(1))
	require.NoError(t, err)

	_, err = b.Submit(context.Background(), sellOrder(1))
	require.NoError(t, err)

	_, positions, err := b.FetchPortfolio(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions, "an exactly offsetting fill should close the position")
}

func TestApplyPositionDeltaFlipsDirectionOnOversizedOffset(t *testing.T) {
	b := newTestBroker(t)
	b.SetLastPrice("BTC/USD", decimal.NewFromInt(100))
	_, err := b.Submit(context.Background(), buyOrder(1))
	require.NoError(t, err)

	_, err = b.Submit(context.Background(), sellOrder(3))
	require.NoError(t, err)

	_, positions, err := b.FetchPortfolio(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].Quantity.Equal(decimal.NewFromInt(-2)), "selling through a long position should flip it short by the remainder")
}

func TestCancelTerminalOrderFails(t *testing.T) {
	b := newTestBroker(t)
	b.SetLastPrice("BTC/USD", decimal.NewFromInt(100))
	brokerID, err := b.Submit(context.Background(), buyOrder(1))
	require.NoError(t, err)

	err = b.Cancel(context.Background(), brokerID, "BTC/USD")
	assert.Error(t, err, "the mock venue fills synchronously, so every order is already terminal by the time Cancel runs")
}

func TestCancelUnknownBrokerIDFails(t *testing.T) {
	b := newTestBroker(t)
	err := b.Cancel(context.Background(), "nonexistent", "BTC/USD")
	assert.Error(t, err)
}

func TestFetchOpenOrdersAlwaysEmpty(t *testing.T) {
	b := newTestBroker(t)
	b.SetLastPrice("BTC/USD", decimal.NewFromInt(100))
	_, err := b.Submit(context.Background(), buyOrder(1))
	require.NoError(t, err)

	open, err := b.FetchOpenOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, open, "the mock venue fills synchronously, so no order is ever left resting")
}
