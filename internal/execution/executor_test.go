package execution

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	brokermock "github.com/tradebotlabs/trading-engine/internal/broker/mock"
	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/portfolio"
)

type fakeReservationReleaser struct {
	released []string
}

func (f *fakeReservationReleaser) Release(token string) {
	f.released = append(f.released, token)
}

type fakeRiskUpdater struct {
	outcomes []decimal.Decimal
}

func (f *fakeRiskUpdater) ApplyFillOutcome(realizedPnL decimal.Decimal, now time.Time) error {
	f.outcomes = append(f.outcomes, realizedPnL)
	return nil
}

func newTestExecutor(t *testing.T) (*Executor, *brokermock.Broker, *portfolio.StateManager, *fakeReservationReleaser, *fakeRiskUpdater) {
	t.Helper()
	broker := brokermock.New(brokermock.Config{
		Symbols:     []domain.Symbol{"BTC/USD"},
		InitialCash: decimal.NewFromInt(10000),
	}, zerolog.Nop())
	port := portfolio.New(zerolog.Nop())
	resv := &fakeReservationReleaser{}
	riskUpdater := &fakeRiskUpdater{}
	exec := New(broker, port, resv, riskUpdater, DefaultConfig(), zerolog.Nop())
	return exec, broker, port, resv, riskUpdater
}

func TestSubmitMarketOrderFillsAndUpdatesPortfolio(t *testing.T) {
	exec, _, port, _, _ := newTestExecutor(t)
	order := domain.Order{
		ID:        domain.NewOrderID(),
		Symbol:    "BTC/USD",
		Side:      domain.SideBuy,
		Kind:      domain.OrderMarket,
		Quantity:  decimal.NewFromInt(1),
		Status:    domain.OrderPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, exec.Submit(context.Background(), order))

	events, err := exec.sink.AccountEvents(context.Background())
	require.NoError(t, err)
	select {
	case evt := <-events:
		exec.ApplyAccountEvent(evt)
	case <-time.After(time.Second):
		t.Fatal("expected a fill event from the mock broker after submit")
	}

	snap := port.Snapshot()
	pos, ok := snap.Positions["BTC/USD"]
	require.True(t, ok)
	assert.True(t, pos.Quantity.Equal(decimal.NewFromInt(1)))
}

func TestCancelUnknownOrderReturnsErrOrderNotFound(t *testing.T) {
	exec, _, _, _, _ := newTestExecutor(t)
	err := exec.Cancel(context.Background(), domain.NewOrderID())
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestCancelIsNoOpOnTerminalOrder(t *testing.T) {
	exec, _, _, resv, _ := newTestExecutor(t)
	order := domain.Order{
		ID:        domain.NewOrderID(),
		Symbol:    "BTC/USD",
		Side:      domain.SideBuy,
		Kind:      domain.OrderLimit,
		Quantity:  decimal.NewFromInt(1),
		Status:    domain.OrderCanceled,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	exec.trackOrder(&order)

	require.NoError(t, exec.Cancel(context.Background(), order.ID))
	assert.Empty(t, resv.released, "a no-op cancel on an already-terminal order should not release any reservation")
}

func TestSubmitRejectsWhenNotAcceptingNew(t *testing.T) {
	exec, _, _, _, _ := newTestExecutor(t)
	exec.mu.Lock()
	exec.acceptingNew = false
	exec.mu.Unlock()

	err := exec.Submit(context.Background(), domain.Order{ID: domain.NewOrderID(), Symbol: "BTC/USD", Quantity: decimal.NewFromInt(1)})
	require.Error(t, err)
	var kinded *domain.KindedError
	require.ErrorAs(t, err, &kinded)
	assert.Equal(t, domain.ErrKindBusinessRejection, kinded.Kind)
}

func TestShutdownStopsAcceptingNewOrders(t *testing.T) {
	exec, _, _, _, _ := newTestExecutor(t)
	require.NoError(t, exec.Shutdown(context.Background(), nil))

	err := exec.Submit(context.Background(), domain.Order{ID: domain.NewOrderID(), Symbol: "BTC/USD", Quantity: decimal.NewFromInt(1)})
	assert.Error(t, err)
}

func TestReconcileStartupPopulatesPortfolioFromBroker(t *testing.T) {
	exec, _, port, _, _ := newTestExecutor(t)
	require.NoError(t, exec.ReconcileStartup(context.Background()))

	snap := port.Snapshot()
	assert.True(t, snap.Synchronized)
	assert.True(t, snap.Cash.Equal(decimal.NewFromInt(10000)))
}
