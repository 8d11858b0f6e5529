package risk

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

type fakeConn struct{ online bool }

func (f fakeConn) Online() bool { return f.online }

type fakePortfolio struct {
	snap   domain.PortfolioSnapshot
	prices map[domain.Symbol]decimal.Decimal
}

func (f fakePortfolio) Snapshot() domain.PortfolioSnapshot { return f.snap }
func (f fakePortfolio) LastPrice(s domain.Symbol) (decimal.Decimal, bool) {
	px, ok := f.prices[s]
	return px, ok
}

type fakeSentiment struct {
	extreme bool
	ok      bool
}

func (f fakeSentiment) IsExtremeFear() (bool, bool) { return f.extreme, f.ok }

type memStore struct{ state domain.RiskState }

func (m *memStore) Load() (domain.RiskState, error) { return m.state, nil }
func (m *memStore) Save(s domain.RiskState) error    { m.state = s; return nil }

func newTestManager(t *testing.T, score int, equity decimal.Decimal) (*Manager, *fakePortfolio) {
	t.Helper()
	portfolio := &fakePortfolio{
		snap: domain.PortfolioSnapshot{
			Cash:               equity,
			Positions:          map[domain.Symbol]domain.Position{},
			SessionStartEquity: equity,
			Synchronized:       true,
		},
		prices: map[domain.Symbol]decimal.Decimal{"BTC/USD": decimal.NewFromInt(100)},
	}
	store := &memStore{state: domain.RiskState{SessionStartEquity: equity, EquityHWM: equity}}
	mgr, err := New(Config{RiskAppetiteScore: score}, fakeConn{online: true}, portfolio, nil, store, zerolog.Nop())
	require.NoError(t, err)
	return mgr, portfolio
}

func baseProposal() domain.TradeProposal {
	return domain.TradeProposal{
		Symbol:     "BTC/USD",
		Side:       domain.SideBuy,
		StopLoss:   decimal.NewFromInt(95),
		TakeProfit: decimal.NewFromInt(120),
		Timestamp:  time.Now(),
	}
}

func TestEvaluateAcceptsValidProposal(t *testing.T) {
	mgr, _ := newTestManager(t, 5, decimal.NewFromInt(10000))
	order, rej, ok := mgr.Evaluate(baseProposal(), time.Now())
	require.True(t, ok, "expected acceptance, got rejection %+v", rej)
	require.True(t, order.Quantity.IsPositive())
	require.Equal(t, domain.OrderPending, order.Status)
	require.NotEmpty(t, order.ReservationToken)
}

func TestEvaluateRejectsWhenOffline(t *testing.T) {
	portfolio := &fakePortfolio{
		snap:   domain.PortfolioSnapshot{Synchronized: true, Cash: decimal.NewFromInt(10000)},
		prices: map[domain.Symbol]decimal.Decimal{"BTC/USD": decimal.NewFromInt(100)},
	}
	store := &memStore{state: domain.RiskState{SessionStartEquity: decimal.NewFromInt(10000)}}
	mgr, err := New(Config{RiskAppetiteScore: 5}, fakeConn{online: false}, portfolio, nil, store, zerolog.Nop())
	require.NoError(t, err)

	_, rej, ok := mgr.Evaluate(baseProposal(), time.Now())
	require.False(t, ok)
	require.Equal(t, domain.RejectMarketDataOffline, rej.Code)
}

func TestEvaluateRejectsWhenNotSynchronized(t *testing.T) {
	mgr, portfolio := newTestManager(t, 5, decimal.NewFromInt(10000))
	portfolio.snap.Synchronized = false

	_, rej, ok := mgr.Evaluate(baseProposal(), time.Now())
	require.False(t, ok)
	require.Equal(t, domain.RejectNotSynchronized, rej.Code)
}

func TestEvaluateRejectsInsufficientBuyingPower(t *testing.T) {
	mgr, _ := newTestManager(t, 5, decimal.NewFromInt(1000))
	// Simulate buying power already tied up by other working orders, so
	// the sized cost of this proposal exceeds what remains available.
	mgr.Reservations().Reserve(decimal.NewFromInt(950))

	_, rej, ok := mgr.Evaluate(baseProposal(), time.Now())
	require.False(t, ok)
	require.Equal(t, domain.RejectInsufficientFunds, rej.Code)
}

func TestCircuitBreakerTripsOnDailyLossAndBlocksFurtherProposals(t *testing.T) {
	mgr, _ := newTestManager(t, 5, decimal.NewFromInt(10000))
	// MaxDailyLossPct for score 5 is 0.04; push daily loss over that.
	require.NoError(t, mgr.ApplyFillOutcome(decimal.NewFromInt(-500), time.Now()))

	_, rej, ok := mgr.Evaluate(baseProposal(), time.Now())
	require.False(t, ok)
	require.Equal(t, domain.RejectDailyLossExceeded, rej.Code)

	state := mgr.State()
	require.True(t, state.CircuitBreakerTripped)

	// Further proposals short-circuit on the already-tripped breaker.
	_, rej2, ok2 := mgr.Evaluate(baseProposal(), time.Now())
	require.False(t, ok2)
	require.Equal(t, domain.RejectCircuitBreaker, rej2.Code)
}

func TestManualResetClearsTrippedBreaker(t *testing.T) {
	mgr, _ := newTestManager(t, 5, decimal.NewFromInt(10000))
	require.NoError(t, mgr.ApplyFillOutcome(decimal.NewFromInt(-500), time.Now()))
	_, _, _ = mgr.Evaluate(baseProposal(), time.Now()) // trips on the daily loss check
	require.True(t, mgr.State().CircuitBreakerTripped)

	require.NoError(t, mgr.ManualReset(time.Now()))
	require.False(t, mgr.State().CircuitBreakerTripped)
}

func TestRolloverSessionClearsDailyLossTripButNotDrawdown(t *testing.T) {
	mgr, _ := newTestManager(t, 5, decimal.NewFromInt(10000))
	require.NoError(t, mgr.ApplyFillOutcome(decimal.NewFromInt(-500), time.Now()))
	_, _, _ = mgr.Evaluate(baseProposal(), time.Now()) // trips on the daily loss check
	require.True(t, mgr.State().CircuitBreakerTripped)

	require.NoError(t, mgr.RolloverSession(time.Now(), decimal.NewFromInt(9500), false))
	require.False(t, mgr.State().CircuitBreakerTripped)

	// A drawdown-caused trip requires manual reset even across rollover.
	require.NoError(t, mgr.ApplyFillOutcome(decimal.NewFromInt(-500), time.Now()))
	_, _, _ = mgr.Evaluate(baseProposal(), time.Now())
	require.True(t, mgr.State().CircuitBreakerTripped)
	require.NoError(t, mgr.RolloverSession(time.Now(), decimal.NewFromInt(9000), true))
	require.True(t, mgr.State().CircuitBreakerTripped)
}

func TestApplyFillOutcomeResetsConsecutiveLossesOnWin(t *testing.T) {
	mgr, _ := newTestManager(t, 1, decimal.NewFromInt(100000))
	require.NoError(t, mgr.ApplyFillOutcome(decimal.NewFromInt(-10), time.Now()))
	require.NoError(t, mgr.ApplyFillOutcome(decimal.NewFromInt(-10), time.Now()))
	require.Equal(t, 2, mgr.State().ConsecutiveLosses)

	require.NoError(t, mgr.ApplyFillOutcome(decimal.NewFromInt(10), time.Now()))
	require.Equal(t, 0, mgr.State().ConsecutiveLosses)
}

func TestDetectStaleState(t *testing.T) {
	require.True(t, DetectStaleState(decimal.NewFromInt(10000), decimal.NewFromInt(4000)))
	require.False(t, DetectStaleState(decimal.NewFromInt(10000), decimal.NewFromInt(9000)))
	require.False(t, DetectStaleState(decimal.Zero, decimal.NewFromInt(100)))
}
