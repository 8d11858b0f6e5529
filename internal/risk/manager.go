package risk

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

// ConnectionChecker is the minimal collaborator the first chain link
// needs; satisfied by *sentinel.ConnectionHealth without importing it
// here and creating a cycle (internal/sentinel doesn't need risk).
type ConnectionChecker interface {
	Online() bool
}

// PortfolioSource supplies the current snapshot the chain validates
// against; satisfied by *portfolio.StateManager.
type PortfolioSource interface {
	Snapshot() domain.PortfolioSnapshot
	LastPrice(domain.Symbol) (decimal.Decimal, bool)
}

// SentimentSource returns the current macro sentiment reading, or
// ok=false if no sentiment provider is configured — in which case the
// sentiment gate never fires.
type SentimentSource interface {
	IsExtremeFear() (bool, bool)
}

// Config bundles the RiskManager's static wiring.
type Config struct {
	RiskAppetiteScore   int
	SectorOf            func(domain.Symbol) string
	SectorExposureCap   map[string]decimal.Decimal // overrides ScoreParams.MaxSectorExposurePct per sector, optional
	EquityFloorForPDT   decimal.Decimal
	CorrelationWindow   int
}

// Manager is the gatekeeper: every TradeProposal is either converted
// to a sized Order with a reservation token, or turned into a
// structured Rejection. The validation chain runs in a fixed order and
// short-circuits on the first rejection.
type Manager struct {
	log zerolog.Logger
	cfg Config

	conn        ConnectionChecker
	portfolio   PortfolioSource
	sentiment   SentimentSource
	reservation *ReservationSet
	correlation *CorrelationTracker
	dayTrades   *DayTradeTracker

	// mu guards state, since Evaluate runs on the proposal-evaluation
	// goroutine while ApplyFillOutcome and RolloverSession are called
	// from the account-event and session-rollover goroutines.
	mu    sync.Mutex
	state *domain.RiskState
	store RiskStateStore
}

// RiskStateStore persists the single-row RiskState durably via an
// atomic upsert. Implemented in internal/storage against SQLite.
type RiskStateStore interface {
	Load() (domain.RiskState, error)
	Save(domain.RiskState) error
}

// New constructs a Manager, loading any persisted RiskState so a
// tripped circuit breaker survives restart.
func New(cfg Config, conn ConnectionChecker, portfolio PortfolioSource, sentiment SentimentSource, store RiskStateStore, log zerolog.Logger) (*Manager, error) {
	state, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &Manager{
		log:         log.With().Str("component", "risk").Logger(),
		cfg:         cfg,
		conn:        conn,
		portfolio:   portfolio,
		sentiment:   sentiment,
		reservation: NewReservationSet(),
		correlation: NewCorrelationTracker(cfg.CorrelationWindow),
		dayTrades:   NewDayTradeTracker(),
		state:       &state,
		store:       store,
	}, nil
}

// Reservations exposes the reservation set for the Executor to release
// tokens against on terminal order states.
func (m *Manager) Reservations() *ReservationSet { return m.reservation }

// Correlation exposes the tracker so a background task can push daily
// returns and trigger periodic refreshes.
func (m *Manager) Correlation() *CorrelationTracker { return m.correlation }

// State returns a copy of the persisted risk state, for operator
// metrics snapshots.
func (m *Manager) State() domain.RiskState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.state
}

// Evaluate runs the full validation chain against a proposal, at time
// now, returning either a ready-to-submit Order or a Rejection. The
// whole chain runs under mu: a fill outcome or session rollover must
// never interleave with an in-progress evaluation reading the same
// state.
func (m *Manager) Evaluate(proposal domain.TradeProposal, now time.Time) (domain.Order, domain.Rejection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rej, ok := m.checkConnection(proposal, now); ok {
		return domain.Order{}, rej, false
	}
	snapshot := m.portfolio.Snapshot()
	if rej, ok := m.checkSynchronized(snapshot, proposal, now); ok {
		return domain.Order{}, rej, false
	}
	if rej, ok := m.checkCircuitBreaker(proposal, now); ok {
		return domain.Order{}, rej, false
	}

	price, hasPrice := m.portfolio.LastPrice(proposal.Symbol)
	if !hasPrice {
		return domain.Order{}, m.reject(proposal, domain.RejectMarketDataOffline, "no last price known for symbol", now), false
	}

	params := ForScore(m.cfg.RiskAppetiteScore)

	sizing := CalculateSize(snapshot.Equity(m.portfolio.LastPrice), price, effectiveStop(proposal, price), proposal.Side, params)
	estimatedCost := sizing.Quantity.Mul(price)
	if rej, ok := m.checkBuyingPower(snapshot, estimatedCost, proposal, now); ok {
		return domain.Order{}, rej, false
	}

	if rej, ok := m.checkPDT(snapshot, proposal, now); ok {
		return domain.Order{}, rej, false
	}

	if !sizing.Quantity.IsPositive() {
		return domain.Order{}, m.reject(proposal, domain.RejectZeroSize, "computed position size is zero", now), false
	}

	if rr := RiskRewardRatio(proposal.Side, price, effectiveStop(proposal, price), proposal.TakeProfit); proposal.TakeProfit.IsPositive() && rr.LessThan(params.MinRiskRewardRatio) {
		return domain.Order{}, m.reject(proposal, domain.RejectZeroSize, "risk/reward ratio below minimum for risk appetite", now), false
	}

	if rej, ok := m.checkSectorCorrelation(snapshot, proposal, params, now); ok {
		return domain.Order{}, rej, false
	}
	if rej, ok := m.checkSentiment(proposal, params, now); ok {
		return domain.Order{}, rej, false
	}

	token := m.reservation.Reserve(estimatedCost)
	order := domain.Order{
		ID:               domain.NewOrderID(),
		Symbol:           proposal.Symbol,
		Side:             proposal.Side,
		Kind:             domain.OrderMarket,
		Quantity:         sizing.Quantity,
		Status:           domain.OrderPending,
		CreatedAt:        now,
		UpdatedAt:        now,
		StopLoss:         proposal.StopLoss,
		TakeProfit:       proposal.TakeProfit,
		StrategyID:       proposal.StrategyID,
		RegimeDetected:   proposal.Regime.String(),
		EntryReason:      proposal.Reason,
		ReservationToken: token,
	}

	if proposal.Side == domain.SideBuy {
		m.dayTrades.RecordOpen(proposal.Symbol, now)
	} else if m.dayTrades.WouldBeDayTrade(proposal.Symbol, now) {
		m.dayTrades.RecordDayTrade(now)
	}

	return order, domain.Rejection{}, true
}

func effectiveStop(p domain.TradeProposal, price decimal.Decimal) decimal.Decimal {
	if p.StopLoss.IsPositive() {
		return p.StopLoss
	}
	return price
}

func (m *Manager) reject(p domain.TradeProposal, code domain.RejectionCode, reason string, now time.Time) domain.Rejection {
	rej := domain.Rejection{Symbol: p.Symbol, Code: code, Reason: reason, Timestamp: now}
	m.log.Info().Str("symbol", string(p.Symbol)).Str("code", string(code)).Str("reason", reason).Msg("proposal rejected")
	return rej
}

func (m *Manager) checkConnection(p domain.TradeProposal, now time.Time) (domain.Rejection, bool) {
	if !m.conn.Online() {
		return m.reject(p, domain.RejectMarketDataOffline, "market data or execution stream offline", now), true
	}
	return domain.Rejection{}, false
}

func (m *Manager) checkSynchronized(snap domain.PortfolioSnapshot, p domain.TradeProposal, now time.Time) (domain.Rejection, bool) {
	if !snap.Synchronized {
		return m.reject(p, domain.RejectNotSynchronized, "portfolio not yet synchronized with broker", now), true
	}
	return domain.Rejection{}, false
}

func (m *Manager) checkCircuitBreaker(p domain.TradeProposal, now time.Time) (domain.Rejection, bool) {
	if m.state.CircuitBreakerTripped {
		return m.reject(p, domain.RejectCircuitBreaker, "circuit breaker tripped", now), true
	}

	params := ForScore(m.cfg.RiskAppetiteScore)
	if m.state.DailyLossPct().GreaterThanOrEqual(params.MaxDailyLossPct) {
		m.trip(now, "daily loss limit reached")
		return m.reject(p, domain.RejectDailyLossExceeded, "daily loss limit reached", now), true
	}
	equity := m.state.SessionStartEquity.Add(m.state.DailyRealizedPnL)
	if m.state.Drawdown(equity).GreaterThanOrEqual(params.MaxDrawdownPct) {
		m.trip(now, "drawdown from high-water-mark limit reached")
		return m.reject(p, domain.RejectDrawdownExceeded, "drawdown limit reached", now), true
	}
	if m.state.ConsecutiveLosses >= params.ConsecutiveLossLimit {
		m.trip(now, "consecutive loss limit reached")
		return m.reject(p, domain.RejectConsecutiveLosses, "consecutive loss limit reached", now), true
	}
	return domain.Rejection{}, false
}

func (m *Manager) checkBuyingPower(snap domain.PortfolioSnapshot, estimatedCost decimal.Decimal, p domain.TradeProposal, now time.Time) (domain.Rejection, bool) {
	available := snap.Cash.Sub(m.reservation.TotalReserved())
	if p.Side == domain.SideBuy && estimatedCost.GreaterThan(available) {
		return m.reject(p, domain.RejectInsufficientFunds, "estimated cost exceeds available buying power", now), true
	}
	return domain.Rejection{}, false
}

func (m *Manager) checkPDT(snap domain.PortfolioSnapshot, p domain.TradeProposal, now time.Time) (domain.Rejection, bool) {
	floor := m.cfg.EquityFloorForPDT
	if floor.IsZero() {
		floor = PDTEquityFloor
	}
	equity := snap.Equity(m.portfolio.LastPrice)
	if equity.GreaterThanOrEqual(floor) {
		return domain.Rejection{}, false
	}
	if p.Side != domain.SideSell {
		return domain.Rejection{}, false
	}
	if !m.dayTrades.WouldBeDayTrade(p.Symbol, now) {
		return domain.Rejection{}, false
	}
	if m.dayTrades.CountInWindow(now) >= 3 {
		return m.reject(p, domain.RejectPDT, "pattern day trader limit reached for sub-floor account", now), true
	}
	return domain.Rejection{}, false
}

func (m *Manager) checkSectorCorrelation(snap domain.PortfolioSnapshot, p domain.TradeProposal, params ScoreParams, now time.Time) (domain.Rejection, bool) {
	if p.Side != domain.SideBuy || m.cfg.SectorOf == nil {
		return domain.Rejection{}, false
	}

	sector := m.cfg.SectorOf(p.Symbol)
	equity := snap.Equity(m.portfolio.LastPrice)
	if equity.IsPositive() {
		sectorExposure := decimal.Zero
		for sym, pos := range snap.Positions {
			if !pos.IsOpen() || m.cfg.SectorOf(sym) != sector {
				continue
			}
			if px, ok := m.portfolio.LastPrice(sym); ok {
				sectorExposure = sectorExposure.Add(pos.MarketValue(px).Abs())
			}
		}
		cap := params.MaxSectorExposurePct
		if override, ok := m.cfg.SectorExposureCap[sector]; ok {
			cap = override
		}
		if sectorExposure.Div(equity).GreaterThanOrEqual(cap) {
			return m.reject(p, domain.RejectSectorExposure, "sector exposure cap reached for "+sector, now), true
		}
	}

	snapshot := m.correlation.Snapshot()
	for sym, pos := range snap.Positions {
		if !pos.IsOpen() || sym == p.Symbol {
			continue
		}
		if snapshot.Get(p.Symbol, sym) >= params.CorrelationCap.InexactFloat64() {
			return m.reject(p, domain.RejectCorrelationCap, "correlation with existing position exceeds cap", now), true
		}
	}
	return domain.Rejection{}, false
}

func (m *Manager) checkSentiment(p domain.TradeProposal, params ScoreParams, now time.Time) (domain.Rejection, bool) {
	if m.sentiment == nil || p.Side != domain.SideBuy {
		return domain.Rejection{}, false
	}
	if !p.Aggressive || m.cfg.RiskAppetiteScore < 7 {
		return domain.Rejection{}, false
	}
	if p.Confidence < params.AggressiveThreshold {
		return domain.Rejection{}, false
	}
	extremeFear, ok := m.sentiment.IsExtremeFear()
	if !ok || !extremeFear {
		return domain.Rejection{}, false
	}
	return m.reject(p, domain.RejectSentimentExtreme, "macro sentiment in extreme fear", now), true
}

// trip sets the circuit breaker and persists the state synchronously
// so the trip survives a crash immediately after it fires. Called
// only from within Evaluate, which already holds mu.
func (m *Manager) trip(now time.Time, reason string) {
	m.state.CircuitBreakerTripped = true
	m.state.UpdatedAt = now
	if err := m.store.Save(*m.state); err != nil {
		m.log.Error().Err(err).Str("reason", reason).Msg("failed to persist circuit breaker trip")
	}
	m.log.Warn().Str("reason", reason).Msg("circuit breaker tripped")
}

// ApplyFillOutcome updates RiskState after a trade closes: realized
// PnL feeds daily loss tracking and consecutive-loss counting resets
// on a win.
func (m *Manager) ApplyFillOutcome(realizedPnL decimal.Decimal, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.DailyRealizedPnL = m.state.DailyRealizedPnL.Add(realizedPnL)
	if realizedPnL.IsNegative() {
		m.state.ConsecutiveLosses++
	} else if realizedPnL.IsPositive() {
		m.state.ConsecutiveLosses = 0
	}
	m.state.UpdatedAt = now
	return m.store.Save(*m.state)
}

// RolloverSession resets daily bookkeeping at a session boundary,
// clearing a daily-loss-triggered breaker trip automatically. A
// drawdown trip is not cleared here — it requires a manual reset.
func (m *Manager) RolloverSession(now time.Time, startEquity decimal.Decimal, drawdownCaused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.SessionStartEquity = startEquity
	m.state.DailyRealizedPnL = decimal.Zero
	m.state.LastSessionDate = now
	if !drawdownCaused {
		m.state.CircuitBreakerTripped = false
	}
	if startEquity.GreaterThan(m.state.EquityHWM) {
		m.state.EquityHWM = startEquity
	}
	m.state.UpdatedAt = now
	return m.store.Save(*m.state)
}

// ManualReset clears a drawdown-triggered circuit breaker — the only
// path that can, since RolloverSession leaves a drawdown trip alone.
func (m *Manager) ManualReset(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.CircuitBreakerTripped = false
	m.state.UpdatedAt = now
	return m.store.Save(*m.state)
}

// DetectStaleState reports whether the persisted equity deviates from
// current observed equity by more than 50%, a heuristic for flagging
// state that went stale across a long-offline restart.
func DetectStaleState(persisted, observed decimal.Decimal) bool {
	if !persisted.IsPositive() {
		return false
	}
	dev := persisted.Sub(observed).Abs().Div(persisted)
	return dev.GreaterThan(decimal.NewFromFloat(0.5))
}
