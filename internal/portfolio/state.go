// Package portfolio owns the authoritative account view. The Executor
// is the sole writer; every other component (Analyst, RiskManager,
// API) only ever holds an immutable snapshot obtained from StateManager
// and never blocks the writer.
package portfolio

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

// StateManager publishes domain.PortfolioSnapshot via an atomic
// pointer. Writes are serialized through writeMu (only the Executor
// calls the mutating methods); reads never take a lock.
type StateManager struct {
	log     zerolog.Logger
	writeMu sync.Mutex
	current atomic.Pointer[domain.PortfolioSnapshot]

	pricesMu sync.RWMutex
	prices   map[domain.Symbol]decimal.Decimal
}

// New builds a StateManager seeded with an empty, unsynchronized
// snapshot; call ReplaceFromBroker once the first reconciliation
// completes.
func New(log zerolog.Logger) *StateManager {
	sm := &StateManager{
		log:    log.With().Str("component", "portfolio").Logger(),
		prices: make(map[domain.Symbol]decimal.Decimal),
	}
	sm.current.Store(&domain.PortfolioSnapshot{
		Positions: map[domain.Symbol]domain.Position{},
	})
	return sm
}

// Snapshot returns the currently published, immutable state.
func (sm *StateManager) Snapshot() domain.PortfolioSnapshot {
	return *sm.current.Load()
}

// LastPrice returns the most recently observed trade price for symbol.
func (sm *StateManager) LastPrice(symbol domain.Symbol) (decimal.Decimal, bool) {
	sm.pricesMu.RLock()
	defer sm.pricesMu.RUnlock()
	px, ok := sm.prices[symbol]
	return px, ok
}

// UpdatePrice records the latest trade price, used for mark-to-market
// equity and trailing-stop evaluation. Safe for concurrent callers
// (Sentinel feeds this on every tick); does not touch the snapshot.
func (sm *StateManager) UpdatePrice(symbol domain.Symbol, price decimal.Decimal) {
	sm.pricesMu.Lock()
	sm.prices[symbol] = price
	sm.pricesMu.Unlock()
}

// ReplaceFromBroker overwrites the entire snapshot with a freshly
// reconciled view from the broker, marking it synchronized. Used at
// startup and by the periodic reconciliation task.
func (sm *StateManager) ReplaceFromBroker(cash decimal.Decimal, positions []domain.Position, now time.Time) {
	sm.writeMu.Lock()
	defer sm.writeMu.Unlock()

	posMap := make(map[domain.Symbol]domain.Position, len(positions))
	for _, p := range positions {
		posMap[p.Symbol] = p
	}

	prev := sm.current.Load()
	hwm := prev.EquityHWM
	sessionStart := prev.SessionStartEquity
	if sessionStart.IsZero() {
		sessionStart = cash
	}

	sm.current.Store(&domain.PortfolioSnapshot{
		Cash:               cash,
		Positions:          posMap,
		EquityHWM:          hwm,
		SessionStartEquity: sessionStart,
		Synchronized:       true,
		UpdatedAt:          now,
	})
	sm.log.Info().Int("positions", len(posMap)).Str("cash", cash.String()).Msg("portfolio reconciled from broker")
}

// MarkUnsynchronized flags the snapshot as stale without discarding
// it, used when the execution stream drops so the RiskManager's
// synchronization check starts rejecting new entries immediately.
func (sm *StateManager) MarkUnsynchronized(now time.Time) {
	sm.writeMu.Lock()
	defer sm.writeMu.Unlock()
	snap := sm.current.Load().Clone()
	snap.Synchronized = false
	snap.UpdatedAt = now
	sm.current.Store(&snap)
}

// ApplyFill folds a fill into the working snapshot: adjusts cash,
// opens/extends/reduces/closes the affected position, and advances
// the equity high-water mark.
func (sm *StateManager) ApplyFill(symbol domain.Symbol, side domain.OrderSide, qty, price, fee decimal.Decimal, now time.Time) domain.Position {
	sm.writeMu.Lock()
	defer sm.writeMu.Unlock()

	snap := sm.current.Load().Clone()

	notional := qty.Mul(price)
	if side == domain.SideBuy {
		snap.Cash = snap.Cash.Sub(notional).Sub(fee)
	} else {
		snap.Cash = snap.Cash.Add(notional).Sub(fee)
	}

	pos := snap.Positions[symbol]
	pos.Symbol = symbol
	signedQty := qty
	if side == domain.SideSell {
		signedQty = qty.Neg()
	}

	switch {
	case pos.Quantity.IsZero():
		pos.Quantity = signedQty
		pos.AvgEntryPrice = price
		pos.OpenedAt = now
	case sameSign(pos.Quantity, signedQty):
		totalCost := pos.AvgEntryPrice.Mul(pos.Quantity.Abs()).Add(price.Mul(qty))
		pos.Quantity = pos.Quantity.Add(signedQty)
		if !pos.Quantity.IsZero() {
			pos.AvgEntryPrice = totalCost.Div(pos.Quantity.Abs())
		}
	default:
		pos.Quantity = pos.Quantity.Add(signedQty)
		if pos.Quantity.IsZero() {
			pos.AvgEntryPrice = decimal.Zero
			pos.TrailingStop = nil
		} else if sameSign(pos.Quantity, signedQty) {
			// the fill flipped the position to the opposite side
			pos.AvgEntryPrice = price
			pos.OpenedAt = now
			pos.TrailingStop = nil
		}
	}
	snap.Positions[symbol] = pos

	if equity := snap.Equity(func(s domain.Symbol) (decimal.Decimal, bool) {
		if s == symbol {
			return price, true
		}
		return sm.LastPrice(s)
	}); equity.GreaterThan(snap.EquityHWM) {
		snap.EquityHWM = equity
	}
	snap.UpdatedAt = now

	sm.current.Store(&snap)
	sm.UpdatePrice(symbol, price)
	return pos
}

func sameSign(a, b decimal.Decimal) bool {
	return (a.IsPositive() && b.IsPositive()) || (a.IsNegative() && b.IsNegative())
}

// StartSession resets the session-start equity marker, called once per
// trading day by the orchestrator's rollover timer.
func (sm *StateManager) StartSession(now time.Time) decimal.Decimal {
	sm.writeMu.Lock()
	defer sm.writeMu.Unlock()
	snap := sm.current.Load().Clone()
	equity := snap.Equity(sm.LastPrice)
	snap.SessionStartEquity = equity
	if equity.GreaterThan(snap.EquityHWM) {
		snap.EquityHWM = equity
	}
	snap.UpdatedAt = now
	sm.current.Store(&snap)
	return equity
}
