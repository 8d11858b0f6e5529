package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is the authoritative account view. It is owned exclusively
// by the Executor for writes; every other component only ever holds an
// immutable PortfolioSnapshot obtained from PortfolioStateManager.
type Portfolio struct {
	Cash               decimal.Decimal
	Positions          map[Symbol]Position
	EquityHWM          decimal.Decimal
	SessionStartEquity decimal.Decimal
	Synchronized       bool
	UpdatedAt          time.Time
}

// PortfolioSnapshot is an immutable copy published by the
// PortfolioStateManager on every write; readers dereference an atomic
// pointer to one of these and never block the writer.
type PortfolioSnapshot struct {
	Cash               decimal.Decimal
	Positions          map[Symbol]Position
	EquityHWM          decimal.Decimal
	SessionStartEquity decimal.Decimal
	Synchronized       bool
	UpdatedAt          time.Time
}

// Equity computes cash + sum(position.quantity * last_price) using the
// supplied last-price lookup. Symbols with no known last price are
// skipped (treated as zero exposure) rather than panicking.
func (p PortfolioSnapshot) Equity(lastPrice func(Symbol) (decimal.Decimal, bool)) decimal.Decimal {
	eq := p.Cash
	for sym, pos := range p.Positions {
		if !pos.IsOpen() {
			continue
		}
		if px, ok := lastPrice(sym); ok {
			eq = eq.Add(pos.MarketValue(px))
		}
	}
	return eq
}

// Clone deep-copies the snapshot's position map so a writer can mutate
// its working copy without aliasing a published snapshot.
func (p PortfolioSnapshot) Clone() PortfolioSnapshot {
	positions := make(map[Symbol]Position, len(p.Positions))
	for k, v := range p.Positions {
		cp := v
		if v.TrailingStop != nil {
			ts := *v.TrailingStop
			cp.TrailingStop = &ts
		}
		positions[k] = cp
	}
	return PortfolioSnapshot{
		Cash:               p.Cash,
		Positions:          positions,
		EquityHWM:          p.EquityHWM,
		SessionStartEquity: p.SessionStartEquity,
		Synchronized:       p.Synchronized,
		UpdatedAt:          p.UpdatedAt,
	}
}

// RiskState is the persistent circuit-breaker bookkeeping. It survives
// restart and is owned exclusively by the RiskManager, mediated through
// a RiskStateStore for durability.
type RiskState struct {
	SessionStartEquity  decimal.Decimal
	EquityHWM           decimal.Decimal
	DailyRealizedPnL    decimal.Decimal
	ConsecutiveLosses   int
	LastSessionDate     time.Time
	CircuitBreakerTripped bool
	UpdatedAt           time.Time
}

// Drawdown returns the fractional drawdown from the high-water mark
// given the current equity; zero if HWM is not yet established.
func (r RiskState) Drawdown(currentEquity decimal.Decimal) decimal.Decimal {
	if !r.EquityHWM.IsPositive() {
		return decimal.Zero
	}
	return r.EquityHWM.Sub(currentEquity).Div(r.EquityHWM)
}

// DailyLossPct returns the daily loss as a fraction of session start
// equity (negative DailyRealizedPnL yields a positive fraction).
func (r RiskState) DailyLossPct() decimal.Decimal {
	if !r.SessionStartEquity.IsPositive() {
		return decimal.Zero
	}
	if r.DailyRealizedPnL.IsNegative() {
		return r.DailyRealizedPnL.Abs().Div(r.SessionStartEquity)
	}
	return decimal.Zero
}
