package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/indicators"
)

// Context is everything a Strategy needs to analyze one symbol on one
// sealed candle close. It carries no mutable state of its own — the
// Analyst owns the SymbolContext this is built from.
type Context struct {
	Symbol domain.Symbol

	Opens, Highs, Lows, Closes, Volumes []float64

	Analysis indicators.AnalysisResult
	Regime   domain.Regime
	HurstExp float64

	CurrentPrice decimal.Decimal
	Position     domain.Position
}

// LastClose returns the most recent close, or zero if there is none.
func (c *Context) LastClose() float64 {
	if len(c.Closes) == 0 {
		return 0
	}
	return c.Closes[len(c.Closes)-1]
}

// Strategy is the capability every strategy implementation exposes to
// the Analyst pipeline. Analyze returns (nil, false) when no signal
// fires this bar — strategies never emit a position size, only
// direction and risk levels.
type Strategy interface {
	Name() string
	Analyze(ctx *Context) (*domain.Signal, bool)
	MinWarmupBars() int
}

// BaseStrategy provides the ATR-anchored stop/target math shared by
// every built-in strategy.
type BaseStrategy struct {
	name          string
	minWarmupBars int
}

func newBaseStrategy(name string, minWarmupBars int) BaseStrategy {
	return BaseStrategy{name: name, minWarmupBars: minWarmupBars}
}

func (b BaseStrategy) Name() string        { return b.name }
func (b BaseStrategy) MinWarmupBars() int  { return b.minWarmupBars }

// atrStop computes entryPrice -/+ atr*mult depending on side, falling
// back to a flat percentage when ATR hasn't warmed up yet.
func atrStop(side domain.OrderSide, entry, atr, mult float64) float64 {
	if atr <= 0 {
		if side == domain.SideBuy {
			return entry * 0.98
		}
		return entry * 1.02
	}
	if side == domain.SideBuy {
		return entry - atr*mult
	}
	return entry + atr*mult
}

func atrTarget(side domain.OrderSide, entry, atr, mult float64) float64 {
	if atr <= 0 {
		if side == domain.SideBuy {
			return entry * 1.03
		}
		return entry * 0.97
	}
	if side == domain.SideBuy {
		return entry + atr*mult
	}
	return entry - atr*mult
}

// decFromFloat converts a non-monetary float indicator level into a
// decimal price at the boundary where it starts touching cash.
func decFromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
