package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

// SimulatorConfig tunes the deterministic replay: slippage, transaction
// costs, and the RNG seed that must drive every stochastic choice so two
// runs with the same seed and data produce byte-identical results.
// Engine.Run applies no latency model: LatencyBars is not read, and an
// order is filled on the same candle whose close produced its signal.
type SimulatorConfig struct {
	Seed             int64
	InitialCapital   decimal.Decimal
	CommissionRate   decimal.Decimal // fraction of notional, e.g. 0.001
	SlippageBps      int             // base slippage in basis points
	LatencyBars      int             // not read by Engine.Run; fills happen on the signal candle
	RiskAppetiteScore int
	TrainRatio       float64 // walk-forward split fraction, by index
}

// DefaultSimulatorConfig provides sensible paper-trading defaults.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Seed:              1,
		InitialCapital:    decimal.NewFromInt(10000),
		CommissionRate:    decimal.NewFromFloat(0.001),
		SlippageBps:       5,
		LatencyBars:       1,
		RiskAppetiteScore: 5,
		TrainRatio:        0.7,
	}
}

// Trade is one completed round trip.
type Trade struct {
	Symbol        domain.Symbol
	Strategy      string
	Side          domain.OrderSide
	EntryTime     time.Time
	ExitTime      time.Time
	EntryPrice    decimal.Decimal
	ExitPrice     decimal.Decimal
	Quantity      decimal.Decimal
	NetProfit     decimal.Decimal
	ReturnPct     decimal.Decimal
	ExitReason    string
	Commission    decimal.Decimal
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Timestamp time.Time
	Equity    decimal.Decimal
	Cash      decimal.Decimal
	Drawdown  decimal.Decimal
}

// Metrics holds decimal-accurate backtest performance statistics.
// Sharpe/Sortino are computed in float64 (they are dimensionless
// statistics, not cash) and converted back at the boundary only for
// reporting alongside decimal fields.
type Metrics struct {
	StartingCapital decimal.Decimal
	EndingCapital   decimal.Decimal
	NetProfit       decimal.Decimal
	TotalReturnPct  decimal.Decimal
	MaxDrawdownPct  decimal.Decimal
	SharpeRatio     float64
	SortinoRatio    float64
	TotalTrades     int
	WinningTrades   int
	LosingTrades    int
	WinRate         decimal.Decimal
	ProfitFactor    decimal.Decimal
	AvgWin          decimal.Decimal
	AvgLoss         decimal.Decimal
	BuyHoldReturnPct decimal.Decimal
}

// Result is the full output of one backtest run.
type Result struct {
	Config        SimulatorConfig
	Metrics       Metrics
	EquityCurve   []EquityPoint
	Trades        []Trade
	StartTime     time.Time
	EndTime       time.Time
	ExecutionTime time.Duration
}

// Split is a walk-forward partition of a candle series: candles up to
// the split index are the training window, the remainder the holdout.
type Split struct {
	Train []domain.Candle
	Test  []domain.Candle
}

// WalkForwardSplit partitions candles by index according to
// cfg.TrainRatio, never by wall-clock, so it behaves identically
// against any historical window.
func WalkForwardSplit(candles []domain.Candle, trainRatio float64) Split {
	if trainRatio <= 0 || trainRatio >= 1 || len(candles) == 0 {
		return Split{Train: candles}
	}
	idx := int(float64(len(candles)) * trainRatio)
	if idx < 1 {
		idx = 1
	}
	if idx >= len(candles) {
		idx = len(candles) - 1
	}
	return Split{Train: candles[:idx], Test: candles[idx:]}
}
