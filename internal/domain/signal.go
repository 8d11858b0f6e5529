package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Regime is the discrete market-state label the Analyst's regime stage
// classifies each symbol into.
type Regime int

const (
	RegimeUnknown Regime = iota
	RegimeTrendingUp
	RegimeTrendingDown
	RegimeRanging
	RegimeVolatile
)

func (r Regime) String() string {
	switch r {
	case RegimeTrendingUp:
		return "TRENDING_UP"
	case RegimeTrendingDown:
		return "TRENDING_DOWN"
	case RegimeRanging:
		return "RANGING"
	case RegimeVolatile:
		return "VOLATILE"
	default:
		return "UNKNOWN"
	}
}

// Signal is a strategy's directional output. It deliberately carries no
// position size — sizing is the RiskManager's job, never the
// strategy's.
type Signal struct {
	Side       OrderSide
	Reason     string
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	Confidence float64 // 0..1, non-monetary

	// Aggressive flags a signal the sentiment gate should scrutinize
	// more closely before it's allowed through during extreme fear.
	Aggressive bool
}

// HasStopLoss reports whether the signal set a stop-loss price.
func (s Signal) HasStopLoss() bool { return s.StopLoss.IsPositive() }

// HasTakeProfit reports whether the signal set a take-profit price.
func (s Signal) HasTakeProfit() bool { return s.TakeProfit.IsPositive() }

// TradeProposal is the RiskManager's input: a Signal enriched with
// routing metadata. Still carries no size.
type TradeProposal struct {
	Symbol     Symbol
	Side       OrderSide
	LimitPrice decimal.Decimal // zero => market-style proposal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	StrategyID string
	Reason     string
	Regime     Regime
	Confidence float64
	Aggressive bool
	Timestamp  time.Time
}

// RejectionCode enumerates the structured reasons a proposal can be
// turned down by the RiskManager's validation chain.
type RejectionCode string

const (
	RejectMarketDataOffline  RejectionCode = "MARKET_DATA_OFFLINE"
	RejectExecutionOffline   RejectionCode = "EXECUTION_OFFLINE"
	RejectNotSynchronized    RejectionCode = "PORTFOLIO_NOT_SYNCHRONIZED"
	RejectDailyLossExceeded  RejectionCode = "DAILY_LOSS_EXCEEDED"
	RejectDrawdownExceeded   RejectionCode = "DRAWDOWN_EXCEEDED"
	RejectConsecutiveLosses  RejectionCode = "CONSECUTIVE_LOSSES_EXCEEDED"
	RejectCircuitBreaker     RejectionCode = "CIRCUIT_BREAKER_TRIPPED"
	RejectInsufficientFunds  RejectionCode = "INSUFFICIENT_BUYING_POWER"
	RejectPDT                RejectionCode = "PDT_RESTRICTED"
	RejectZeroSize           RejectionCode = "ZERO_POSITION_SIZE"
	RejectSectorExposure     RejectionCode = "SECTOR_EXPOSURE_CAP"
	RejectCorrelationCap     RejectionCode = "CORRELATION_CAP"
	RejectSentimentExtreme   RejectionCode = "SENTIMENT_EXTREME_FEAR"
)

// Rejection is the structured output for a proposal the chain declined.
type Rejection struct {
	Symbol    Symbol
	Code      RejectionCode
	Reason    string
	Timestamp time.Time
}

func (r Rejection) Error() string {
	return string(r.Code) + ": " + r.Reason
}

// SymbolContext is the Analyst's exclusively-owned per-symbol state: the
// bounded candle window, indicator state, higher-timeframe views, last
// regime/signal, trailing-stop bookkeeping, and RSI divergence history.
type SymbolContext struct {
	Symbol Symbol

	CandleWindow    []Candle
	TimeframeViews  map[Timeframe][]Candle
	RecentRSI       []float64 // bounded to at most MaxRSIHistory (100) entries for divergence detection

	LastRegime      Regime
	LastSignal      *Signal
	LastProposalAt  time.Time
	LastCandleOpen  time.Time // open_time of the last candle a proposal was emitted for

	CurrentPosition Position
	InFlight        bool // true while a proposal is awaiting risk decision; gates hot-reload
}

// MaxRSIHistory bounds how much RSI history is retained for
// divergence detection.
const MaxRSIHistory = 100

// PushRSI appends a fresh RSI reading, discarding the oldest once the
// bound is exceeded.
func (c *SymbolContext) PushRSI(v float64) {
	c.RecentRSI = append(c.RecentRSI, v)
	if len(c.RecentRSI) > MaxRSIHistory {
		c.RecentRSI = c.RecentRSI[len(c.RecentRSI)-MaxRSIHistory:]
	}
}

// PushCandle appends a sealed candle to the bounded window, evicting the
// oldest once maxLen is exceeded.
func (c *SymbolContext) PushCandle(candle Candle, maxLen int) {
	c.CandleWindow = append(c.CandleWindow, candle)
	if len(c.CandleWindow) > maxLen {
		c.CandleWindow = c.CandleWindow[len(c.CandleWindow)-maxLen:]
	}
}

// AlreadyProposedFor reports whether a proposal has already been
// emitted for this sealed candle's open time, enforcing at most one
// proposal per symbol per sealed candle.
func (c *SymbolContext) AlreadyProposedFor(openTime time.Time) bool {
	return c.LastCandleOpen.Equal(openTime)
}
