package orchestrator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/execution"
	"github.com/tradebotlabs/trading-engine/internal/indicators"
	"github.com/tradebotlabs/trading-engine/internal/risk"
)

// Config bundles everything the Orchestrator needs to wire the
// sentinel, analyst, risk manager, and executor together.
type Config struct {
	Symbols    []domain.Symbol
	Primary    domain.Timeframe // timeframe OnCandleClosed runs against
	Trend      domain.Timeframe // higher timeframe fed as a confirmation view
	Timeframes []domain.Timeframe // every timeframe the sentinel aggregates

	Indicators *indicators.IndicatorConfig
	Risk       risk.Config
	Executor   execution.Config

	MonitorInterval            time.Duration
	CorrelationRefreshInterval time.Duration

	MarketEventBuffer int
	ProposalBuffer    int
}

// DefaultConfig returns sane standalone defaults; real deployments
// build a Config from internal/config.Config instead.
func DefaultConfig() Config {
	return Config{
		Primary:                    domain.Timeframe1h,
		Trend:                      domain.Timeframe4h,
		Timeframes:                 []domain.Timeframe{domain.Timeframe1m, domain.Timeframe5m, domain.Timeframe15m, domain.Timeframe1h, domain.Timeframe4h, domain.Timeframe1d},
		Indicators:                 indicators.DefaultConfig(),
		Risk:                       risk.Config{RiskAppetiteScore: 5, CorrelationWindow: 30},
		Executor:                   execution.DefaultConfig(),
		MonitorInterval:            15 * time.Second,
		CorrelationRefreshInterval: 5 * time.Minute,
		MarketEventBuffer:          1024,
		ProposalBuffer:             64,
	}
}

// EventKind names the categories of operator-facing events the
// Orchestrator emits on its broadcast channel: proposals, rejections,
// order lifecycle, fills, circuit-breaker trips, connection
// transitions, regime changes, and periodic metrics snapshots.
type EventKind string

const (
	EventProposal       EventKind = "proposal"
	EventRejection      EventKind = "rejection"
	EventOrder          EventKind = "order"
	EventFill           EventKind = "fill"
	EventCircuitBreaker EventKind = "circuit_breaker"
	EventConnection     EventKind = "connection"
	EventRegime         EventKind = "regime"
	EventMetrics        EventKind = "metrics"
)

// Event is the single envelope type published on the Orchestrator's
// broadcast channel; the API layer's websocket hub fans these out
// verbatim to subscribers.
type Event struct {
	Kind      EventKind   `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// RegimeChange reports a symbol's regime transitioning, for operator
// dashboards that chart regime over time.
type RegimeChange struct {
	Symbol domain.Symbol `json:"symbol"`
	From   domain.Regime `json:"from"`
	To     domain.Regime `json:"to"`
}

// MetricsSnapshot is a periodic rollup of portfolio and risk state,
// published once per MonitorInterval tick.
type MetricsSnapshot struct {
	Equity                decimal.Decimal `json:"equity"`
	Cash                  decimal.Decimal `json:"cash"`
	OpenPositions         int             `json:"openPositions"`
	Drawdown              decimal.Decimal `json:"drawdown"`
	DailyLossPct          decimal.Decimal `json:"dailyLossPct"`
	ConsecutiveLosses     int             `json:"consecutiveLosses"`
	CircuitBreakerTripped bool            `json:"circuitBreakerTripped"`
	ConnectionOnline      bool            `json:"connectionOnline"`
}
