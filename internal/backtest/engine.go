// Package backtest replays a symbol's historical candle series through
// the live analyst/risk/execution pipeline so an operator can validate
// a strategy and risk-appetite score against history before running it
// unattended. The replay loop indexes over candles, scores each close,
// enters and exits through the same decimal-based domain/analyst/risk/
// execution stack and in-memory mock broker a live run uses, then
// closes any remainder and computes summary metrics, so a backtest run
// exercises the exact same code path a live run does.
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/tradebotlabs/trading-engine/internal/analyst"
	brokermock "github.com/tradebotlabs/trading-engine/internal/broker/mock"
	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/execution"
	"github.com/tradebotlabs/trading-engine/internal/indicators"
	"github.com/tradebotlabs/trading-engine/internal/portfolio"
	"github.com/tradebotlabs/trading-engine/internal/risk"
)

// Engine replays one symbol's sealed candle history through a fresh
// Analyst/Manager/Executor/Broker stack built just for the run. Candles
// are fed strictly in order, one at a time, so OnCandleClosed never
// sees a candle before the bar it closes on — the same no-look-ahead
// discipline a live orchestrator worker gets for free from the
// sentinel's sealed-candle stream.
type Engine struct {
	cfg    SimulatorConfig
	indCfg *indicators.IndicatorConfig
	log    zerolog.Logger
}

// NewEngine constructs a replay engine. indCfg may be nil, in which
// case indicators.DefaultConfig is used.
func NewEngine(cfg SimulatorConfig, indCfg *indicators.IndicatorConfig, log zerolog.Logger) *Engine {
	if indCfg == nil {
		indCfg = indicators.DefaultConfig()
	}
	return &Engine{cfg: cfg, indCfg: indCfg, log: log.With().Str("component", "backtest").Logger()}
}

// Run replays candles (ascending by OpenTime, already sealed) for a
// single symbol and returns the full performance report.
func (e *Engine) Run(ctx context.Context, symbol domain.Symbol, candles []domain.Candle) (*Result, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("backtest: no candles supplied for %s", symbol)
	}
	startedAt := time.Now()

	broker := brokermock.New(brokermock.Config{
		Symbols:        []domain.Symbol{symbol},
		InitialCash:    e.cfg.InitialCapital,
		CommissionRate: e.cfg.CommissionRate,
		SlippageBps:    int64(e.cfg.SlippageBps),
		Seed:           e.cfg.Seed,
	}, e.log)

	port := portfolio.New(e.log)
	port.ReplaceFromBroker(e.cfg.InitialCapital, nil, candles[0].OpenTime)

	store := newMemoryRiskStore()
	riskMgr, err := risk.New(risk.Config{
		RiskAppetiteScore: e.cfg.RiskAppetiteScore,
		CorrelationWindow: 30,
	}, alwaysOnline{}, port, neutralSentiment{}, store, e.log)
	if err != nil {
		return nil, fmt.Errorf("backtest: constructing risk manager: %w", err)
	}

	exec := execution.New(broker, port, riskMgr.Reservations(), riskMgr, execution.DefaultConfig(), e.log)

	proposals := make(chan domain.TradeProposal, 16)
	brain := analyst.New(proposals, e.indCfg, e.cfg.RiskAppetiteScore, e.log)

	events, err := broker.AccountEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("backtest: subscribing to account events: %w", err)
	}

	tracker := newTradeTracker(symbol)
	result := &Result{Config: e.cfg, StartTime: startedAt}
	peak := e.cfg.InitialCapital

	for _, candle := range candles {
		pos := port.Snapshot().Positions[symbol]

		broker.SetLastPrice(symbol, candle.Close)
		port.UpdatePrice(symbol, candle.Close)

		brain.OnCandleClosed(ctx, candle, pos)
		e.drainProposals(ctx, proposals, riskMgr, exec, events, tracker, candle.CloseTime)

		equity := port.Snapshot().Equity(port.LastPrice)
		if equity.GreaterThan(peak) {
			peak = equity
		}
		drawdown := decimal.Zero
		if peak.IsPositive() {
			drawdown = peak.Sub(equity).Div(peak)
		}
		result.EquityCurve = append(result.EquityCurve, EquityPoint{
			Timestamp: candle.CloseTime,
			Equity:    equity,
			Cash:      port.Snapshot().Cash,
			Drawdown:  drawdown,
		})
	}

	final := candles[len(candles)-1]
	if pos := port.Snapshot().Positions[symbol]; pos.IsOpen() {
		e.liquidate(ctx, symbol, pos, exec, events, tracker, final.CloseTime)
	}

	result.Trades = tracker.trades
	result.EndTime = time.Now()
	result.ExecutionTime = result.EndTime.Sub(startedAt)
	tfSeconds := int64(3600)
	if secs, ok := candles[0].Timeframe.Duration(); ok {
		tfSeconds = secs
	}
	result.Metrics = computeMetrics(e.cfg, result, final.Close, candles[0].Close, tfSeconds)
	return result, nil
}

// drainProposals evaluates and submits every proposal the Analyst
// queued from the candle just closed, draining synchronously since the
// mock broker fills inline and publishes its account event before
// Submit returns.
func (e *Engine) drainProposals(ctx context.Context, proposals <-chan domain.TradeProposal, riskMgr *risk.Manager, exec *execution.Executor, events <-chan domain.AccountEvent, tracker *tradeTracker, now time.Time) {
	for {
		select {
		case p := <-proposals:
			order, rejection, ok := riskMgr.Evaluate(p, now)
			if !ok {
				e.log.Debug().Str("code", string(rejection.Code)).Str("reason", rejection.Reason).Msg("proposal rejected in replay")
				continue
			}
			if err := exec.Submit(ctx, order); err != nil {
				e.log.Warn().Err(err).Str("symbol", string(order.Symbol)).Msg("order submission failed in replay")
				continue
			}
			e.drainFills(exec, events, tracker, order)
		default:
			return
		}
	}
}

func (e *Engine) drainFills(exec *execution.Executor, events <-chan domain.AccountEvent, tracker *tradeTracker, order domain.Order) {
	for {
		select {
		case evt := <-events:
			if evt.Type == domain.AccountEventFill || evt.Type == domain.AccountEventPartialFill {
				tracker.apply(order, evt.FillQty, evt.FillPrice, evt.Fee, evt.Timestamp)
			}
			exec.ApplyAccountEvent(evt)
		default:
			return
		}
	}
}

// liquidate closes any position still open at the end of the replay
// window at the broker's current mark (the final candle's close, set
// by the last loop iteration), so the report reflects a fully realized
// return rather than stranding mark-to-market PnL.
func (e *Engine) liquidate(ctx context.Context, symbol domain.Symbol, pos domain.Position, exec *execution.Executor, events <-chan domain.AccountEvent, tracker *tradeTracker, now time.Time) {
	side := domain.SideSell
	if pos.Quantity.IsNegative() {
		side = domain.SideBuy
	}
	order := domain.Order{
		ID:          domain.NewOrderID(),
		Symbol:      symbol,
		Side:        side,
		Kind:        domain.OrderMarket,
		Quantity:    pos.Quantity.Abs(),
		Status:      domain.OrderPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		StrategyID:  tracker.strategy(),
		ExitReason:  "backtest_end",
	}
	if err := exec.Submit(ctx, order); err != nil {
		e.log.Warn().Err(err).Msg("failed to liquidate remaining position at end of replay")
		return
	}
	e.drainFills(exec, events, tracker, order)
}

// alwaysOnline satisfies risk.ConnectionChecker: a backtest has no
// connection to lose.
type alwaysOnline struct{}

func (alwaysOnline) Online() bool { return true }

// neutralSentiment satisfies risk.SentimentSource: no sentiment feed is
// replayed, so the sentiment gate never fires, matching spec's
// documented behavior when no sentiment provider is configured.
type neutralSentiment struct{}

func (neutralSentiment) IsExtremeFear() (bool, bool) { return false, false }

// memoryRiskStore satisfies risk.RiskStateStore entirely in memory; a
// backtest run never needs its circuit-breaker state to survive
// restart.
type memoryRiskStore struct {
	state domain.RiskState
}

func newMemoryRiskStore() *memoryRiskStore {
	return &memoryRiskStore{}
}

func (s *memoryRiskStore) Load() (domain.RiskState, error) {
	return s.state, nil
}

func (s *memoryRiskStore) Save(state domain.RiskState) error {
	s.state = state
	return nil
}

// computeMetrics derives the report's summary statistics from the
// recorded trades and equity curve. Sharpe/Sortino are dimensionless
// ratios, not cash, so the per-bar return series is computed in
// float64 via gonum/stat and converted back to the report's native
// decimal fields only at the boundary.
func computeMetrics(cfg SimulatorConfig, result *Result, finalClose, firstClose decimal.Decimal, tfSeconds int64) Metrics {
	m := Metrics{
		StartingCapital: cfg.InitialCapital,
	}
	if len(result.EquityCurve) > 0 {
		m.EndingCapital = result.EquityCurve[len(result.EquityCurve)-1].Equity
	} else {
		m.EndingCapital = cfg.InitialCapital
	}
	m.NetProfit = m.EndingCapital.Sub(m.StartingCapital)
	if m.StartingCapital.IsPositive() {
		m.TotalReturnPct = m.NetProfit.Div(m.StartingCapital).Mul(decimal.NewFromInt(100))
	}
	if firstClose.IsPositive() {
		m.BuyHoldReturnPct = finalClose.Sub(firstClose).Div(firstClose).Mul(decimal.NewFromInt(100))
	}

	maxDD := decimal.Zero
	for _, pt := range result.EquityCurve {
		if pt.Drawdown.GreaterThan(maxDD) {
			maxDD = pt.Drawdown
		}
	}
	m.MaxDrawdownPct = maxDD.Mul(decimal.NewFromInt(100))

	m.TotalTrades = len(result.Trades)
	var totalWin, totalLoss decimal.Decimal
	for _, t := range result.Trades {
		if t.NetProfit.IsPositive() {
			m.WinningTrades++
			totalWin = totalWin.Add(t.NetProfit)
		} else {
			m.LosingTrades++
			totalLoss = totalLoss.Add(t.NetProfit.Abs())
		}
	}
	if m.TotalTrades > 0 {
		m.WinRate = decimal.NewFromInt(int64(m.WinningTrades)).Div(decimal.NewFromInt(int64(m.TotalTrades))).Mul(decimal.NewFromInt(100))
	}
	if m.WinningTrades > 0 {
		m.AvgWin = totalWin.Div(decimal.NewFromInt(int64(m.WinningTrades)))
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = totalLoss.Div(decimal.NewFromInt(int64(m.LosingTrades)))
	}
	if totalLoss.IsPositive() {
		m.ProfitFactor = totalWin.Div(totalLoss)
	}

	returns := barReturns(result.EquityCurve)
	if len(returns) > 1 {
		barsPerYear := float64(365*24*3600) / float64(tfSeconds)
		annualization := math.Sqrt(barsPerYear)

		mean := stat.Mean(returns, nil)
		stdDev := stat.StdDev(returns, nil)
		if stdDev > 0 {
			m.SharpeRatio = (mean / stdDev) * annualization
		}

		var downside []float64
		for _, r := range returns {
			if r < 0 {
				downside = append(downside, r)
			}
		}
		if len(downside) > 1 {
			downsideStd := stat.StdDev(downside, nil)
			if downsideStd > 0 {
				m.SortinoRatio = (mean / downsideStd) * annualization
			}
		}
	}

	return m
}

// barReturns converts the decimal equity curve to a float64 per-bar
// simple-return series for the statistics boundary.
func barReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if !prev.IsPositive() {
			continue
		}
		ret, _ := curve[i].Equity.Sub(prev).Div(prev).Float64()
		returns = append(returns, ret)
	}
	return returns
}

