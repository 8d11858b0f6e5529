package analyst

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/indicators"
	"github.com/tradebotlabs/trading-engine/internal/strategy"
)

// CandleWindowSize bounds how many sealed primary-timeframe candles a
// SymbolContext retains; large enough for the longest built-in
// strategy's warmup (trend_conservative's TrendMAPeriod+10) plus
// headroom for regime/indicator lookbacks.
const CandleWindowSize = 300

// TimeframeViewWindow bounds how many sealed candles of a non-primary
// timeframe a SymbolContext retains for multi-timeframe confirmation.
const TimeframeViewWindow = 60

// Analyst owns every SymbolContext exclusively and runs the per-symbol
// pipeline on each sealed candle: regime detection, indicator update,
// position sync, trailing-stop maintenance, signal generation, and
// proposal emission. No other component may mutate a SymbolContext.
type Analyst struct {
	log zerolog.Logger

	mu       sync.Mutex
	contexts map[domain.Symbol]*domain.SymbolContext
	indMgrs  map[domain.Symbol]*indicators.Manager

	registry *strategy.Registry
	regimes  *RegimeDetector
	indCfg   *indicators.IndicatorConfig

	riskScore int // current risk-score tier; hot-reloadable

	proposals chan<- domain.TradeProposal
}

// New constructs an Analyst publishing proposals onto the given
// bounded channel, which the orchestrator wires to the RiskManager.
func New(proposals chan<- domain.TradeProposal, indCfg *indicators.IndicatorConfig, riskScore int, log zerolog.Logger) *Analyst {
	if indCfg == nil {
		indCfg = indicators.DefaultConfig()
	}
	return &Analyst{
		log:       log.With().Str("component", "analyst").Logger(),
		contexts:  make(map[domain.Symbol]*domain.SymbolContext),
		indMgrs:   make(map[domain.Symbol]*indicators.Manager),
		registry:  strategy.NewRegistry(),
		regimes:   NewRegimeDetector(DefaultRegimeConfig()),
		indCfg:    indCfg,
		riskScore: riskScore,
		proposals: proposals,
	}
}

// SetRiskScore updates the active strategy tier. Takes effect on the
// next candle close per symbol — it never preempts an in-flight
// pipeline run.
func (a *Analyst) SetRiskScore(score int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.riskScore = score
}

// contextFor returns the owned SymbolContext for symbol, creating one
// on first use.
func (a *Analyst) contextFor(symbol domain.Symbol) *domain.SymbolContext {
	a.mu.Lock()
	defer a.mu.Unlock()
	sc, ok := a.contexts[symbol]
	if !ok {
		sc = &domain.SymbolContext{Symbol: symbol, TimeframeViews: make(map[domain.Timeframe][]domain.Candle)}
		a.contexts[symbol] = sc
	}
	return sc
}

// indicatorManagerFor returns the owned incremental indicator Manager
// for symbol, creating one on first use. Keeping one Manager per
// symbol for the life of the Analyst is what makes OnCandleClosed's
// indicator step incremental: each sealed candle feeds Manager.Update
// exactly once instead of rebuilding every indicator's state from
// scratch over the whole window every time.
func (a *Analyst) indicatorManagerFor(symbol domain.Symbol) *indicators.Manager {
	a.mu.Lock()
	defer a.mu.Unlock()
	mgr, ok := a.indMgrs[symbol]
	if !ok {
		mgr = indicators.NewManager(a.indCfg)
		mgr.SetMaxWindow(CandleWindowSize)
		a.indMgrs[symbol] = mgr
	}
	return mgr
}

// OnCandleClosed runs the full pipeline for one sealed candle. It is
// invoked synchronously by the orchestrator's per-symbol goroutine, so
// two candles for the same symbol are never processed concurrently;
// cross-symbol calls run in parallel and touch disjoint SymbolContexts.
func (a *Analyst) OnCandleClosed(ctx context.Context, candle domain.Candle, position domain.Position) {
	sc := a.contextFor(candle.Symbol)

	if sc.AlreadyProposedFor(candle.OpenTime) {
		return
	}
	if sc.InFlight {
		return
	}

	sc.PushCandle(candle, CandleWindowSize)
	sc.CurrentPosition = position

	if len(sc.CandleWindow) < 20 {
		return // not enough bars to do anything meaningful yet
	}

	opens, highs, lows, closes, volumes := candleSeries(sc.CandleWindow)

	open, _ := candle.Open.Float64()
	high, _ := candle.High.Float64()
	low, _ := candle.Low.Float64()
	closePrice, _ := candle.Close.Float64()
	volume, _ := candle.Volume.Float64()

	mgr := a.indicatorManagerFor(candle.Symbol)
	analysis := mgr.Update(open, high, low, closePrice, volume)
	sc.PushRSI(analysis.RSI.Value)

	hurst := indicators.Hurst(closes)
	regime := a.regimes.Detect(candle.Symbol, analysis, hurst)
	sc.LastRegime = regime

	a.maintainTrailingStop(sc, analysis, candle.Close)

	a.mu.Lock()
	score := a.riskScore
	a.mu.Unlock()
	stratID := strategy.StrategyForRiskScore(score)
	strat, ok := a.registry.Get(stratID)
	if !ok {
		return
	}

	stratCtx := &strategy.Context{
		Symbol:       candle.Symbol,
		Opens:        opens,
		Highs:        highs,
		Lows:         lows,
		Closes:       closes,
		Volumes:      volumes,
		Analysis:     analysis,
		Regime:       regime,
		HurstExp:     hurst,
		CurrentPrice: candle.Close,
		Position:     position,
	}

	signal, ok := strat.Analyze(stratCtx)
	if !ok {
		sc.LastCandleOpen = candle.OpenTime
		return
	}
	sc.LastSignal = signal
	sc.LastCandleOpen = candle.OpenTime
	sc.LastProposalAt = time.Now().UTC()
	sc.InFlight = true

	proposal := domain.TradeProposal{
		Symbol:     candle.Symbol,
		Side:       signal.Side,
		StopLoss:   signal.StopLoss,
		TakeProfit: signal.TakeProfit,
		StrategyID: stratID,
		Reason:     signal.Reason,
		Regime:     regime,
		Confidence: signal.Confidence,
		Aggressive: signal.Aggressive,
		Timestamp:  sc.LastProposalAt,
	}

	select {
	case a.proposals <- proposal:
	case <-ctx.Done():
	}
}

// OnHigherTimeframeCandle records a sealed candle from a timeframe
// other than the one driving OnCandleClosed, for strategies that read
// SymbolContext.TimeframeViews to confirm against a higher timeframe
// before acting on the primary one.
func (a *Analyst) OnHigherTimeframeCandle(candle domain.Candle) {
	sc := a.contextFor(candle.Symbol)
	a.mu.Lock()
	defer a.mu.Unlock()
	view := sc.TimeframeViews[candle.Timeframe]
	view = append(view, candle)
	if len(view) > TimeframeViewWindow {
		view = view[len(view)-TimeframeViewWindow:]
	}
	sc.TimeframeViews[candle.Timeframe] = view
}

// ReleaseInFlight clears InFlight once the RiskManager has resolved a
// proposal (accepted or rejected), re-enabling hot reconfiguration and
// future proposals for this symbol.
func (a *Analyst) ReleaseInFlight(symbol domain.Symbol) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if sc, ok := a.contexts[symbol]; ok {
		sc.InFlight = false
	}
}

// Quiescent reports whether no symbol has a proposal in flight, so a
// config reload can wait for a safe point before swapping indicators.
func (a *Analyst) Quiescent() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, sc := range a.contexts {
		if sc.InFlight {
			return false
		}
	}
	return true
}

func (a *Analyst) maintainTrailingStop(sc *domain.SymbolContext, analysis indicators.AnalysisResult, price decimal.Decimal) {
	pos := sc.CurrentPosition
	if !pos.IsOpen() || pos.TrailingStop == nil {
		return
	}
	atr := decimal.NewFromFloat(analysis.ATR.ATR)
	pos.TrailingStop.Tighten(pos.IsLong(), price, atr)
}

func candleSeries(candles []domain.Candle) (opens, highs, lows, closes, volumes []float64) {
	n := len(candles)
	opens = make([]float64, n)
	highs = make([]float64, n)
	lows = make([]float64, n)
	closes = make([]float64, n)
	volumes = make([]float64, n)
	for i, c := range candles {
		opens[i], _ = c.Open.Float64()
		highs[i], _ = c.High.Float64()
		lows[i], _ = c.Low.Float64()
		closes[i], _ = c.Close.Float64()
		volumes[i], _ = c.Volume.Float64()
	}
	return
}
