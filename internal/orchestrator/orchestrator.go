// Package orchestrator wires the sentinel, analyst, risk manager, and
// executor into the long-lived pipeline: market data in, trade
// proposals through the risk gate, orders out, account events fed
// back. It owns no trading logic of its own — every decision is made
// by the component it calls.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tradebotlabs/trading-engine/internal/analyst"
	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/execution"
	"github.com/tradebotlabs/trading-engine/internal/portfolio"
	"github.com/tradebotlabs/trading-engine/internal/risk"
	"github.com/tradebotlabs/trading-engine/internal/sentinel"
	"github.com/tradebotlabs/trading-engine/internal/storage"
)

// noopSentiment satisfies risk.SentimentSource when no external
// sentiment feed is configured; the sentiment gate never fires.
type noopSentiment struct{}

func (noopSentiment) IsExtremeFear() (bool, bool) { return false, false }

// Orchestrator is the engine's top-level coordinator.
type Orchestrator struct {
	log zerolog.Logger
	cfg Config

	producer domain.MarketDataProducer
	sink     domain.ExecutionSink
	data     *storage.DataService

	portfolio *portfolio.StateManager
	health    *sentinel.ConnectionHealth
	sentry    *sentinel.Sentinel
	brain     *analyst.Analyst
	risk      *risk.Manager
	executor  *execution.Executor

	marketEvents chan domain.MarketEvent
	proposals    chan domain.TradeProposal
	broadcast    *Broadcaster

	symbolWorkersMu sync.Mutex
	symbolWorkers   map[domain.Symbol]chan domain.Candle
	lastClose       map[domain.Symbol]float64

	wg sync.WaitGroup
}

// New constructs an Orchestrator. producer/sink select the live venue
// or the mock broker depending on configured mode; data backs warmup,
// persistence, and risk-state durability.
func New(cfg Config, producer domain.MarketDataProducer, sink domain.ExecutionSink, data *storage.DataService, log zerolog.Logger) (*Orchestrator, error) {
	log = log.With().Str("component", "orchestrator").Logger()

	port := portfolio.New(log)
	health := sentinel.NewConnectionHealth()

	marketEvents := make(chan domain.MarketEvent, cfg.MarketEventBuffer)
	proposals := make(chan domain.TradeProposal, cfg.ProposalBuffer)

	sentry := sentinel.New(producer, health, marketEvents, log)
	brain := analyst.New(proposals, cfg.Indicators, cfg.Risk.RiskAppetiteScore, log)

	riskStateRepo := storage.NewRiskStateRepository(data.DB())
	riskMgr, err := risk.New(cfg.Risk, health, port, noopSentiment{}, riskStateRepo, log)
	if err != nil {
		return nil, err
	}

	exec := execution.New(sink, port, riskMgr.Reservations(), riskMgr, cfg.Executor, log)

	return &Orchestrator{
		log:           log,
		cfg:           cfg,
		producer:      producer,
		sink:          sink,
		data:          data,
		portfolio:     port,
		health:        health,
		sentry:        sentry,
		brain:         brain,
		risk:          riskMgr,
		executor:      exec,
		marketEvents:  marketEvents,
		proposals:     proposals,
		broadcast:     NewBroadcaster(log),
		symbolWorkers: make(map[domain.Symbol]chan domain.Candle),
		lastClose:     make(map[domain.Symbol]float64),
	}, nil
}

// Subscribe registers a new event subscriber for the API layer's
// websocket hub, identified by a caller-chosen id (e.g. a connection
// id) so it can Unsubscribe later.
func (o *Orchestrator) Subscribe(id string) chan Event {
	return o.broadcast.Subscribe(id)
}

// Unsubscribe removes a previously registered subscriber.
func (o *Orchestrator) Unsubscribe(id string) {
	o.broadcast.Unsubscribe(id)
}

// Metrics returns the same rollup periodically broadcast as
// EventMetrics, for the API layer to serve on demand (a dashboard
// request, or the initial payload sent to a websocket client on
// connect, before the next MonitorInterval tick).
func (o *Orchestrator) Metrics() MetricsSnapshot {
	return o.snapshotMetrics()
}

// Portfolio returns the current account snapshot: cash, open
// positions, and high-water marks.
func (o *Orchestrator) Portfolio() domain.PortfolioSnapshot {
	return o.portfolio.Snapshot()
}

// LastPrice returns the most recently observed price for symbol, for
// valuing positions in API responses.
func (o *Orchestrator) LastPrice(symbol domain.Symbol) (decimal.Decimal, bool) {
	return o.portfolio.LastPrice(symbol)
}

// RiskState returns the risk manager's persistent circuit-breaker
// bookkeeping.
func (o *Orchestrator) RiskState() domain.RiskState {
	return o.risk.State()
}

// ResetCircuitBreaker manually clears a tripped circuit breaker,
// for an operator who has reviewed the cause and wants to resume
// trading before the next scheduled session rollover.
func (o *Orchestrator) ResetCircuitBreaker(now time.Time) error {
	return o.risk.ManualReset(now)
}

// CancelOrder cancels a single working order.
func (o *Orchestrator) CancelOrder(ctx context.Context, id domain.OrderID) error {
	return o.executor.Cancel(ctx, id)
}

// CancelAllOrders cancels every working order on symbol.
func (o *Orchestrator) CancelAllOrders(ctx context.Context, symbol domain.Symbol) error {
	return o.executor.CancelAll(ctx, symbol)
}

// Data exposes the underlying persistence layer for read-only
// historical queries (order/trade/candle history) the API layer
// serves directly from SQLite rather than through the Orchestrator.
func (o *Orchestrator) Data() *storage.DataService {
	return o.data
}

func (o *Orchestrator) emit(kind EventKind, data interface{}) {
	o.broadcast.Broadcast(Event{Kind: kind, Timestamp: time.Now().UTC(), Data: data})
}

// Run starts every long-lived task and blocks until ctx is canceled,
// then drains in-flight work and shuts the executor down gracefully.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.warmup(ctx); err != nil {
		return err
	}
	if err := o.executor.ReconcileStartup(ctx); err != nil {
		o.log.Error().Err(err).Msg("startup reconciliation failed")
	}

	connEvents := o.health.Subscribe()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.sentry.Run(ctx, o.cfg.Symbols); err != nil && ctx.Err() == nil {
			o.log.Error().Err(err).Msg("sentinel stopped")
		}
	}()

	o.wg.Add(1)
	go o.runMarketEventLoop(ctx)

	o.wg.Add(1)
	go o.runProposalLoop(ctx)

	o.wg.Add(1)
	go o.runAccountEventLoop(ctx)

	o.wg.Add(1)
	go o.runConnectionEventLoop(ctx, connEvents)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.executor.RunReconciliationLoop(ctx)
	}()

	o.wg.Add(1)
	go o.runMonitorLoop(ctx)

	o.wg.Add(1)
	go o.runCorrelationLoop(ctx)

	o.wg.Add(1)
	go o.runSessionRolloverLoop(ctx)

	<-ctx.Done()
	return o.shutdown()
}

// warmup primes each symbol's SymbolContext with persisted candle
// history so indicators and regime detection aren't cold on restart.
func (o *Orchestrator) warmup(ctx context.Context) error {
	for _, symbol := range o.cfg.Symbols {
		candles, err := o.data.LoadWarmup(symbol, o.cfg.Primary, analyst.CandleWindowSize)
		if err != nil {
			o.log.Warn().Err(err).Str("symbol", symbol.String()).Msg("warmup load failed")
			continue
		}
		for _, c := range candles {
			o.brain.OnCandleClosed(ctx, c, domain.Position{Symbol: symbol})
			select {
			case <-o.proposals: // a proposal from replayed history is discarded, never evaluated
			default:
			}
			o.brain.ReleaseInFlight(symbol)
		}
	}
	return nil
}

// workerFor returns the serializing goroutine's input channel for a
// symbol, starting the goroutine on first use. The Analyst requires
// same-symbol calls never overlap; routing every candle for a symbol
// through one channel enforces that without a lock in the hot path.
func (o *Orchestrator) workerFor(ctx context.Context, symbol domain.Symbol) chan<- domain.Candle {
	o.symbolWorkersMu.Lock()
	defer o.symbolWorkersMu.Unlock()

	ch, ok := o.symbolWorkers[symbol]
	if ok {
		return ch
	}
	ch = make(chan domain.Candle, 16)
	o.symbolWorkers[symbol] = ch

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case candle, ok := <-ch:
				if !ok {
					return
				}
				snap := o.portfolio.Snapshot()
				pos := snap.Positions[symbol]
				o.brain.OnCandleClosed(ctx, candle, pos)
			}
		}
	}()
	return ch
}

// runMarketEventLoop drains sealed candles and quotes from the
// sentinel, persisting candles, updating last-price, and dispatching
// primary-timeframe candles to the per-symbol Analyst worker while
// routing other enabled timeframes into the higher-timeframe view.
func (o *Orchestrator) runMarketEventLoop(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-o.marketEvents:
			if !ok {
				return
			}
			o.handleMarketEvent(ctx, evt)
		}
	}
}

func (o *Orchestrator) handleMarketEvent(ctx context.Context, evt domain.MarketEvent) {
	switch {
	case evt.Quote != nil:
		o.portfolio.UpdatePrice(evt.Quote.Symbol, evt.Quote.Price)

	case evt.Candle != nil:
		c := *evt.Candle
		o.portfolio.UpdatePrice(c.Symbol, c.Close)
		o.data.EnqueueCandle(c)

		if c.Timeframe == o.cfg.Primary {
			if ret, ok := o.closeToCloseReturn(c); ok {
				o.risk.Correlation().PushReturn(c.Symbol, ret)
			}
			select {
			case o.workerFor(ctx, c.Symbol) <- c:
			case <-ctx.Done():
			}
		} else {
			o.brain.OnHigherTimeframeCandle(c)
		}

	case evt.Account != nil:
		// Account events normally arrive on the sink's own
		// AccountEvents stream; handled here defensively in case a
		// MarketDataProducer implementation multiplexes both.
		o.executor.ApplyAccountEvent(*evt.Account)
	}
}

// closeToCloseReturn computes the fractional return between this
// sealed candle's close and the previous one, feeding the correlation
// tracker's rolling return window.
func (o *Orchestrator) closeToCloseReturn(c domain.Candle) (float64, bool) {
	o.symbolWorkersMu.Lock()
	defer o.symbolWorkersMu.Unlock()
	if o.lastClose == nil {
		o.lastClose = make(map[domain.Symbol]float64)
	}
	price, _ := c.Close.Float64()
	last, ok := o.lastClose[c.Symbol]
	o.lastClose[c.Symbol] = price
	if !ok || last == 0 {
		return 0, false
	}
	return (price - last) / last, true
}

// runProposalLoop evaluates every proposal the Analyst emits against
// the risk chain, submitting accepted orders and broadcasting
// rejections. The Analyst is always released afterward so a future
// candle close for the same symbol isn't starved.
func (o *Orchestrator) runProposalLoop(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case proposal, ok := <-o.proposals:
			if !ok {
				return
			}
			now := time.Now().UTC()
			order, rejection, accepted := o.risk.Evaluate(proposal, now)
			if accepted {
				o.emit(EventProposal, proposal)
				if err := o.executor.Submit(ctx, order); err != nil {
					o.log.Error().Err(err).Str("symbol", proposal.Symbol.String()).Msg("order submission failed")
				} else {
					o.emit(EventOrder, order)
				}
			} else {
				o.emit(EventRejection, rejection)
				switch rejection.Code {
				case domain.RejectCircuitBreaker, domain.RejectDailyLossExceeded, domain.RejectDrawdownExceeded, domain.RejectConsecutiveLosses:
					o.emit(EventCircuitBreaker, rejection)
				}
			}
			o.brain.ReleaseInFlight(proposal.Symbol)
		}
	}
}

// runAccountEventLoop opens the execution sink's account-event stream
// and applies every fill/cancel/reject to the Executor, persisting
// fills and broadcasting them.
func (o *Orchestrator) runAccountEventLoop(ctx context.Context) {
	defer o.wg.Done()
	events, err := o.sink.AccountEvents(ctx)
	if err != nil {
		o.log.Error().Err(err).Msg("failed to open account event stream")
		o.health.ReportState(domain.StreamExecution, domain.ConnOffline, time.Now().UTC(), err.Error())
		return
	}
	o.health.ReportState(domain.StreamExecution, domain.ConnOnline, time.Now().UTC(), "")

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				o.health.ReportState(domain.StreamExecution, domain.ConnOffline, time.Now().UTC(), "stream closed")
				return
			}
			o.health.ReportEvent(domain.StreamExecution, time.Now().UTC())
			o.executor.ApplyAccountEvent(evt)

			if evt.Type == domain.AccountEventFill || evt.Type == domain.AccountEventPartialFill {
				_ = o.data.PersistFill(storage.FillRecord{
					OrderID:    evt.OrderID,
					Symbol:     evt.Symbol,
					Quantity:   evt.FillQty,
					Price:      evt.FillPrice,
					ExecutedAt: evt.Timestamp,
				})
				o.emit(EventFill, evt)
			}
		}
	}
}

// runConnectionEventLoop rebroadcasts debounced connection status
// transitions from ConnectionHealth so operators see stream outages.
func (o *Orchestrator) runConnectionEventLoop(ctx context.Context, events <-chan domain.ConnectionStatusEvent) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			o.emit(EventConnection, evt)
		}
	}
}

// runMonitorLoop periodically sweeps stale limit orders and publishes
// a portfolio/risk metrics snapshot.
func (o *Orchestrator) runMonitorLoop(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(o.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			o.executor.MonitorOpenOrders(ctx, now)
			o.emit(EventMetrics, o.snapshotMetrics())
		}
	}
}

func (o *Orchestrator) snapshotMetrics() MetricsSnapshot {
	snap := o.portfolio.Snapshot()
	equity := snap.Equity(o.portfolio.LastPrice)
	state := o.risk.State()
	return MetricsSnapshot{
		Equity:                equity,
		Cash:                  snap.Cash,
		OpenPositions:         len(snap.Positions),
		Drawdown:              state.Drawdown(state.SessionStartEquity.Add(state.DailyRealizedPnL)),
		DailyLossPct:          state.DailyLossPct(),
		ConsecutiveLosses:     state.ConsecutiveLosses,
		CircuitBreakerTripped: state.CircuitBreakerTripped,
		ConnectionOnline:      o.health.Online(),
	}
}

// runCorrelationLoop refreshes the pairwise correlation matrix used by
// the sector/correlation risk gate.
func (o *Orchestrator) runCorrelationLoop(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(o.cfg.CorrelationRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.risk.Correlation().Refresh()
		}
	}
}

// runSessionRolloverLoop rolls the trading session over at each UTC
// midnight crossing, resetting the daily-loss baseline.
func (o *Orchestrator) runSessionRolloverLoop(ctx context.Context) {
	defer o.wg.Done()
	for {
		now := time.Now().UTC()
		next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case t := <-timer.C:
			startEquity := o.portfolio.StartSession(t)
			if err := o.risk.RolloverSession(t, startEquity, false); err != nil {
				o.log.Error().Err(err).Msg("session rollover failed")
			}
		}
	}
}

// ApplyRiskScore hot-swaps the active risk-appetite tier, waiting for
// every symbol's in-flight proposal to resolve first so a reload never
// changes sizing parameters mid-evaluation. Returns false if ctx is
// canceled before the Analyst goes quiescent; the caller (the config
// watcher) logs and the previous score stays active.
func (o *Orchestrator) ApplyRiskScore(ctx context.Context, score int) bool {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if o.brain.Quiescent() {
			o.brain.SetRiskScore(score)
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// shutdown stops accepting new orders, cancels open orders, and
// optionally liquidates, per the Executor's configured policy.
func (o *Orchestrator) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), o.cfg.Executor.ShutdownGrace)
	defer cancel()

	snap := o.portfolio.Snapshot()
	err := o.executor.Shutdown(shutdownCtx, snap.Positions)

	o.wg.Wait()
	o.broadcast.Close()
	return err
}
