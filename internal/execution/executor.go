// Package execution places and monitors broker orders, authors the
// Portfolio, and applies account events. It is the Portfolio's sole
// writer.
package execution

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

// ReservationReleaser is the collaborator that frees a buying-power
// hold once an order reaches a terminal state; satisfied by
// *risk.ReservationSet without an import cycle.
type ReservationReleaser interface {
	Release(token string)
}

// RiskStateUpdater applies a realized fill outcome to persisted risk
// bookkeeping; satisfied by *risk.Manager.
type RiskStateUpdater interface {
	ApplyFillOutcome(realizedPnL decimal.Decimal, now time.Time) error
}

// PortfolioWriter is the subset of *portfolio.StateManager the
// Executor mutates.
type PortfolioWriter interface {
	ReplaceFromBroker(cash decimal.Decimal, positions []domain.Position, now time.Time)
	ApplyFill(symbol domain.Symbol, side domain.OrderSide, qty, price, fee decimal.Decimal, now time.Time) domain.Position
	MarkUnsynchronized(now time.Time)
	LastPrice(domain.Symbol) (decimal.Decimal, bool)
}

// Config tunes Executor timers.
type Config struct {
	LimitOrderTimeout  time.Duration
	ReconcileInterval  time.Duration
	ShutdownGrace      time.Duration
	LiquidateOnShutdown bool
}

// DefaultConfig returns sensible defaults for the submit/monitor/
// shutdown timers.
func DefaultConfig() Config {
	return Config{
		LimitOrderTimeout:  30 * time.Second,
		ReconcileInterval:  5 * time.Minute,
		ShutdownGrace:      30 * time.Second,
		LiquidateOnShutdown: false,
	}
}

// Executor submits and monitors orders against an ExecutionSink,
// applies account events to the Portfolio, and handles graceful
// shutdown/liquidation.
type Executor struct {
	log   zerolog.Logger
	cfg   Config
	sink  domain.ExecutionSink
	port  PortfolioWriter
	resv  ReservationReleaser
	risk  RiskStateUpdater

	mu     sync.Mutex
	orders map[domain.OrderID]*domain.Order

	acceptingNew bool
}

// New builds an Executor.
func New(sink domain.ExecutionSink, port PortfolioWriter, resv ReservationReleaser, risk RiskStateUpdater, cfg Config, log zerolog.Logger) *Executor {
	return &Executor{
		log:          log.With().Str("component", "executor").Logger(),
		cfg:          cfg,
		sink:         sink,
		port:         port,
		resv:         resv,
		risk:         risk,
		orders:       make(map[domain.OrderID]*domain.Order),
		acceptingNew: true,
	}
}

func retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 1 * time.Minute
	return backoff.WithContext(b, ctx)
}

// Submit sends order to the broker, retrying transient failures with
// exponential backoff. A persistent failure terminates the order as
// Rejected and releases its reservation.
func (e *Executor) Submit(ctx context.Context, order domain.Order) error {
	e.mu.Lock()
	accepting := e.acceptingNew
	e.mu.Unlock()
	if !accepting {
		return domain.NewKindedError(domain.ErrKindBusinessRejection, domain.ErrOrderTerminal)
	}

	local := order
	e.trackOrder(&local)

	var brokerID string
	op := func() error {
		id, err := e.sink.Submit(ctx, local)
		if err != nil {
			return err
		}
		brokerID = id
		return nil
	}

	if err := backoff.Retry(op, retryPolicy(ctx)); err != nil {
		e.log.Error().Err(err).Str("symbol", string(local.Symbol)).Msg("order submission failed permanently")
		e.terminate(&local, domain.OrderRejected, time.Now())
		return err
	}

	e.mu.Lock()
	tracked := e.orders[local.ID]
	tracked.BrokerID = brokerID
	_ = tracked.Transition(domain.OrderSubmitted, time.Now())
	e.mu.Unlock()

	e.log.Info().Str("order_id", string(local.ID)).Str("broker_id", brokerID).Str("symbol", string(local.Symbol)).Msg("order submitted")
	return nil
}

func (e *Executor) trackOrder(o *domain.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orders[o.ID] = o
}

// Cancel is idempotent: a no-op against an already-terminal order.
func (e *Executor) Cancel(ctx context.Context, orderID domain.OrderID) error {
	e.mu.Lock()
	order, ok := e.orders[orderID]
	e.mu.Unlock()
	if !ok {
		return domain.ErrOrderNotFound
	}
	if order.Status.IsTerminal() {
		return nil
	}

	op := func() error { return e.sink.Cancel(ctx, order.BrokerID, order.Symbol) }
	if err := backoff.Retry(op, retryPolicy(ctx)); err != nil {
		return err
	}

	e.mu.Lock()
	now := time.Now()
	_ = order.Transition(domain.OrderCanceled, now)
	e.mu.Unlock()
	e.releaseReservation(order)
	return nil
}

// CancelAll cancels every open order, optionally scoped to a symbol
// (empty string cancels across all symbols).
func (e *Executor) CancelAll(ctx context.Context, symbol domain.Symbol) error {
	e.mu.Lock()
	targets := make([]domain.OrderID, 0, len(e.orders))
	for id, o := range e.orders {
		if o.Status.IsTerminal() {
			continue
		}
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		targets = append(targets, id)
	}
	e.mu.Unlock()

	var firstErr error
	for _, id := range targets {
		if err := e.Cancel(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// MonitorOpenOrders performs one Cancel & Replace sweep: any limit
// order still unfilled past cfg.LimitOrderTimeout is canceled and
// replaced with a market order of the remaining quantity, inheriting
// stop_loss/take_profit. Intended to run on a periodic ticker.
func (e *Executor) MonitorOpenOrders(ctx context.Context, now time.Time) {
	e.mu.Lock()
	var stale []*domain.Order
	for _, o := range e.orders {
		if o.Kind != domain.OrderLimit || o.Status.IsTerminal() {
			continue
		}
		if now.Sub(o.CreatedAt) > e.cfg.LimitOrderTimeout {
			stale = append(stale, o)
		}
	}
	e.mu.Unlock()

	for _, o := range stale {
		if err := e.Cancel(ctx, o.ID); err != nil {
			e.log.Warn().Err(err).Str("order_id", string(o.ID)).Msg("cancel-and-replace: cancel failed, will retry next sweep")
			continue
		}
		replacement := domain.Order{
			ID:               domain.NewOrderID(),
			Symbol:           o.Symbol,
			Side:             o.Side,
			Kind:             domain.OrderMarket,
			Quantity:         o.RemainingQty(),
			Status:           domain.OrderPending,
			CreatedAt:        now,
			UpdatedAt:        now,
			StopLoss:         o.StopLoss,
			TakeProfit:       o.TakeProfit,
			StrategyID:       o.StrategyID,
			RegimeDetected:   o.RegimeDetected,
			EntryReason:      o.EntryReason,
			ReservationToken: o.ReservationToken,
		}
		e.log.Info().Str("original_order_id", string(o.ID)).Str("replacement_order_id", string(replacement.ID)).Msg("cancel-and-replace: limit order timed out, submitting market replacement")
		if err := e.Submit(ctx, replacement); err != nil {
			e.log.Error().Err(err).Msg("cancel-and-replace: replacement submission failed")
		}
	}
}

// ApplyAccountEvent folds a broker account event into the tracked
// order and the Portfolio, atomically from the caller's perspective.
func (e *Executor) ApplyAccountEvent(evt domain.AccountEvent) {
	e.mu.Lock()
	order, ok := e.orders[evt.OrderID]
	e.mu.Unlock()
	if !ok {
		e.log.Warn().Str("order_id", string(evt.OrderID)).Msg("account event for unknown order, ignoring")
		return
	}

	switch evt.Type {
	case domain.AccountEventFill, domain.AccountEventPartialFill:
		prevQty := order.Quantity.Sub(order.RemainingQty())
		e.mu.Lock()
		order.ApplyFill(evt.FillQty, evt.FillPrice, evt.Timestamp)
		e.mu.Unlock()

		pos := e.port.ApplyFill(order.Symbol, order.Side, evt.FillQty, evt.FillPrice, evt.Fee, evt.Timestamp)

		if order.Status.IsTerminal() {
			e.releaseReservation(order)
		}
		if !pos.IsOpen() && !prevQty.IsZero() {
			realized := evt.FillQty.Mul(evt.FillPrice.Sub(order.AvgFillPrice)).Neg()
			if err := e.risk.ApplyFillOutcome(realized, evt.Timestamp); err != nil {
				e.log.Error().Err(err).Msg("failed to apply fill outcome to risk state")
			}
		}

	case domain.AccountEventCancelAck:
		e.mu.Lock()
		_ = order.Transition(domain.OrderCanceled, evt.Timestamp)
		e.mu.Unlock()
		e.releaseReservation(order)

	case domain.AccountEventRejectAck:
		e.mu.Lock()
		_ = order.Transition(domain.OrderRejected, evt.Timestamp)
		e.mu.Unlock()
		e.releaseReservation(order)

	case domain.AccountEventDividend, domain.AccountEventFee:
		e.log.Info().Str("symbol", string(evt.Symbol)).Str("cash_delta", evt.CashDelta.String()).Msg("non-fill account event applied")
	}
}

func (e *Executor) terminate(order *domain.Order, to domain.OrderStatus, now time.Time) {
	e.mu.Lock()
	_ = order.Transition(to, now)
	e.mu.Unlock()
	e.releaseReservation(order)
}

func (e *Executor) releaseReservation(order *domain.Order) {
	if order.ReservationToken == "" {
		return
	}
	e.resv.Release(order.ReservationToken)
}

// ReconcileStartup fetches open orders and positions from the broker.
// Locally Pending orders with no broker counterpart are canceled;
// broker orders unknown locally are adopted. The Portfolio is
// populated before callers observe synchronized=true.
func (e *Executor) ReconcileStartup(ctx context.Context) error {
	cash, positions, err := e.sink.FetchPortfolio(ctx)
	if err != nil {
		return err
	}
	brokerOrders, err := e.sink.FetchOpenOrders(ctx)
	if err != nil {
		return err
	}

	brokerByID := make(map[string]domain.Order, len(brokerOrders))
	for _, o := range brokerOrders {
		brokerByID[o.BrokerID] = o
	}

	e.mu.Lock()
	for id, local := range e.orders {
		if local.Status == domain.OrderPending {
			if _, known := brokerByID[local.BrokerID]; !known {
				_ = local.Transition(domain.OrderCanceled, time.Now())
				e.releaseReservationLocked(local)
				e.log.Warn().Str("order_id", string(id)).Msg("reconciliation: local pending order had no broker counterpart, canceled")
			}
		}
	}
	for _, bo := range brokerOrders {
		found := false
		for _, local := range e.orders {
			if local.BrokerID == bo.BrokerID {
				found = true
				break
			}
		}
		if !found {
			adopted := bo
			e.orders[adopted.ID] = &adopted
			e.log.Warn().Str("broker_id", bo.BrokerID).Msg("reconciliation: adopted broker order unknown locally")
		}
	}
	e.mu.Unlock()

	e.port.ReplaceFromBroker(cash, positions, time.Now())
	return nil
}

func (e *Executor) releaseReservationLocked(order *domain.Order) {
	if order.ReservationToken != "" {
		e.resv.Release(order.ReservationToken)
	}
}

// ReconcilePeriodic compares broker-reported positions against the
// local Portfolio view; on any discrepancy it logs a structured
// warning and adopts broker truth.
func (e *Executor) ReconcilePeriodic(ctx context.Context) error {
	cash, positions, err := e.sink.FetchPortfolio(ctx)
	if err != nil {
		e.port.MarkUnsynchronized(time.Now())
		return err
	}
	e.port.ReplaceFromBroker(cash, positions, time.Now())
	e.log.Debug().Int("positions", len(positions)).Msg("periodic reconciliation complete")
	return nil
}

// RunReconciliationLoop runs ReconcilePeriodic on cfg.ReconcileInterval
// until ctx is canceled; intended to be launched as a long-lived task.
func (e *Executor) RunReconciliationLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.ReconcilePeriodic(ctx); err != nil {
				e.log.Warn().Err(err).Msg("periodic reconciliation failed")
			}
		}
	}
}

// Shutdown executes the graceful shutdown sequence: stop accepting new
// proposals, cancel all open orders, optionally liquidate positions
// via market orders, persist RiskState is the caller's responsibility
// (RiskManager owns that store) once Shutdown returns.
func (e *Executor) Shutdown(ctx context.Context, positions map[domain.Symbol]domain.Position) error {
	e.mu.Lock()
	e.acceptingNew = false
	e.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, e.cfg.ShutdownGrace)
	defer cancel()

	if err := e.CancelAll(shutdownCtx, ""); err != nil {
		e.log.Error().Err(err).Msg("shutdown: cancel-all encountered errors")
	}

	if !e.cfg.LiquidateOnShutdown {
		return nil
	}

	for symbol, pos := range positions {
		if !pos.IsOpen() {
			continue
		}
		side := domain.SideSell
		if pos.Quantity.IsNegative() {
			side = domain.SideBuy
		}
		order := domain.Order{
			ID:        domain.NewOrderID(),
			Symbol:    symbol,
			Side:      side,
			Kind:      domain.OrderMarket,
			Quantity:  pos.Quantity.Abs(),
			Status:    domain.OrderPending,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
			EntryReason: "shutdown_liquidation",
		}
		e.log.Warn().Str("symbol", string(symbol)).Msg("shutdown: liquidating position with blind market order")
		if err := e.Submit(shutdownCtx, order); err != nil {
			e.log.Error().Err(err).Str("symbol", string(symbol)).Msg("shutdown: liquidation order failed")
		}
	}
	return nil
}
