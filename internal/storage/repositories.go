package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

// CandleRepository persists sealed candles, one row per (symbol,
// timeframe, open_time); writing the same key again overwrites that row.
type CandleRepository struct {
	db *SQLiteDB
}

// NewCandleRepository constructs a CandleRepository.
func NewCandleRepository(db *SQLiteDB) *CandleRepository {
	return &CandleRepository{db: db}
}

// Insert upserts a single sealed candle.
func (r *CandleRepository) Insert(c domain.Candle) error {
	row := FromDomainCandle(c)
	_, err := r.db.Exec(`
		INSERT INTO candles (symbol, timeframe, open_time, close_time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, timeframe, open_time) DO UPDATE SET
			close_time = excluded.close_time,
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume
	`, row.Symbol, row.Timeframe, row.OpenTime, row.CloseTime,
		row.Open.String(), row.High.String(), row.Low.String(), row.Close.String(), row.Volume.String())
	if err != nil {
		return fmt.Errorf("insert candle: %w", err)
	}
	return nil
}

// InsertBatch upserts candles inside a single transaction, used by
// DataService to flush its queue of sealed candles.
func (r *CandleRepository) InsertBatch(candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO candles (symbol, timeframe, open_time, close_time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, timeframe, open_time) DO UPDATE SET
			close_time = excluded.close_time,
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		row := FromDomainCandle(c)
		if _, err := stmt.Exec(row.Symbol, row.Timeframe, row.OpenTime, row.CloseTime,
			row.Open.String(), row.High.String(), row.Low.String(), row.Close.String(), row.Volume.String()); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert candle batch: %w", err)
		}
	}
	return tx.Commit()
}

// GetRange returns sealed candles for a symbol/timeframe within
// [from, to], oldest first, for warmup and backtest replay.
func (r *CandleRepository) GetRange(symbol domain.Symbol, tf domain.Timeframe, from, to time.Time) ([]domain.Candle, error) {
	rows, err := r.db.Query(`
		SELECT symbol, timeframe, open_time, close_time, open, high, low, close, volume
		FROM candles WHERE symbol = ? AND timeframe = ? AND open_time >= ? AND open_time <= ?
		ORDER BY open_time ASC
	`, symbol.String(), string(tf), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCandles(rows)
}

// GetLast returns the most recent n sealed candles, oldest first.
func (r *CandleRepository) GetLast(symbol domain.Symbol, tf domain.Timeframe, n int) ([]domain.Candle, error) {
	rows, err := r.db.Query(`
		SELECT symbol, timeframe, open_time, close_time, open, high, low, close, volume
		FROM (
			SELECT symbol, timeframe, open_time, close_time, open, high, low, close, volume
			FROM candles WHERE symbol = ? AND timeframe = ?
			ORDER BY open_time DESC LIMIT ?
		) ORDER BY open_time ASC
	`, symbol.String(), string(tf), n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCandles(rows)
}

// DeleteOlderThan prunes candle history before cutoff.
func (r *CandleRepository) DeleteOlderThan(cutoff time.Time) error {
	_, err := r.db.Exec("DELETE FROM candles WHERE open_time < ?", cutoff)
	return err
}

func scanCandles(rows *sql.Rows) ([]domain.Candle, error) {
	var out []domain.Candle
	for rows.Next() {
		var row CandleRow
		var openStr, highStr, lowStr, closeStr, volStr string
		if err := rows.Scan(&row.Symbol, &row.Timeframe, &row.OpenTime, &row.CloseTime,
			&openStr, &highStr, &lowStr, &closeStr, &volStr); err != nil {
			return nil, err
		}
		var err error
		if row.Open, err = decimal.NewFromString(openStr); err != nil {
			return nil, err
		}
		if row.High, err = decimal.NewFromString(highStr); err != nil {
			return nil, err
		}
		if row.Low, err = decimal.NewFromString(lowStr); err != nil {
			return nil, err
		}
		if row.Close, err = decimal.NewFromString(closeStr); err != nil {
			return nil, err
		}
		if row.Volume, err = decimal.NewFromString(volStr); err != nil {
			return nil, err
		}
		out = append(out, row.ToDomainCandle())
	}
	return out, rows.Err()
}

// OrderRepository persists the order lifecycle, one row per order
// updated in place as its status advances.
type OrderRepository struct {
	db *SQLiteDB
}

// NewOrderRepository constructs an OrderRepository.
func NewOrderRepository(db *SQLiteDB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Upsert inserts a new order or overwrites the row for an existing id.
func (r *OrderRepository) Upsert(o domain.Order) error {
	_, err := r.db.Exec(`
		INSERT INTO orders (order_id, symbol, side, kind, quantity, limit_price, status,
			broker_id, filled_quantity, avg_fill_price, stop_loss, take_profit,
			strategy_id, regime_detected, entry_reason, exit_reason, slippage,
			reservation_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			status = excluded.status,
			broker_id = excluded.broker_id,
			filled_quantity = excluded.filled_quantity,
			avg_fill_price = excluded.avg_fill_price,
			exit_reason = excluded.exit_reason,
			slippage = excluded.slippage,
			reservation_token = excluded.reservation_token,
			updated_at = excluded.updated_at
	`, string(o.ID), o.Symbol.String(), o.Side.String(), o.Kind.String(),
		o.Quantity.String(), o.LimitPrice.String(), o.Status.String(),
		o.BrokerID, o.FilledQty.String(), o.AvgFillPrice.String(),
		o.StopLoss.String(), o.TakeProfit.String(),
		o.StrategyID, o.RegimeDetected, o.EntryReason, o.ExitReason, o.Slippage.String(),
		o.ReservationToken, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert order: %w", err)
	}
	return nil
}

// GetOpen returns every order not in a terminal state, used by
// ReconcileStartup to rebuild the in-memory order table.
func (r *OrderRepository) GetOpen() ([]domain.Order, error) {
	rows, err := r.db.Query(`
		SELECT order_id, symbol, side, kind, quantity, limit_price, status, broker_id,
			filled_quantity, avg_fill_price, stop_loss, take_profit,
			strategy_id, regime_detected, entry_reason, exit_reason, slippage,
			reservation_token, created_at, updated_at
		FROM orders WHERE status IN ('PENDING', 'SUBMITTED', 'PARTIALLY_FILLED')
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// GetByDateRange returns orders created within [from, to] for
// reporting and the dashboard order history view.
func (r *OrderRepository) GetByDateRange(from, to time.Time) ([]domain.Order, error) {
	rows, err := r.db.Query(`
		SELECT order_id, symbol, side, kind, quantity, limit_price, status, broker_id,
			filled_quantity, avg_fill_price, stop_loss, take_profit,
			strategy_id, regime_detected, entry_reason, exit_reason, slippage,
			reservation_token, created_at, updated_at
		FROM orders WHERE created_at >= ? AND created_at <= ? ORDER BY created_at DESC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func scanOrders(rows *sql.Rows) ([]domain.Order, error) {
	var out []domain.Order
	for rows.Next() {
		var (
			id, symbol, side, kind, status, brokerID                      string
			quantity, limitPrice, filledQty, avgFillPrice                 string
			stopLoss, takeProfit, slippage                                string
			strategyID, regime, entryReason, exitReason, reservationToken sql.NullString
			createdAt, updatedAt                                          time.Time
		)
		if err := rows.Scan(&id, &symbol, &side, &kind, &quantity, &limitPrice, &status, &brokerID,
			&filledQty, &avgFillPrice, &stopLoss, &takeProfit,
			&strategyID, &regime, &entryReason, &exitReason, &slippage,
			&reservationToken, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		o := domain.Order{
			ID:               domain.OrderID(id),
			Symbol:           domain.Symbol(symbol),
			Side:             parseSide(side),
			Kind:             parseKind(kind),
			Quantity:         mustDecimal(quantity),
			LimitPrice:       mustDecimal(limitPrice),
			Status:           parseStatus(status),
			BrokerID:         brokerID,
			FilledQty:        mustDecimal(filledQty),
			AvgFillPrice:     mustDecimal(avgFillPrice),
			StopLoss:         mustDecimal(stopLoss),
			TakeProfit:       mustDecimal(takeProfit),
			StrategyID:       strategyID.String,
			RegimeDetected:   regime.String,
			EntryReason:      entryReason.String,
			ExitReason:       exitReason.String,
			Slippage:         mustDecimal(slippage),
			ReservationToken: reservationToken.String,
			CreatedAt:        createdAt,
			UpdatedAt:        updatedAt,
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func mustDecimal(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}

func parseSide(s string) domain.OrderSide {
	if s == "SELL" {
		return domain.SideSell
	}
	return domain.SideBuy
}

func parseKind(s string) domain.OrderKind {
	if s == "LIMIT" {
		return domain.OrderLimit
	}
	return domain.OrderMarket
}

func parseStatus(s string) domain.OrderStatus {
	switch s {
	case "SUBMITTED":
		return domain.OrderSubmitted
	case "PARTIALLY_FILLED":
		return domain.OrderPartiallyFilled
	case "FILLED":
		return domain.OrderFilled
	case "CANCELED":
		return domain.OrderCanceled
	case "REJECTED":
		return domain.OrderRejected
	case "EXPIRED":
		return domain.OrderExpired
	default:
		return domain.OrderPending
	}
}

// TradeRepository is an append-only ledger of fill events.
type TradeRepository struct {
	db *SQLiteDB
}

// NewTradeRepository constructs a TradeRepository.
func NewTradeRepository(db *SQLiteDB) *TradeRepository {
	return &TradeRepository{db: db}
}

// FillRecord is one fill applied against an order.
type FillRecord struct {
	OrderID    domain.OrderID
	Symbol     domain.Symbol
	Side       domain.OrderSide
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	StrategyID string
	ExecutedAt time.Time
}

// Insert records a fill.
func (r *TradeRepository) Insert(f FillRecord) error {
	_, err := r.db.Exec(`
		INSERT INTO trades (order_id, symbol, side, quantity, price, strategy_id, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(f.OrderID), f.Symbol.String(), f.Side.String(), f.Quantity.String(), f.Price.String(),
		f.StrategyID, f.ExecutedAt)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetBySymbol returns fills for a symbol within [from, to].
func (r *TradeRepository) GetBySymbol(symbol domain.Symbol, from, to time.Time) ([]FillRecord, error) {
	rows, err := r.db.Query(`
		SELECT order_id, symbol, side, quantity, price, strategy_id, executed_at
		FROM trades WHERE symbol = ? AND executed_at >= ? AND executed_at <= ?
		ORDER BY executed_at ASC
	`, symbol.String(), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FillRecord
	for rows.Next() {
		var (
			orderID, sym, side, qty, price string
			strategyID                     sql.NullString
			executedAt                     time.Time
		)
		if err := rows.Scan(&orderID, &sym, &side, &qty, &price, &strategyID, &executedAt); err != nil {
			return nil, err
		}
		out = append(out, FillRecord{
			OrderID:    domain.OrderID(orderID),
			Symbol:     domain.Symbol(sym),
			Side:       parseSide(side),
			Quantity:   mustDecimal(qty),
			Price:      mustDecimal(price),
			StrategyID: strategyID.String,
			ExecutedAt: executedAt,
		})
	}
	return out, rows.Err()
}

// GetRecent returns the most recent fills across every symbol, newest
// first, for the operator dashboard's activity feed.
func (r *TradeRepository) GetRecent(limit int) ([]FillRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`
		SELECT order_id, symbol, side, quantity, price, strategy_id, executed_at
		FROM trades ORDER BY executed_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FillRecord
	for rows.Next() {
		var (
			orderID, sym, side, qty, price string
			strategyID                     sql.NullString
			executedAt                     time.Time
		)
		if err := rows.Scan(&orderID, &sym, &side, &qty, &price, &strategyID, &executedAt); err != nil {
			return nil, err
		}
		out = append(out, FillRecord{
			OrderID:    domain.OrderID(orderID),
			Symbol:     domain.Symbol(sym),
			Side:       parseSide(side),
			Quantity:   mustDecimal(qty),
			Price:      mustDecimal(price),
			StrategyID: strategyID.String,
			ExecutedAt: executedAt,
		})
	}
	return out, rows.Err()
}

// RiskStateRepository persists the circuit-breaker row, satisfying
// risk.RiskStateStore.
type RiskStateRepository struct {
	db *SQLiteDB
}

// NewRiskStateRepository constructs a RiskStateRepository.
func NewRiskStateRepository(db *SQLiteDB) *RiskStateRepository {
	return &RiskStateRepository{db: db}
}

// Load returns the persisted RiskState, or its zero value if no row
// has been saved yet (fresh install).
func (r *RiskStateRepository) Load() (domain.RiskState, error) {
	var (
		sessionStart, hwm, dailyPnL string
		consecutiveLosses           int
		lastSessionDate             time.Time
		tripped                     bool
		updatedAt                   time.Time
	)
	err := r.db.QueryRow(`
		SELECT session_start_equity, equity_hwm, daily_realized_pnl, consecutive_losses,
			last_session_date, circuit_breaker_tripped, updated_at
		FROM risk_state WHERE id = 1
	`).Scan(&sessionStart, &hwm, &dailyPnL, &consecutiveLosses, &lastSessionDate, &tripped, &updatedAt)
	if err == sql.ErrNoRows {
		return domain.RiskState{}, nil
	}
	if err != nil {
		return domain.RiskState{}, fmt.Errorf("load risk state: %w", err)
	}
	return domain.RiskState{
		SessionStartEquity:    mustDecimal(sessionStart),
		EquityHWM:             mustDecimal(hwm),
		DailyRealizedPnL:      mustDecimal(dailyPnL),
		ConsecutiveLosses:     consecutiveLosses,
		LastSessionDate:       lastSessionDate,
		CircuitBreakerTripped: tripped,
		UpdatedAt:             updatedAt,
	}, nil
}

// Save atomically upserts the single risk_state row.
func (r *RiskStateRepository) Save(s domain.RiskState) error {
	_, err := r.db.Exec(`
		INSERT INTO risk_state (id, session_start_equity, equity_hwm, daily_realized_pnl,
			consecutive_losses, last_session_date, circuit_breaker_tripped, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session_start_equity = excluded.session_start_equity,
			equity_hwm = excluded.equity_hwm,
			daily_realized_pnl = excluded.daily_realized_pnl,
			consecutive_losses = excluded.consecutive_losses,
			last_session_date = excluded.last_session_date,
			circuit_breaker_tripped = excluded.circuit_breaker_tripped,
			updated_at = excluded.updated_at
	`, s.SessionStartEquity.String(), s.EquityHWM.String(), s.DailyRealizedPnL.String(),
		s.ConsecutiveLosses, s.LastSessionDate, s.CircuitBreakerTripped, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save risk state: %w", err)
	}
	return nil
}

// SettingsRepository persists hot-reloadable operator settings as
// key/JSON pairs (risk appetite score, trading-enabled flag, per-symbol
// overrides).
type SettingsRepository struct {
	db *SQLiteDB
}

// NewSettingsRepository constructs a SettingsRepository.
func NewSettingsRepository(db *SQLiteDB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns a setting's raw value, or ("", false) if unset.
func (r *SettingsRepository) Get(key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set upserts a setting's value.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// All returns every persisted setting, for config hot-reload to diff
// against.
func (r *SettingsRepository) All() (map[string]string, error) {
	rows, err := r.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}
