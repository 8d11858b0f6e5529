package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// SQLiteDB wraps the database connection.
type SQLiteDB struct {
	db   *sql.DB
	path string
}

// NewSQLiteDB creates a new SQLite database connection.
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sqliteDB := &SQLiteDB{
		db:   db,
		path: dbPath,
	}

	if err := sqliteDB.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("SQLite database initialized")
	return sqliteDB, nil
}

// DB returns the underlying sql.DB.
func (s *SQLiteDB) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// migrate runs database migrations. Money columns are TEXT, holding a
// decimal.Decimal's canonical string form; nothing downstream of the
// repositories ever scans a money column into float64.
func (s *SQLiteDB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			open_time DATETIME NOT NULL,
			close_time DATETIME NOT NULL,
			open TEXT NOT NULL,
			high TEXT NOT NULL,
			low TEXT NOT NULL,
			close TEXT NOT NULL,
			volume TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(symbol, timeframe, open_time)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_candles_symbol_timeframe_time
		 ON candles(symbol, timeframe, open_time DESC)`,

		// One row per order across its entire lifecycle, keyed by the
		// locally-minted order id; updated in place as status advances.
		`CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			kind TEXT NOT NULL,
			quantity TEXT NOT NULL,
			limit_price TEXT NOT NULL,
			status TEXT NOT NULL,
			broker_id TEXT,
			filled_quantity TEXT NOT NULL DEFAULT '0',
			avg_fill_price TEXT NOT NULL DEFAULT '0',
			stop_loss TEXT NOT NULL DEFAULT '0',
			take_profit TEXT NOT NULL DEFAULT '0',
			strategy_id TEXT,
			regime_detected TEXT,
			entry_reason TEXT,
			exit_reason TEXT,
			slippage TEXT NOT NULL DEFAULT '0',
			reservation_token TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_orders_symbol_status
		 ON orders(symbol, status)`,

		// Append-only fill ledger; one row per fill event applied to an
		// order (partial fills produce multiple rows for one order_id).
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity TEXT NOT NULL,
			price TEXT NOT NULL,
			strategy_id TEXT,
			executed_at DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_trades_symbol_time
		 ON trades(symbol, executed_at DESC)`,

		// Single-row circuit-breaker bookkeeping, upserted atomically on
		// every write; row id is pinned to 1.
		`CREATE TABLE IF NOT EXISTS risk_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			session_start_equity TEXT NOT NULL,
			equity_hwm TEXT NOT NULL,
			daily_realized_pnl TEXT NOT NULL,
			consecutive_losses INTEGER NOT NULL,
			last_session_date DATETIME NOT NULL,
			circuit_breaker_tripped BOOLEAN NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		// Hot-reloadable operator settings (risk appetite score,
		// per-symbol overrides, trading-enabled flag) as key/JSON pairs.
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, migration)
		}
	}

	log.Debug().Msg("database migrations completed")
	return nil
}

// Exec executes a query without returning rows.
func (s *SQLiteDB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return s.db.Exec(query, args...)
}

// Query executes a query that returns rows.
func (s *SQLiteDB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.Query(query, args...)
}

// QueryRow executes a query that returns a single row.
func (s *SQLiteDB) QueryRow(query string, args ...interface{}) *sql.Row {
	return s.db.QueryRow(query, args...)
}

// Begin starts a transaction.
func (s *SQLiteDB) Begin() (*sql.Tx, error) {
	return s.db.Begin()
}

// Vacuum runs VACUUM to optimize the database.
func (s *SQLiteDB) Vacuum() error {
	_, err := s.db.Exec("VACUUM")
	return err
}

// Checkpoint forces a WAL checkpoint.
func (s *SQLiteDB) Checkpoint() error {
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// CleanupCandles drops candle history older than the retention window;
// orders, trades and risk_state are never pruned.
func (s *SQLiteDB) CleanupCandles(retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	if _, err := s.db.Exec("DELETE FROM candles WHERE open_time < ?", cutoff); err != nil {
		return fmt.Errorf("failed to cleanup candles: %w", err)
	}
	return nil
}

// DBStats reports row counts for operator visibility.
type DBStats struct {
	CandleCount int64
	OrderCount  int64
	TradeCount  int64
}

// GetStats returns database statistics.
func (s *SQLiteDB) GetStats() (*DBStats, error) {
	stats := &DBStats{}
	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM candles", &stats.CandleCount},
		{"SELECT COUNT(*) FROM orders", &stats.OrderCount},
		{"SELECT COUNT(*) FROM trades", &stats.TradeCount},
	}
	for _, q := range queries {
		if err := s.db.QueryRow(q.query).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	return stats, nil
}
