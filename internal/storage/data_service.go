package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

// DataService batches sealed candles for async persistence and fronts
// the repositories used for warmup and reconciliation. In-memory
// candle history lives in domain.SymbolContext.CandleWindow; this
// service only owns the durable copy.
type DataService struct {
	db         *SQLiteDB
	candleRepo *CandleRepository
	orderRepo  *OrderRepository
	tradeRepo  *TradeRepository

	persistInterval time.Duration
	pendingCandles  []domain.Candle
	pendingMu       sync.Mutex

	running bool
	cancel  context.CancelFunc
}

// NewDataService constructs a DataService over an open SQLiteDB.
func NewDataService(db *SQLiteDB, persistInterval time.Duration) *DataService {
	if persistInterval <= 0 {
		persistInterval = 10 * time.Second
	}
	return &DataService{
		db:              db,
		candleRepo:      NewCandleRepository(db),
		orderRepo:       NewOrderRepository(db),
		tradeRepo:       NewTradeRepository(db),
		persistInterval: persistInterval,
		pendingCandles:  make([]domain.Candle, 0, 100),
	}
}

// Start launches the background persistence goroutine.
func (ds *DataService) Start(ctx context.Context) {
	if ds.running {
		return
	}
	ctx, ds.cancel = context.WithCancel(ctx)
	ds.running = true
	go ds.persistenceLoop(ctx)
	log.Info().Dur("interval", ds.persistInterval).Msg("data service started")
}

// Stop halts the persistence goroutine after a final flush.
func (ds *DataService) Stop() {
	if !ds.running {
		return
	}
	ds.cancel()
	ds.running = false
	ds.flushPendingCandles()
	log.Info().Msg("data service stopped")
}

func (ds *DataService) persistenceLoop(ctx context.Context) {
	ticker := time.NewTicker(ds.persistInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			ds.flushPendingCandles()
			return
		case <-ticker.C:
			ds.flushPendingCandles()
		}
	}
}

func (ds *DataService) flushPendingCandles() {
	ds.pendingMu.Lock()
	if len(ds.pendingCandles) == 0 {
		ds.pendingMu.Unlock()
		return
	}
	candles := ds.pendingCandles
	ds.pendingCandles = make([]domain.Candle, 0, 100)
	ds.pendingMu.Unlock()

	if err := ds.candleRepo.InsertBatch(candles); err != nil {
		log.Error().Err(err).Int("count", len(candles)).Msg("failed to persist candles")
		ds.pendingMu.Lock()
		ds.pendingCandles = append(candles, ds.pendingCandles...)
		ds.pendingMu.Unlock()
		return
	}
	log.Debug().Int("count", len(candles)).Msg("persisted candles")
}

// EnqueueCandle queues a sealed candle for async persistence. Unsealed
// candles are never persisted.
func (ds *DataService) EnqueueCandle(c domain.Candle) {
	if !c.Sealed {
		return
	}
	ds.pendingMu.Lock()
	ds.pendingCandles = append(ds.pendingCandles, c)
	ds.pendingMu.Unlock()
}

// LoadWarmup returns the last n sealed candles for a symbol/timeframe,
// oldest first, for priming a fresh SymbolContext on startup.
func (ds *DataService) LoadWarmup(symbol domain.Symbol, tf domain.Timeframe, n int) ([]domain.Candle, error) {
	return ds.candleRepo.GetLast(symbol, tf, n)
}

// PersistOrder upserts an order's current state immediately, bypassing
// the candle batching path; order writes are not batched because the
// Executor needs them durable before acknowledging a transition.
func (ds *DataService) PersistOrder(o domain.Order) error {
	return ds.orderRepo.Upsert(o)
}

// PersistFill records a fill immediately.
func (ds *DataService) PersistFill(f FillRecord) error {
	return ds.tradeRepo.Insert(f)
}

// OpenOrders returns every non-terminal order, used by
// ReconcileStartup to rebuild in-memory order tracking after a crash.
func (ds *DataService) OpenOrders() ([]domain.Order, error) {
	return ds.orderRepo.GetOpen()
}

// DB returns the underlying connection, for callers constructing
// additional repositories (RiskStateRepository, SettingsRepository).
func (ds *DataService) DB() *SQLiteDB {
	return ds.db
}

// Stats returns row counts for operator visibility.
func (ds *DataService) Stats() (*DBStats, error) {
	return ds.db.GetStats()
}

// Close stops persistence and closes the database.
func (ds *DataService) Close() error {
	ds.Stop()
	return ds.db.Close()
}
