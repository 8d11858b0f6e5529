package handlers

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	brokermock "github.com/tradebotlabs/trading-engine/internal/broker/mock"
	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/orchestrator"
	"github.com/tradebotlabs/trading-engine/internal/storage"
)

func newTestHarness(t *testing.T) (*orchestrator.Orchestrator, *storage.SQLiteDB) {
	t.Helper()
	db, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	data := storage.NewDataService(db, time.Minute)
	broker := brokermock.New(brokermock.Config{
		Symbols:     []domain.Symbol{"BTC/USD"},
		InitialCash: decimal.NewFromInt(10000),
	}, zerolog.Nop())

	cfg := orchestrator.DefaultConfig()
	cfg.Symbols = []domain.Symbol{"BTC/USD"}

	orch, err := orchestrator.New(cfg, broker, broker, data, zerolog.Nop())
	require.NoError(t, err)
	return orch, db
}
