package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradebotlabs/trading-engine/internal/auth"
	"github.com/tradebotlabs/trading-engine/internal/backtest"
	brokermock "github.com/tradebotlabs/trading-engine/internal/broker/mock"
	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/indicators"
	"github.com/tradebotlabs/trading-engine/internal/orchestrator"
	"github.com/tradebotlabs/trading-engine/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *auth.Service) {
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

	authSvc, err := auth.New("test-secret-value-long-enough", time.Hour)
	require.NoError(t, err)

	srv := NewServer(DefaultServerConfig(), Deps{
		Orchestrator: orch,
		AuthService:  authSvc,
		DB:           db,
		IndicatorCfg: indicators.DefaultConfig(),
		BacktestCfg:  backtest.DefaultSimulatorConfig(),
	}, zerolog.Nop())

	return srv, authSvc
}

func TestHealthIsReachableWithoutAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCandlesRouteIsReachableWithoutAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/candles/BTC%2FUSD/1h", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRouteRejectsMissingToken(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/risk", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutePassesWithValidToken(t *testing.T) {
	srv, authSvc := newTestServer(t)
	token, err := authSvc.IssueOperatorToken()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/risk", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
