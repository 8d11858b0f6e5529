package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradebotlabs/trading-engine/internal/backtest"
	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/indicators"
	"github.com/tradebotlabs/trading-engine/internal/storage"
)

func newTestBacktestHandler(t *testing.T, db *storage.SQLiteDB) *BacktestHandler {
	t.Helper()
	return NewBacktestHandler(storage.NewCandleRepository(db), indicators.DefaultConfig(), backtest.DefaultSimulatorConfig(), zerolog.Nop())
}

func postJSON(t *testing.T, h *BacktestHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backtest", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h.Run(c))
	return rec
}

func TestBacktestHandlerRunRejectsMissingSymbol(t *testing.T) {
	_, db := newTestHarness(t)
	h := newTestBacktestHandler(t, db)
	rec := postJSON(t, h, `{"timeframe":"1h","from":"2026-01-01T00:00:00Z","to":"2026-01-02T00:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBacktestHandlerRunRejectsMalformedDate(t *testing.T) {
	_, db := newTestHarness(t)
	h := newTestBacktestHandler(t, db)
	rec := postJSON(t, h, `{"symbol":"BTC/USD","timeframe":"1h","from":"not-a-date","to":"2026-01-02T00:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBacktestHandlerRunReturnsUnprocessableWhenNoCandlesRecorded(t *testing.T) {
	_, db := newTestHarness(t)
	h := newTestBacktestHandler(t, db)
	rec := postJSON(t, h, `{"symbol":"BTC/USD","timeframe":"1h","from":"2026-01-01T00:00:00Z","to":"2026-01-02T00:00:00Z"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBacktestHandlerRunSucceedsOverRecordedHistory(t *testing.T) {
	_, db := newTestHarness(t)
	repo := storage.NewCandleRepository(db)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		require.NoError(t, repo.Insert(domain.Candle{
			Symbol:    "BTC/USD",
			Timeframe: domain.Timeframe1h,
			OpenTime:  base.Add(time.Duration(i) * time.Hour),
			CloseTime: base.Add(time.Duration(i+1) * time.Hour),
			Open:      decimal.NewFromInt(100),
			High:      decimal.NewFromInt(101),
			Low:       decimal.NewFromInt(99),
			Close:     decimal.NewFromInt(100).Add(decimal.NewFromInt(int64(i))),
			Volume:    decimal.NewFromInt(1),
			Sealed:    true,
		}))
	}

	h := newTestBacktestHandler(t, db)
	rec := postJSON(t, h, `{"symbol":"BTC/USD","timeframe":"1h","from":"2026-01-01T00:00:00Z","to":"2026-01-02T06:00:00Z"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}
