package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/storage"
)

func TestOrderHandlerListDefaultsToLast24Hours(t *testing.T) {
	orch, db := newTestHarness(t)
	h := NewOrderHandler(orch, storage.NewOrderRepository(db))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.List(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null\n", rec.Body.String(), "no orders recorded scans to a nil slice, which json.Marshal renders as null")
}

func TestOrderHandlerOpenReturnsEmptyWhenNoneWorking(t *testing.T) {
	orch, db := newTestHarness(t)
	h := NewOrderHandler(orch, storage.NewOrderRepository(db))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/open", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Open(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null\n", rec.Body.String())
}

func TestOrderHandlerCancelUnknownOrderReturnsBadRequest(t *testing.T) {
	orch, db := newTestHarness(t)
	h := NewOrderHandler(orch, storage.NewOrderRepository(db))
	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/orders/"+string(domain.NewOrderID()), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(string(domain.NewOrderID()))

	require.NoError(t, h.Cancel(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderHandlerCancelAllRequiresSymbol(t *testing.T) {
	orch, db := newTestHarness(t)
	h := NewOrderHandler(orch, storage.NewOrderRepository(db))
	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.CancelAll(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
