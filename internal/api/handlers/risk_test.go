package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

func TestRiskHandlerStatusReturnsCurrentState(t *testing.T) {
	orch, _ := newTestHarness(t)
	h := NewRiskHandler(orch)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/risk", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Status(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var state domain.RiskState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.False(t, state.CircuitBreakerTripped)
}

func TestRiskHandlerResetCircuitBreakerSucceeds(t *testing.T) {
	orch, _ := newTestHarness(t)
	h := NewRiskHandler(orch)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/risk/circuit-breaker/reset", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.ResetCircuitBreaker(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
