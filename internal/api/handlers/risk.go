package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tradebotlabs/trading-engine/internal/orchestrator"
)

// RiskHandler exposes the circuit-breaker's persistent state and the
// one manual override an operator has over it: clearing a trip after
// reviewing its cause. Tuning the risk-appetite score itself is not
// done here — it is a config.yaml field the hot-reload watcher already
// applies (see cmd/bot/main.go), keeping one source of truth for it.
type RiskHandler struct {
	orchestrator *orchestrator.Orchestrator
}

// NewRiskHandler creates a new risk handler.
func NewRiskHandler(orch *orchestrator.Orchestrator) *RiskHandler {
	return &RiskHandler{orchestrator: orch}
}

// Status returns the current circuit-breaker bookkeeping.
func (h *RiskHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.orchestrator.RiskState())
}

// ResetCircuitBreaker manually clears a tripped circuit breaker.
func (h *RiskHandler) ResetCircuitBreaker(c echo.Context) error {
	if err := h.orchestrator.ResetCircuitBreaker(time.Now().UTC()); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "reset"})
}
