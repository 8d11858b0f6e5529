package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/orchestrator"
	"github.com/tradebotlabs/trading-engine/internal/storage"
)

// OrderHandler serves order history and lets the operator cancel
// still-working orders. Placing a new order is intentionally not
// exposed here for the same reason PositionHandler omits manual
// position edits: order creation belongs exclusively to the
// analyst/risk/execution pipeline.
type OrderHandler struct {
	orchestrator *orchestrator.Orchestrator
	orders       *storage.OrderRepository
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(orch *orchestrator.Orchestrator, orders *storage.OrderRepository) *OrderHandler {
	return &OrderHandler{orchestrator: orch, orders: orders}
}

// List returns orders created within the optional from/to query
// window (RFC3339), defaulting to the last 24 hours.
func (h *OrderHandler) List(c echo.Context) error {
	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	if v := c.QueryParam("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			from = t
		}
	}
	if v := c.QueryParam("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			to = t
		}
	}

	orders, err := h.orders.GetByDateRange(from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, orders)
}

// Open returns every order still working at a venue.
func (h *OrderHandler) Open(c echo.Context) error {
	orders, err := h.orders.GetOpen()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, orders)
}

// Cancel cancels a single working order.
func (h *OrderHandler) Cancel(c echo.Context) error {
	id := domain.OrderID(c.Param("id"))
	if err := h.orchestrator.CancelOrder(c.Request().Context(), id); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "canceled", "orderId": string(id)})
}

// CancelAll cancels every working order on a symbol.
func (h *OrderHandler) CancelAll(c echo.Context) error {
	symbol := domain.NormalizeSymbol(c.QueryParam("symbol"))
	if symbol == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "symbol query parameter is required"})
	}
	if err := h.orchestrator.CancelAllOrders(c.Request().Context(), symbol); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "canceled", "symbol": string(symbol)})
}
