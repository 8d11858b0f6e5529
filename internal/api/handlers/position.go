package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/orchestrator"
)

// PositionHandler serves the current book. There is no manual
// close/stop-loss/take-profit editing endpoint here: every position
// change flows through the risk-gated proposal pipeline, and a manual
// override on a live position would let an operator bypass the
// buying-power and circuit-breaker checks that pipeline exists to
// enforce. The one operator lever over an open position is canceling
// its still-working orders, which OrderHandler exposes.
type PositionHandler struct {
	orchestrator *orchestrator.Orchestrator
}

// NewPositionHandler creates a new position handler.
func NewPositionHandler(orch *orchestrator.Orchestrator) *PositionHandler {
	return &PositionHandler{orchestrator: orch}
}

// PositionView adds the current mark and unrealized P&L to a raw
// domain.Position for display.
type PositionView struct {
	domain.Position
	LastPrice     interface{} `json:"lastPrice,omitempty"`
	UnrealizedPnL interface{} `json:"unrealizedPnL,omitempty"`
}

func (h *PositionHandler) view(symbol domain.Symbol, pos domain.Position) PositionView {
	view := PositionView{Position: pos}
	if px, ok := h.orchestrator.LastPrice(symbol); ok {
		view.LastPrice = px
		view.UnrealizedPnL = pos.UnrealizedPnL(px)
	}
	return view
}

// List returns every open position, valued at the last known price.
func (h *PositionHandler) List(c echo.Context) error {
	snap := h.orchestrator.Portfolio()
	views := make([]PositionView, 0, len(snap.Positions))
	for symbol, pos := range snap.Positions {
		if pos.IsOpen() {
			views = append(views, h.view(symbol, pos))
		}
	}
	return c.JSON(http.StatusOK, views)
}

// Get returns a single symbol's position.
func (h *PositionHandler) Get(c echo.Context) error {
	symbol := domain.NormalizeSymbol(c.Param("symbol"))
	snap := h.orchestrator.Portfolio()
	pos, ok := snap.Positions[symbol]
	if !ok || !pos.IsOpen() {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no open position for symbol"})
	}
	return c.JSON(http.StatusOK, h.view(symbol, pos))
}
