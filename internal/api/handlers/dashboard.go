package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/orchestrator"
	"github.com/tradebotlabs/trading-engine/internal/storage"
)

// DashboardHandler serves the single aggregate view the operator
// dashboard renders on load: current metrics, open positions, and a
// recent-activity feed. Everything it returns is also reachable
// individually through PositionHandler/OrderHandler/RiskHandler, or
// streamed live over the websocket hub as it changes.
type DashboardHandler struct {
	orchestrator *orchestrator.Orchestrator
	trades       *storage.TradeRepository
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(orch *orchestrator.Orchestrator, trades *storage.TradeRepository) *DashboardHandler {
	return &DashboardHandler{orchestrator: orch, trades: trades}
}

// DashboardResponse is the dashboard's full payload.
type DashboardResponse struct {
	Metrics      orchestrator.MetricsSnapshot `json:"metrics"`
	Positions    []domain.Position            `json:"positions"`
	RecentTrades []storage.FillRecord         `json:"recentTrades"`
	Timestamp    time.Time                    `json:"timestamp"`
}

// Get returns the dashboard payload.
func (h *DashboardHandler) Get(c echo.Context) error {
	snap := h.orchestrator.Portfolio()
	positions := make([]domain.Position, 0, len(snap.Positions))
	for _, pos := range snap.Positions {
		if pos.IsOpen() {
			positions = append(positions, pos)
		}
	}

	recent, err := h.trades.GetRecent(20)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, DashboardResponse{
		Metrics:      h.orchestrator.Metrics(),
		Positions:    positions,
		RecentTrades: recent,
		Timestamp:    time.Now().UTC(),
	})
}
