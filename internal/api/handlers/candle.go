package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/storage"
)

// CandleHandler serves recorded market data. It is mounted outside
// the authenticated group: historical candles carry no account
// information worth protecting.
type CandleHandler struct {
	candles *storage.CandleRepository
}

// NewCandleHandler creates a new candle handler.
func NewCandleHandler(candles *storage.CandleRepository) *CandleHandler {
	return &CandleHandler{candles: candles}
}

// Recent returns the last N sealed candles for a symbol/timeframe.
func (h *CandleHandler) Recent(c echo.Context) error {
	symbol := domain.NormalizeSymbol(c.Param("symbol"))
	tf := domain.Timeframe(c.Param("timeframe"))

	limit := 500
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 2000 {
			limit = n
		}
	}

	candles, err := h.candles.GetLast(symbol, tf, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, candles)
}
