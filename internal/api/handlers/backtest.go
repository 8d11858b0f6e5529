package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tradebotlabs/trading-engine/internal/backtest"
	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/indicators"
	"github.com/tradebotlabs/trading-engine/internal/storage"
)

// BacktestHandler replays historical candles through backtest.Engine
// on demand. It is synchronous: a run over a long window can take a
// few seconds, which is acceptable for an operator-triggered,
// low-frequency action and keeps this handler free of the job-queue
// machinery a multi-tenant SaaS version would need.
type BacktestHandler struct {
	candles *storage.CandleRepository
	indCfg  *indicators.IndicatorConfig
	simCfg  backtest.SimulatorConfig
	log     zerolog.Logger
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(candles *storage.CandleRepository, indCfg *indicators.IndicatorConfig, simCfg backtest.SimulatorConfig, log zerolog.Logger) *BacktestHandler {
	return &BacktestHandler{candles: candles, indCfg: indCfg, simCfg: simCfg, log: log.With().Str("component", "backtest_handler").Logger()}
}

// BacktestRequest is a backtest run request. Zero-valued optional
// fields fall back to the handler's configured defaults.
type BacktestRequest struct {
	Symbol            string  `json:"symbol"`
	Timeframe         string  `json:"timeframe"`
	From              string  `json:"from"` // RFC3339
	To                string  `json:"to"`   // RFC3339
	InitialCapital    float64 `json:"initialCapital,omitempty"`
	CommissionRate    float64 `json:"commissionRate,omitempty"`
	RiskAppetiteScore int     `json:"riskAppetiteScore,omitempty"`
	Seed              int64   `json:"seed,omitempty"`
}

// Run executes a backtest over historical candles already persisted
// by the engine's own warmup/recording path and returns the full
// result: equity curve, closed trades, and summary metrics.
func (h *BacktestHandler) Run(c echo.Context) error {
	var req BacktestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Symbol == "" || req.Timeframe == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "symbol and timeframe are required"})
	}
	from, err := time.Parse(time.RFC3339, req.From)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "from must be RFC3339"})
	}
	to, err := time.Parse(time.RFC3339, req.To)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "to must be RFC3339"})
	}

	symbol := domain.NormalizeSymbol(req.Symbol)
	tf := domain.Timeframe(req.Timeframe)

	candles, err := h.candles.GetRange(symbol, tf, from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if len(candles) == 0 {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "no candles recorded for the requested symbol/timeframe/window"})
	}

	cfg := h.simCfg
	if req.InitialCapital > 0 {
		cfg.InitialCapital = decimal.NewFromFloat(req.InitialCapital)
	}
	if req.CommissionRate > 0 {
		cfg.CommissionRate = decimal.NewFromFloat(req.CommissionRate)
	}
	if req.RiskAppetiteScore > 0 {
		cfg.RiskAppetiteScore = req.RiskAppetiteScore
	}
	if req.Seed != 0 {
		cfg.Seed = req.Seed
	}

	engine := backtest.NewEngine(cfg, h.indCfg, h.log)
	result, err := engine.Run(c.Request().Context(), symbol, candles)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}
