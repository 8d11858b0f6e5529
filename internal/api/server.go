// Package api wires the operator-facing REST and websocket surface on
// top of an Orchestrator: dashboard/position/order/risk/backtest
// endpoints behind a single-operator bearer token, plus a live event
// stream for the dashboard to render without polling.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/tradebotlabs/trading-engine/internal/api/handlers"
	"github.com/tradebotlabs/trading-engine/internal/api/middleware"
	"github.com/tradebotlabs/trading-engine/internal/api/websocket"
	"github.com/tradebotlabs/trading-engine/internal/auth"
	"github.com/tradebotlabs/trading-engine/internal/backtest"
	"github.com/tradebotlabs/trading-engine/internal/indicators"
	"github.com/tradebotlabs/trading-engine/internal/orchestrator"
	"github.com/tradebotlabs/trading-engine/internal/storage"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// DefaultServerConfig returns default configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            ":8080",
		ShutdownTimeout: 10 * time.Second,
		CORSOrigins:     []string{"*"},
	}
}

// Server is the API server.
type Server struct {
	config       ServerConfig
	echo         *echo.Echo
	orchestrator *orchestrator.Orchestrator
	log          zerolog.Logger
	wsHub        *websocket.Hub
}

// Deps bundles everything the route table needs beyond the
// Orchestrator itself — the storage repositories and domain/indicator
// config backtest replay and history queries read directly, bypassing
// the Orchestrator so read-heavy endpoints never contend with the
// trading hot path.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	AuthService  *auth.Service
	DB           *storage.SQLiteDB
	IndicatorCfg *indicators.IndicatorConfig
	BacktestCfg  backtest.SimulatorConfig
}

// NewServer creates a new API server.
func NewServer(config ServerConfig, deps Deps, log zerolog.Logger) *Server {
	log = log.With().Str("component", "api_server").Logger()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	server := &Server{
		config:       config,
		echo:         e,
		orchestrator: deps.Orchestrator,
		log:          log,
		wsHub:        websocket.NewHub(log),
	}

	server.setupMiddleware()
	server.setupRoutes(deps)

	return server
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echoMiddleware.Recover())
	s.echo.Use(middleware.Logger(s.log))
	s.echo.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: s.config.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	s.echo.Use(echoMiddleware.RequestID())
	s.echo.Use(echoMiddleware.Gzip())
}

func (s *Server) setupRoutes(deps Deps) {
	authMiddleware := middleware.NewAuthMiddleware(deps.AuthService)

	authHandler := handlers.NewAuthHandler(deps.AuthService)
	dashboardHandler := handlers.NewDashboardHandler(deps.Orchestrator, storage.NewTradeRepository(deps.DB))
	positionHandler := handlers.NewPositionHandler(deps.Orchestrator)
	orderHandler := handlers.NewOrderHandler(deps.Orchestrator, storage.NewOrderRepository(deps.DB))
	riskHandler := handlers.NewRiskHandler(deps.Orchestrator)
	backtestHandler := handlers.NewBacktestHandler(storage.NewCandleRepository(deps.DB), deps.IndicatorCfg, deps.BacktestCfg, s.log)
	candleHandler := handlers.NewCandleHandler(storage.NewCandleRepository(deps.DB))

	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	v1 := s.echo.Group("/api/v1")

	// Historical market data carries no account information, so it is
	// left outside the authenticated group.
	v1.GET("/candles/:symbol/:timeframe", candleHandler.Recent)

	protected := v1.Group("", authMiddleware.Authenticate)
	protected.GET("/auth/whoami", authHandler.Whoami)

	protected.GET("/dashboard", dashboardHandler.Get)

	protected.GET("/positions", positionHandler.List)
	protected.GET("/positions/:symbol", positionHandler.Get)

	protected.GET("/orders", orderHandler.List)
	protected.GET("/orders/open", orderHandler.Open)
	protected.DELETE("/orders/:id", orderHandler.Cancel)
	protected.DELETE("/orders", orderHandler.CancelAll)

	protected.GET("/risk", riskHandler.Status)
	protected.POST("/risk/circuit-breaker/reset", riskHandler.ResetCircuitBreaker)

	protected.POST("/backtest", backtestHandler.Run)

	s.echo.GET("/ws", s.handleWebSocket)
}

// Handler exposes the underlying router as an http.Handler so tests can
// drive the full middleware/route stack without binding a socket.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleWebSocket(c echo.Context) error {
	return websocket.HandleConnection(c, s.wsHub, s.orchestrator, s.log)
}

// Start runs the websocket hub and the orchestrator event forwarder,
// then blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	go s.wsHub.Run()
	go s.forwardEvents()

	s.log.Info().Str("port", s.config.Port).Msg("starting api server")
	return s.echo.Start(s.config.Port)
}

func (s *Server) forwardEvents() {
	if s.orchestrator == nil {
		return
	}
	ch := s.orchestrator.Subscribe("api-server")
	if ch == nil {
		return
	}
	for evt := range ch {
		s.wsHub.Broadcast(evt)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.wsHub.Close()
	if s.orchestrator != nil {
		s.orchestrator.Unsubscribe("api-server")
	}

	s.log.Info().Msg("shutting down api server")
	return s.echo.Shutdown(shutdownCtx)
}
