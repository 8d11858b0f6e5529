package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/tradebotlabs/trading-engine/internal/api"
	"github.com/tradebotlabs/trading-engine/internal/auth"
	"github.com/tradebotlabs/trading-engine/internal/backtest"
	"github.com/tradebotlabs/trading-engine/internal/binance"
	"github.com/tradebotlabs/trading-engine/internal/config"
	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/indicators"
	"github.com/tradebotlabs/trading-engine/internal/orchestrator"
	"github.com/tradebotlabs/trading-engine/internal/risk"
	"github.com/tradebotlabs/trading-engine/internal/storage"

	brokermock "github.com/tradebotlabs/trading-engine/internal/broker/mock"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	log.Info().Msg("starting trading engine")

	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", configPath).Msg("failed to load config, using defaults")
		cfg = config.DefaultConfig()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.NewSQLiteDB(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	data := storage.NewDataService(db, cfg.Database.PersistInterval)
	data.Start(ctx)
	defer data.Stop()

	producer, sink, err := buildBroker(*cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build broker")
	}

	symbols, err := resolveSymbols(ctx, *cfg, producer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve trading symbols")
	}
	log.Info().Strs("symbols", symbolStrings(symbols)).Str("mode", cfg.Mode).Msg("symbol universe resolved")

	orchCfg := buildOrchestratorConfig(*cfg, symbols)
	indCfg := orchCfg.Indicators

	orch, err := orchestrator.New(orchCfg, producer, sink, data, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct orchestrator")
	}

	apiServer, err := buildAPIServer(*cfg, orch, data, indCfg, log.Logger)
	if err != nil {
		log.Warn().Err(err).Msg("operator API disabled")
	} else {
		go func() {
			if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("api server exited with error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := apiServer.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("api server shutdown error")
			}
		}()
	}

	watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
		applied := orch.ApplyRiskScore(ctx, next.Risk.RiskAppetiteScore)
		if !applied {
			log.Warn().Msg("risk score reload dropped: orchestrator shutting down before quiescence")
		}
	}, log.Logger)
	if err != nil {
		log.Warn().Err(err).Msg("config hot reload disabled: failed to start watcher")
	} else {
		defer watcher.Close()
	}

	log.Info().Msg("engine running, press ctrl+c to stop")
	if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("orchestrator exited with error")
	}
	log.Info().Msg("engine stopped")
}

// buildBroker constructs the MarketDataProducer/ExecutionSink pair for
// the configured mode. live_broker_B has no adapter in this repo yet;
// it falls back to mock with a warning rather than failing closed.
func buildBroker(cfg config.Config, log zerolog.Logger) (domain.MarketDataProducer, domain.ExecutionSink, error) {
	switch cfg.Mode {
	case "live_broker_A":
		client := binance.NewClient(&binance.Config{
			APIKey:    cfg.Broker.APIKey,
			SecretKey: cfg.Broker.SecretKey,
			Testnet:   cfg.Broker.Testnet,
			Timeout:   30 * time.Second,
		})
		adapter := binance.NewAdapter(client)
		return adapter, adapter, nil

	case "live_broker_B":
		log.Warn().Msg("live_broker_B has no adapter in this build, falling back to mock")
		fallthrough

	case "mock", "":
		symbols := make([]domain.Symbol, 0, len(cfg.Symbols))
		for _, s := range cfg.Symbols {
			if s == "dynamic" {
				continue
			}
			symbols = append(symbols, domain.NormalizeSymbol(s))
		}
		mockCfg := brokermock.DefaultConfig()
		mockCfg.Symbols = symbols
		if cfg.Simulator.InitialCapital > 0 {
			mockCfg.InitialCash = decimal.NewFromFloat(cfg.Simulator.InitialCapital)
		}
		if cfg.Simulator.CommissionRate > 0 {
			mockCfg.CommissionRate = decimal.NewFromFloat(cfg.Simulator.CommissionRate)
		}
		if cfg.Simulator.Seed != 0 {
			mockCfg.Seed = cfg.Simulator.Seed
		}
		broker := brokermock.New(mockCfg, log)
		return broker, broker, nil

	default:
		return nil, nil, fmt.Errorf("unknown broker mode %q", cfg.Mode)
	}
}

// buildAPIServer wires the operator-facing REST/websocket surface. It
// refuses to start without an operator token configured, same as the
// auth service itself refuses to sign tokens with an empty secret; the
// engine still trades fine with the API disabled, so this is a warning
// rather than a fatal error.
func buildAPIServer(cfg config.Config, orch *orchestrator.Orchestrator, data *storage.DataService, indCfg *indicators.IndicatorConfig, log zerolog.Logger) (*api.Server, error) {
	authSvc, err := auth.New(cfg.API.OperatorToken, 0)
	if err != nil {
		return nil, err
	}

	token, err := authSvc.IssueOperatorToken()
	if err != nil {
		return nil, fmt.Errorf("failed to issue operator token: %w", err)
	}
	log.Info().Str("token", token).Msg("operator bearer token issued, use it in the dashboard's Authorization header")

	simCfg := backtest.DefaultSimulatorConfig()
	if cfg.Simulator.InitialCapital > 0 {
		simCfg.InitialCapital = decimal.NewFromFloat(cfg.Simulator.InitialCapital)
	}
	if cfg.Simulator.CommissionRate > 0 {
		simCfg.CommissionRate = decimal.NewFromFloat(cfg.Simulator.CommissionRate)
	}
	if cfg.Simulator.Seed != 0 {
		simCfg.Seed = cfg.Simulator.Seed
	}
	simCfg.RiskAppetiteScore = cfg.Risk.RiskAppetiteScore

	serverCfg := api.DefaultServerConfig()
	if cfg.API.Port != "" {
		serverCfg.Port = cfg.API.Port
	}
	if len(cfg.API.CORSOrigins) > 0 {
		serverCfg.CORSOrigins = cfg.API.CORSOrigins
	}

	deps := api.Deps{
		Orchestrator: orch,
		AuthService:  authSvc,
		DB:           data.DB(),
		IndicatorCfg: indCfg,
		BacktestCfg:  simCfg,
	}
	return api.NewServer(serverCfg, deps, log), nil
}

// resolveSymbols expands the ["dynamic"] sentinel into the producer's
// discovered symbol universe; any explicit list is used verbatim.
func resolveSymbols(ctx context.Context, cfg config.Config, producer domain.MarketDataProducer) ([]domain.Symbol, error) {
	if len(cfg.Symbols) == 1 && cfg.Symbols[0] == "dynamic" {
		return producer.ListAvailableSymbols(ctx)
	}
	symbols := make([]domain.Symbol, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbols = append(symbols, domain.NormalizeSymbol(s))
	}
	return symbols, nil
}

func symbolStrings(symbols []domain.Symbol) []string {
	out := make([]string, len(symbols))
	for i, s := range symbols {
		out[i] = s.String()
	}
	return out
}

func buildOrchestratorConfig(cfg config.Config, symbols []domain.Symbol) orchestrator.Config {
	out := orchestrator.DefaultConfig()
	out.Symbols = symbols
	out.Primary = domain.Timeframe(cfg.Timeframes.Primary)
	out.Trend = domain.Timeframe(cfg.Timeframes.Trend)

	out.Timeframes = out.Timeframes[:0]
	for _, tf := range cfg.Timeframes.Enabled {
		out.Timeframes = append(out.Timeframes, domain.Timeframe(tf))
	}

	out.Indicators = buildIndicatorConfig(cfg.Indicators)
	out.Risk = buildRiskConfig(cfg.Risk)
	out.Executor.LiquidateOnShutdown = strings.HasPrefix(cfg.Mode, "live_")

	return out
}

// buildIndicatorConfig starts from indicators.DefaultConfig and layers
// the operator-tunable fields the YAML schema exposes on top; the
// remaining tuning knobs (moving-average/volume/stochastic periods)
// keep their defaults since no Non-goal excludes them but the
// operator-facing config doesn't expose per-symbol overrides for them.
func buildIndicatorConfig(cfg config.IndicatorConfig) *indicators.IndicatorConfig {
	ind := indicators.DefaultConfig()
	if cfg.RSIPeriod > 0 {
		ind.RSIPeriod = cfg.RSIPeriod
	}
	if cfg.RSIOversold > 0 {
		ind.RSIOversold = cfg.RSIOversold
	}
	if cfg.RSIOverbought > 0 {
		ind.RSIOverbought = cfg.RSIOverbought
	}
	if cfg.MACDFast > 0 {
		ind.MACDFast = cfg.MACDFast
	}
	if cfg.MACDSlow > 0 {
		ind.MACDSlow = cfg.MACDSlow
	}
	if cfg.MACDSignal > 0 {
		ind.MACDSignal = cfg.MACDSignal
	}
	if cfg.BBPeriod > 0 {
		ind.BBPeriod = cfg.BBPeriod
	}
	if cfg.BBStdDev > 0 {
		ind.BBStdDev = cfg.BBStdDev
	}
	if cfg.ADXPeriod > 0 {
		ind.ADXPeriod = cfg.ADXPeriod
	}
	if cfg.ADXThreshold > 0 {
		ind.ADXTrendingThreshold = cfg.ADXThreshold
	}
	if cfg.ATRPeriod > 0 {
		ind.ATRPeriod = cfg.ATRPeriod
	}
	return ind
}

func buildRiskConfig(cfg config.RiskConfig) risk.Config {
	out := risk.Config{
		RiskAppetiteScore: cfg.RiskAppetiteScore,
		CorrelationWindow: cfg.CorrelationWindow,
	}
	if cfg.EquityFloorForPDT > 0 {
		out.EquityFloorForPDT = decimal.NewFromFloat(cfg.EquityFloorForPDT)
	}
	if len(cfg.SectorMap) > 0 {
		sectors := make(map[string]string, len(cfg.SectorMap))
		for symbol, sector := range cfg.SectorMap {
			sectors[string(domain.NormalizeSymbol(symbol))] = sector
		}
		out.SectorOf = func(s domain.Symbol) string { return sectors[string(s)] }
	}
	return out
}
