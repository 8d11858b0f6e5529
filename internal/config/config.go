package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of the engine's static configuration, hot-reloaded
// from disk by fsnotify whenever the file changes (see Watcher).
type Config struct {
	Mode        string          `yaml:"mode"`       // mock | live_broker_A | live_broker_B
	AssetClass  string          `yaml:"assetClass"` // stock | crypto
	Symbols     []string        `yaml:"symbols"`    // explicit list, or ["dynamic"] for crypto discovery
	Timeframes  TimeframeConfig `yaml:"timeframes"`
	Risk        RiskConfig      `yaml:"risk"`
	Strategy    StrategyConfig  `yaml:"strategy"`
	Indicators  IndicatorConfig `yaml:"indicators"`
	Simulator   SimulatorConfig `yaml:"simulator"`
	Database    DatabaseConfig  `yaml:"database"`
	Broker      BrokerConfig    `yaml:"broker"`
	Observability ObservabilityConfig `yaml:"observability"`
	API         APIConfig       `yaml:"api"`
}

// TimeframeConfig controls which candle timeframes the aggregation
// chain maintains and which one the Analyst pipeline runs against.
type TimeframeConfig struct {
	Primary string   `yaml:"primary"` // e.g. "1h"
	Trend   string   `yaml:"trend"`   // higher timeframe consulted for multi-timeframe confirmation
	Enabled []string `yaml:"enabled"` // e.g. ["1m","5m","15m","1h","4h","1d"]
}

// RiskConfig mirrors the risk_appetite_score-driven table in
// internal/risk, plus the operator overrides layered on top of it.
type RiskConfig struct {
	RiskAppetiteScore    int      `yaml:"riskAppetiteScore"`
	MaxDailyLossPct      float64  `yaml:"maxDailyLossPct"`
	MaxDrawdownPct       float64  `yaml:"maxDrawdownPct"`
	ConsecutiveLossLimit int      `yaml:"consecutiveLossLimit"`
	MaxLossPerTradePct   float64  `yaml:"maxLossPerTradePct"`
	MaxPositionPct       float64  `yaml:"maxPositionPct"`
	MaxSectorExposurePct float64  `yaml:"maxSectorExposurePct"`
	CorrelationCap       float64  `yaml:"correlationCap"`
	EquityFloorForPDT    float64  `yaml:"equityFloorForPdt"`
	CorrelationWindow    int      `yaml:"correlationWindow"`
	SectorMap            map[string]string `yaml:"sectorMap"` // symbol -> sector, for the correlation/exposure gate
}

// StrategyConfig names the active strategy, or "auto-by-risk-score" to
// let the Analyst pick by tier on every candle close.
type StrategyConfig struct {
	ActiveID              string            `yaml:"activeId"`
	Params                map[string]string `yaml:"params"`
	MultiTimeframeConfirm bool              `yaml:"multiTimeframeConfirm"`
}

// IndicatorConfig configures the shared indicator manager. cmd/bot copies
// these fields onto internal/indicators.IndicatorConfig of the same name,
// except ADXThreshold, which becomes ADXTrendingThreshold;
// ATRMultiplierSL and ATRMultiplierTP are not read by any component.
type IndicatorConfig struct {
	RSIPeriod       int     `yaml:"rsiPeriod"`
	RSIOversold     float64 `yaml:"rsiOversold"`
	RSIOverbought   float64 `yaml:"rsiOverbought"`
	MACDFast        int     `yaml:"macdFast"`
	MACDSlow        int     `yaml:"macdSlow"`
	MACDSignal      int     `yaml:"macdSignal"`
	BBPeriod        int     `yaml:"bbPeriod"`
	BBStdDev        float64 `yaml:"bbStdDev"`
	ADXPeriod       int     `yaml:"adxPeriod"`
	ADXThreshold    float64 `yaml:"adxThreshold"`
	ATRPeriod       int     `yaml:"atrPeriod"`
	ATRMultiplierSL float64 `yaml:"atrMultiplierSL"`
	ATRMultiplierTP float64 `yaml:"atrMultiplierTP"`
}

// SimulatorConfig holds backtest and mock-broker settings. cmd/bot copies
// Seed, InitialCapital and CommissionRate into internal/backtest's and
// the mock broker's configs; Enabled, LatencyBaseMs, LatencyJitterMs,
// SlippageCoefficient and TrainRatio are not read by any component.
type SimulatorConfig struct {
	Enabled            bool    `yaml:"enabled"`
	Seed               int64   `yaml:"seed"`
	InitialCapital     float64 `yaml:"initialCapital"`
	LatencyBaseMs      int     `yaml:"latencyBaseMs"`
	LatencyJitterMs    int     `yaml:"latencyJitterMs"`
	SlippageCoefficient float64 `yaml:"slippageCoefficient"`
	CommissionRate     float64 `yaml:"commissionRate"`
	TrainRatio         float64 `yaml:"trainRatio"`
}

// DatabaseConfig points at the SQLite file backing orders/trades/
// candles/risk_state/settings.
type DatabaseConfig struct {
	Path                string        `yaml:"path"`
	PersistInterval     time.Duration `yaml:"persistInterval"`
	CandleRetentionDays int           `yaml:"candleRetentionDays"`
}

// BrokerConfig carries the credentials and endpoint for whichever
// ExecutionSink/MarketDataProducer Mode selects.
type BrokerConfig struct {
	APIKey    string `yaml:"apiKey"`
	SecretKey string `yaml:"secretKey"`
	BaseURL   string `yaml:"baseUrl"`
	Testnet   bool   `yaml:"testnet"`
}

// ObservabilityConfig controls the metrics/health surface.
type ObservabilityConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// APIConfig configures the operator-facing REST/websocket server.
type APIConfig struct {
	Port           string        `yaml:"port"`
	CORSOrigins    []string      `yaml:"corsOrigins"`
	OperatorToken  string        `yaml:"operatorToken"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// Load reads and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// DefaultConfig returns a config with every default applied, used for
// backtests and local mock-mode runs with no config file on disk.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate checks invariants the engine cannot safely run without; a
// failure here is a fatal startup error per the error taxonomy.
func (c *Config) Validate() error {
	if c.AssetClass != "stock" && c.AssetClass != "crypto" {
		return fmt.Errorf("assetClass must be 'stock' or 'crypto', got %q", c.AssetClass)
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols must list at least one symbol or \"dynamic\"")
	}
	if c.Risk.RiskAppetiteScore < 1 || c.Risk.RiskAppetiteScore > 10 {
		return fmt.Errorf("risk.riskAppetiteScore must be in [1,10], got %d", c.Risk.RiskAppetiteScore)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = "mock"
	}
	if cfg.AssetClass == "" {
		cfg.AssetClass = "crypto"
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = []string{"BTCUSDT"}
	}

	if len(cfg.Timeframes.Enabled) == 0 {
		cfg.Timeframes.Enabled = []string{"1m", "5m", "15m", "1h", "4h", "1d"}
	}
	if cfg.Timeframes.Primary == "" {
		cfg.Timeframes.Primary = "1h"
	}
	if cfg.Timeframes.Trend == "" {
		cfg.Timeframes.Trend = "4h"
	}

	if cfg.Risk.RiskAppetiteScore == 0 {
		cfg.Risk.RiskAppetiteScore = 5
	}
	if cfg.Risk.EquityFloorForPDT == 0 {
		cfg.Risk.EquityFloorForPDT = 25000
	}
	if cfg.Risk.CorrelationWindow == 0 {
		cfg.Risk.CorrelationWindow = 30
	}

	if cfg.Strategy.ActiveID == "" {
		cfg.Strategy.ActiveID = "auto-by-risk-score"
	}

	if cfg.Indicators.RSIPeriod == 0 {
		cfg.Indicators.RSIPeriod = 14
	}
	if cfg.Indicators.RSIOversold == 0 {
		cfg.Indicators.RSIOversold = 30
	}
	if cfg.Indicators.RSIOverbought == 0 {
		cfg.Indicators.RSIOverbought = 70
	}
	if cfg.Indicators.MACDFast == 0 {
		cfg.Indicators.MACDFast = 12
	}
	if cfg.Indicators.MACDSlow == 0 {
		cfg.Indicators.MACDSlow = 26
	}
	if cfg.Indicators.MACDSignal == 0 {
		cfg.Indicators.MACDSignal = 9
	}
	if cfg.Indicators.BBPeriod == 0 {
		cfg.Indicators.BBPeriod = 20
	}
	if cfg.Indicators.BBStdDev == 0 {
		cfg.Indicators.BBStdDev = 2.0
	}
	if cfg.Indicators.ADXPeriod == 0 {
		cfg.Indicators.ADXPeriod = 14
	}
	if cfg.Indicators.ADXThreshold == 0 {
		cfg.Indicators.ADXThreshold = 25
	}
	if cfg.Indicators.ATRPeriod == 0 {
		cfg.Indicators.ATRPeriod = 14
	}
	if cfg.Indicators.ATRMultiplierSL == 0 {
		cfg.Indicators.ATRMultiplierSL = 2.0
	}
	if cfg.Indicators.ATRMultiplierTP == 0 {
		cfg.Indicators.ATRMultiplierTP = 3.0
	}

	if cfg.Simulator.InitialCapital == 0 {
		cfg.Simulator.InitialCapital = 100000
	}
	if cfg.Simulator.CommissionRate == 0 {
		cfg.Simulator.CommissionRate = 0.001
	}
	if cfg.Simulator.TrainRatio == 0 {
		cfg.Simulator.TrainRatio = 0.7
	}
	if cfg.Simulator.LatencyBaseMs == 0 {
		cfg.Simulator.LatencyBaseMs = 50
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/trading.db"
	}
	if cfg.Database.PersistInterval == 0 {
		cfg.Database.PersistInterval = 10 * time.Second
	}
	if cfg.Database.CandleRetentionDays == 0 {
		cfg.Database.CandleRetentionDays = 365
	}

	if cfg.Observability.Port == 0 {
		cfg.Observability.Port = 9090
	}

	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if len(cfg.API.CORSOrigins) == 0 {
		cfg.API.CORSOrigins = []string{"*"}
	}
	if cfg.API.RequestTimeout == 0 {
		cfg.API.RequestTimeout = 10 * time.Second
	}
}

// Save writes configuration back to a YAML file, used by the settings
// API handler after an operator pushes a hot-reloadable change.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
