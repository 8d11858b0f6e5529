package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigPassesValidation(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "mock", cfg.Mode)
	assert.Equal(t, "crypto", cfg.AssetClass)
	assert.Equal(t, []string{"BTCUSDT"}, cfg.Symbols)
	assert.Equal(t, 5, cfg.Risk.RiskAppetiteScore)
	assert.Equal(t, 14, cfg.Indicators.RSIPeriod)
	assert.Equal(t, ":8080", cfg.API.Port)
}

func TestApplyDefaultsNeverOverwritesExplicitValues(t *testing.T) {
	cfg := &Config{
		Mode:       "live_broker_A",
		AssetClass: "stock",
		Symbols:    []string{"AAPL"},
	}
	cfg.Risk.RiskAppetiteScore = 8
	cfg.Indicators.RSIPeriod = 21

	applyDefaults(cfg)

	assert.Equal(t, "live_broker_A", cfg.Mode)
	assert.Equal(t, "stock", cfg.AssetClass)
	assert.Equal(t, []string{"AAPL"}, cfg.Symbols)
	assert.Equal(t, 8, cfg.Risk.RiskAppetiteScore)
	assert.Equal(t, 21, cfg.Indicators.RSIPeriod)
}

func TestValidateRejectsBadAssetClass(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AssetClass = "forex"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptySymbols(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Symbols = nil
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsOutOfRangeRiskScore(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Risk.RiskAppetiteScore = 0
	assert.Error(t, cfg.Validate())
	cfg.Risk.RiskAppetiteScore = 11
	assert.Error(t, cfg.Validate())
}

func TestLoadAndSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	original := DefaultConfig()
	original.Symbols = []string{"ETHUSDT"}
	original.Risk.RiskAppetiteScore = 7
	require.NoError(t, original.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ETHUSDT"}, loaded.Symbols)
	assert.Equal(t, 7, loaded.Risk.RiskAppetiteScore)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("assetClass: forex\nsymbols: [\"BTCUSDT\"]\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
