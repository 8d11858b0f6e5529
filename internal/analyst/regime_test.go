package analyst

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/indicators"
)

func analysisWith(atrPercent, adx float64, dir indicators.TrendDirection) indicators.AnalysisResult {
	var a indicators.AnalysisResult
	a.ATR.ATRPercent = atrPercent
	a.ADX.ADX = adx
	a.ADX.Direction = dir
	return a
}

func TestRegimeDetectorHighVolatilityOverridesTrend(t *testing.T) {
	d := NewRegimeDetector(DefaultRegimeConfig())
	regime := d.Detect("BTC/USD", analysisWith(2.0, 40, indicators.TrendUp), 0.6)
	assert.Equal(t, domain.RegimeVolatile, regime)
}

func TestRegimeDetectorClassifiesTrendingUp(t *testing.T) {
	d := NewRegimeDetector(DefaultRegimeConfig())
	regime := d.Detect("BTC/USD", analysisWith(0.5, 30, indicators.TrendUp), 0.6)
	assert.Equal(t, domain.RegimeTrendingUp, regime)
}

func TestRegimeDetectorClassifiesTrendingDown(t *testing.T) {
	d := NewRegimeDetector(DefaultRegimeConfig())
	regime := d.Detect("BTC/USD", analysisWith(0.5, 30, indicators.TrendDown), 0.6)
	assert.Equal(t, domain.RegimeTrendingDown, regime)
}

func TestRegimeDetectorFallsBackToRangingBelowThreshold(t *testing.T) {
	d := NewRegimeDetector(DefaultRegimeConfig())
	regime := d.Detect("BTC/USD", analysisWith(0.5, 10, indicators.TrendUp), 0.3)
	assert.Equal(t, domain.RegimeRanging, regime)
}

func TestRegimeDetectorHysteresisKeepsTrendingThroughMinorDip(t *testing.T) {
	d := NewRegimeDetector(DefaultRegimeConfig())
	regime := d.Detect("BTC/USD", analysisWith(0.5, 30, indicators.TrendUp), 0.6)
	require := assert.New(t)
	require.Equal(domain.RegimeTrendingUp, regime)

	// ADX dips to 24, below the raw 25 threshold but still above
	// threshold-hysteresis (23), so a previously-trending regime holds.
	regime = d.Detect("BTC/USD", analysisWith(0.5, 24, indicators.TrendUp), 0.6)
	assert.Equal(t, domain.RegimeTrendingUp, regime)
}

func TestRegimeDetectorHysteresisRequiresClearingUpperBandToStartTrending(t *testing.T) {
	d := NewRegimeDetector(DefaultRegimeConfig())
	// Starts ranging (zero value). ADX at 26 clears the raw threshold
	// but not threshold+hysteresis (27), so it should stay ranging.
	regime := d.Detect("BTC/USD", analysisWith(0.5, 26, indicators.TrendUp), 0.3)
	assert.Equal(t, domain.RegimeRanging, regime)
}

func TestRegimeDetectorTracksSymbolsIndependently(t *testing.T) {
	d := NewRegimeDetector(DefaultRegimeConfig())
	d.Detect("BTC/USD", analysisWith(0.5, 30, indicators.TrendUp), 0.6)
	ethRegime := d.Detect("ETH/USD", analysisWith(0.5, 10, indicators.TrendUp), 0.3)
	assert.Equal(t, domain.RegimeRanging, ethRegime)
	assert.Equal(t, domain.RegimeTrendingUp, d.last["BTC/USD"])
}
