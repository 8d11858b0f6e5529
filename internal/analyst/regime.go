package analyst

import (
	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/indicators"
)

// RegimeConfig tunes the classifier's thresholds.
type RegimeConfig struct {
	ADXTrendingThreshold float64 // at/above this, with hysteresis, classified trending
	ADXHysteresis        float64 // band width that prevents flapping at the boundary
	HighVolATRPercent    float64 // ATR% at/above this overrides to Volatile
}

// DefaultRegimeConfig provides a trending/ranging split with an
// explicit ADX hysteresis band.
func DefaultRegimeConfig() RegimeConfig {
	return RegimeConfig{
		ADXTrendingThreshold: 25,
		ADXHysteresis:        2,
		HighVolATRPercent:    1.5,
	}
}

// RegimeDetector classifies a symbol's market state into
// domain.Regime, holding the last classification per symbol so a
// reading that only barely crosses the ADX threshold doesn't flip the
// regime back and forth bar to bar.
type RegimeDetector struct {
	cfg  RegimeConfig
	last map[domain.Symbol]domain.Regime
}

func NewRegimeDetector(cfg RegimeConfig) *RegimeDetector {
	return &RegimeDetector{
		cfg:  cfg,
		last: make(map[domain.Symbol]domain.Regime),
	}
}

// Detect classifies the regime for symbol given its current indicator
// analysis and Hurst exponent. High volatility takes precedence over
// trend classification since a violently moving market is not safely
// tradeable as a clean trend regardless of ADX.
func (d *RegimeDetector) Detect(symbol domain.Symbol, a indicators.AnalysisResult, hurst float64) domain.Regime {
	if a.ATR.ATRPercent >= d.cfg.HighVolATRPercent {
		d.last[symbol] = domain.RegimeVolatile
		return domain.RegimeVolatile
	}

	prev := d.last[symbol]
	trending := d.isTrending(prev, a.ADX.ADX)

	var regime domain.Regime
	switch {
	case trending && a.ADX.Direction == indicators.TrendUp:
		regime = domain.RegimeTrendingUp
	case trending && a.ADX.Direction == indicators.TrendDown:
		regime = domain.RegimeTrendingDown
	case hurst < 0.4:
		regime = domain.RegimeRanging
	default:
		regime = domain.RegimeRanging
	}

	d.last[symbol] = regime
	return regime
}

// isTrending applies the ADX hysteresis band: once trending, the
// regime only reverts to ranging when ADX falls below
// threshold-hysteresis; once ranging, it only becomes trending when
// ADX rises above threshold+hysteresis. This is the dead zone that
// stops a threshold-straddling ADX from flapping the regime label
// every bar.
func (d *RegimeDetector) isTrending(prev domain.Regime, adx float64) bool {
	wasTrending := prev == domain.RegimeTrendingUp || prev == domain.RegimeTrendingDown
	if wasTrending {
		return adx >= d.cfg.ADXTrendingThreshold-d.cfg.ADXHysteresis
	}
	return adx >= d.cfg.ADXTrendingThreshold+d.cfg.ADXHysteresis
}
