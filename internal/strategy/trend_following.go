package strategy

import (
	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/indicators"
)

// TrendConfig configures TrendFollowing.
type TrendConfig struct {
	ADXThreshold       float64
	ADXStrongThreshold float64
	FastMAPeriod       int
	SlowMAPeriod       int
	TrendMAPeriod      int
	UseMACDConfirm     bool
	StopLossATRMult    float64
	TakeProfitATRMult  float64
	TrailingATRMult    float64
}

// DefaultTrendConfig mirrors the conservative trend-following tuning
// used for the lowest aggressiveness tier.
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{
		ADXThreshold:       25,
		ADXStrongThreshold: 40,
		FastMAPeriod:       10,
		SlowMAPeriod:       20,
		TrendMAPeriod:      50,
		UseMACDConfirm:     true,
		StopLossATRMult:    2.0,
		TakeProfitATRMult:  4.5,
		TrailingATRMult:    2.5,
	}
}

// TrendFollowing enters on a sustained directional trend: ADX above
// threshold, fast/slow MA alignment, price beyond the trend MA, MACD
// confirming the same direction.
type TrendFollowing struct {
	BaseStrategy
	cfg TrendConfig
}

// NewTrendFollowing builds a TrendFollowing strategy; warmup is driven
// by the longest MA period plus a margin for the regime filter.
func NewTrendFollowing(cfg TrendConfig) *TrendFollowing {
	return &TrendFollowing{
		BaseStrategy: newBaseStrategy("trend_following", cfg.TrendMAPeriod+10),
		cfg:          cfg,
	}
}

func (s *TrendFollowing) Analyze(ctx *Context) (*domain.Signal, bool) {
	if len(ctx.Closes) < s.MinWarmupBars() {
		return nil, false
	}

	analysis := ctx.Analysis
	if !analysis.ADX.Trending || analysis.ADX.ADX < s.cfg.ADXThreshold {
		return nil, false
	}

	closes := ctx.Closes
	fastMA := indicators.SMALast(closes, s.cfg.FastMAPeriod)
	slowMA := indicators.SMALast(closes, s.cfg.SlowMAPeriod)
	trendMA := indicators.SMALast(closes, s.cfg.TrendMAPeriod)
	price := ctx.LastClose()

	var side domain.OrderSide
	var matched bool
	if fastMA > slowMA && price > trendMA && analysis.ADX.Direction == indicators.TrendUp {
		side, matched = domain.SideBuy, true
	} else if fastMA < slowMA && price < trendMA && analysis.ADX.Direction == indicators.TrendDown {
		side, matched = domain.SideSell, true
	}
	if !matched {
		return nil, false
	}

	if s.cfg.UseMACDConfirm {
		if side == domain.SideBuy && analysis.MACD.MACD < analysis.MACD.Signal {
			return nil, false
		}
		if side == domain.SideSell && analysis.MACD.MACD > analysis.MACD.Signal {
			return nil, false
		}
	}

	strength := s.strength(analysis, side == domain.SideBuy)
	atr := analysis.ATR.ATR
	stop := atrStop(side, price, atr, s.cfg.StopLossATRMult)
	target := atrTarget(side, price, atr, s.cfg.TakeProfitATRMult)

	return &domain.Signal{
		Side:       side,
		Reason:     s.reason(analysis, side),
		StopLoss:   decFromFloat(stop),
		TakeProfit: decFromFloat(target),
		Confidence: strength,
	}, true
}

func (s *TrendFollowing) strength(a indicators.AnalysisResult, bullish bool) float64 {
	strength := 0.5
	switch {
	case a.ADX.ADX >= s.cfg.ADXStrongThreshold:
		strength += 0.2
	case a.ADX.ADX >= s.cfg.ADXThreshold:
		strength += 0.1
	}
	switch a.ADX.Strength {
	case indicators.TrendVeryStrong:
		strength += 0.15
	case indicators.TrendStrong:
		strength += 0.1
	case indicators.TrendModerate:
		strength += 0.05
	}
	if bullish && a.MACD.Histogram > 0 {
		strength += 0.1
	} else if !bullish && a.MACD.Histogram < 0 {
		strength += 0.1
	}
	if a.Volume.IsHighVolume {
		strength += 0.05
	}
	return clamp01(strength)
}

func (s *TrendFollowing) reason(a indicators.AnalysisResult, side domain.OrderSide) string {
	if side == domain.SideBuy {
		return "trend up: adx above threshold with price over trend MA, MACD confirming"
	}
	return "trend down: adx above threshold with price under trend MA, MACD confirming"
}

// TrailingStop computes the ATR-ratcheted trailing stop. Mirrors
// domain.TrailingStopState.Tighten's never-loosen invariant, expressed
// in float space before the decimal boundary.
func (s *TrendFollowing) TrailingStop(side domain.OrderSide, price, atr, currentStop float64) float64 {
	if atr <= 0 {
		return currentStop
	}
	if side == domain.SideBuy {
		candidate := price - atr*s.cfg.TrailingATRMult
		if candidate > currentStop {
			return candidate
		}
		return currentStop
	}
	candidate := price + atr*s.cfg.TrailingATRMult
	if currentStop == 0 || candidate < currentStop {
		return candidate
	}
	return currentStop
}
