package strategy

import (
	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/indicators"
)

// BreakoutConfig configures Breakout.
type BreakoutConfig struct {
	RequireSqueeze    bool
	RequireVolume     bool
	VolumeMultiplier  float64
	MinADXForBreakout float64
	StopLossATRMult   float64
	TakeProfitATRMult float64
}

// DefaultBreakoutConfig provides a structural-breakout tuning used for
// the highest aggressiveness tier.
func DefaultBreakoutConfig() BreakoutConfig {
	return BreakoutConfig{
		RequireSqueeze:    true,
		RequireVolume:     true,
		VolumeMultiplier:  1.5,
		MinADXForBreakout: 20,
		StopLossATRMult:   1.5,
		TakeProfitATRMult: 3.5,
	}
}

// Breakout enters when price breaks a Bollinger band edge out of a
// squeeze, optionally confirmed by elevated volume and a minimum ADX.
type Breakout struct {
	BaseStrategy
	cfg BreakoutConfig

	squeezeActive bool
	squeezeBars   int
}

func NewBreakout(cfg BreakoutConfig) *Breakout {
	return &Breakout{
		BaseStrategy: newBaseStrategy("breakout", 40),
		cfg:          cfg,
	}
}

func (s *Breakout) Analyze(ctx *Context) (*domain.Signal, bool) {
	if len(ctx.Closes) < s.MinWarmupBars() {
		return nil, false
	}
	s.updateSqueezeState(ctx.Analysis)

	a := ctx.Analysis
	if s.cfg.RequireSqueeze && s.squeezeBars == 0 && !s.squeezeActive {
		return nil, false
	}
	if a.ADX.ADX < s.cfg.MinADXForBreakout {
		return nil, false
	}

	price := ctx.LastClose()
	var side domain.OrderSide
	var matched bool
	switch a.Bollinger.Breakout {
	case indicators.BreakoutUpper:
		side, matched = domain.SideBuy, true
	case indicators.BreakoutLower:
		side, matched = domain.SideSell, true
	}
	if !matched {
		return nil, false
	}

	if s.cfg.RequireVolume && a.Volume.Ratio < s.cfg.VolumeMultiplier {
		return nil, false
	}

	strength := clamp01(0.5 + boolFloat(a.Volume.IsHighVolume)*0.2 + boolFloat(a.ADX.ADX >= s.cfg.MinADXForBreakout*1.5)*0.2)
	atr := a.ATR.ATR
	stop := atrStop(side, price, atr, s.cfg.StopLossATRMult)
	target := atrTarget(side, price, atr, s.cfg.TakeProfitATRMult)

	return &domain.Signal{
		Side:       side,
		Reason:     s.reason(side),
		StopLoss:   decFromFloat(stop),
		TakeProfit: decFromFloat(target),
		Confidence: strength,
		Aggressive: true,
	}, true
}

func (s *Breakout) updateSqueezeState(a indicators.AnalysisResult) {
	if a.Bollinger.Squeeze {
		s.squeezeBars++
		s.squeezeActive = true
		return
	}
	s.squeezeActive = false
	s.squeezeBars = 0
}

func (s *Breakout) reason(side domain.OrderSide) string {
	if side == domain.SideBuy {
		return "breakout: upper band break out of squeeze"
	}
	return "breakout: lower band break out of squeeze"
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
