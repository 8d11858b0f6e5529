package strategy

import (
	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/indicators"
)

// MeanReversionConfig configures MeanReversion.
type MeanReversionConfig struct {
	RSIOverbought     float64
	RSIOversold       float64
	BBEntryThreshold  float64 // PercentB distance from band edge
	MaxADX            float64 // avoid entering during a live trend
	StopLossATRMult   float64
	TakeProfitATRMult float64
}

// DefaultMeanReversionConfig provides sensible ranging-market tuning.
func DefaultMeanReversionConfig() MeanReversionConfig {
	return MeanReversionConfig{
		RSIOverbought:     70,
		RSIOversold:       30,
		BBEntryThreshold:  0.1,
		MaxADX:            25,
		StopLossATRMult:   1.5,
		TakeProfitATRMult: 2.0,
	}
}

// MeanReversion fades extremes in a non-trending market: RSI at an
// extreme plus price near a Bollinger band edge, with an ADX ceiling
// to avoid fighting an active trend.
type MeanReversion struct {
	BaseStrategy
	cfg MeanReversionConfig
}

func NewMeanReversion(cfg MeanReversionConfig) *MeanReversion {
	return &MeanReversion{
		BaseStrategy: newBaseStrategy("mean_reversion", 30),
		cfg:          cfg,
	}
}

func (s *MeanReversion) Analyze(ctx *Context) (*domain.Signal, bool) {
	if len(ctx.Closes) < s.MinWarmupBars() {
		return nil, false
	}

	a := ctx.Analysis
	if a.ADX.ADX >= s.cfg.MaxADX {
		return nil, false
	}

	price := ctx.LastClose()
	var side domain.OrderSide
	var matched bool

	if a.RSI.Value <= s.cfg.RSIOversold && a.Bollinger.PercentB <= s.cfg.BBEntryThreshold {
		side, matched = domain.SideBuy, true
	} else if a.RSI.Value >= s.cfg.RSIOverbought && a.Bollinger.PercentB >= 1-s.cfg.BBEntryThreshold {
		side, matched = domain.SideSell, true
	}
	if !matched {
		return nil, false
	}

	strength := clamp01(0.5 + (a.ADX.ADX/s.cfg.MaxADX)*-0.2 + 0.3)
	atr := a.ATR.ATR
	stop := atrStop(side, price, atr, s.cfg.StopLossATRMult)

	var target float64
	if a.Bollinger.Middle > 0 {
		target = a.Bollinger.Middle
	} else {
		target = atrTarget(side, price, atr, s.cfg.TakeProfitATRMult)
	}

	return &domain.Signal{
		Side:       side,
		Reason:     s.reason(a, side),
		StopLoss:   decFromFloat(stop),
		TakeProfit: decFromFloat(target),
		Confidence: strength,
	}, true
}

func (s *MeanReversion) reason(a indicators.AnalysisResult, side domain.OrderSide) string {
	if side == domain.SideBuy {
		return "mean reversion: RSI oversold at lower band, ADX below trend ceiling"
	}
	return "mean reversion: RSI overbought at upper band, ADX below trend ceiling"
}
