package strategy

import "github.com/tradebotlabs/trading-engine/internal/domain"

// RegimeAdaptive is the "regime_adaptive" tier: it dispatches to
// MeanReversion while the symbol is ranging and to TrendFollowing once
// a trend is confirmed, rather than running one fixed posture
// regardless of market state.
type RegimeAdaptive struct {
	BaseStrategy
	trend *TrendFollowing
	meanR *MeanReversion
}

func NewRegimeAdaptive() *RegimeAdaptive {
	trend := NewTrendFollowing(DefaultTrendConfig())
	meanR := NewMeanReversion(DefaultMeanReversionConfig())
	warmup := trend.MinWarmupBars()
	if meanR.MinWarmupBars() > warmup {
		warmup = meanR.MinWarmupBars()
	}
	return &RegimeAdaptive{
		BaseStrategy: newBaseStrategy("regime_adaptive", warmup),
		trend:        trend,
		meanR:        meanR,
	}
}

func (s *RegimeAdaptive) Analyze(ctx *Context) (*domain.Signal, bool) {
	switch ctx.Regime {
	case domain.RegimeTrendingUp, domain.RegimeTrendingDown:
		return s.trend.Analyze(ctx)
	case domain.RegimeRanging:
		return s.meanR.Analyze(ctx)
	default:
		return nil, false
	}
}
