package strategy

// Registry maps a strategy id to a ready-to-use instance. Built fresh
// at startup and on config hot-reload; strategies are stateless aside
// from Breakout's squeeze tracking, so swapping the pointer is safe
// once the owning SymbolContext is quiescent.
type Registry struct {
	byID map[string]Strategy
}

// NewRegistry constructs the three built-in strategies with their
// default tunings.
func NewRegistry() *Registry {
	r := &Registry{byID: make(map[string]Strategy, 3)}
	r.byID["trend_conservative"] = NewTrendFollowing(DefaultTrendConfig())
	r.byID["regime_adaptive"] = NewRegimeAdaptive()
	r.byID["structural_aggressive"] = NewBreakout(DefaultBreakoutConfig())
	return r
}

// Get resolves a strategy id, returning ok=false for an unknown id.
func (r *Registry) Get(id string) (Strategy, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// StrategyForRiskScore implements the explicit risk-score to strategy
// mapping: 1-3 conservative trend-following, 4-6 regime-adaptive
// blending, 7-10 structural breakout trading.
func StrategyForRiskScore(score int) string {
	switch {
	case score <= 3:
		return "trend_conservative"
	case score <= 6:
		return "regime_adaptive"
	default:
		return "structural_aggressive"
	}
}
