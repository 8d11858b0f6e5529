package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForScoreClampsToValidRange(t *testing.T) {
	assert.Equal(t, ForScore(1), ForScore(0))
	assert.Equal(t, ForScore(1), ForScore(-5))
	assert.Equal(t, ForScore(10), ForScore(11))
	assert.Equal(t, ForScore(10), ForScore(100))
}

func TestForScoreMonotonicRiskAppetite(t *testing.T) {
	prev := ForScore(1)
	for score := 2; score <= 10; score++ {
		cur := ForScore(score)
		assert.True(t, cur.RiskPerTradePct.GreaterThanOrEqual(prev.RiskPerTradePct),
			"RiskPerTradePct should not decrease as appetite rises (score %d)", score)
		assert.True(t, cur.MaxPositionPct.GreaterThanOrEqual(prev.MaxPositionPct))
		assert.True(t, cur.MaxDailyLossPct.GreaterThanOrEqual(prev.MaxDailyLossPct))
		assert.True(t, cur.MaxDrawdownPct.GreaterThanOrEqual(prev.MaxDrawdownPct))
		assert.True(t, cur.CorrelationCap.GreaterThanOrEqual(prev.CorrelationCap),
			"correlation cap should loosen as appetite rises")
		prev = cur
	}
}

func TestForScoreMinRiskRewardLoosensWithAppetite(t *testing.T) {
	// More aggressive scores accept a lower minimum reward/risk ratio.
	conservative := ForScore(1)
	aggressive := ForScore(10)
	assert.True(t, aggressive.MinRiskRewardRatio.LessThan(conservative.MinRiskRewardRatio))
}
