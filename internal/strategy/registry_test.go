package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryResolvesAllThreeBuiltins(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"trend_conservative", "regime_adaptive", "structural_aggressive"} {
		s, ok := r.Get(id)
		require.True(t, ok, "expected builtin %q to be registered", id)
		assert.NotNil(t, s)
	}
}

func TestRegistryGetUnknownID(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("does_not_exist")
	assert.False(t, ok)
}

func TestStrategyForRiskScoreMapping(t *testing.T) {
	cases := map[int]string{
		1:  "trend_conservative",
		3:  "trend_conservative",
		4:  "regime_adaptive",
		6:  "regime_adaptive",
		7:  "structural_aggressive",
		10: "structural_aggressive",
	}
	for score, want := range cases {
		assert.Equal(t, want, StrategyForRiskScore(score), "score %d", score)
	}
}
