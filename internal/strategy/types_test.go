package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

func TestContextLastCloseEmptyIsZero(t *testing.T) {
	ctx := &Context{}
	assert.Equal(t, 0.0, ctx.LastClose())
}

func TestContextLastCloseReturnsMostRecent(t *testing.T) {
	ctx := &Context{Closes: []float64{100, 101, 102.5}}
	assert.Equal(t, 102.5, ctx.LastClose())
}

func TestAtrStopFallsBackToFlatPercentWithoutATR(t *testing.T) {
	assert.Equal(t, 98.0, atrStop(domain.SideBuy, 100, 0, 1.5))
	assert.Equal(t, 102.0, atrStop(domain.SideSell, 100, 0, 1.5))
}

func TestAtrStopUsesATRMultipleWhenAvailable(t *testing.T) {
	assert.Equal(t, 97.0, atrStop(domain.SideBuy, 100, 1.5, 2))
	assert.Equal(t, 103.0, atrStop(domain.SideSell, 100, 1.5, 2))
}

func TestAtrTargetFallsBackToFlatPercentWithoutATR(t *testing.T) {
	assert.Equal(t, 103.0, atrTarget(domain.SideBuy, 100, 0, 1.5))
	assert.Equal(t, 97.0, atrTarget(domain.SideSell, 100, 0, 1.5))
}

func TestAtrTargetUsesATRMultipleWhenAvailable(t *testing.T) {
	assert.Equal(t, 103.0, atrTarget(domain.SideBuy, 100, 1.5, 2))
	assert.Equal(t, 97.0, atrTarget(domain.SideSell, 100, 1.5, 2))
}

func TestClamp01Bounds(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-1))
	assert.Equal(t, 1.0, clamp01(2))
	assert.Equal(t, 0.5, clamp01(0.5))
}

func TestBaseStrategyNameAndWarmup(t *testing.T) {
	b := newBaseStrategy("custom", 42)
	assert.Equal(t, "custom", b.Name())
	assert.Equal(t, 42, b.MinWarmupBars())
}
