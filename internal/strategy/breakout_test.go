package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradebotlabs/trading-engine/internal/domain"
	"github.com/tradebotlabs/trading-engine/internal/indicators"
)

func closesOfLen(n int) []float64 {
	c := make([]float64, n)
	for i := range c {
		c[i] = 100
	}
	return c
}

func TestBreakoutReturnsNoSignalBeforeWarmup(t *testing.T) {
	s := NewBreakout(DefaultBreakoutConfig())
	ctx := &Context{Closes: closesOfLen(10)}
	sig, ok := s.Analyze(ctx)
	assert.False(t, ok)
	assert.Nil(t, sig)
}

func TestBreakoutRequiresSqueezeBeforeBreakingOut(t *testing.T) {
	s := NewBreakout(DefaultBreakoutConfig())
	ctx := &Context{
		Closes: closesOfLen(50),
		Analysis: indicators.AnalysisResult{
			ADX:       indicators.ADXResult{ADX: 25},
			Bollinger: indicators.BollingerResult{Breakout: indicators.BreakoutUpper, Squeeze: false},
		},
	}
	_, ok := s.Analyze(ctx)
	assert.False(t, ok, "no prior squeeze bar means RequireSqueeze should block the signal")
}

func TestBreakoutFiresBuyOnUpperBandBreakoutDuringSqueeze(t *testing.T) {
	s := NewBreakout(DefaultBreakoutConfig())
	ctx := &Context{
		Closes: append(closesOfLen(49), 110),
		Analysis: indicators.AnalysisResult{
			ADX:       indicators.ADXResult{ADX: 25},
			Bollinger: indicators.BollingerResult{Squeeze: true, Breakout: indicators.BreakoutUpper},
			ATR:       indicators.ATRResult{ATR: 2},
			Volume:    indicators.VolumeResult{Ratio: 2.0, IsHighVolume: true},
		},
	}

	sig, ok := s.Analyze(ctx)
	require.True(t, ok)
	require.NotNil(t, sig)
	assert.Equal(t, domain.SideBuy, sig.Side)
	assert.True(t, sig.Aggressive)
	assert.Greater(t, sig.Confidence, 0.0)
}

func TestBreakoutBlocksOnLowADX(t *testing.T) {
	cfg := DefaultBreakoutConfig()
	s := NewBreakout(cfg)
	ctx := &Context{
		Closes: closesOfLen(50),
		Analysis: indicators.AnalysisResult{
			ADX:       indicators.ADXResult{ADX: 5},
			Bollinger: indicators.BollingerResult{Breakout: indicators.BreakoutUpper, Squeeze: true},
		},
	}
	_, ok := s.Analyze(ctx)
	assert.False(t, ok, "ADX below MinADXForBreakout should block entry regardless of band breakout")
}
