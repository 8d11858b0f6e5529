package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveMomentumRequiresMultipleConfirmingSignals(t *testing.T) {
	m := NewManager(DefaultConfig())

	none := m.deriveMomentum(AnalysisResult{})
	assert.Equal(t, SignalNone, none)

	oneBuySignal := m.deriveMomentum(AnalysisResult{RSI: RSIResult{IsOversold: true}})
	assert.Equal(t, SignalNone, oneBuySignal, "a single weak signal should not trigger a call")

	strongBuy := m.deriveMomentum(AnalysisResult{
		RSI:  RSIResult{IsOversold: true},
		MACD: MACDResult{Crossover: CrossoverBullish, Histogram: 1},
	})
	assert.Equal(t, SignalStrongBuy, strongBuy)
}

func TestDeriveVolatilityPrefersATRThenBollinger(t *testing.T) {
	m := NewManager(DefaultConfig())

	high := m.deriveVolatility(AnalysisResult{ATR: ATRResult{HighVolatility: true}})
	assert.Equal(t, VolatilityHigh, high)

	squeeze := m.deriveVolatility(AnalysisResult{Bollinger: BollingerResult{Squeeze: true}})
	assert.Equal(t, VolatilityLow, squeeze)

	normal := m.deriveVolatility(AnalysisResult{Bollinger: BollingerResult{Width: 0.05}})
	assert.Equal(t, VolatilityNormal, normal)
}

func TestDeriveTrendDirectionFallsBackToMAWhenNotTrending(t *testing.T) {
	m := NewManager(DefaultConfig())

	trending := m.deriveTrendDirection(AnalysisResult{ADX: ADXResult{Trending: true, Direction: TrendUp}})
	assert.Equal(t, TrendUp, trending)

	notTrending := m.deriveTrendDirection(AnalysisResult{ADX: ADXResult{Trending: false}, MA: MAResult{Trend: TrendDown}})
	assert.Equal(t, TrendDown, notTrending)
}

func TestDeriveOverallSignalStrongBuyOnAlignedFactors(t *testing.T) {
	m := NewManager(DefaultConfig())
	res := AnalysisResult{
		TrendDir:      TrendUp,
		TrendStrength: TrendStrong,
		Momentum:      SignalStrongBuy,
		Volume:        VolumeResult{IsHighVolume: true},
	}
	assert.Equal(t, SignalStrongBuy, m.deriveOverallSignal(res))
}

func TestAnalyzeProducesNeutralResultOnInsufficientWarmup(t *testing.T) {
	m := NewManager(DefaultConfig())
	closes := []float64{100, 101, 102}
	res := m.Analyze(closes, closes, closes, closes, closes)
	assert.Equal(t, 0.0, res.RSI.Value, "indicators that haven't warmed up should stay at their zero value")
}

func TestUpdateConfigRebuildsIndicators(t *testing.T) {
	m := NewManager(DefaultConfig())
	cfg := DefaultConfig()
	cfg.RSIPeriod = 21
	m.UpdateConfig(cfg)
	assert.Equal(t, 21, m.GetConfig().RSIPeriod)
}

func TestUpdateAccumulatesBarsAcrossCalls(t *testing.T) {
	m := NewManager(DefaultConfig())

	price := 100.0
	var last AnalysisResult
	for i := 0; i < 40; i++ {
		price += 1
		last = m.Update(price, price+1, price-1, price, 10)
	}

	assert.Len(t, m.closes, 40, "Update should retain every bar fed so far")
	assert.Equal(t, last, m.Last(), "Last should return the result of the most recent Update call")
	assert.NotZero(t, last.RSI.Value, "40 rising bars is enough warmup for RSI to have a value")
}

func TestUpdateTrimsToMaxWindow(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.SetMaxWindow(10)

	for i := 0; i < 25; i++ {
		m.Update(float64(100+i), float64(101+i), float64(99+i), float64(100+i), 10)
	}

	assert.Len(t, m.closes, 10, "Update must trim retained history down to maxWindow")
	assert.Equal(t, 124.0, m.closes[len(m.closes)-1], "trimming should keep the most recent bars")
}

func TestSetMaxWindowTrimsExistingHistoryImmediately(t *testing.T) {
	m := NewManager(DefaultConfig())
	for i := 0; i < 20; i++ {
		m.Update(float64(i), float64(i), float64(i), float64(i), 1)
	}
	require.Len(t, m.closes, 20)

	m.SetMaxWindow(5)
	assert.Len(t, m.closes, 5)
}
