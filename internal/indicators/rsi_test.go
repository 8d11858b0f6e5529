package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRSIUpdateNeutralBeforeWarmup(t *testing.T) {
	r := NewRSI(14, 70, 30)
	assert.Equal(t, 50.0, r.Update(100))
	assert.Equal(t, 50.0, r.Update(101))
}

func TestRSIRisesTowardOverboughtOnSustainedGains(t *testing.T) {
	r := NewRSI(14, 70, 30)
	price := 100.0
	var last float64
	for i := 0; i < 30; i++ {
		price += 1
		last = r.Update(price)
	}
	assert.Greater(t, last, 70.0, "sustained gains should push RSI into overbought territory")
}

func TestRSIFallsTowardOversoldOnSustainedLosses(t *testing.T) {
	r := NewRSI(14, 70, 30)
	price := 100.0
	var last float64
	for i := 0; i < 30; i++ {
		price -= 1
		last = r.Update(price)
	}
	assert.Less(t, last, 30.0, "sustained losses should push RSI into oversold territory")
}

func TestRSICalculateNeutralWithInsufficientData(t *testing.T) {
	r := NewRSI(14, 70, 30)
	res := r.Calculate([]float64{100, 101, 102})
	assert.Equal(t, 50.0, res.Value)
}

func TestRSICalculateFlagsOverbought(t *testing.T) {
	r := NewRSI(14, 70, 30)
	closes := make([]float64, 0, 20)
	price := 100.0
	for i := 0; i < 20; i++ {
		price += 2
		closes = append(closes, price)
	}
	res := r.Calculate(closes)
	assert.True(t, res.IsOverbought)
	assert.False(t, res.IsOversold)
}
