package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMACDUpdateZeroBeforeWarmup(t *testing.T) {
	m := NewMACD(12, 26, 9)
	for i := 0; i < 25; i++ {
		res := m.Update(float64(100 + i))
		assert.Equal(t, MACDResult{}, res)
	}
}

func TestMACDPositiveOnUptrend(t *testing.T) {
	m := NewMACD(12, 26, 9)
	price := 100.0
	var last MACDResult
	for i := 0; i < 60; i++ {
		price += 1
		last = m.Update(price)
	}
	assert.Greater(t, last.MACD, 0.0, "a sustained uptrend should pull the fast EMA above the slow EMA")
}

func TestMACDNegativeOnDowntrend(t *testing.T) {
	m := NewMACD(12, 26, 9)
	price := 200.0
	var last MACDResult
	for i := 0; i < 60; i++ {
		price -= 1
		last = m.Update(price)
	}
	assert.Less(t, last.MACD, 0.0)
}
