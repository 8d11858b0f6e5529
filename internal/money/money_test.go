package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFromFloatToFloatRoundTrip(t *testing.T) {
	d := FromFloat(123.456)
	assert.InDelta(t, 123.456, ToFloat(d), 1e-9)
}

func TestRound8(t *testing.T) {
	d := decimal.NewFromFloat(1.0 / 3.0)
	rounded := Round8(d)
	assert.True(t, rounded.Exponent() >= -8)
}

func TestIsPositiveIsNegative(t *testing.T) {
	assert.True(t, IsPositive(decimal.NewFromInt(1)))
	assert.False(t, IsPositive(decimal.Zero))
	assert.False(t, IsPositive(decimal.NewFromInt(-1)))

	assert.True(t, IsNegative(decimal.NewFromInt(-1)))
	assert.False(t, IsNegative(decimal.Zero))
	assert.False(t, IsNegative(decimal.NewFromInt(1)))
}

func TestMaxMin(t *testing.T) {
	a := decimal.NewFromInt(5)
	b := decimal.NewFromInt(9)
	assert.True(t, Max(a, b).Equal(b))
	assert.True(t, Min(a, b).Equal(a))
}

func TestAbs(t *testing.T) {
	assert.True(t, Abs(decimal.NewFromInt(-7)).Equal(decimal.NewFromInt(7)))
}

func TestPercentOf(t *testing.T) {
	whole := decimal.NewFromInt(10000)
	got := PercentOf(whole, 0.02)
	assert.True(t, got.Equal(decimal.NewFromInt(200)), "got %s", got.String())
}
