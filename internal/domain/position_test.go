package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPositionIsOpenIsLong(t *testing.T) {
	long := Position{Quantity: decimal.NewFromInt(5)}
	assert.True(t, long.IsOpen())
	assert.True(t, long.IsLong())

	short := Position{Quantity: decimal.NewFromInt(-5)}
	assert.True(t, short.IsOpen())
	assert.False(t, short.IsLong())

	flat := Position{Quantity: decimal.Zero}
	assert.False(t, flat.IsOpen())
}

func TestPositionUnrealizedPnL(t *testing.T) {
	p := Position{Quantity: decimal.NewFromInt(10), AvgEntryPrice: decimal.NewFromInt(100)}
	pnl := p.UnrealizedPnL(decimal.NewFromInt(110))
	assert.True(t, pnl.Equal(decimal.NewFromInt(100)), "got %s", pnl.String())

	short := Position{Quantity: decimal.NewFromInt(-10), AvgEntryPrice: decimal.NewFromInt(100)}
	shortPnl := short.UnrealizedPnL(decimal.NewFromInt(90))
	assert.True(t, shortPnl.Equal(decimal.NewFromInt(100)), "got %s", shortPnl.String())
}

func TestTrailingStopTightenLongNeverLoosens(t *testing.T) {
	ts := &TrailingStopState{ATRMultiplier: 2}
	ts.Tighten(true, decimal.NewFromInt(100), decimal.NewFromInt(2))
	firstStop := ts.StopPrice
	assert.True(t, firstStop.Equal(decimal.NewFromInt(96)), "got %s", firstStop.String())

	// Price drops; stop must not loosen (move down).
	ts.Tighten(true, decimal.NewFromInt(95), decimal.NewFromInt(2))
	assert.True(t, ts.StopPrice.Equal(firstStop), "stop loosened: got %s want %s", ts.StopPrice.String(), firstStop.String())

	// Price rallies; stop should tighten upward.
	ts.Tighten(true, decimal.NewFromInt(110), decimal.NewFromInt(2))
	assert.True(t, ts.StopPrice.GreaterThan(firstStop))
}

func TestTrailingStopTriggered(t *testing.T) {
	ts := TrailingStopState{StopPrice: decimal.NewFromInt(95)}
	assert.True(t, ts.Triggered(true, decimal.NewFromInt(94)))
	assert.False(t, ts.Triggered(true, decimal.NewFromInt(96)))

	short := TrailingStopState{StopPrice: decimal.NewFromInt(105)}
	assert.True(t, short.Triggered(false, decimal.NewFromInt(106)))
	assert.False(t, short.Triggered(false, decimal.NewFromInt(104)))
}

func TestTrailingStopTriggeredZeroStopNeverFires(t *testing.T) {
	ts := TrailingStopState{}
	assert.False(t, ts.Triggered(true, decimal.NewFromInt(1)))
}
