package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPortfolioSnapshotEquitySkipsUnknownPrices(t *testing.T) {
	snap := PortfolioSnapshot{
		Cash: decimal.NewFromInt(1000),
		Positions: map[Symbol]Position{
			"BTC/USD": {Symbol: "BTC/USD", Quantity: decimal.NewFromInt(2), AvgEntryPrice: decimal.NewFromInt(100)},
			"ETH/USD": {Symbol: "ETH/USD", Quantity: decimal.NewFromInt(3), AvgEntryPrice: decimal.NewFromInt(50)},
		},
	}
	prices := map[Symbol]decimal.Decimal{"BTC/USD": decimal.NewFromInt(150)}
	lastPrice := func(s Symbol) (decimal.Decimal, bool) {
		px, ok := prices[s]
		return px, ok
	}

	eq := snap.Equity(lastPrice)
	// 1000 cash + 2*150 BTC; ETH skipped for lacking a known price.
	assert.True(t, eq.Equal(decimal.NewFromInt(1300)), "got %s", eq.String())
}

func TestPortfolioSnapshotEquitySkipsClosedPositions(t *testing.T) {
	snap := PortfolioSnapshot{
		Cash: decimal.NewFromInt(500),
		Positions: map[Symbol]Position{
			"BTC/USD": {Symbol: "BTC/USD", Quantity: decimal.Zero},
		},
	}
	eq := snap.Equity(func(Symbol) (decimal.Decimal, bool) { return decimal.NewFromInt(999), true })
	assert.True(t, eq.Equal(decimal.NewFromInt(500)))
}

func TestPortfolioSnapshotCloneDeepCopiesPositions(t *testing.T) {
	orig := PortfolioSnapshot{
		Positions: map[Symbol]Position{
			"BTC/USD": {
				Symbol:       "BTC/USD",
				Quantity:     decimal.NewFromInt(1),
				TrailingStop: &TrailingStopState{StopPrice: decimal.NewFromInt(90)},
			},
		},
	}
	clone := orig.Clone()
	clone.Positions["BTC/USD"].TrailingStop.StopPrice = decimal.NewFromInt(50)

	assert.True(t, orig.Positions["BTC/USD"].TrailingStop.StopPrice.Equal(decimal.NewFromInt(90)),
		"mutating the clone's trailing stop must not alias the original")
}

func TestRiskStateDrawdown(t *testing.T) {
	r := RiskState{EquityHWM: decimal.NewFromInt(1000)}
	dd := r.Drawdown(decimal.NewFromInt(900))
	assert.True(t, dd.Equal(decimal.NewFromFloat(0.1)), "got %s", dd.String())

	noHWM := RiskState{}
	assert.True(t, noHWM.Drawdown(decimal.NewFromInt(100)).IsZero())
}

func TestRiskStateDailyLossPct(t *testing.T) {
	r := RiskState{
		SessionStartEquity: decimal.NewFromInt(1000),
		DailyRealizedPnL:   decimal.NewFromInt(-50),
	}
	loss := r.DailyLossPct()
	assert.True(t, loss.Equal(decimal.NewFromFloat(0.05)), "got %s", loss.String())

	profitable := RiskState{SessionStartEquity: decimal.NewFromInt(1000), DailyRealizedPnL: decimal.NewFromInt(50)}
	assert.True(t, profitable.DailyLossPct().IsZero())

	noSession := RiskState{}
	assert.True(t, noSession.DailyLossPct().IsZero())
}
