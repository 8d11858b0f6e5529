package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

// openLeg is the tradeTracker's view of the currently open position on
// its symbol, kept independently of portfolio.StateManager so the
// report can attribute a realized Trade to the strategy and reason
// that opened it — detail the Portfolio's own Position doesn't carry.
type openLeg struct {
	EntryTime  time.Time
	EntryPrice decimal.Decimal
	Quantity   decimal.Decimal // signed: positive long, negative short
	Strategy   string
	Commission decimal.Decimal
}

// tradeTracker folds a single symbol's fill stream into closed-trade
// records, mirroring the weighted-average-entry bookkeeping
// portfolio.StateManager.ApplyFill and mock.Broker.applyPositionDelta
// both do, since neither exposes enough history to reconstruct a round
// trip after the fact.
type tradeTracker struct {
	symbol domain.Symbol
	leg    *openLeg
	trades []Trade
}

func newTradeTracker(symbol domain.Symbol) *tradeTracker {
	return &tradeTracker{symbol: symbol}
}

// strategy returns the strategy that opened the currently open leg, or
// the empty string if flat — used to label the final liquidation order
// when a backtest ends with a position still open.
func (t *tradeTracker) strategy() string {
	if t.leg == nil {
		return ""
	}
	return t.leg.Strategy
}

// apply folds one fill into the tracker, recording a Trade whenever
// the position returns to flat or flips through it.
func (t *tradeTracker) apply(order domain.Order, fillQty, fillPrice, commission decimal.Decimal, now time.Time) {
	signedQty := fillQty
	if order.Side == domain.SideSell {
		signedQty = fillQty.Neg()
	}

	if t.leg == nil {
		t.leg = &openLeg{EntryTime: now, EntryPrice: fillPrice, Quantity: signedQty, Strategy: order.StrategyID, Commission: commission}
		return
	}

	if sameSign(t.leg.Quantity, signedQty) {
		totalCost := t.leg.EntryPrice.Mul(t.leg.Quantity.Abs()).Add(fillPrice.Mul(fillQty))
		t.leg.Quantity = t.leg.Quantity.Add(signedQty)
		if !t.leg.Quantity.IsZero() {
			t.leg.EntryPrice = totalCost.Div(t.leg.Quantity.Abs())
		}
		t.leg.Commission = t.leg.Commission.Add(commission)
		return
	}

	closedQty := decimal.Min(t.leg.Quantity.Abs(), fillQty)
	entrySide := domain.SideBuy
	if t.leg.Quantity.IsNegative() {
		entrySide = domain.SideSell
	}

	var grossProfit decimal.Decimal
	if entrySide == domain.SideBuy {
		grossProfit = closedQty.Mul(fillPrice.Sub(t.leg.EntryPrice))
	} else {
		grossProfit = closedQty.Mul(t.leg.EntryPrice.Sub(fillPrice))
	}

	exitCommission := commission
	if !fillQty.Equal(closedQty) && fillQty.IsPositive() {
		exitCommission = commission.Mul(closedQty).Div(fillQty)
	}
	netProfit := grossProfit.Sub(t.leg.Commission).Sub(exitCommission)

	costBasis := t.leg.EntryPrice.Mul(closedQty)
	returnPct := decimal.Zero
	if costBasis.IsPositive() {
		returnPct = netProfit.Div(costBasis).Mul(decimal.NewFromInt(100))
	}

	t.trades = append(t.trades, Trade{
		Symbol:     t.symbol,
		Strategy:   t.leg.Strategy,
		Side:       entrySide,
		EntryTime:  t.leg.EntryTime,
		ExitTime:   now,
		EntryPrice: t.leg.EntryPrice,
		ExitPrice:  fillPrice,
		Quantity:   closedQty,
		NetProfit:  netProfit,
		ReturnPct:  returnPct,
		ExitReason: order.ExitReason,
		Commission: t.leg.Commission.Add(exitCommission),
	})

	remaining := t.leg.Quantity.Add(signedQty)
	if remaining.IsZero() {
		t.leg = nil
		return
	}

	// The fill crossed through flat; the remainder opens a fresh leg at
	// this fill's price, carrying its pro-rata share of the commission.
	remainderQty := fillQty.Sub(closedQty)
	remainderCommission := decimal.Zero
	if fillQty.IsPositive() {
		remainderCommission = commission.Mul(remainderQty).Div(fillQty)
	}
	t.leg = &openLeg{EntryTime: now, EntryPrice: fillPrice, Quantity: remaining, Strategy: order.StrategyID, Commission: remainderCommission}
}

func sameSign(a, b decimal.Decimal) bool {
	return (a.IsPositive() && b.IsPositive()) || (a.IsNegative() && b.IsNegative())
}
