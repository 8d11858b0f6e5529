package risk

import (
	"github.com/shopspring/decimal"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

// SizeResult is the outcome of position-sizing math, all decimal.
type SizeResult struct {
	Quantity     decimal.Decimal
	RiskAmount   decimal.Decimal
	StopDistance decimal.Decimal
}

// CalculateSize computes quantity = risk_amount / stop_distance,
// capped by max_position_pct * equity / price. Returns a zero
// quantity if stop_distance is non-positive (no stop set, or stop on
// the wrong side of entry).
func CalculateSize(equity, entry, stopLoss decimal.Decimal, side domain.OrderSide, params ScoreParams) SizeResult {
	var stopDistance decimal.Decimal
	if side == domain.SideBuy {
		stopDistance = entry.Sub(stopLoss)
	} else {
		stopDistance = stopLoss.Sub(entry)
	}
	if !stopDistance.IsPositive() {
		return SizeResult{}
	}

	riskAmount := equity.Mul(params.RiskPerTradePct)
	qty := riskAmount.Div(stopDistance)

	maxQty := equity.Mul(params.MaxPositionPct).Div(entry)
	if qty.GreaterThan(maxQty) {
		qty = maxQty
		riskAmount = qty.Mul(stopDistance)
	}

	return SizeResult{Quantity: qty, RiskAmount: riskAmount, StopDistance: stopDistance}
}

// RiskRewardRatio computes reward/risk given entry/stop/target for a
// side, returning zero if risk is non-positive.
func RiskRewardRatio(side domain.OrderSide, entry, stopLoss, takeProfit decimal.Decimal) decimal.Decimal {
	var risk, reward decimal.Decimal
	if side == domain.SideBuy {
		risk = entry.Sub(stopLoss)
		reward = takeProfit.Sub(entry)
	} else {
		risk = stopLoss.Sub(entry)
		reward = entry.Sub(takeProfit)
	}
	if !risk.IsPositive() {
		return decimal.Zero
	}
	return reward.Div(risk)
}
