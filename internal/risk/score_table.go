package risk

import "github.com/shopspring/decimal"

// ScoreParams is the explicit set of risk parameters derived from a
// single risk_appetite_score (1-10), published so the mapping is data
// a reader can inspect rather than magic numbers scattered through the
// validation chain.
type ScoreParams struct {
	RiskPerTradePct      decimal.Decimal
	MaxPositionPct       decimal.Decimal
	MaxDailyLossPct      decimal.Decimal
	MaxDrawdownPct       decimal.Decimal
	ConsecutiveLossLimit int
	MaxSectorExposurePct decimal.Decimal
	CorrelationCap       decimal.Decimal
	MinRiskRewardRatio   decimal.Decimal
	AggressiveThreshold  float64 // confidence above this at score>=7 invites the sentiment gate
}

// scoreTable steps each field from the conservative floor (score 1) to
// the aggressive ceiling (score 10) in uneven increments. Every field is
// monotonic in the score: the sizing, loss, drawdown, sector,
// correlation and consecutive-loss limits never fall as appetite rises,
// and MinRiskRewardRatio and AggressiveThreshold never rise.
var scoreTable = map[int]ScoreParams{
	1:  {d("0.005"), d("0.05"), d("0.02"), d("0.10"), 3, d("0.20"), d("0.50"), d("2.0"), 1.1},
	2:  {d("0.0075"), d("0.07"), d("0.025"), d("0.12"), 3, d("0.22"), d("0.55"), d("1.9"), 1.1},
	3:  {d("0.01"), d("0.09"), d("0.03"), d("0.14"), 4, d("0.25"), d("0.60"), d("1.8"), 1.1},
	4:  {d("0.0125"), d("0.11"), d("0.035"), d("0.16"), 4, d("0.27"), d("0.62"), d("1.7"), 1.0},
	5:  {d("0.015"), d("0.13"), d("0.04"), d("0.18"), 5, d("0.30"), d("0.65"), d("1.6"), 1.0},
	6:  {d("0.0175"), d("0.15"), d("0.045"), d("0.20"), 5, d("0.32"), d("0.68"), d("1.5"), 0.9},
	7:  {d("0.02"), d("0.17"), d("0.05"), d("0.22"), 6, d("0.35"), d("0.70"), d("1.4"), 0.7},
	8:  {d("0.025"), d("0.20"), d("0.06"), d("0.25"), 6, d("0.38"), d("0.75"), d("1.3"), 0.6},
	9:  {d("0.03"), d("0.23"), d("0.07"), d("0.28"), 7, d("0.40"), d("0.80"), d("1.2"), 0.5},
	10: {d("0.04"), d("0.25"), d("0.08"), d("0.30"), 8, d("0.45"), d("0.85"), d("1.1"), 0.4},
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// ForScore returns the parameters for a risk_appetite_score, clamping
// to [1,10].
func ForScore(score int) ScoreParams {
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return scoreTable[score]
}
