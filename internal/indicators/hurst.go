package indicators

import "math"

// Hurst estimates the Hurst exponent of a price series via rescaled-range
// (R/S) analysis over a set of sub-series lengths. Values above 0.5
// indicate trending (persistent) behavior, below 0.5 indicate mean
// reverting (anti-persistent) behavior, and 0.5 is a random walk.
//
// Returns 0.5 (random-walk default) when there isn't enough data to form
// at least four distinct window sizes.
func Hurst(closes []float64) float64 {
	n := len(closes)
	if n < 32 {
		return 0.5
	}

	returns := Diff(closes)
	if len(returns) < 16 {
		return 0.5
	}

	var windowSizes []int
	for size := 8; size <= len(returns)/2; size *= 2 {
		windowSizes = append(windowSizes, size)
	}
	if len(windowSizes) < 4 {
		return 0.5
	}

	var logSizes, logRS []float64
	for _, size := range windowSizes {
		rs := avgRescaledRange(returns, size)
		if rs <= 0 {
			continue
		}
		logSizes = append(logSizes, math.Log(float64(size)))
		logRS = append(logRS, math.Log(rs))
	}

	if len(logSizes) < 4 {
		return 0.5
	}

	slope, _ := linRegXY(logSizes, logRS)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 0.5
	}
	return ClampF(slope, 0, 1)
}

// avgRescaledRange averages the rescaled range statistic across every
// non-overlapping chunk of the given size, per the classic R/S method.
func avgRescaledRange(returns []float64, size int) float64 {
	chunks := len(returns) / size
	if chunks == 0 {
		return 0
	}

	var sumRS float64
	var used int
	for c := 0; c < chunks; c++ {
		chunk := returns[c*size : (c+1)*size]
		mean := Mean(chunk)

		var cumulative, maxCum, minCum float64
		for i, v := range chunk {
			cumulative += v - mean
			if i == 0 || cumulative > maxCum {
				maxCum = cumulative
			}
			if i == 0 || cumulative < minCum {
				minCum = cumulative
			}
		}

		r := maxCum - minCum
		s := StdDevSample(chunk)
		if s == 0 {
			continue
		}
		sumRS += r / s
		used++
	}

	if used == 0 {
		return 0
	}
	return sumRS / float64(used)
}

// linRegXY fits y = slope*x + intercept via ordinary least squares over
// paired (non-index) series, unlike LinearRegression which assumes
// x = 0..n-1.
func linRegXY(x, y []float64) (slope, intercept float64) {
	n := len(x)
	if n < 2 || n != len(y) {
		return 0, 0
	}

	meanX := Mean(x)
	meanY := Mean(y)

	var num, den float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		num += dx * (y[i] - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0, meanY
	}
	slope = num / den
	intercept = meanY - slope*meanX
	return
}

// ClampF restricts v to the closed interval [lo, hi].
func ClampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AnnualizedLogVolatility returns the sample standard deviation of log
// returns for the given closes, annualized by the square root of
// barsPerYear, the number of bars in a year (e.g. 525600 for 1-minute
// candles, 365 for daily candles).
func AnnualizedLogVolatility(closes []float64, barsPerYear float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	logReturns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		logReturns = append(logReturns, math.Log(closes[i]/closes[i-1]))
	}
	if len(logReturns) < 2 {
		return 0
	}
	return StdDevSample(logReturns) * math.Sqrt(barsPerYear)
}
