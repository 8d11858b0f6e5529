package risk

import (
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/stat"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

// CorrelationMatrix is an immutable snapshot of pairwise Pearson
// correlation of daily returns across the currently-held symbols.
type CorrelationMatrix struct {
	values map[domain.Symbol]map[domain.Symbol]float64
}

// Get returns the correlation between a and b, or 0 if either is
// unknown (treated as uncorrelated rather than blocking the trade).
func (m *CorrelationMatrix) Get(a, b domain.Symbol) float64 {
	if m == nil || a == b {
		return 0
	}
	if row, ok := m.values[a]; ok {
		return row[b]
	}
	return 0
}

// CorrelationTracker accumulates a rolling return window per symbol
// and refreshes a CorrelationMatrix in the background. Readers
// dereference an atomic pointer; the refresh computation never holds
// a lock the validator can block on.
type CorrelationTracker struct {
	mu      sync.Mutex
	returns map[domain.Symbol][]float64
	window  int

	current atomic.Pointer[CorrelationMatrix]
}

// NewCorrelationTracker builds a tracker retaining the last window
// daily returns per symbol.
func NewCorrelationTracker(window int) *CorrelationTracker {
	if window <= 0 {
		window = 60
	}
	t := &CorrelationTracker{returns: make(map[domain.Symbol][]float64), window: window}
	t.current.Store(&CorrelationMatrix{values: map[domain.Symbol]map[domain.Symbol]float64{}})
	return t
}

// PushReturn records one daily return observation for symbol.
func (t *CorrelationTracker) PushReturn(symbol domain.Symbol, ret float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	series := append(t.returns[symbol], ret)
	if len(series) > t.window {
		series = series[len(series)-t.window:]
	}
	t.returns[symbol] = series
}

// Refresh recomputes the full pairwise matrix and atomically
// publishes it. Intended to run on a periodic background task, never
// inline with a validation decision.
func (t *CorrelationTracker) Refresh() {
	t.mu.Lock()
	snapshot := make(map[domain.Symbol][]float64, len(t.returns))
	for sym, series := range t.returns {
		cp := make([]float64, len(series))
		copy(cp, series)
		snapshot[sym] = cp
	}
	t.mu.Unlock()

	values := make(map[domain.Symbol]map[domain.Symbol]float64, len(snapshot))
	for a, seriesA := range snapshot {
		values[a] = make(map[domain.Symbol]float64, len(snapshot))
		for b, seriesB := range snapshot {
			if a == b || len(seriesA) < 2 || len(seriesB) < 2 {
				continue
			}
			n := len(seriesA)
			if len(seriesB) < n {
				n = len(seriesB)
			}
			values[a][b] = stat.Correlation(seriesA[len(seriesA)-n:], seriesB[len(seriesB)-n:], nil)
		}
	}

	t.current.Store(&CorrelationMatrix{values: values})
}

// Snapshot returns the currently published matrix.
func (t *CorrelationTracker) Snapshot() *CorrelationMatrix {
	return t.current.Load()
}
