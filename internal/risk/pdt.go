package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

// PDTEquityFloor is the account equity above which the day-trade
// restriction no longer applies (mirrors FINRA's $25,000 threshold).
var PDTEquityFloor = decimal.NewFromInt(25000)

// DayTradeTracker records round-trip day trades (a symbol bought and
// sold within the same session) over a rolling 5-business-day window,
// enforcing the pattern-day-trader rule for sub-floor accounts.
type DayTradeTracker struct {
	mu          sync.Mutex
	openedToday map[domain.Symbol]time.Time
	dayTrades   []time.Time
}

func NewDayTradeTracker() *DayTradeTracker {
	return &DayTradeTracker{openedToday: make(map[domain.Symbol]time.Time)}
}

// RecordOpen notes that symbol was bought into a new or increased
// position at t; used to detect a same-day round trip on exit.
func (t *DayTradeTracker) RecordOpen(symbol domain.Symbol, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.openedToday[symbol] = at
}

// WouldBeDayTrade reports whether selling symbol at t would close a
// position opened earlier the same calendar day (UTC).
func (t *DayTradeTracker) WouldBeDayTrade(symbol domain.Symbol, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	opened, ok := t.openedToday[symbol]
	return ok && sameUTCDay(opened, at)
}

// RecordDayTrade appends a day trade event, trimming anything older
// than the rolling 5-business-day window.
func (t *DayTradeTracker) RecordDayTrade(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dayTrades = append(t.dayTrades, at)
	t.trim(at)
}

// CountInWindow returns how many day trades fall within the last 5
// business days as of now.
func (t *DayTradeTracker) CountInWindow(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.trim(now)
	return len(t.dayTrades)
}

func (t *DayTradeTracker) trim(now time.Time) {
	cutoff := businessDaysBefore(now, 5)
	kept := t.dayTrades[:0]
	for _, ts := range t.dayTrades {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	t.dayTrades = kept
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// businessDaysBefore walks back n weekday (Mon-Fri) boundaries from t.
func businessDaysBefore(t time.Time, n int) time.Time {
	d := t
	for n > 0 {
		d = d.AddDate(0, 0, -1)
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			n--
		}
	}
	return d
}
