package sentinel

import (
	"sync"
	"time"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

// CandleAggregator builds 1-minute candles from a stream of quotes,
// one in-progress builder per symbol, sealing on the UTC minute
// boundary. It never holds a lock across the caller-supplied sink
// callback.
type CandleAggregator struct {
	mu       sync.Mutex
	building map[domain.Symbol]*domain.Candle
	onSealed func(domain.Candle)
}

// NewCandleAggregator constructs an aggregator that invokes onSealed
// for every 1m candle it seals.
func NewCandleAggregator(onSealed func(domain.Candle)) *CandleAggregator {
	return &CandleAggregator{
		building: make(map[domain.Symbol]*domain.Candle),
		onSealed: onSealed,
	}
}

// minuteBoundary truncates t down to the start of its UTC minute.
func minuteBoundary(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

// OnQuote folds a trade tick into the in-progress 1m candle for its
// symbol, sealing and emitting the previous candle first if the quote
// belongs to a new minute.
func (a *CandleAggregator) OnQuote(q domain.Quote) {
	open := minuteBoundary(q.Timestamp)

	a.mu.Lock()
	cur, ok := a.building[q.Symbol]
	if ok && !cur.OpenTime.Equal(open) {
		sealed := *cur
		sealed.CloseTime = cur.OpenTime.Add(time.Minute)
		sealed.Sealed = true
		delete(a.building, q.Symbol)
		a.mu.Unlock()
		a.onSealed(sealed)
		a.mu.Lock()
		ok = false
	}

	if !ok {
		a.building[q.Symbol] = &domain.Candle{
			Symbol:    q.Symbol,
			Timeframe: domain.Timeframe1m,
			OpenTime:  open,
			Open:      q.Price,
			High:      q.Price,
			Low:       q.Price,
			Close:     q.Price,
			Volume:    q.Quantity,
			Trades:    1,
		}
		a.mu.Unlock()
		return
	}

	cur = a.building[q.Symbol]
	if q.Price.GreaterThan(cur.High) {
		cur.High = q.Price
	}
	if q.Price.LessThan(cur.Low) {
		cur.Low = q.Price
	}
	cur.Close = q.Price
	cur.Volume = cur.Volume.Add(q.Quantity)
	cur.Trades++
	a.mu.Unlock()
}

// Flush force-seals every in-progress candle, used on shutdown so the
// last partial minute isn't silently discarded.
func (a *CandleAggregator) Flush(now time.Time) {
	a.mu.Lock()
	pending := a.building
	a.building = make(map[domain.Symbol]*domain.Candle)
	a.mu.Unlock()

	for _, cur := range pending {
		sealed := *cur
		sealed.CloseTime = now.UTC()
		sealed.Sealed = true
		a.onSealed(sealed)
	}
}

// TimeframeAggregator rolls sealed candles up the chain
// 1m -> 5m -> 15m -> 1h -> 4h -> 1d, UTC-boundary aligned, one
// in-progress bar per (symbol, timeframe).
type TimeframeAggregator struct {
	mu       sync.Mutex
	building map[domain.Symbol]map[domain.Timeframe]*domain.Candle
	onSealed func(domain.Candle)
}

// NewTimeframeAggregator constructs a roll-up chain invoking onSealed
// for every higher-timeframe candle it seals (not for the 1m input).
func NewTimeframeAggregator(onSealed func(domain.Candle)) *TimeframeAggregator {
	return &TimeframeAggregator{
		building: make(map[domain.Symbol]map[domain.Timeframe]*domain.Candle),
		onSealed: onSealed,
	}
}

// OnSealed1m feeds one sealed 1m candle into the roll-up chain,
// recursively sealing and propagating every higher timeframe whose
// window just closed.
func (t *TimeframeAggregator) OnSealed1m(c domain.Candle) {
	t.roll(c, domain.Timeframe1m)
}

func (t *TimeframeAggregator) roll(c domain.Candle, from domain.Timeframe) {
	to, ok := domain.NextTimeframe(from)
	if !ok {
		return
	}
	secs, _ := to.Duration()
	boundary := time.Unix(c.OpenTime.Unix()/secs*secs, 0).UTC()

	t.mu.Lock()
	bySymbol, ok := t.building[c.Symbol]
	if !ok {
		bySymbol = make(map[domain.Timeframe]*domain.Candle)
		t.building[c.Symbol] = bySymbol
	}
	cur, ok := bySymbol[to]

	if ok && !cur.OpenTime.Equal(boundary) {
		sealed := *cur
		sealed.CloseTime = cur.OpenTime.Add(time.Duration(secs) * time.Second)
		sealed.Sealed = true
		delete(bySymbol, to)
		t.mu.Unlock()
		t.onSealed(sealed)
		t.roll(sealed, to)
		t.mu.Lock()
		ok = false
	}

	if !ok {
		bySymbol[to] = &domain.Candle{
			Symbol:    c.Symbol,
			Timeframe: to,
			OpenTime:  boundary,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
			Trades:    c.Trades,
		}
		t.mu.Unlock()
		return
	}

	cur = bySymbol[to]
	if c.High.GreaterThan(cur.High) {
		cur.High = c.High
	}
	if c.Low.LessThan(cur.Low) {
		cur.Low = c.Low
	}
	cur.Close = c.Close
	cur.Volume = cur.Volume.Add(c.Volume)
	cur.Trades += c.Trades
	t.mu.Unlock()
}
