package sentinel

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

// RejectionCounters is a snapshot of validation-drop counts by reason,
// exposed on the API's metrics endpoint.
type RejectionCounters struct {
	InvalidQuote  int64
	InvalidCandle int64
	StaleEvent    int64
}

// Sentinel ingests a MarketDataProducer's event stream, validates every
// quote/candle, feeds the candle aggregation chain, and fans validated
// events out onto a bounded channel for the Analyst.
type Sentinel struct {
	log      zerolog.Logger
	producer domain.MarketDataProducer
	health   *ConnectionHealth

	candleAgg *CandleAggregator
	tfAgg     *TimeframeAggregator

	out chan<- domain.MarketEvent

	invalidQuotes  atomic.Int64
	invalidCandles atomic.Int64
	staleEvents    atomic.Int64

	lastCandleCloseTime map[domain.Symbol]time.Time
}

// New constructs a Sentinel publishing validated events on out and
// sealed candles (every timeframe) back on out as Candle events too.
func New(producer domain.MarketDataProducer, health *ConnectionHealth, out chan<- domain.MarketEvent, log zerolog.Logger) *Sentinel {
	s := &Sentinel{
		log:                 log.With().Str("component", "sentinel").Logger(),
		producer:            producer,
		health:              health,
		out:                 out,
		lastCandleCloseTime: make(map[domain.Symbol]time.Time),
	}
	s.candleAgg = NewCandleAggregator(s.emitSealed)
	s.tfAgg = NewTimeframeAggregator(s.emitSealed)
	return s
}

// Run subscribes to the producer and processes events until ctx is
// canceled or the producer's channel closes. It never blocks on a
// sleep; the zombie-heartbeat check rides a ticker alongside the
// event loop.
func (s *Sentinel) Run(ctx context.Context, symbols []domain.Symbol) error {
	events, err := s.producer.Subscribe(ctx, symbols)
	if err != nil {
		return err
	}

	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			s.candleAgg.Flush(time.Now())
			return ctx.Err()
		case <-heartbeat.C:
			s.health.CheckZombies(time.Now())
		case evt, ok := <-events:
			if !ok {
				s.health.ReportState(domain.StreamMarketData, domain.ConnOffline, time.Now(), "producer channel closed")
				return nil
			}
			s.handle(evt)
		}
	}
}

func (s *Sentinel) handle(evt domain.MarketEvent) {
	now := time.Now()
	s.health.ReportEvent(domain.StreamMarketData, now)

	switch {
	case evt.Quote != nil:
		if err := evt.Quote.Validate(); err != nil {
			s.invalidQuotes.Add(1)
			s.log.Debug().Err(err).Str("symbol", evt.Quote.Symbol.String()).Msg("dropped invalid quote")
			return
		}
		if s.isStale(evt.Quote.Symbol, evt.Quote.Timestamp) {
			s.staleEvents.Add(1)
			return
		}
		s.forward(evt)
		s.candleAgg.OnQuote(*evt.Quote)

	case evt.Candle != nil:
		if err := evt.Candle.Validate(); err != nil {
			s.invalidCandles.Add(1)
			s.log.Debug().Err(err).Str("symbol", evt.Candle.Symbol.String()).Msg("dropped invalid candle")
			return
		}
		s.forward(evt)

	case evt.Account != nil:
		s.forward(evt)
	}
}

// isStale rejects an event whose timestamp is not after the close time
// of the last candle already emitted for this symbol, so a late or
// replayed tick can never be mistaken for new information.
func (s *Sentinel) isStale(symbol domain.Symbol, ts time.Time) bool {
	last, ok := s.lastCandleCloseTime[symbol]
	return ok && !ts.After(last)
}

func (s *Sentinel) forward(evt domain.MarketEvent) {
	select {
	case s.out <- evt:
	default:
		s.log.Warn().Msg("market update channel full, dropping event")
	}
}

// emitSealed is the aggregation chain's sink: it rolls the 1m candle up
// the timeframe chain and publishes every sealed candle (at every
// level) as a MarketEvent.
func (s *Sentinel) emitSealed(c domain.Candle) {
	s.lastCandleCloseTime[c.Symbol] = c.CloseTime
	cc := c
	s.forward(domain.MarketEvent{Candle: &cc})
	if c.Timeframe == domain.Timeframe1m {
		s.tfAgg.OnSealed1m(c)
	}
}

// Counters returns a snapshot of validation-drop counts.
func (s *Sentinel) Counters() RejectionCounters {
	return RejectionCounters{
		InvalidQuote:  s.invalidQuotes.Load(),
		InvalidCandle: s.invalidCandles.Load(),
		StaleEvent:    s.staleEvents.Load(),
	}
}
