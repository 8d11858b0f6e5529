// Package mock implements domain.MarketDataProducer and
// domain.ExecutionSink entirely in memory: a synthetic random-walk
// price generator standing in for a real venue's market-data feed, and
// an immediate-fill paper book standing in for its order gateway. It
// backs the engine's default "mock" mode and the backtest engine's
// deterministic replay.
package mock

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

// Config tunes the synthetic market and the paper execution book.
type Config struct {
	Symbols        []domain.Symbol
	InitialPrices  map[domain.Symbol]decimal.Decimal // starting price per symbol, defaults to 100 if absent
	InitialCash    decimal.Decimal
	CommissionRate decimal.Decimal // fraction of notional
	SlippageBps    int64           // applied against the mid price, against the taker
	Volatility     float64         // per-bar log-return standard deviation
	DriftPerBar    float64         // per-bar log-return mean
	BarInterval    time.Duration   // wall-clock pace of synthetic candles in live mock mode
	Seed           int64
}

// DefaultConfig provides sensible paper-trading defaults with a modest
// random walk tuned for a 1-minute bar pace.
func DefaultConfig() Config {
	return Config{
		InitialCash:    decimal.NewFromInt(10000),
		CommissionRate: decimal.NewFromFloat(0.001),
		SlippageBps:    5,
		Volatility:     0.0015,
		DriftPerBar:    0,
		BarInterval:    time.Minute,
		Seed:           1,
	}
}

// Broker is the in-memory venue: it is simultaneously the
// MarketDataProducer (it invents the candles) and the ExecutionSink
// (it fills orders against the prices it just invented).
type Broker struct {
	cfg Config
	log zerolog.Logger

	mu        sync.Mutex
	cash      decimal.Decimal
	positions map[domain.Symbol]domain.Position
	orders    map[domain.OrderID]*domain.Order
	lastPrice map[domain.Symbol]decimal.Decimal
	walks     map[domain.Symbol]*distuv.Normal

	accountEvents chan domain.AccountEvent
}

// New constructs a Broker seeded from cfg. Every symbol gets its own
// return generator seeded deterministically off cfg.Seed so replays
// with the same seed and symbol set reproduce the same price path.
func New(cfg Config, log zerolog.Logger) *Broker {
	if cfg.InitialCash.IsZero() {
		cfg.InitialCash = DefaultConfig().InitialCash
	}
	if cfg.BarInterval == 0 {
		cfg.BarInterval = time.Minute
	}
	b := &Broker{
		cfg:           cfg,
		log:           log.With().Str("component", "mock_broker").Logger(),
		cash:          cfg.InitialCash,
		positions:     make(map[domain.Symbol]domain.Position),
		orders:        make(map[domain.OrderID]*domain.Order),
		lastPrice:     make(map[domain.Symbol]decimal.Decimal),
		walks:         make(map[domain.Symbol]*distuv.Normal),
		accountEvents: make(chan domain.AccountEvent, 256),
	}
	for i, sym := range cfg.Symbols {
		start, ok := cfg.InitialPrices[sym]
		if !ok || !start.IsPositive() {
			start = decimal.NewFromInt(100)
		}
		b.lastPrice[sym] = start
		b.walks[sym] = &distuv.Normal{
			Mu:    cfg.DriftPerBar,
			Sigma: cfg.Volatility,
			Src:   rand.NewSource(cfg.Seed + int64(i) + 1),
		}
	}
	return b
}

// SetLastPrice overrides the venue's mark for symbol, used by the
// backtest engine to drive fills off externally supplied historical
// candles instead of this broker's own random walk.
func (b *Broker) SetLastPrice(symbol domain.Symbol, price decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastPrice[symbol] = price
}

// ListAvailableSymbols returns the configured symbol universe; the
// mock venue never discovers symbols dynamically.
func (b *Broker) ListAvailableSymbols(ctx context.Context) ([]domain.Symbol, error) {
	out := make([]domain.Symbol, len(b.cfg.Symbols))
	copy(out, b.cfg.Symbols)
	return out, nil
}

// Subscribe starts one synthetic candle generator per symbol, each
// sealing a bar every BarInterval and pushing it as a MarketEvent.
func (b *Broker) Subscribe(ctx context.Context, symbols []domain.Symbol) (<-chan domain.MarketEvent, error) {
	out := make(chan domain.MarketEvent, 256)
	var wg sync.WaitGroup
	for _, sym := range symbols {
		sym := sym
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.runWalk(ctx, sym, out)
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out, nil
}

func (b *Broker) runWalk(ctx context.Context, symbol domain.Symbol, out chan<- domain.MarketEvent) {
	ticker := time.NewTicker(b.cfg.BarInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			candle := b.nextCandle(symbol, domain.Timeframe1m, t)
			select {
			case out <- domain.MarketEvent{Candle: &candle}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// nextCandle advances one symbol's random walk by one bar and returns
// a sealed OHLCV candle consistent with domain.Candle's invariants.
func (b *Broker) nextCandle(symbol domain.Symbol, tf domain.Timeframe, at time.Time) domain.Candle {
	b.mu.Lock()
	defer b.mu.Unlock()

	open := b.lastPrice[symbol]
	walk := b.walks[symbol]
	logReturn := walk.Rand()
	closePrice := open.Mul(decimal.NewFromFloat(1 + logReturn))
	if !closePrice.IsPositive() {
		closePrice = open // a walk that would go non-positive just flattens for the bar
	}

	wick := open.Sub(closePrice).Abs().Mul(decimal.NewFromFloat(0.5))
	high := decimal.Max(open, closePrice).Add(wick)
	low := decimal.Min(open, closePrice).Sub(wick)
	if low.IsNegative() {
		low = decimal.Zero
	}

	b.lastPrice[symbol] = closePrice

	secs, _ := tf.Duration()
	openTime := time.Unix(at.Unix()-at.Unix()%secs, 0).UTC()

	return domain.Candle{
		Symbol:    symbol,
		Timeframe: tf,
		OpenTime:  openTime,
		CloseTime: openTime.Add(time.Duration(secs) * time.Second),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    decimal.NewFromFloat(1 + rand.Float64()*9),
		Trades:    int64(10 + rand.Intn(90)),
		Sealed:    true,
	}
}

// Historical synthesizes a deterministic candle series between from
// and to at the requested timeframe, for warmup and backtest replay.
// The walk used here is independent of the live Subscribe walk so
// running both concurrently against the same symbol never interleaves
// RNG state.
func (b *Broker) Historical(ctx context.Context, symbol domain.Symbol, tf domain.Timeframe, from, to time.Time) ([]domain.Candle, error) {
	secs, ok := tf.Duration()
	if !ok {
		return nil, fmt.Errorf("mock: unsupported timeframe %s", tf)
	}
	start, ok := b.cfg.InitialPrices[symbol]
	if !ok || !start.IsPositive() {
		start = decimal.NewFromInt(100)
	}

	seed := b.cfg.Seed
	for _, c := range symbol {
		seed += int64(c)
	}
	walk := &distuv.Normal{Mu: b.cfg.DriftPerBar, Sigma: b.cfg.Volatility, Src: rand.NewSource(seed)}

	var candles []domain.Candle
	open := start
	for t := from.Truncate(time.Duration(secs) * time.Second); t.Before(to); t = t.Add(time.Duration(secs) * time.Second) {
		logReturn := walk.Rand()
		closePrice := open.Mul(decimal.NewFromFloat(1 + logReturn))
		if !closePrice.IsPositive() {
			closePrice = open
		}
		wick := open.Sub(closePrice).Abs().Mul(decimal.NewFromFloat(0.5))
		high := decimal.Max(open, closePrice).Add(wick)
		low := decimal.Min(open, closePrice).Sub(wick)
		if low.IsNegative() {
			low = decimal.Zero
		}
		candles = append(candles, domain.Candle{
			Symbol:    symbol,
			Timeframe: tf,
			OpenTime:  t.UTC(),
			CloseTime: t.Add(time.Duration(secs) * time.Second).UTC(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    decimal.NewFromFloat(5),
			Trades:    50,
			Sealed:    true,
		})
		open = closePrice
		select {
		case <-ctx.Done():
			return candles, ctx.Err()
		default:
		}
	}
	return candles, nil
}
