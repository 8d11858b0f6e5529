package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MarketDataProducer is the external collaborator consumed by Sentinel.
// Concrete implementations live in internal/broker/mock (in-memory) and
// internal/binance (websocket client).
type MarketDataProducer interface {
	// Subscribe returns a channel of market events for the given
	// symbols. The channel is closed when ctx is canceled or the
	// producer gives up permanently; transport reconnects are the
	// producer's problem and must never surface as a closed channel.
	Subscribe(ctx context.Context, symbols []Symbol) (<-chan MarketEvent, error)

	// ListAvailableSymbols supports dynamic crypto symbol discovery.
	ListAvailableSymbols(ctx context.Context) ([]Symbol, error)

	// Historical fetches candles for warmup and backtesting.
	Historical(ctx context.Context, symbol Symbol, tf Timeframe, from, to time.Time) ([]Candle, error)
}

// ExecutionSink is the external collaborator consumed by the Executor.
type ExecutionSink interface {
	Submit(ctx context.Context, order Order) (brokerID string, err error)
	Cancel(ctx context.Context, brokerID string, symbol Symbol) error
	FetchPortfolio(ctx context.Context) (cash decimal.Decimal, positions []Position, err error)
	FetchOpenOrders(ctx context.Context) ([]Order, error)
	AccountEvents(ctx context.Context) (<-chan AccountEvent, error)
}
