package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a single trade/tick observation.
type Quote struct {
	Symbol    Symbol
	Timestamp time.Time
	Price     decimal.Decimal
	Quantity  decimal.Decimal
}

// Validate enforces the Quote invariants from the data model: price and
// quantity strictly positive, no NaN/Inf (decimal cannot represent
// those, so this is a structural check only).
func (q Quote) Validate() error {
	if !q.Price.IsPositive() {
		return fmt.Errorf("%w: non-positive price %s", ErrInvalidQuote, q.Price)
	}
	if !q.Quantity.IsPositive() {
		return fmt.Errorf("%w: non-positive quantity %s", ErrInvalidQuote, q.Quantity)
	}
	if q.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidQuote)
	}
	return nil
}

// Candle is an OHLCV bar for a timeframe. Immutable once sealed by the
// aggregator; the aggregator is the only code permitted to mutate the
// in-progress builder before Seal.
type Candle struct {
	Symbol    Symbol
	Timeframe Timeframe
	OpenTime  time.Time
	CloseTime time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	Trades    int64
	Sealed    bool
}

// Validate enforces the Candle invariants: low <= min(open,close) <=
// max(open,close) <= high, volume >= 0, open_time aligned to the
// timeframe boundary.
func (c Candle) Validate() error {
	lo := decimal.Min(c.Open, c.Close)
	hi := decimal.Max(c.Open, c.Close)
	if c.Low.GreaterThan(lo) {
		return fmt.Errorf("%w: low %s above min(open,close) %s", ErrInvalidCandle, c.Low, lo)
	}
	if hi.GreaterThan(c.High) {
		return fmt.Errorf("%w: max(open,close) %s above high %s", ErrInvalidCandle, hi, c.High)
	}
	if c.Low.GreaterThan(c.High) {
		return fmt.Errorf("%w: low %s above high %s", ErrInvalidCandle, c.Low, c.High)
	}
	if c.Volume.IsNegative() {
		return fmt.Errorf("%w: negative volume %s", ErrInvalidCandle, c.Volume)
	}
	if secs, ok := c.Timeframe.Duration(); ok {
		if c.OpenTime.Unix()%secs != 0 {
			return fmt.Errorf("%w: open_time %s not aligned to %s boundary", ErrInvalidCandle, c.OpenTime, c.Timeframe)
		}
	}
	return nil
}

// MarketEvent is the union of event kinds a MarketDataProducer emits.
// Exactly one of Quote/Candle/Account is set.
type MarketEvent struct {
	Quote   *Quote
	Candle  *Candle
	Account *AccountEvent
}

// AccountEvent represents a fill, partial fill, dividend or fee
// notification pushed back from the broker's account stream.
type AccountEvent struct {
	Type       AccountEventType
	OrderID    OrderID
	BrokerID   string
	Symbol     Symbol
	FillQty    decimal.Decimal
	FillPrice  decimal.Decimal
	Fee        decimal.Decimal
	FeeAsset   string
	CashDelta  decimal.Decimal
	Timestamp  time.Time
}

// AccountEventType enumerates the kinds of account events.
type AccountEventType int

const (
	AccountEventFill AccountEventType = iota
	AccountEventPartialFill
	AccountEventDividend
	AccountEventFee
	AccountEventCancelAck
	AccountEventRejectAck
)

func (t AccountEventType) String() string {
	switch t {
	case AccountEventFill:
		return "FILL"
	case AccountEventPartialFill:
		return "PARTIAL_FILL"
	case AccountEventDividend:
		return "DIVIDEND"
	case AccountEventFee:
		return "FEE"
	case AccountEventCancelAck:
		return "CANCEL_ACK"
	case AccountEventRejectAck:
		return "REJECT_ACK"
	default:
		return "UNKNOWN"
	}
}

// ConnectionState is the health of a logical stream.
type ConnectionState int

const (
	ConnOnline ConnectionState = iota
	ConnDegraded
	ConnOffline
)

func (c ConnectionState) String() string {
	switch c {
	case ConnOnline:
		return "ONLINE"
	case ConnDegraded:
		return "DEGRADED"
	case ConnOffline:
		return "OFFLINE"
	default:
		return "UNKNOWN"
	}
}

// StreamKind distinguishes the market-data stream from the execution
// stream for ConnectionHealth purposes.
type StreamKind int

const (
	StreamMarketData StreamKind = iota
	StreamExecution
)

func (s StreamKind) String() string {
	if s == StreamExecution {
		return "execution"
	}
	return "market_data"
}

// ConnectionStatusEvent is broadcast on every debounced transition.
type ConnectionStatusEvent struct {
	Stream    StreamKind
	State     ConnectionState
	Timestamp time.Time
	Reason    string
}
