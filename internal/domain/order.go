package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderID is a locally-generated order identifier, distinct from the
// broker's own id (BrokerID), which only exists after acknowledgement.
type OrderID string

// NewOrderID mints a fresh local order id.
func NewOrderID() OrderID {
	return OrderID(uuid.NewString())
}

// OrderSide is the direction of an order.
type OrderSide int

const (
	SideBuy OrderSide = iota
	SideSell
)

func (s OrderSide) String() string {
	if s == SideSell {
		return "SELL"
	}
	return "BUY"
}

// Opposite returns the closing side for a position opened with s.
func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderKind is the order type.
type OrderKind int

const (
	OrderMarket OrderKind = iota
	OrderLimit
)

func (k OrderKind) String() string {
	if k == OrderLimit {
		return "LIMIT"
	}
	return "MARKET"
}

// OrderStatus is a state in the order lifecycle state machine:
//
//	Pending -> Submitted -> (PartiallyFilled)* -> Filled | Canceled | Rejected | Expired
//
// Filled, Canceled, Rejected and Expired are terminal sinks.
type OrderStatus int

const (
	OrderPending OrderStatus = iota
	OrderSubmitted
	OrderPartiallyFilled
	OrderFilled
	OrderCanceled
	OrderRejected
	OrderExpired
)

func (s OrderStatus) String() string {
	switch s {
	case OrderPending:
		return "PENDING"
	case OrderSubmitted:
		return "SUBMITTED"
	case OrderPartiallyFilled:
		return "PARTIALLY_FILLED"
	case OrderFilled:
		return "FILLED"
	case OrderCanceled:
		return "CANCELED"
	case OrderRejected:
		return "REJECTED"
	case OrderExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether s is a sink state that releases the
// buying-power reservation.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderFilled, OrderCanceled, OrderRejected, OrderExpired:
		return true
	default:
		return false
	}
}

// validTransitions encodes the allowed order status state machine.
var validTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderPending: {
		OrderSubmitted: true,
		OrderRejected:  true,
		OrderCanceled:  true,
	},
	OrderSubmitted: {
		OrderPartiallyFilled: true,
		OrderFilled:          true,
		OrderCanceled:        true,
		OrderRejected:        true,
		OrderExpired:         true,
	},
	OrderPartiallyFilled: {
		OrderPartiallyFilled: true,
		OrderFilled:          true,
		OrderCanceled:        true,
		OrderExpired:         true,
	},
}

// CanTransition reports whether the order lifecycle allows from -> to.
func CanTransition(from, to OrderStatus) bool {
	if from.IsTerminal() {
		return false
	}
	return validTransitions[from][to]
}

// Order represents a single order through its full lifecycle.
type Order struct {
	ID             OrderID
	Symbol         Symbol
	Side           OrderSide
	Kind           OrderKind
	Quantity       decimal.Decimal
	LimitPrice     decimal.Decimal // zero value => no limit price set
	Status         OrderStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	BrokerID       string
	FilledQty      decimal.Decimal
	AvgFillPrice   decimal.Decimal
	StopLoss       decimal.Decimal
	TakeProfit     decimal.Decimal
	StrategyID     string
	RegimeDetected string
	EntryReason    string
	ExitReason     string
	Slippage       decimal.Decimal

	// ReservationToken is the buying-power hold created by the
	// RiskManager when this order was sized; released by the Executor
	// on any terminal transition.
	ReservationToken string
}

// RemainingQty is the quantity still unfilled.
func (o Order) RemainingQty() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQty)
}

// Transition moves the order to a new status, validating the state
// machine, and returns an error wrapping ErrOrderTerminal otherwise.
func (o *Order) Transition(to OrderStatus, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return NewKindedError(ErrKindDataIntegrity, ErrOrderTerminal)
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}

// ApplyFill records a (possibly partial) fill against the order,
// updating FilledQty/AvgFillPrice/Status consistently.
func (o *Order) ApplyFill(qty, price decimal.Decimal, now time.Time) {
	if qty.IsZero() {
		return
	}
	totalCost := o.AvgFillPrice.Mul(o.FilledQty).Add(price.Mul(qty))
	o.FilledQty = o.FilledQty.Add(qty)
	if o.FilledQty.IsPositive() {
		o.AvgFillPrice = totalCost.Div(o.FilledQty)
	}
	o.UpdatedAt = now
	if o.FilledQty.GreaterThanOrEqual(o.Quantity) {
		o.Status = OrderFilled
	} else {
		o.Status = OrderPartiallyFilled
	}
}
