package mock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

// Submit fills a market order immediately against the last known
// price, applying slippage against the taker and a flat commission
// rate, then pushes the resulting fill onto the account-event stream.
func (b *Broker) Submit(ctx context.Context, order domain.Order) (string, error) {
	b.mu.Lock()

	price, ok := b.lastPrice[order.Symbol]
	if !ok || !price.IsPositive() {
		b.mu.Unlock()
		return "", fmt.Errorf("mock: no price known for %s", order.Symbol)
	}

	execPrice := b.applySlippage(price, order.Side)
	notional := order.Quantity.Mul(execPrice)
	commission := notional.Mul(b.cfg.CommissionRate)

	if order.Side == domain.SideBuy {
		required := notional.Add(commission)
		if required.GreaterThan(b.cash) {
			b.mu.Unlock()
			return "", fmt.Errorf("mock: insufficient cash, have %s need %s", b.cash, required)
		}
		b.cash = b.cash.Sub(required)
	} else {
		b.cash = b.cash.Add(notional.Sub(commission))
	}

	b.applyPositionDelta(order.Symbol, order.Side, order.Quantity, execPrice)

	brokerID := uuid.NewString()
	stored := order
	stored.BrokerID = brokerID
	stored.Status = domain.OrderFilled
	stored.FilledQty = order.Quantity
	stored.AvgFillPrice = execPrice
	b.orders[order.ID] = &stored

	b.mu.Unlock()

	evt := domain.AccountEvent{
		Type:      domain.AccountEventFill,
		OrderID:   order.ID,
		BrokerID:  brokerID,
		Symbol:    order.Symbol,
		FillQty:   order.Quantity,
		FillPrice: execPrice,
		Fee:       commission,
		FeeAsset:  "USDT",
		CashDelta: notional.Neg(),
		Timestamp: time.Now().UTC(),
	}
	if order.Side == domain.SideSell {
		evt.CashDelta = notional
	}

	select {
	case b.accountEvents <- evt:
	case <-ctx.Done():
		return brokerID, ctx.Err()
	default:
		b.log.Warn().Str("order_id", string(order.ID)).Msg("account event channel full, dropping fill")
	}

	return brokerID, nil
}

// applyPositionDelta updates the mock venue's own position book,
// averaging entry price on an add and leaving realized-PnL accounting
// to the Executor/Portfolio, which derive it from the AccountEvent
// this Submit call just published.
func (b *Broker) applyPositionDelta(symbol domain.Symbol, side domain.OrderSide, qty, price decimal.Decimal) {
	signedQty := qty
	if side == domain.SideSell {
		signedQty = qty.Neg()
	}

	pos, ok := b.positions[symbol]
	if !ok || !pos.IsOpen() {
		b.positions[symbol] = domain.Position{
			Symbol:        symbol,
			Quantity:      signedQty,
			AvgEntryPrice: price,
			OpenedAt:      time.Now().UTC(),
		}
		return
	}

	sameDirection := (pos.Quantity.IsPositive() && signedQty.IsPositive()) || (pos.Quantity.IsNegative() && signedQty.IsNegative())
	newQty := pos.Quantity.Add(signedQty)

	if sameDirection {
		totalCost := pos.AvgEntryPrice.Mul(pos.Quantity.Abs()).Add(price.Mul(qty))
		pos.AvgEntryPrice = totalCost.Div(newQty.Abs())
		pos.Quantity = newQty
		b.positions[symbol] = pos
		return
	}

	if newQty.IsZero() {
		delete(b.positions, symbol)
		return
	}

	// The fill crossed through flat into the opposite side; the
	// remainder opens a fresh position at this fill's price.
	b.positions[symbol] = domain.Position{
		Symbol:        symbol,
		Quantity:      newQty,
		AvgEntryPrice: price,
		OpenedAt:      time.Now().UTC(),
	}
}

// applySlippage nudges the execution price against the taker: buys
// fill higher, sells fill lower, by cfg.SlippageBps basis points.
func (b *Broker) applySlippage(price decimal.Decimal, side domain.OrderSide) decimal.Decimal {
	bps := decimal.NewFromInt(b.cfg.SlippageBps).Div(decimal.NewFromInt(10000))
	if side == domain.SideBuy {
		return price.Mul(decimal.NewFromInt(1).Add(bps))
	}
	return price.Mul(decimal.NewFromInt(1).Sub(bps))
}

// Cancel is a near no-op: every order this venue accepts fills
// synchronously inside Submit, so there is nothing in flight to
// cancel by the time a caller can race it.
func (b *Broker) Cancel(ctx context.Context, brokerID string, symbol domain.Symbol) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.orders {
		if o.BrokerID == brokerID {
			if o.Status.IsTerminal() {
				return fmt.Errorf("mock: order %s already terminal (%s)", brokerID, o.Status)
			}
			o.Status = domain.OrderCanceled
			return nil
		}
	}
	return fmt.Errorf("mock: order %s not found", brokerID)
}

// FetchPortfolio returns the venue's own books, for startup
// reconciliation against the locally persisted portfolio.
func (b *Broker) FetchPortfolio(ctx context.Context) (decimal.Decimal, []domain.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	positions := make([]domain.Position, 0, len(b.positions))
	for _, p := range b.positions {
		positions = append(positions, p)
	}
	return b.cash, positions, nil
}

// FetchOpenOrders always returns empty: the mock venue never leaves an
// order resting, since OrderMarket is the only kind the Analyst/risk
// chain ever produces.
func (b *Broker) FetchOpenOrders(ctx context.Context) ([]domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var open []domain.Order
	for _, o := range b.orders {
		if !o.Status.IsTerminal() {
			open = append(open, *o)
		}
	}
	return open, nil
}

// AccountEvents returns the fill stream Submit publishes onto.
func (b *Broker) AccountEvents(ctx context.Context) (<-chan domain.AccountEvent, error) {
	return b.accountEvents, nil
}
