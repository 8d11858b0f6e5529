package risk

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReservationSet tracks buying-power holds keyed by reservation token.
// Tokens are plain string values handed to callers — never shared
// mutable references — and are released exactly once by the Executor
// on any terminal order state.
type ReservationSet struct {
	mu    sync.Mutex
	holds map[string]decimal.Decimal
}

func NewReservationSet() *ReservationSet {
	return &ReservationSet{holds: make(map[string]decimal.Decimal)}
}

// Reserve mints a fresh token holding amount, returning it for
// attachment to the resulting Order.
func (r *ReservationSet) Reserve(amount decimal.Decimal) string {
	token := uuid.NewString()
	r.mu.Lock()
	r.holds[token] = amount
	r.mu.Unlock()
	return token
}

// Release frees a token's hold. Releasing an unknown or
// already-released token is a no-op, matching the Executor's
// "terminal state releases the reservation" rule even under
// at-least-once delivery of account events.
func (r *ReservationSet) Release(token string) {
	r.mu.Lock()
	delete(r.holds, token)
	r.mu.Unlock()
}

// TotalReserved sums every outstanding hold.
func (r *ReservationSet) TotalReserved() decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, v := range r.holds {
		total = total.Add(v)
	}
	return total
}
