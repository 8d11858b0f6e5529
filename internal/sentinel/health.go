package sentinel

import (
	"sync"
	"time"

	"github.com/tradebotlabs/trading-engine/internal/domain"
)

// DebounceWindow is the minimum dwell time a raw connection-state
// change must survive before ConnectionHealth reports it, smoothing
// over the transient blips a flaky websocket produces.
const DebounceWindow = time.Second

// ZombieTimeout is how long a stream can go without any event before
// ConnectionHealth force-transitions it to offline even if the
// transport layer never reported a close.
const ZombieTimeout = 10 * time.Second

// ConnectionHealth tracks the debounced state of the market-data and
// execution streams and publishes transitions to subscribers.
type ConnectionHealth struct {
	mu          sync.Mutex
	state       map[domain.StreamKind]domain.ConnectionState
	pending     map[domain.StreamKind]domain.ConnectionState
	pendingAt   map[domain.StreamKind]time.Time
	lastEventAt map[domain.StreamKind]time.Time

	subscribers []chan domain.ConnectionStatusEvent
}

// NewConnectionHealth constructs a tracker with both streams starting
// offline until the first event arrives.
func NewConnectionHealth() *ConnectionHealth {
	return &ConnectionHealth{
		state:       map[domain.StreamKind]domain.ConnectionState{},
		pending:     map[domain.StreamKind]domain.ConnectionState{},
		pendingAt:   map[domain.StreamKind]time.Time{},
		lastEventAt: map[domain.StreamKind]time.Time{},
	}
}

// Subscribe returns a channel that receives every debounced transition.
// The channel is buffered; a slow subscriber drops events rather than
// blocking the health tracker.
func (h *ConnectionHealth) Subscribe() <-chan domain.ConnectionStatusEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan domain.ConnectionStatusEvent, 16)
	h.subscribers = append(h.subscribers, ch)
	return ch
}

// ReportEvent records that a stream just produced data, resetting its
// zombie-timeout clock and clearing any pending-offline transition.
func (h *ConnectionHealth) ReportEvent(stream domain.StreamKind, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastEventAt[stream] = now
	h.setRaw(stream, domain.ConnOnline, now, "event received")
}

// ReportState records a raw transport-level state change (e.g. a
// websocket close/reconnect callback).
func (h *ConnectionHealth) ReportState(stream domain.StreamKind, state domain.ConnectionState, now time.Time, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.setRaw(stream, state, now, reason)
}

// CheckZombies should be called on a regular tick (e.g. every second);
// it force-transitions any stream silent past ZombieTimeout to
// offline so a silently-dead websocket gets flagged without waiting
// for an explicit disconnect event. The transition is published at
// once, without the debounce, since the silence has already lasted
// ZombieTimeout.
func (h *ConnectionHealth) CheckZombies(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for stream, last := range h.lastEventAt {
		if h.state[stream] == domain.ConnOffline {
			continue
		}
		if now.Sub(last) >= ZombieTimeout {
			h.state[stream] = domain.ConnOffline
			delete(h.pending, stream)
			h.publish(domain.ConnectionStatusEvent{Stream: stream, State: domain.ConnOffline, Timestamp: now, Reason: "zombie stream: no events within timeout"})
		}
	}
}

// setRaw applies the debounce: a state change must persist for
// DebounceWindow before it is published.
func (h *ConnectionHealth) setRaw(stream domain.StreamKind, state domain.ConnectionState, now time.Time, reason string) {
	current, known := h.state[stream]
	if known && current == state {
		delete(h.pending, stream)
		return
	}

	pendingState, isPending := h.pending[stream]
	if !isPending || pendingState != state {
		h.pending[stream] = state
		h.pendingAt[stream] = now
		return
	}

	if now.Sub(h.pendingAt[stream]) < DebounceWindow {
		return
	}

	h.state[stream] = state
	delete(h.pending, stream)
	h.publish(domain.ConnectionStatusEvent{Stream: stream, State: state, Timestamp: now, Reason: reason})
}

func (h *ConnectionHealth) publish(evt domain.ConnectionStatusEvent) {
	for _, ch := range h.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// State returns the last published (debounced) state for a stream.
func (h *ConnectionHealth) State(stream domain.StreamKind) domain.ConnectionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state[stream]
}

// Online reports whether both market-data and execution streams are
// currently online, the precondition the RiskManager's first chain
// link checks.
func (h *ConnectionHealth) Online() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state[domain.StreamMarketData] == domain.ConnOnline &&
		h.state[domain.StreamExecution] == domain.ConnOnline
}
