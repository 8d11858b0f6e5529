package orchestrator

import (
	"sync"

	"github.com/rs/zerolog"
)

// Broadcaster fans a single stream of Events out to many subscribers,
// each with its own buffered channel so a slow consumer (a websocket
// write stall) can't block the others or the orchestrator itself.
type Broadcaster struct {
	log         zerolog.Logger
	subscribers map[string]chan Event
	mu          sync.RWMutex
}

// NewBroadcaster constructs an empty Broadcaster.
func NewBroadcaster(log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		log:         log.With().Str("component", "broadcaster").Logger(),
		subscribers: make(map[string]chan Event),
	}
}

// Subscribe registers a new subscriber and returns its event channel.
func (b *Broadcaster) Subscribe(id string) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 1000)
	b.subscribers[id] = ch

	b.log.Debug().Str("subscriberID", id).Int("totalSubscribers", len(b.subscribers)).Msg("subscriber added")

	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, exists := b.subscribers[id]; exists {
		close(ch)
		delete(b.subscribers, id)
		b.log.Debug().Str("subscriberID", id).Int("totalSubscribers", len(b.subscribers)).Msg("subscriber removed")
	}
}

// Broadcast sends an event to every subscriber, dropping it for any
// subscriber whose channel is full rather than blocking the others.
func (b *Broadcaster) Broadcast(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.log.Warn().Str("subscriberID", id).Str("kind", string(evt.Kind)).Msg("subscriber channel full, event dropped")
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes every subscriber channel, signalling shutdown.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}

	b.log.Info().Msg("broadcaster closed, all subscribers removed")
}
