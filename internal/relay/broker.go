package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

const subscriberBufSize = 64

// Event is one server-sent event. Feed becomes the SSE event name.
type Event struct {
	Feed    string
	Payload string
}

// Broker fans out events to SSE subscribers. Slow subscribers lose events
// rather than blocking publishers.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      atomic.Int64
	dropped     atomic.Int64
}

func NewBroker() *Broker {
	return &Broker{subscribers: make(map[int64]chan Event)}
}

func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

func (b *Broker) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// PublishJSON marshals v and publishes it under feed. A nil broker is a no-op.
func (b *Broker) PublishJSON(feed string, v any) {
	if b == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		slog.Debug("sse payload marshal failed", "feed", feed, "error", err)
		return
	}
	b.Publish(Event{Feed: feed, Payload: string(raw)})
}

func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped returns how many events were discarded for slow subscribers.
func (b *Broker) Dropped() int64 { return b.dropped.Load() }
