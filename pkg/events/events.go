// Package events implements the in-process event bus the engine uses to
// fan out verdict and lifecycle transitions to every worker's subscriber.
// It follows the teacher's channel-based broker shape (pkg/events in the
// original Warren tree) generalized to the engine's event vocabulary.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type is one of the six events the engine posts.
type Type string

const (
	Healthy         Type = "healthy"
	Unhealthy       Type = "unhealthy"
	MostlyHealthy   Type = "mostly_healthy"
	MostlyUnhealthy Type = "mostly_unhealthy"
	Remove          Type = "remove"
	Clear           Type = "clear"
)

// Event carries a verdict or lifecycle transition for one target. IP/Port/
// Hostname are empty for Clear, which applies to every target.
type Event struct {
	ID        string
	Type      Type
	IP        string
	Port      int
	Hostname  string
	Source    string
	Timestamp time.Time
}

// Subscriber receives posted events.
type Subscriber chan Event

// Bus distributes events to every live subscriber. A subscription is
// "weak" in spirit — RegisterWeak returns an Unsubscribe func the owner is
// expected to call on shutdown, since Go has no weak-reference primitive
// that would let an abandoned subscriber's channel be garbage collected
// automatically; see DESIGN.md for this resolved open question.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]bool
	eventCh     chan Event
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewBus creates a bus with a buffered post channel.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan Event, 256),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the bus's distribution loop.
func (b *Bus) Start() {
	go b.run()
}

// Stop halts distribution. Posting to a stopped bus is a no-op.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// RegisterWeak creates a new subscription for source (typically a worker
// name, used only for logging/metrics) and returns its channel plus an
// Unsubscribe function.
func (b *Bus) RegisterWeak(source string) (Subscriber, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 128)
	b.subscribers[sub] = true
	return sub, func() { b.Unsubscribe(sub) }
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Post publishes an event, generating a fresh ID and the current Timestamp
// for it. Post never blocks the caller beyond the internal buffer.
func (b *Bus) Post(source string, typ Type, ip string, port int, hostname string) {
	ev := Event{
		ID:        uuid.New().String(),
		Type:      typ,
		IP:        ip,
		Port:      port,
		Hostname:  hostname,
		Source:    source,
		Timestamp: time.Now(),
	}
	select {
	case b.eventCh <- ev:
	case <-b.stopCh:
	}
}

func (b *Bus) run() {
	for {
		select {
		case ev := <-b.eventCh:
			b.broadcast(ev)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bus) broadcast(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subscribers {
		select {
		case sub <- ev:
		default:
			// subscriber buffer full; drop rather than block the bus
		}
	}
}

// SubscriberCount reports the number of live subscriptions (for tests and metrics).
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
