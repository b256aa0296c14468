package event

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Envelope carries one published event.
type Envelope struct {
	Topic   Topic
	Payload any
	ID      string
	Time    time.Time
	Source  string
}

// NewEnvelope builds an envelope with a fresh ID and timestamp.
func NewEnvelope(topic Topic, payload any, source string) Envelope {
	return Envelope{
		Topic:   topic,
		Payload: payload,
		ID:      uuid.NewString(),
		Time:    time.Now(),
		Source:  source,
	}
}

// HandlerFunc handles one delivered envelope. A returned error is counted
// in the bus stats but does not affect other handlers or the publisher.
type HandlerFunc func(ctx context.Context, env Envelope) error

// Subscription is one registered handler. Cancel is safe to call from any
// goroutine, including from the handler itself.
type Subscription struct {
	id      string
	pattern Topic
	fn      HandlerFunc
	active  atomic.Bool
}

// ID returns the subscription's unique ID.
func (s *Subscription) ID() string { return s.id }

// Pattern returns the topic pattern the subscription matches.
func (s *Subscription) Pattern() Topic { return s.pattern }

// Cancel deactivates the subscription. Idempotent.
func (s *Subscription) Cancel() { s.active.Store(false) }

// IsActive reports whether the subscription still receives events.
func (s *Subscription) IsActive() bool { return s.active.Load() }

// Stats is a point-in-time snapshot of bus counters.
type Stats struct {
	Published     int64
	Delivered     int64
	HandlerErrors int64
	HandlerPanics int64
}

// Bus delivers envelopes synchronously to matching subscriptions.
type Bus struct {
	mu     sync.RWMutex
	subs   []*Subscription
	closed bool

	published     atomic.Int64
	delivered     atomic.Int64
	handlerErrors atomic.Int64
	handlerPanics atomic.Int64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn for every topic matching pattern. Handlers run on
// the publisher's goroutine in subscription order.
func (b *Bus) Subscribe(pattern Topic, fn HandlerFunc) (*Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	if !pattern.IsValid() {
		return nil, ErrInvalidTopic
	}

	sub := &Subscription{id: uuid.NewString(), pattern: pattern, fn: fn}
	sub.active.Store(true)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	b.subs = append(b.subs, sub)
	return sub, nil
}

// Publish delivers env to every active subscription whose pattern matches
// env.Topic, in subscription order. Handler errors and panics are counted
// and swallowed.
func (b *Bus) Publish(ctx context.Context, env Envelope) error {
	if !env.Topic.IsValid() {
		return ErrInvalidTopic
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	matched := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.IsActive() && env.Topic.Matches(sub.pattern) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	b.published.Add(1)
	for _, sub := range matched {
		if !sub.IsActive() {
			continue
		}
		b.deliver(ctx, sub, env)
	}
	return nil
}

func (b *Bus) deliver(ctx context.Context, sub *Subscription, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.handlerPanics.Add(1)
		}
	}()
	if err := sub.fn(ctx, env); err != nil {
		b.handlerErrors.Add(1)
		return
	}
	b.delivered.Add(1)
}

// Unsubscribe cancels and removes the subscription.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.Cancel()
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, sub := range b.subs {
		if sub.IsActive() {
			n++
		}
	}
	return n
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published:     b.published.Load(),
		Delivered:     b.delivered.Load(),
		HandlerErrors: b.handlerErrors.Load(),
		HandlerPanics: b.handlerPanics.Load(),
	}
}

// Close cancels all subscriptions and rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, sub := range b.subs {
		sub.Cancel()
	}
	b.subs = nil
}
