package events

import "sync"

// subscriberBuffer bounds how many unread events a slow subscriber may
// accumulate before the bus evicts it (spec §4.1, "slow subscriber
// eviction").
const subscriberBuffer = 256

// Subscription is a handle returned by Bus.Subscribe. Callers read events
// from Events() and must call Close (directly, or via Bus.Unsubscribe) when
// done to release the bus-side registration.
type Subscription struct {
	id     string
	topic  string
	ch     chan Event
	bus    *Bus
	once   sync.Once
	closed chan struct{}
}

// ID returns the subscription's unique identifier.
func (s *Subscription) ID() string { return s.id }

// Topic returns the topic this subscription was registered against.
func (s *Subscription) Topic() string { return s.topic }

// Events returns the channel events are delivered on. The channel is closed
// when the subscription is removed from the bus, either explicitly or via
// eviction.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Close unregisters the subscription from its bus. Safe to call more than
// once and safe to call concurrently with delivery.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.closed)
		s.bus.remove(s.topic, s.id)
	})
}

// trySend attempts a non-blocking delivery. It reports whether the event
// was delivered; false means the subscriber's buffer was full, which the
// caller uses to decide on eviction.
func (s *Subscription) trySend(ev Event) (delivered bool) {
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}
