package events

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Bus is an in-process, non-persistent publish/subscribe fabric. Each
// pipeline (or terminal session) owns a topic; every event published to a
// topic is mirrored to the matching "all" sentinel topic so a single
// dashboard connection can observe every pipeline at once (spec §4.1).
//
// Delivery is non-blocking: a subscriber whose buffer is full is evicted
// rather than allowed to stall publishers. Publish holds the bus's registry
// lock for the duration of fan-out, which gives callers that publish
// sequentially on one goroutine a FIFO delivery guarantee per topic.
type Bus struct {
	allTopic string

	mu   sync.Mutex
	subs map[string]map[string]*Subscription // topic -> subscription id -> sub

	logger *slog.Logger
}

// NewBus constructs a Bus. allTopic is the sentinel topic that receives a
// copy of every published event (e.g. AllPipelinesTopic or
// AllTerminalsTopic); pass "" to disable mirroring.
func NewBus(allTopic string) *Bus {
	return &Bus{
		allTopic: allTopic,
		subs:     make(map[string]map[string]*Subscription),
		logger:   slog.With("component", "events.Bus", "all_topic", allTopic),
	}
}

// Subscribe registers a new subscription on topic and returns it. Events
// published afterward are delivered until the subscription is closed.
func (b *Bus) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		id:     uuid.NewString(),
		topic:  topic,
		ch:     make(chan Event, subscriberBuffer),
		bus:    b,
		closed: make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[string]*Subscription)
	}
	b.subs[topic][sub.id] = sub
	return sub
}

// Unsubscribe removes a subscription by value. Equivalent to calling
// sub.Close().
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.Close()
}

// remove drops a subscription from the registry and closes its channel. It
// is idempotent: a topic/id pair absent from the map is a no-op.
func (b *Bus) remove(topic, id string) {
	b.mu.Lock()
	set, ok := b.subs[topic]
	if !ok {
		b.mu.Unlock()
		return
	}
	sub, ok := set[id]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(b.subs, topic)
	}
	b.mu.Unlock()
	close(sub.ch)
}

// Publish delivers ev to every subscriber of topic, then (unless topic is
// already the all-topic) mirrors it onto the bus's all-topic with
// PipelineID stamped so cross-pipeline observers can tell events apart.
func (b *Bus) Publish(topic string, ev Event) {
	b.publishTo(topic, ev)
	if b.allTopic != "" && topic != b.allTopic {
		if ev.PipelineID == "" {
			ev.PipelineID = topic
		}
		b.publishTo(b.allTopic, ev)
	}
}

func (b *Bus) publishTo(topic string, ev Event) {
	b.mu.Lock()
	set := b.subs[topic]
	// Deliver under lock so fan-out is serialized with respect to
	// concurrent Subscribe/Close/Publish calls, preserving FIFO order for
	// a single publishing goroutine. trySend never blocks; eviction runs
	// after the lock is released because remove takes it itself.
	var evicted []*Subscription
	for _, sub := range set {
		if !sub.trySend(ev) {
			evicted = append(evicted, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range evicted {
		b.logger.Warn("evicting slow subscriber", "topic", topic, "subscription_id", sub.id)
		b.remove(sub.topic, sub.id)
	}
}

// Stats reports the number of active subscribers per topic, for the health
// endpoint.
func (b *Bus) Stats() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(b.subs))
	for topic, set := range b.subs {
		out[topic] = len(set)
	}
	return out
}

// TopicCount returns the number of subscribers currently registered on
// topic.
func (b *Bus) TopicCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}
