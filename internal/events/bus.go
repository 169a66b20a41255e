// ABOUTME: In-memory, topic-partitioned fan-out bus for the interview session
// ABOUTME: Every subscriber owns an unbounded queue so a slow reader never blocks Publish

package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Bus delivers every published event to every current subscriber of its topic.
// Per subscriber, events arrive in publish order. Nothing is persisted.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
	byTopic     map[Topic]map[string]*subscriber
	closed      bool
	logger      *slog.Logger
}

// NewBus creates a bus. Pass nil logger for default.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[string]*subscriber),
		byTopic:     make(map[Topic]map[string]*subscriber),
		logger:      logger.With("component", "bus"),
	}
}

// Subscribe registers a subscriber for the given topics and returns its stream
// and subscription ID. Events published after Subscribe returns are delivered.
// The stream is closed on Unsubscribe, on Close, or when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, topics ...Topic) (<-chan Event, string) {
	sub := newSubscriber(uuid.New().String(), topics)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.out)
		return sub.out, sub.id
	}
	b.subscribers[sub.id] = sub
	for _, t := range topics {
		if _, ok := b.byTopic[t]; !ok {
			b.byTopic[t] = make(map[string]*subscriber)
		}
		b.byTopic[t][sub.id] = sub
	}
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", sub.id, "topics", topics)

	go sub.pump()
	go func() {
		select {
		case <-ctx.Done():
			b.Unsubscribe(sub.id)
		case <-sub.stop:
		}
	}()

	return sub.out, sub.id
}

// Publish fans the event out to all subscribers of its topic.
// Publishing to a topic nobody listens on is a no-op.
func (b *Bus) Publish(evt Event) {
	// Enqueue is a slice append, so holding the lock across all targets is
	// cheap and keeps every subscriber's order identical to publish order.
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, sub := range b.byTopic[evt.Topic] {
		sub.enqueue(evt)
	}
}

// Emit is shorthand for Publish(New(p)).
func (b *Bus) Emit(p Payload) {
	b.Publish(New(p))
}

// Unsubscribe removes a subscription and closes its stream. Unknown IDs are ignored.
func (b *Bus) Unsubscribe(subID string) {
	b.mu.Lock()
	sub, ok := b.subscribers[subID]
	if ok {
		b.removeLocked(sub)
	}
	b.mu.Unlock()

	if ok {
		b.logger.Debug("subscriber removed", "sub_id", subID)
	}
}

// SubscriberCount returns the number of subscribers for a topic.
func (b *Bus) SubscriberCount(t Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.byTopic[t])
}

// Close removes all subscribers and closes their streams. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers {
		b.removeLocked(sub)
	}
	b.closed = true
	b.logger.Debug("bus closed")
}

// removeLocked must be called with mu held.
func (b *Bus) removeLocked(sub *subscriber) {
	delete(b.subscribers, sub.id)
	for t := range sub.topics {
		if subs, ok := b.byTopic[t]; ok {
			delete(subs, sub.id)
			if len(subs) == 0 {
				delete(b.byTopic, t)
			}
		}
	}
	sub.shutdown()
}

type subscriber struct {
	id     string
	topics map[Topic]struct{}

	mu    sync.Mutex
	queue []Event

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	out      chan Event
}

func newSubscriber(id string, topics []Topic) *subscriber {
	set := make(map[Topic]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}
	return &subscriber{
		id:     id,
		topics: set,
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		out:    make(chan Event),
	}
}

func (s *subscriber) enqueue(evt Event) {
	s.mu.Lock()
	s.queue = append(s.queue, evt)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) next() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Event{}, false
	}
	evt := s.queue[0]
	s.queue[0] = Event{}
	s.queue = s.queue[1:]
	return evt, true
}

// pump moves queued events to the out channel until the subscriber stops.
func (s *subscriber) pump() {
	defer close(s.out)
	for {
		evt, ok := s.next()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.stop:
				return
			}
		}
		select {
		case s.out <- evt:
		case <-s.stop:
			return
		}
	}
}

func (s *subscriber) shutdown() {
	s.stopOnce.Do(func() { close(s.stop) })
}
