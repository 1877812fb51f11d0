// Package pubsub fans editor messages out to the sessions watching a
// document topic. Every session subscribes to its document's topic;
// patches, presence updates and source broadcasts travel through here.
package pubsub

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/protocol"
)

// ErrBusClosed is returned when publishing or subscribing after Close.
var ErrBusClosed = errors.New("bus is closed")

// subscriberBuffer is the per-subscription mailbox depth. A session
// that cannot keep up has messages dropped rather than stalling the
// publisher; the next full render resyncs it.
const subscriberBuffer = 256

// Handler receives messages published to a subscribed topic.
type Handler func(msg *protocol.Message)

// Subscription is a live attachment to a topic.
type Subscription struct {
	id    int
	topic string
	owner string
	bus   *Bus

	ch        chan *protocol.Message
	closeOnce sync.Once
	closed    atomic.Bool
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string { return s.topic }

// Unsubscribe detaches from the topic. Messages already accepted into
// the subscription's buffer are still delivered. Safe to call twice.
func (s *Subscription) Unsubscribe() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	s.bus.mu.Lock()
	if subs := s.bus.topics[s.topic]; subs != nil {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(s.bus.topics, s.topic)
		}
	}
	s.bus.mu.Unlock()

	s.close()
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		close(s.ch)
	})
}

// Bus is an in-process message bus. It is all a single-node editor
// needs; sessions on the same document reach each other through it.
type Bus struct {
	mu      sync.RWMutex
	topics  map[string]map[int]*Subscription
	nextID  int
	closed  bool
	dropped atomic.Int64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		topics: make(map[string]map[int]*Subscription),
	}
}

// Subscribe attaches a handler to a topic. The owner names the
// subscriber so PublishFrom can exclude it; sessions pass their session
// ID. The handler runs on a dedicated goroutine, one message at a time.
func (b *Bus) Subscribe(topic, owner string, fn Handler) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	if b.topics[topic] == nil {
		b.topics[topic] = make(map[int]*Subscription)
	}

	b.nextID++
	sub := &Subscription{
		id:    b.nextID,
		topic: topic,
		owner: owner,
		bus:   b,
		ch:    make(chan *protocol.Message, subscriberBuffer),
	}
	b.topics[topic][sub.id] = sub

	go func() {
		for msg := range sub.ch {
			fn(msg)
		}
	}()

	return sub, nil
}

// Publish delivers a message to every subscriber of a topic. A
// subscriber whose buffer is full misses the message.
func (b *Bus) Publish(topic string, msg *protocol.Message) error {
	return b.publish(topic, "", msg)
}

// PublishFrom delivers to every subscriber of a topic except those
// owned by sender. A session broadcasting its own patch uses this so
// the patch does not echo back to it.
func (b *Bus) PublishFrom(topic, sender string, msg *protocol.Message) error {
	return b.publish(topic, sender, msg)
}

func (b *Bus) publish(topic, exclude string, msg *protocol.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	for _, sub := range b.topics[topic] {
		if exclude != "" && sub.owner == exclude {
			continue
		}
		if sub.closed.Load() {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Topics returns the number of topics with at least one subscriber.
func (b *Bus) Topics() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics)
}

// Subscribers returns the number of subscribers on a topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Dropped returns how many messages were discarded because a
// subscriber's buffer was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close shuts the bus down. Subscriber goroutines drain their buffers
// and exit. Idempotent.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.topics {
		for _, sub := range subs {
			sub.closed.Store(true)
			sub.close()
		}
	}
	b.topics = make(map[string]map[int]*Subscription)

	return nil
}
