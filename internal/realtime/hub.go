package realtime

import (
	"context"
	"fmt"
	"sync"
)

const defaultQueueSize = 256

type subscriber struct {
	topic   string
	queue   chan Event
	onEvent func(Event)
	onDrop  func(error)
	stop    chan struct{}
	once    sync.Once
}

// close stops delivery and reports whether this call did the closing.
func (s *subscriber) close() bool {
	closed := false
	s.once.Do(func() {
		close(s.stop)
		closed = true
	})
	return closed
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.stop:
			return
		case ev := <-s.queue:
			select {
			case <-s.stop:
				return
			default:
			}
			s.onEvent(ev)
		}
	}
}

// Hub fans events out to subscribers by topic. Each subscriber drains its
// own bounded queue, so a slow subscriber never blocks publishers or other
// subscribers; a subscriber whose queue overflows is dropped instead of
// silently missing events.
type Hub struct {
	mu        sync.RWMutex
	topics    map[string]map[*subscriber]struct{}
	queueSize int
	closed    bool
}

func NewHub() *Hub {
	return NewHubWithQueue(defaultQueueSize)
}

func NewHubWithQueue(size int) *Hub {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Hub{
		topics:    make(map[string]map[*subscriber]struct{}),
		queueSize: size,
	}
}

func (h *Hub) Subscribe(ctx context.Context, topic string, onEvent func(Event), onDrop func(error)) (func(), error) {
	if onEvent == nil {
		return nil, fmt.Errorf("event handler is required")
	}
	if onDrop == nil {
		onDrop = func(error) {}
	}
	s := &subscriber{
		topic:   topic,
		queue:   make(chan Event, h.queueSize),
		onEvent: onEvent,
		onDrop:  onDrop,
		stop:    make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrSourceClosed
	}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*subscriber]struct{})
	}
	h.topics[topic][s] = struct{}{}
	h.mu.Unlock()

	go s.run()
	unsubscribe := func() {
		h.remove(s)
		s.close()
	}
	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				unsubscribe()
			case <-s.stop:
			}
		}()
	}
	return unsubscribe, nil
}

// Publish queues ev for every subscriber of topic.
func (h *Hub) Publish(topic string, ev Event) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.topics[topic]))
	for s := range h.topics[topic] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.queue <- ev:
		case <-s.stop:
		default:
			h.drop(s, fmt.Errorf("%w: subscriber queue full on %s", ErrSubscriptionDropped, topic))
		}
	}
}

// Drop ends every subscription on topic, reporting err to each.
func (h *Hub) Drop(topic string, err error) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.topics[topic]))
	for s := range h.topics[topic] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()
	for _, s := range subs {
		h.drop(s, err)
	}
}

// Close drops every subscriber and rejects new subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var subs []*subscriber
	for _, m := range h.topics {
		for s := range m {
			subs = append(subs, s)
		}
	}
	h.mu.Unlock()
	for _, s := range subs {
		h.drop(s, ErrSourceClosed)
	}
}

// SubscriberCount returns the number of live subscriptions on topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) drop(s *subscriber, err error) {
	h.remove(s)
	if s.close() {
		go s.onDrop(err)
	}
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.topics[s.topic]; m != nil {
		delete(m, s)
		if len(m) == 0 {
			delete(h.topics, s.topic)
		}
	}
}
