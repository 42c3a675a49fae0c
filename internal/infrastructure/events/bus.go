package events

import (
	"sync"
	"time"

	"bibomarket/pkg/logger"
	"bibomarket/pkg/metrics"
)

// Topics published by the controllers.
const (
	TopicCartUpdated          = "cart-updated"
	TopicConversationsUpdated = "conversations-updated"
	TopicMessagesUpdated      = "messages-updated"
	TopicBadgesUpdated        = "badges-updated"
	TopicNavigate             = "navigate"
	TopicToast                = "toast"
	TopicSessionStarted       = "session-started"
	TopicSessionExpired       = "session-expired"
	TopicSessionEnded         = "session-ended"
)

type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type subscriber struct {
	topics map[string]bool
	ch     chan Event
}

func (s *subscriber) wants(topic string) bool {
	return len(s.topics) == 0 || s.topics[topic]
}

// Bus is an in-process publish/subscribe channel between the controllers
// and whoever renders them (websocket clients, the badge poller).
type Bus struct {
	mutex  sync.RWMutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[uint64]*subscriber),
	}
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (b *Bus) Publish(topic string, data interface{}) {
	event := Event{
		Type:      topic,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	metrics.RecordEvent(topic)

	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if b.closed {
		return
	}
	for id, sub := range b.subs {
		if !sub.wants(topic) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			logger.Warn("Bus: subscriber %d is full, dropping %s", id, topic)
		}
	}
}

// Subscribe returns a channel receiving the given topics (all topics when
// none are given) and a cancel func that closes it.
func (b *Bus) Subscribe(buffer int, topics ...string) (<-chan Event, func()) {
	sub := &subscriber{
		topics: make(map[string]bool, len(topics)),
		ch:     make(chan Event, buffer),
	}
	for _, t := range topics {
		sub.topics[t] = true
	}

	b.mutex.Lock()
	if b.closed {
		b.mutex.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mutex.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mutex.Lock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
			b.mutex.Unlock()
		})
	}
	return sub.ch, cancel
}

// Close closes every subscription. Later publishes are dropped.
func (b *Bus) Close() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}
