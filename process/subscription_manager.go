package process

import (
	"sync"
)

// SubscriptionManager fans events out to any number of buffered subscribers.
// Publishing never blocks: a subscriber whose buffer is full misses the event.
type SubscriptionManager[T any] struct {
	mu          sync.Mutex
	dropped     int
	subscribers map[*Subscription[T]]struct{}
}

func NewSubscriptionManager[T any]() *SubscriptionManager[T] {
	return &SubscriptionManager[T]{
		mu:          sync.Mutex{},
		subscribers: make(map[*Subscription[T]]struct{}, 0),
	}
}
func (m *SubscriptionManager[T]) CloseSubscription(s *Subscription[T]) {
	m.mu.Lock()
	delete(m.subscribers, s)
	m.mu.Unlock()
}

// Dropped reports how many deliveries were skipped because a subscriber was full.
func (m *SubscriptionManager[T]) Dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}
func (m *SubscriptionManager[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}
func (m *SubscriptionManager[T]) Publish(t T) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for sub := range m.subscribers {
		select {
		case sub.C <- t:
		default:
			m.dropped++
		}
	}
}
func (m *SubscriptionManager[T]) Subscribe() *Subscription[T] {
	return m.SubscribeSize(10)
}
func (m *SubscriptionManager[T]) SubscribeSize(size int) *Subscription[T] {
	sub := &Subscription[T]{
		C:       make(chan T, size),
		manager: m,
	}
	m.mu.Lock()
	m.subscribers[sub] = struct{}{}
	m.mu.Unlock()
	return sub
}
