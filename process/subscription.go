package process

import (
	"sync"
)

type Subscription[T any] struct {
	C       chan T
	closer  sync.Once
	manager *SubscriptionManager[T]
}

// Close unsubscribes and closes C. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.closer.Do(func() {
		s.manager.CloseSubscription(s)
		close(s.C)
	})
}
