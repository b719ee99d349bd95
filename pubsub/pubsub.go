package pubsub

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func plog() *zerolog.Logger {
	l := log.With().Str("component", "pubsub").Logger()
	return &l
}

type SubscriptionID int64

// Pubsub fans messages out to subscribers without ever blocking the
// publisher; a subscriber whose buffer is full misses the message.
type Pubsub[T any] struct {
	buffer      int
	nextID      SubscriptionID
	subscribers map[SubscriptionID]chan T
	mu          sync.RWMutex
}

func New[T any](buffer int) *Pubsub[T] {
	return &Pubsub[T]{
		buffer:      buffer,
		subscribers: make(map[SubscriptionID]chan T),
	}
}

func (ps *Pubsub[T]) Subscribe() (SubscriptionID, <-chan T) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ch := make(chan T, ps.buffer)
	id := ps.nextID

	ps.subscribers[id] = ch
	ps.nextID += 1

	plog().Debug().Int64("subscription_id", int64(id)).Msg("Subscribed")

	return id, ch
}

func (ps *Pubsub[T]) Unsubscribe(id SubscriptionID) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ch, ok := ps.subscribers[id]
	if !ok {
		return
	}

	delete(ps.subscribers, id)
	close(ch)

	plog().Debug().Int64("subscription_id", int64(id)).Msg("Unsubscribed")
}

func (ps *Pubsub[T]) Subscribers() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.subscribers)
}

func (ps *Pubsub[T]) Publish(msg T) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for id, ch := range ps.subscribers {
		select {
		case ch <- msg:
		default:
			plog().Warn().
				Int64("subscription_id", int64(id)).
				Interface("message", msg).
				Msg("Message dropped, channel full")
		}
	}
}
