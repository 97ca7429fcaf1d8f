package broker

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"sosnet/internal/domain"
)

// Subscription is one viewport registered with the broker. Events arrive on
// Events in sequence order until Done is closed.
type Subscription struct {
	ID           uuid.UUID
	SubscriberID string

	box    atomic.Pointer[domain.BoundingBox]
	events chan domain.IncidentEvent
	done   chan struct{}

	// guarded by Broker.mu
	cursor  int64
	pending []domain.IncidentEvent

	once sync.Once
	err  error
}

func newSubscription(subscriberID string, box domain.BoundingBox, depth int) *Subscription {
	s := &Subscription{
		ID:           uuid.New(),
		SubscriberID: subscriberID,
		events:       make(chan domain.IncidentEvent, depth),
		done:         make(chan struct{}),
	}
	s.setBox(box)
	return s
}

func (s *Subscription) Events() <-chan domain.IncidentEvent { return s.events }

func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err is the reason the subscription ended, nil for a plain unsubscribe.
// It is only meaningful after Done is closed.
func (s *Subscription) Err() error {
	<-s.done
	return s.err
}

func (s *Subscription) Box() domain.BoundingBox {
	return *s.box.Load()
}

func (s *Subscription) setBox(box domain.BoundingBox) {
	s.box.Store(&box)
}

// offer queues ev without blocking.
func (s *Subscription) offer(ev domain.IncidentEvent) bool {
	if s.closed() {
		return false
	}
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

func (s *Subscription) close(reason error) bool {
	closed := false
	s.once.Do(func() {
		s.err = reason
		close(s.done)
		closed = true
	})
	return closed
}

func (s *Subscription) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
