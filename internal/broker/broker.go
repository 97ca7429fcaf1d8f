// Package broker fans committed incident events out to viewport
// subscriptions. Broker state is in memory only; a restarted client
// resnapshots and subscribes again.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"sosnet/internal/domain"
	"sosnet/pkg/e"
)

const (
	DefaultQueueDepth = 256
	defaultBatch      = 200
)

type EventLog interface {
	EventsSince(ctx context.Context, afterSeq int64, limit int) ([]domain.IncidentEvent, error)
}

type Metrics interface {
	SubscriptionOpened()
	SubscriptionClosed()
	SubscriberDropped()
	EventsDispatched(n int)
}

type Options struct {
	QueueDepth    int
	BackfillBatch int
}

type Broker struct {
	mu       sync.Mutex
	subs     map[uuid.UUID]*Subscription
	position int64

	log        EventLog
	logger     *slog.Logger
	metrics    Metrics
	queueDepth int
	batch      int
}

func New(log EventLog, logger *slog.Logger, metrics Metrics, opts Options) *Broker {
	if opts.QueueDepth < 1 {
		opts.QueueDepth = DefaultQueueDepth
	}
	if opts.BackfillBatch < 1 {
		opts.BackfillBatch = defaultBatch
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Broker{
		subs:       make(map[uuid.UUID]*Subscription),
		log:        log,
		logger:     logger,
		metrics:    metrics,
		queueDepth: opts.QueueDepth,
		batch:      opts.BackfillBatch,
	}
}

// Position is the highest sequence the broker has dispatched.
func (b *Broker) Position() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.position
}

// Start sets the position the broker resumes from. Only forward moves are
// applied.
func (b *Broker) Start(position int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if position > b.position {
		b.position = position
	}
}

// Subscribe registers a viewport. since is the asOfSequence of the caller's
// snapshot: events up to since are never delivered and every later event in
// the box is, in sequence order. A negative since starts at the broker's
// current position.
func (b *Broker) Subscribe(ctx context.Context, subscriberID string, box domain.BoundingBox, since int64) (*Subscription, error) {
	const op = "broker.Subscribe"

	if err := box.Validate(); err != nil {
		return nil, err
	}

	sub := newSubscription(subscriberID, box, b.queueDepth)

	b.mu.Lock()
	target := b.position
	if since < 0 {
		since = target
	}
	sub.cursor = since
	backfill := since < target
	if backfill {
		sub.pending = make([]domain.IncidentEvent, 0, 8)
	}
	b.subs[sub.ID] = sub
	b.mu.Unlock()

	b.metrics.SubscriptionOpened()
	b.logger.Debug("subscription opened",
		slog.String("op", op),
		slog.String("subscription_id", sub.ID.String()),
		slog.String("subscriber_id", subscriberID),
		slog.Int64("since", since),
		slog.Int64("position", target),
	)

	if !backfill {
		return sub, nil
	}

	if err := b.backfill(ctx, sub, since, target); err != nil {
		b.remove(sub, err)
		return nil, e.Wrap(op, err)
	}
	return sub, nil
}

// backfill replays (since, target] from the event log, then flushes what
// Dispatch buffered meanwhile and switches the subscription to live mode.
func (b *Broker) backfill(ctx context.Context, sub *Subscription, since, target int64) error {
	cursor := since
	for cursor < target {
		events, err := b.log.EventsSince(ctx, cursor, b.batch)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return fmt.Errorf("event log ends at %d, broker is at %d", cursor, target)
		}
		for _, ev := range events {
			if ev.Sequence > target {
				cursor = target
				break
			}
			cursor = ev.Sequence
			if sub.Box().Contains(ev.Incident.Location) && !sub.offer(ev) {
				b.remove(sub, e.ErrSubscriberOverflow)
				return nil
			}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if sub.closed() {
		return nil
	}
	if target > sub.cursor {
		sub.cursor = target
	}
	pending := sub.pending
	sub.pending = nil
	for _, ev := range pending {
		if !b.deliverLocked(sub, ev) {
			break
		}
	}
	return nil
}

// Dispatch hands one committed event to every matching subscription. Events
// must arrive in sequence order; repeats of already dispatched sequences are
// ignored.
func (b *Broker) Dispatch(ev domain.IncidentEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ev.Sequence <= b.position {
		return
	}
	b.position = ev.Sequence

	delivered := 0
	for _, sub := range b.subs {
		if sub.pending != nil {
			if !sub.Box().Contains(ev.Incident.Location) {
				continue
			}
			if len(sub.pending) >= b.queueDepth {
				b.dropLocked(sub)
				continue
			}
			sub.pending = append(sub.pending, ev)
			continue
		}
		if b.deliverLocked(sub, ev) {
			delivered++
		}
	}
	b.metrics.EventsDispatched(delivered)
}

// deliverLocked queues ev for sub when it is new to sub and inside its box.
// It reports false if ev was not queued.
func (b *Broker) deliverLocked(sub *Subscription, ev domain.IncidentEvent) bool {
	if ev.Sequence <= sub.cursor {
		return false
	}
	sub.cursor = ev.Sequence
	if !sub.Box().Contains(ev.Incident.Location) {
		return false
	}
	if !sub.offer(ev) {
		b.dropLocked(sub)
		return false
	}
	return true
}

func (b *Broker) dropLocked(sub *Subscription) {
	delete(b.subs, sub.ID)
	if sub.close(e.ErrSubscriberOverflow) {
		b.metrics.SubscriberDropped()
		b.metrics.SubscriptionClosed()
		b.logger.Warn("subscriber dropped on overflow",
			slog.String("subscription_id", sub.ID.String()),
			slog.String("subscriber_id", sub.SubscriberID),
		)
	}
}

func (b *Broker) remove(sub *Subscription, reason error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if reason == e.ErrSubscriberOverflow {
		b.dropLocked(sub)
		return
	}
	delete(b.subs, sub.ID)
	if sub.close(reason) {
		b.metrics.SubscriptionClosed()
	}
}

// UpdateViewport swaps the box of a live subscription. Events dispatched
// after the call are matched against the new box; the caller resnapshots
// the new area.
func (b *Broker) UpdateViewport(id uuid.UUID, box domain.BoundingBox) error {
	if err := box.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		return fmt.Errorf("broker.UpdateViewport: %w", e.ErrNotFound)
	}
	sub.setBox(box)
	return nil
}

func (b *Broker) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	b.mu.Unlock()
	if !ok {
		return
	}
	b.remove(sub, nil)
}

func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

type nopMetrics struct{}

func (nopMetrics) SubscriptionOpened()  {}
func (nopMetrics) SubscriptionClosed()  {}
func (nopMetrics) SubscriberDropped()   {}
func (nopMetrics) EventsDispatched(int) {}
