package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sosnet/internal/domain"
)

type EventLog interface {
	EventsSince(ctx context.Context, afterSeq int64, limit int) ([]domain.IncidentEvent, error)
	LastSequence(ctx context.Context) (int64, error)
}

type Dispatcher interface {
	Start(position int64)
	Dispatch(ev domain.IncidentEvent)
}

type WebhookQueue interface {
	Enqueue(ctx context.Context, payload domain.WebhookPayload) error
}

type RelayMetrics interface {
	RelayPosition(seq int64)
}

type RelayOptions struct {
	PollInterval time.Duration
	BatchSize    int
}

// Relay tails the event log and feeds the broker in sequence order. It polls
// on an interval and drains early whenever it is woken.
type Relay struct {
	log      EventLog
	broker   Dispatcher
	webhooks WebhookQueue
	metrics  RelayMetrics
	logger   *slog.Logger

	interval time.Duration
	batch    int
	wake     chan struct{}
	cursor   int64
}

func NewRelay(log EventLog, broker Dispatcher, webhooks WebhookQueue, metrics RelayMetrics, logger *slog.Logger, opts RelayOptions) *Relay {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 200
	}
	return &Relay{
		log:      log,
		broker:   broker,
		webhooks: webhooks,
		metrics:  metrics,
		logger:   logger,
		interval: opts.PollInterval,
		batch:    opts.BatchSize,
		wake:     make(chan struct{}, 1),
	}
}

// Wake asks the relay to read the log now. It never blocks.
func (r *Relay) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Relay) Notify(_ context.Context, _ uuid.UUID) {
	r.Wake()
}

// Run starts at the current end of the log: earlier events are served by
// snapshots and subscription backfill.
func (r *Relay) Run(ctx context.Context) error {
	const op = "workers.Relay.Run"

	start, err := r.log.LastSequence(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Error("read log position failed", slog.String("op", op), slog.Any("error", err))
		return err
	}
	r.cursor = start
	r.broker.Start(start)
	r.logger.Info("relay started", slog.Int64("position", start), slog.Duration("poll_interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped", slog.Int64("position", r.cursor))
			return nil
		case <-ticker.C:
		case <-r.wake:
		}
		r.drain(ctx)
	}
}

func (r *Relay) drain(ctx context.Context) {
	const op = "workers.Relay.drain"

	for {
		events, err := r.log.EventsSince(ctx, r.cursor, r.batch)
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Warn("read event log failed", slog.String("op", op), slog.Int64("cursor", r.cursor), slog.Any("error", err))
			}
			return
		}

		for _, ev := range events {
			r.broker.Dispatch(ev)
			r.enqueueWebhook(ctx, ev)
			r.cursor = ev.Sequence
		}
		if r.metrics != nil && len(events) > 0 {
			r.metrics.RelayPosition(r.cursor)
		}
		if len(events) < r.batch {
			return
		}
	}
}

func (r *Relay) enqueueWebhook(ctx context.Context, ev domain.IncidentEvent) {
	if r.webhooks == nil {
		return
	}
	if ev.Kind != domain.EventCreated && ev.Kind != domain.EventStateChanged {
		return
	}
	if err := r.webhooks.Enqueue(ctx, domain.NewWebhookPayload(ev)); err != nil {
		r.logger.Warn("enqueue webhook failed",
			slog.Int64("sequence", ev.Sequence),
			slog.String("incident_id", ev.IncidentID.String()),
			slog.Any("error", err),
		)
	}
}
