package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"sosnet/internal/domain"
	"sosnet/pkg/e"
)

const defaultSnapshotLimit = 500

// QueryGateway serves read-only views of the store.
type QueryGateway struct {
	store  IncidentStore
	logger *slog.Logger
	limit  int
}

func NewQueryGateway(store IncidentStore, logger *slog.Logger, snapshotLimit int) *QueryGateway {
	if snapshotLimit <= 0 {
		snapshotLimit = defaultSnapshotLimit
	}
	return &QueryGateway{store: store, logger: logger, limit: snapshotLimit}
}

// Snapshot returns the incidents in the box together with the event-log
// sequence they reflect. A subscription started at AsOfSequence sees every
// later change and none of the earlier ones.
func (q *QueryGateway) Snapshot(ctx context.Context, req domain.SnapshotRequest) (domain.SnapshotResponse, error) {
	const op = "service.Query.Snapshot"

	if err := req.Box.Validate(); err != nil {
		return domain.SnapshotResponse{}, err
	}
	states := req.States
	if len(states) == 0 {
		states = domain.VisibleStates
	}

	items, seq, err := q.store.Snapshot(ctx, req.Box, states, q.limit)
	if err != nil {
		return domain.SnapshotResponse{}, e.Wrap(op, err)
	}
	if items == nil {
		items = []domain.Incident{}
	}
	if len(items) == q.limit {
		q.logger.Debug("snapshot truncated", slog.String("op", op), slog.Int("limit", q.limit))
	}

	return domain.SnapshotResponse{Incidents: items, AsOfSequence: seq}, nil
}

// Search is Snapshot without the sequence or the result cap.
func (q *QueryGateway) Search(ctx context.Context, req domain.SnapshotRequest) ([]domain.Incident, error) {
	const op = "service.Query.Search"

	if err := req.Box.Validate(); err != nil {
		return nil, err
	}
	states := req.States
	if len(states) == 0 {
		states = domain.VisibleStates
	}
	items, err := q.store.QueryByBoundingBox(ctx, req.Box, states)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return items, nil
}

func (q *QueryGateway) Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error) {
	inc, err := q.store.Get(ctx, id)
	if err != nil {
		return nil, e.Wrap("service.Query.Get", err)
	}
	return inc, nil
}

func (q *QueryGateway) History(ctx context.Context, id uuid.UUID) ([]domain.IncidentEvent, error) {
	events, err := q.store.EventsForIncident(ctx, id)
	if err != nil {
		return nil, e.Wrap("service.Query.History", err)
	}
	if events == nil {
		events = []domain.IncidentEvent{}
	}
	return events, nil
}

func (q *QueryGateway) ListByReporter(ctx context.Context, reporterID string, page, limit int) ([]domain.Incident, int64, error) {
	if reporterID == "" {
		return nil, 0, e.NewValidationError("reporterId", "is required")
	}
	items, total, err := q.store.ListByReporter(ctx, reporterID, page, limit)
	if err != nil {
		return nil, 0, e.Wrap("service.Query.ListByReporter", err)
	}
	return items, total, nil
}
