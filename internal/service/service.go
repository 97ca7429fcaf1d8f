package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sosnet/internal/domain"
)

//go:generate mockgen -source=service.go -destination=mocks/mock.go
type IncidentStore interface {
	Create(ctx context.Context, incident *domain.Incident) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error)
	Update(ctx context.Context, id uuid.UUID, expectedVersion int64, kind domain.EventKind, mutate domain.Mutation) (*domain.Incident, error)
	FindOpenByClusterKey(ctx context.Context, key string) (*domain.Incident, error)
	QueryByBoundingBox(ctx context.Context, box domain.BoundingBox, states []domain.IncidentState) ([]domain.Incident, error)
	Snapshot(ctx context.Context, box domain.BoundingBox, states []domain.IncidentState, limit int) ([]domain.Incident, int64, error)
	ListByReporter(ctx context.Context, reporterID string, page, limit int) ([]domain.Incident, int64, error)
	EventsForIncident(ctx context.Context, id uuid.UUID) ([]domain.IncidentEvent, error)
}

// ClusterIndex is an optional cache in front of FindOpenByClusterKey.
type ClusterIndex interface {
	Lookup(ctx context.Context, clusterKey string) (uuid.UUID, bool, error)
	Remember(ctx context.Context, clusterKey string, id uuid.UUID, ttl time.Duration) error
	Forget(ctx context.Context, clusterKey string) error
}

// EventNotifier is told about every committed change so relays can read the
// event log without waiting for their next poll.
type EventNotifier interface {
	Notify(ctx context.Context, incidentID uuid.UUID)
}

type Metrics interface {
	SubmissionObserved(outcome string)
	TransitionObserved(result string)
}

type Service struct {
	Reports   *ReportService
	Lifecycle *LifecycleService
	Query     *QueryGateway
}

func NewService(reports *ReportService, lifecycle *LifecycleService, query *QueryGateway) *Service {
	return &Service{
		Reports:   reports,
		Lifecycle: lifecycle,
		Query:     query,
	}
}

// Notifiers fans one notification out to several notifiers.
type Notifiers []EventNotifier

func (n Notifiers) Notify(ctx context.Context, incidentID uuid.UUID) {
	for _, notifier := range n {
		if notifier != nil {
			notifier.Notify(ctx, incidentID)
		}
	}
}

type nopMetrics struct{}

func (nopMetrics) SubmissionObserved(string) {}
func (nopMetrics) TransitionObserved(string) {}
