package service

import (
	"context"

	"github.com/google/uuid"

	"sosnet/internal/domain"
)

func (s *Service) Submit(ctx context.Context, req domain.SubmitReportRequest) (domain.SubmitResult, error) {
	return s.Reports.Submit(ctx, req)
}

func (s *Service) Transition(ctx context.Context, id uuid.UUID, req domain.TransitionRequest) (*domain.Incident, error) {
	return s.Lifecycle.Transition(ctx, id, req)
}

func (s *Service) Snapshot(ctx context.Context, req domain.SnapshotRequest) (domain.SnapshotResponse, error) {
	return s.Query.Snapshot(ctx, req)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error) {
	return s.Query.Get(ctx, id)
}

func (s *Service) History(ctx context.Context, id uuid.UUID) ([]domain.IncidentEvent, error) {
	return s.Query.History(ctx, id)
}

func (s *Service) ListByReporter(ctx context.Context, reporterID string, page, limit int) ([]domain.Incident, int64, error) {
	return s.Query.ListByReporter(ctx, reporterID, page, limit)
}
