package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"sosnet/internal/domain"
	"sosnet/pkg/e"
)

const (
	ResultApplied  = "applied"
	ResultConflict = "conflict"
	ResultInvalid  = "invalid"
	ResultFailed   = "failed"

	defaultTransitionRetries = 3
)

// LifecycleService moves incidents through the state machine with
// optimistic concurrency.
type LifecycleService struct {
	store      IncidentStore
	notifier   EventNotifier
	metrics    Metrics
	logger     *slog.Logger
	maxRetries int
}

func NewLifecycleService(store IncidentStore, notifier EventNotifier, metrics Metrics, logger *slog.Logger, maxRetries int) *LifecycleService {
	if maxRetries < 0 {
		maxRetries = defaultTransitionRetries
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if notifier == nil {
		notifier = Notifiers(nil)
	}
	return &LifecycleService{
		store:      store,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Transition applies req against the incident at req.ExpectedVersion. A zero
// ExpectedVersion means "whatever is current" and goes through
// TransitionWithRetry.
func (s *LifecycleService) Transition(ctx context.Context, id uuid.UUID, req domain.TransitionRequest) (*domain.Incident, error) {
	if req.ExpectedVersion < 0 {
		return nil, e.NewValidationError("expectedVersion", "must not be negative")
	}
	if req.ExpectedVersion == 0 {
		return s.TransitionWithRetry(ctx, id, req.TargetState, req.ActorRole, req.Reopen)
	}

	inc, err := s.apply(ctx, id, req)
	s.observe(err)
	return inc, err
}

func (s *LifecycleService) Reopen(ctx context.Context, id uuid.UUID, role domain.ActorRole, expectedVersion int64) (*domain.Incident, error) {
	return s.Transition(ctx, id, domain.TransitionRequest{
		TargetState:     domain.StateVerified,
		ActorRole:       role,
		ExpectedVersion: expectedVersion,
		Reopen:          true,
	})
}

// TransitionWithRetry re-reads the incident after a version conflict and
// tries again while the move is still legal from the fresh state.
func (s *LifecycleService) TransitionWithRetry(ctx context.Context, id uuid.UUID, target domain.IncidentState, role domain.ActorRole, reopen bool) (*domain.Incident, error) {
	const op = "service.Lifecycle.TransitionWithRetry"

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		current, err := s.store.Get(ctx, id)
		if err != nil {
			s.observe(err)
			return nil, e.Wrap(op, err)
		}

		inc, err := s.apply(ctx, id, domain.TransitionRequest{
			TargetState:     target,
			ActorRole:       role,
			ExpectedVersion: current.Version,
			Reopen:          reopen,
		})
		if err == nil || !errors.Is(err, e.ErrVersionConflict) {
			s.observe(err)
			return inc, err
		}
		lastErr = err
		s.logger.Debug("transition conflicted, retrying",
			slog.String("op", op),
			slog.String("incident_id", id.String()),
			slog.Int("attempt", attempt+1),
		)
	}

	s.observe(lastErr)
	return nil, lastErr
}

func (s *LifecycleService) apply(ctx context.Context, id uuid.UUID, req domain.TransitionRequest) (*domain.Incident, error) {
	const op = "service.Lifecycle.Transition"

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if current.Version != req.ExpectedVersion {
		return nil, fmt.Errorf("%s: expected version %d, have %d: %w", op, req.ExpectedVersion, current.Version, e.ErrVersionConflict)
	}
	if err := domain.CheckTransition(current.State, req.TargetState, req.ActorRole, req.Reopen); err != nil {
		s.logger.Info("transition rejected",
			slog.String("op", op),
			slog.String("incident_id", id.String()),
			slog.String("from", string(current.State)),
			slog.String("to", string(req.TargetState)),
			slog.String("role", string(req.ActorRole)),
		)
		return nil, e.Wrap(op, err)
	}

	updated, err := s.store.Update(ctx, id, req.ExpectedVersion, domain.EventStateChanged, func(inc *domain.Incident) error {
		// the row may have moved since Get; recheck against what is locked
		if err := domain.CheckTransition(inc.State, req.TargetState, req.ActorRole, req.Reopen); err != nil {
			return err
		}
		inc.State = req.TargetState
		return nil
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	s.notifier.Notify(ctx, updated.ID)
	s.logger.Info("incident transitioned",
		slog.String("op", op),
		slog.String("incident_id", id.String()),
		slog.String("from", string(current.State)),
		slog.String("to", string(updated.State)),
		slog.Int64("version", updated.Version),
	)
	return updated, nil
}

func (s *LifecycleService) observe(err error) {
	switch {
	case err == nil:
		s.metrics.TransitionObserved(ResultApplied)
	case errors.Is(err, e.ErrVersionConflict):
		s.metrics.TransitionObserved(ResultConflict)
	case errors.Is(err, e.ErrInvalidTransition), errors.Is(err, e.ErrValidation):
		s.metrics.TransitionObserved(ResultInvalid)
	default:
		s.metrics.TransitionObserved(ResultFailed)
	}
}
