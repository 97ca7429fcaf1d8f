package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"sosnet/internal/dedup"
	"sosnet/internal/domain"
	"sosnet/pkg/e"
	"sosnet/pkg/validator"
)

const (
	OutcomeCreated  = "created"
	OutcomeMerged   = "merged"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"

	// MaxClockSkew bounds how far in the future a client-supplied
	// submittedAt may be.
	MaxClockSkew = 5 * time.Minute

	defaultMergeRetries = 5
)

var errClusterClosed = errors.New("cluster incident no longer open")

type ReportOptions struct {
	Policy     dedup.Policy
	MaxRetries int
	Now        func() time.Time
}

// ReportService validates raw submissions and folds near-duplicates into one
// incident per cluster key.
type ReportService struct {
	store    IncidentStore
	index    ClusterIndex
	notifier EventNotifier
	metrics  Metrics
	logger   *slog.Logger

	policy     dedup.Policy
	maxRetries int
	now        func() time.Time
}

func NewReportService(store IncidentStore, index ClusterIndex, notifier EventNotifier, metrics Metrics, logger *slog.Logger, opts ReportOptions) *ReportService {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = defaultMergeRetries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if notifier == nil {
		notifier = Notifiers(nil)
	}
	return &ReportService{
		store:      store,
		index:      index,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
		policy:     opts.Policy.Normalized(),
		maxRetries: opts.MaxRetries,
		now:        opts.Now,
	}
}

func (s *ReportService) Submit(ctx context.Context, req domain.SubmitReportRequest) (domain.SubmitResult, error) {
	const op = "service.Reports.Submit"

	req.Title = strings.TrimSpace(req.Title)
	req.ReporterID = strings.TrimSpace(req.ReporterID)

	if err := validator.ValidateStruct(req); err != nil {
		s.metrics.SubmissionObserved(OutcomeRejected)
		return domain.SubmitResult{}, err
	}

	now := s.now().UTC()
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = now
	} else if req.SubmittedAt.After(now.Add(MaxClockSkew)) {
		s.metrics.SubmissionObserved(OutcomeRejected)
		return domain.SubmitResult{}, e.NewValidationError("submittedAt", "must not be in the future")
	}

	severity := req.Severity
	if severity == "" {
		severity = domain.DefaultSeverity(req.Type)
	}
	key := s.policy.ClusterKey(req.Type, *req.Location, req.SubmittedAt)

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		existing, err := s.findOpen(ctx, key)
		if err != nil && !errors.Is(err, e.ErrNotFound) {
			s.metrics.SubmissionObserved(OutcomeFailed)
			return domain.SubmitResult{}, e.Wrap(op, err)
		}

		if existing != nil {
			merged, err := s.merge(ctx, existing, req, severity)
			switch {
			case err == nil:
				s.metrics.SubmissionObserved(OutcomeMerged)
				s.notifier.Notify(ctx, merged.ID)
				s.logger.Info("report merged",
					slog.String("op", op),
					slog.String("incident_id", merged.ID.String()),
					slog.Int("merged_report_count", merged.MergedReportCount),
				)
				return domain.SubmitResult{IncidentID: merged.ID, Merged: true, Incident: merged}, nil
			case errors.Is(err, e.ErrVersionConflict), errors.Is(err, errClusterClosed), errors.Is(err, e.ErrNotFound):
				s.logger.Debug("merge raced, retrying", slog.String("op", op), slog.Int("attempt", attempt), slog.Any("error", err))
				s.forget(ctx, key)
				continue
			default:
				s.metrics.SubmissionObserved(OutcomeFailed)
				return domain.SubmitResult{}, e.Wrap(op, err)
			}
		}

		created, err := s.create(ctx, key, req, severity)
		switch {
		case err == nil:
			s.metrics.SubmissionObserved(OutcomeCreated)
			s.notifier.Notify(ctx, created.ID)
			s.logger.Info("incident created",
				slog.String("op", op),
				slog.String("incident_id", created.ID.String()),
				slog.String("type", string(created.Type)),
				slog.String("cluster_key", key),
			)
			return domain.SubmitResult{IncidentID: created.ID, Incident: created}, nil
		case errors.Is(err, e.ErrUniqueViolation):
			// someone else opened this cluster first, fold into theirs
			s.logger.Debug("create lost cluster race, retrying as merge", slog.String("op", op), slog.Int("attempt", attempt))
			continue
		default:
			s.metrics.SubmissionObserved(OutcomeFailed)
			return domain.SubmitResult{}, e.Wrap(op, err)
		}
	}

	s.metrics.SubmissionObserved(OutcomeFailed)
	return domain.SubmitResult{}, fmt.Errorf("%s: gave up after %d attempts: %w", op, s.maxRetries, e.ErrVersionConflict)
}

// findOpen consults the cluster index first and falls back to the store. An
// index hit is only trusted after the store confirms the incident still
// holds the key.
func (s *ReportService) findOpen(ctx context.Context, key string) (*domain.Incident, error) {
	if s.index != nil {
		id, ok, err := s.index.Lookup(ctx, key)
		if err != nil {
			s.logger.Warn("cluster index lookup failed", slog.String("cluster_key", key), slog.Any("error", err))
		}
		if ok {
			inc, err := s.store.Get(ctx, id)
			if err == nil && inc.ClusterKey == key && inc.State.IsOpen() {
				return inc, nil
			}
			s.forget(ctx, key)
		}
	}

	inc, err := s.store.FindOpenByClusterKey(ctx, key)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, key, inc.ID)
	return inc, nil
}

func (s *ReportService) merge(ctx context.Context, existing *domain.Incident, req domain.SubmitReportRequest, severity domain.Severity) (*domain.Incident, error) {
	return s.store.Update(ctx, existing.ID, existing.Version, domain.EventMerged, func(inc *domain.Incident) error {
		if !inc.State.IsOpen() {
			return errClusterClosed
		}
		s.policy.Merge(inc, req, severity)
		return nil
	})
}

func (s *ReportService) create(ctx context.Context, key string, req domain.SubmitReportRequest, severity domain.Severity) (*domain.Incident, error) {
	inc := &domain.Incident{
		ID:                uuid.New(),
		Type:              req.Type,
		Title:             req.Title,
		Description:       req.Description,
		Location:          *req.Location,
		AccuracyMeters:    req.AccuracyMeters,
		Severity:          severity,
		State:             domain.StateReported,
		ReporterID:        req.ReporterID,
		ClusterKey:        key,
		MergedReportCount: 1,
	}
	if _, err := s.store.Create(ctx, inc); err != nil {
		return nil, err
	}
	s.remember(ctx, key, inc.ID)
	return inc, nil
}

func (s *ReportService) remember(ctx context.Context, key string, id uuid.UUID) {
	if s.index == nil {
		return
	}
	if err := s.index.Remember(ctx, key, id, s.policy.Window); err != nil {
		s.logger.Warn("cluster index write failed", slog.String("cluster_key", key), slog.Any("error", err))
	}
}

func (s *ReportService) forget(ctx context.Context, key string) {
	if s.index == nil {
		return
	}
	if err := s.index.Forget(ctx, key); err != nil {
		s.logger.Warn("cluster index delete failed", slog.String("cluster_key", key), slog.Any("error", err))
	}
}
