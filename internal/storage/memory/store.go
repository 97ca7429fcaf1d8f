// Package memory is an in-process Incident Store with the same contract as
// the Postgres store. It backs STORAGE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sosnet/internal/domain"
	"sosnet/pkg/e"
)

type Store struct {
	mu            sync.RWMutex
	incidents     map[uuid.UUID]*domain.Incident
	openByCluster map[string]uuid.UUID
	events        []domain.IncidentEvent
	now           func() time.Time
}

func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		incidents:     make(map[uuid.UUID]*domain.Incident),
		openByCluster: make(map[string]uuid.UUID),
		now:           now,
	}
}

func (s *Store) Create(ctx context.Context, incident *domain.Incident) (uuid.UUID, error) {
	const op = "memory.Incident.Create"

	if err := ctx.Err(); err != nil {
		return uuid.Nil, e.WrapError(ctx, op, err)
	}
	if incident == nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, e.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if incident.ID == uuid.Nil {
		incident.ID = uuid.New()
	}
	if _, exists := s.incidents[incident.ID]; exists {
		return uuid.Nil, fmt.Errorf("%s: %w", op, e.ErrUniqueViolation)
	}
	if incident.State == "" {
		incident.State = domain.StateReported
	}
	if incident.ClusterKey != "" && incident.State.IsOpen() {
		if _, taken := s.openByCluster[incident.ClusterKey]; taken {
			return uuid.Nil, fmt.Errorf("%s: %w", op, e.ErrUniqueViolation)
		}
	}
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = s.now().UTC()
	}
	incident.UpdatedAt = incident.CreatedAt
	incident.Version = 1
	if incident.MergedReportCount < 1 {
		incident.MergedReportCount = 1
	}

	stored := incident.Clone()
	s.incidents[stored.ID] = stored
	if stored.ClusterKey != "" && stored.State.IsOpen() {
		s.openByCluster[stored.ClusterKey] = stored.ID
	}
	s.appendLocked(domain.EventCreated, stored)

	return stored.ID, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error) {
	const op = "memory.Incident.Get"

	if err := ctx.Err(); err != nil {
		return nil, e.WrapError(ctx, op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	inc, ok := s.incidents[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, e.ErrNotFound)
	}
	return inc.Clone(), nil
}

func (s *Store) Update(ctx context.Context, id uuid.UUID, expectedVersion int64, kind domain.EventKind, mutate domain.Mutation) (*domain.Incident, error) {
	const op = "memory.Incident.Update"

	if err := ctx.Err(); err != nil {
		return nil, e.WrapError(ctx, op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.incidents[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, e.ErrNotFound)
	}
	if current.Version != expectedVersion {
		return nil, fmt.Errorf("%s: expected version %d, have %d: %w", op, expectedVersion, current.Version, e.ErrVersionConflict)
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.ReporterID = current.ReporterID
	next.CreatedAt = current.CreatedAt
	next.ClusterKey = current.ClusterKey
	next.Version = current.Version + 1
	next.UpdatedAt = s.now().UTC()
	if next.UpdatedAt.Before(current.UpdatedAt) {
		next.UpdatedAt = current.UpdatedAt
	}

	s.reindexLocked(current, next)
	s.incidents[id] = next
	s.appendLocked(kind, next)

	return next.Clone(), nil
}

// reindexLocked keeps at most one open incident per cluster key. A reopened
// incident only takes the key back when no other open incident holds it.
func (s *Store) reindexLocked(prev, next *domain.Incident) {
	if next.ClusterKey == "" {
		return
	}
	holder, taken := s.openByCluster[next.ClusterKey]
	switch {
	case !next.State.IsOpen() && taken && holder == next.ID:
		delete(s.openByCluster, next.ClusterKey)
	case next.State.IsOpen() && !prev.State.IsOpen() && !taken:
		s.openByCluster[next.ClusterKey] = next.ID
	}
}

func (s *Store) appendLocked(kind domain.EventKind, inc *domain.Incident) {
	s.events = append(s.events, domain.IncidentEvent{
		Sequence:   int64(len(s.events)) + 1,
		IncidentID: inc.ID,
		Kind:       kind,
		Incident:   *inc.Clone(),
		OccurredAt: inc.UpdatedAt,
	})
}

func (s *Store) FindOpenByClusterKey(ctx context.Context, key string) (*domain.Incident, error) {
	const op = "memory.Incident.FindOpenByClusterKey"

	if err := ctx.Err(); err != nil {
		return nil, e.WrapError(ctx, op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.openByCluster[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, e.ErrNotFound)
	}
	return s.incidents[id].Clone(), nil
}

func (s *Store) QueryByBoundingBox(ctx context.Context, box domain.BoundingBox, states []domain.IncidentState) ([]domain.Incident, error) {
	const op = "memory.Incident.QueryByBoundingBox"

	if err := ctx.Err(); err != nil {
		return nil, e.WrapError(ctx, op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLocked(box, states, 0), nil
}

func (s *Store) Snapshot(ctx context.Context, box domain.BoundingBox, states []domain.IncidentState, limit int) ([]domain.Incident, int64, error) {
	const op = "memory.Incident.Snapshot"

	if err := ctx.Err(); err != nil {
		return nil, 0, e.WrapError(ctx, op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLocked(box, states, limit), int64(len(s.events)), nil
}

func (s *Store) queryLocked(box domain.BoundingBox, states []domain.IncidentState, limit int) []domain.Incident {
	allowed := make(map[domain.IncidentState]bool, len(states))
	for _, st := range states {
		allowed[st] = true
	}

	out := make([]domain.Incident, 0, 16)
	for _, inc := range s.incidents {
		if len(allowed) > 0 && !allowed[inc.State] {
			continue
		}
		if !box.Contains(inc.Location) {
			continue
		}
		out = append(out, *inc.Clone())
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) ListByReporter(ctx context.Context, reporterID string, page, limit int) ([]domain.Incident, int64, error) {
	const op = "memory.Incident.ListByReporter"

	if err := ctx.Err(); err != nil {
		return nil, 0, e.WrapError(ctx, op, err)
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.Incident, 0)
	for _, inc := range s.incidents {
		if inc.ReporterID == reporterID {
			all = append(all, *inc.Clone())
		}
	}
	sortNewestFirst(all)

	total := int64(len(all))
	offset := (page - 1) * limit
	if offset >= len(all) {
		return []domain.Incident{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (s *Store) EventsSince(ctx context.Context, afterSeq int64, limit int) ([]domain.IncidentEvent, error) {
	const op = "memory.Events.Since"

	if err := ctx.Err(); err != nil {
		return nil, e.WrapError(ctx, op, err)
	}
	if limit <= 0 {
		limit = 100
	}
	if afterSeq < 0 {
		afterSeq = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if afterSeq >= int64(len(s.events)) {
		return nil, nil
	}
	end := afterSeq + int64(limit)
	if end > int64(len(s.events)) {
		end = int64(len(s.events))
	}
	out := make([]domain.IncidentEvent, end-afterSeq)
	copy(out, s.events[afterSeq:end])
	return out, nil
}

func (s *Store) EventsForIncident(ctx context.Context, id uuid.UUID) ([]domain.IncidentEvent, error) {
	const op = "memory.Events.ForIncident"

	if err := ctx.Err(); err != nil {
		return nil, e.WrapError(ctx, op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.incidents[id]; !ok {
		return nil, fmt.Errorf("%s: %w", op, e.ErrNotFound)
	}
	out := make([]domain.IncidentEvent, 0, 4)
	for _, ev := range s.events {
		if ev.IncidentID == id {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Store) LastSequence(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, e.WrapError(ctx, "memory.Events.LastSequence", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.events)), nil
}

func sortNewestFirst(items []domain.Incident) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID.String() < items[j].ID.String()
	})
}
