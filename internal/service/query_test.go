package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"

	"sosnet/internal/domain"
	"sosnet/internal/service"
	mock_service "sosnet/internal/service/mocks"
	"sosnet/pkg/e"
)

func TestQueryGateway_Snapshot_DefaultFilterHidesClosed(t *testing.T) {
	t.Parallel()
	env := newEnv()
	ctx := context.Background()

	open := submitOne(t, env)

	closedReq := fireReport()
	closedReq.Type = domain.TypeFlood
	closed, _ := env.reports.Submit(ctx, closedReq)
	if _, err := move(env, closed.IncidentID, domain.StateClosed, domain.RoleAdmin, 1); err != nil {
		t.Fatalf("close: %v", err)
	}

	resolvedReq := fireReport()
	resolvedReq.Type = domain.TypeRescue
	resolved, _ := env.reports.Submit(ctx, resolvedReq)
	for i, st := range []domain.IncidentState{domain.StateVerified, domain.StateInProgress, domain.StateResolved} {
		if _, err := move(env, resolved.IncidentID, st, domain.RoleAdmin, int64(i+1)); err != nil {
			t.Fatalf("move to %s: %v", st, err)
		}
	}

	resp, err := env.query.Snapshot(ctx, domain.SnapshotRequest{Box: domain.WorldBox})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(resp.Incidents) != 2 {
		t.Fatalf("expected 2 visible incidents, got %d", len(resp.Incidents))
	}
	for _, inc := range resp.Incidents {
		if inc.ID == closed.IncidentID {
			t.Fatalf("closed incident must be hidden by default")
		}
	}
	if resp.AsOfSequence != 7 {
		t.Fatalf("expected asOfSequence 7, got %d", resp.AsOfSequence)
	}

	onlyClosed, err := env.query.Snapshot(ctx, domain.SnapshotRequest{
		Box:    domain.WorldBox,
		States: []domain.IncidentState{domain.StateClosed},
	})
	if err != nil || len(onlyClosed.Incidents) != 1 {
		t.Fatalf("explicit closed filter: %+v err=%v", onlyClosed, err)
	}

	search, err := env.query.Search(ctx, domain.SnapshotRequest{
		Box:    domain.BoundingBox{MinLat: 37.7, MinLng: -122.5, MaxLat: 37.9, MaxLng: -122.3},
		States: []domain.IncidentState{domain.StateReported},
	})
	if err != nil || len(search) != 1 || search[0].ID != open {
		t.Fatalf("search: %+v err=%v", search, err)
	}
}

func TestQueryGateway_Snapshot_EmptyIsNotNil(t *testing.T) {
	t.Parallel()
	env := newEnv()

	resp, err := env.query.Snapshot(context.Background(), domain.SnapshotRequest{Box: domain.WorldBox})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if resp.Incidents == nil || len(resp.Incidents) != 0 || resp.AsOfSequence != 0 {
		t.Fatalf("unexpected empty snapshot: %+v", resp)
	}
}

func TestQueryGateway_Snapshot_RejectsBadBox(t *testing.T) {
	t.Parallel()
	env := newEnv()

	_, err := env.query.Snapshot(context.Background(), domain.SnapshotRequest{
		Box: domain.BoundingBox{MinLat: 10, MaxLat: 5},
	})
	if !errors.Is(err, e.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestQueryGateway_Snapshot_UsesLimit(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mock_service.NewMockIncidentStore(ctrl)
	store.EXPECT().
		Snapshot(gomock.Any(), domain.WorldBox, domain.VisibleStates, 25).
		Return([]domain.Incident{{ID: uuid.New()}}, int64(42), nil).
		Times(1)

	q := service.NewQueryGateway(store, discardLogger(), 25)
	resp, err := q.Snapshot(context.Background(), domain.SnapshotRequest{Box: domain.WorldBox})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if resp.AsOfSequence != 42 || len(resp.Incidents) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestQueryGateway_HistoryAndList(t *testing.T) {
	t.Parallel()
	env := newEnv()
	ctx := context.Background()

	id := submitOne(t, env)
	if _, err := env.reports.Submit(ctx, fireReport()); err != nil {
		t.Fatalf("merge: %v", err)
	}

	history, err := env.query.History(ctx, id)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 || history[1].Kind != domain.EventMerged {
		t.Fatalf("unexpected history: %+v", history)
	}

	if _, err := env.query.History(ctx, uuid.New()); !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	items, total, err := env.query.ListByReporter(ctx, "citizen-1", 1, 10)
	if err != nil {
		t.Fatalf("ListByReporter: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != id {
		t.Fatalf("unexpected list: total=%d items=%+v", total, items)
	}

	if _, _, err := env.query.ListByReporter(ctx, "", 1, 10); !errors.Is(err, e.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
