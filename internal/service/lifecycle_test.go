package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"

	"sosnet/internal/domain"
	"sosnet/internal/service"
	mock_service "sosnet/internal/service/mocks"
	"sosnet/pkg/e"
)

func submitOne(t *testing.T, env *env) uuid.UUID {
	t.Helper()
	res, err := env.reports.Submit(context.Background(), fireReport())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return res.IncidentID
}

func move(env *env, id uuid.UUID, to domain.IncidentState, role domain.ActorRole, version int64) (*domain.Incident, error) {
	return env.lifecycle.Transition(context.Background(), id, domain.TransitionRequest{
		TargetState:     to,
		ActorRole:       role,
		ExpectedVersion: version,
	})
}

func TestLifecycleService_FullChain(t *testing.T) {
	t.Parallel()
	env := newEnv()
	id := submitOne(t, env)

	steps := []struct {
		to   domain.IncidentState
		role domain.ActorRole
	}{
		{domain.StateVerified, domain.RoleDispatcher},
		{domain.StateInProgress, domain.RoleResponder},
		{domain.StateResolved, domain.RoleResponder},
		{domain.StateClosed, domain.RoleAdmin},
	}

	version := int64(1)
	for _, st := range steps {
		inc, err := move(env, id, st.to, st.role, version)
		if err != nil {
			t.Fatalf("%s by %s: %v", st.to, st.role, err)
		}
		if inc.State != st.to || inc.Version != version+1 {
			t.Fatalf("unexpected incident after %s: %+v", st.to, inc)
		}
		if inc.UpdatedAt.Before(inc.CreatedAt) {
			t.Fatalf("updatedAt before createdAt")
		}
		version = inc.Version
	}

	events, _ := env.store.EventsForIncident(context.Background(), id)
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Sequence <= events[i-1].Sequence {
			t.Fatalf("sequence not increasing: %d then %d", events[i-1].Sequence, events[i].Sequence)
		}
		if events[i].Kind != domain.EventStateChanged {
			t.Fatalf("unexpected kind %s", events[i].Kind)
		}
	}
}

func TestLifecycleService_RoleGating(t *testing.T) {
	t.Parallel()
	env := newEnv()
	id := submitOne(t, env)

	if _, err := move(env, id, domain.StateVerified, domain.RoleDispatcher, 1); err != nil {
		t.Fatalf("verify: %v", err)
	}

	_, err := move(env, id, domain.StateInProgress, domain.RoleCitizen, 2)
	if !errors.Is(err, e.ErrInvalidTransition) {
		t.Fatalf("citizen must not start work, got %v", err)
	}

	inc, err := move(env, id, domain.StateInProgress, domain.RoleResponder, 2)
	if err != nil {
		t.Fatalf("responder: %v", err)
	}
	if inc.State != domain.StateInProgress {
		t.Fatalf("unexpected state %s", inc.State)
	}
}

func TestLifecycleService_ClosedAndReopen(t *testing.T) {
	t.Parallel()
	env := newEnv()
	id := submitOne(t, env)

	if _, err := move(env, id, domain.StateClosed, domain.RoleDispatcher, 1); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := move(env, id, domain.StateInProgress, domain.RoleAdmin, 2); !errors.Is(err, e.ErrInvalidTransition) {
		t.Fatalf("closed -> in_progress must fail, got %v", err)
	}
	if _, err := move(env, id, domain.StateVerified, domain.RoleAdmin, 2); !errors.Is(err, e.ErrInvalidTransition) {
		t.Fatalf("closed -> verified without reopen must fail, got %v", err)
	}

	inc, err := env.lifecycle.Reopen(context.Background(), id, domain.RoleDispatcher, 2)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if inc.State != domain.StateVerified || inc.Version != 3 {
		t.Fatalf("unexpected reopened incident: %+v", inc)
	}
}

func TestLifecycleService_VersionConflict(t *testing.T) {
	t.Parallel()
	env := newEnv()
	id := submitOne(t, env)

	if _, err := move(env, id, domain.StateVerified, domain.RoleDispatcher, 1); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, err := move(env, id, domain.StateClosed, domain.RoleDispatcher, 1); !errors.Is(err, e.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestLifecycleService_ConcurrentTransitionsSingleWinner(t *testing.T) {
	t.Parallel()
	env := newEnv()
	id := submitOne(t, env)

	const racers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := domain.StateVerified
			if i%2 == 0 {
				target = domain.StateClosed
			}
			_, err := move(env, id, target, domain.RoleDispatcher, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, e.ErrVersionConflict), errors.Is(err, e.ErrInvalidTransition):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 || conflicts != racers-1 {
		t.Fatalf("wins=%d conflicts=%d", wins, conflicts)
	}
}

func TestLifecycleService_TransitionWithRetry(t *testing.T) {
	t.Parallel()
	env := newEnv()
	id := submitOne(t, env)

	// another report bumps the version behind the caller's back
	if _, err := env.reports.Submit(context.Background(), fireReport()); err != nil {
		t.Fatalf("merge: %v", err)
	}

	inc, err := env.lifecycle.TransitionWithRetry(context.Background(), id, domain.StateVerified, domain.RoleDispatcher, false)
	if err != nil {
		t.Fatalf("TransitionWithRetry: %v", err)
	}
	if inc.State != domain.StateVerified || inc.Version != 3 {
		t.Fatalf("unexpected incident: %+v", inc)
	}

	// zero expectedVersion goes through the retrying path too
	inc, err = env.lifecycle.Transition(context.Background(), id, domain.TransitionRequest{
		TargetState: domain.StateInProgress,
		ActorRole:   domain.RoleResponder,
	})
	if err != nil || inc.Version != 4 {
		t.Fatalf("transition without version: %+v err=%v", inc, err)
	}
}

func TestLifecycleService_RetryGivesUp(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mock_service.NewMockIncidentStore(ctrl)
	metrics := mock_service.NewMockMetrics(ctrl)
	id := uuid.New()
	current := &domain.Incident{ID: id, State: domain.StateReported, Version: 7}

	store.EXPECT().Get(gomock.Any(), id).Return(current, nil).AnyTimes()
	store.EXPECT().
		Update(gomock.Any(), id, int64(7), domain.EventStateChanged, gomock.Any()).
		Return(nil, e.ErrVersionConflict).
		Times(3)
	metrics.EXPECT().TransitionObserved(service.ResultConflict).Times(1)

	lifecycle := service.NewLifecycleService(store, nil, metrics, discardLogger(), 2)

	_, err := lifecycle.TransitionWithRetry(context.Background(), id, domain.StateVerified, domain.RoleAdmin, false)
	if !errors.Is(err, e.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestLifecycleService_NotFound(t *testing.T) {
	t.Parallel()
	env := newEnv()

	_, err := move(env, uuid.New(), domain.StateVerified, domain.RoleAdmin, 1)
	if !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
