//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"sosnet/internal/domain"
	"sosnet/pkg/e"
)

var (
	testPool *pgxpool.Pool
	tc       testcontainers.Container
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	user := "postgres"
	pass := "postgres"
	db := "postgres"

	req := testcontainers.ContainerRequest{
		Image:        "postgis/postgis:16-3.4-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     user,
			"POSTGRES_PASSWORD": pass,
			"POSTGRES_DB":       db,
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(90 * time.Second),
	}

	var err error
	tc, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Println("cannot start container:", err)
		os.Exit(1)
	}

	host, _ := tc.Host(ctx)
	mappedPort, _ := tc.MappedPort(ctx, "5432/tcp")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, pass, host, mappedPort.Port(), db)

	testPool, err = pgxpool.New(ctx, dsn)
	if err != nil {
		fmt.Println("pgxpool.New:", err)
		_ = tc.Terminate(ctx)
		os.Exit(1)
	}

	if err := testPool.Ping(ctx); err != nil {
		fmt.Println("pool.Ping:", err)
		testPool.Close()
		_ = tc.Terminate(ctx)
		os.Exit(1)
	}

	if err := Migrate(ctx, testPool, discardLogger()); err != nil {
		fmt.Println("Migrate:", err)
		testPool.Close()
		_ = tc.Terminate(ctx)
		os.Exit(1)
	}

	code := m.Run()

	testPool.Close()
	_ = tc.Terminate(ctx)
	os.Exit(code)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func truncateAll(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(), `
		TRUNCATE TABLE incident_events, incidents;
		UPDATE event_sequence SET value = 0 WHERE id;
	`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func newStore() *IncidentStore {
	return NewIncidentStore(testPool, discardLogger(), nil)
}

func fire(lat, lng float64, key string) *domain.Incident {
	return &domain.Incident{
		Type:       domain.TypeFire,
		Title:      "Smoke over the ridge",
		Location:   domain.Location{Lat: lat, Lng: lng},
		Severity:   domain.SeverityHigh,
		ReporterID: "reporter-1",
		ClusterKey: key,
	}
}

func toState(s domain.IncidentState) domain.Mutation {
	return func(inc *domain.Incident) error {
		inc.State = s
		return nil
	}
}

func TestIncidentStore_Create_SetsDefaults(t *testing.T) {
	truncateAll(t)
	repo := newStore()

	inc := fire(55.75, 37.61, "fire:ucfv0j5:1")
	id, err := repo.Create(context.Background(), inc)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == uuid.Nil || inc.ID != id {
		t.Fatalf("expected ID set, got %s", id)
	}
	if inc.State != domain.StateReported || inc.Version != 1 || inc.MergedReportCount != 1 {
		t.Fatalf("unexpected defaults: %+v", inc)
	}

	got, err := repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Location != inc.Location {
		t.Fatalf("location mismatch got=%+v want=%+v", got.Location, inc.Location)
	}
	if got.ClusterKey != inc.ClusterKey || got.Severity != domain.SeverityHigh {
		t.Fatalf("unexpected row: %+v", got)
	}

	seq, err := repo.LastSequence(context.Background())
	if err != nil {
		t.Fatalf("LastSequence: %v", err)
	}
	if seq != 1 {
		t.Fatalf("expected sequence 1, got %d", seq)
	}
}

func TestIncidentStore_Create_DuplicateOpenClusterKey(t *testing.T) {
	truncateAll(t)
	repo := newStore()

	if _, err := repo.Create(context.Background(), fire(10, 20, "k")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := repo.Create(context.Background(), fire(10, 20, "k"))
	if !errors.Is(err, e.ErrUniqueViolation) {
		t.Fatalf("expected ErrUniqueViolation, got %v", err)
	}

	seq, _ := repo.LastSequence(context.Background())
	if seq != 1 {
		t.Fatalf("rolled back create must not consume a sequence, got %d", seq)
	}
}

func TestIncidentStore_Update_VersionConflict(t *testing.T) {
	truncateAll(t)
	repo := newStore()

	id, err := repo.Create(context.Background(), fire(10, 20, "k"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := repo.Update(context.Background(), id, 1, domain.EventStateChanged, toState(domain.StateVerified))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Version != 2 || updated.State != domain.StateVerified {
		t.Fatalf("unexpected updated row: %+v", updated)
	}

	_, err = repo.Update(context.Background(), id, 1, domain.EventStateChanged, toState(domain.StateClosed))
	if !errors.Is(err, e.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestIncidentStore_Update_ConcurrentSingleWinner(t *testing.T) {
	truncateAll(t)
	repo := newStore()

	id, err := repo.Create(context.Background(), fire(10, 20, "k"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(context.Background(), id, 1, domain.EventStateChanged, toState(domain.StateVerified))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, e.ErrVersionConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || conflicts != writers-1 {
		t.Fatalf("wins=%d conflicts=%d", wins, conflicts)
	}
}

func TestIncidentStore_Update_NotFound(t *testing.T) {
	truncateAll(t)
	repo := newStore()

	_, err := repo.Update(context.Background(), uuid.New(), 1, domain.EventUpdated, toState(domain.StateVerified))
	if !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestIncidentStore_ClusterKeyLifecycle(t *testing.T) {
	truncateAll(t)
	repo := newStore()
	ctx := context.Background()

	first, err := repo.Create(ctx, fire(10, 20, "k"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.Update(ctx, first, 1, domain.EventStateChanged, toState(domain.StateClosed)); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := repo.FindOpenByClusterKey(ctx, "k"); !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("closed incident must release key, got %v", err)
	}

	second, err := repo.Create(ctx, fire(10, 20, "k"))
	if err != nil {
		t.Fatalf("Create second: %v", err)
	}

	// reopening the first must not steal the key from the second
	if _, err := repo.Update(ctx, first, 2, domain.EventStateChanged, toState(domain.StateVerified)); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	holder, err := repo.FindOpenByClusterKey(ctx, "k")
	if err != nil {
		t.Fatalf("FindOpenByClusterKey: %v", err)
	}
	if holder.ID != second {
		t.Fatalf("expected %s to hold key, got %s", second, holder.ID)
	}
}

func TestIncidentStore_Snapshot_AntimeridianAndStates(t *testing.T) {
	truncateAll(t)
	repo := newStore()
	ctx := context.Background()

	east, _ := repo.Create(ctx, fire(0, 179.5, "a"))
	west, _ := repo.Create(ctx, fire(0, -179.5, "b"))
	_, _ = repo.Create(ctx, fire(0, 10, "c"))
	closed, _ := repo.Create(ctx, fire(0, 179.7, "d"))
	if _, err := repo.Update(ctx, closed, 1, domain.EventStateChanged, toState(domain.StateClosed)); err != nil {
		t.Fatalf("close: %v", err)
	}

	box := domain.BoundingBox{MinLat: -1, MinLng: 179, MaxLat: 1, MaxLng: -179}
	items, seq, err := repo.Snapshot(ctx, box, domain.OpenStates, 100)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if seq != 5 {
		t.Fatalf("expected asOfSequence 5, got %d", seq)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 incidents, got %d", len(items))
	}
	ids := map[uuid.UUID]bool{items[0].ID: true, items[1].ID: true}
	if !ids[east] || !ids[west] {
		t.Fatalf("unexpected snapshot: %+v", items)
	}
}

func TestIncidentStore_ListByReporter_Pagination(t *testing.T) {
	truncateAll(t)
	repo := newStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		inc := fire(10+float64(i), 20, fmt.Sprintf("k%d", i))
		inc.CreatedAt = time.Date(2025, 1, 1, 0, 0, i, 0, time.UTC)
		if _, err := repo.Create(ctx, inc); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	other := fire(1, 1, "x")
	other.ReporterID = "reporter-2"
	if _, err := repo.Create(ctx, other); err != nil {
		t.Fatalf("Create other: %v", err)
	}

	list1, total, err := repo.ListByReporter(ctx, "reporter-1", 1, 2)
	if err != nil {
		t.Fatalf("ListByReporter: %v", err)
	}
	if total != 3 || len(list1) != 2 {
		t.Fatalf("total=%d len=%d", total, len(list1))
	}
	if list1[0].CreatedAt.Before(list1[1].CreatedAt) {
		t.Fatalf("expected DESC order by created_at")
	}

	list2, _, err := repo.ListByReporter(ctx, "reporter-1", 2, 2)
	if err != nil {
		t.Fatalf("ListByReporter page2: %v", err)
	}
	if len(list2) != 1 {
		t.Fatalf("expected len=1 got=%d", len(list2))
	}
}

func TestIncidentStore_Events(t *testing.T) {
	truncateAll(t)
	repo := newStore()
	ctx := context.Background()

	id, _ := repo.Create(ctx, fire(10, 20, "k"))
	other, _ := repo.Create(ctx, fire(11, 21, "j"))
	if _, err := repo.Update(ctx, id, 1, domain.EventMerged, func(inc *domain.Incident) error {
		inc.MergedReportCount++
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	all, err := repo.EventsSince(ctx, 0, 10)
	if err != nil {
		t.Fatalf("EventsSince: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	for i, ev := range all {
		if ev.Sequence != int64(i+1) {
			t.Fatalf("event %d has sequence %d", i, ev.Sequence)
		}
	}
	if all[2].Kind != domain.EventMerged || all[2].Incident.MergedReportCount != 2 {
		t.Fatalf("unexpected merged event: %+v", all[2])
	}

	tail, err := repo.EventsSince(ctx, 2, 10)
	if err != nil || len(tail) != 1 {
		t.Fatalf("tail=%v err=%v", tail, err)
	}

	history, err := repo.EventsForIncident(ctx, other)
	if err != nil {
		t.Fatalf("EventsForIncident: %v", err)
	}
	if len(history) != 1 || history[0].Kind != domain.EventCreated {
		t.Fatalf("unexpected history: %+v", history)
	}

	if _, err := repo.EventsForIncident(ctx, uuid.New()); !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
