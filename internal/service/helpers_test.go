package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sosnet/internal/dedup"
	"sosnet/internal/domain"
	"sosnet/internal/service"
	"sosnet/internal/storage/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *recordingNotifier) Notify(_ context.Context, _ uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
}

func (n *recordingNotifier) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

type env struct {
	clock     *clock
	store     *memory.Store
	notifier  *recordingNotifier
	reports   *service.ReportService
	lifecycle *service.LifecycleService
	query     *service.QueryGateway
}

func newEnv() *env {
	c := newClock()
	store := memory.NewStore(c.Now)
	n := &recordingNotifier{}
	logger := discardLogger()
	return &env{
		clock:    c,
		store:    store,
		notifier: n,
		reports: service.NewReportService(store, nil, n, nil, logger, service.ReportOptions{
			Policy: dedup.DefaultPolicy(),
			// every lost race means another submission won, so this
			// bounds the worst case for the concurrency tests
			MaxRetries: 64,
			Now:        c.Now,
		}),
		lifecycle: service.NewLifecycleService(store, n, nil, logger, 3),
		query:     service.NewQueryGateway(store, logger, 500),
	}
}

func fireReport() domain.SubmitReportRequest {
	return domain.SubmitReportRequest{
		Type:        domain.TypeFire,
		Title:       "Kitchen fire",
		Description: "smoke from the 3rd floor",
		Location:    &domain.Location{Lat: 37.78825, Lng: -122.4324},
		ReporterID:  "citizen-1",
	}
}
