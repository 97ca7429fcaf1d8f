package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"sosnet/internal/config"
	"sosnet/internal/domain"
	"sosnet/pkg/e"
)

func newTestSender(url string, q WebhookSource) *WebhookSender {
	s := NewWebhookSender(slog.New(slog.NewTextHandler(io.Discard, nil)), config.WebhookConfig{URL: url}, q, nil)
	s.backoff = time.Millisecond
	s.popTimeout = 10 * time.Millisecond
	return s
}

func TestWebhookSender_Send_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls int32
	var got domain.WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	p := domain.WebhookPayload{Sequence: 9, Kind: domain.EventCreated, IncidentID: uuid.New()}
	if err := newTestSender(srv.URL, nil).Send(context.Background(), p); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if got.Sequence != 9 || got.IncidentID != p.IncidentID {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestWebhookSender_Send_GivesUp(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newTestSender(srv.URL, nil).Send(context.Background(), domain.WebhookPayload{Sequence: 1})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

type chanSource chan domain.WebhookPayload

func (c chanSource) BRPop(ctx context.Context, timeout time.Duration) (domain.WebhookPayload, error) {
	select {
	case p := <-c:
		return p, nil
	case <-ctx.Done():
		return domain.WebhookPayload{}, ctx.Err()
	case <-time.After(timeout):
		return domain.WebhookPayload{}, e.ErrWebHookEmpty
	}
}

func TestWebhookSender_Run_DrainsQueue(t *testing.T) {
	t.Parallel()

	delivered := make(chan int64, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p domain.WebhookPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		delivered <- p.Sequence
	}))
	defer srv.Close()

	q := make(chanSource, 2)
	q <- domain.WebhookPayload{Sequence: 1}
	q <- domain.WebhookPayload{Sequence: 2}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newTestSender(srv.URL, q).Run(ctx) }()

	for want := int64(1); want <= 2; want++ {
		select {
		case got := <-delivered:
			if got != want {
				t.Fatalf("expected sequence %d, got %d", want, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("webhook %d not delivered", want)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
