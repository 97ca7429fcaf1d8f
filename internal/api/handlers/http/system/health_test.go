package system

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestSystemHealth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	cases := []struct {
		name   string
		checks map[string]Pinger
		code   int
		status string
	}{
		{"no checks", nil, http.StatusOK, "ok"},
		{"all up", map[string]Pinger{"postgres": ok, "redis": ok}, http.StatusOK, "ok"},
		{"store down", map[string]Pinger{"postgres": down, "redis": ok}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			NewHandler(logger, tc.checks).SystemHealth(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

			if rr.Code != tc.code {
				t.Fatalf("expected %d got %d", tc.code, rr.Code)
			}
			var got healthResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if got.Status != tc.status {
				t.Fatalf("expected status %q got %q", tc.status, got.Status)
			}
		})
	}
}
