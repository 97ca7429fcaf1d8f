package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestLimit_PerIP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := Limit(ctx, 0.001, 2, time.Minute, discard())(okHandler)

	call := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	for i := 0; i < 2; i++ {
		if code := call("10.0.0.1:5000"); code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204 got %d", i, code)
		}
	}
	if code := call("10.0.0.1:5001"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", code)
	}
	if code := call("10.0.0.2:5000"); code != http.StatusNoContent {
		t.Fatalf("other ip: expected 204 got %d", code)
	}
}

func TestRateLimiter_ForgetIdle(t *testing.T) {
	l := newRateLimiter(1, 1, time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.allow("10.0.0.1")
	now = now.Add(2 * time.Minute)
	l.allow("10.0.0.2")
	l.forgetIdle()

	if _, ok := l.visitors["10.0.0.1"]; ok {
		t.Fatal("idle visitor should be forgotten")
	}
	if _, ok := l.visitors["10.0.0.2"]; !ok {
		t.Fatal("recent visitor should be kept")
	}
}

func TestRequireLocationCapability(t *testing.T) {
	cases := []struct {
		name     string
		required bool
		header   string
		want     int
	}{
		{"not required", false, "", http.StatusNoContent},
		{"granted", true, "granted", http.StatusNoContent},
		{"granted any case", true, " Granted ", http.StatusNoContent},
		{"missing", true, "", http.StatusForbidden},
		{"denied", true, "denied", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := RequireLocationCapability(tc.required, discard())(okHandler)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", nil)
			if tc.header != "" {
				req.Header.Set(LocationCapabilityHeader, tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("expected %d got %d", tc.want, rr.Code)
			}
		})
	}
}
