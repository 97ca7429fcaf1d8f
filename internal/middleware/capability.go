package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

const (
	LocationCapabilityHeader = "X-Location-Capability"
	CapabilityGranted        = "granted"
)

// RequireLocationCapability rejects report submissions from clients that have
// not been granted location access. When required is false it is a no-op.
func RequireLocationCapability(required bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !required {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimSpace(r.Header.Get(LocationCapabilityHeader))
			if !strings.EqualFold(got, CapabilityGranted) {
				logger.Info("location capability missing",
					slog.String("remote", r.RemoteAddr),
					slog.String("capability", got),
				)
				writeError(w, http.StatusForbidden, "location capability required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
