package incidents

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"sosnet/internal/domain"
	"sosnet/pkg/e"
)

const maxBodyBytes = 64 << 10

type errorBody struct {
	Error    string `json:"error,omitempty"`
	Field    string `json:"field,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	l := h.log(r).With(slog.String("method", r.Method), slog.String("path", r.URL.Path))

	var verr *e.ValidationError
	switch {
	case errors.As(err, &verr):
		l.Info("validation failed", slog.String("field", verr.Field), slog.String("reason", verr.Reason))
		h.writeJSON(w, http.StatusBadRequest, errorBody{Field: verr.Field, Reason: verr.Reason})
	case errors.Is(err, e.ErrNotFound):
		l.Info("not found", slog.Any("error", err))
		h.writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, e.ErrVersionConflict):
		l.Info("version conflict", slog.Any("error", err))
		h.writeJSON(w, http.StatusConflict, errorBody{Error: "version conflict"})
	case errors.Is(err, e.ErrInvalidTransition):
		l.Info("transition rejected", slog.Any("error", err))
		h.writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "invalid transition", Reason: err.Error()})
	case errors.Is(err, e.ErrInvalidInput):
		l.Info("invalid input", slog.Any("error", err))
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid input"})
	case errors.Is(err, e.ErrStoreUnavailable):
		l.Error("store unavailable", slog.Any("error", err))
		h.writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "store unavailable", Degraded: true})
	case errors.Is(err, e.ErrDeadline):
		l.Warn("deadline exceeded", slog.Any("error", err))
		h.writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: "deadline exceeded"})
	default:
		l.Error("handler error", slog.Any("error", err))
		h.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("json encode failed", slog.Any("error", err))
	}
}

// decodeStrict reads exactly one JSON object with no unknown fields.
func decodeStrict(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("trailing data after JSON object")
	}
	return nil
}

func parseSnapshotRequest(r *http.Request) (domain.SnapshotRequest, error) {
	q := r.URL.Query()
	box, err := domain.ParseBoundingBox(q.Get("bbox"))
	if err != nil {
		return domain.SnapshotRequest{}, err
	}
	states, err := domain.ParseStates(q.Get("state"))
	if err != nil {
		return domain.SnapshotRequest{}, err
	}
	return domain.SnapshotRequest{Box: box, States: states}, nil
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
