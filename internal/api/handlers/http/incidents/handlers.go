package incidents

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"sosnet/internal/domain"
)

//go:generate mockgen -source=handlers.go -destination=mocks/mock.go
type Reports interface {
	Submit(ctx context.Context, req domain.SubmitReportRequest) (domain.SubmitResult, error)
}

type Lifecycle interface {
	Transition(ctx context.Context, id uuid.UUID, req domain.TransitionRequest) (*domain.Incident, error)
}

type Queries interface {
	Snapshot(ctx context.Context, req domain.SnapshotRequest) (domain.SnapshotResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error)
	History(ctx context.Context, id uuid.UUID) ([]domain.IncidentEvent, error)
	ListByReporter(ctx context.Context, reporterID string, page, limit int) ([]domain.Incident, int64, error)
}

type Handler struct {
	logger    *slog.Logger
	Reports   Reports
	Lifecycle Lifecycle
	Queries   Queries
}

func NewHandler(logger *slog.Logger, reports Reports, lifecycle Lifecycle, queries Queries) *Handler {
	return &Handler{
		logger:    logger,
		Reports:   reports,
		Lifecycle: lifecycle,
		Queries:   queries,
	}
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	reqID := chimw.GetReqID(r.Context())
	if reqID == "" {
		return h.logger
	}
	return h.logger.With(slog.String("request_id", reqID))
}

// SubmitReport answers 201 for a new incident and 409 when the report was
// folded into an open one.
func (h *Handler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("SubmitReport", slog.String("remote", r.RemoteAddr))

	var req domain.SubmitReportRequest
	if err := decodeStrict(r, &req); err != nil {
		l.Info("invalid JSON", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, errorBody{Field: "body", Reason: "invalid JSON"})
		return
	}

	res, err := h.Reports.Submit(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	if res.Merged {
		l.Info("report merged", slog.String("incident_id", res.IncidentID.String()))
		h.writeJSON(w, http.StatusConflict, map[string]string{"mergedInto": res.IncidentID.String()})
		return
	}

	l.Info("incident created", slog.String("incident_id", res.IncidentID.String()))
	h.writeJSON(w, http.StatusCreated, map[string]string{"incidentId": res.IncidentID.String()})
}

func (h *Handler) TransitionState(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("TransitionState", slog.String("remote", r.RemoteAddr))

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req domain.TransitionRequest
	if err := decodeStrict(r, &req); err != nil {
		l.Info("invalid JSON", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, errorBody{Field: "body", Reason: "invalid JSON"})
		return
	}

	inc, err := h.Lifecycle.Transition(r.Context(), id, req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("state changed",
		slog.String("incident_id", id.String()),
		slog.String("state", string(inc.State)),
		slog.Int64("version", inc.Version),
	)
	h.writeJSON(w, http.StatusOK, inc)
}

// Snapshot serves GET /incidents?bbox=&state=.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("Snapshot", slog.String("query", r.URL.RawQuery))

	req, err := parseSnapshotRequest(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp, err := h.Queries.Snapshot(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Debug("snapshot served",
		slog.Int("count", len(resp.Incidents)),
		slog.Int64("as_of_sequence", resp.AsOfSequence),
	)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	inc, err := h.Queries.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, inc)
}

func (h *Handler) IncidentEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	events, err := h.Queries.History(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, domain.IncidentHistoryResponse{IncidentID: id, Events: events})
}

func (h *Handler) ReporterIncidents(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("ReporterIncidents", slog.String("query", r.URL.RawQuery))

	reporterID := chi.URLParam(r, "reporterId")
	page := parseInt(r.URL.Query().Get("page"), 1)
	if page < 1 {
		page = 1
	}
	limit := parseInt(r.URL.Query().Get("limit"), 20)
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
		l.Debug("limit capped", slog.Int("limit", limit))
	}

	items, total, err := h.Queries.ListByReporter(r.Context(), reporterID, page, limit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.Incident{}
	}

	h.writeJSON(w, http.StatusOK, domain.ListIncidentsResponse{
		Incidents: items,
		Page:      page,
		Limit:     limit,
		Total:     total,
	})
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.log(r).Info("invalid id", slog.String("id", idStr))
		h.writeJSON(w, http.StatusBadRequest, errorBody{Field: "id", Reason: "must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}
