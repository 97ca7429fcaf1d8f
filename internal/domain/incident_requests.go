package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubmitReportRequest is a raw report submission. It is never persisted on
// its own.
type SubmitReportRequest struct {
	Type           IncidentType `json:"type" validate:"required,incident_type"`
	Title          string       `json:"title" validate:"required,max=50"`
	Description    string       `json:"description" validate:"max=1000"`
	Location       *Location    `json:"location" validate:"required"`
	AccuracyMeters *float64     `json:"accuracyMeters,omitempty" validate:"omitempty,finite,gte=0"`
	Severity       Severity     `json:"severity,omitempty" validate:"omitempty,severity"`
	ReporterID     string       `json:"reporterId" validate:"required,max=128"`
	SubmittedAt    time.Time    `json:"submittedAt"`
}

type SubmitResult struct {
	IncidentID uuid.UUID `json:"incidentId"`
	Merged     bool      `json:"merged"`
	Incident   *Incident `json:"-"`
}

type TransitionRequest struct {
	TargetState     IncidentState `json:"targetState"`
	ActorRole       ActorRole     `json:"actorRole"`
	ExpectedVersion int64         `json:"expectedVersion"`
	Reopen          bool          `json:"reopen,omitempty"`
}

type SnapshotRequest struct {
	Box    BoundingBox
	States []IncidentState
}

type SnapshotResponse struct {
	Incidents    []Incident `json:"incidents"`
	AsOfSequence int64      `json:"asOfSequence"`
}

type ListIncidentsResponse struct {
	Incidents []Incident `json:"incidents"`
	Page      int        `json:"page"`
	Limit     int        `json:"limit"`
	Total     int64      `json:"total"`
}

type IncidentHistoryResponse struct {
	IncidentID uuid.UUID       `json:"incidentId"`
	Events     []IncidentEvent `json:"events"`
}
