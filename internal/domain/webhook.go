package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookPayload is posted to the push-notification gateway.
type WebhookPayload struct {
	Sequence   int64         `json:"sequence"`
	Kind       EventKind     `json:"kind"`
	IncidentID uuid.UUID     `json:"incidentId"`
	Type       IncidentType  `json:"type"`
	Title      string        `json:"title"`
	Severity   Severity      `json:"severity"`
	State      IncidentState `json:"state"`
	Lat        float64       `json:"lat"`
	Lng        float64       `json:"lng"`
	OccurredAt time.Time     `json:"occurredAt"`
}

func NewWebhookPayload(ev IncidentEvent) WebhookPayload {
	return WebhookPayload{
		Sequence:   ev.Sequence,
		Kind:       ev.Kind,
		IncidentID: ev.IncidentID,
		Type:       ev.Incident.Type,
		Title:      ev.Incident.Title,
		Severity:   ev.Incident.Severity,
		State:      ev.Incident.State,
		Lat:        ev.Incident.Location.Lat,
		Lng:        ev.Incident.Location.Lng,
		OccurredAt: ev.OccurredAt,
	}
}
