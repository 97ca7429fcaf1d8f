package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventCreated      EventKind = "created"
	EventUpdated      EventKind = "updated"
	EventMerged       EventKind = "merged"
	EventStateChanged EventKind = "stateChanged"
)

// IncidentEvent is one entry of the store's append-only event log. Sequence
// is global and strictly increasing, so it is also strictly increasing per
// incident.
type IncidentEvent struct {
	Sequence   int64     `json:"sequence"`
	IncidentID uuid.UUID `json:"incidentId"`
	Kind       EventKind `json:"kind"`
	Incident   Incident  `json:"incident"`
	OccurredAt time.Time `json:"occurredAt"`
}
