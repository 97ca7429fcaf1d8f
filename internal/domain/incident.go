package domain

import (
	"time"

	"github.com/google/uuid"
)

type IncidentType string

const (
	TypeFire     IncidentType = "fire"
	TypeMedical  IncidentType = "medical"
	TypeSecurity IncidentType = "security"
	TypeRescue   IncidentType = "rescue"
	TypeFlood    IncidentType = "flood"
	TypeOther    IncidentType = "other"
)

var IncidentTypes = []IncidentType{TypeFire, TypeMedical, TypeSecurity, TypeRescue, TypeFlood, TypeOther}

func (t IncidentType) Valid() bool {
	for _, known := range IncidentTypes {
		if t == known {
			return true
		}
	}
	return false
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities low < medium < high. Unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

func (s Severity) Valid() bool { return s.Rank() > 0 }

func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// DefaultSeverity is used when the reporter does not suggest one.
func DefaultSeverity(t IncidentType) Severity {
	switch t {
	case TypeFire, TypeRescue, TypeFlood:
		return SeverityHigh
	case TypeMedical, TypeSecurity:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

type IncidentState string

const (
	StateReported   IncidentState = "reported"
	StateVerified   IncidentState = "verified"
	StateInProgress IncidentState = "in_progress"
	StateResolved   IncidentState = "resolved"
	StateClosed     IncidentState = "closed"
)

var IncidentStates = []IncidentState{StateReported, StateVerified, StateInProgress, StateResolved, StateClosed}

// OpenStates are the states in which an incident still absorbs duplicate reports.
var OpenStates = []IncidentState{StateReported, StateVerified, StateInProgress}

// VisibleStates is the default map filter: everything except closed.
var VisibleStates = []IncidentState{StateReported, StateVerified, StateInProgress, StateResolved}

func (s IncidentState) Valid() bool {
	for _, known := range IncidentStates {
		if s == known {
			return true
		}
	}
	return false
}

func (s IncidentState) IsOpen() bool {
	return s != StateResolved && s != StateClosed && s.Valid()
}

type Location struct {
	Lat float64 `json:"latitude" validate:"finite,lat"`
	Lng float64 `json:"longitude" validate:"finite,lng"`
}

type Incident struct {
	ID                uuid.UUID     `json:"id"`
	Type              IncidentType  `json:"type"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	Location          Location      `json:"location"`
	AccuracyMeters    *float64      `json:"accuracyMeters,omitempty"`
	Severity          Severity      `json:"severity"`
	State             IncidentState `json:"state"`
	ReporterID        string        `json:"reporterId"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
	ClusterKey        string        `json:"clusterKey"`
	MergedReportCount int           `json:"mergedReportCount"`
	Version           int64         `json:"version"`
}

func (i *Incident) Clone() *Incident {
	if i == nil {
		return nil
	}
	c := *i
	if i.AccuracyMeters != nil {
		acc := *i.AccuracyMeters
		c.AccuracyMeters = &acc
	}
	return &c
}

// Mutation changes an incident in place during a versioned update.
// Identity, authorship, creation time and cluster key are restored by the
// store after the mutation runs.
type Mutation func(inc *Incident) error
