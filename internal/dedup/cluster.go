// Package dedup derives the cluster key used to fold near-duplicate reports
// into one incident and implements the merge rules.
package dedup

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mmcloughlin/geohash"

	"sosnet/internal/domain"
)

const (
	// DefaultPrecision gives geohash cells of roughly 153m x 153m.
	DefaultPrecision  uint = 7
	DefaultWindow          = 30 * time.Minute
	DescriptionLimit       = 1000
	descriptionSep         = "\n"
)

type Policy struct {
	Precision        uint
	Window           time.Duration
	DescriptionLimit int
}

func DefaultPolicy() Policy {
	return Policy{Precision: DefaultPrecision, Window: DefaultWindow, DescriptionLimit: DescriptionLimit}
}

// Normalized replaces unset fields with the defaults.
func (p Policy) Normalized() Policy {
	if p.Precision == 0 || p.Precision > 12 {
		p.Precision = DefaultPrecision
	}
	if p.Window <= 0 {
		p.Window = DefaultWindow
	}
	if p.DescriptionLimit <= 0 {
		p.DescriptionLimit = DescriptionLimit
	}
	return p
}

// Bucket floors t to the start of its dedup window in UTC.
func (p Policy) Bucket(t time.Time) time.Time {
	p = p.Normalized()
	return t.UTC().Truncate(p.Window)
}

// ClusterKey is (type, geohash cell, time bucket).
func (p Policy) ClusterKey(t domain.IncidentType, loc domain.Location, at time.Time) string {
	p = p.Normalized()
	cell := geohash.EncodeWithPrecision(loc.Lat, loc.Lng, p.Precision)
	return fmt.Sprintf("%s:%s:%d", t, cell, p.Bucket(at).Unix())
}

// Merge folds a duplicate report into an existing incident.
func (p Policy) Merge(inc *domain.Incident, req domain.SubmitReportRequest, severity domain.Severity) {
	p = p.Normalized()
	inc.MergedReportCount++
	inc.Description = AppendDescription(inc.Description, req.Description, p.DescriptionLimit)
	inc.Severity = domain.MaxSeverity(inc.Severity, severity)
}

// AppendDescription appends incoming to existing and drops the oldest
// characters when the result exceeds limit characters.
func AppendDescription(existing, incoming string, limit int) string {
	if incoming == "" {
		return existing
	}
	joined := incoming
	if existing != "" {
		joined = existing + descriptionSep + incoming
	}
	n := utf8.RuneCountInString(joined)
	if n <= limit {
		return joined
	}
	r := []rune(joined)
	return string(r[n-limit:])
}
