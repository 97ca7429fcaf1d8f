package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sosnet/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const incidentColumns = `
	id,
	type,
	title,
	description,
	ST_Y(geo_point) AS lat,
	ST_X(geo_point) AS lng,
	accuracy_m,
	severity,
	state,
	reporter_id,
	cluster_key,
	dedup_key,
	merged_report_count,
	version,
	created_at,
	updated_at
`

type incidentRow struct {
	domain.Incident
	dedupKey *string
}

func scanIncident(row pgx.Row) (*incidentRow, error) {
	var r incidentRow
	err := row.Scan(
		&r.ID,
		&r.Type,
		&r.Title,
		&r.Description,
		&r.Location.Lat,
		&r.Location.Lng,
		&r.AccuracyMeters,
		&r.Severity,
		&r.State,
		&r.ReporterID,
		&r.ClusterKey,
		&r.dedupKey,
		&r.MergedReportCount,
		&r.Version,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

func collectIncidents(rows pgx.Rows) ([]domain.Incident, error) {
	defer rows.Close()

	out := make([]domain.Incident, 0, 16)
	for rows.Next() {
		r, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r.Incident)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// bboxFilter builds the WHERE fragment for a viewport and state filter,
// numbering placeholders from len(args)+1.
func bboxFilter(box domain.BoundingBox, states []domain.IncidentState, args []any) (string, []any) {
	var parts []string
	for _, b := range box.Split() {
		args = append(args, b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
		n := len(args)
		parts = append(parts, fmt.Sprintf(
			"ST_Intersects(geo_point, ST_MakeEnvelope($%d, $%d, $%d, $%d, 4326))", n-3, n-2, n-1, n))
	}
	where := "(" + parts[0]
	for _, p := range parts[1:] {
		where += " OR " + p
	}
	where += ")"

	if len(states) > 0 {
		names := make([]string, len(states))
		for i, s := range states {
			names[i] = string(s)
		}
		args = append(args, names)
		where += fmt.Sprintf(" AND state = ANY($%d)", len(args))
	}
	return where, args
}

func nextSequence(ctx context.Context, q querier) (int64, error) {
	var seq int64
	err := q.QueryRow(ctx, `UPDATE event_sequence SET value = value + 1 WHERE id RETURNING value`).Scan(&seq)
	return seq, err
}

func appendEvent(ctx context.Context, q querier, kind domain.EventKind, inc *domain.Incident) (int64, error) {
	seq, err := nextSequence(ctx, q)
	if err != nil {
		return 0, err
	}
	payload, err := json.Marshal(inc)
	if err != nil {
		return 0, err
	}
	const query = `
		INSERT INTO incident_events (sequence, incident_id, kind, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := q.Exec(ctx, query, seq, inc.ID, kind, payload, inc.UpdatedAt); err != nil {
		return 0, err
	}
	return seq, nil
}

func scanEvents(rows pgx.Rows) ([]domain.IncidentEvent, error) {
	defer rows.Close()

	var out []domain.IncidentEvent
	for rows.Next() {
		var (
			ev      domain.IncidentEvent
			id      uuid.UUID
			payload []byte
		)
		if err := rows.Scan(&ev.Sequence, &id, &ev.Kind, &payload, &ev.OccurredAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &ev.Incident); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", ev.Sequence, err)
		}
		ev.IncidentID = id
		ev.OccurredAt = ev.OccurredAt.UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
