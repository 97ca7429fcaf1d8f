package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sosnet/internal/domain"
	"sosnet/pkg/e"
)

// IncidentStore persists incidents and their event log in PostGIS.
type IncidentStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

func NewIncidentStore(pool *pgxpool.Pool, logger *slog.Logger, now func() time.Time) *IncidentStore {
	if now == nil {
		now = time.Now
	}
	return &IncidentStore{pool: pool, logger: logger, now: now}
}

func (p *IncidentStore) Create(ctx context.Context, incident *domain.Incident) (uuid.UUID, error) {
	const op = "postgres.Incident.Create"

	if incident == nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, e.ErrInvalidInput)
	}

	if incident.ID == uuid.Nil {
		incident.ID = uuid.New()
	}
	if incident.State == "" {
		incident.State = domain.StateReported
	}
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = p.now().UTC()
	}
	incident.UpdatedAt = incident.CreatedAt
	incident.Version = 1
	if incident.MergedReportCount < 1 {
		incident.MergedReportCount = 1
	}

	var dedupKey *string
	if incident.ClusterKey != "" && incident.State.IsOpen() {
		k := incident.ClusterKey
		dedupKey = &k
	}

	const query = `
		INSERT INTO incidents (
			id, type, title, description, geo_point, accuracy_m, severity, state,
			reporter_id, cluster_key, dedup_key, merged_report_count, version,
			created_at, updated_at
		)
		VALUES (
			$1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326), $7, $8, $9,
			$10, $11, $12, $13, $14, $15, $16
		)
	`

	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, query,
			incident.ID,
			incident.Type,
			incident.Title,
			incident.Description,
			incident.Location.Lng,
			incident.Location.Lat,
			incident.AccuracyMeters,
			incident.Severity,
			incident.State,
			incident.ReporterID,
			incident.ClusterKey,
			dedupKey,
			incident.MergedReportCount,
			incident.Version,
			incident.CreatedAt,
			incident.UpdatedAt,
		); err != nil {
			return err
		}
		_, err := appendEvent(ctx, tx, domain.EventCreated, incident)
		return err
	})
	if err != nil {
		wrapped := e.WrapError(ctx, op, err)
		if errors.Is(wrapped, e.ErrUniqueViolation) {
			p.logger.Debug("cluster key already held", slog.String("op", op), slog.String("cluster_key", incident.ClusterKey))
		} else {
			p.logger.Error("db insert failed", slog.String("op", op), slog.Any("error", err))
		}
		return uuid.Nil, wrapped
	}

	return incident.ID, nil
}

func (p *IncidentStore) Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error) {
	const op = "postgres.Incident.Get"

	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`

	r, err := scanIncident(p.pool.QueryRow(ctx, query, id))
	if err != nil {
		if !isNoRows(err) {
			p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		}
		return nil, e.WrapError(ctx, op, err)
	}
	return &r.Incident, nil
}

func (p *IncidentStore) Update(ctx context.Context, id uuid.UUID, expectedVersion int64, kind domain.EventKind, mutate domain.Mutation) (*domain.Incident, error) {
	const op = "postgres.Incident.Update"

	var result *domain.Incident
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		current, err := scanIncident(tx.QueryRow(ctx,
			`SELECT `+incidentColumns+` FROM incidents WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return fmt.Errorf("expected version %d, have %d: %w", expectedVersion, current.Version, e.ErrVersionConflict)
		}

		next := current.Incident.Clone()
		if err := mutate(next); err != nil {
			return err
		}
		next.ID = current.ID
		next.ReporterID = current.ReporterID
		next.CreatedAt = current.CreatedAt
		next.ClusterKey = current.ClusterKey
		next.Version = current.Version + 1
		next.UpdatedAt = p.now().UTC()
		if next.UpdatedAt.Before(current.UpdatedAt) {
			next.UpdatedAt = current.UpdatedAt
		}

		dedupKey, err := nextDedupKey(ctx, tx, current, next)
		if err != nil {
			return err
		}

		const query = `
			UPDATE incidents
			SET title = $3,
			    description = $4,
			    geo_point = ST_SetSRID(ST_MakePoint($5, $6), 4326),
			    accuracy_m = $7,
			    severity = $8,
			    state = $9,
			    dedup_key = $10,
			    merged_report_count = $11,
			    version = $12,
			    updated_at = $13,
			    type = $14
			WHERE id = $1 AND version = $2
		`
		tag, err := tx.Exec(ctx, query,
			id,
			expectedVersion,
			next.Title,
			next.Description,
			next.Location.Lng,
			next.Location.Lat,
			next.AccuracyMeters,
			next.Severity,
			next.State,
			dedupKey,
			next.MergedReportCount,
			next.Version,
			next.UpdatedAt,
			next.Type,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return e.ErrVersionConflict
		}

		if _, err := appendEvent(ctx, tx, kind, next); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, e.ErrVersionConflict):
			return nil, fmt.Errorf("%s: %w", op, err)
		case errors.Is(err, e.ErrInvalidTransition), errors.Is(err, e.ErrValidation):
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		wrapped := e.WrapError(ctx, op, err)
		if errors.Is(wrapped, e.ErrUniqueViolation) {
			// another incident took the cluster key between our read and write
			return nil, fmt.Errorf("%s: %w", op, e.ErrVersionConflict)
		}
		if !errors.Is(wrapped, e.ErrNotFound) {
			p.logger.Error("db update failed", slog.String("op", op), slog.Any("error", err))
		}
		return nil, wrapped
	}

	return result, nil
}

// nextDedupKey keeps at most one open incident per cluster key. A reopened
// incident only takes the key back when no other open incident holds it.
func nextDedupKey(ctx context.Context, q querier, prev *incidentRow, next *domain.Incident) (*string, error) {
	if next.ClusterKey == "" || !next.State.IsOpen() {
		return nil, nil
	}
	if prev.dedupKey != nil {
		return prev.dedupKey, nil
	}

	var taken bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM incidents WHERE dedup_key = $1)`, next.ClusterKey).Scan(&taken)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, nil
	}
	k := next.ClusterKey
	return &k, nil
}

func (p *IncidentStore) FindOpenByClusterKey(ctx context.Context, key string) (*domain.Incident, error) {
	const op = "postgres.Incident.FindOpenByClusterKey"

	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE dedup_key = $1`

	r, err := scanIncident(p.pool.QueryRow(ctx, query, key))
	if err != nil {
		if !isNoRows(err) {
			p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		}
		return nil, e.WrapError(ctx, op, err)
	}
	return &r.Incident, nil
}

func (p *IncidentStore) QueryByBoundingBox(ctx context.Context, box domain.BoundingBox, states []domain.IncidentState) ([]domain.Incident, error) {
	const op = "postgres.Incident.QueryByBoundingBox"

	items, err := queryBox(ctx, p.pool, box, states, 0)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	return items, nil
}

// Snapshot reads the incidents and the event-log position from one
// REPEATABLE READ transaction so asOfSequence matches the rows returned.
func (p *IncidentStore) Snapshot(ctx context.Context, box domain.BoundingBox, states []domain.IncidentState, limit int) ([]domain.Incident, int64, error) {
	const op = "postgres.Incident.Snapshot"

	var (
		items []domain.Incident
		seq   int64
	)
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := pgx.BeginTxFunc(ctx, p.pool, opts, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT value FROM event_sequence WHERE id`).Scan(&seq); err != nil {
			return err
		}
		var err error
		items, err = queryBox(ctx, tx, box, states, limit)
		return err
	})
	if err != nil {
		p.logger.Error("db snapshot failed", slog.String("op", op), slog.Any("error", err))
		return nil, 0, e.WrapError(ctx, op, err)
	}
	return items, seq, nil
}

func queryBox(ctx context.Context, q querier, box domain.BoundingBox, states []domain.IncidentState, limit int) ([]domain.Incident, error) {
	where, args := bboxFilter(box, states, nil)
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE ` + where + ` ORDER BY created_at DESC, id`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectIncidents(rows)
}

func (p *IncidentStore) ListByReporter(ctx context.Context, reporterID string, page, limit int) ([]domain.Incident, int64, error) {
	const op = "postgres.Incident.ListByReporter"

	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	var total int64
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM incidents WHERE reporter_id = $1`, reporterID).Scan(&total); err != nil {
		p.logger.Error("db count failed", slog.String("op", op), slog.Any("error", err))
		return nil, 0, e.WrapError(ctx, op, err)
	}

	query := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE reporter_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`
	rows, err := p.pool.Query(ctx, query, reporterID, limit, offset)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, 0, e.WrapError(ctx, op, err)
	}
	items, err := collectIncidents(rows)
	if err != nil {
		p.logger.Error("rows scan failed", slog.String("op", op), slog.Any("error", err))
		return nil, 0, e.WrapError(ctx, op, err)
	}

	return items, total, nil
}
