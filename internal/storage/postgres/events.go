package postgres

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"sosnet/internal/domain"
	"sosnet/pkg/e"
)

const eventColumns = `sequence, incident_id, kind, payload, occurred_at`

func (p *IncidentStore) EventsSince(ctx context.Context, afterSeq int64, limit int) ([]domain.IncidentEvent, error) {
	const op = "postgres.Events.Since"

	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + eventColumns + ` FROM incident_events WHERE sequence > $1 ORDER BY sequence LIMIT $2`
	rows, err := p.pool.Query(ctx, query, afterSeq, limit)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	events, err := scanEvents(rows)
	if err != nil {
		p.logger.Error("rows scan failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	return events, nil
}

func (p *IncidentStore) EventsForIncident(ctx context.Context, id uuid.UUID) ([]domain.IncidentEvent, error) {
	const op = "postgres.Events.ForIncident"

	var exists bool
	if err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM incidents WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, e.WrapError(ctx, op, err)
	}
	if !exists {
		return nil, e.Wrap(op, e.ErrNotFound)
	}

	query := `SELECT ` + eventColumns + ` FROM incident_events WHERE incident_id = $1 ORDER BY sequence`
	rows, err := p.pool.Query(ctx, query, id)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	events, err := scanEvents(rows)
	if err != nil {
		return nil, e.WrapError(ctx, op, err)
	}
	return events, nil
}

func (p *IncidentStore) LastSequence(ctx context.Context) (int64, error) {
	const op = "postgres.Events.LastSequence"

	var seq int64
	if err := p.pool.QueryRow(ctx, `SELECT value FROM event_sequence WHERE id`).Scan(&seq); err != nil {
		return 0, e.WrapError(ctx, op, err)
	}
	return seq, nil
}
