package postgres

import (
	"context"
	"embed"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"sosnet/pkg/e"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	const op = "storage.pg.Migrate"

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return e.Wrap(op+".SetDialect", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		logger.Error("migrations failed", slog.String("op", op), slog.Any("error", err))
		return e.Wrap(op+".Up", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return e.Wrap(op+".GetDBVersion", err)
	}
	logger.Info("migrations applied", slog.Int64("version", version))
	return nil
}
