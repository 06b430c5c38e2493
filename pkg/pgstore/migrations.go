package pgstore

import (
	"context"
	"embed"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/permalink/pkg/db"
)

// Migrations holds the goose migrations creating the store tables.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations holding the SQL files.
const MigrationsDir = "migrations"

// Migrate applies Migrations to pool, tracking versions in table.
func Migrate(ctx context.Context, pool *pgxpool.Pool, table string, log *slog.Logger) error {
	return db.Migrate(ctx, pool, Migrations, MigrationsDir, table, log)
}
