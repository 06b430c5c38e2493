// Package db wires PostgreSQL through pgx.
//
// Connect builds a pgxpool.Pool from Config, pinging it and retrying with
// linear backoff so the service survives a database that starts slower than it does:
//
//	var cfg db.Config
//	if err := env.Parse(&cfg); err != nil {
//	    return err
//	}
//	pool, err := db.Connect(ctx, cfg)
//
// Migrate runs goose migrations from any fs.FS, usually an embed.FS owned by the
// package that defines the tables:
//
//	err = db.Migrate(ctx, pool, pgstore.Migrations, "migrations", cfg.MigrationsTable, log)
//
// WithTx runs a function in a transaction, rolling back on error or panic.
// IsUniqueViolation recognizes SQLSTATE 23505 so callers can map it to their own
// conflict errors. Healthcheck and Shutdown return hooks for the server lifecycle.
package db
