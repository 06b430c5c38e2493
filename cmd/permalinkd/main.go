// Command permalinkd serves slugged documents over HTTP, backed by PostgreSQL.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dmitrymomot/permalink"
	"github.com/dmitrymomot/permalink/internal/httpapi"
	"github.com/dmitrymomot/permalink/internal/server"
	"github.com/dmitrymomot/permalink/middlewares"
	"github.com/dmitrymomot/permalink/pkg/backfill"
	"github.com/dmitrymomot/permalink/pkg/db"
	"github.com/dmitrymomot/permalink/pkg/document"
	"github.com/dmitrymomot/permalink/pkg/health"
	"github.com/dmitrymomot/permalink/pkg/lock"
	"github.com/dmitrymomot/permalink/pkg/logger"
	"github.com/dmitrymomot/permalink/pkg/pgstore"
	"github.com/dmitrymomot/permalink/pkg/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logger.New(cfg.Log, middlewares.RequestIDExtractor(), logger.ContextAttrs())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Flush(2 * time.Second)

	reg, err := permalink.LoadSchemaFile(cfg.SchemaPath)
	if err != nil {
		return err
	}

	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	shutdownHooks := []server.Hook{db.Shutdown(pool)}

	if err := pgstore.Migrate(ctx, pool, cfg.DB.MigrationsTable, log); err != nil {
		pool.Close()
		return err
	}
	if err := backfill.MigrateQueue(ctx, pool); err != nil {
		pool.Close()
		return err
	}

	checks := health.Checks{"postgres": db.Healthcheck(pool)}

	var locker permalink.Locker = lock.NewMemory()
	if cfg.Redis.Enabled() {
		client, err := redis.Open(ctx, cfg.Redis)
		if err != nil {
			pool.Close()
			return err
		}
		locker = lock.NewRedis(client)
		checks["redis"] = redis.Healthcheck(client)
		shutdownHooks = append(shutdownHooks, redis.Shutdown(client))
	}

	store := pgstore.New(pool)
	engine := permalink.New[*document.Document](reg, store,
		permalink.WithLogger(log),
		permalink.WithLocker(locker),
		permalink.WithConflictRetries(cfg.ConflictRetries),
	)

	manager, err := backfill.NewManager(pool,
		backfill.NewRunner(engine, store, backfillOptions(cfg.Backfill, nil, log)...),
		backfillOptions(cfg.Backfill, reg, log)...,
	)
	if err != nil {
		pool.Close()
		return err
	}
	checks["backfill"] = manager.Healthcheck

	handler := httpapi.New(engine,
		httpapi.WithLogger(log),
		httpapi.WithChecks(checks),
		httpapi.WithEnqueuer(manager),
		httpapi.WithRequestTimeout(cfg.RequestTimeout),
	)

	opts := []server.Option{
		server.Address(cfg.Address),
		server.Logger(log),
		server.ShutdownTimeout(cfg.ShutdownTimeout),
		server.StartupHook(manager.Start),
		server.ShutdownHook(manager.Stop),
	}
	for _, hook := range shutdownHooks {
		opts = append(opts, server.ShutdownHook(hook))
	}

	log.Info("permalinkd configured",
		slog.Any("types", reg.Types()),
		slog.Bool("redis_lock", cfg.Redis.Enabled()),
		slog.String("backfill_schedule", cfg.Backfill.Schedule),
	)
	return server.Run(handler, opts...)
}

// backfillOptions builds the runner options, plus the schedule when reg is set.
func backfillOptions(cfg backfillConfig, reg *permalink.Registry, log *slog.Logger) []backfill.Option {
	opts := []backfill.Option{
		backfill.WithLogger(log),
		backfill.WithBatchSize(cfg.BatchSize),
		backfill.WithConcurrency(cfg.Concurrency),
		backfill.WithMaxWorkers(cfg.MaxWorkers),
	}
	if reg == nil || cfg.Schedule == "" {
		return opts
	}

	types := cfg.Types
	if len(types) == 0 {
		types = declaredTypes(reg)
	}
	opts = append(opts, backfill.WithSchedule(cfg.Schedule, types...))
	if cfg.RunOnStart {
		opts = append(opts, backfill.WithRunOnStart())
	}
	return opts
}

// declaredTypes returns one type per slug declaration, so subtypes sharing a
// declaration are not backfilled twice.
func declaredTypes(reg *permalink.Registry) []string {
	var types []string
	seen := make(map[*permalink.Policy]struct{})
	for _, t := range reg.Types() {
		p, err := reg.PolicyFor(t)
		if err != nil {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		types = append(types, t)
	}
	return types
}
