package main

import (
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dmitrymomot/permalink/pkg/db"
	"github.com/dmitrymomot/permalink/pkg/logger"
	"github.com/dmitrymomot/permalink/pkg/redis"
)

type config struct {
	Address         string        `env:"HTTP_ADDRESS" envDefault:":8080"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// YAML file declaring record types and their slugs.
	SchemaPath      string `env:"PERMALINK_SCHEMA,required"`
	ConflictRetries int    `env:"PERMALINK_CONFLICT_RETRIES" envDefault:"3"`

	Backfill backfillConfig
	Log      logger.Config
	DB       db.Config
	Redis    redis.Config
}

type backfillConfig struct {
	// 5-field cron expression. Empty disables scheduled backfills.
	Schedule string `env:"BACKFILL_SCHEDULE"`
	// Types to backfill on schedule. Empty means every declared type.
	Types       []string `env:"BACKFILL_TYPES" envSeparator:","`
	RunOnStart  bool     `env:"BACKFILL_RUN_ON_START"`
	BatchSize   int      `env:"BACKFILL_BATCH_SIZE" envDefault:"100"`
	Concurrency int      `env:"BACKFILL_CONCURRENCY" envDefault:"4"`
	MaxWorkers  int      `env:"BACKFILL_MAX_WORKERS" envDefault:"2"`
}

func loadConfig() (config, error) {
	return env.ParseAs[config]()
}
