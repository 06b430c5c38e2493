package backfill

import "errors"

var (
	// ErrPoolRequired is returned when a manager is created without a database pool.
	ErrPoolRequired = errors.New("backfill: pool is required")

	// ErrRunnerRequired is returned when a manager is created without a runner.
	ErrRunnerRequired = errors.New("backfill: runner is required")

	// ErrInvalidSchedule is returned for a cron expression that does not parse.
	ErrInvalidSchedule = errors.New("backfill: invalid schedule")

	ErrAlreadyStarted    = errors.New("backfill: already started")
	ErrNotStarted        = errors.New("backfill: not started")
	ErrHealthcheckFailed = errors.New("backfill: healthcheck failed")
)
