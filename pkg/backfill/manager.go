package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/permalink"
)

// Manager runs backfill jobs on a River queue and enqueues scheduled ones.
type Manager struct {
	pool   *pgxpool.Pool
	client *river.Client[pgx.Tx]
	logger *slog.Logger

	mu      sync.Mutex
	started bool
}

// NewManager creates a manager processing backfill jobs with runner.
// The River client is created immediately, so jobs can be enqueued before Start.
func NewManager[R permalink.Record](pool *pgxpool.Pool, runner *Runner[R], opts ...Option) (*Manager, error) {
	if pool == nil {
		return nil, ErrPoolRequired
	}
	if runner == nil {
		return nil, ErrRunnerRequired
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	periodic, err := periodicJobs(o)
	if err != nil {
		return nil, err
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &worker{run: runner.Run, logger: o.logger})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: o.maxWorkers},
		},
		Workers:      workers,
		PeriodicJobs: periodic,
		Logger:       o.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("backfill: create client: %w", err)
	}

	return &Manager{pool: pool, client: client, logger: o.logger}, nil
}

// MigrateQueue creates or upgrades the River tables in the database behind pool.
func MigrateQueue(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("backfill: create migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("backfill: migrate queue: %w", err)
	}
	return nil
}

// Enqueue schedules a backfill of typeName. It reports false when an
// unfinished backfill of the same type is already queued.
func (m *Manager) Enqueue(ctx context.Context, typeName string) (bool, error) {
	res, err := m.client.Insert(ctx, Args{Type: typeName}, nil)
	if err != nil {
		return false, fmt.Errorf("backfill: enqueue %q: %w", typeName, err)
	}
	return !res.UniqueSkippedAsDuplicate, nil
}

// Start begins processing jobs and firing schedules.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}
	if err := m.client.Start(ctx); err != nil {
		return fmt.Errorf("backfill: start client: %w", err)
	}
	m.started = true
	m.logger.Info("backfill manager started")
	return nil
}

// Stop waits for running jobs to finish, up to the deadline of ctx.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return ErrNotStarted
	}
	if err := m.client.Stop(ctx); err != nil {
		return fmt.Errorf("backfill: stop client: %w", err)
	}
	m.started = false
	m.logger.Info("backfill manager stopped")
	return nil
}

// Healthcheck verifies that the manager runs and its database answers.
func (m *Manager) Healthcheck(ctx context.Context) error {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()

	if !started {
		return errors.Join(ErrHealthcheckFailed, ErrNotStarted)
	}
	if err := m.pool.Ping(ctx); err != nil {
		return errors.Join(ErrHealthcheckFailed, err)
	}
	return nil
}

func periodicJobs(o *options) ([]*river.PeriodicJob, error) {
	var jobs []*river.PeriodicJob
	for _, s := range o.schedules {
		sched, err := parseSchedule(s.expr)
		if err != nil {
			return nil, err
		}
		for _, typeName := range s.types {
			jobs = append(jobs, river.NewPeriodicJob(
				sched,
				func() (river.JobArgs, *river.InsertOpts) {
					return Args{Type: typeName}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: o.runOnStart},
			))
		}
	}
	return jobs, nil
}

type cronSchedule struct {
	schedule cron.Schedule
}

func (c cronSchedule) Next(current time.Time) time.Time {
	return c.schedule.Next(current)
}

func parseSchedule(expr string) (river.PeriodicSchedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, errors.Join(ErrInvalidSchedule, fmt.Errorf("%q: %w", expr, err))
	}
	return cronSchedule{schedule: s}, nil
}
