package backfill

import (
	"log/slog"

	"github.com/dmitrymomot/permalink/pkg/logger"
)

const (
	defaultBatchSize   = 100
	defaultConcurrency = 4
	defaultMaxWorkers  = 2
)

type options struct {
	logger      *slog.Logger
	schedules   []schedule
	batchSize   int
	concurrency int
	maxWorkers  int
	runOnStart  bool
}

type schedule struct {
	expr  string
	types []string
}

func defaultOptions() *options {
	return &options{
		logger:      logger.NewNope(),
		batchSize:   defaultBatchSize,
		concurrency: defaultConcurrency,
		maxWorkers:  defaultMaxWorkers,
	}
}

// Option configures a Runner or a Manager.
type Option func(*options)

// WithLogger sets the logger for batch progress and failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithBatchSize sets how many records are loaded per page.
// Default: 100
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithConcurrency sets how many records of a page are materialized at once.
// Default: 4
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithMaxWorkers sets the number of backfill jobs the manager runs at once.
// Default: 2
func WithMaxWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxWorkers = n
		}
	}
}

// WithSchedule enqueues a backfill of each type on a 5-field cron expression.
//
//	backfill.WithSchedule("0 3 * * *", "book", "publisher") // daily at 03:00
func WithSchedule(expr string, types ...string) Option {
	return func(o *options) {
		o.schedules = append(o.schedules, schedule{expr: expr, types: types})
	}
}

// WithRunOnStart also runs scheduled backfills when the manager starts.
func WithRunOnStart() Option {
	return func(o *options) {
		o.runOnStart = true
	}
}
