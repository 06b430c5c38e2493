package health

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultTimeout = 5 * time.Second

	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc matches the Healthcheck closures of the db, redis and backfill packages.
type CheckFunc func(ctx context.Context) error

// Checks maps a dependency name to its probe.
type Checks map[string]CheckFunc

// Report is the aggregated result of one readiness probe.
type Report struct {
	Checks map[string]Check `json:"checks,omitempty"`
	Status string           `json:"status"`
}

// Err returns ErrCheckFailed joined with every failing check, or nil.
func (r *Report) Err() error {
	if r.Status == StatusHealthy {
		return nil
	}
	errs := []error{ErrCheckFailed}
	for name, c := range r.Checks {
		if c.err != nil {
			errs = append(errs, &CheckError{Name: name, Err: c.err})
		}
	}
	return errors.Join(errs...)
}

// Check is the outcome of a single probe.
type Check struct {
	err      error
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

// CheckError names the dependency that failed.
type CheckError struct {
	Name string
	Err  error
}

func (e *CheckError) Error() string { return e.Name + ": " + e.Err.Error() }
func (e *CheckError) Unwrap() error { return e.Err }

type config struct {
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures probe execution.
type Option func(*config)

// WithTimeout bounds every probe run. Defaults to 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger failing checks are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		timeout: defaultTimeout,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Run executes all checks concurrently under a shared deadline.
// A check still running when the deadline passes is reported as ErrCheckTimeout.
func Run(ctx context.Context, checks Checks, opts ...Option) *Report {
	cfg := newConfig(opts...)
	if len(checks) == 0 {
		return &Report{Status: StatusHealthy}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		report = &Report{Status: StatusHealthy, Checks: make(map[string]Check, len(checks))}
	)
	for name, check := range checks {
		wg.Go(func() {
			c := probe(ctx, check)
			if c.err != nil {
				cfg.logger.WarnContext(ctx, "health check failed",
					slog.String("check", name),
					slog.Any("error", c.err),
				)
			}

			mu.Lock()
			defer mu.Unlock()
			report.Checks[name] = c
			if c.err != nil {
				report.Status = StatusUnhealthy
			}
		})
	}
	wg.Wait()

	return report
}

func probe(ctx context.Context, check CheckFunc) Check {
	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- check(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = errors.Join(ErrCheckTimeout, err)
	}

	c := Check{Status: StatusHealthy, Duration: time.Since(start).Round(time.Millisecond).String(), err: err}
	if err != nil {
		c.Status = StatusUnhealthy
		c.Error = err.Error()
	}
	return c
}
