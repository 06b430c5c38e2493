package backfill

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/permalink"
)

// Source pages through records whose slug field holds no sequence:
// missing, empty, or a legacy string. Pages are ordered by id and start after afterID.
type Source[R permalink.Record] interface {
	Unslugged(ctx context.Context, types []string, field, afterID string, limit int) ([]R, error)
}

// Result counts the records a run touched.
type Result struct {
	Materialized int
	// Failed counts records whose slug could not be built from their fields.
	Failed int
}

// Runner materializes missing and legacy slugs through the engine.
type Runner[R permalink.Record] struct {
	engine *permalink.Engine[R]
	source Source[R]
	opts   *options
}

// NewRunner creates a runner. Only WithLogger, WithBatchSize and WithConcurrency apply.
func NewRunner[R permalink.Record](engine *permalink.Engine[R], source Source[R], opts ...Option) *Runner[R] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Runner[R]{engine: engine, source: source, opts: o}
}

// Run materializes the slugs of every record governed by the declaration that
// typeName uses, subtypes inheriting it included.
// Build failures are logged and counted; store failures stop the run.
func (r *Runner[R]) Run(ctx context.Context, typeName string) (Result, error) {
	reg := r.engine.Registry()
	p, err := reg.PolicyFor(typeName)
	if err != nil {
		return Result{}, err
	}
	types := r.governedBy(p)

	var materialized, failed atomic.Int64
	after := ""
	for {
		batch, err := r.source.Unslugged(ctx, types, p.StorageField(), after, r.opts.batchSize)
		if err != nil {
			return r.result(&materialized, &failed), errors.Join(permalink.ErrStore, err)
		}
		if len(batch) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.opts.concurrency)
		for _, rec := range batch {
			g.Go(func() error {
				_, err := r.engine.ToIdentifier(gctx, rec)
				switch {
				case err == nil:
					materialized.Add(1)
					return nil
				case errors.Is(err, permalink.ErrBuilder):
					failed.Add(1)
					r.opts.logger.WarnContext(gctx, "slug not buildable",
						slog.String("type", rec.Type()),
						slog.String("id", rec.ID()),
						slog.Any("error", err),
					)
					return nil
				default:
					return err
				}
			})
		}
		if err := g.Wait(); err != nil {
			return r.result(&materialized, &failed), err
		}

		r.opts.logger.DebugContext(ctx, "backfill batch done",
			slog.String("type", typeName),
			slog.Int("size", len(batch)),
			slog.Int64("materialized", materialized.Load()),
		)
		after = batch[len(batch)-1].ID()
		if len(batch) < r.opts.batchSize {
			break
		}
	}
	return r.result(&materialized, &failed), nil
}

func (r *Runner[R]) governedBy(p *permalink.Policy) []string {
	reg := r.engine.Registry()
	var types []string
	for _, t := range reg.Types() {
		if tp, err := reg.PolicyFor(t); err == nil && tp == p {
			types = append(types, t)
		}
	}
	return types
}

func (r *Runner[R]) result(materialized, failed *atomic.Int64) Result {
	return Result{Materialized: int(materialized.Load()), Failed: int(failed.Load())}
}
