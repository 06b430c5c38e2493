package backfill

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// Kind is the River job kind of backfill jobs.
const Kind = "permalink:backfill"

// Args are the arguments of a backfill job.
type Args struct {
	Type string `json:"type"`
}

func (Args) Kind() string { return Kind }

// InsertOpts keeps at most one unfinished backfill per type in the queue.
func (Args) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
			ByState: []rivertype.JobState{
				rivertype.JobStateAvailable,
				rivertype.JobStatePending,
				rivertype.JobStateRetryable,
				rivertype.JobStateRunning,
				rivertype.JobStateScheduled,
			},
		},
	}
}

// runFunc runs one backfill for a type.
type runFunc func(ctx context.Context, typeName string) (Result, error)

type worker struct {
	river.WorkerDefaults[Args]
	run    runFunc
	logger *slog.Logger
}

func (w *worker) Work(ctx context.Context, job *river.Job[Args]) error {
	w.logger.DebugContext(ctx, "backfill started",
		slog.String("type", job.Args.Type),
		slog.Int64("job_id", job.ID),
		slog.Int("attempt", job.Attempt),
	)

	res, err := w.run(ctx, job.Args.Type)
	if err != nil {
		w.logger.ErrorContext(ctx, "backfill failed",
			slog.String("type", job.Args.Type),
			slog.Int64("job_id", job.ID),
			slog.Int("attempt", job.Attempt),
			slog.Int("materialized", res.Materialized),
			slog.Any("error", err),
		)
		return err
	}

	w.logger.InfoContext(ctx, "backfill completed",
		slog.String("type", job.Args.Type),
		slog.Int64("job_id", job.ID),
		slog.Int("materialized", res.Materialized),
		slog.Int("failed", res.Failed),
	)
	return nil
}
