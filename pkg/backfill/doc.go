// Package backfill materializes slugs for records stored before their type
// declared one, or stored with a legacy bare-string slug.
//
// A Runner pages through a Source by id and calls ToIdentifier on each record,
// a few at a time. Records whose fields cannot produce a slug are logged and
// skipped; store errors end the run.
//
//	runner := backfill.NewRunner(engine, store, backfill.WithBatchSize(500))
//	res, err := runner.Run(ctx, "book")
//
// A Manager runs backfills as River jobs of kind "permalink:backfill" and can
// enqueue them on a cron schedule. At most one unfinished job per type is queued.
//
//	if err := backfill.MigrateQueue(ctx, pool); err != nil { ... }
//	m, err := backfill.NewManager(pool, runner,
//		backfill.WithSchedule("0 3 * * *", "book"),
//		backfill.WithLogger(log),
//	)
//	if err := m.Start(ctx); err != nil { ... }
//	defer m.Stop(context.Background())
package backfill
