// Package pgstore is a Postgres implementation of permalink.Store for
// [document.Document] records.
//
// Documents live in permalink_documents with their fields in a JSONB column.
// Embedded documents are rows pointing at their parent through parent_id and
// relation. The slug field is a JSON array; a bare string is accepted as a
// legacy value and read as a one-element sequence.
//
// Every Save mirrors the document's slugs into permalink_slugs keyed by the
// scope key of the claim. Claims of indexed policies are covered by a partial
// unique index, so two documents cannot hold the same slug under one scope;
// the losing write fails with permalink.ErrConflict.
//
// Apply the embedded migrations before use:
//
//	pool, err := db.Connect(ctx, cfg)
//	if err := pgstore.Migrate(ctx, pool, cfg.MigrationsTable, log); err != nil { ... }
//	engine := permalink.New[*document.Document](registry, pgstore.New(pool))
package pgstore
