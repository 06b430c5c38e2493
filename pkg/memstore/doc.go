// Package memstore is an in-memory implementation of permalink.Store for
// document.Document records.
//
// It is intended for tests, local development, and small single-process
// deployments. Every Save stores a snapshot of the document's fields; lookups
// return fresh documents restored from those snapshots.
//
//	store := memstore.New()
//	engine := permalink.New[*document.Document](registry, store)
//
// When a claim is marked unique (the policy is Indexed), Save rejects slugs
// already held by another document under the same scope root with
// permalink.ErrConflict, which lets the engine retry resolution.
//
// Slug values are read in every accepted form: []string, []any of strings, and
// legacy bare strings.
package memstore
