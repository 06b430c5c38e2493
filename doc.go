// Package permalink derives unique, URL-safe slugs from record fields and keeps
// them unique among sibling records.
//
// A slug is declared per record type. The declaration names the source fields,
// the storage field, and how uniqueness is scoped:
//
//	reg := permalink.NewRegistry()
//	_ = reg.DefineType("book", permalink.BelongsTo("publisher", "publisher_id"))
//	_, _ = reg.DeclareSlug("book", []string{"title"},
//	    permalink.ScopedBy("publisher"),
//	    permalink.WithHistory(),
//	    permalink.Reserve("new", "edit"),
//	)
//
// The storage field holds an ordered sequence of slugs. The last element is the
// current slug; earlier elements are aliases kept when history is enabled.
//
// # Scopes
//
// Collisions are checked against a ScopeRoot:
//
//   - Embedded records (types declared with EmbeddedIn) are checked against
//     siblings under the same parent and relation. A declared scope is ignored.
//   - Scoped policies are checked against top-level records whose reference
//     field holds the same value. nil matches nil.
//   - Everything else is checked against the whole namespace: the topmost
//     ancestor type and all of its subtypes.
//
// Scopes naming an association resolve to the association's foreign key. An
// unresolvable scope fails with ErrConfiguration and ErrUnknownScope the first
// time a record is resolved.
//
// # Uniqueness
//
// The normalized candidate is the base. Sibling slugs matching Pattern(base)
// form the collision set; a base that is reserved or has the store's native ID
// syntax is added to it. An empty set yields base, otherwise base gets the
// highest suffix found plus one:
//
//	permalink.NextSlug("x", []string{"x", "x-1", "x-3"}) // "x-4"
//
// # Lifecycle
//
// Engine.Save runs the pre-persist hook and writes through a Store. The slug is
// built when the record is new, has no slug, had its slug assigned, or had a source
// field changed. Permanent slugs are built once. A non-empty slug assigned by the
// caller replaces the builder output and still goes through uniqueness resolution.
//
//	engine := permalink.New[*document.Document](reg, memstore.New())
//	doc := document.New("book", map[string]any{"title": "A Thousand Plateaus"})
//	if err := engine.Save(ctx, doc); err != nil {
//	    return err
//	}
//	slug, _ := engine.ToIdentifier(ctx, doc) // "a-thousand-plateaus"
//
// ToIdentifier builds and saves records that have no slug yet and upgrades
// legacy bare-string slugs to sequences.
//
// # Concurrency
//
// Resolution and write are separate steps. Two saves racing in the same scope can
// pick the same slug. WithLocker serializes them per scope; WithConflictRetries
// retries saves rejected by a store that enforces unique claims (Indexed policies).
//
// # Errors
//
// Configuration problems are reported with ErrConfiguration joined with a detail
// error. Store failures are joined with ErrStore and builder failures with ErrBuilder.
// Lookups of missing records return ErrNotFound.
package permalink
