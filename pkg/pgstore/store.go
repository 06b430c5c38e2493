package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/permalink"
	"github.com/dmitrymomot/permalink/pkg/db"
	"github.com/dmitrymomot/permalink/pkg/document"
	"github.com/dmitrymomot/permalink/pkg/id"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	db.TxBeginner
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store keeps documents in Postgres. Fields live in a JSONB column; the slugs a
// document holds are mirrored into a claim table whose partial unique index
// enforces indexed policies.
type Store struct {
	db DB
}

var _ permalink.Store[*document.Document] = (*Store)(nil)

// New creates a store over an open pool. The tables must exist; see Migrate.
func New(conn DB) *Store {
	return &Store{db: conn}
}

// IsNativeID reports whether s is a ULID or UUID.
func (s *Store) IsNativeID(v string) bool {
	return id.IsNative(v)
}

// Save upserts doc and replaces its claims for claim.Field in one transaction.
// An indexed claim already held under the same scope fails with permalink.ErrConflict.
func (s *Store) Save(ctx context.Context, doc *document.Document, claim permalink.Claim) error {
	fields, err := json.Marshal(doc.Fields())
	if err != nil {
		return fmt.Errorf("pgstore: encode fields of %s: %w", doc.ID(), err)
	}

	err = db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertDocument, doc.ID(), doc.Type(), doc.ParentID(), doc.Relation(), string(fields)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, deleteClaims, doc.ID(), claim.Field); err != nil {
			return err
		}
		if len(claim.Slugs) == 0 {
			return nil
		}
		_, err := tx.Exec(ctx, insertClaims, doc.ID(), claim.Root.Key(), claim.Field, claim.Slugs, claim.Unique)
		return err
	})
	switch {
	case db.IsUniqueViolation(err, claimIndex):
		return errors.Join(permalink.ErrConflict, err)
	case err != nil:
		return fmt.Errorf("pgstore: save %s: %w", doc.ID(), err)
	}

	doc.MarkPersisted()
	return nil
}

// Insert upserts doc without touching its claims. It is meant for importing legacy data.
func (s *Store) Insert(ctx context.Context, doc *document.Document) error {
	fields, err := json.Marshal(doc.Fields())
	if err != nil {
		return fmt.Errorf("pgstore: encode fields of %s: %w", doc.ID(), err)
	}
	if _, err := s.db.Exec(ctx, upsertDocument, doc.ID(), doc.Type(), doc.ParentID(), doc.Relation(), string(fields)); err != nil {
		return fmt.Errorf("pgstore: insert %s: %w", doc.ID(), err)
	}
	doc.MarkPersisted()
	return nil
}

// Delete removes the document, its embedded documents and their claims.
func (s *Store) Delete(ctx context.Context, docID string) error {
	tag, err := s.db.Exec(ctx, deleteDocument, docID)
	if err != nil {
		return fmt.Errorf("pgstore: delete %s: %w", docID, err)
	}
	if tag.RowsAffected() == 0 {
		return permalink.ErrNotFound
	}
	return nil
}

// FindSlugs returns the slugs under root that match pattern, historical ones included.
func (s *Store) FindSlugs(ctx context.Context, root permalink.ScopeRoot, field string, pattern *regexp.Regexp, excludeID string) ([]string, error) {
	sql, args, err := findSlugsQuery(root, field, pattern.String(), excludeID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore: find slugs: %w", err)
	}
	slugs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("pgstore: find slugs: %w", err)
	}

	// Postgres and Go regexp dialects differ at the edges; Go has the last word.
	out := slugs[:0]
	for _, slug := range slugs {
		if pattern.MatchString(slug) {
			out = append(out, slug)
		}
	}
	return out, nil
}

// FindByID returns the document with docID under root.
func (s *Store) FindByID(ctx context.Context, root permalink.ScopeRoot, docID string) (*document.Document, error) {
	sql, args, err := findByIDQuery(root, docID)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, sql, args)
}

// FindBySlug returns the document under root holding slug in field, as its current
// slug or as a historical one. Ties go to the lowest id.
func (s *Store) FindBySlug(ctx context.Context, root permalink.ScopeRoot, field, slug string) (*document.Document, error) {
	sql, args, err := findBySlugQuery(root, field, slug)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, sql, args)
}

// Unslugged returns up to limit documents of the given types whose field holds no
// slug sequence: missing, empty, or a legacy string. Documents are ordered by id and
// start after afterID.
func (s *Store) Unslugged(ctx context.Context, types []string, field, afterID string, limit int) ([]*document.Document, error) {
	sql, args := unsluggedQuery(types, field, afterID, limit)
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore: unslugged: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("pgstore: unslugged: %w", err)
	}

	out := make([]*document.Document, 0, len(recs))
	for _, r := range recs {
		doc, err := s.restore(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (s *Store) findOne(ctx context.Context, sql string, args []any) (*document.Document, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore: query: %w", err)
	}
	r, err := pgx.CollectExactlyOneRow(rows, scanRecord)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, permalink.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("pgstore: query: %w", err)
	}
	return s.restore(ctx, r)
}

type record struct {
	id       string
	typ      string
	parentID string
	relation string
	fields   string
}

func scanRecord(row pgx.CollectableRow) (record, error) {
	var r record
	err := row.Scan(&r.id, &r.typ, &r.parentID, &r.relation, &r.fields)
	return r, err
}

// restore decodes r and loads its chain of parents.
func (s *Store) restore(ctx context.Context, r record) (*document.Document, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(r.fields), &fields); err != nil {
		return nil, fmt.Errorf("pgstore: decode fields of %s: %w", r.id, err)
	}

	var parent *document.Document
	if r.parentID != "" {
		rows, err := s.db.Query(ctx, selectDocuments+"\nWHERE d.id = $1", r.parentID)
		if err != nil {
			return nil, fmt.Errorf("pgstore: load parent of %s: %w", r.id, err)
		}
		pr, err := pgx.CollectExactlyOneRow(rows, scanRecord)
		if err != nil {
			return nil, fmt.Errorf("pgstore: load parent of %s: %w", r.id, err)
		}
		if parent, err = s.restore(ctx, pr); err != nil {
			return nil, err
		}
	}
	return document.Restore(r.id, r.typ, parent, r.relation, fields), nil
}
