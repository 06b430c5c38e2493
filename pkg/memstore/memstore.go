package memstore

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrymomot/permalink"
	"github.com/dmitrymomot/permalink/pkg/document"
	"github.com/dmitrymomot/permalink/pkg/id"
)

type entry struct {
	id       string
	typ      string
	parent   *document.Document
	relation string
	fields   map[string]any
	claims   []claimKey
}

func (e *entry) parentID() string {
	if e.parent == nil {
		return ""
	}
	return e.parent.ID()
}

type claimKey struct {
	scope string
	field string
	slug  string
}

// Store is an in-memory document store. It keeps a snapshot of every saved
// document and hands out fresh copies on lookup.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	claims  map[claimKey]string
}

var _ permalink.Store[*document.Document] = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		entries: make(map[string]*entry),
		claims:  make(map[claimKey]string),
	}
}

// IsNativeID reports whether s is a ULID or UUID.
func (s *Store) IsNativeID(v string) bool {
	return id.IsNative(v)
}

// Save stores a snapshot of doc and marks it persisted.
// Unique claims are checked against every other document; a slug held by another
// document under the same scope fails with permalink.ErrConflict.
func (s *Store) Save(ctx context.Context, doc *document.Document, claim permalink.Claim) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []claimKey
	if claim.Unique {
		scope := claim.Root.Key()
		for _, slug := range claim.Slugs {
			k := claimKey{scope: scope, field: claim.Field, slug: slug}
			if owner, ok := s.claims[k]; ok && owner != doc.ID() {
				return fmt.Errorf("memstore: %q in %s: %w", slug, scope, permalink.ErrConflict)
			}
			keys = append(keys, k)
		}
	}

	if old, ok := s.entries[doc.ID()]; ok {
		s.release(old)
	}
	for _, k := range keys {
		s.claims[k] = doc.ID()
	}
	s.entries[doc.ID()] = &entry{
		id:       doc.ID(),
		typ:      doc.Type(),
		parent:   doc.ParentDocument(),
		relation: doc.Relation(),
		fields:   doc.Fields(),
		claims:   keys,
	}
	doc.MarkPersisted()
	return nil
}

// Insert stores doc as is, without claims. It is meant for seeding legacy data.
func (s *Store) Insert(doc *document.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[doc.ID()]; ok {
		s.release(old)
	}
	s.entries[doc.ID()] = &entry{
		id:       doc.ID(),
		typ:      doc.Type(),
		parent:   doc.ParentDocument(),
		relation: doc.Relation(),
		fields:   doc.Fields(),
	}
	doc.MarkPersisted()
}

// Delete removes the document and its claims.
func (s *Store) Delete(ctx context.Context, docID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[docID]
	if !ok {
		return permalink.ErrNotFound
	}
	s.release(e)
	delete(s.entries, docID)
	return nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// FindSlugs returns the slugs under root that match pattern, historical ones included.
func (s *Store) FindSlugs(ctx context.Context, root permalink.ScopeRoot, field string, pattern *regexp.Regexp, excludeID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, e := range s.entries {
		if e.id == excludeID || !inRoot(e, root) {
			continue
		}
		slugs, _ := permalink.SlugsOf(e.fields[field])
		for _, slug := range slugs {
			if pattern.MatchString(slug) {
				out = append(out, slug)
			}
		}
	}
	return out, nil
}

// FindByID returns a copy of the document with docID under root.
func (s *Store) FindByID(ctx context.Context, root permalink.ScopeRoot, docID string) (*document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[docID]
	if !ok || !inRoot(e, root) {
		return nil, permalink.ErrNotFound
	}
	return e.restore(), nil
}

// FindBySlug returns a copy of the document under root holding slug in field,
// as its current slug or as a historical one.
func (s *Store) FindBySlug(ctx context.Context, root permalink.ScopeRoot, field, slug string) (*document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.sorted() {
		if !inRoot(e, root) {
			continue
		}
		slugs, _ := permalink.SlugsOf(e.fields[field])
		if slices.Contains(slugs, slug) {
			return e.restore(), nil
		}
	}
	return nil, permalink.ErrNotFound
}

// Unslugged returns up to limit documents of the given types whose field holds no
// slug sequence: missing, empty, or a legacy string. Documents are ordered by id and
// start after afterID.
func (s *Store) Unslugged(ctx context.Context, types []string, field, afterID string, limit int) ([]*document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*document.Document
	for _, e := range s.sorted() {
		if e.id <= afterID || !slices.Contains(types, e.typ) {
			continue
		}
		slugs, legacy := permalink.SlugsOf(e.fields[field])
		if len(slugs) > 0 && !legacy {
			continue
		}
		out = append(out, e.restore())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) release(e *entry) {
	for _, k := range e.claims {
		if s.claims[k] == e.id {
			delete(s.claims, k)
		}
	}
}

func (s *Store) sorted() []*entry {
	out := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *entry) int {
		return strings.Compare(a.id, b.id)
	})
	return out
}

func (e *entry) restore() *document.Document {
	return document.Restore(e.id, e.typ, e.parent, e.relation, e.fields)
}

func inRoot(e *entry, root permalink.ScopeRoot) bool {
	if root.Embedded {
		return e.parentID() == root.ParentID && e.relation == root.Relation
	}
	if e.parent != nil || !slices.Contains(root.Types, e.typ) {
		return false
	}
	if root.Scoped {
		return reflect.DeepEqual(e.fields[root.ReferenceField], root.ReferenceValue)
	}
	return true
}
