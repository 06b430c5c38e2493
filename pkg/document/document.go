package document

import (
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/dmitrymomot/permalink"
	"github.com/dmitrymomot/permalink/pkg/id"
)

// Document is a schemaless record: a typed bag of named fields with change tracking.
// It is safe for concurrent use.
type Document struct {
	mu       sync.RWMutex
	id       string
	typ      string
	parent   *Document
	relation string
	fields   map[string]any
	saved    map[string]any
	isNew    bool
}

var (
	_ permalink.Record   = (*Document)(nil)
	_ permalink.Embedded = (*Document)(nil)
)

// New creates an unsaved top-level document with a fresh ULID.
func New(typ string, fields map[string]any) *Document {
	return &Document{
		id:     id.NewULID(),
		typ:    typ,
		fields: cloneFields(fields),
		saved:  map[string]any{},
		isNew:  true,
	}
}

// Embed creates an unsaved document nested under parent through relation.
func Embed(parent *Document, relation, typ string, fields map[string]any) *Document {
	d := New(typ, fields)
	d.parent = parent
	d.relation = relation
	return d
}

// Restore rebuilds a persisted document as loaded from storage.
// parent may be nil for top-level documents.
func Restore(docID, typ string, parent *Document, relation string, fields map[string]any) *Document {
	f := cloneFields(fields)
	return &Document{
		id:       docID,
		typ:      typ,
		parent:   parent,
		relation: relation,
		fields:   f,
		saved:    cloneFields(f),
	}
}

func (d *Document) ID() string   { return d.id }
func (d *Document) Type() string { return d.typ }

func (d *Document) IsNew() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isNew
}

// Changed reports whether field differs from its last persisted value.
func (d *Document) Changed(field string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return !reflect.DeepEqual(d.fields[field], d.saved[field])
}

func (d *Document) Get(field string) any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.fields[field]
}

// Persisted returns the value field held when the document was last stored.
func (d *Document) Persisted(field string) any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return cloneValue(d.saved[field])
}

// Set assigns field. A nil value removes it.
func (d *Document) Set(field string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if value == nil {
		delete(d.fields, field)
		return
	}
	d.fields[field] = cloneValue(value)
}

// Merge assigns every entry of fields.
func (d *Document) Merge(fields map[string]any) {
	for k, v := range fields {
		d.Set(k, v)
	}
}

// Parent returns the embedding document. The Record is nil for top-level documents.
func (d *Document) Parent() (permalink.Record, string) {
	if d.parent == nil {
		return nil, ""
	}
	return d.parent, d.relation
}

// ParentDocument returns the embedding document, or nil.
func (d *Document) ParentDocument() *Document { return d.parent }

// ParentID returns the id of the embedding document, or "".
func (d *Document) ParentID() string {
	if d.parent == nil {
		return ""
	}
	return d.parent.id
}

// Relation returns the relation the document is embedded through.
func (d *Document) Relation() string { return d.relation }

// Fields returns a copy of the current field values.
func (d *Document) Fields() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return cloneFields(d.fields)
}

// FieldNames returns the set field names in order.
func (d *Document) FieldNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Sorted(maps.Keys(d.fields))
}

// MarkPersisted records the current values as the persisted state.
func (d *Document) MarkPersisted() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.saved = cloneFields(d.fields)
	d.isNew = false
}

func cloneFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if v != nil {
			out[k] = cloneValue(v)
		}
	}
	return out
}

// cloneValue copies slices so later mutation of a caller's slice does not leak into the document.
func cloneValue(v any) any {
	switch s := v.(type) {
	case []string:
		return slices.Clone(s)
	case []any:
		return slices.Clone(s)
	default:
		return v
	}
}
