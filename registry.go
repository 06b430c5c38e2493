package permalink

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

type typeDesc struct {
	name       string
	parent     string
	embeddedIn string
	relation   string
	belongsTo  map[string]string
	fields     map[string]struct{}
	policy     *Policy
}

// TypeOption configures a type descriptor.
type TypeOption func(*typeDesc)

// Extends makes the type a subtype of parent. Subtypes share the slug namespace and
// inherit the slug declaration of their nearest declaring ancestor.
func Extends(parent string) TypeOption {
	return func(t *typeDesc) {
		t.parent = parent
	}
}

// EmbeddedIn marks records of the type as nested under parentType through relation.
func EmbeddedIn(parentType, relation string) TypeOption {
	return func(t *typeDesc) {
		t.embeddedIn = parentType
		t.relation = relation
	}
}

// BelongsTo declares an association backed by a foreign key field.
func BelongsTo(association, foreignKey string) TypeOption {
	return func(t *typeDesc) {
		t.belongsTo[association] = foreignKey
	}
}

// WithFields declares the known fields of the type.
// Types that declare fields get their slug source fields checked at declaration time.
func WithFields(fields ...string) TypeOption {
	return func(t *typeDesc) {
		for _, f := range fields {
			t.fields[f] = struct{}{}
		}
	}
}

// Registry holds type descriptors and their slug declarations.
// Define every type at startup; lookups are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	types  map[string]*typeDesc
	scopes map[scopeCacheKey]string
}

type scopeCacheKey struct {
	typ   string
	scope Scope
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types:  make(map[string]*typeDesc),
		scopes: make(map[scopeCacheKey]string),
	}
}

// DefineType registers a record type. A parent named with Extends must already exist.
func (r *Registry) DefineType(name string, opts ...TypeOption) error {
	if name == "" {
		return fmt.Errorf("%w: blank type name", ErrConfiguration)
	}

	t := &typeDesc{
		name:      name,
		belongsTo: make(map[string]string),
		fields:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[name]; exists {
		return fmt.Errorf("%w: type %q defined twice", ErrConfiguration, name)
	}
	if t.parent != "" {
		if _, ok := r.types[t.parent]; !ok {
			return errors.Join(ErrConfiguration, fmt.Errorf("%w: %q extends %q", ErrUnknownType, name, t.parent))
		}
	}
	if t.embeddedIn != "" && t.relation == "" {
		return fmt.Errorf("%w: type %q embedded without a relation", ErrConfiguration, name)
	}
	r.types[name] = t
	return nil
}

// DeclareSlug attaches a slug declaration to typeName.
func (r *Registry) DeclareSlug(typeName string, fields []string, opts ...Option) (*Policy, error) {
	p, err := Declare(fields, opts...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.types[typeName]
	if !ok {
		return nil, errors.Join(ErrConfiguration, fmt.Errorf("%w: %q", ErrUnknownType, typeName))
	}
	if known := r.knownFieldsLocked(typeName); len(known) > 0 {
		for _, f := range fields {
			if _, ok := known[f]; !ok {
				return nil, fmt.Errorf("%w: type %q has no field %q", ErrConfiguration, typeName, f)
			}
		}
	}
	t.policy = p
	return p, nil
}

// PolicyFor returns the slug declaration of typeName or of its nearest declaring ancestor.
func (r *Registry) PolicyFor(typeName string) (*Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.types[typeName]; !ok {
		return nil, errors.Join(ErrConfiguration, fmt.Errorf("%w: %q", ErrUnknownType, typeName))
	}
	for t := r.types[typeName]; t != nil; t = r.types[t.parent] {
		if t.policy != nil {
			return t.policy, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotDeclared, typeName)
}

// RootType returns the topmost ancestor of typeName.
func (r *Registry) RootType(typeName string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.types[typeName]; !ok {
		return "", errors.Join(ErrConfiguration, fmt.Errorf("%w: %q", ErrUnknownType, typeName))
	}
	return r.rootLocked(typeName), nil
}

// Namespace returns the types that share a slug namespace with typeName:
// its root type first, then every descendant of the root in name order.
func (r *Registry) Namespace(typeName string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.types[typeName]; !ok {
		return nil, errors.Join(ErrConfiguration, fmt.Errorf("%w: %q", ErrUnknownType, typeName))
	}
	return r.namespaceLocked(typeName), nil
}

// Types returns every registered type name in name order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.types))
	for name := range r.types {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// IsEmbedded reports whether records of typeName are nested in a parent, directly or through an ancestor.
func (r *Registry) IsEmbedded(typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, rel := r.embeddingLocked(typeName)
	return rel != ""
}

// ParentOf returns the record rec is embedded in and the relation holding it.
// The relation falls back to the declared one when the record does not report it.
func (r *Registry) ParentOf(rec Record) (Record, string, bool) {
	e, ok := rec.(Embedded)
	if !ok {
		return nil, "", false
	}
	parent, relation := e.Parent()
	if parent == nil {
		return nil, "", false
	}
	if relation == "" {
		r.mu.RLock()
		_, relation = r.embeddingLocked(rec.Type())
		r.mu.RUnlock()
	}
	return parent, relation, true
}

// AssociationField returns the foreign key backing association on typeName or an ancestor.
func (r *Registry) AssociationField(typeName, association string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for t := r.types[typeName]; t != nil; t = r.types[t.parent] {
		if fk, ok := t.belongsTo[association]; ok {
			return fk, true
		}
	}
	return "", false
}

// HasField reports whether typeName declares field. Types without declared fields accept any name.
func (r *Registry) HasField(typeName, field string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	known := r.knownFieldsLocked(typeName)
	if len(known) == 0 {
		return true
	}
	_, ok := known[field]
	return ok
}

func (r *Registry) rootLocked(typeName string) string {
	t := r.types[typeName]
	for t.parent != "" {
		t = r.types[t.parent]
	}
	return t.name
}

func (r *Registry) namespaceLocked(typeName string) []string {
	root := r.rootLocked(typeName)
	var rest []string
	for name := range r.types {
		if name != root && r.rootLocked(name) == root {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append([]string{root}, rest...)
}

func (r *Registry) embeddingLocked(typeName string) (string, string) {
	for t := r.types[typeName]; t != nil; t = r.types[t.parent] {
		if t.embeddedIn != "" {
			return t.embeddedIn, t.relation
		}
	}
	return "", ""
}

func (r *Registry) knownFieldsLocked(typeName string) map[string]struct{} {
	known := make(map[string]struct{})
	for t := r.types[typeName]; t != nil; t = r.types[t.parent] {
		for f := range t.fields {
			known[f] = struct{}{}
		}
		for _, fk := range t.belongsTo {
			known[fk] = struct{}{}
		}
	}
	return known
}
