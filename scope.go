package permalink

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ScopeRoot is the set of sibling records a slug must be unique within.
// Exactly one shape applies: embedded siblings under a parent, top-level records
// sharing a reference value, or the whole namespace.
type ScopeRoot struct {
	// Types is the namespace: the root type first, then its descendants.
	Types []string

	Embedded bool
	ParentID string
	Relation string

	Scoped         bool
	ReferenceField string
	ReferenceValue any
}

// Key returns a canonical string for the root, used for locks and uniqueness claims.
func (r ScopeRoot) Key() string {
	root := ""
	if len(r.Types) > 0 {
		root = r.Types[0]
	}
	switch {
	case r.Embedded:
		return "embedded:" + r.ParentID + ":" + r.Relation
	case r.Scoped:
		v, err := json.Marshal(r.ReferenceValue)
		if err != nil {
			v = []byte(fmt.Sprintf("%q", fmt.Sprint(r.ReferenceValue)))
		}
		return "scoped:" + root + ":" + r.ReferenceField + "=" + string(v)
	default:
		return "type:" + root
	}
}

func (r ScopeRoot) String() string {
	return r.Key() + " [" + strings.Join(r.Types, ",") + "]"
}

// ResolveRoot computes the collision root for rec under policy p.
// Embedded records are checked against siblings under the same parent and relation,
// whatever the policy scope. Otherwise a scoped policy narrows the namespace to records
// with the same reference value, nil matching nil.
func (r *Registry) ResolveRoot(rec Record, p *Policy) (ScopeRoot, error) {
	types, err := r.Namespace(rec.Type())
	if err != nil {
		return ScopeRoot{}, err
	}

	if r.IsEmbedded(rec.Type()) {
		if parent, relation, ok := r.ParentOf(rec); ok {
			return ScopeRoot{
				Types:    types,
				Embedded: true,
				ParentID: parent.ID(),
				Relation: relation,
			}, nil
		}
	}

	if !p.scope.IsZero() {
		field, err := r.scopeField(rec.Type(), p.scope)
		if err != nil {
			return ScopeRoot{}, err
		}
		return ScopeRoot{
			Types:          types,
			Scoped:         true,
			ReferenceField: field,
			ReferenceValue: rec.Get(field),
		}, nil
	}

	return ScopeRoot{Types: types}, nil
}

// RootOf returns the lookup root of a top-level type: its whole namespace.
func (r *Registry) RootOf(typeName string) (ScopeRoot, error) {
	types, err := r.Namespace(typeName)
	if err != nil {
		return ScopeRoot{}, err
	}
	return ScopeRoot{Types: types}, nil
}

func (r *Registry) scopeField(typeName string, s Scope) (string, error) {
	key := scopeCacheKey{typ: typeName, scope: s}

	r.mu.RLock()
	field, ok := r.scopes[key]
	r.mu.RUnlock()
	if ok {
		return field, nil
	}

	field, ok = r.lookupScope(typeName, s)
	if !ok {
		return "", errors.Join(ErrConfiguration, fmt.Errorf("%w: %q on type %q", ErrUnknownScope, s.name, typeName))
	}

	r.mu.Lock()
	r.scopes[key] = field
	r.mu.Unlock()
	return field, nil
}

func (r *Registry) lookupScope(typeName string, s Scope) (string, bool) {
	switch s.kind {
	case scopeAssociation:
		return r.AssociationField(typeName, s.name)
	case scopeField:
		return s.name, r.HasField(typeName, s.name)
	case scopeAuto:
		if fk, ok := r.AssociationField(typeName, s.name); ok {
			return fk, true
		}
		return s.name, r.HasField(typeName, s.name)
	}
	return "", false
}
