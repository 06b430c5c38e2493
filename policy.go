package permalink

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrymomot/permalink/pkg/sanitizer"
	"github.com/dmitrymomot/permalink/pkg/slug"
)

// DefaultStorageField is the field that holds the slug sequence unless renamed with As.
const DefaultStorageField = "slug"

// Event tells the host lifecycle when the pre-persist hook must run.
type Event int

const (
	// EventSave runs the hook on every persist.
	EventSave Event = iota
	// EventCreate runs the hook only when a record is first persisted.
	EventCreate
)

func (e Event) String() string {
	if e == EventCreate {
		return "create"
	}
	return "save"
}

type scopeKind int

const (
	scopeNone scopeKind = iota
	scopeField
	scopeAssociation
	scopeAuto
)

// Scope names the reference that partitions the slug namespace.
type Scope struct {
	kind scopeKind
	name string
}

// ScopeField scopes uniqueness by a plain field.
func ScopeField(name string) Scope { return Scope{kind: scopeField, name: name} }

// ScopeAssociation scopes uniqueness by the foreign key backing an association.
func ScopeAssociation(name string) Scope { return Scope{kind: scopeAssociation, name: name} }

// ScopeName scopes by an association when one has that name, otherwise by the field.
func ScopeName(name string) Scope { return Scope{kind: scopeAuto, name: name} }

// IsZero reports whether no scope is set.
func (s Scope) IsZero() bool { return s.kind == scopeNone }

// Name returns the declared field or association name.
func (s Scope) Name() string { return s.name }

func (s Scope) String() string {
	switch s.kind {
	case scopeField:
		return "field:" + s.name
	case scopeAssociation:
		return "association:" + s.name
	case scopeAuto:
		return s.name
	}
	return ""
}

// Policy is an immutable slug declaration shared by a type and its subtypes.
type Policy struct {
	fields       []string
	storageField string
	history      bool
	permanent    bool
	indexed      bool
	stripMarkup  bool
	scope        Scope
	reserved     map[string]struct{}
	builder      Builder
	slugOptions  []slug.Option
}

// Declare validates a slug declaration over fields.
// fields feed the default builder in order; blank and repeated names are rejected.
func Declare(fields []string, opts ...Option) (*Policy, error) {
	if len(fields) == 0 {
		return nil, errors.Join(ErrConfiguration, ErrNoSourceFields)
	}

	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			return nil, fmt.Errorf("%w: blank source field", ErrConfiguration)
		}
		if _, dup := seen[f]; dup {
			return nil, fmt.Errorf("%w: source field %q repeated", ErrConfiguration, f)
		}
		seen[f] = struct{}{}
	}

	p := &Policy{
		fields:       append([]string(nil), fields...),
		storageField: DefaultStorageField,
		reserved:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	if strings.TrimSpace(p.storageField) == "" {
		return nil, fmt.Errorf("%w: blank storage field", ErrConfiguration)
	}
	if _, clash := seen[p.storageField]; clash {
		return nil, fmt.Errorf("%w: storage field %q is also a source field", ErrConfiguration, p.storageField)
	}
	if p.scope.kind != scopeNone && strings.TrimSpace(p.scope.name) == "" {
		return nil, errors.Join(ErrConfiguration, ErrUnknownScope)
	}
	if p.builder == nil {
		p.builder = JoinFields(p.fields...)
	}

	// Reserved words are compared against normalized bases.
	reserved := make(map[string]struct{}, len(p.reserved))
	for w := range p.reserved {
		if n := strings.ToLower(p.Normalize(w)); n != "" {
			reserved[n] = struct{}{}
		}
	}
	p.reserved = reserved
	return p, nil
}

// Fields returns the source fields in declaration order.
func (p *Policy) Fields() []string { return append([]string(nil), p.fields...) }

// StorageField returns the field holding the slug sequence.
func (p *Policy) StorageField() string { return p.storageField }

// Renamed reports whether the storage field differs from DefaultStorageField.
func (p *Policy) Renamed() bool { return p.storageField != DefaultStorageField }

func (p *Policy) History() bool   { return p.history }
func (p *Policy) Permanent() bool { return p.permanent }
func (p *Policy) Indexed() bool   { return p.indexed }
func (p *Policy) Scope() Scope    { return p.scope }

// Event returns EventCreate for permanent slugs and EventSave otherwise.
func (p *Policy) Event() Event {
	if p.permanent {
		return EventCreate
	}
	return EventSave
}

// Reserved reports whether s matches a reserved word after normalization.
// Matching is case-insensitive.
func (p *Policy) Reserved(s string) bool {
	_, ok := p.reserved[strings.ToLower(s)]
	return ok
}

// Candidate runs the builder. Builder failures are joined with ErrBuilder.
func (p *Policy) Candidate(rec Record) (string, error) {
	s, err := p.builder(rec)
	if err != nil {
		return "", errors.Join(ErrBuilder, err)
	}
	return s, nil
}

// Normalize turns a candidate into a slug base.
func (p *Policy) Normalize(candidate string) string {
	if p.stripMarkup {
		candidate = sanitizer.StripMarkup(candidate)
	}
	return slug.Make(candidate, p.slugOptions...)
}
