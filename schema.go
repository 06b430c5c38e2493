package permalink

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/permalink/pkg/slug"
)

// Schema is the file form of a Registry.
type Schema struct {
	Types []TypeSchema `yaml:"types"`
}

// TypeSchema declares one record type.
type TypeSchema struct {
	Name       string            `yaml:"name"`
	Extends    string            `yaml:"extends,omitempty"`
	Fields     []string          `yaml:"fields,omitempty"`
	EmbeddedIn *EmbeddingSchema  `yaml:"embedded_in,omitempty"`
	BelongsTo  map[string]string `yaml:"belongs_to,omitempty"`
	Slug       *SlugSchema       `yaml:"slug,omitempty"`
}

// EmbeddingSchema names the parent type and the relation holding embedded records.
type EmbeddingSchema struct {
	Type     string `yaml:"type"`
	Relation string `yaml:"relation"`
}

// SlugSchema is the file form of a slug declaration.
// Scope is resolved association first, then field; ScopeField and ScopeAssociation pin the kind.
type SlugSchema struct {
	Fields           []string `yaml:"fields"`
	As               string   `yaml:"as,omitempty"`
	History          bool     `yaml:"history,omitempty"`
	Permanent        bool     `yaml:"permanent,omitempty"`
	Index            bool     `yaml:"index,omitempty"`
	Reserve          []string `yaml:"reserve,omitempty"`
	Scope            string   `yaml:"scope,omitempty"`
	ScopeField       string   `yaml:"scope_field,omitempty"`
	ScopeAssociation string   `yaml:"scope_association,omitempty"`
	Builder          string   `yaml:"builder,omitempty"`
	StripMarkup      bool     `yaml:"strip_markup,omitempty"`
	MaxLength        int      `yaml:"max_length,omitempty"`
}

// LoadSchemaFile reads a YAML schema from path.
func LoadSchemaFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema: %w", err)
	}
	defer f.Close()
	return LoadSchema(f)
}

// LoadSchema decodes a YAML schema and builds a Registry from it.
// Types may appear in any order; a parent named by extends is defined before its subtypes.
func LoadSchema(r io.Reader) (*Registry, error) {
	var s Schema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, errors.Join(ErrInvalidSchema, err)
	}
	return s.Registry()
}

// Registry builds a Registry from the schema.
func (s Schema) Registry() (*Registry, error) {
	ordered, err := s.ordered()
	if err != nil {
		return nil, err
	}

	reg := NewRegistry()
	for _, ts := range ordered {
		if err := reg.DefineType(ts.Name, ts.typeOptions()...); err != nil {
			return nil, errors.Join(ErrInvalidSchema, err)
		}
	}
	for _, ts := range ordered {
		if ts.Slug == nil {
			continue
		}
		opts, err := ts.Slug.options()
		if err != nil {
			return nil, errors.Join(ErrInvalidSchema, fmt.Errorf("type %q: %w", ts.Name, err))
		}
		if _, err := reg.DeclareSlug(ts.Name, ts.Slug.Fields, opts...); err != nil {
			return nil, errors.Join(ErrInvalidSchema, fmt.Errorf("type %q: %w", ts.Name, err))
		}
	}
	return reg, nil
}

// ordered sorts types so that every parent precedes its subtypes.
func (s Schema) ordered() ([]TypeSchema, error) {
	byName := make(map[string]TypeSchema, len(s.Types))
	for _, ts := range s.Types {
		if ts.Name == "" {
			return nil, fmt.Errorf("%w: type without a name", ErrInvalidSchema)
		}
		if _, dup := byName[ts.Name]; dup {
			return nil, fmt.Errorf("%w: type %q listed twice", ErrInvalidSchema, ts.Name)
		}
		byName[ts.Name] = ts
	}

	out := make([]TypeSchema, 0, len(s.Types))
	state := make(map[string]int, len(s.Types)) // 1 visiting, 2 done
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case 1:
			return fmt.Errorf("%w: inheritance cycle through %q", ErrInvalidSchema, name)
		case 2:
			return nil
		}
		ts, ok := byName[name]
		if !ok {
			return errors.Join(ErrInvalidSchema, fmt.Errorf("%w: %q", ErrUnknownType, name))
		}
		state[name] = 1
		if ts.Extends != "" {
			if err := visit(ts.Extends); err != nil {
				return err
			}
		}
		state[name] = 2
		out = append(out, ts)
		return nil
	}

	for _, ts := range s.Types {
		if err := visit(ts.Name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (ts TypeSchema) typeOptions() []TypeOption {
	var opts []TypeOption
	if ts.Extends != "" {
		opts = append(opts, Extends(ts.Extends))
	}
	if len(ts.Fields) > 0 {
		opts = append(opts, WithFields(ts.Fields...))
	}
	if ts.EmbeddedIn != nil {
		opts = append(opts, EmbeddedIn(ts.EmbeddedIn.Type, ts.EmbeddedIn.Relation))
	}
	for assoc, fk := range ts.BelongsTo {
		opts = append(opts, BelongsTo(assoc, fk))
	}
	return opts
}

func (ss SlugSchema) options() ([]Option, error) {
	var opts []Option
	if ss.As != "" {
		opts = append(opts, As(ss.As))
	}
	if ss.History {
		opts = append(opts, WithHistory())
	}
	if ss.Permanent {
		opts = append(opts, Permanent())
	}
	if ss.Index {
		opts = append(opts, Indexed())
	}
	if len(ss.Reserve) > 0 {
		opts = append(opts, Reserve(ss.Reserve...))
	}

	scopes := slices.DeleteFunc([]string{ss.Scope, ss.ScopeField, ss.ScopeAssociation}, func(s string) bool { return s == "" })
	if len(scopes) > 1 {
		return nil, fmt.Errorf("%w: scope, scope_field and scope_association are exclusive", ErrConfiguration)
	}
	switch {
	case ss.Scope != "":
		opts = append(opts, ScopedBy(ss.Scope))
	case ss.ScopeField != "":
		opts = append(opts, ScopedByField(ss.ScopeField))
	case ss.ScopeAssociation != "":
		opts = append(opts, ScopedByAssociation(ss.ScopeAssociation))
	}

	if ss.Builder != "" {
		b, err := ExprBuilder(ss.Builder, ss.Fields)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithBuilder(b))
	}
	if ss.StripMarkup {
		opts = append(opts, StripMarkup())
	}
	if ss.MaxLength > 0 {
		opts = append(opts, WithSlugOptions(slug.MaxLength(ss.MaxLength)))
	}
	return opts, nil
}
