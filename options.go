package permalink

import (
	"strings"

	"github.com/dmitrymomot/permalink/pkg/slug"
)

// Option configures a Policy.
type Option func(*Policy)

// As stores the slug sequence under name instead of "slug".
func As(name string) Option {
	return func(p *Policy) {
		p.storageField = name
	}
}

// WithHistory keeps earlier slugs as aliases after a rebuild.
func WithHistory() Option {
	return func(p *Policy) {
		p.history = true
	}
}

// Permanent fixes the slug once the record is created.
func Permanent() Option {
	return func(p *Policy) {
		p.permanent = true
	}
}

// Indexed marks the slug as unique-indexed. Bundled stores enforce unique claims for indexed policies.
func Indexed() Option {
	return func(p *Policy) {
		p.indexed = true
	}
}

// Reserve forbids words as bare slugs. They always receive a numeric suffix.
// Words are normalized like candidates, so "New Post" reserves "new-post".
func Reserve(words ...string) Option {
	return func(p *Policy) {
		for _, w := range words {
			if w = strings.TrimSpace(w); w != "" {
				p.reserved[strings.ToLower(w)] = struct{}{}
			}
		}
	}
}

// ScopedBy scopes uniqueness by an association or, failing that, a field of the same name.
func ScopedBy(name string) Option {
	return func(p *Policy) {
		p.scope = ScopeName(name)
	}
}

// ScopedByField scopes uniqueness by a plain field.
func ScopedByField(name string) Option {
	return func(p *Policy) {
		p.scope = ScopeField(name)
	}
}

// ScopedByAssociation scopes uniqueness by the foreign key of a BelongsTo association.
func ScopedByAssociation(name string) Option {
	return func(p *Policy) {
		p.scope = ScopeAssociation(name)
	}
}

// WithBuilder replaces the default candidate builder.
func WithBuilder(b Builder) Option {
	return func(p *Policy) {
		if b != nil {
			p.builder = b
		}
	}
}

// WithSlugOptions passes normalization options to slug.Make.
// Separator and Lowercase(false) produce slugs outside the lower-kebab form and are best avoided.
func WithSlugOptions(opts ...slug.Option) Option {
	return func(p *Policy) {
		p.slugOptions = append(p.slugOptions, opts...)
	}
}

// StripMarkup removes HTML from candidates before normalization.
func StripMarkup() Option {
	return func(p *Policy) {
		p.stripMarkup = true
	}
}
