package permalink

import (
	"context"
	"regexp"
)

// Record is the capability set the engine needs from a persisted record.
// Get and Set address fields by name; the slug sequence lives in the policy's storage field.
type Record interface {
	ID() string
	Type() string
	IsNew() bool
	Changed(field string) bool
	Get(field string) any
	Set(field string, value any)
}

// Persisted is implemented by records that can report a field's last stored value.
// A manual slug assignment on a history policy keeps the stored sequence through it.
type Persisted interface {
	Persisted(field string) any
}

// Embedded is implemented by records that live inside a parent record.
// Parent returns a nil Record for a detached record.
type Embedded interface {
	Parent() (parent Record, relation string)
}

// Finder is the read side of a document store used for collision checks.
type Finder interface {
	// FindSlugs returns every slug string held in field by records under root whose
	// slug matches pattern, historical entries included. The record with excludeID is skipped.
	FindSlugs(ctx context.Context, root ScopeRoot, field string, pattern *regexp.Regexp, excludeID string) ([]string, error)
	// IsNativeID reports whether s has the store's primary key syntax.
	IsNativeID(s string) bool
}

// Store persists records and looks them up by id or slug.
// Missing records are reported with ErrNotFound.
type Store[R Record] interface {
	Finder
	Save(ctx context.Context, rec R, claim Claim) error
	FindByID(ctx context.Context, root ScopeRoot, id string) (R, error)
	FindBySlug(ctx context.Context, root ScopeRoot, field, slug string) (R, error)
}

// Claim describes the slugs a record holds after a build.
// Stores enforce (root, field, slug) uniqueness when Unique is set and
// report violations with ErrConflict.
type Claim struct {
	Root   ScopeRoot
	Field  string
	Slugs  []string
	Unique bool
}

// Locker serializes resolve-and-save sequences that share a lock key.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(context.Context) error, err error)
}

// SlugsOf decodes a stored slug value.
// legacy is true when the value is a bare non-empty string rather than a sequence.
func SlugsOf(v any) (slugs []string, legacy bool) {
	switch s := v.(type) {
	case nil:
		return nil, false
	case string:
		if s == "" {
			return nil, false
		}
		return []string{s}, true
	case []string:
		return compact(s), false
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok && str != "" {
				out = append(out, str)
			}
		}
		return out, false
	default:
		return nil, false
	}
}

// Current returns the last slug in the sequence stored in field.
func Current(rec Record, field string) string {
	slugs, _ := SlugsOf(rec.Get(field))
	if len(slugs) == 0 {
		return ""
	}
	return slugs[len(slugs)-1]
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
