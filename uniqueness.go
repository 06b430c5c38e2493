package permalink

import (
	"context"
	"errors"
	"math/big"
	"regexp"
)

// Pattern matches base itself or base followed by a hyphen and a decimal suffix.
// The suffix is the first capture group.
func Pattern(base string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `(?:-(\d+))?$`)
}

// NextSlug returns base when no entry of taken collides with it, otherwise
// base with a suffix one greater than the highest suffix taken. A bare base counts as 0.
// Entries that do not match Pattern(base) are ignored.
func NextSlug(base string, taken []string) string {
	re := Pattern(base)

	var highest *big.Int
	for _, s := range taken {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		n := new(big.Int)
		if m[1] != "" {
			n.SetString(m[1], 10)
		}
		if highest == nil || n.Cmp(highest) > 0 {
			highest = n
		}
	}

	if highest == nil {
		return base
	}
	return base + "-" + highest.Add(highest, big.NewInt(1)).String()
}

// resolve returns a slug derived from base that no sibling under root holds.
// Reserved words and strings with native ID syntax are treated as taken.
func (e *Engine[R]) resolve(ctx context.Context, rec R, p *Policy, base string, root ScopeRoot) (string, error) {
	taken, err := e.store.FindSlugs(ctx, root, p.storageField, Pattern(base), rec.ID())
	if err != nil {
		return "", errors.Join(ErrStore, err)
	}
	if e.store.IsNativeID(base) || p.Reserved(base) {
		taken = append(taken, base)
	}
	return NextSlug(base, taken), nil
}
