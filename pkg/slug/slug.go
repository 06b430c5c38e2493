package slug

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/unicode/norm"
)

type options struct {
	replacements map[string]string
	separator    string
	stripChars   string
	maxLength    int
	lowercase    bool
}

func defaultOptions() *options {
	return &options{
		separator: "-",
		lowercase: true,
	}
}

// Option configures slug generation.
type Option func(*options)

// Separator sets the string placed between words.
// Default: "-"
func Separator(sep string) Option {
	return func(o *options) {
		o.separator = sep
	}
}

// Lowercase controls case folding of ASCII letters.
// Default: true
func Lowercase(enabled bool) Option {
	return func(o *options) {
		o.lowercase = enabled
	}
}

// MaxLength limits the slug to n runes. Trailing separators left by the cut are removed.
// Zero or negative disables the limit.
func MaxLength(n int) Option {
	return func(o *options) {
		o.maxLength = n
	}
}

// StripChars removes every rune in chars before the text is processed.
func StripChars(chars string) Option {
	return func(o *options) {
		o.stripChars = chars
	}
}

// CustomReplace applies literal string replacements before the text is processed.
func CustomReplace(replacements map[string]string) Option {
	return func(o *options) {
		if o.replacements == nil {
			o.replacements = make(map[string]string, len(replacements))
		}
		for k, v := range replacements {
			o.replacements[k] = v
		}
	}
}

// Make converts s into a URL-safe slug.
// Non-Latin scripts are transliterated to ASCII. Runs of anything other than ASCII letters and digits collapse into a single
// separator; leading and trailing separators are never emitted.
func Make(s string, opts ...Option) string {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	for old, repl := range o.replacements {
		if old != "" {
			s = strings.ReplaceAll(s, old, repl)
		}
	}

	if o.stripChars != "" {
		s = strings.Map(func(r rune) rune {
			if strings.ContainsRune(o.stripChars, r) {
				return -1
			}
			return r
		}, s)
	}

	s = transliterate(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z':
			if o.lowercase {
				r = unicode.ToLower(r)
			}
		default:
			pendingSep = true
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteString(o.separator)
		}
		pendingSep = false
		b.WriteRune(r)
	}

	result := b.String()
	if o.maxLength > 0 {
		result = truncate(result, o.maxLength, o.separator)
	}
	return result
}

// IsValid reports whether s is a non-empty lower-kebab slug: [a-z0-9] runs joined by single hyphens.
func IsValid(s string) bool {
	if s == "" || s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	prevHyphen := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			prevHyphen = false
		case c == '-':
			if prevHyphen {
				return false
			}
			prevHyphen = true
		default:
			return false
		}
	}
	return true
}

// transliterate maps non-ASCII text to its closest ASCII spelling.
// Input is composed first so combining marks fold with their base letter.
func transliterate(s string) string {
	if isASCII(s) {
		return s
	}
	return unidecode.Unidecode(norm.NFC.String(s))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func truncate(s string, n int, sep string) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if n == 0 {
			cut = i
			break
		}
		n--
	}
	s = s[:cut]
	if sep != "" {
		s = strings.TrimRight(s, sep)
	}
	return s
}
