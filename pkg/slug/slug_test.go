package slug_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/permalink/pkg/slug"
)

func TestMake(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		opts  []slug.Option
		want  string
	}{
		{name: "title", input: "Dune Messiah", want: "dune-messiah"},
		{name: "apostrophe splits words", input: "The Hitchhiker's Guide", want: "the-hitchhiker-s-guide"},
		{name: "punctuation runs collapse", input: "Dune -- Part  Two!!", want: "dune-part-two"},
		{name: "edges trimmed", input: "  ...Dune...  ", want: "dune"},
		{name: "digits kept", input: "Fahrenheit 451", want: "fahrenheit-451"},
		{name: "decimal point", input: "Release 2.0.1", want: "release-2-0-1"},
		{name: "existing hyphens", input: "dune---messiah-", want: "dune-messiah"},
		{name: "whitespace kinds", input: "Dune\tMessiah\nChildren", want: "dune-messiah-children"},
		{name: "empty", input: "", want: ""},
		{name: "nothing sluggable", input: "?!*&^%", want: ""},
		{name: "emoji dropped", input: "Dune 🐛 Messiah", want: "dune-messiah"},
		{name: "cyrillic", input: "Война и мир 1869", want: "voina-i-mir-1869"},
		{name: "cyrillic keeps case", input: "Анна Каренина", opts: []slug.Option{slug.Lowercase(false)}, want: "Anna-Karenina"},
		{name: "decomposed accents", input: "Cafe\u0301 Noir", want: "cafe-noir"},
		{name: "french", input: "L'Étranger à la plage", want: "l-etranger-a-la-plage"},
		{name: "german", input: "Über Größe straße", want: "uber-grosse-strasse"},
		{name: "polish", input: "Zażółć gęślą jaźń", want: "zazolc-gesla-jazn"},
		{name: "nordic", input: "Søren Kierkegaard Æsir", want: "soren-kierkegaard-aesir"},
		{name: "icelandic thorn", input: "Þór", want: "thor"},
		{name: "url", input: "https://example.com/books?id=1", want: "https-example-com-books-id-1"},

		{name: "keep case", input: "Dune Messiah", opts: []slug.Option{slug.Lowercase(false)}, want: "Dune-Messiah"},
		{name: "underscore separator", input: "Dune Messiah", opts: []slug.Option{slug.Separator("_")}, want: "dune_messiah"},
		{name: "empty separator", input: "Dune Messiah", opts: []slug.Option{slug.Separator("")}, want: "dunemessiah"},
		{name: "truncated on word", input: "Children of Dune", opts: []slug.Option{slug.MaxLength(11)}, want: "children-of"},
		{name: "truncated mid word", input: "Children of Dune", opts: []slug.Option{slug.MaxLength(10)}, want: "children-o"},
		{name: "separator left by cut", input: "Children of Dune", opts: []slug.Option{slug.MaxLength(9)}, want: "children"},
		{name: "no limit", input: "Children of Dune", opts: []slug.Option{slug.MaxLength(0)}, want: "children-of-dune"},
		{name: "limit above length", input: "Dune", opts: []slug.Option{slug.MaxLength(100)}, want: "dune"},
		{name: "strip chars join words", input: "Don't Panic", opts: []slug.Option{slug.StripChars("'")}, want: "dont-panic"},
		{
			name:  "replacements",
			input: "Salt & Pepper @ Home",
			opts:  []slug.Option{slug.CustomReplace(map[string]string{"&": "and", "@": "at"})},
			want:  "salt-and-pepper-at-home",
		},
		{
			name:  "options combined",
			input: "Fish & Chips!",
			opts: []slug.Option{
				slug.Separator("_"),
				slug.Lowercase(false),
				slug.StripChars("!"),
				slug.CustomReplace(map[string]string{"&": "and"}),
				slug.MaxLength(9),
			},
			want: "Fish_and",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, slug.Make(tt.input, tt.opts...))
		})
	}
}

func TestMake_Deterministic(t *testing.T) {
	t.Parallel()

	input := "Dune: Messiah (1969)"
	first := slug.Make(input)
	for range 10 {
		assert.Equal(t, first, slug.Make(input))
	}
}

func TestMake_DefaultsAreValid(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Dune", "The Hitchhiker's Guide", "Über Größe", "  --  ", "123", "a_b_c",
		"<b>bold</b>", "Война и мир", "x-1", "ÆØÅ æøå", "東京物語",
	}
	for _, in := range inputs {
		s := slug.Make(in)
		if s == "" {
			continue
		}
		assert.True(t, slug.IsValid(s), "Make(%q) = %q", in, s)
	}
}

func TestMake_NonLatinScripts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "russian", input: "Война и мир"},
		{name: "ukrainian", input: "Кобзар"},
		{name: "greek", input: "Ἰλιάς"},
		{name: "japanese", input: "東京物語"},
		{name: "chinese", input: "红楼梦"},
		{name: "korean", input: "토지"},
		{name: "arabic", input: "ألف ليلة وليلة"},
		{name: "hebrew", input: "שירה"},
		{name: "mixed", input: "Dune / Дюна / 沙丘"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := slug.Make(tt.input)
			assert.NotEmpty(t, s)
			assert.True(t, slug.IsValid(s), "Make(%q) = %q", tt.input, s)
			assert.LessOrEqual(t, len(slug.Make(tt.input, slug.MaxLength(4))), 4)
		})
	}
}

func TestIsValid(t *testing.T) {
	t.Parallel()

	valid := []string{"dune", "dune-1", "a", "42", "children-of-dune", "x9-y8"}
	invalid := []string{"", "-dune", "dune-", "dune--1", "Dune", "dune_1", "dune 1", "düne"}

	for _, s := range valid {
		assert.True(t, slug.IsValid(s), s)
	}
	for _, s := range invalid {
		assert.False(t, slug.IsValid(s), s)
	}
}

func BenchmarkMake(b *testing.B) {
	b.Run("ascii", func(b *testing.B) {
		for b.Loop() {
			_ = slug.Make("The Hitchhiker's Guide to the Galaxy")
		}
	})
	b.Run("diacritics", func(b *testing.B) {
		for b.Loop() {
			_ = slug.Make("Zażółć gęślą jaźń, Über Größe")
		}
	})
	b.Run("cyrillic", func(b *testing.B) {
		for b.Loop() {
			_ = slug.Make("Война и мир, Анна Каренина")
		}
	})
	b.Run("truncated", func(b *testing.B) {
		for b.Loop() {
			_ = slug.Make("The Hitchhiker's Guide to the Galaxy", slug.MaxLength(20))
		}
	})
}
