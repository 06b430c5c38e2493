package permalink_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/permalink"
	"github.com/dmitrymomot/permalink/pkg/document"
)

func TestJoinFields(t *testing.T) {
	t.Parallel()

	doc := document.New("book", map[string]any{"title": "Dune", "year": 1965, "rating": 4.5})

	tests := []struct {
		name   string
		fields []string
		want   string
	}{
		{name: "single", fields: []string{"title"}, want: "Dune"},
		{name: "ordered", fields: []string{"year", "title"}, want: "1965 Dune"},
		{name: "missing field is empty", fields: []string{"title", "subtitle"}, want: "Dune "},
		{name: "float", fields: []string{"rating"}, want: "4.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := permalink.JoinFields(tt.fields...)(doc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExprBuilder(t *testing.T) {
	t.Parallel()

	doc := document.New("book", map[string]any{"title": "Dune", "author": "Frank Herbert", "year": 1965})

	tests := []struct {
		name   string
		src    string
		fields []string
		want   string
	}{
		{name: "field", src: "title", fields: []string{"title"}, want: "Dune"},
		{name: "concatenation", src: `author + " " + title`, fields: []string{"title", "author"}, want: "Frank Herbert Dune"},
		{name: "conditional", src: `year < 1970 ? "classic " + title : title`, fields: []string{"title", "year"}, want: "classic Dune"},
		{name: "number", src: "year", fields: []string{"year"}, want: "1965"},
		{name: "undefined field is nil", src: "subtitle", fields: []string{"title"}, want: ""},
		{name: "type", src: `_type + " " + title`, fields: []string{"title"}, want: "book Dune"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := permalink.ExprBuilder(tt.src, tt.fields)
			require.NoError(t, err)
			got, err := b(doc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("empty expression", func(t *testing.T) {
		t.Parallel()

		_, err := permalink.ExprBuilder("  ", nil)
		require.ErrorIs(t, err, permalink.ErrConfiguration)
	})

	t.Run("syntax error", func(t *testing.T) {
		t.Parallel()

		_, err := permalink.ExprBuilder("title +", []string{"title"})
		require.ErrorIs(t, err, permalink.ErrConfiguration)
	})

	t.Run("runtime error surfaces through the policy as ErrBuilder", func(t *testing.T) {
		t.Parallel()

		b, err := permalink.ExprBuilder(`title + 1`, []string{"title"})
		require.NoError(t, err)

		p, err := permalink.Declare([]string{"title"}, permalink.WithBuilder(b))
		require.NoError(t, err)

		_, err = p.Candidate(doc)
		require.ErrorIs(t, err, permalink.ErrBuilder)
	})
}
