package permalink_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/permalink"
	"github.com/dmitrymomot/permalink/pkg/document"
	"github.com/dmitrymomot/permalink/pkg/id"
	"github.com/dmitrymomot/permalink/pkg/lock"
	"github.com/dmitrymomot/permalink/pkg/memstore"
	"github.com/dmitrymomot/permalink/pkg/slug"
)

type docEngine = permalink.Engine[*document.Document]

func newBookEngine(t *testing.T, opts ...permalink.Option) (*docEngine, *memstore.Store) {
	t.Helper()

	reg := permalink.NewRegistry()
	require.NoError(t, reg.DefineType("book"))
	_, err := reg.DeclareSlug("book", []string{"title"}, opts...)
	require.NoError(t, err)

	store := memstore.New()
	return permalink.New[*document.Document](reg, store), store
}

func saveBook(t *testing.T, e *docEngine, title string) *document.Document {
	t.Helper()

	doc := document.New("book", map[string]any{"title": title})
	require.NoError(t, e.Save(context.Background(), doc))
	return doc
}

func identifier(t *testing.T, e *docEngine, doc *document.Document) string {
	t.Helper()

	s, err := e.ToIdentifier(context.Background(), doc)
	require.NoError(t, err)
	return s
}

func TestEngine_EndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, store := newBookEngine(t)

	a := saveBook(t, e, "A Thousand Plateaus")
	assert.Equal(t, "a-thousand-plateaus", identifier(t, e, a))

	b := saveBook(t, e, "A Thousand Plateaus")
	assert.Equal(t, "a-thousand-plateaus-1", identifier(t, e, b))

	a.Set("title", "Anti Oedipus")
	require.NoError(t, e.Save(ctx, a))
	assert.Equal(t, "anti-oedipus", identifier(t, e, a))

	root, err := e.Root("book")
	require.NoError(t, err)
	reloaded, err := store.FindByID(ctx, root, b.ID())
	require.NoError(t, err)
	assert.Equal(t, "a-thousand-plateaus-1", identifier(t, e, reloaded))
	assert.Equal(t, []string{"a-thousand-plateaus-1"}, reloaded.Get("slug"))
}

func TestEngine_SuffixMonotonicity(t *testing.T) {
	t.Parallel()

	e, store := newBookEngine(t)
	for _, s := range []string{"x", "x-1", "x-3"} {
		store.Insert(document.New("book", map[string]any{"title": "X", "slug": []string{s}}))
	}

	doc := saveBook(t, e, "X")
	assert.Equal(t, "x-4", identifier(t, e, doc))
}

func TestEngine_NonLatinTitles(t *testing.T) {
	t.Parallel()

	e, _ := newBookEngine(t)

	a := saveBook(t, e, "Война и мир")
	assert.Equal(t, "voina-i-mir", identifier(t, e, a))
	b := saveBook(t, e, "Война и мир")
	assert.Equal(t, "voina-i-mir-1", identifier(t, e, b))

	for _, title := range []string{"東京物語", "Ἰλιάς", "토지", "红楼梦"} {
		doc := saveBook(t, e, title)
		s := identifier(t, e, doc)
		assert.True(t, slug.IsValid(s), "%s -> %q", title, s)
	}
}

func TestEngine_HistoricalSlugsCollide(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, _ := newBookEngine(t, permalink.WithHistory())

	a := saveBook(t, e, "Dune")
	a.Set("title", "Dune Messiah")
	require.NoError(t, e.Save(ctx, a))
	require.Equal(t, []string{"dune", "dune-messiah"}, a.Get("slug"))

	b := saveBook(t, e, "Dune")
	assert.Equal(t, "dune-1", identifier(t, e, b), "a historical alias still occupies the slug")
}

func TestEngine_NoOpOnUnchangedFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, _ := newBookEngine(t)

	saveBook(t, e, "Dune")
	doc := saveBook(t, e, "Dune")
	require.Equal(t, []string{"dune-1"}, doc.Get("slug"))

	should, err := e.ShouldBuild(doc)
	require.NoError(t, err)
	assert.False(t, should)

	for range 3 {
		require.NoError(t, e.Save(ctx, doc))
	}
	assert.Equal(t, []string{"dune-1"}, doc.Get("slug"), "own slug is not a collision")

	require.NoError(t, e.Rebuild(ctx, doc))
	assert.Equal(t, []string{"dune-1"}, doc.Get("slug"), "forced rebuild excludes the record itself")
}

func TestEngine_ShouldBuild(t *testing.T) {
	t.Parallel()

	persisted := func(fields map[string]any) *document.Document {
		return document.Restore(id.NewULID(), "book", nil, "", fields)
	}

	tests := []struct {
		name      string
		permanent bool
		doc       func() *document.Document
		want      bool
	}{
		{
			name: "new record",
			doc:  func() *document.Document { return document.New("book", map[string]any{"title": "Dune"}) },
			want: true,
		},
		{
			name: "persisted without slug",
			doc:  func() *document.Document { return persisted(map[string]any{"title": "Dune"}) },
			want: true,
		},
		{
			name: "persisted and unchanged",
			doc: func() *document.Document {
				return persisted(map[string]any{"title": "Dune", "slug": []string{"dune"}})
			},
			want: false,
		},
		{
			name: "source field changed",
			doc: func() *document.Document {
				d := persisted(map[string]any{"title": "Dune", "slug": []string{"dune"}})
				d.Set("title", "Dune Messiah")
				return d
			},
			want: true,
		},
		{
			name: "unrelated field changed",
			doc: func() *document.Document {
				d := persisted(map[string]any{"title": "Dune", "slug": []string{"dune"}})
				d.Set("year", 1965)
				return d
			},
			want: false,
		},
		{
			name: "slug assigned",
			doc: func() *document.Document {
				d := persisted(map[string]any{"title": "Dune", "slug": []string{"dune"}})
				d.Set("slug", []string{"arrakis"})
				return d
			},
			want: true,
		},
		{
			name:      "permanent and new",
			permanent: true,
			doc:       func() *document.Document { return document.New("book", map[string]any{"title": "Dune"}) },
			want:      true,
		},
		{
			name:      "permanent ignores source changes",
			permanent: true,
			doc: func() *document.Document {
				d := persisted(map[string]any{"title": "Dune", "slug": []string{"dune"}})
				d.Set("title", "Dune Messiah")
				return d
			},
			want: false,
		},
		{
			name:      "permanent without slug",
			permanent: true,
			doc:       func() *document.Document { return persisted(map[string]any{"title": "Dune"}) },
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var opts []permalink.Option
			if tt.permanent {
				opts = append(opts, permalink.Permanent())
			}
			e, _ := newBookEngine(t, opts...)

			got, err := e.ShouldBuild(tt.doc())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngine_History(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("append and dedupe", func(t *testing.T) {
		t.Parallel()

		e, _ := newBookEngine(t, permalink.WithHistory())
		doc := saveBook(t, e, "Foo")
		assert.Equal(t, []string{"foo"}, doc.Get("slug"))

		doc.Set("title", "Bar")
		require.NoError(t, e.Save(ctx, doc))
		assert.Equal(t, []string{"foo", "bar"}, doc.Get("slug"))
		assert.Equal(t, "bar", identifier(t, e, doc))

		doc.Set("title", "FOO!")
		require.NoError(t, e.Save(ctx, doc))
		assert.Equal(t, []string{"foo", "bar"}, doc.Get("slug"), "reproduced value is not appended again")
	})

	t.Run("without history the sequence is replaced", func(t *testing.T) {
		t.Parallel()

		e, _ := newBookEngine(t)
		doc := saveBook(t, e, "Foo")
		doc.Set("title", "Bar")
		require.NoError(t, e.Save(ctx, doc))
		assert.Equal(t, []string{"bar"}, doc.Get("slug"))
	})
}

func TestEngine_Permanence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, store := newBookEngine(t, permalink.Permanent())

	doc := saveBook(t, e, "Dune")
	doc.Set("title", "Dune Messiah")
	require.NoError(t, e.Save(ctx, doc))
	assert.Equal(t, []string{"dune"}, doc.Get("slug"))

	legacy := document.New("book", map[string]any{"title": "Emma"})
	store.Insert(legacy)
	root, err := e.Root("book")
	require.NoError(t, err)
	loaded, err := store.FindByID(ctx, root, legacy.ID())
	require.NoError(t, err)
	assert.Equal(t, "emma", identifier(t, e, loaded), "records created before permanence still get a slug")
}

func TestEngine_EmbeddedScope(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	reg := permalink.NewRegistry()
	require.NoError(t, reg.DefineType("book"))
	require.NoError(t, reg.DefineType("author", permalink.EmbeddedIn("book", "authors")))
	_, err := reg.DeclareSlug("book", []string{"title"})
	require.NoError(t, err)
	_, err = reg.DeclareSlug("author", []string{"name"}, permalink.ScopedBy("publisher"))
	require.NoError(t, err)

	e := permalink.New[*document.Document](reg, memstore.New())

	book1 := saveBook(t, e, "Capitalism and Schizophrenia")
	book2 := saveBook(t, e, "Difference and Repetition")

	a1 := document.Embed(book1, "authors", "author", map[string]any{"name": "Foo"})
	a2 := document.Embed(book2, "authors", "author", map[string]any{"name": "Foo"})
	a3 := document.Embed(book1, "authors", "author", map[string]any{"name": "Foo"})
	for _, d := range []*document.Document{a1, a2, a3} {
		require.NoError(t, e.Save(ctx, d))
	}

	assert.Equal(t, "foo", identifier(t, e, a1))
	assert.Equal(t, "foo", identifier(t, e, a2), "different parents do not collide")
	assert.Equal(t, "foo-1", identifier(t, e, a3))
}

func TestEngine_ReferenceScope(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	reg := permalink.NewRegistry()
	require.NoError(t, reg.DefineType("book",
		permalink.WithFields("title"),
		permalink.BelongsTo("publisher", "publisher_id"),
	))
	_, err := reg.DeclareSlug("book", []string{"title"}, permalink.ScopedBy("publisher"))
	require.NoError(t, err)
	e := permalink.New[*document.Document](reg, memstore.New())

	save := func(publisher any) string {
		fields := map[string]any{"title": "Dune"}
		if publisher != nil {
			fields["publisher_id"] = publisher
		}
		doc := document.New("book", fields)
		require.NoError(t, e.Save(ctx, doc))
		return identifier(t, e, doc)
	}

	assert.Equal(t, "dune", save("p1"))
	assert.Equal(t, "dune", save("p2"))
	assert.Equal(t, "dune-1", save("p1"))
	assert.Equal(t, "dune", save(nil))
	assert.Equal(t, "dune-1", save(nil), "nil equals nil")
}

func TestEngine_UnknownScope(t *testing.T) {
	t.Parallel()

	reg := permalink.NewRegistry()
	require.NoError(t, reg.DefineType("book", permalink.WithFields("title")))
	_, err := reg.DeclareSlug("book", []string{"title"}, permalink.ScopedByAssociation("publisher"))
	require.NoError(t, err)

	store := memstore.New()
	e := permalink.New[*document.Document](reg, store)

	err = e.Save(context.Background(), document.New("book", map[string]any{"title": "Dune"}))
	require.ErrorIs(t, err, permalink.ErrConfiguration)
	require.ErrorIs(t, err, permalink.ErrUnknownScope)
	assert.Zero(t, store.Len())
}

func TestEngine_SubtypesShareNamespace(t *testing.T) {
	t.Parallel()

	reg := permalink.NewRegistry()
	require.NoError(t, reg.DefineType("book"))
	require.NoError(t, reg.DefineType("novel", permalink.Extends("book")))
	_, err := reg.DeclareSlug("book", []string{"title"})
	require.NoError(t, err)
	e := permalink.New[*document.Document](reg, memstore.New())

	book := saveBook(t, e, "Dune")
	novel := document.New("novel", map[string]any{"title": "Dune"})
	require.NoError(t, e.Save(context.Background(), novel))

	assert.Equal(t, "dune", identifier(t, e, book))
	assert.Equal(t, "dune-1", identifier(t, e, novel))
}

func TestEngine_ReservedAndNativeIDs(t *testing.T) {
	t.Parallel()

	e, _ := newBookEngine(t, permalink.Reserve("new", "Edit"))

	tests := []struct {
		title string
		want  string
	}{
		{title: "New", want: "new-1"},
		{title: "edit", want: "edit-1"},
		{title: "News", want: "news"},
		{title: "6ba7b810-9dad-11d1-80b4-00c04fd430c8", want: "6ba7b810-9dad-11d1-80b4-00c04fd430c8-1"},
		{title: "01HZX3M9Q4K7V2B8N5C6D0E1F2", want: "01hzx3m9q4k7v2b8n5c6d0e1f2-1"},
	}
	for _, tt := range tests {
		doc := saveBook(t, e, tt.title)
		assert.Equal(t, tt.want, identifier(t, e, doc), tt.title)
	}

	again := saveBook(t, e, "new")
	assert.Equal(t, "new-2", identifier(t, e, again))

	phrases, _ := newBookEngine(t, permalink.Reserve("New Post", "About Us"))
	assert.Equal(t, "new-post-1", identifier(t, phrases, saveBook(t, phrases, "New Post")))
	assert.Equal(t, "about-us-1", identifier(t, phrases, saveBook(t, phrases, "about us!")))
	assert.Equal(t, "new", identifier(t, phrases, saveBook(t, phrases, "New")))
}

func TestEngine_ManualOverride(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("new records", func(t *testing.T) {
		t.Parallel()

		e, _ := newBookEngine(t)

		a := document.New("book", map[string]any{"title": "Dune", "slug": []string{"My Custom Slug!"}})
		require.NoError(t, e.Save(ctx, a))
		assert.Equal(t, "my-custom-slug", identifier(t, e, a))

		b := document.New("book", map[string]any{"title": "Dune", "slug": "my custom slug"})
		require.NoError(t, e.Save(ctx, b))
		assert.Equal(t, "my-custom-slug-1", identifier(t, e, b), "manual slugs still resolve uniqueness")
	})

	t.Run("assigned on an existing record with history", func(t *testing.T) {
		t.Parallel()

		e, _ := newBookEngine(t, permalink.WithHistory())

		doc := saveBook(t, e, "Dune")
		doc.Set("slug", []string{"dune", "Arrakis"})
		require.NoError(t, e.Save(ctx, doc))
		assert.Equal(t, []string{"dune", "arrakis"}, doc.Get("slug"))
	})

	t.Run("override on a reloaded record keeps history", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name     string
			assigned any
			want     string
		}{
			{name: "bare string", assigned: "custom", want: "custom"},
			{name: "single element sequence", assigned: []string{"Other Name"}, want: "other-name"},
			{name: "sequence repeating history", assigned: []string{"foo", "custom"}, want: "custom"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				e, store := newBookEngine(t, permalink.WithHistory())
				doc := saveBook(t, e, "Foo")
				doc.Set("title", "Bar")
				require.NoError(t, e.Save(ctx, doc))

				root, err := e.Root("book")
				require.NoError(t, err)
				loaded, err := store.FindByID(ctx, root, doc.ID())
				require.NoError(t, err)

				loaded.Set("slug", tt.assigned)
				require.NoError(t, e.Save(ctx, loaded))
				assert.Equal(t, []string{"foo", "bar", tt.want}, loaded.Get("slug"))
				assert.Equal(t, tt.want, identifier(t, e, loaded))

				for _, key := range []string{"foo", "bar", tt.want} {
					found, err := e.Find(ctx, root, key)
					require.NoError(t, err, key)
					assert.Equal(t, doc.ID(), found.ID(), key)
				}
			})
		}
	})

	t.Run("override without history replaces the sequence", func(t *testing.T) {
		t.Parallel()

		e, store := newBookEngine(t)
		doc := saveBook(t, e, "Foo")

		root, err := e.Root("book")
		require.NoError(t, err)
		loaded, err := store.FindByID(ctx, root, doc.ID())
		require.NoError(t, err)

		loaded.Set("slug", "custom")
		require.NoError(t, e.Save(ctx, loaded))
		assert.Equal(t, []string{"custom"}, loaded.Get("slug"))

		_, err = e.Find(ctx, root, "foo")
		require.ErrorIs(t, err, permalink.ErrNotFound)
	})

	t.Run("clearing the slug rebuilds from source", func(t *testing.T) {
		t.Parallel()

		e, _ := newBookEngine(t)

		doc := saveBook(t, e, "Dune")
		doc.Set("slug", []string{})
		require.NoError(t, e.Save(ctx, doc))
		assert.Equal(t, []string{"dune"}, doc.Get("slug"))
	})
}

func TestEngine_BuilderFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("builder error aborts the save", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		e, store := newBookEngine(t, permalink.WithBuilder(func(permalink.Record) (string, error) {
			return "", boom
		}))

		doc := document.New("book", map[string]any{"title": "Dune"})
		err := e.Save(ctx, doc)
		require.ErrorIs(t, err, permalink.ErrBuilder)
		require.ErrorIs(t, err, boom)
		assert.Zero(t, store.Len())
		assert.True(t, doc.IsNew())
		assert.Nil(t, doc.Get("slug"))
	})

	t.Run("empty candidate", func(t *testing.T) {
		t.Parallel()

		e, store := newBookEngine(t)

		err := e.Save(ctx, document.New("book", map[string]any{"title": "!!! ???"}))
		require.ErrorIs(t, err, permalink.ErrBuilder)
		require.ErrorIs(t, err, permalink.ErrEmptyCandidate)
		assert.Zero(t, store.Len())
	})

	t.Run("undeclared type", func(t *testing.T) {
		t.Parallel()

		e, _ := newBookEngine(t)
		require.NoError(t, e.Registry().DefineType("magazine"))

		err := e.Save(ctx, document.New("magazine", map[string]any{"title": "Wired"}))
		require.ErrorIs(t, err, permalink.ErrNotDeclared)
	})
}

type failingStore struct {
	*memstore.Store
	err error
}

func (s *failingStore) FindSlugs(context.Context, permalink.ScopeRoot, string, *regexp.Regexp, string) ([]string, error) {
	return nil, s.err
}

func TestEngine_StoreErrors(t *testing.T) {
	t.Parallel()

	reg := permalink.NewRegistry()
	require.NoError(t, reg.DefineType("book"))
	_, err := reg.DeclareSlug("book", []string{"title"})
	require.NoError(t, err)

	down := errors.New("connection refused")
	store := &failingStore{Store: memstore.New(), err: down}
	e := permalink.New[*document.Document](reg, store)

	doc := document.New("book", map[string]any{"title": "Dune"})
	err = e.Save(context.Background(), doc)
	require.ErrorIs(t, err, permalink.ErrStore)
	require.ErrorIs(t, err, down)
	assert.Zero(t, store.Len(), "nothing is written after a failed lookup")
	assert.Nil(t, doc.Get("slug"))
}

type rejectingStore struct {
	*memstore.Store
	err error
}

func (s *rejectingStore) Save(context.Context, *document.Document, permalink.Claim) error {
	return s.err
}

func TestEngine_FailedSaveRestoresSlug(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	down := errors.New("write timeout")

	tests := []struct {
		name    string
		history bool
		setup   func(doc *document.Document)
		want    any
	}{
		{
			name: "new record",
			want: nil,
		},
		{
			name:    "renamed record with history",
			history: true,
			setup:   func(doc *document.Document) { doc.Set("title", "Dune Messiah") },
			want:    []string{"dune"},
		},
		{
			name:  "manual override",
			setup: func(doc *document.Document) { doc.Set("slug", "arrakis") },
			want:  "arrakis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reg := permalink.NewRegistry()
			require.NoError(t, reg.DefineType("book"))
			var opts []permalink.Option
			if tt.history {
				opts = append(opts, permalink.WithHistory())
			}
			_, err := reg.DeclareSlug("book", []string{"title"}, opts...)
			require.NoError(t, err)

			mem := memstore.New()
			doc := document.New("book", map[string]any{"title": "Dune"})
			if tt.setup != nil {
				require.NoError(t, permalink.New[*document.Document](reg, mem).Save(ctx, doc))
				tt.setup(doc)
			}

			e := permalink.New[*document.Document](reg, &rejectingStore{Store: mem, err: down})
			err = e.Save(ctx, doc)
			require.ErrorIs(t, err, permalink.ErrStore)
			require.ErrorIs(t, err, down)
			assert.Equal(t, tt.want, doc.Get("slug"))
		})
	}
}

func TestEngine_LegacyMigration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, store := newBookEngine(t)

	legacy := document.New("book", map[string]any{"title": "Old Title", "slug": "old-title"})
	store.Insert(legacy)

	root, err := e.Root("book")
	require.NoError(t, err)
	loaded, err := store.FindByID(ctx, root, legacy.ID())
	require.NoError(t, err)

	assert.Equal(t, "old-title", identifier(t, e, loaded))
	assert.Equal(t, []string{"old-title"}, loaded.Get("slug"))
	assert.False(t, loaded.Changed("slug"), "upgraded value is persisted")

	stored, err := store.FindByID(ctx, root, legacy.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"old-title"}, stored.Get("slug"))
}

func TestEngine_LazyMaterialization(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, store := newBookEngine(t)

	saveBook(t, e, "Emma")
	unslugged := document.New("book", map[string]any{"title": "Emma"})
	store.Insert(unslugged)

	root, err := e.Root("book")
	require.NoError(t, err)
	loaded, err := store.FindByID(ctx, root, unslugged.ID())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Go(func() {
			s, err := e.ToIdentifier(ctx, loaded)
			assert.NoError(t, err)
			results[i] = s
		})
	}
	wg.Wait()

	for _, s := range results {
		assert.Equal(t, "emma-1", s)
	}
	stored, err := store.FindByID(ctx, root, unslugged.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"emma-1"}, stored.Get("slug"))
}

type heldStore struct {
	*memstore.Store
	saves   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (s *heldStore) Save(ctx context.Context, doc *document.Document, claim permalink.Claim) error {
	if s.saves.Add(1) == 1 {
		close(s.entered)
		<-s.release
	}
	return s.Store.Save(ctx, doc, claim)
}

func TestEngine_LazyMaterializationUpdatesEveryCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := permalink.NewRegistry()
	require.NoError(t, reg.DefineType("book"))
	_, err := reg.DeclareSlug("book", []string{"title"})
	require.NoError(t, err)

	store := &heldStore{Store: memstore.New(), entered: make(chan struct{}), release: make(chan struct{})}
	e := permalink.New[*document.Document](reg, store)

	store.Insert(document.New("book", map[string]any{"title": "Emma", "slug": []string{"emma"}}))
	unslugged := document.New("book", map[string]any{"title": "Emma"})
	store.Insert(unslugged)

	root, err := e.Root("book")
	require.NoError(t, err)
	copies := make([]*document.Document, 6)
	for i := range copies {
		copies[i], err = store.FindByID(ctx, root, unslugged.ID())
		require.NoError(t, err)
	}

	results := make([]string, len(copies))
	var wg sync.WaitGroup
	wg.Go(func() {
		s, err := e.ToIdentifier(ctx, copies[0])
		assert.NoError(t, err)
		results[0] = s
	})
	<-store.entered
	for i := 1; i < len(copies); i++ {
		wg.Go(func() {
			s, err := e.ToIdentifier(ctx, copies[i])
			assert.NoError(t, err)
			results[i] = s
		})
	}
	time.Sleep(50 * time.Millisecond)
	close(store.release)
	wg.Wait()

	for i, doc := range copies {
		assert.Equal(t, "emma-1", results[i])
		assert.Equal(t, []string{"emma-1"}, doc.Get("slug"), "copy %d", i)
		assert.Equal(t, "emma-1", identifier(t, e, doc))
	}
}

func TestEngine_Find(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, _ := newBookEngine(t, permalink.WithHistory())

	a := saveBook(t, e, "Foo")
	a.Set("title", "Bar")
	require.NoError(t, e.Save(ctx, a))
	b := saveBook(t, e, "Baz")

	root, err := e.Root("book")
	require.NoError(t, err)

	for _, key := range []string{"bar", "foo", a.ID()} {
		got, err := e.Find(ctx, root, key)
		require.NoError(t, err, key)
		assert.Equal(t, a.ID(), got.ID(), key)
	}

	_, err = e.Find(ctx, root, "missing")
	require.ErrorIs(t, err, permalink.ErrNotFound)
	_, err = e.Find(ctx, root, id.NewULID())
	require.ErrorIs(t, err, permalink.ErrNotFound)

	all, err := e.FindAll(ctx, root, "baz", a.ID())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID(), all[0].ID())
	assert.Equal(t, a.ID(), all[1].ID())

	none, err := e.FindAll(ctx, root)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = e.FindAll(ctx, root, "baz", "missing")
	require.ErrorIs(t, err, permalink.ErrNotFound)

	_, err = e.Find(ctx, permalink.ScopeRoot{}, "foo")
	require.ErrorIs(t, err, permalink.ErrConfiguration)
}

// racingStore makes the first two collision lookups wait for each other, so both
// callers observe the same sibling state before either writes.
type racingStore struct {
	*memstore.Store
	calls atomic.Int32
	gate  sync.WaitGroup
}

func newRacingStore() *racingStore {
	s := &racingStore{Store: memstore.New()}
	s.gate.Add(2)
	return s
}

func (s *racingStore) FindSlugs(ctx context.Context, root permalink.ScopeRoot, field string, pattern *regexp.Regexp, excludeID string) ([]string, error) {
	out, err := s.Store.FindSlugs(ctx, root, field, pattern, excludeID)
	if s.calls.Add(1) <= 2 {
		s.gate.Done()
		s.gate.Wait()
	}
	return out, err
}

func racingEngine(t *testing.T, store *racingStore, policyOpts []permalink.Option, opts ...permalink.EngineOption) *docEngine {
	t.Helper()

	reg := permalink.NewRegistry()
	require.NoError(t, reg.DefineType("book"))
	_, err := reg.DeclareSlug("book", []string{"title"}, policyOpts...)
	require.NoError(t, err)
	return permalink.New[*document.Document](reg, store, opts...)
}

func saveConcurrently(e *docEngine, docs ...*document.Document) []error {
	errs := make([]error, len(docs))
	var wg sync.WaitGroup
	for i, d := range docs {
		wg.Go(func() {
			errs[i] = e.Save(context.Background(), d)
		})
	}
	wg.Wait()
	return errs
}

func TestEngine_Race(t *testing.T) {
	t.Parallel()

	t.Run("resolution against the same state is repeatable", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		e, _ := newBookEngine(t)
		saveBook(t, e, "Dune")

		a := document.New("book", map[string]any{"title": "Dune"})
		b := document.New("book", map[string]any{"title": "Dune"})
		require.NoError(t, e.Rebuild(ctx, a))
		require.NoError(t, e.Rebuild(ctx, b))
		assert.Equal(t, a.Get("slug"), b.Get("slug"))
		assert.Equal(t, []string{"dune-1"}, a.Get("slug"))
	})

	t.Run("unguarded concurrent saves can duplicate a slug", func(t *testing.T) {
		t.Parallel()

		e := racingEngine(t, newRacingStore(), nil)
		a := document.New("book", map[string]any{"title": "Dune"})
		b := document.New("book", map[string]any{"title": "Dune"})

		for _, err := range saveConcurrently(e, a, b) {
			require.NoError(t, err)
		}
		assert.Equal(t, []string{"dune"}, a.Get("slug"))
		assert.Equal(t, []string{"dune"}, b.Get("slug"), "check-then-write is not atomic")
	})

	t.Run("indexed policy rejects the duplicate write", func(t *testing.T) {
		t.Parallel()

		e := racingEngine(t, newRacingStore(), []permalink.Option{permalink.Indexed()})
		a := document.New("book", map[string]any{"title": "Dune"})
		b := document.New("book", map[string]any{"title": "Dune"})

		errs := saveConcurrently(e, a, b)
		var conflicts int
		for _, err := range errs {
			if err != nil {
				require.ErrorIs(t, err, permalink.ErrConflict)
				require.ErrorIs(t, err, permalink.ErrStore)
				conflicts++
			}
		}
		assert.Equal(t, 1, conflicts)
		assert.ElementsMatch(t, []any{[]string{"dune"}, nil}, []any{a.Get("slug"), b.Get("slug")},
			"the rejected record keeps no unsaved slug")
	})

	t.Run("conflict retries resolve again", func(t *testing.T) {
		t.Parallel()

		e := racingEngine(t, newRacingStore(), []permalink.Option{permalink.Indexed()}, permalink.WithConflictRetries(2))
		a := document.New("book", map[string]any{"title": "Dune"})
		b := document.New("book", map[string]any{"title": "Dune"})

		for _, err := range saveConcurrently(e, a, b) {
			require.NoError(t, err)
		}
		assert.ElementsMatch(t, []string{"dune", "dune-1"}, []string{
			permalink.Current(a, "slug"),
			permalink.Current(b, "slug"),
		})
	})

	t.Run("scope lock serializes saves", func(t *testing.T) {
		t.Parallel()

		reg := permalink.NewRegistry()
		require.NoError(t, reg.DefineType("book"))
		_, err := reg.DeclareSlug("book", []string{"title"})
		require.NoError(t, err)
		locker := lock.NewMemory()
		e := permalink.New[*document.Document](reg, memstore.New(), permalink.WithLocker(locker))

		docs := make([]*document.Document, 20)
		for i := range docs {
			docs[i] = document.New("book", map[string]any{"title": "Dune"})
		}
		for _, err := range saveConcurrently(e, docs...) {
			require.NoError(t, err)
		}

		seen := make(map[string]bool, len(docs))
		for _, d := range docs {
			s := permalink.Current(d, "slug")
			assert.False(t, seen[s], "duplicate slug %s", s)
			seen[s] = true
		}
		assert.Len(t, seen, len(docs))
		assert.True(t, seen["dune"])
		assert.True(t, seen["dune-19"])
		assert.Zero(t, locker.Len())
	})
}
