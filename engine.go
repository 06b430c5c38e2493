package permalink

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/permalink/pkg/logger"
)

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	logger          *slog.Logger
	locker          Locker
	conflictRetries int
}

func defaultEngineOptions() *engineOptions {
	return &engineOptions{
		logger: logger.NewNope(),
	}
}

// WithLogger sets the logger for build and conflict events.
func WithLogger(l *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLocker holds a lock on the scope root while Save resolves and persists a slug.
// Without a locker, concurrent saves in one scope may produce the same slug.
func WithLocker(l Locker) EngineOption {
	return func(o *engineOptions) {
		o.locker = l
	}
}

// WithConflictRetries rebuilds and retries Save up to n times when the store reports ErrConflict.
// Only stores enforcing unique claims report conflicts, so this applies to indexed policies.
func WithConflictRetries(n int) EngineOption {
	return func(o *engineOptions) {
		if n > 0 {
			o.conflictRetries = n
		}
	}
}

// Engine maintains slugs for records of the types declared in a Registry.
type Engine[R Record] struct {
	registry *Registry
	store    Store[R]
	opts     *engineOptions
	lazy     singleflight.Group
}

// New creates an engine over registry and store.
func New[R Record](registry *Registry, store Store[R], opts ...EngineOption) *Engine[R] {
	o := defaultEngineOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Engine[R]{
		registry: registry,
		store:    store,
		opts:     o,
	}
}

// Registry returns the registry the engine was built with.
func (e *Engine[R]) Registry() *Registry { return e.registry }

// ShouldBuild reports whether the next persist must (re)compute the slug of rec.
func (e *Engine[R]) ShouldBuild(rec R) (bool, error) {
	p, err := e.registry.PolicyFor(rec.Type())
	if err != nil {
		return false, err
	}
	return shouldBuild(rec, p), nil
}

func shouldBuild(rec Record, p *Policy) bool {
	slugs, _ := SlugsOf(rec.Get(p.storageField))
	empty := len(slugs) == 0
	if p.permanent && !rec.IsNew() {
		return empty
	}
	if rec.IsNew() || empty || rec.Changed(p.storageField) {
		return true
	}
	return slices.ContainsFunc(p.fields, rec.Changed)
}

// BeforeSave is the pre-persist hook. It builds the slug when ShouldBuild holds.
// Hosts that persist records themselves call it right before writing.
func (e *Engine[R]) BeforeSave(ctx context.Context, rec R) error {
	p, err := e.registry.PolicyFor(rec.Type())
	if err != nil {
		return err
	}
	if !shouldBuild(rec, p) {
		return nil
	}
	root, err := e.registry.ResolveRoot(rec, p)
	if err != nil {
		return err
	}
	return e.build(ctx, rec, p, root)
}

// Rebuild recomputes the slug of rec regardless of ShouldBuild. It does not persist.
func (e *Engine[R]) Rebuild(ctx context.Context, rec R) error {
	p, err := e.registry.PolicyFor(rec.Type())
	if err != nil {
		return err
	}
	root, err := e.registry.ResolveRoot(rec, p)
	if err != nil {
		return err
	}
	return e.build(ctx, rec, p, root)
}

// Save runs the pre-persist hook and writes rec through the store.
// A failed build aborts the save before the store is called. On any failure the
// storage field is restored to the value it held before the call.
func (e *Engine[R]) Save(ctx context.Context, rec R) error {
	p, err := e.registry.PolicyFor(rec.Type())
	if err != nil {
		return err
	}

	before := rec.Get(p.storageField)
	for attempt := 0; ; attempt++ {
		err := e.saveOnce(ctx, rec, p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) || attempt >= e.opts.conflictRetries {
			rec.Set(p.storageField, before)
			return err
		}
		e.opts.logger.WarnContext(ctx, "slug conflict, retrying",
			slog.String("type", rec.Type()),
			slog.String("id", rec.ID()),
			slog.String("slug", Current(rec, p.storageField)),
			slog.Int("attempt", attempt+1),
		)
		rec.Set(p.storageField, before)
	}
}

func (e *Engine[R]) saveOnce(ctx context.Context, rec R, p *Policy) error {
	root, err := e.registry.ResolveRoot(rec, p)
	if err != nil {
		return err
	}

	if e.opts.locker != nil {
		unlock, err := e.opts.locker.Lock(ctx, lockKey(p, root))
		if err != nil {
			return errors.Join(ErrStore, err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				e.opts.logger.WarnContext(ctx, "release scope lock", slog.String("scope", root.Key()), slog.Any("error", err))
			}
		}()
	}

	if shouldBuild(rec, p) {
		if err := e.build(ctx, rec, p, root); err != nil {
			return err
		}
	}

	slugs, _ := SlugsOf(rec.Get(p.storageField))
	claim := Claim{
		Root:   root,
		Field:  p.storageField,
		Slugs:  slugs,
		Unique: p.indexed,
	}
	if err := e.store.Save(ctx, rec, claim); err != nil {
		return errors.Join(ErrStore, err)
	}
	return nil
}

func (e *Engine[R]) build(ctx context.Context, rec R, p *Policy, root ScopeRoot) error {
	current, _ := SlugsOf(rec.Get(p.storageField))

	var (
		candidate string
		retained  []string
	)
	if len(current) > 0 && (rec.IsNew() || rec.Changed(p.storageField)) {
		candidate = current[len(current)-1]
		retained = current[:len(current)-1]
		if p.history {
			retained = appendUnique(persistedSlugs(rec, p.storageField), retained...)
		}
	} else {
		c, err := p.Candidate(rec)
		if err != nil {
			return err
		}
		candidate = c
		retained = current
	}

	base := p.Normalize(candidate)
	if base == "" {
		return errors.Join(ErrBuilder, ErrEmptyCandidate)
	}

	next, err := e.resolve(ctx, rec, p, base, root)
	if err != nil {
		return err
	}

	if p.history {
		rec.Set(p.storageField, appendUnique(retained, next))
	} else {
		rec.Set(p.storageField, []string{next})
	}

	e.opts.logger.DebugContext(ctx, "slug built",
		slog.String("type", rec.Type()),
		slog.String("id", rec.ID()),
		slog.String("base", base),
		slog.String("slug", next),
		slog.String("scope", root.Key()),
	)
	return nil
}

// ToIdentifier returns the current slug of rec. A record without a slug is built and saved
// first; a legacy bare-string slug is wrapped into a sequence and saved.
// Concurrent calls for the same record share one build.
func (e *Engine[R]) ToIdentifier(ctx context.Context, rec R) (string, error) {
	p, err := e.registry.PolicyFor(rec.Type())
	if err != nil {
		return "", err
	}
	if slugs, legacy := SlugsOf(rec.Get(p.storageField)); len(slugs) > 0 && !legacy {
		return slugs[len(slugs)-1], nil
	}

	v, err, _ := e.lazy.Do(rec.Type()+"/"+rec.ID(), func() (any, error) {
		original := rec.Get(p.storageField)
		slugs, legacy := SlugsOf(original)
		switch {
		case legacy:
			rec.Set(p.storageField, slugs)
		case len(slugs) > 0:
			return slugs, nil
		}
		// An empty sequence always passes shouldBuild, so Save builds it.
		if err := e.Save(ctx, rec); err != nil {
			rec.Set(p.storageField, original)
			return nil, err
		}
		slugs, _ = SlugsOf(rec.Get(p.storageField))
		return slugs, nil
	})
	if err != nil {
		return "", err
	}

	// Callers joining an in-flight build hold their own copy of the record.
	shared := v.([]string)
	if len(shared) == 0 {
		return "", errors.Join(ErrBuilder, ErrEmptyCandidate)
	}
	if own, _ := SlugsOf(rec.Get(p.storageField)); !slices.Equal(own, shared) {
		rec.Set(p.storageField, slices.Clone(shared))
	}
	return shared[len(shared)-1], nil
}

// Root returns the lookup root covering the whole namespace of typeName.
func (e *Engine[R]) Root(typeName string) (ScopeRoot, error) {
	return e.registry.RootOf(typeName)
}

// Find looks a record up by key under root. Keys with native ID syntax are matched
// against record IDs, anything else against current and historical slugs.
func (e *Engine[R]) Find(ctx context.Context, root ScopeRoot, key string) (R, error) {
	var zero R

	p, err := e.policyForRoot(root)
	if err != nil {
		return zero, err
	}

	var rec R
	if e.store.IsNativeID(key) {
		rec, err = e.store.FindByID(ctx, root, key)
	} else {
		rec, err = e.store.FindBySlug(ctx, root, p.storageField, key)
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return zero, err
	case err != nil:
		return zero, errors.Join(ErrStore, err)
	}
	return rec, nil
}

// FindAll looks up every key under root, preserving the order of keys.
// It fails on the first key that matches nothing.
func (e *Engine[R]) FindAll(ctx context.Context, root ScopeRoot, keys ...string) ([]R, error) {
	out := make([]R, 0, len(keys))
	for _, key := range keys {
		rec, err := e.Find(ctx, root, key)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (e *Engine[R]) policyForRoot(root ScopeRoot) (*Policy, error) {
	if len(root.Types) == 0 {
		return nil, errors.Join(ErrConfiguration, ErrUnknownType)
	}
	var err error
	for _, t := range root.Types {
		var p *Policy
		if p, err = e.registry.PolicyFor(t); err == nil {
			return p, nil
		}
	}
	return nil, err
}

func lockKey(p *Policy, root ScopeRoot) string {
	return "permalink:" + p.storageField + ":" + root.Key()
}

// appendUnique appends items to seq, keeping the first occurrence of every string.
func appendUnique(seq []string, items ...string) []string {
	out := make([]string, 0, len(seq)+len(items))
	seen := make(map[string]struct{}, len(seq)+len(items))
	for _, v := range slices.Concat(seq, items) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func persistedSlugs(rec Record, field string) []string {
	if rec.IsNew() {
		return nil
	}
	ps, ok := rec.(Persisted)
	if !ok {
		return nil
	}
	slugs, _ := SlugsOf(ps.Persisted(field))
	return slugs
}
