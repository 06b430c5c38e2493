package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/permalink"
	"github.com/dmitrymomot/permalink/middlewares"
	"github.com/dmitrymomot/permalink/pkg/document"
	"github.com/dmitrymomot/permalink/pkg/health"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxBodyBytes          = 1 << 20
)

// Engine is the slug engine the API serves documents through.
type Engine = permalink.Engine[*document.Document]

// Enqueuer schedules a backfill of every unslugged record of a type.
type Enqueuer interface {
	Enqueue(ctx context.Context, typeName string) (bool, error)
}

type options struct {
	logger   *slog.Logger
	checks   health.Checks
	enqueuer Enqueuer
	timeout  time.Duration
}

// Option configures the API handler.
type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithChecks sets the dependencies probed by /readyz.
func WithChecks(checks health.Checks) Option {
	return func(o *options) {
		o.checks = checks
	}
}

// WithEnqueuer enables POST /_backfill/{type}.
func WithEnqueuer(e Enqueuer) Option {
	return func(o *options) {
		o.enqueuer = e
	}
}

// WithRequestTimeout bounds every request. Defaults to 10 seconds.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

type api struct {
	engine   *Engine
	logger   *slog.Logger
	enqueuer Enqueuer
}

// New returns the HTTP handler of permalinkd.
//
//	GET   /healthz
//	GET   /readyz
//	POST  /{type}                 create a record, building its slug
//	GET   /{type}/{key}           look up by id or by current or historical slug
//	PATCH /{type}/{key}           merge fields and save
//	POST  /_backfill/{type}       enqueue slug materialization
//
// Lookups of embedded types need the parent and relation query parameters.
func New(engine *Engine, opts ...Option) http.Handler {
	o := &options{
		logger:  slog.New(slog.DiscardHandler),
		timeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	a := &api{engine: engine, logger: o.logger, enqueuer: o.enqueuer}

	r := chi.NewRouter()
	r.Use(
		middlewares.RequestID(),
		middlewares.Recover(o.logger, middlewares.WithPanicResponder(a.panicked)),
	)

	r.Get("/healthz", health.LivenessHandler())
	r.Get("/readyz", health.ReadinessHandler(o.checks, health.WithLogger(o.logger)))

	r.Group(func(r chi.Router) {
		r.Use(middlewares.Timeout(o.timeout))
		r.Post("/_backfill/{type}", a.backfill)
		r.Post("/{type}", a.create)
		r.Get("/{type}/{key}", a.show)
		r.Patch("/{type}/{key}", a.update)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: http.StatusText(http.StatusNotFound), RequestID: requestID(r)})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: http.StatusText(http.StatusMethodNotAllowed), RequestID: requestID(r)})
	})

	return r
}

func (a *api) panicked(w http.ResponseWriter, r *http.Request, _ *middlewares.PanicError) {
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:     http.StatusText(http.StatusInternalServerError),
		RequestID: requestID(r),
	})
}

func requestID(r *http.Request) string {
	return middlewares.GetRequestID(r.Context())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
