package middlewares

import (
	"log/slog"
	"net/http"
	"runtime"
)

// DefaultStackSize is the default maximum stack trace size in bytes.
const DefaultStackSize = 4096

// RecoverConfig configures the recover middleware.
type RecoverConfig struct {
	StackSize         int  // Max stack trace size (default: 4096)
	DisablePrintStack bool // Disable stack trace in logs
	// OnPanic writes the response after a panic. Defaults to a bare 500.
	OnPanic func(w http.ResponseWriter, r *http.Request, err *PanicError)
}

// RecoverOption configures RecoverConfig.
type RecoverOption func(*RecoverConfig)

// WithRecoverStackSize sets the maximum stack trace size.
func WithRecoverStackSize(size int) RecoverOption {
	return func(cfg *RecoverConfig) {
		cfg.StackSize = size
	}
}

// WithRecoverDisablePrintStack disables including stack trace in logs.
func WithRecoverDisablePrintStack() RecoverOption {
	return func(cfg *RecoverConfig) {
		cfg.DisablePrintStack = true
	}
}

// WithPanicResponder sets the function that writes the response after a panic.
func WithPanicResponder(fn func(w http.ResponseWriter, r *http.Request, err *PanicError)) RecoverOption {
	return func(cfg *RecoverConfig) {
		if fn != nil {
			cfg.OnPanic = fn
		}
	}
}

// Recover logs panics raised by downstream handlers and answers with OnPanic.
// http.ErrAbortHandler is re-raised so the server can abort the connection.
func Recover(log *slog.Logger, opts ...RecoverOption) func(http.Handler) http.Handler {
	cfg := &RecoverConfig{
		StackSize: DefaultStackSize,
		OnPanic: func(w http.ResponseWriter, _ *http.Request, _ *PanicError) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rv := recover()
				if rv == nil {
					return
				}
				if rv == http.ErrAbortHandler {
					panic(rv)
				}

				pe := &PanicError{Value: rv}
				attrs := []any{slog.Any("panic", rv)}
				if !cfg.DisablePrintStack {
					stack := make([]byte, cfg.StackSize)
					pe.Stack = stack[:runtime.Stack(stack, false)]
					attrs = append(attrs, slog.String("stack", string(pe.Stack)))
				}
				log.ErrorContext(r.Context(), "panic recovered", attrs...)
				cfg.OnPanic(w, r, pe)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
