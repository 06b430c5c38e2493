package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// New builds a logger writing to stdout in the configured format.
// When cfg.Sentry.DSN is set, warnings and errors are also sent to Sentry.
// Context extractors apply to every destination.
func New(cfg Config, extractors ...ContextExtractor) (*slog.Logger, error) {
	h, err := newHandler(os.Stdout, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Sentry.DSN != "" {
		sh, err := newSentryHandler(cfg.Sentry)
		if err != nil {
			// Sentry is optional: keep logging to stdout.
			slog.New(h).Error("failed to initialize Sentry", slog.Any("error", err))
		} else {
			h = fanout(h, sh)
		}
	}

	return slog.New(Decorate(h, extractors...)), nil
}

// NewNope creates a logger that discards all output.
func NewNope() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newHandler(w io.Writer, cfg Config) (slog.Handler, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch cfg.Format {
	case "", "json":
		return slog.NewJSONHandler(w, opts), nil
	case "text":
		return slog.NewTextHandler(w, opts), nil
	default:
		return nil, errors.Join(ErrInvalidFormat, fmt.Errorf("unknown log format %q", cfg.Format))
	}
}
