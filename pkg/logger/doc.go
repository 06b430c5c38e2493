// Package logger builds slog loggers with context extraction and optional Sentry reporting.
//
// # Configuration
//
// Config is loaded from the environment:
//
//	LOG_LEVEL           debug, info, warn or error (default info)
//	LOG_FORMAT          json or text (default json)
//	SENTRY_DSN          enables Sentry when set
//	SENTRY_ENVIRONMENT  Sentry environment (default production)
//	SENTRY_MIN_LEVEL    lowest level stored in Sentry, warn or error (default warn)
//
//	var cfg logger.Config
//	if err := env.Parse(&cfg); err != nil { ... }
//	log, err := logger.New(cfg, middlewares.RequestIDExtractor())
//	defer logger.Flush(2 * time.Second)
//
// Errors always create Sentry issues; warnings are stored as Sentry logs unless
// SENTRY_MIN_LEVEL is error. If Sentry fails to initialize, the logger keeps
// writing to stdout.
//
// # Context Extractors
//
// A ContextExtractor pulls one attribute out of the logging context. Extractors
// run on every call, so request-scoped values are always fresh:
//
//	ctx = logger.WithAttrs(ctx, slog.String("type", "book"))
//	log, _ := logger.New(cfg, logger.ContextAttrs())
//	log.InfoContext(ctx, "slug built") // includes type=book
//
// Decorate adds extractors to any slog.Handler.
//
// NewNope returns a logger that discards everything; it is the default for
// components constructed without a logger.
package logger
