package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/dmitrymomot/permalink/pkg/logger"
)

const (
	defaultAddress           = ":8080"
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultMaxHeaderBytes    = 1 << 20 // 1MB
	defaultShutdownTimeout   = 30 * time.Second
)

// Hook runs at startup or shutdown.
type Hook func(context.Context) error

type config struct {
	baseCtx         context.Context
	listener        net.Listener
	logger          *slog.Logger
	address         string
	startupHooks    []Hook
	shutdownHooks   []Hook
	shutdownTimeout time.Duration
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		baseCtx:         context.Background(),
		logger:          logger.NewNope(),
		address:         defaultAddress,
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Option configures Run.
type Option func(*config)

// Address sets the listen address. Defaults to ":8080".
func Address(addr string) Option {
	return func(c *config) {
		if addr != "" {
			c.address = addr
		}
	}
}

// Listener serves on ln instead of listening on the address.
func Listener(ln net.Listener) Option {
	return func(c *config) {
		c.listener = ln
	}
}

// Logger sets the server logger. If nil, logging is disabled.
func Logger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// BaseContext sets the parent of the signal context. Canceling it shuts the server down.
func BaseContext(ctx context.Context) Option {
	return func(c *config) {
		if ctx != nil {
			c.baseCtx = ctx
		}
	}
}

// ShutdownTimeout bounds the HTTP drain and the shutdown hooks together.
// Defaults to 30 seconds.
func ShutdownTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.shutdownTimeout = d
		}
	}
}

// StartupHook runs fn before the server accepts connections.
// Hooks run in registration order; the first failure aborts Run.
func StartupHook(fn Hook) Option {
	return func(c *config) {
		if fn != nil {
			c.startupHooks = append(c.startupHooks, fn)
		}
	}
}

// ShutdownHook runs fn after the HTTP server has drained.
// Hooks run in registration order and all of them run even when one fails.
//
//	server.ShutdownHook(db.Shutdown(pool))
func ShutdownHook(fn Hook) Option {
	return func(c *config) {
		if fn != nil {
			c.shutdownHooks = append(c.shutdownHooks, fn)
		}
	}
}
