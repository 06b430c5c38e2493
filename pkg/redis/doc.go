// Package redis opens go-redis clients from environment configuration.
//
// Open validates the URL scheme (redis:// or rediss://), applies pool and timeout
// settings from Config, and pings with linear backoff until the server answers:
//
//	var cfg redis.Config
//	if err := env.Parse(&cfg); err != nil {
//	    return err
//	}
//	if cfg.Enabled() {
//	    client, err := redis.Open(ctx, cfg)
//	    ...
//	}
//
// The permalink service uses Redis only for distributed scope locks (see package lock).
// Healthcheck and Shutdown return hooks for the server lifecycle.
package redis
