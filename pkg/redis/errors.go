package redis

import "errors"

var (
	ErrNoURL             = errors.New("redis: connection URL is not set")
	ErrInvalidURL        = errors.New("redis: invalid connection URL")
	ErrUnreachable       = errors.New("redis: server unreachable")
	ErrHealthcheckFailed = errors.New("redis: healthcheck failed")
)
