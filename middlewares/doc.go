// Package middlewares provides net/http middleware for the permalink HTTP API.
// Each middleware has the func(http.Handler) http.Handler shape used by chi.
//
// # Request ID
//
// RequestID reuses an incoming X-Request-ID (or X-Correlation-ID) or generates a ULID,
// stores it in the request context and echoes it in the response:
//
//	r := chi.NewRouter()
//	r.Use(middlewares.RequestID())
//
// RequestIDExtractor puts the ID into every log entry made with the request context:
//
//	log, _ := logger.New(cfg, middlewares.RequestIDExtractor())
//
// # Recover
//
// Recover logs panics with their stack and answers with a 500, or with the
// function given to WithPanicResponder:
//
//	r.Use(middlewares.Recover(log, middlewares.WithPanicResponder(writeJSONError)))
//
// # Timeout
//
// Timeout puts a deadline on the request context:
//
//	r.Use(middlewares.Timeout(5 * time.Second))
package middlewares
