// Package server runs the HTTP server of permalinkd with graceful shutdown.
//
//	err := server.Run(router,
//		server.Address(":8080"),
//		server.Logger(log),
//		server.StartupHook(backfill.Start),
//		server.ShutdownHook(backfill.Stop),
//		server.ShutdownHook(db.Shutdown(pool)),
//	)
//
// Startup hooks run before the listener accepts connections. On SIGINT or
// SIGTERM the server stops accepting requests, waits for in-flight ones, then
// runs the shutdown hooks, all within ShutdownTimeout.
package server
