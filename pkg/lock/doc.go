// Package lock provides keyed locks that satisfy permalink.Locker.
//
// The permalink engine resolves a slug and then writes it. Two writers in the same
// scope can both see the slug as free. Holding a lock keyed by the scope root
// across both steps closes that window.
//
// Memory serializes goroutines of one process:
//
//	engine := permalink.New[*document.Document](reg, store,
//	    permalink.WithLocker(lock.NewMemory()),
//	)
//
// Redis serializes processes sharing a Redis server. The lock expires after its TTL
// so a crashed holder cannot block a scope forever:
//
//	locker := lock.NewRedis(client, lock.WithTTL(5*time.Second))
//
// Both return an unlock function; calling it for a lock that is no longer held
// returns ErrNotHeld. Acquisition that ends with the context returns ErrNotAcquired.
package lock
