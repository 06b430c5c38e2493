package lock

import (
	"context"
	"errors"
	"sync"
)

type memEntry struct {
	sem  chan struct{}
	refs int
}

// Memory is an in-process keyed mutex. Waiters block until the holder unlocks
// or their context ends.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memEntry
}

// NewMemory creates an empty in-process locker.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*memEntry)}
}

// Lock blocks until key is free. The returned unlock fails with ErrNotHeld when called twice.
func (m *Memory) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &memEntry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e)
		return nil, errors.Join(ErrNotAcquired, ctx.Err())
	}

	var once sync.Once
	return func(context.Context) error {
		err := ErrNotHeld
		once.Do(func() {
			<-e.sem
			m.release(key, e)
			err = nil
		})
		return err
	}, nil
}

func (m *Memory) release(key string, e *memEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// Len returns the number of keys held or waited on.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
