package rooms

import (
	"context"
	"sync"
)

// keyedLocks serializes work per string key. Holders of different keys proceed
// concurrently; two goroutines acquiring the same key take turns. Entries are
// dropped when the last interested goroutine releases, so the map does not
// grow with the total user population.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*lockEntry)}
}

// acquire blocks until the key's lock is held or ctx is canceled. On success it
// returns a release func and true.
func (k *keyedLocks) acquire(ctx context.Context, key string) (func(), bool) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e, false)
		return nil, false
	}
	return func() { k.release(key, e, true) }, true
}

func (k *keyedLocks) release(key string, e *lockEntry, held bool) {
	if held {
		<-e.sem
	}
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}
