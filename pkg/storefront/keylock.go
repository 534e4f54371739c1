package storefront

import "sync"

// keyedLock serializes work per cart pair within one process. Entries are
// reference counted and dropped when the last holder releases, so the map
// only holds pairs that are currently in use.
type keyedLock struct {
	mu      sync.Mutex
	entries map[lineKey]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{entries: make(map[lineKey]*keyedEntry)}
}

// lock blocks until key is held and returns the release func.
func (k *keyedLock) lock(key lineKey) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedLock) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
