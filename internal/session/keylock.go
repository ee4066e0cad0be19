package session

import "sync"

// keyedMutex serializes work per identity without blocking other identities.
// Entries are reference-counted and removed once the last holder releases,
// so the map does not grow with the number of users ever seen.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
}

type lockEntry struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[int64]*lockEntry)}
}

func (k *keyedMutex) lock(identity int64) {
	k.mu.Lock()
	entry, ok := k.entries[identity]
	if !ok {
		entry = &lockEntry{}
		k.entries[identity] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.Lock()
}

func (k *keyedMutex) unlock(identity int64) {
	k.mu.Lock()
	entry := k.entries[identity]
	entry.refs--
	if entry.refs == 0 {
		delete(k.entries, identity)
	}
	k.mu.Unlock()

	entry.Unlock()
}
