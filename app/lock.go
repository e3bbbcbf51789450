package app

import "sync"

// keyedMutex serializes work per proposal id. Entries are dropped when the
// last holder unlocks.
type keyedMutex struct {
	mtx   sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mtx  sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mtx.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mtx.Unlock()

	e.mtx.Lock()
	return func() {
		e.mtx.Unlock()
		k.mtx.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mtx.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mtx.Lock()
	defer k.mtx.Unlock()
	return len(k.locks)
}
