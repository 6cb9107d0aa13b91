package core

import "sync"

// KeyedMutex serializes critical sections per string key while leaving
// different keys fully independent. Locks are created on demand and dropped
// once no goroutine holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// Lock acquires the lock for `key` and returns its unlock function.
func (km *KeyedMutex) Lock(key string) func() {
	km.mu.Lock()
	if km.locks == nil {
		km.locks = make(map[string]*keyedLock)
	}
	lock, ok := km.locks[key]
	if !ok {
		lock = &keyedLock{}
		km.locks[key] = lock
	}
	lock.refs++
	km.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		km.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}
}
