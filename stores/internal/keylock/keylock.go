// Package keylock provides one mutex per string key. Locks for keys nobody
// holds are dropped, so the map stays as small as the set of busy keys.
package keylock

import "sync"

type ref struct {
	mu      sync.Mutex
	waiters int
}

type Locker struct {
	mu    sync.Mutex
	locks map[string]*ref
}

func New() *Locker {
	return &Locker{locks: make(map[string]*ref)}
}

// Lock blocks until key is free and returns the matching unlock function.
func (l *Locker) Lock(key string) (unlock func()) {
	l.mu.Lock()
	r, ok := l.locks[key]
	if !ok {
		r = &ref{}
		l.locks[key] = r
	}
	r.waiters++
	l.mu.Unlock()

	r.mu.Lock()
	return func() {
		r.mu.Unlock()
		l.mu.Lock()
		r.waiters--
		if r.waiters == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// Len reports how many keys are currently locked or waited on.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
