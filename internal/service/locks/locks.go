// Package locks provides keyed in-process mutexes.
//
// The workspace serializes structural edits and snapshot operations per
// template, and version writes per subsection. Locks are never removed from
// the registry; the key space is bounded by live entity ids.
package locks

import "sync"

type Keyed struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[uint]*sync.Mutex)}
}

// Get returns the mutex for key, creating it on first use.
func (k *Keyed) Get(key uint) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}
