package service

import "sync"

// keyedMutex serializes critical sections per entity id. Check-then-act
// sequences (deadline zero-fill, panel average recomputation) run under the
// entity's lock so concurrent requests cannot both pass the precondition.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[uint]*sync.Mutex)}
}

func (k *keyedMutex) lock(id uint) func() {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
