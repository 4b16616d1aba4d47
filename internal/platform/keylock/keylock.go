// Package keylock provides per-key read/write mutexes.
//
// Ledger writes and their paired aggregate updates must be applied as one
// atomic unit relative to other operations on the same project. Services take
// the project's lock around the read-merge-apply sequence so two concurrent
// submissions cannot both compute a delta against the same stale state.
// Membership moves additionally serialize on a member-scoped key, acquired
// before any project key so lock order stays fixed.
package keylock

import "sync"

// Keyed hands out one RWMutex per key. Locks are never evicted; the key space
// (active projects and members) is small and bounded.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func New() *Keyed {
	return &Keyed{locks: make(map[string]*sync.RWMutex)}
}

func (k *Keyed) get(key string) *sync.RWMutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		k.locks[key] = l
	}
	return l
}

func (k *Keyed) Lock(key string)    { k.get(key).Lock() }
func (k *Keyed) Unlock(key string)  { k.get(key).Unlock() }
func (k *Keyed) RLock(key string)   { k.get(key).RLock() }
func (k *Keyed) RUnlock(key string) { k.get(key).RUnlock() }
