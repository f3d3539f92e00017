package likes

import "sync"

const lockShards = 64

type pairKey struct {
	postID uint
	userID uint
}

// keyedMutex hands out one mutex per (post, user) pair. Entries are
// refcounted and removed when the last holder unlocks, and the bookkeeping
// map is sharded so unrelated pairs never queue on a common lock.
type keyedMutex struct {
	shards [lockShards]lockShard
}

type lockShard struct {
	mu      sync.Mutex
	entries map[pairKey]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	k := &keyedMutex{}
	for i := range k.shards {
		k.shards[i].entries = make(map[pairKey]*keyedEntry)
	}
	return k
}

func (k *keyedMutex) shard(key pairKey) *lockShard {
	h := uint64(key.postID)*0x9E3779B97F4A7C15 ^ uint64(key.userID)
	return &k.shards[h%lockShards]
}

// Lock blocks until key is free and returns its unlock function.
func (k *keyedMutex) Lock(key pairKey) func() {
	s := k.shard(key)

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		e = &keyedEntry{}
		s.entries[key] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()

		s.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(s.entries, key)
		}
		s.mu.Unlock()
	}
}

// size reports how many keys currently have holders or waiters.
func (k *keyedMutex) size() int {
	n := 0
	for i := range k.shards {
		s := &k.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}
