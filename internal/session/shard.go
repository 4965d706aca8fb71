package session

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// shard owns a slice of the key space. mu guards the maps only; each session
// carries its own mutex so that a slow append never blocks other keys.
type shard struct {
	mu    sync.RWMutex
	byKey map[string]*session
	byID  map[string]*session
}

func newShard() *shard {
	return &shard{
		byKey: make(map[string]*session),
		byID:  make(map[string]*session),
	}
}

func shardIndex(key string, n int) int {
	return int(xxhash.Sum64String(key) % uint64(n))
}

// current returns the session bound to key, creating one when the key is
// unseen. created reports whether a new session was made.
func (sh *shard) current(key string, at time.Time) (s *session, created bool) {
	sh.mu.RLock()
	s = sh.byKey[key]
	sh.mu.RUnlock()
	if s != nil {
		return s, false
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if s = sh.byKey[key]; s != nil {
		return s, false
	}
	s = &session{id: uuid.NewString(), key: key, firstSeen: at, last: at}
	s.lastSeen.Store(at.UnixNano())
	sh.byKey[key] = s
	sh.byID[s.id] = s
	return s, true
}

// replace binds a fresh session to key if key still points at old.
func (sh *shard) replace(key string, old *session, at time.Time) (s *session, created bool) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if cur := sh.byKey[key]; cur != old && cur != nil {
		return cur, false
	}
	s = &session{id: uuid.NewString(), key: key, firstSeen: at, last: at}
	s.lastSeen.Store(at.UnixNano())
	sh.byKey[key] = s
	sh.byID[s.id] = s
	return s, true
}

func (sh *shard) lookup(id string) *session {
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.byID[id]
}

func (sh *shard) sessions() []*session {
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	out := make([]*session, 0, len(sh.byID))
	for _, s := range sh.byID {
		out = append(out, s)
	}
	return out
}

// evict drops s from both maps. The key binding is only removed when it
// still points at s, since a newer session may already own the key.
func (sh *shard) evict(s *session) bool {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.byID[s.id]; !ok {
		return false
	}
	delete(sh.byID, s.id)
	if sh.byKey[s.key] == s {
		delete(sh.byKey, s.key)
	}
	return true
}
