package storage

import (
	"context"
	"sync"
	"time"

	"github.com/jmerrifield20/sundew/internal/session"
)

// MemoryStore is an in-memory, thread-safe verdict chain.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
	seen    map[string]bool
	now     func() time.Time
}

// NewMemoryStore creates a MemoryStore holding only the genesis entry.
func NewMemoryStore() *MemoryStore {
	now := time.Now().UTC()
	return &MemoryStore{
		entries: []*Entry{{
			Index:     0,
			Timestamp: now,
			Label:     "genesis",
			DataHash:  GenesisHash,
			PrevHash:  GenesisHash,
			Hash:      GenesisHash,
		}},
		seen: make(map[string]bool),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Emit appends v. A verdict for a session already in the chain is ignored.
func (m *MemoryStore) Emit(_ context.Context, v session.Verdict) error {
	_, sum, err := encodeVerdict(v)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[v.SessionID] {
		return nil
	}
	prev := m.entries[len(m.entries)-1]
	e := &Entry{
		Index:     len(m.entries),
		Timestamp: m.now(),
		SessionID: v.SessionID,
		Label:     string(v.Label),
		DataHash:  sum,
		PrevHash:  prev.Hash,
		Verdict:   &v,
	}
	e.Hash = hashEntry(e)
	m.entries = append(m.entries, e)
	m.seen[v.SessionID] = true
	return nil
}

// Verdicts returns every stored verdict in append order.
func (m *MemoryStore) Verdicts() []session.Verdict {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]session.Verdict, 0, len(m.entries)-1)
	for _, e := range m.entries[1:] {
		out = append(out, *e.Verdict)
	}
	return out
}

// Entries returns a copy of the chain, genesis included.
func (m *MemoryStore) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.entries))
	for i, e := range m.entries {
		out[i] = *e
	}
	return out
}

// Len counts entries, genesis included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Verify walks the chain and checks every hash.
func (m *MemoryStore) Verify(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return verifyChain(m.entries)
}

func (m *MemoryStore) Close() error { return nil }
