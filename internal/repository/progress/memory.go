package progress

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/taxdex/internal/domain"
	domprogress "github.com/kailas-cloud/taxdex/internal/domain/progress"
)

type memEntry struct {
	state   domprogress.State
	expires time.Time
}

// Memory is a process-local progress store. Entries expire ttl after their
// last write; a zero ttl keeps them until deleted.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates an empty in-memory progress store.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{entries: make(map[string]memEntry), ttl: ttl, now: time.Now}
}

// Set writes the state for id and drops expired entries.
func (m *Memory) Set(_ context.Context, id string, st domprogress.State) error {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if m.expired(e, now) {
			delete(m.entries, k)
		}
	}
	e := memEntry{state: st}
	if m.ttl > 0 {
		e.expires = now.Add(m.ttl)
	}
	m.entries[id] = e
	return nil
}

// Get returns the state for id, or domain.ErrNotFound.
func (m *Memory) Get(_ context.Context, id string) (domprogress.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok || m.expired(e, m.now()) {
		return domprogress.State{}, domain.ErrNotFound
	}
	return e.state, nil
}

// Delete removes the state for id.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

// Len returns the number of tracked entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) expired(e memEntry, now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}
