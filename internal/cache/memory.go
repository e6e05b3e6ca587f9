package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   []byte
	storedAt  time.Time
	expiresAt time.Time
}

// Memory is an in-process Store for tests and single-shot CLI runs.
// Expired entries are dropped lazily on read.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	nowFunc func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		nowFunc: time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if m.nowFunc().After(e.expiresAt) {
		m.mu.Lock()
		// Re-check: a concurrent Put may have refreshed the entry.
		if cur, ok := m.entries[key]; ok && m.nowFunc().After(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.payload, true, nil
}

func (m *Memory) Put(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	now := m.nowFunc()
	m.mu.Lock()
	m.entries[key] = memoryEntry{
		payload:   payload,
		storedAt:  now,
		expiresAt: now.Add(ttl),
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

// Len returns the number of stored entries, including not-yet-swept
// expired ones.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
