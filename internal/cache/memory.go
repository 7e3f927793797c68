package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryProvider is an in-process TTL cache. When MaxEntries is reached the entry closest
// to expiry is evicted.
type MemoryProvider struct {
	mu         sync.Mutex
	data       map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

// NewMemoryProvider creates an in-memory Provider. maxEntries <= 0 means unbounded.
func NewMemoryProvider(maxEntries int) *MemoryProvider {
	return &MemoryProvider{data: make(map[string]memoryEntry), maxEntries: maxEntries, now: time.Now}
}

// Get returns a copy of the value, or ErrCacheMiss when absent or expired.
func (m *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if m.expired(entry) {
		delete(m.data, key)
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), entry.value...), nil
}

// Set stores a copy of value. ttl <= 0 never expires.
func (m *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = m.now().Add(ttl)
	}
	if _, exists := m.data[key]; !exists && m.maxEntries > 0 && len(m.data) >= m.maxEntries {
		m.evictLocked()
	}
	m.data[key] = memoryEntry{value: append([]byte(nil), value...), expiresAt: expires}
	return nil
}

// Del removes an entry.
func (m *MemoryProvider) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Ping always succeeds.
func (m *MemoryProvider) Ping(context.Context) error { return nil }

// Close drops every entry.
func (m *MemoryProvider) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]memoryEntry)
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *MemoryProvider) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func (m *MemoryProvider) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && m.now().After(e.expiresAt)
}

func (m *MemoryProvider) evictLocked() {
	var (
		victim    string
		victimExp time.Time
		found     bool
	)
	for k, e := range m.data {
		if m.expired(e) {
			delete(m.data, k)
			return
		}
		if !found {
			victim, victimExp, found = k, e.expiresAt, true
			continue
		}
		if e.expiresAt.IsZero() {
			continue
		}
		if victimExp.IsZero() || e.expiresAt.Before(victimExp) {
			victim, victimExp = k, e.expiresAt
		}
	}
	if found {
		delete(m.data, victim)
	}
}
