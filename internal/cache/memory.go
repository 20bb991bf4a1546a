package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store used in tests and as a last-resort
// fallback when no database handle is available. Entries are evicted lazily.
type MemoryStore struct {
	mu    sync.Mutex
	data  map[string]memoryEntry
	clock func() time.Time
}

type memoryEntry struct {
	value     []byte
	count     int64
	expiresAt time.Time
}

// NewMemoryStore constructs an in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:  make(map[string]memoryEntry),
		clock: time.Now,
	}
}

func (s *MemoryStore) IncrementWithTTL(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}

	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[key]
	if !ok || now.After(entry.expiresAt) {
		entry = memoryEntry{expiresAt: now.Add(window)}
	}
	entry.count++
	s.data[key] = entry

	return entry.count, entry.expiresAt.Sub(now), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	expiry := time.Time{}
	if ttl > 0 {
		expiry = s.clock().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = memoryEntry{value: value, expiresAt: expiry}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && s.clock().After(entry.expiresAt) {
		delete(s.data, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}
