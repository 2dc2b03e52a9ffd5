package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps request timestamps in process memory. Suitable for a
// single instance; use RedisStore when running more than one.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]time.Time
	now     func() time.Time
}

// NewMemoryStore creates an in-memory rate limit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Take implements Store with a true sliding window: timestamps older than
// the window are pruned on every call.
func (s *MemoryStore) Take(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-window)

	kept := s.entries[key][:0]
	for _, ts := range s.entries[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit {
		s.entries[key] = kept
		return false, nil
	}

	s.entries[key] = append(kept, now)
	return true, nil
}

// Len returns the number of tracked keys, for tests.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
