package ratelimit

import (
	"sync"
	"time"
)

// Limiter is the narrow contract the rest of the system sees: one call,
// one answer. Implementations are constructed once with explicit
// configuration; there is no ambient global state.
type Limiter interface {
	Allow(key string) bool
}

// MemoryStore is a fixed-window in-memory limiter.
type MemoryStore struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	data   map[string]*entry
}

type entry struct {
	count     int
	resetTime time.Time
}

func NewMemoryStore(max int, window time.Duration) *MemoryStore {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	store := &MemoryStore{
		max:    max,
		window: window,
		data:   make(map[string]*entry),
	}

	go store.cleanup()

	return store
}

func (s *MemoryStore) Allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if e, exists := s.data[key]; exists && now.Before(e.resetTime) {
		if e.count >= s.max {
			return false
		}
		e.count++
		return true
	}

	s.data[key] = &entry{
		count:     1,
		resetTime: now.Add(s.window),
	}

	return true
}

func (s *MemoryStore) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
}

func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		now := time.Now()

		for key, e := range s.data {
			if now.After(e.resetTime) {
				delete(s.data, key)
			}
		}

		s.mu.Unlock()
	}
}
