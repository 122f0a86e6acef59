package repository

import (
	"context"
	"sync"
	"time"
)

type counterEntry struct {
	count   int64
	resetAt time.Time
}

type memoryCounterStore struct {
	mu      sync.Mutex
	entries map[string]*counterEntry
	done    chan struct{}
	once    sync.Once
}

// NewMemoryCounterStore creates an in-process counter store. Call
// StartSweeper to bound memory and Stop on shutdown.
func NewMemoryCounterStore() *memoryCounterStore {
	return &memoryCounterStore{
		entries: make(map[string]*counterEntry),
		done:    make(chan struct{}),
	}
}

func (s *memoryCounterStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || now.After(entry.resetAt) {
		entry = &counterEntry{resetAt: now.Add(window)}
		s.entries[key] = entry
	}
	entry.count++
	return entry.count, entry.resetAt, nil
}

// StartSweeper periodically drops expired windows so the map stays bounded.
func (s *memoryCounterStore) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep(time.Now())
			case <-s.done:
				return
			}
		}
	}()
}

func (s *memoryCounterStore) Stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *memoryCounterStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.entries {
		if now.After(entry.resetAt) {
			delete(s.entries, key)
		}
	}
}
