package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryConfig holds in-memory cache configuration
type MemoryConfig struct {
	// MaxEntries is the size threshold that triggers an eviction sweep.
	MaxEntries int
}

// DefaultMemoryConfig returns the default bounded-cache configuration
func DefaultMemoryConfig() *MemoryConfig {
	return &MemoryConfig{MaxEntries: 100}
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is a mutex-guarded TTL map. Once the entry count exceeds
// MaxEntries a sweep drops expired entries, then the earliest-expiring
// entries until the bound holds again.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	maxEntries int
}

// NewMemoryStore creates a new bounded in-memory store
func NewMemoryStore(config *MemoryConfig) *MemoryStore {
	if config == nil {
		config = DefaultMemoryConfig()
	}
	maxEntries := config.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryConfig().MaxEntries
	}
	return &MemoryStore{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
	}
}

// Get implements Store
func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.expired(time.Now()) {
		return "", false, nil
	}
	return e.value, true, nil
}

// Set implements Store
func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	s.entries[key] = e

	if len(s.entries) > s.maxEntries {
		s.sweepLocked()
	}
	return nil
}

// Delete implements Store
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Clear implements Store
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]memoryEntry)
	return nil
}

// Len returns the current entry count.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// sweepLocked drops expired entries, then the earliest-expiring live ones
// until the store fits the bound. Callers hold the write lock.
func (s *MemoryStore) sweepLocked() {
	now := time.Now()
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
		}
	}
	if len(s.entries) <= s.maxEntries {
		return
	}

	type aged struct {
		key       string
		expiresAt time.Time
	}
	ordered := make([]aged, 0, len(s.entries))
	for key, e := range s.entries {
		expires := e.expiresAt
		if expires.IsZero() {
			// entries without TTL evict last
			expires = now.Add(24 * time.Hour * 365)
		}
		ordered = append(ordered, aged{key: key, expiresAt: expires})
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].expiresAt.Before(ordered[j].expiresAt)
	})
	for _, a := range ordered {
		if len(s.entries) <= s.maxEntries {
			break
		}
		delete(s.entries, a.key)
	}
}
