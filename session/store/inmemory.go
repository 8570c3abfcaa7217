// Package store provides session storage backends: in-memory for tests and
// single-process runs, Redis and MongoDB for shared deployments.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/walletmind/walletmind/session"
)

// InMemoryStore implements session storage in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*session.Record
}

// NewInMemoryStore creates a new in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]*session.Record),
	}
}

// Save stores a copy of the record.
func (s *InMemoryStore) Save(ctx context.Context, record *session.Record) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("session record cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record.Clone()
	return nil
}

// Load returns a copy of the stored record.
func (s *InMemoryStore) Load(ctx context.Context, id string) (*session.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, exists := s.records[id]
	if !exists {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return record.Clone(), nil
}

// Delete removes a record.
func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[id]; !exists {
		return fmt.Errorf("session %s not found", id)
	}
	delete(s.records, id)
	return nil
}

// List returns all session IDs in the store.
func (s *InMemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	return ids, nil
}

// Count returns the number of records in the store.
func (s *InMemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Exists checks whether a session is stored.
func (s *InMemoryStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.records[id]
	return exists, nil
}

// Clear removes every record.
func (s *InMemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*session.Record)
	return nil
}
