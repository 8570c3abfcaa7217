package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/walletmind/walletmind/pkg/logging"
)

// maxTurns bounds how much history one session accumulates; the oldest
// turns roll off.
const maxTurns = 200

// Store defines the interface for session storage backends that operate on
// serializable session records.
type Store interface {
	Save(ctx context.Context, record *Record) error
	Load(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// Manager manages session records through a storage backend, with a
// write-through in-process cache.
type Manager struct {
	mu     sync.RWMutex
	store  Store
	cache  map[string]*Record
	logger *slog.Logger
}

// Option is a function that configures a Manager.
type Option func(*Manager)

// WithStore sets the store for the manager.
func WithStore(s Store) Option {
	return func(m *Manager) {
		m.store = s
	}
}

// WithLogger overrides the logger used by the manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a new session manager with the given options.
//
// Example:
//
//	mgr := session.NewManager(session.WithStore(store.NewInMemoryStore()))
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		cache: make(map[string]*Record),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.WithComponent("session_manager")
	}
	return m
}

// Create creates a new active session.
func (m *Manager) Create(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, fmt.Errorf("session id cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureStore(); err != nil {
		return nil, err
	}

	exists, err := m.store.Exists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check session existence: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("session %s already exists", id)
	}

	record := NewRecord(id)
	if err := m.store.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	m.cache[id] = record
	m.logger.Info("session created", "id", id)
	return record.Clone(), nil
}

// Get retrieves a session by ID, from cache first and the store second.
func (m *Manager) Get(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	if record, ok := m.cache[id]; ok {
		defer m.mu.RUnlock()
		return record.Clone(), nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if record, ok := m.cache[id]; ok {
		return record.Clone(), nil
	}
	if err := m.ensureStore(); err != nil {
		return nil, err
	}
	record, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	m.cache[id] = record
	return record.Clone(), nil
}

// GetOrCreate retrieves a session or creates it if it does not exist.
func (m *Manager) GetOrCreate(ctx context.Context, id string) (*Record, error) {
	if record, err := m.Get(ctx, id); err == nil {
		return record, nil
	}
	record, err := m.Create(ctx, id)
	if err == nil {
		return record, nil
	}
	// lost a race with a concurrent creator; the record exists now
	return m.Get(ctx, id)
}

// AppendTurn records one exchange on a session, creating the session if
// needed. Closed sessions reject new turns.
func (m *Manager) AppendTurn(ctx context.Context, id string, turn Turn) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if turn.AskedAt.IsZero() {
		turn.AskedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureStore(); err != nil {
		return err
	}

	record, ok := m.cache[id]
	if !ok {
		loaded, err := m.store.Load(ctx, id)
		if err == nil {
			record = loaded
		} else {
			record = NewRecord(id)
		}
		m.cache[id] = record
	}

	if record.State != StateActive {
		return fmt.Errorf("session %s is not active", id)
	}

	record.Turns = append(record.Turns, turn)
	if len(record.Turns) > maxTurns {
		record.Turns = record.Turns[len(record.Turns)-maxTurns:]
	}
	record.UpdatedAt = time.Now()

	if err := m.store.Save(ctx, record); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Close marks a session closed; its history stays loadable.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureStore(); err != nil {
		return err
	}

	record, ok := m.cache[id]
	if !ok {
		loaded, err := m.store.Load(ctx, id)
		if err != nil {
			return err
		}
		record = loaded
		m.cache[id] = record
	}
	if record.State == StateClosed {
		return fmt.Errorf("session %s already closed", id)
	}
	record.State = StateClosed
	record.UpdatedAt = time.Now()

	if err := m.store.Save(ctx, record); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	m.logger.Info("session closed", "id", id)
	return nil
}

// Delete removes a session entirely.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.cache, id)
	if err := m.ensureStore(); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Info("session deleted", "id", id)
	return nil
}

// List returns all session IDs.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ensureStore(); err != nil {
		return nil, err
	}
	return m.store.List(ctx)
}

// Count returns the number of stored sessions.
func (m *Manager) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ensureStore(); err != nil {
		return 0, err
	}
	return m.store.Count(ctx)
}

// CleanupClosed removes closed sessions untouched for longer than olderThan
// and returns how many were removed.
func (m *Manager) CleanupClosed(ctx context.Context, olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureStore(); err != nil {
		return 0, err
	}

	ids, err := m.store.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, id := range ids {
		record, err := m.store.Load(ctx, id)
		if err != nil {
			m.logger.Warn("cleanup load failed", "id", id, "error", err)
			continue
		}
		if record.State != StateClosed || record.UpdatedAt.After(cutoff) {
			continue
		}
		if err := m.store.Delete(ctx, id); err != nil {
			m.logger.Warn("cleanup delete failed", "id", id, "error", err)
			continue
		}
		delete(m.cache, id)
		removed++
	}
	m.logger.Info("cleanup completed", "removed", removed)
	return removed, nil
}

func (m *Manager) ensureStore() error {
	if m.store == nil {
		return fmt.Errorf("session manager store is not configured")
	}
	return nil
}
