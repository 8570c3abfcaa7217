package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/walletmind/walletmind/config"
	"github.com/walletmind/walletmind/pkg/logging"
)

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	BufferSize int
}

// DefaultPostgresConfig returns default PostgreSQL configuration.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:       "localhost",
		Port:       5432,
		User:       "postgres",
		Password:   "postgres",
		DBName:     "walletmind",
		SSLMode:    "disable",
		BufferSize: 256,
	}
}

// Validate checks the configuration.
func (c *PostgresConfig) Validate() error {
	return config.ValidatePostgresConfig(c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// PostgresSink persists events through a bounded buffer. Record never
// blocks: when the buffer is full the event is dropped and counted.
// Insert failures are logged, not returned.
type PostgresSink struct {
	db     *sql.DB
	events chan *Event
	done   chan struct{}
	logger *slog.Logger

	mu      sync.Mutex
	dropped int
	closed  bool
}

// NewPostgresSink connects to PostgreSQL, ensures the events table
// exists, and starts the background writer.
func NewPostgresSink(cfg *PostgresConfig) (*PostgresSink, error) {
	if cfg == nil {
		cfg = DefaultPostgresConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 256
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	sink := &PostgresSink{
		db:     db,
		events: make(chan *Event, bufferSize),
		done:   make(chan struct{}),
		logger: logging.WithComponent("analytics"),
	}

	if err := sink.createTable(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	go sink.drain()

	return sink, nil
}

func (s *PostgresSink) createTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS analytics_events (
		id VARCHAR(64) PRIMARY KEY,
		type VARCHAR(64) NOT NULL,
		session_id VARCHAR(255),
		recorded_at TIMESTAMP NOT NULL,
		fields JSONB
	);
	CREATE INDEX IF NOT EXISTS idx_analytics_events_type ON analytics_events(type);
	CREATE INDEX IF NOT EXISTS idx_analytics_events_recorded_at ON analytics_events(recorded_at);
	`

	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Record queues the event for the background writer. A full buffer drops
// the event rather than blocking the caller.
func (s *PostgresSink) Record(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("analytics sink is closed")
	}

	select {
	case s.events <- event:
		return nil
	default:
		s.dropped++
		s.logger.Warn("analytics buffer full, event dropped",
			"event_id", event.ID, "dropped_total", s.dropped)
		return nil
	}
}

func (s *PostgresSink) drain() {
	defer close(s.done)
	for event := range s.events {
		if err := s.insert(event); err != nil {
			s.logger.Warn("failed to persist analytics event", "event_id", event.ID, "error", err)
		}
	}
}

func (s *PostgresSink) insert(event *Event) error {
	fieldsJSON := []byte("{}")
	if len(event.Fields) > 0 {
		var err error
		fieldsJSON, err = json.Marshal(event.Fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
	INSERT INTO analytics_events (id, type, session_id, recorded_at, fields)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Type,
		event.SessionID,
		event.Timestamp,
		string(fieldsJSON),
	)

	if err != nil {
		return fmt.Errorf("failed to insert analytics event: %w", err)
	}

	return nil
}

// Dropped reports how many events the buffer has discarded.
func (s *PostgresSink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close stops accepting events, waits for the queue to flush, and closes
// the database connection.
func (s *PostgresSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()

	<-s.done
	return s.db.Close()
}
