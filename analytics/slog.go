package analytics

import (
	"context"
	"log/slog"

	"github.com/walletmind/walletmind/pkg/logging"
)

// SlogSink writes events to structured logs.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink backed by the given logger. A nil logger
// falls back to the shared logger tagged with the analytics component.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = logging.WithComponent("analytics")
	}
	return &SlogSink{logger: logger}
}

// Record logs the event with its fields flattened into attributes.
func (s *SlogSink) Record(ctx context.Context, event *Event) error {
	attrs := []any{"event_id", event.ID, "type", event.Type}
	if event.SessionID != "" {
		attrs = append(attrs, "session_id", event.SessionID)
	}
	for key, value := range event.Fields {
		attrs = append(attrs, key, value)
	}
	s.logger.Info("analytics event", attrs...)
	return nil
}

// Close is a no-op.
func (s *SlogSink) Close() error {
	return nil
}
