// Package analytics records cascade lifecycle events. Emission is
// fire-and-forget: a failing sink is logged and never fails the request
// that produced the event.
package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the assistant cascade.
const (
	EventCascadeStart    = "cascade_start"
	EventWriterDone      = "writer_done"
	EventWriterError     = "writer_error"
	EventGuardFail       = "guard_fail"
	EventCriticDone      = "critic_done"
	EventDecision        = "decision"
	EventImproverUsed    = "improver_used"
	EventCascadeComplete = "cascade_complete"
	EventPerformance     = "performance_metrics"
)

// Event is a single analytics record.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	SessionID string         `json:"sessionId,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// NewEvent creates an event with a fresh id and the current time.
func NewEvent(eventType, sessionID string, fields map[string]any) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Fields:    fields,
	}
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, event *Event) error
	Close() error
}

// NopSink discards every event.
type NopSink struct{}

// NewNopSink creates a sink that does nothing.
func NewNopSink() *NopSink {
	return &NopSink{}
}

// Record discards the event.
func (s *NopSink) Record(ctx context.Context, event *Event) error {
	return nil
}

// Close is a no-op.
func (s *NopSink) Close() error {
	return nil
}

// MultiSink fans events out to several sinks. Every sink sees every
// event even when an earlier one fails.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a sink that forwards to all given sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Record forwards the event to every sink and joins their errors.
func (s *MultiSink) Record(ctx context.Context, event *Event) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (s *MultiSink) Close() error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
