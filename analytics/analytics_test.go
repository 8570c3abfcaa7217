package analytics

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/walletmind/walletmind/pkg/logging"
)

type stubSink struct {
	events []*Event
	err    error
}

func (s *stubSink) Record(ctx context.Context, event *Event) error {
	s.events = append(s.events, event)
	return s.err
}

func (s *stubSink) Close() error {
	return s.err
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventCascadeStart, "session-1", map[string]any{"intent": "balance"})

	if event.ID == "" {
		t.Errorf("Expected event id to be set")
	}
	if event.Type != EventCascadeStart {
		t.Errorf("Expected type %s, got %s", EventCascadeStart, event.Type)
	}
	if event.SessionID != "session-1" {
		t.Errorf("Expected session-1, got %s", event.SessionID)
	}
	if event.Timestamp.IsZero() {
		t.Errorf("Expected timestamp to be set")
	}
}

func TestNopSink(t *testing.T) {
	sink := NewNopSink()

	if err := sink.Record(context.Background(), NewEvent(EventDecision, "", nil)); err != nil {
		t.Errorf("NopSink.Record returned error: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("NopSink.Close returned error: %v", err)
	}
}

func TestMultiSinkForwardsToAll(t *testing.T) {
	a := &stubSink{}
	b := &stubSink{}
	sink := NewMultiSink(a, b)

	event := NewEvent(EventWriterDone, "session-1", nil)
	if err := sink.Record(context.Background(), event); err != nil {
		t.Errorf("Record returned error: %v", err)
	}

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("Expected both sinks to receive the event, got %d and %d", len(a.events), len(b.events))
	}
}

func TestMultiSinkFailureDoesNotStopOthers(t *testing.T) {
	failing := &stubSink{err: errors.New("sink down")}
	healthy := &stubSink{}
	sink := NewMultiSink(failing, healthy)

	err := sink.Record(context.Background(), NewEvent(EventGuardFail, "", nil))
	if err == nil {
		t.Errorf("Expected joined error from failing sink")
	}

	if len(healthy.events) != 1 {
		t.Errorf("Healthy sink did not receive the event after an earlier failure")
	}
}

func TestSlogSinkWritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	sink := NewSlogSink(logger)

	event := NewEvent(EventDecision, "session-9", map[string]any{"path": "return"})
	if err := sink.Record(context.Background(), event); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, EventDecision) {
		t.Errorf("Log output missing event type: %s", out)
	}
	if !strings.Contains(out, "session-9") {
		t.Errorf("Log output missing session id: %s", out)
	}
	if !strings.Contains(out, `"path":"return"`) {
		t.Errorf("Log output missing event field: %s", out)
	}
}

func TestPrometheusSinkCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(&PrometheusConfig{Registerer: reg})
	ctx := context.Background()

	sink.Record(ctx, NewEvent(EventDecision, "s1", map[string]any{"path": "escalate"}))
	sink.Record(ctx, NewEvent(EventGuardFail, "s1", map[string]any{
		"failures": []string{"unknown_amount", "missing_disclaimer"},
	}))
	sink.Record(ctx, NewEvent(EventPerformance, "s1", map[string]any{
		"stage_ms":      map[string]float64{"writer": 120},
		"fallback_used": true,
	}))

	if got := testutil.ToFloat64(sink.decisions.WithLabelValues("escalate")); got != 1 {
		t.Errorf("Expected 1 escalate decision, got %v", got)
	}
	if got := testutil.ToFloat64(sink.escalations); got != 1 {
		t.Errorf("Expected 1 escalation, got %v", got)
	}
	if got := testutil.ToFloat64(sink.guardFailures.WithLabelValues("unknown_amount")); got != 1 {
		t.Errorf("Expected 1 unknown_amount failure, got %v", got)
	}
	if got := testutil.ToFloat64(sink.fallbacks); got != 1 {
		t.Errorf("Expected 1 fallback, got %v", got)
	}
	if got := testutil.ToFloat64(sink.events.WithLabelValues(EventDecision)); got != 1 {
		t.Errorf("Expected 1 decision event, got %v", got)
	}
}

func TestPostgresSinkDropsWhenBufferFull(t *testing.T) {
	// hand-built sink with no drain goroutine, so the buffer stays full
	sink := &PostgresSink{
		events: make(chan *Event, 1),
		done:   make(chan struct{}),
		logger: logging.WithComponent("analytics"),
	}
	ctx := context.Background()

	if err := sink.Record(ctx, NewEvent(EventCascadeStart, "", nil)); err != nil {
		t.Fatalf("First record failed: %v", err)
	}
	if err := sink.Record(ctx, NewEvent(EventCascadeStart, "", nil)); err != nil {
		t.Fatalf("Second record failed: %v", err)
	}

	if got := sink.Dropped(); got != 1 {
		t.Errorf("Expected 1 dropped event, got %d", got)
	}
}

func TestPostgresSinkRecordAfterClose(t *testing.T) {
	sink := &PostgresSink{
		events: make(chan *Event, 1),
		done:   make(chan struct{}),
		logger: logging.WithComponent("analytics"),
		closed: true,
	}

	if err := sink.Record(context.Background(), NewEvent(EventCascadeStart, "", nil)); err == nil {
		t.Errorf("Expected error recording to a closed sink")
	}
}

func TestPostgresConfigValidate(t *testing.T) {
	cfg := DefaultPostgresConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}

	cfg.Port = -1
	if err := cfg.Validate(); err == nil {
		t.Errorf("Expected error for invalid port")
	}
}
