package analytics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusConfig holds Prometheus sink configuration.
type PrometheusConfig struct {
	Namespace  string
	Registerer prometheus.Registerer
}

// DefaultPrometheusConfig returns the default Prometheus configuration.
func DefaultPrometheusConfig() *PrometheusConfig {
	return &PrometheusConfig{
		Namespace:  "walletmind",
		Registerer: prometheus.DefaultRegisterer,
	}
}

// PrometheusSink exposes cascade counters and latency histograms. The
// registerer is injectable so tests and embedders can use their own
// registry instead of the process-wide default.
type PrometheusSink struct {
	events        *prometheus.CounterVec
	decisions     *prometheus.CounterVec
	guardFailures *prometheus.CounterVec
	escalations   prometheus.Counter
	fallbacks     prometheus.Counter
	stageLatency  *prometheus.HistogramVec
}

// NewPrometheusSink creates a sink and registers its collectors.
func NewPrometheusSink(config *PrometheusConfig) *PrometheusSink {
	if config == nil {
		config = DefaultPrometheusConfig()
	}
	if config.Namespace == "" {
		config.Namespace = "walletmind"
	}
	registerer := config.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registerer)

	return &PrometheusSink{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "cascade",
			Name:      "events_total",
			Help:      "Total cascade events by type",
		}, []string{"type"}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "cascade",
			Name:      "decisions_total",
			Help:      "Total decisions by path",
		}, []string{"path"}),
		guardFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "cascade",
			Name:      "guard_failures_total",
			Help:      "Total guard failures by failure code",
		}, []string{"failure"}),
		escalations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "cascade",
			Name:      "escalations_total",
			Help:      "Total requests escalated to a human advisor",
		}),
		fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "cascade",
			Name:      "fallbacks_total",
			Help:      "Total requests answered by the safe fallback template",
		}),
		stageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: "cascade",
			Name:      "stage_latency_seconds",
			Help:      "Stage latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}),
	}
}

// Record maps the event onto the sink's collectors.
func (s *PrometheusSink) Record(ctx context.Context, event *Event) error {
	s.events.WithLabelValues(event.Type).Inc()

	switch event.Type {
	case EventDecision:
		if path, ok := event.Fields["path"].(string); ok {
			s.decisions.WithLabelValues(path).Inc()
			if path == "escalate" {
				s.escalations.Inc()
			}
		}
	case EventGuardFail:
		if failures, ok := event.Fields["failures"].([]string); ok {
			for _, failure := range failures {
				s.guardFailures.WithLabelValues(failure).Inc()
			}
		}
	case EventPerformance:
		if stages, ok := event.Fields["stage_ms"].(map[string]float64); ok {
			for stage, ms := range stages {
				s.stageLatency.WithLabelValues(stage).Observe(ms / 1000)
			}
		}
		if fallback, ok := event.Fields["fallback_used"].(bool); ok && fallback {
			s.fallbacks.Inc()
		}
	}

	return nil
}

// Close is a no-op; collectors stay registered for the process lifetime.
func (s *PrometheusSink) Close() error {
	return nil
}
