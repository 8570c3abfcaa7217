package assistant

import (
	"log/slog"

	"github.com/walletmind/walletmind/analytics"
	"github.com/walletmind/walletmind/cache"
	"github.com/walletmind/walletmind/llm"
	"github.com/walletmind/walletmind/middleware"
	"github.com/walletmind/walletmind/session"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWriterClient sets the model client used for drafting.
func WithWriterClient(client llm.Client) Option {
	return func(o *Orchestrator) {
		o.writerClient = client
	}
}

// WithWriterConfig overrides the writer configuration.
func WithWriterConfig(config *WriterConfig) Option {
	return func(o *Orchestrator) {
		o.writerConfig = config
	}
}

// WithCriticClient sets the model client used for review.
func WithCriticClient(client llm.Client) Option {
	return func(o *Orchestrator) {
		o.criticClient = client
	}
}

// WithCriticConfig overrides the critic configuration.
func WithCriticConfig(config *CriticConfig) Option {
	return func(o *Orchestrator) {
		o.criticConfig = config
	}
}

// WithImproverClient sets the model client used for escalation rewrites.
func WithImproverClient(client llm.Client) Option {
	return func(o *Orchestrator) {
		o.improverClient = client
	}
}

// WithImproverConfig overrides the improver configuration.
func WithImproverConfig(config *ImproverConfig) Option {
	return func(o *Orchestrator) {
		o.improverConfig = config
	}
}

// WithCache sets the store backing the writer draft cache.
func WithCache(store cache.Store) Option {
	return func(o *Orchestrator) {
		o.cache = store
	}
}

// WithAnalytics sets the sink receiving cascade events.
func WithAnalytics(sink analytics.Sink) Option {
	return func(o *Orchestrator) {
		o.analytics = sink
	}
}

// WithTokenEstimator sets the estimator used for token accounting.
func WithTokenEstimator(estimator llm.TokenEstimator) Option {
	return func(o *Orchestrator) {
		o.estimator = estimator
	}
}

// WithDecisionPolicy overrides the routing policy.
func WithDecisionPolicy(policy DecisionPolicy) Option {
	return func(o *Orchestrator) {
		o.policy = policy
	}
}

// WithSessions enables per-session turn records.
func WithSessions(manager *session.Manager) Option {
	return func(o *Orchestrator) {
		o.sessions = manager
	}
}

// WithMiddleware appends middleware inside the always-present recovery
// layer, in the order given.
func WithMiddleware(middlewares ...middleware.Middleware) Option {
	return func(o *Orchestrator) {
		o.middlewares = append(o.middlewares, middlewares...)
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}
