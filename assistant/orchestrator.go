package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/walletmind/walletmind/analytics"
	"github.com/walletmind/walletmind/cache"
	"github.com/walletmind/walletmind/errors"
	"github.com/walletmind/walletmind/factpack"
	"github.com/walletmind/walletmind/flow"
	"github.com/walletmind/walletmind/grounding"
	"github.com/walletmind/walletmind/llm"
	"github.com/walletmind/walletmind/message"
	"github.com/walletmind/walletmind/middleware"
	"github.com/walletmind/walletmind/pkg/logging"
	"github.com/walletmind/walletmind/pkg/telemetry"
	"github.com/walletmind/walletmind/session"
)

// Flow state keys shared between stages.
const (
	keyQuery    = "query"
	keyIntent   = "intent"
	keySession  = "session_id"
	keyFacts    = "facts"
	keyDraft    = "draft"
	keyGuards   = "guards"
	keyCritic   = "critic"
	keyDecision = "decision"
	keyResult   = "result"
	keyStageMS  = "stage_ms"
	keyTokens   = "tokens"
	keyImprover = "improver_from_model"
)

// safeAnswerText is the deterministic last-resort answer. It contains no
// digits, so it passes the numeric guard unconditionally.
const safeAnswerText = "I ran into technical difficulties preparing this answer. Please try again in a moment."

// Orchestrator runs the full cascade: triage, writer, guards, critic,
// decision, and on escalation the improver with a re-guard. Answer always
// returns a Result; internal failures degrade to a clarification or the
// safe template instead of surfacing as errors.
type Orchestrator struct {
	writer    *Writer
	critic    *Critic
	improver  *Improver
	policy    DecisionPolicy
	analytics analytics.Sink
	estimator llm.TokenEstimator
	sessions  *session.Manager
	chain     *middleware.Chain
	flow      *flow.Flow
	logger    *slog.Logger

	writerClient   llm.Client
	criticClient   llm.Client
	improverClient llm.Client
	writerConfig   *WriterConfig
	criticConfig   *CriticConfig
	improverConfig *ImproverConfig
	cache          cache.Store
	middlewares    []middleware.Middleware
}

// New creates an orchestrator. Missing pieces get working defaults: a nop
// analytics sink, an in-memory cache, and nil model clients (each stage
// then degrades along its documented fallback path).
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		policy: DefaultDecisionPolicy(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = logging.WithComponent("orchestrator")
	}
	if o.analytics == nil {
		o.analytics = analytics.NewNopSink()
	}
	if o.estimator == nil {
		o.estimator = llm.CharEstimator{}
	}
	if o.cache == nil {
		o.cache = cache.NewMemoryStore(nil)
	}

	writerConfig := o.writerConfig
	if writerConfig == nil {
		writerConfig = DefaultWriterConfig()
	}
	if writerConfig.Cache == nil {
		writerConfig.Cache = o.cache
	}
	if writerConfig.Analytics == nil {
		writerConfig.Analytics = o.analytics
	}
	if writerConfig.Estimator == nil {
		writerConfig.Estimator = o.estimator
	}
	o.writer = NewWriter(o.writerClient, writerConfig)
	o.critic = NewCritic(o.criticClient, o.criticConfig)
	o.improver = NewImprover(o.improverClient, o.improverConfig)

	// Recovery always sits outermost so a panicking middleware cannot
	// take the request down either.
	stack := append([]middleware.Middleware{middleware.NewRecovery(o.logger)}, o.middlewares...)
	o.chain = middleware.NewChain(stack...)
	o.flow = o.buildFlow()
	return o
}

// Answer processes a single query end to end.
func (o *Orchestrator) Answer(ctx context.Context, req Request) *Result {
	start := time.Now()
	if ctx == nil {
		ctx = context.Background()
	}

	intent := req.Intent
	if !intent.Valid() {
		intent = ClassifyIntent(req.Query)
	}

	o.emit(ctx, req.SessionID, analytics.EventCascadeStart, map[string]any{
		"intent":       string(intent),
		"query_tokens": o.estimator.EstimateTokens(req.Query),
	})

	mctx := middleware.NewContext(ctx)
	mctx.Input = req.Query
	mctx.SessionID = req.SessionID

	var result *Result
	chainErr := o.chain.Execute(mctx, func(mc *middleware.Context) error {
		result = o.runCascade(mc.Context(), mc.Input, intent, req.SessionID, req.Facts)
		if text := resultText(result); text != "" {
			mc.Response = message.NewMessage(message.RoleAssistant, text)
		}
		return nil
	})
	if chainErr != nil || result == nil {
		// A middleware rejected the request (rate limit, validator)
		// before the cascade ran.
		o.logger.Warn("request rejected before the cascade", "error", chainErr)
		result = o.safeResult("middleware rejection")
	}

	result.Analytics.SessionID = req.SessionID
	result.Analytics.Elapsed = time.Since(start)

	o.emit(ctx, req.SessionID, analytics.EventCascadeComplete, map[string]any{
		"kind":          string(result.Kind),
		"path":          string(result.Analytics.Decision.Path),
		"reason":        result.Analytics.Decision.Reason,
		"elapsed_ms":    durationMS(result.Analytics.Elapsed),
		"fallback_used": result.Analytics.FallbackUsed,
	})

	o.recordTurn(ctx, req.SessionID, mctx.Input, result)
	return result
}

// runCascade executes the flow and converts every failure mode into a
// Result. The deferred recover is the last line of defense behind the
// per-stage fallbacks.
func (o *Orchestrator) runCascade(ctx context.Context, query string, intent grounding.Intent, sessionID string, fp *factpack.FactPack) (res *Result) {
	state := flow.State{
		keyQuery:   query,
		keyIntent:  intent,
		keySession: sessionID,
		keyFacts:   fp,
		keyStageMS: map[string]float64{},
		keyTokens:  map[string]int{},
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("cascade panicked", "panic", r, "session_id", sessionID)
			res = o.safeResult("panic")
		}
		attachSummary(res, state)
		o.emit(ctx, sessionID, analytics.EventPerformance, map[string]any{
			"stage_ms":      stageTimes(state),
			"fallback_used": res.Analytics.FallbackUsed,
		})
	}()

	final, err := o.flow.Execute(ctx, state)
	if err != nil {
		if errors.IsValidation(err) {
			// Bad input is the caller's to fix; ask rather than
			// pretend an outage.
			o.logger.Warn("cascade rejected invalid input", "error", err)
			res = &Result{
				Kind:    KindClarify,
				Clarify: BuildClarification("invalid_request", nil, nil, nil),
			}
			res.Analytics.Decision = Decision{Path: PathClarify, Reason: "invalid_request"}
			return res
		}
		o.logger.Error("cascade flow failed", "error", err, "session_id", sessionID)
		res = o.safeResult("flow error")
		return res
	}

	res, ok := final[keyResult].(*Result)
	if !ok || res == nil {
		o.logger.Error("cascade finished without a result", "session_id", sessionID)
		res = o.safeResult("missing result")
	}
	return res
}

// buildFlow wires the cascade graph. The first stage added is the start.
func (o *Orchestrator) buildFlow() *flow.Flow {
	return flow.NewBuilder().
		AddGate("triage", o.triageGate, map[string]string{
			"bypass": "improve",
			"write":  "writer",
		}).
		AddStage("writer", o.timed("writer", o.writerStage), "guards").
		AddStage("guards", o.timed("guards", o.guardStage), "review_gate").
		AddGate("review_gate", o.reviewGate, map[string]string{
			"skip":   "decide",
			"review": "critic",
		}).
		AddStage("critic", o.timed("critic", o.criticStage), "decide").
		AddStage("decide", o.timed("decide", o.decideStage), "branch").
		AddGate("branch", o.branchGate, map[string]string{
			"return":   "finalize",
			"clarify":  "clarify",
			"escalate": "improve",
		}).
		AddStage("improve", o.timed("improve", o.improveStage), "reguard").
		AddGate("reguard", o.reguardGate, map[string]string{
			"pass": "finalize",
			"fail": "safe",
		}).
		AddStage("finalize", o.finalizeStage, "").
		AddStage("clarify", o.clarifyStage, "").
		AddStage("safe", o.safeStage, "").
		Build()
}

// triageGate sends high-stakes queries straight to the improver. The
// writer and critic never run for them.
func (o *Orchestrator) triageGate(ctx context.Context, state flow.State) (string, error) {
	query, _ := state[keyQuery].(string)
	if !IsHighStakes(query) {
		return "write", nil
	}
	d := Decision{Path: PathEscalate, Reason: "high_stakes_query"}
	state[keyDecision] = d
	o.emit(ctx, sessionFrom(state), analytics.EventDecision, map[string]any{
		"path":   string(d.Path),
		"reason": d.Reason,
	})
	return "bypass", nil
}

func (o *Orchestrator) writerStage(ctx context.Context, state flow.State) (flow.State, error) {
	query, _ := state[keyQuery].(string)
	intent, _ := state[keyIntent].(grounding.Intent)

	draft, err := o.writer.GenerateDraft(ctx, query, intent, factsFrom(state), sessionFrom(state))
	if err != nil {
		return nil, err
	}
	state[keyDraft] = draft
	tokensInto(state, "writer", o.estimator.EstimateTokens(draft.AnswerText))
	return state, nil
}

func (o *Orchestrator) guardStage(ctx context.Context, state flow.State) (flow.State, error) {
	reports := RunGuards(draftFrom(state), factsFrom(state))
	state[keyGuards] = reports
	if failures := CollectFailures(reports); len(failures) > 0 {
		names := make([]string, len(failures))
		for i, f := range failures {
			names[i] = string(f)
		}
		o.emit(ctx, sessionFrom(state), analytics.EventGuardFail, map[string]any{
			"failures": names,
		})
	}
	return state, nil
}

// reviewGate skips the critic when the draft already asks for
// clarification; there is nothing substantive to review.
func (o *Orchestrator) reviewGate(ctx context.Context, state flow.State) (string, error) {
	if draft := draftFrom(state); draft != nil && draft.RequiresClarification {
		return "skip", nil
	}
	return "review", nil
}

func (o *Orchestrator) criticStage(ctx context.Context, state flow.State) (flow.State, error) {
	draft := draftFrom(state)
	query, _ := state[keyQuery].(string)

	report := o.critic.Review(ctx, draft, factsFrom(state), query)
	state[keyCritic] = report
	if draft != nil {
		tokensInto(state, "critic", o.estimator.EstimateTokens(draft.AnswerText))
	}
	o.emit(ctx, sessionFrom(state), analytics.EventCriticDone, map[string]any{
		"ok":     report.OK,
		"risk":   string(report.Risk),
		"source": string(report.Source),
	})
	return state, nil
}

func (o *Orchestrator) decideStage(ctx context.Context, state flow.State) (flow.State, error) {
	critic, _ := state[keyCritic].(*CriticReport)

	d := Decide(draftFrom(state), critic, factsFrom(state), o.policy)
	state[keyDecision] = d
	o.emit(ctx, sessionFrom(state), analytics.EventDecision, map[string]any{
		"path":   string(d.Path),
		"reason": d.Reason,
	})
	return state, nil
}

func (o *Orchestrator) branchGate(ctx context.Context, state flow.State) (string, error) {
	d, _ := state[keyDecision].(Decision)
	switch d.Path {
	case PathReturn:
		return "return", nil
	case PathClarify:
		return "clarify", nil
	case PathEscalate:
		return "escalate", nil
	}
	return "", fmt.Errorf("unknown decision path %q", d.Path)
}

func (o *Orchestrator) improveStage(ctx context.Context, state flow.State) (flow.State, error) {
	draft := draftFrom(state)
	query, _ := state[keyQuery].(string)
	intent, _ := state[keyIntent].(grounding.Intent)
	critic, _ := state[keyCritic].(*CriticReport)
	fp := factsFrom(state)

	if draft == nil {
		// High-stakes bypass: the writer never ran, so seed the
		// improver with the grounded-by-construction template.
		draft = seedDraft(intent, fp)
	}
	improved, fromModel := o.improver.Improve(ctx, draft, critic, fp, query)
	state[keyDraft] = improved
	state[keyImprover] = fromModel
	tokensInto(state, "improver", o.estimator.EstimateTokens(improved.AnswerText))
	o.emit(ctx, sessionFrom(state), analytics.EventImproverUsed, map[string]any{
		"model_used": fromModel,
	})
	return state, nil
}

// reguardGate re-checks numbers and claims on the improved draft. Time
// window is not re-checked: the improver is instructed not to introduce
// dates, and a stale date would have been caught on the original pass.
func (o *Orchestrator) reguardGate(ctx context.Context, state flow.State) (string, error) {
	draft := draftFrom(state)
	fp := factsFrom(state)

	numbers := CheckNumbers(draft, fp)
	claims := CheckClaims(draft, fp)
	if numbers.OK && claims.OK {
		return "pass", nil
	}
	o.logger.Warn("improved draft failed re-guard",
		"numbers", numbers.Failures,
		"claims", claims.Failures,
		"session_id", sessionFrom(state))
	return "fail", nil
}

func (o *Orchestrator) finalizeStage(ctx context.Context, state flow.State) (flow.State, error) {
	draft := draftFrom(state)
	d, _ := state[keyDecision].(Decision)

	var res *Result
	if d.Path == PathEscalate {
		fromModel, _ := state[keyImprover].(bool)
		res = &Result{
			Kind: KindEscalated,
			Escalated: &Escalation{
				Output:       draft,
				Reason:       d.Reason,
				ImproverUsed: fromModel,
			},
		}
	} else {
		res = &Result{Kind: KindAnswer, Answer: draft}
	}
	state[keyResult] = res
	return state, nil
}

func (o *Orchestrator) clarifyStage(ctx context.Context, state flow.State) (flow.State, error) {
	d, _ := state[keyDecision].(Decision)
	reports, _ := state[keyGuards].([]GuardReport)
	var issues []CriticIssue
	if critic, ok := state[keyCritic].(*CriticReport); ok && critic != nil {
		issues = critic.Issues
	}

	clar := BuildClarification(d.Reason, draftFrom(state), CollectFailures(reports), issues)
	state[keyResult] = &Result{Kind: KindClarify, Clarify: clar}
	return state, nil
}

func (o *Orchestrator) safeStage(ctx context.Context, state flow.State) (flow.State, error) {
	state[keyResult] = o.safeResult("re-guard failure")
	return state, nil
}

// safeResult is the deterministic template of last resort.
func (o *Orchestrator) safeResult(why string) *Result {
	o.logger.Warn("returning safe fallback answer", "why", why)
	return &Result{
		Kind: KindAnswer,
		Answer: &WriterOutput{
			Version:     SchemaVersion,
			AnswerText:  safeAnswerText,
			ContentKind: ContentStatus,
			UncertaintyNotes: []string{
				"This is a fallback message; the request could not be completed normally.",
			},
		},
		Analytics: Summary{FallbackUsed: true},
	}
}

// seedDraft is the improver input when the writer was bypassed.
func seedDraft(intent grounding.Intent, fp *factpack.FactPack) *WriterOutput {
	return &WriterOutput{
		Version:     SchemaVersion,
		AnswerText:  grounding.FallbackText(intent, fp),
		ContentKind: ContentStrategy,
		UncertaintyNotes: []string{
			"This question calls for careful planning; the verified account figures are the starting point.",
		},
	}
}

// timed wraps a stage with a telemetry span and wall-clock accounting.
func (o *Orchestrator) timed(name string, fn flow.StageFunc) flow.StageFunc {
	return func(ctx context.Context, state flow.State) (flow.State, error) {
		ctx, span := telemetry.StartStage(ctx, name)
		start := time.Now()
		out, err := fn(ctx, state)
		if ms, ok := state[keyStageMS].(map[string]float64); ok {
			ms[name] += durationMS(time.Since(start))
		}
		telemetry.End(span, err)
		return out, err
	}
}

func (o *Orchestrator) recordTurn(ctx context.Context, sessionID, query string, res *Result) {
	if o.sessions == nil || sessionID == "" {
		return
	}
	turn := session.Turn{
		Query:  query,
		Kind:   string(res.Kind),
		Reason: res.Analytics.Decision.Reason,
	}
	if err := o.sessions.AppendTurn(ctx, sessionID, turn); err != nil {
		o.logger.Warn("session append failed", "session_id", sessionID, "error", err)
	}
}

func (o *Orchestrator) emit(ctx context.Context, sessionID, eventType string, fields map[string]any) {
	if err := o.analytics.Record(ctx, analytics.NewEvent(eventType, sessionID, fields)); err != nil {
		o.logger.Debug("analytics record failed", "event", eventType, "error", err)
	}
}

func attachSummary(res *Result, state flow.State) {
	if res == nil {
		return
	}
	if d, ok := state[keyDecision].(Decision); ok && res.Analytics.Decision.Path == "" {
		res.Analytics.Decision = d
	}
	if reports, ok := state[keyGuards].([]GuardReport); ok {
		res.Analytics.GuardFailures = CollectFailures(reports)
	}
	if tokens, ok := state[keyTokens].(map[string]int); ok && len(tokens) > 0 {
		res.Analytics.TokenEstimates = tokens
	}
}

func stageTimes(state flow.State) map[string]float64 {
	if ms, ok := state[keyStageMS].(map[string]float64); ok {
		return ms
	}
	return nil
}

func resultText(res *Result) string {
	if res == nil {
		return ""
	}
	switch res.Kind {
	case KindAnswer:
		if res.Answer != nil {
			return res.Answer.AnswerText
		}
	case KindClarify:
		if res.Clarify != nil {
			return res.Clarify.Question
		}
	case KindEscalated:
		if res.Escalated != nil && res.Escalated.Output != nil {
			return res.Escalated.Output.AnswerText
		}
	}
	return ""
}

func draftFrom(state flow.State) *WriterOutput {
	draft, _ := state[keyDraft].(*WriterOutput)
	return draft
}

func factsFrom(state flow.State) *factpack.FactPack {
	fp, _ := state[keyFacts].(*factpack.FactPack)
	return fp
}

func sessionFrom(state flow.State) string {
	id, _ := state[keySession].(string)
	return id
}

func tokensInto(state flow.State, stage string, estimate int) {
	if tokens, ok := state[keyTokens].(map[string]int); ok {
		tokens[stage] = estimate
	}
}

func durationMS(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
