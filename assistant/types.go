// Package assistant implements the grounded answer cascade: a Writer drafts
// from fact data only, pure guards and a Critic review the draft, a decision
// engine picks return/clarify/escalate, and a stronger Improver handles the
// escalations. Callers always receive a well-formed Result; numbers shown to
// the user are traceable to the FactPack or the answer does not go out.
package assistant

import (
	"time"

	"github.com/walletmind/walletmind/errors"
	"github.com/walletmind/walletmind/factpack"
	"github.com/walletmind/walletmind/grounding"
)

// SchemaVersion tags WriterOutput payloads exchanged with the model.
const SchemaVersion = "v1"

// ContentKind classifies what a draft is doing: reporting state, explaining
// it, or proposing a course of action. Strategy content carries extra guard
// and disclaimer requirements.
type ContentKind string

const (
	ContentStatus      ContentKind = "status"
	ContentExplanation ContentKind = "explanation"
	ContentStrategy    ContentKind = "strategy"
)

// Valid reports whether the kind is one of the known values.
func (k ContentKind) Valid() bool {
	switch k {
	case ContentStatus, ContentExplanation, ContentStrategy:
		return true
	}
	return false
}

// ParseContentKind rejects anything outside the enum. Model output is parsed
// through this so an unknown kind fails the draft instead of sneaking past
// the strategy checks.
func ParseContentKind(s string) (ContentKind, error) {
	k := ContentKind(s)
	if !k.Valid() {
		return "", errors.NewValidation("content_kind", "unknown content kind %q", s)
	}
	return k, nil
}

// MentionKind records how the Writer claims a number was derived, mirroring
// the three ways a number can be grounded.
type MentionKind string

const (
	MentionLiteral MentionKind = "literal"
	MentionSum     MentionKind = "sum"
	MentionPercent MentionKind = "percentage"
)

func (k MentionKind) Valid() bool {
	switch k {
	case MentionLiteral, MentionSum, MentionPercent:
		return true
	}
	return false
}

// NumericMention is one number the draft displays, with claimed provenance.
type NumericMention struct {
	Value  float64     `json:"value"`
	Unit   string      `json:"unit"`
	Kind   MentionKind `json:"kind"`
	FactID string      `json:"fact_id,omitempty"`
}

// Mention units.
const (
	UnitUSD     = "USD"
	UnitPercent = "percent"
	UnitCount   = "count"
)

// SuggestedAction is a follow-up the UI can offer alongside an answer.
type SuggestedAction struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// WriterOutput is the Writer's structured draft. It is created once per
// request and never mutated in place: downstream stages produce verdicts
// about it or new values via Clone.
type WriterOutput struct {
	Version               string            `json:"version"`
	AnswerText            string            `json:"answer_text"`
	UsedFactIDs           []string          `json:"used_fact_ids,omitempty"`
	NumericMentions       []NumericMention  `json:"numeric_mentions,omitempty"`
	RequiresClarification bool              `json:"requires_clarification"`
	ClarifyingQuestions   []string          `json:"clarifying_questions,omitempty"`
	SuggestedActions      []SuggestedAction `json:"suggested_actions,omitempty"`
	ContentKind           ContentKind       `json:"content_kind"`
	UncertaintyNotes      []string          `json:"uncertainty_notes,omitempty"`
}

// Validate enforces the draft contract at the model boundary: known schema
// version, known enums, and prose present unless the draft is asking for
// clarification instead.
func (o *WriterOutput) Validate() error {
	if o == nil {
		return errors.NewValidation("writer_output", "draft is required")
	}
	if o.Version != SchemaVersion {
		return errors.NewValidation("version", "unsupported schema version %q", o.Version)
	}
	if !o.ContentKind.Valid() {
		return errors.NewValidation("content_kind", "unknown content kind %q", string(o.ContentKind))
	}
	if o.AnswerText == "" && !o.RequiresClarification {
		return errors.NewValidation("answer_text", "answer text is required unless clarification is requested")
	}
	for i, m := range o.NumericMentions {
		if m.Unit != UnitUSD && m.Unit != UnitPercent && m.Unit != UnitCount {
			return errors.NewValidation("numeric_mentions", "mention %d has unknown unit %q", i, m.Unit)
		}
		if !m.Kind.Valid() {
			return errors.NewValidation("numeric_mentions", "mention %d has unknown kind %q", i, string(m.Kind))
		}
	}
	for i, id := range o.UsedFactIDs {
		if id == "" {
			return errors.NewValidation("used_fact_ids", "fact id %d is empty", i)
		}
	}
	return nil
}

// Clone returns a deep copy so a stage can derive a new draft without
// touching the original.
func (o *WriterOutput) Clone() *WriterOutput {
	if o == nil {
		return nil
	}
	clone := *o
	clone.UsedFactIDs = append([]string(nil), o.UsedFactIDs...)
	clone.NumericMentions = append([]NumericMention(nil), o.NumericMentions...)
	clone.ClarifyingQuestions = append([]string(nil), o.ClarifyingQuestions...)
	clone.SuggestedActions = append([]SuggestedAction(nil), o.SuggestedActions...)
	clone.UncertaintyNotes = append([]string(nil), o.UncertaintyNotes...)
	return &clone
}

// GuardName identifies which validator produced a report.
type GuardName string

const (
	GuardNumbers GuardName = "numbers"
	GuardTime    GuardName = "time_window"
	GuardClaims  GuardName = "claims"
)

// GuardFailure is one category of draft defect a guard can flag.
type GuardFailure string

const (
	FailUnknownAmount     GuardFailure = "unknown_amount"
	FailMissingFact       GuardFailure = "references_missing_fact"
	FailOutOfWindowDate   GuardFailure = "out_of_window_date"
	FailForbiddenClaim    GuardFailure = "forbidden_claim"
	FailMissingDisclaimer GuardFailure = "missing_disclaimer"
)

// GuardReport is one guard's verdict, derived purely from the draft and the
// pack.
type GuardReport struct {
	Guard    GuardName         `json:"guard"`
	OK       bool              `json:"ok"`
	Failures []GuardFailure    `json:"failures,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
}

// Risk grades how much damage a wrong answer could do.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

func (r Risk) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// IssueType categorizes a critic finding.
type IssueType string

const (
	IssueAmbiguity         IssueType = "ambiguity"
	IssueSafety            IssueType = "safety"
	IssueFactuality        IssueType = "factuality"
	IssueMissingDisclaimer IssueType = "missing_disclaimer"
)

func (t IssueType) Valid() bool {
	switch t {
	case IssueAmbiguity, IssueSafety, IssueFactuality, IssueMissingDisclaimer:
		return true
	}
	return false
}

// CriticIssue is one concern the critic raised about a draft.
type CriticIssue struct {
	Type   IssueType `json:"type"`
	Detail string    `json:"detail,omitempty"`
}

// CriticSource distinguishes a real model verdict from the fail-closed
// fallback used when the critic is unreachable.
type CriticSource string

const (
	CriticModel    CriticSource = "model"
	CriticFallback CriticSource = "fallback"
)

// CriticReport is the reviewing pass's verdict on a draft.
type CriticReport struct {
	OK                  bool          `json:"ok"`
	Issues              []CriticIssue `json:"issues,omitempty"`
	Risk                Risk          `json:"risk"`
	RecommendEscalation bool          `json:"recommend_escalation"`
	Source              CriticSource  `json:"source"`
}

// Path is the route the decision engine picks for a reviewed draft.
type Path string

const (
	PathReturn   Path = "return"
	PathClarify  Path = "clarify"
	PathEscalate Path = "escalate"
)

// Decision is the decision engine's sole output.
type Decision struct {
	Path   Path   `json:"path"`
	Reason string `json:"reason,omitempty"`
}

// ClarifyOption is one bounded choice in a clarification menu. The UI
// renders options as buttons; free-text follow-ups are not part of the
// contract.
type ClarifyOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Clarification is a question plus a bounded option menu, produced instead
// of an answer when the cascade cannot respond safely.
type Clarification struct {
	Question string          `json:"question"`
	Options  []ClarifyOption `json:"options"`
	Reason   string          `json:"reason,omitempty"`
}

// Validate enforces the menu contract: a question and two to four options.
func (c *Clarification) Validate() error {
	if c == nil {
		return errors.NewValidation("clarification", "clarification is required")
	}
	if c.Question == "" {
		return errors.NewValidation("question", "question is required")
	}
	if len(c.Options) < 2 || len(c.Options) > 4 {
		return errors.NewValidation("options", "expected 2-4 options, got %d", len(c.Options))
	}
	for i, opt := range c.Options {
		if opt.ID == "" || opt.Label == "" {
			return errors.NewValidation("options", "option %d is missing an id or label", i)
		}
	}
	return nil
}

// Escalation wraps an improved draft with why it was escalated.
type Escalation struct {
	Output       *WriterOutput `json:"output"`
	Reason       string        `json:"reason"`
	ImproverUsed bool          `json:"improver_used"`
}

// ResultKind tags which variant of a Result is populated.
type ResultKind string

const (
	KindAnswer    ResultKind = "answer"
	KindClarify   ResultKind = "clarify"
	KindEscalated ResultKind = "escalated"
)

// Summary is the observability record attached to every result.
type Summary struct {
	SessionID      string         `json:"session_id,omitempty"`
	Decision       Decision       `json:"decision"`
	GuardFailures  []GuardFailure `json:"guard_failures,omitempty"`
	TokenEstimates map[string]int `json:"token_estimates,omitempty"`
	Elapsed        time.Duration  `json:"elapsed"`
	FallbackUsed   bool           `json:"fallback_used"`
}

// Result is the cascade's final artifact: exactly one variant populated,
// immutable once returned.
type Result struct {
	Kind      ResultKind     `json:"kind"`
	Answer    *WriterOutput  `json:"answer,omitempty"`
	Clarify   *Clarification `json:"clarify,omitempty"`
	Escalated *Escalation    `json:"escalated,omitempty"`
	Analytics Summary        `json:"analytics"`
}

// Validate checks the tagged-union contract: the populated variant matches
// Kind and the other two are nil.
func (r *Result) Validate() error {
	if r == nil {
		return errors.NewValidation("result", "result is required")
	}
	populated := 0
	if r.Answer != nil {
		populated++
	}
	if r.Clarify != nil {
		populated++
	}
	if r.Escalated != nil {
		populated++
	}
	if populated != 1 {
		return errors.NewValidation("result", "expected exactly one variant, got %d", populated)
	}
	switch r.Kind {
	case KindAnswer:
		if r.Answer == nil {
			return errors.NewValidation("result", "kind answer without an answer")
		}
	case KindClarify:
		if r.Clarify == nil {
			return errors.NewValidation("result", "kind clarify without a clarification")
		}
	case KindEscalated:
		if r.Escalated == nil || r.Escalated.Output == nil {
			return errors.NewValidation("result", "kind escalated without an improved output")
		}
	default:
		return errors.NewValidation("kind", "unknown result kind %q", string(r.Kind))
	}
	return nil
}

// Request is one question for the cascade. Facts must already be windowed
// and sanitized; Intent may be left empty for keyword classification.
type Request struct {
	Query     string
	Intent    grounding.Intent
	SessionID string
	Facts     *factpack.FactPack
}
