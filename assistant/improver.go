package assistant

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/walletmind/walletmind/factpack"
	"github.com/walletmind/walletmind/grounding"
	"github.com/walletmind/walletmind/llm"
	"github.com/walletmind/walletmind/message"
	"github.com/walletmind/walletmind/pkg/logging"
	"github.com/walletmind/walletmind/prompt"
)

// ImproverConfig configures the escalation stage.
type ImproverConfig struct {
	// Model is the stronger, slower model reserved for escalations.
	Model       string
	Temperature float64
	MaxTokens   int64

	// Timeout bounds the single improvement call. Like the critic, the
	// improver is not retried; augmenting the original is the fallback.
	Timeout time.Duration

	Logger *slog.Logger
}

// DefaultImproverConfig returns the standard escalation configuration.
func DefaultImproverConfig() *ImproverConfig {
	return &ImproverConfig{
		Model:       "gpt-4o",
		Temperature: 0.2,
		MaxTokens:   1200,
		Timeout:     12 * time.Second,
	}
}

// Improver rewrites escalated drafts with a stronger model, instructed to
// make assumptions explicit and keep plans stepwise and reversible.
type Improver struct {
	client  llm.Client
	config  *ImproverConfig
	prompts *prompt.Manager
	policy  failPolicy
	logger  *slog.Logger
}

// NewImprover creates an improver around the given model client.
func NewImprover(client llm.Client, config *ImproverConfig) *Improver {
	if config == nil {
		config = DefaultImproverConfig()
	}
	i := &Improver{
		client:  client,
		config:  config,
		prompts: newPromptManager(),
		logger:  config.Logger,
	}
	if i.logger == nil {
		i.logger = logging.WithComponent("improver")
	}
	if client != nil {
		if config.Model != "" {
			client.SetModel(config.Model)
		}
		client.SetTemperature(config.Temperature)
		if config.MaxTokens > 0 {
			client.SetMaxTokens(config.MaxTokens)
		}
	}
	return i
}

// Improve rewrites an escalated draft. The boolean reports whether the
// stronger model produced the result; on any transport or contract failure
// the original draft is augmented instead (caution note, disclaimer for
// strategy content) so grounded content is preserved rather than replaced
// with a generic message.
func (i *Improver) Improve(ctx context.Context, out *WriterOutput, critic *CriticReport, fp *factpack.FactPack, query string) (*WriterOutput, bool) {
	if out == nil {
		out = conservativeDraft()
	}
	if i.client == nil {
		return i.policy.improverFallback(out), false
	}

	system, err := i.prompts.Render("improver_system", nil)
	if err != nil {
		i.logger.Error("improver system prompt failed", "error", err)
		return i.policy.improverFallback(out), false
	}
	issues := "none (direct escalation)"
	if critic != nil && len(critic.Issues) > 0 {
		issues = encodeForPrompt(critic.Issues)
	}
	user, err := i.prompts.Render("improver_user", map[string]any{
		"Query":  query,
		"Draft":  encodeForPrompt(out),
		"Issues": issues,
		"Facts":  encodeForPrompt(fp),
	})
	if err != nil {
		i.logger.Error("improver user prompt failed", "error", err)
		return i.policy.improverFallback(out), false
	}

	callCtx, cancel := context.WithTimeout(ctx, i.config.Timeout)
	defer cancel()
	resp, err := i.client.Generate(callCtx, []*message.Message{
		message.NewMessage(message.RoleSystem, system),
		message.NewMessage(message.RoleUser, user),
	})
	if err != nil {
		i.logger.Warn("improver call failed", "error", err)
		return i.policy.improverFallback(out), false
	}

	improved, err := llm.DecodeJSON[WriterOutput](resp.Text())
	if err != nil {
		i.logger.Warn("improver returned malformed JSON", "error", err)
		return i.policy.improverFallback(out), false
	}
	if err := improved.Validate(); err != nil {
		i.logger.Warn("improver draft failed validation", "error", err)
		return i.policy.improverFallback(out), false
	}
	if report := grounding.ValidateText(improved.AnswerText, fp); !report.Valid {
		i.logger.Warn("improver draft contained ungrounded numbers", "violations", report.Violations)
		return i.policy.improverFallback(out), false
	}
	if improved.ContentKind == ContentStrategy && !hasDisclaimer(improved.AnswerText) {
		improved.AnswerText = strings.TrimSpace(improved.AnswerText + "\n\n" + DisclaimerText)
	}
	return improved, true
}
