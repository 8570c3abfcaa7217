package assistant

import (
	"context"
	"log/slog"
	"time"

	"github.com/walletmind/walletmind/errors"
	"github.com/walletmind/walletmind/factpack"
	"github.com/walletmind/walletmind/llm"
	"github.com/walletmind/walletmind/message"
	"github.com/walletmind/walletmind/pkg/logging"
	"github.com/walletmind/walletmind/prompt"
)

// CriticConfig configures the reviewing stage.
type CriticConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int64

	// Timeout bounds the single review call. The critic is not retried:
	// its fallback verdict is cheaper than a second model call.
	Timeout time.Duration

	Logger *slog.Logger
}

// DefaultCriticConfig returns the standard review configuration.
func DefaultCriticConfig() *CriticConfig {
	return &CriticConfig{
		Model:       "gpt-4o-mini",
		Temperature: 0,
		MaxTokens:   400,
		Timeout:     6 * time.Second,
	}
}

// criticVerdict is the wire schema of a review verdict.
type criticVerdict struct {
	OK                  bool   `json:"ok"`
	Risk                string `json:"risk"`
	RecommendEscalation bool   `json:"recommend_escalation"`
	Issues              []struct {
		Type   string `json:"type"`
		Detail string `json:"detail"`
	} `json:"issues"`
}

// Critic asks an independent model to judge a draft without rewriting it.
type Critic struct {
	client  llm.Client
	config  *CriticConfig
	prompts *prompt.Manager
	policy  failPolicy
	logger  *slog.Logger
}

// NewCritic creates a critic around the given model client.
func NewCritic(client llm.Client, config *CriticConfig) *Critic {
	if config == nil {
		config = DefaultCriticConfig()
	}
	c := &Critic{
		client:  client,
		config:  config,
		prompts: newPromptManager(),
		logger:  config.Logger,
	}
	if c.logger == nil {
		c.logger = logging.WithComponent("critic")
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
	return c
}

// Review judges a draft against the facts and the question. It never
// returns an error: transport or contract failures produce the fail-closed
// policy verdict, so an unreachable critic cannot silently approve a draft
// that flagged its own trouble.
func (c *Critic) Review(ctx context.Context, out *WriterOutput, fp *factpack.FactPack, query string) *CriticReport {
	if c.client == nil || out == nil {
		return c.policy.criticFallback(out)
	}

	system, err := c.prompts.Render("critic_system", nil)
	if err != nil {
		c.logger.Error("critic system prompt failed", "error", err)
		return c.policy.criticFallback(out)
	}
	user, err := c.prompts.Render("critic_user", map[string]any{
		"Query": query,
		"Draft": encodeForPrompt(out),
		"Facts": encodeForPrompt(fp),
	})
	if err != nil {
		c.logger.Error("critic user prompt failed", "error", err)
		return c.policy.criticFallback(out)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	resp, err := c.client.Generate(callCtx, []*message.Message{
		message.NewMessage(message.RoleSystem, system),
		message.NewMessage(message.RoleUser, user),
	})
	if err != nil {
		c.logger.Warn("critic call failed", "error", err)
		return c.policy.criticFallback(out)
	}

	report, err := parseCriticVerdict(resp.Text())
	if err != nil {
		c.logger.Warn("critic verdict rejected", "error", err)
		return c.policy.criticFallback(out)
	}
	return report
}

// parseCriticVerdict decodes a verdict strictly: unknown risk grades or
// issue types reject the whole verdict rather than flowing downstream.
func parseCriticVerdict(raw string) (*CriticReport, error) {
	verdict, err := llm.DecodeJSON[criticVerdict](raw)
	if err != nil {
		return nil, err
	}
	risk := Risk(verdict.Risk)
	if !risk.Valid() {
		return nil, errors.NewValidation("risk", "unknown risk %q", verdict.Risk)
	}
	report := &CriticReport{
		OK:                  verdict.OK,
		Risk:                risk,
		RecommendEscalation: verdict.RecommendEscalation,
		Source:              CriticModel,
	}
	for _, issue := range verdict.Issues {
		t := IssueType(issue.Type)
		if !t.Valid() {
			return nil, errors.NewValidation("issues", "unknown issue type %q", issue.Type)
		}
		report.Issues = append(report.Issues, CriticIssue{Type: t, Detail: issue.Detail})
	}
	return report, nil
}
