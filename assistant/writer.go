package assistant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/walletmind/walletmind/analytics"
	"github.com/walletmind/walletmind/cache"
	"github.com/walletmind/walletmind/errors"
	"github.com/walletmind/walletmind/factpack"
	"github.com/walletmind/walletmind/grounding"
	"github.com/walletmind/walletmind/llm"
	"github.com/walletmind/walletmind/message"
	"github.com/walletmind/walletmind/pkg/logging"
	"github.com/walletmind/walletmind/prompt"
)

// WriterConfig configures the drafting stage.
type WriterConfig struct {
	// Model is the drafting model; a fast, cheap one by default.
	Model string

	// Temperature for generation.
	Temperature float64

	// MaxTokens limits the response length.
	MaxTokens int64

	// Timeout bounds each individual model call.
	Timeout time.Duration

	// CacheTTL is how long validated drafts are reused for identical
	// requests.
	CacheTTL time.Duration

	// Retry is the transport retry policy.
	Retry llm.RetryConfig

	// Cache stores validated drafts. Defaults to a bounded in-memory store.
	Cache cache.Store

	// Analytics receives writer_done / writer_error events. Defaults to nop.
	Analytics analytics.Sink

	// Estimator approximates token counts for cost analytics.
	Estimator llm.TokenEstimator

	// Logger defaults to the shared logger with a writer component field.
	Logger *slog.Logger
}

// DefaultWriterConfig returns the standard drafting configuration.
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		Model:       "gpt-4o-mini",
		Temperature: 0.2,
		MaxTokens:   900,
		Timeout:     8 * time.Second,
		CacheTTL:    5 * time.Minute,
		Retry:       llm.DefaultRetryConfig(),
	}
}

// conservativeNote is the uncertainty note on drafts the writer had to
// replace because the model's text could not be trusted.
const conservativeNote = "I could not prepare a reliable answer from your data on the first pass, so I need to narrow things down."

// Writer drafts answers from fact data only. The user's query steers intent
// classification upstream but never reaches the drafting model.
type Writer struct {
	client    llm.Client
	config    *WriterConfig
	prompts   *prompt.Manager
	cache     cache.Store
	analytics analytics.Sink
	estimator llm.TokenEstimator
	logger    *slog.Logger
}

// NewWriter creates a writer around the given model client. A nil config
// uses defaults; nil config fields get safe in-process implementations.
func NewWriter(client llm.Client, config *WriterConfig) *Writer {
	if config == nil {
		config = DefaultWriterConfig()
	}
	w := &Writer{
		client:    client,
		config:    config,
		prompts:   newPromptManager(),
		cache:     config.Cache,
		analytics: config.Analytics,
		estimator: config.Estimator,
		logger:    config.Logger,
	}
	if w.cache == nil {
		w.cache = cache.NewMemoryStore(nil)
	}
	if w.analytics == nil {
		w.analytics = analytics.NewNopSink()
	}
	if w.estimator == nil {
		w.estimator = llm.CharEstimator{}
	}
	if w.logger == nil {
		w.logger = logging.WithComponent("writer")
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
	return w
}

// GenerateDraft produces a validated draft for the query. The model sees
// only the intent and the fact data; its response is parsed strictly and its
// prose re-validated against the pack, so a returned draft is either
// grounded or a conservative clarification request. Transport failures are
// retried and then surfaced to the caller.
func (w *Writer) GenerateDraft(ctx context.Context, query string, intent grounding.Intent, fp *factpack.FactPack, sessionID string) (*WriterOutput, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.NewValidation("query", "query is required")
	}
	if !intent.Valid() {
		return nil, errors.NewValidation("intent", "unknown intent %q", string(intent))
	}
	if err := fp.Validate(); err != nil {
		return nil, err
	}
	if w.client == nil {
		return nil, errors.NewTransport("writer", 0, fmt.Errorf("no model client configured"))
	}

	key := w.cacheKey(query, intent, fp)
	if draft, ok := w.lookupCache(ctx, key); ok {
		w.emit(ctx, sessionID, analytics.EventWriterDone, map[string]any{
			"intent":        string(intent),
			"cached":        true,
			"used_fact_ids": draft.UsedFactIDs,
		})
		return draft, nil
	}

	system, err := w.prompts.Render("writer_system", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to render writer prompt: %w", err)
	}
	user := writerUserPrompt(intent, fp)
	messages := []*message.Message{
		message.NewMessage(message.RoleSystem, system),
		message.NewMessage(message.RoleUser, user),
	}

	raw, err := llm.Retry(ctx, w.config.Retry, func(ctx context.Context) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
		defer cancel()
		resp, err := w.client.Generate(callCtx, messages)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	})
	if err != nil {
		w.emit(ctx, sessionID, analytics.EventWriterError, map[string]any{
			"intent": string(intent),
			"error":  err.Error(),
		})
		return nil, fmt.Errorf("writer generation failed: %w", err)
	}

	draft, grounded := w.acceptDraft(raw, fp)
	if grounded {
		if encoded, encErr := json.Marshal(draft); encErr == nil {
			if cacheErr := w.cache.Set(ctx, key, string(encoded), w.config.CacheTTL); cacheErr != nil {
				w.logger.Warn("writer cache store failed", "error", cacheErr)
			}
		}
	}

	w.emit(ctx, sessionID, analytics.EventWriterDone, map[string]any{
		"intent":        string(intent),
		"cached":        false,
		"grounded":      grounded,
		"used_fact_ids": draft.UsedFactIDs,
		"tokens_in":     w.estimator.EstimateTokens(system) + w.estimator.EstimateTokens(user),
		"tokens_out":    w.estimator.EstimateTokens(raw),
	})
	return draft, nil
}

// acceptDraft turns raw model text into a trusted draft: strict decode,
// contract validation, then a grounding pass over the prose. Any failure
// discards the model text entirely in favor of the conservative draft.
func (w *Writer) acceptDraft(raw string, fp *factpack.FactPack) (*WriterOutput, bool) {
	draft, err := llm.DecodeJSON[WriterOutput](raw)
	if err != nil {
		w.logger.Warn("writer returned malformed JSON", "error", err)
		return conservativeDraft(), false
	}
	if err := draft.Validate(); err != nil {
		w.logger.Warn("writer draft failed validation", "error", err)
		return conservativeDraft(), false
	}
	if report := grounding.ValidateText(draft.AnswerText, fp); !report.Valid {
		w.logger.Warn("writer draft contained ungrounded numbers", "violations", report.Violations)
		return conservativeDraft(), false
	}
	return draft, true
}

// conservativeDraft is the safe substitute for model text that could not be
// trusted: no numbers, no claims, just a clarification request.
func conservativeDraft() *WriterOutput {
	return &WriterOutput{
		Version:               SchemaVersion,
		RequiresClarification: true,
		ClarifyingQuestions: []string{
			"Which part of your finances should I look at?",
			"Which time period do you mean?",
		},
		ContentKind:      ContentStatus,
		UncertaintyNotes: []string{conservativeNote},
	}
}

// cacheKey fingerprints everything that could change the draft: the
// normalized query, intent, pack contents, and generation settings.
func (w *Writer) cacheKey(query string, intent grounding.Intent, fp *factpack.FactPack) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	sum := sha256.Sum256([]byte(strings.Join([]string{
		normalized,
		string(intent),
		fp.ContentHash(),
		w.config.Model,
		strconv.FormatFloat(w.config.Temperature, 'f', -1, 64),
	}, "\n")))
	return "writer:" + hex.EncodeToString(sum[:])
}

func (w *Writer) lookupCache(ctx context.Context, key string) (*WriterOutput, bool) {
	value, ok, err := w.cache.Get(ctx, key)
	if err != nil {
		w.logger.Warn("writer cache lookup failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var draft WriterOutput
	if err := json.Unmarshal([]byte(value), &draft); err != nil {
		w.logger.Warn("writer cache entry corrupt", "error", err)
		return nil, false
	}
	return &draft, true
}

func (w *Writer) emit(ctx context.Context, sessionID, eventType string, fields map[string]any) {
	if err := w.analytics.Record(ctx, analytics.NewEvent(eventType, sessionID, fields)); err != nil {
		w.logger.Warn("analytics emission failed", "type", eventType, "error", err)
	}
}
