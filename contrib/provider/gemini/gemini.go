package gemini

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/walletmind/walletmind/errors"
	"github.com/walletmind/walletmind/message"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Config holds Gemini provider configuration
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int32
	Temperature float32
}

// DefaultConfig returns default Gemini configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:      apiKey,
		Model:       "gemini-1.5-flash",
		MaxTokens:   2048,
		Temperature: 0.2,
	}
}

// Provider implements the llm.Client interface for Google Gemini
type Provider struct {
	config *Config
	client *genai.Client
}

// New creates a new Gemini provider using the official SDK. The client holds
// a connection and should be released with Close.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.Model == "" {
		config.Model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, wrapAPIError(err)
	}

	return &Provider{
		config: config,
		client: client,
	}, nil
}

// Close releases the underlying client connection.
func (p *Provider) Close() error {
	return p.client.Close()
}

// Generate implements llm.Client
func (p *Provider) Generate(ctx context.Context, messages []*message.Message) (*message.Message, error) {
	model := p.client.GenerativeModel(p.config.Model)
	if p.config.Temperature > 0 {
		model.SetTemperature(p.config.Temperature)
	}
	if p.config.MaxTokens > 0 {
		model.SetMaxOutputTokens(p.config.MaxTokens)
	}

	// System messages become the system instruction; the rest is chat
	// history with the final user message sent as the prompt.
	var systemPrompts []string
	var history []*genai.Content
	var last string

	for _, msg := range messages {
		switch msg.Role {
		case message.RoleSystem:
			systemPrompts = append(systemPrompts, msg.Content)
		case message.RoleUser:
			history = append(history, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(msg.Content)},
			})
		case message.RoleAssistant:
			history = append(history, &genai.Content{
				Role:  "model",
				Parts: []genai.Part{genai.Text(msg.Content)},
			})
		}
	}
	if len(systemPrompts) > 0 {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(strings.Join(systemPrompts, "\n"))},
		}
	}
	if n := len(history); n > 0 && history[n-1].Role == "user" {
		if text, ok := history[n-1].Parts[0].(genai.Text); ok {
			last = string(text)
		}
		history = history[:n-1]
	}
	if last == "" {
		return nil, errors.NewValidation("messages", "no user message to send")
	}

	chat := model.StartChat()
	chat.History = history

	resp, err := chat.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return nil, wrapAPIError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.NewTransport("gemini.generate", 0, stderrors.New("no candidates returned"))
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	return message.NewMessage(message.RoleAssistant, responseText.String()), nil
}

// wrapAPIError classifies SDK errors so the retry layer can tell transient
// failures from client-class ones.
func wrapAPIError(err error) error {
	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		return errors.NewTransport("gemini.generate", apiErr.Code, err)
	}
	return errors.NewTransport("gemini.generate", 0, err)
}

// SetTemperature updates the temperature setting
func (p *Provider) SetTemperature(temp float64) {
	p.config.Temperature = float32(temp)
}

// SetMaxTokens updates the max tokens setting
func (p *Provider) SetMaxTokens(max int64) {
	p.config.MaxTokens = int32(max)
}

// SetModel updates the model
func (p *Provider) SetModel(model string) {
	p.config.Model = model
}
