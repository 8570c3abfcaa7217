// Package llm defines the chat-completion surface the cascade talks through,
// plus the retry combinator, token estimation, and strict JSON decoding used
// at every model boundary.
package llm

import (
	"context"

	"github.com/walletmind/walletmind/message"
)

// Client defines the interface for LLM providers
type Client interface {
	// Generate generates a response from the LLM
	Generate(ctx context.Context, messages []*message.Message) (*message.Message, error)

	// SetTemperature updates the temperature setting for generation
	SetTemperature(temp float64)

	// SetMaxTokens updates the maximum tokens limit for generation
	SetMaxTokens(max int64)

	// SetModel updates the model to use for generation
	SetModel(model string)
}
