package tiktoken

import (
	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer wraps a tiktoken encoding and satisfies llm.TokenEstimator for
// callers that want real token counts instead of the chars/4 heuristic.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

func NewTiktokenTokenizer(name string) (*Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		// try by name
		enc, err = tiktoken.GetEncoding(name)
		if err != nil {
			return nil, err
		}
	}
	return &Tokenizer{enc: enc}, nil
}

func (t *Tokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// CountTokens returns the number of tokens in text.
func (t *Tokenizer) CountTokens(text string) int {
	return len(t.Encode(text))
}

// EstimateTokens implements llm.TokenEstimator.
func (t *Tokenizer) EstimateTokens(text string) int {
	return t.CountTokens(text)
}

// DecodeIds returns the substring that corresponds to the token ids.
func (t *Tokenizer) DecodeIds(ids []int) string {
	return t.enc.Decode(ids)
}
