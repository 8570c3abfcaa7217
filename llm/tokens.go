package llm

// TokenEstimator approximates token counts for cost analytics. Estimates are
// for observability, not billing correctness.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// CharEstimator is the default heuristic: character count divided by four,
// rounded up.
type CharEstimator struct{}

// EstimateTokens implements TokenEstimator.
func (CharEstimator) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
