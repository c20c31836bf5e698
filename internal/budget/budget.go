// Package budget estimates token counts for text handed to the chat model.
// Because the agent supports multiple LLM backends with different tokenizers,
// this package uses a character-based heuristic: 1 token ≈ 4 characters.
// It is used to bound the amount of resume text a single search returns into
// the agent's context.
package budget

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxSearchTokens is the default token budget for one search
	// result set. Override via SEARCH_MAX_TOKENS.
	DefaultMaxSearchTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateAll returns the summed estimate for every string in texts.
func EstimateAll(texts []string) int {
	total := 0
	for _, t := range texts {
		total += Estimate(t)
	}
	return total
}

// TrimRanked returns the longest prefix of ranked whose estimated size fits
// within maxTokens. ranked must be ordered best-first, so the lowest-ranked
// entries are dropped. The top entry is always kept, even when it alone
// exceeds the budget, so a search never comes back empty because of size.
// A non-positive maxTokens disables trimming.
func TrimRanked(ranked []string, maxTokens int) []string {
	if maxTokens <= 0 || len(ranked) == 0 {
		return ranked
	}

	used := Estimate(ranked[0])
	for i := 1; i < len(ranked); i++ {
		used += Estimate(ranked[i])
		if used > maxTokens {
			return ranked[:i]
		}
	}
	return ranked
}
