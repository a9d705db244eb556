// Package tokens estimates token counts and enforces document token budgets.
package tokens

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/veritract/docpipe/internal/domain"
)

// Estimator maps text to an approximate token count. It is a fixed proxy for
// the downstream model's tokenizer; expect 10-15% estimation error and set
// budgets with headroom.
type Estimator interface {
	Count(text string) int
}

// proxyEncoding is the fixed tokenizer proxy used for all estimates.
const proxyEncoding = "cl100k_base"

// TiktokenEstimator counts tokens with a BPE encoding.
type TiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenEstimator loads the proxy encoding.
func NewTiktokenEstimator() (*TiktokenEstimator, error) {
	enc, err := tiktoken.GetEncoding(proxyEncoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", proxyEncoding, err)
	}
	return &TiktokenEstimator{enc: enc}, nil
}

// Count returns the token count of text under the proxy encoding.
func (e *TiktokenEstimator) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(e.enc.Encode(text, nil, nil))
}

// HeuristicEstimator approximates tokens as words plus a markup surcharge.
// Used when the BPE assets are unavailable and in tests; deterministic and
// dependency-free.
type HeuristicEstimator struct{}

// Count estimates roughly 4 tokens per 3 words, minimum 1 for non-blank text.
func (HeuristicEstimator) Count(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return (words*4 + 2) / 3
}

// NewEstimator returns the tiktoken estimator, falling back to the heuristic
// when the encoding cannot be loaded (e.g. offline with no cached assets).
func NewEstimator() Estimator {
	if e, err := NewTiktokenEstimator(); err == nil {
		return e
	}
	return HeuristicEstimator{}
}

// CheckBudget estimates text against a token budget.
func CheckBudget(e Estimator, text string, budget int) domain.TokenEstimate {
	count := e.Count(text)
	remaining := budget - count
	if remaining < 0 {
		remaining = 0
	}
	return domain.TokenEstimate{
		TokenCount:       count,
		WithinBudget:     count <= budget,
		BudgetRemaining:  remaining,
		TruncationNeeded: count > budget,
	}
}
