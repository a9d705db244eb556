package domain

// DocumentChunk is a contiguous, position-addressable slice of a document's
// text. Chunks are produced in bulk by the chunker and are immutable
// afterwards.
//
// Content is always the exact slice Text[StartPosition:EndPosition] of the
// owning original text. Overlap carries trailing words of the previous chunk
// for cross-boundary context; it is never part of Content and never shifts
// StartPosition, which marks the first new character of the chunk.
type DocumentChunk struct {
	ID            string
	Index         int
	Content       string
	Overlap       string
	SectionPath   []string
	TokenCount    int
	StartPosition int
	EndPosition   int
}

// SectionLabel renders the chunk's section path as a single label,
// outermost heading first. Empty when the chunk precedes any heading.
func (c DocumentChunk) SectionLabel() string {
	if len(c.SectionPath) == 0 {
		return ""
	}
	label := c.SectionPath[0]
	for _, s := range c.SectionPath[1:] {
		label += " > " + s
	}
	return label
}

// ContextText returns the chunk content with its overlap prefix, the form
// downstream clause analysis consumes.
func (c DocumentChunk) ContextText() string {
	if c.Overlap == "" {
		return c.Content
	}
	return c.Overlap + "\n\n" + c.Content
}

// TokenEstimate is the result of checking a text against a token budget.
// Derived, never persisted.
type TokenEstimate struct {
	TokenCount       int
	WithinBudget     bool
	BudgetRemaining  int
	TruncationNeeded bool
}

// TruncationResult is the outcome of trimming a chunk list to a token budget.
//
// When Truncated is false, Text and Chunks are the inputs unchanged. When
// Truncated is true, at least one chunk is always retained, even if that
// chunk alone exceeds the budget; callers enforcing a hard ceiling must
// re-check TruncatedTokens rather than assume it is within budget.
type TruncationResult struct {
	Text            string
	Chunks          []DocumentChunk
	Truncated       bool
	OriginalTokens  int
	TruncatedTokens int
	RemovedSections []string
}
