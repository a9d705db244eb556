package tokens

import (
	"strings"
	"testing"

	"github.com/veritract/docpipe/internal/chunker"
	"github.com/veritract/docpipe/internal/domain"
)

// wordEstimator counts one token per word for exact budget math.
type wordEstimator struct{}

func (wordEstimator) Count(text string) int { return len(strings.Fields(text)) }

func TestHeuristicEstimator(t *testing.T) {
	e := HeuristicEstimator{}
	if got := e.Count(""); got != 0 {
		t.Fatalf("empty text: got %d tokens", got)
	}
	if got := e.Count("one two three"); got != 4 {
		t.Fatalf("3 words: got %d tokens, want 4", got)
	}
	if got := e.Count("word"); got < 1 {
		t.Fatalf("non-blank text must estimate at least 1 token, got %d", got)
	}
}

func TestCheckBudget(t *testing.T) {
	e := wordEstimator{}

	est := CheckBudget(e, "a b c d e", 10)
	if !est.WithinBudget || est.TruncationNeeded {
		t.Fatalf("5 tokens under budget 10 flagged: %+v", est)
	}
	if est.BudgetRemaining != 5 {
		t.Fatalf("remaining = %d, want 5", est.BudgetRemaining)
	}

	est = CheckBudget(e, "a b c d e", 3)
	if est.WithinBudget || !est.TruncationNeeded {
		t.Fatalf("5 tokens over budget 3 not flagged: %+v", est)
	}
	if est.BudgetRemaining != 0 {
		t.Fatalf("over budget remaining = %d, want 0", est.BudgetRemaining)
	}

	// Exactly at budget is within it.
	est = CheckBudget(e, "a b c", 3)
	if !est.WithinBudget || est.TruncationNeeded || est.BudgetRemaining != 0 {
		t.Fatalf("exact budget: %+v", est)
	}
}

func chunksOf(counts []int, labels []string) []domain.DocumentChunk {
	chunks := make([]domain.DocumentChunk, len(counts))
	for i, n := range counts {
		chunks[i] = domain.DocumentChunk{
			Index:      i,
			Content:    strings.TrimSpace(strings.Repeat("w ", n)),
			TokenCount: n,
		}
		if labels != nil && labels[i] != "" {
			chunks[i].SectionPath = []string{labels[i]}
		}
	}
	return chunks
}

func TestTruncate_Unchanged(t *testing.T) {
	chunks := chunksOf([]int{4, 4, 4}, nil)
	full := "anything"

	res := Truncate(wordEstimator{}, full, chunks, 100)
	if res.Truncated {
		t.Fatal("under-budget document must not truncate")
	}
	if res.Text != full {
		t.Fatal("under-budget document must keep original text byte-exact")
	}
	if len(res.Chunks) != 3 {
		t.Fatalf("kept %d chunks, want 3", len(res.Chunks))
	}
	if len(res.RemovedSections) != 0 {
		t.Fatalf("unexpected removed sections %v", res.RemovedSections)
	}
}

func TestTruncate_StopsAtBoundary(t *testing.T) {
	chunks := chunksOf([]int{4, 4, 4, 4}, []string{"", "", "2. Fees", "3. Term"})

	res := Truncate(wordEstimator{}, "full", chunks, 10)
	if !res.Truncated {
		t.Fatal("expected truncation")
	}
	if len(res.Chunks) != 2 {
		t.Fatalf("kept %d chunks, want 2 (4+4 fits in 10, third would overflow)", len(res.Chunks))
	}
	if res.TruncatedTokens != 8 {
		t.Fatalf("truncated tokens = %d, want 8", res.TruncatedTokens)
	}
	want := []string{"2. Fees", "3. Term"}
	if len(res.RemovedSections) != 2 || res.RemovedSections[0] != want[0] || res.RemovedSections[1] != want[1] {
		t.Fatalf("removed sections = %v, want %v", res.RemovedSections, want)
	}
}

func TestTruncate_FirstChunkAlwaysKept(t *testing.T) {
	chunks := chunksOf([]int{50}, nil)

	res := Truncate(wordEstimator{}, "full", chunks, 10)
	if len(res.Chunks) != 1 {
		t.Fatal("non-empty input must never truncate to nothing")
	}
	if res.TruncatedTokens <= 10 {
		t.Fatalf("caller must be able to see the kept overflow, got %d tokens", res.TruncatedTokens)
	}
}

func TestTruncate_DeduplicatesRemovedSections(t *testing.T) {
	chunks := chunksOf([]int{4, 4, 4, 4}, []string{"", "5. Misc", "5. Misc", ""})

	res := Truncate(wordEstimator{}, "full", chunks, 4)
	if !res.Truncated {
		t.Fatal("expected truncation")
	}
	if len(res.RemovedSections) != 1 || res.RemovedSections[0] != "5. Misc" {
		t.Fatalf("removed sections = %v, want one deduplicated label", res.RemovedSections)
	}
}

// TestTruncate_LargeDocumentScenario chunks a 300-paragraph agreement and
// enforces a budget smaller than the document, checking the invariants end
// to end: boundary-aligned cut, budget respected, warnings reportable.
func TestTruncate_LargeDocumentScenario(t *testing.T) {
	var b strings.Builder
	for art := 1; art <= 30; art++ {
		b.WriteString(strings.TrimSpace("ARTICLE " + strings.Repeat("I", (art%3)+1)))
		b.WriteString("\n\n")
		for p := 0; p < 9; p++ {
			for w := 0; w < 40; w++ {
				b.WriteString("covenant ")
			}
			b.WriteString("\n\n")
		}
	}
	text := b.String()

	est := wordEstimator{}
	chunks := chunker.New(est).Chunk(text, chunker.Options{MaxTokens: 200, OverlapTokens: 0})
	if len(chunks) < 50 {
		t.Fatalf("expected a long chunk list, got %d", len(chunks))
	}

	budget := 2000
	res := Truncate(est, text, chunks, budget)
	if !res.Truncated {
		t.Fatal("document over budget must truncate")
	}
	if res.TruncatedTokens > budget {
		t.Fatalf("kept %d tokens over budget %d", res.TruncatedTokens, budget)
	}
	if len(res.Chunks) == 0 || res.Text == "" {
		t.Fatal("truncation must keep a non-empty prefix")
	}
	if len(res.RemovedSections) == 0 {
		t.Fatal("dropped labeled chunks must be reported")
	}

	// Kept chunks are exactly the original prefix.
	for i, c := range res.Chunks {
		if c.Index != i {
			t.Fatalf("kept chunk %d has index %d, cut must be a prefix", i, c.Index)
		}
	}
}
