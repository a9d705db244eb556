package chunker

import (
	"reflect"
	"strings"
	"testing"
)

// wordCounter counts one token per word, making budget math exact in tests.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func words(n int, prefix string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = prefix
	}
	return strings.Join(parts, " ")
}

func TestChunk_PositionInvariant(t *testing.T) {
	text := "ARTICLE I\n\n" + words(8, "alpha") + "\n\n" + words(8, "beta") + "\n\n2.1 Confidentiality\n\n" + words(8, "gamma")
	c := New(wordCounter{})

	chunks := c.Chunk(text, Options{MaxTokens: 10, OverlapTokens: 0})
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for _, ch := range chunks {
		if got := text[ch.StartPosition:ch.EndPosition]; got != ch.Content {
			t.Fatalf("chunk %d: content %q does not match slice %q", ch.Index, ch.Content, got)
		}
	}
}

func TestChunk_EmptyAndBlankText(t *testing.T) {
	c := New(wordCounter{})
	for _, text := range []string{"", "   \n\n\t\n  "} {
		if chunks := c.Chunk(text, Options{MaxTokens: 10}); len(chunks) != 0 {
			t.Fatalf("text %q: expected no chunks, got %d", text, len(chunks))
		}
	}
}

func TestChunk_OversizedParagraphStillEmitted(t *testing.T) {
	text := words(50, "big")
	c := New(wordCounter{})

	chunks := c.Chunk(text, Options{MaxTokens: 10})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].TokenCount <= 10 {
		t.Fatalf("expected over-budget token count, got %d", chunks[0].TokenCount)
	}
	if chunks[0].Content != text {
		t.Fatal("oversized paragraph must be kept whole")
	}
}

func TestChunk_HeadingLabelsNextChunk(t *testing.T) {
	// The heading lands mid-chunk: the open chunk keeps its snapshot and the
	// retagged stack applies only to chunks opened afterwards.
	text := words(4, "intro") + "\n\nARTICLE I\n\n" + words(8, "body")
	c := New(wordCounter{})

	chunks := c.Chunk(text, Options{MaxTokens: 6, OverlapTokens: 0})
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if len(chunks[0].SectionPath) != 0 {
		t.Fatalf("first chunk should be unlabeled, got %v", chunks[0].SectionPath)
	}
	if got := chunks[1].SectionLabel(); got != "ARTICLE I" {
		t.Fatalf("second chunk label = %q, want %q", got, "ARTICLE I")
	}
}

func TestChunk_SectionStackTruncation(t *testing.T) {
	text := strings.Join([]string{
		"ARTICLE I",
		words(8, "one"),
		"1.1 Definitions",
		words(8, "two"),
		"ARTICLE II",
		words(8, "three"),
	}, "\n\n")
	c := New(wordCounter{})

	chunks := c.Chunk(text, Options{MaxTokens: 5, OverlapTokens: 0})

	var sawNested, sawReset bool
	for _, ch := range chunks {
		label := ch.SectionLabel()
		if label == "ARTICLE I > 1.1 Definitions" {
			sawNested = true
		}
		if label == "ARTICLE II" {
			sawReset = true
		}
		if strings.Contains(label, "ARTICLE II") && strings.Contains(label, "1.1") {
			t.Fatalf("new article must reset deeper levels, got %q", label)
		}
	}
	if !sawNested {
		t.Fatal("expected a chunk under ARTICLE I > 1.1 Definitions")
	}
	if !sawReset {
		t.Fatal("expected a chunk under ARTICLE II alone")
	}
}

func TestChunk_OverlapCarriedNotEmbedded(t *testing.T) {
	text := words(6, "first") + "\n\n" + words(6, "second")
	c := New(wordCounter{})

	chunks := c.Chunk(text, Options{MaxTokens: 6, OverlapTokens: 3})
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].Overlap != "first first first" {
		t.Fatalf("overlap = %q, want trailing words of previous chunk", chunks[1].Overlap)
	}
	if strings.HasPrefix(chunks[1].Content, chunks[1].Overlap) {
		t.Fatal("overlap must not be embedded in content")
	}
	if got, want := chunks[1].ContextText(), chunks[1].Overlap+"\n\n"+chunks[1].Content; got != want {
		t.Fatalf("context text = %q, want %q", got, want)
	}
}

func TestChunk_Deterministic(t *testing.T) {
	text := "ARTICLE I\n\n" + words(20, "alpha") + "\n\n1.1 Term\n\n" + words(20, "beta")
	c := New(wordCounter{})
	opts := Options{MaxTokens: 12, OverlapTokens: 4}

	a := c.Chunk(text, opts)
	b := c.Chunk(text, opts)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("chunking must be deterministic for identical input")
	}
}

func TestChunk_IndexesAreSequential(t *testing.T) {
	text := words(30, "w") + "\n\n" + words(30, "w") + "\n\n" + words(30, "w")
	c := New(wordCounter{})

	chunks := c.Chunk(text, Options{MaxTokens: 40})
	for i, ch := range chunks {
		if ch.Index != i {
			t.Fatalf("chunk %d has index %d", i, ch.Index)
		}
	}
}

func TestDetectHeading(t *testing.T) {
	tests := []struct {
		name  string
		para  string
		want  string
		level int
		ok    bool
	}{
		{"article roman", "ARTICLE IV\nbody", "ARTICLE IV", 1, true},
		{"article arabic", "Article 7 Termination", "Article 7 Termination", 1, true},
		{"numbered section", "2.1 Confidential Information", "2.1 Confidential Information", 2, true},
		{"clause letter", "(a) each party shall", "(a) each party shall", 3, true},
		{"clause roman", "(iv) notwithstanding", "(iv) notwithstanding", 3, true},
		{"plain prose", "The parties agree as follows.", "", 0, false},
		{"too long", "1. " + strings.Repeat("x", 130), "", 0, false},
		{"blank", "   ", "", 0, false},
	}
	patterns := DefaultPatterns()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, level, ok := detectHeading(patterns, tt.para)
			if ok != tt.ok || label != tt.want || level != tt.level {
				t.Fatalf("detectHeading(%q) = (%q, %d, %v), want (%q, %d, %v)",
					tt.para, label, level, ok, tt.want, tt.level, tt.ok)
			}
		})
	}
}

func TestPushHeading(t *testing.T) {
	stack := pushHeading(nil, "ARTICLE I", 1)
	stack = pushHeading(stack, "1.1 Term", 2)
	stack = pushHeading(stack, "(a) scope", 3)
	if !reflect.DeepEqual(sectionLabels(stack), []string{"ARTICLE I", "1.1 Term", "(a) scope"}) {
		t.Fatalf("unexpected stack %v", stack)
	}

	stack = pushHeading(stack, "1.2 Fees", 2)
	if !reflect.DeepEqual(sectionLabels(stack), []string{"ARTICLE I", "1.2 Fees"}) {
		t.Fatalf("sibling section must close deeper levels, got %v", stack)
	}

	stack = pushHeading(stack, "ARTICLE II", 1)
	if !reflect.DeepEqual(sectionLabels(stack), []string{"ARTICLE II"}) {
		t.Fatalf("new article must reset the stack, got %v", stack)
	}
}

func TestPushHeading_SiblingWithoutEnclosingLevel(t *testing.T) {
	// Top-level headings at level 2: no article ever opened.
	stack := pushHeading(nil, "1. First Section", 2)
	stack = pushHeading(stack, "2. Second Section", 2)
	if !reflect.DeepEqual(sectionLabels(stack), []string{"2. Second Section"}) {
		t.Fatalf("sibling must replace, not nest, got %v", sectionLabels(stack))
	}
}

func TestChunk_SiblingSectionsWithoutArticles(t *testing.T) {
	text := strings.Join([]string{
		"1. First Section",
		words(8, "one"),
		"2. Second Section",
		words(8, "two"),
	}, "\n\n")
	c := New(wordCounter{})

	chunks := c.Chunk(text, Options{MaxTokens: 5, OverlapTokens: 0})

	var sawSecond bool
	for _, ch := range chunks {
		label := ch.SectionLabel()
		if strings.Contains(label, "First") && strings.Contains(label, "Second") {
			t.Fatalf("sibling sections must not nest, got %q", label)
		}
		if label == "2. Second Section" {
			sawSecond = true
		}
	}
	if !sawSecond {
		t.Fatal("expected a chunk labeled by the second section alone")
	}
}
