// Package chunker splits raw document text into section-aware, token-bounded,
// position-preserving chunks for staged analysis.
package chunker

import (
	"fmt"
	"strings"

	"github.com/veritract/docpipe/internal/domain"
)

// TokenCounter estimates token counts for text. The chunker treats the count
// as an approximation and never depends on exact tokenizer behavior.
type TokenCounter interface {
	Count(text string) int
}

// Options control one chunking run.
type Options struct {
	// MaxTokens is the per-chunk token ceiling.
	MaxTokens int
	// OverlapTokens is the approximate token length of trailing words carried
	// from a closed chunk into the next one for cross-boundary context.
	OverlapTokens int
}

// Default chunking limits.
const (
	DefaultMaxTokens     = 500
	DefaultOverlapTokens = 50
)

// Chunker produces DocumentChunks from raw text. Stateless and deterministic:
// the same (text, options) pair always yields the same chunk list.
type Chunker struct {
	counter  TokenCounter
	patterns []Pattern
}

// New creates a chunker with the default heading taxonomy.
func New(counter TokenCounter) *Chunker {
	return &Chunker{counter: counter, patterns: DefaultPatterns()}
}

// WithPatterns replaces the heading detectors, keeping their order as the
// priority order.
func (c *Chunker) WithPatterns(patterns []Pattern) *Chunker {
	c.patterns = patterns
	return c
}

// paragraph is a maximal run of non-blank lines, with [start, end) byte
// offsets into the original text.
type paragraph struct {
	start int
	end   int
}

// Chunk splits text into section-aware, token-bounded chunks. Every chunk's
// Content is the exact slice text[StartPosition:EndPosition]. Empty or
// blank-only text yields an empty list. A single paragraph that alone
// exceeds MaxTokens is still emitted as its own chunk.
func (c *Chunker) Chunk(text string, opts Options) []domain.DocumentChunk {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.OverlapTokens < 0 {
		opts.OverlapTokens = 0
	}

	paras := splitParagraphs(text)
	if len(paras) == 0 {
		return nil
	}

	var (
		chunks   []domain.DocumentChunk
		sections []sectionEntry
		open     bool
		curStart int
		curEnd   int
		curPath  []string
		curOver  string
		curTok   int
		pending  string
	)

	closeChunk := func() {
		content := text[curStart:curEnd]
		chunks = append(chunks, domain.DocumentChunk{
			ID:            fmt.Sprintf("chunk-%d", len(chunks)),
			Index:         len(chunks),
			Content:       content,
			Overlap:       curOver,
			SectionPath:   curPath,
			TokenCount:    c.counter.Count(content),
			StartPosition: curStart,
			EndPosition:   curEnd,
		})
		pending = trailingWords(c.counter, content, opts.OverlapTokens)
		open = false
	}

	for _, p := range paras {
		body := text[p.start:p.end]
		ptok := c.counter.Count(body)

		if open && curTok+ptok > opts.MaxTokens {
			closeChunk()
		}

		// A heading labels the section it opens: it retags the stack for
		// chunks started from here on, never the chunk just closed.
		if label, level, ok := detectHeading(c.patterns, body); ok {
			sections = pushHeading(sections, label, level)
		}

		if !open {
			curStart = p.start
			curPath = sectionLabels(sections)
			curOver = pending
			curTok = c.counter.Count(pending)
			open = true
		}
		curEnd = p.end
		curTok += ptok
	}

	if open {
		closeChunk()
	}

	return chunks
}

// splitParagraphs scans text line by line, grouping maximal runs of
// non-blank lines and recording their byte offsets.
func splitParagraphs(text string) []paragraph {
	var paras []paragraph
	var start, end int
	inPara := false

	lineStart := 0
	for i := 0; i <= len(text); i++ {
		if i < len(text) && text[i] != '\n' {
			continue
		}
		line := text[lineStart:i]
		if strings.TrimSpace(line) != "" {
			if !inPara {
				// Skip leading whitespace so StartPosition lands on content.
				s := lineStart
				for s < i && (text[s] == ' ' || text[s] == '\t' || text[s] == '\r') {
					s++
				}
				start = s
				inPara = true
			}
			end = i
			for end > start && (text[end-1] == ' ' || text[end-1] == '\t' || text[end-1] == '\r') {
				end--
			}
		} else if inPara {
			paras = append(paras, paragraph{start: start, end: end})
			inPara = false
		}
		lineStart = i + 1
	}
	if inPara {
		paras = append(paras, paragraph{start: start, end: end})
	}
	return paras
}

// trailingWords returns the longest run of trailing words whose estimated
// token count stays within overlapTokens. Word granularity is a deliberate
// approximation; exact token slicing is not required for context carryover.
func trailingWords(counter TokenCounter, text string, overlapTokens int) string {
	if overlapTokens <= 0 {
		return ""
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	// One token is at least one word, so overlapTokens words is an upper bound.
	n := overlapTokens
	if n > len(words) {
		n = len(words)
	}
	tail := words[len(words)-n:]
	for len(tail) > 0 && counter.Count(strings.Join(tail, " ")) > overlapTokens {
		tail = tail[1:]
	}
	return strings.Join(tail, " ")
}
