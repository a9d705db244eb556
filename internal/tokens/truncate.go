package tokens

import (
	"strings"

	"github.com/veritract/docpipe/internal/domain"
)

// Truncate trims a chunk list to a token budget at chunk (section)
// boundaries. Accumulation stops before the chunk that would push the
// running total over budget; everything accumulated so far is kept. When
// even the first chunk alone exceeds the budget it is kept anyway, so
// non-empty input never truncates to nothing — callers enforcing a hard
// ceiling must re-check TruncatedTokens.
//
// Truncation is lossy and user-visible: RemovedSections lists the section
// labels of dropped chunks, deduplicated in first-seen order, and callers
// must surface it.
func Truncate(e Estimator, fullText string, chunks []domain.DocumentChunk, budget int) domain.TruncationResult {
	originalTokens := e.Count(fullText)

	kept := 0
	running := 0
	for _, c := range chunks {
		if kept > 0 && running+c.TokenCount > budget {
			break
		}
		running += c.TokenCount
		kept++
	}

	if kept == len(chunks) {
		return domain.TruncationResult{
			Text:            fullText,
			Chunks:          chunks,
			Truncated:       false,
			OriginalTokens:  originalTokens,
			TruncatedTokens: originalTokens,
		}
	}

	keptChunks := chunks[:kept]
	parts := make([]string, len(keptChunks))
	for i, c := range keptChunks {
		parts[i] = c.Content
	}
	// Rebuilt text is a derived artifact, not a byte-exact slice of the original.
	text := strings.Join(parts, "\n\n")

	return domain.TruncationResult{
		Text:            text,
		Chunks:          keptChunks,
		Truncated:       true,
		OriginalTokens:  originalTokens,
		TruncatedTokens: running,
		RemovedSections: removedSections(chunks[kept:]),
	}
}

// removedSections collects dropped chunks' section labels, deduplicated in
// first-seen order. Chunks preceding any heading have no label to report.
func removedSections(dropped []domain.DocumentChunk) []string {
	var out []string
	seen := make(map[string]struct{}, len(dropped))
	for _, c := range dropped {
		label := c.SectionLabel()
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}
