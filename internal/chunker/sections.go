package chunker

import (
	"regexp"
	"strings"
)

// Pattern is one heading detector. Detectors are tried in priority order and
// the first match wins. Level places the heading in the section stack:
// a level-N heading closes every open heading at level N or deeper.
type Pattern struct {
	Name  string
	Level int
	Re    *regexp.Regexp
}

// DefaultPatterns returns the built-in heading taxonomy for legal documents:
// numbered articles, numbered sections, numbered clauses.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:  "article",
			Level: 1,
			Re:    regexp.MustCompile(`^(?i:article)\s+(?:[IVXLCDM]+|\d+)\b[^\n]*$`),
		},
		{
			Name:  "section",
			Level: 2,
			Re:    regexp.MustCompile(`^\d+(?:\.\d+)*[.)]?\s+\S[^\n]*$`),
		},
		{
			Name:  "clause",
			Level: 3,
			Re:    regexp.MustCompile(`^\(([a-z]|\d{1,2}|[ivxl]{1,4})\)\s+\S[^\n]*$`),
		},
	}
}

// maxHeadingLen bounds how long a paragraph's first line may be and still
// count as a heading; body text that merely starts with a number is longer.
const maxHeadingLen = 120

// detectHeading checks a paragraph against the patterns and returns the
// heading label and level, or ok=false when no detector matches.
func detectHeading(patterns []Pattern, para string) (label string, level int, ok bool) {
	line := para
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" || len(line) > maxHeadingLen {
		return "", 0, false
	}
	for _, p := range patterns {
		if p.Re.MatchString(line) {
			return line, p.Level, true
		}
	}
	return "", 0, false
}

// sectionEntry is one open heading on the stack.
type sectionEntry struct {
	label string
	level int
}

// pushHeading applies a heading to the section stack: every open heading at
// the incoming level or deeper is closed, then the heading is appended. A
// sibling heading replaces the previous one regardless of stack depth, so a
// document whose top-level headings are sections still gets flat paths.
func pushHeading(stack []sectionEntry, label string, level int) []sectionEntry {
	if level < 1 {
		level = 1
	}
	for len(stack) > 0 && stack[len(stack)-1].level >= level {
		stack = stack[:len(stack)-1]
	}
	return append(stack, sectionEntry{label: label, level: level})
}

// sectionLabels snapshots the stack's labels, outermost first.
func sectionLabels(stack []sectionEntry) []string {
	if len(stack) == 0 {
		return nil
	}
	out := make([]string, len(stack))
	for i, e := range stack {
		out[i] = e.label
	}
	return out
}
