package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizedRecord is one source-dataset row after parsing. Transient:
// records are streamed by a parser and held only for the current batch.
type NormalizedRecord struct {
	Source      string
	Content     string
	ContentHash string
	Metadata    map[string]string
}

// NewNormalizedRecord builds a record with its content hash filled in.
func NewNormalizedRecord(source, content string, metadata map[string]string) NormalizedRecord {
	return NormalizedRecord{
		Source:      source,
		Content:     content,
		ContentHash: ContentHash(content),
		Metadata:    metadata,
	}
}

// ContentHash returns the deduplication fingerprint of a text: sha256 over
// the normalized form, hex-encoded. Semantically identical inputs hash
// equal regardless of incidental casing or whitespace.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(h[:])
}

// CacheKey returns the embedding cache key for a text and input type.
func CacheKey(text string, inputType InputType) string {
	h := sha256.Sum256([]byte(string(inputType) + "\x00" + NormalizeText(text)))
	return hex.EncodeToString(h[:])
}

// NormalizeText lower-cases text and collapses all whitespace runs to a
// single space.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
