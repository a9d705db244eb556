package domain

import "context"

// InputType distinguishes document-side from query-side embeddings. Some
// providers produce asymmetric vectors, so the type is part of the cache key.
type InputType string

// Recognized input types.
const (
	InputDocument InputType = "document"
	InputQuery    InputType = "query"
)

// IndexedEmbedding is one provider response item. Index refers to the
// position in the request batch; providers may return items in any order.
type IndexedEmbedding struct {
	Index     int
	Embedding []float32
}

// ProviderBatchResult is the raw, possibly unordered provider response for
// one batch call.
type ProviderBatchResult struct {
	Data        []IndexedEmbedding
	TotalTokens int
}

// BatchProvider is the transport contract for the external embedding API.
type BatchProvider interface {
	EmbedBatch(ctx context.Context, texts []string, inputType InputType) (ProviderBatchResult, error)
}

// EmbedBatchResult is the merged cache+provider outcome for one client call.
// Embeddings are in request order regardless of provider response order.
type EmbedBatchResult struct {
	Embeddings  [][]float32
	TotalTokens int
	CacheHits   int
}

// BatchEmbedder is the consumer-side embedding contract shared by the
// ingestion worker and retrieval.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string, inputType InputType) (EmbedBatchResult, error)
}

// CachedEmbedding is one embedding cache entry, keyed by the hash of the
// normalized text plus input type. Tokens is the approximate provider token
// cost recorded when the entry was stored.
type CachedEmbedding struct {
	Embedding []float32
	Tokens    int
}
