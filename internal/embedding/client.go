package embedding

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/veritract/docpipe/internal/domain"
)

// DefaultBatchLimit is the provider's hard ceiling on items per request,
// enforced client-side before calling out.
const DefaultBatchLimit = 128

// Client batches cache misses to the embedding provider and reassembles
// results in request order. Construct one per process and inject it; there
// is no package-level instance.
type Client struct {
	provider   domain.BatchProvider
	cache      *Cache
	batchLimit int
	logger     *zap.Logger
}

// NewClient creates an embedding client. A nil cache disables caching.
func NewClient(provider domain.BatchProvider, cache *Cache, batchLimit int, logger *zap.Logger) *Client {
	if batchLimit <= 0 || batchLimit > DefaultBatchLimit {
		batchLimit = DefaultBatchLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{provider: provider, cache: cache, batchLimit: batchLimit, logger: logger}
}

// EmbedBatch embeds texts, serving what it can from the cache and calling
// the provider only for the rest. Results are always in input order: the
// provider's response indices are not assumed ordered and are sorted back
// explicitly. Batches above the provider limit fail fast as a caller bug.
//
// Every uncached result is written back to the cache before returning, so
// repeated calls across the process lifetime shrink provider traffic.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, inputType domain.InputType) (domain.EmbedBatchResult, error) {
	if len(texts) > c.batchLimit {
		return domain.EmbedBatchResult{}, fmt.Errorf("%d texts: %w", len(texts), domain.ErrBatchTooLarge)
	}
	if len(texts) == 0 {
		return domain.EmbedBatchResult{Embeddings: [][]float32{}}, nil
	}

	embeddings := make([][]float32, len(texts))

	var cached map[int]domain.CachedEmbedding
	if c.cache != nil {
		cached = c.cache.GetBatch(texts, inputType)
	}
	for i, hit := range cached {
		embeddings[i] = hit.Embedding
	}

	var missIdx []int
	var missTexts []string
	for i := range texts {
		if _, ok := cached[i]; !ok {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}
	}

	if len(missTexts) == 0 {
		return domain.EmbedBatchResult{Embeddings: embeddings, CacheHits: len(cached)}, nil
	}

	resp, err := c.provider.EmbedBatch(ctx, missTexts, inputType)
	if err != nil {
		return domain.EmbedBatchResult{}, fmt.Errorf("embed %d texts: %w", len(missTexts), err)
	}
	if len(resp.Data) != len(missTexts) {
		return domain.EmbedBatchResult{}, fmt.Errorf(
			"provider returned %d embeddings for %d texts: %w",
			len(resp.Data), len(missTexts), domain.ErrEmbeddingProviderError,
		)
	}

	sort.Slice(resp.Data, func(a, b int) bool { return resp.Data[a].Index < resp.Data[b].Index })

	// Aggregate usage only; apportion tokens evenly for cache accounting.
	perText := resp.TotalTokens / len(missTexts)

	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(missTexts) {
			return domain.EmbedBatchResult{}, fmt.Errorf(
				"provider returned index %d out of range: %w",
				item.Index, domain.ErrEmbeddingProviderError,
			)
		}
		reqIdx := missIdx[item.Index]
		embeddings[reqIdx] = item.Embedding
		if c.cache != nil {
			c.cache.Put(missTexts[item.Index], inputType, item.Embedding, perText)
		}
	}

	return domain.EmbedBatchResult{
		Embeddings:  embeddings,
		TotalTokens: resp.TotalTokens,
		CacheHits:   len(cached),
	}, nil
}
