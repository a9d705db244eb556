// Package retrieval combines the shared reference corpus with a
// tenant-scoped store at query time. Read-only and side-effect-free.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/veritract/docpipe/internal/domain"
)

// Reader is the nearest-neighbor capability of one store tier.
type Reader interface {
	NearestNeighbors(ctx context.Context, vector []float32, filter map[string]string, k int) ([]domain.RetrievalHit, error)
}

// Searcher issues two-tier nearest-neighbor searches.
type Searcher struct {
	corpus   Reader
	tenant   Reader
	minScore float64
}

// New creates a two-tier searcher. minScore is the similarity cutoff applied
// to both tiers.
func New(corpus, tenant Reader, minScore float64) *Searcher {
	return &Searcher{corpus: corpus, tenant: tenant, minScore: minScore}
}

// Search runs both tiers concurrently, then deduplicates and re-ranks the
// combined hits. Both queries must succeed: a half-populated result would
// silently drop either the tenant's own data or the reference corpus, which
// is a correctness bug, so either failure fails the whole search.
func (s *Searcher) Search(ctx context.Context, queryVector []float32, tenantID string, k int) ([]domain.RetrievalHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	var corpusHits, tenantHits []domain.RetrievalHit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := s.corpus.NearestNeighbors(gctx, queryVector, nil, k)
		if err != nil {
			return fmt.Errorf("corpus tier: %w", err)
		}
		corpusHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := s.tenant.NearestNeighbors(gctx, queryVector, map[string]string{"tenant_id": tenantID}, k)
		if err != nil {
			return fmt.Errorf("tenant tier: %w", err)
		}
		tenantHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return s.merge(corpusHits, tenantHits, k), nil
}

// merge deduplicates by content identity and re-sorts by similarity before
// truncating to k. When the same content appears in both tiers the
// higher-scored hit wins.
func (s *Searcher) merge(corpusHits, tenantHits []domain.RetrievalHit, k int) []domain.RetrievalHit {
	best := make(map[string]domain.RetrievalHit, len(corpusHits)+len(tenantHits))

	for _, h := range append(corpusHits, tenantHits...) {
		if h.Score < s.minScore {
			continue
		}
		key := h.ContentHash
		if key == "" {
			key = h.ID
		}
		if prev, ok := best[key]; !ok || h.Score > prev.Score {
			best[key] = h
		}
	}

	out := make([]domain.RetrievalHit, 0, len(best))
	for _, h := range best {
		out = append(out, h)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].ID < out[b].ID // stable order for equal scores
	})

	if len(out) > k {
		out = out[:k]
	}
	return out
}
