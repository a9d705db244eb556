// Package corpus is the repository over the vector stores: the shared
// read-only reference corpus and the per-tenant document store share one
// schema and differ only by tenant filter.
package corpus

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veritract/docpipe/internal/db"
	"github.com/veritract/docpipe/internal/domain"
)

// Hash field names of one stored document.
const (
	fieldVector      = "vector"
	fieldContent     = "content"
	fieldContentHash = "content_hash"
	fieldSource      = "source"
	fieldTenant      = "tenant_id"
)

// store is the consumer interface for corpus operations (ISP).
type store interface {
	db.HashStore
	db.SetStore
	db.IndexManager
	db.Searcher
}

// Store persists and searches embedded documents.
type Store struct {
	db        store
	keyPrefix string
	indexName string
	dims      int
	logger    *zap.Logger
}

// New creates a corpus store.
func New(s store, keyPrefix string, dims int, logger *zap.Logger) *Store {
	return &Store{
		db:        s,
		keyPrefix: keyPrefix,
		indexName: keyPrefix + "idx_documents",
		dims:      dims,
		logger:    logger,
	}
}

// EnsureIndex creates the vector index if it does not exist yet.
func (s *Store) EnsureIndex(ctx context.Context) error {
	exists, err := s.db.IndexExists(ctx, s.indexName)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	err = s.db.CreateIndex(ctx, &db.IndexDefinition{
		Name:      s.indexName,
		Prefixes:  []string{s.docKey("")},
		VectorDim: s.dims,
		HNSWM:     32,
		// High construction quality: the corpus is write-once, read-many.
		HNSWEFConstruct: 400,
		TagFields:       []string{fieldContentHash, fieldSource, fieldTenant},
	})
	if err != nil && err != db.ErrIndexExists {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// InsertBatch stores embedded documents and registers their content hashes
// in the per-source dedup set, pipelined as one round-trip per concern.
func (s *Store) InsertBatch(ctx context.Context, docs []domain.CorpusDocument) error {
	if len(docs) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(docs))
	hashesBySource := make(map[string][]string)

	for i, doc := range docs {
		if len(doc.Vector) != s.dims {
			return fmt.Errorf("document %s: got %d dims, want %d: %w",
				doc.ID, len(doc.Vector), s.dims, domain.ErrVectorDimMismatch)
		}
		id := doc.ID
		if id == "" {
			id = uuid.NewString()
		}

		fields := map[string]string{
			fieldVector:      vectorToFieldBytes(doc.Vector),
			fieldContent:     doc.Content,
			fieldContentHash: doc.ContentHash,
			fieldSource:      doc.Source,
			fieldTenant:      doc.TenantID,
		}
		for k, v := range doc.Metadata {
			fields["meta_"+k] = v
		}

		items[i] = db.HashSetItem{Key: s.docKey(id), Fields: fields}
		if doc.Source != "" {
			hashesBySource[doc.Source] = append(hashesBySource[doc.Source], doc.ContentHash)
		}
	}

	if err := s.db.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	for source, hashes := range hashesBySource {
		if err := s.db.SAdd(ctx, s.hashSetKey(source), hashes...); err != nil {
			return fmt.Errorf("register hashes for %s: %w", source, err)
		}
	}
	return nil
}

// ContentHashes returns the set of content hashes already embedded for a
// source, for O(1) membership checks during ingestion.
func (s *Store) ContentHashes(ctx context.Context, source string) (map[string]struct{}, error) {
	members, err := s.db.SMembers(ctx, s.hashSetKey(source))
	if err != nil {
		return nil, fmt.Errorf("load content hashes for %s: %w", source, err)
	}
	out := make(map[string]struct{}, len(members))
	for _, m := range members {
		out[m] = struct{}{}
	}
	return out, nil
}

// EmbeddedCount returns the number of documents embedded for a source.
func (s *Store) EmbeddedCount(ctx context.Context, source string) (int64, error) {
	n, err := s.db.SCard(ctx, s.hashSetKey(source))
	if err != nil {
		return 0, fmt.Errorf("count embedded for %s: %w", source, err)
	}
	return n, nil
}

// NearestNeighbors runs a KNN query with ANDed tag filters. This path is
// read-only; both retrieval tiers go through it.
func (s *Store) NearestNeighbors(ctx context.Context, vector []float32, filter map[string]string, k int) ([]domain.RetrievalHit, error) {
	res, err := s.db.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    s.indexName,
		Vector:       vector,
		K:            k,
		Tags:         filter,
		ReturnFields: []string{fieldContent, fieldContentHash, fieldSource, "__vector_score"},
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	hits := make([]domain.RetrievalHit, 0, len(res.Entries))
	for _, e := range res.Entries {
		hits = append(hits, domain.RetrievalHit{
			ID:          e.Key,
			Content:     e.Fields[fieldContent],
			ContentHash: e.Fields[fieldContentHash],
			Source:      e.Fields[fieldSource],
			Score:       e.Score,
		})
	}
	return hits, nil
}

func (s *Store) docKey(id string) string {
	return s.keyPrefix + "doc:" + id
}

func (s *Store) hashSetKey(source string) string {
	return s.keyPrefix + "hashes:" + source
}

func vectorToFieldBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
