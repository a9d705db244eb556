// Package db defines the storage facade the repositories are built on.
// Consumers depend on the narrow sub-interfaces, not the full Store.
package db

import (
	"context"
	"time"
)

// Store is the full database facade combining all sub-interfaces.
type Store interface {
	Pinger
	HashStore
	SetStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem holds a single key+fields pair for pipelined HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore provides hash-based operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// SetStore provides set-membership operations, used for content-hash
// deduplication indexes.
type SetStore interface {
	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
}

// IndexManager provides vector index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides KNN search over vector indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}

// IndexDefinition describes a hash-backed vector index with tag fields.
type IndexDefinition struct {
	Name            string
	Prefixes        []string
	VectorDim       int
	HNSWM           int
	HNSWEFConstruct int
	TagFields       []string
}

// KNNQuery is the input for vector similarity search. Tags are ANDed
// equality pre-filters; an empty map searches the whole index.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	Tags         map[string]string
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit. Score is cosine similarity in [0,1].
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
