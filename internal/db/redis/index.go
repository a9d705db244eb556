package redis

import (
	"context"
	"errors"
	"strconv"

	"github.com/veritract/docpipe/internal/db"
)

// CreateIndex creates a hash-backed HNSW vector index with tag fields.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// IndexExists probes index existence via FT.INFO; "unknown index name" means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return false, nil
		}
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return true, nil
}

func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if idx.Name == "" {
		return nil, errors.New("index name is required")
	}
	if idx.VectorDim <= 0 {
		return nil, errors.New("vector DIM must be positive")
	}

	args := []string{idx.Name, "ON", "HASH"}

	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}

	args = append(args, "SCHEMA")

	for _, f := range idx.TagFields {
		args = append(args, f, "TAG")
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(idx.VectorDim),
		"DISTANCE_METRIC", "COSINE",
	}
	if idx.HNSWM > 0 {
		attrs = append(attrs, "M", strconv.Itoa(idx.HNSWM))
	}
	if idx.HNSWEFConstruct > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(idx.HNSWEFConstruct))
	}

	args = append(args, "vector", "VECTOR", "HNSW", strconv.Itoa(len(attrs)))
	args = append(args, attrs...)

	return args, nil
}
