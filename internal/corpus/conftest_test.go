package corpus

import (
	"context"
	"sort"

	"github.com/veritract/docpipe/internal/db"
)

// fakeStore is an in-memory stand-in for the vector store used by both the
// corpus and progress tests.
type fakeStore struct {
	hashes    map[string]map[string]string
	sets      map[string]map[string]struct{}
	indexes   map[string]*db.IndexDefinition
	knnResult *db.SearchResult
	lastKNN   *db.KNNQuery
	err       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hashes:  make(map[string]map[string]string),
		sets:    make(map[string]map[string]struct{}),
		indexes: make(map[string]*db.IndexDefinition),
	}
}

func (f *fakeStore) HSet(_ context.Context, key string, fields map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.hashes[key] = fields
	return nil
}

func (f *fakeStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	if f.err != nil {
		return f.err
	}
	for _, item := range items {
		f.hashes[item.Key] = item.Fields
	}
	return nil
}

func (f *fakeStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	fields, ok := f.hashes[key]
	if !ok {
		return map[string]string{}, nil
	}
	return fields, nil
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.hashes[key]
	return ok, nil
}

func (f *fakeStore) SAdd(_ context.Context, key string, members ...string) error {
	if f.err != nil {
		return f.err
	}
	set, ok := f.sets[key]
	if !ok {
		set = make(map[string]struct{})
		f.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

func (f *fakeStore) SMembers(_ context.Context, key string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]string, 0, len(f.sets[key]))
	for m := range f.sets[key] {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStore) SCard(_ context.Context, key string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(f.sets[key])), nil
}

func (f *fakeStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	f.indexes[def.Name] = def
	return nil
}

func (f *fakeStore) IndexExists(_ context.Context, name string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.indexes[name]
	return ok, nil
}

func (f *fakeStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastKNN = q
	if f.knnResult == nil {
		return &db.SearchResult{}, nil
	}
	return f.knnResult, nil
}
