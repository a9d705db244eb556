package datasets

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/veritract/docpipe/internal/domain"
)

// fileSource streams one record per file from a template directory. It backs
// the Bonterms and CommonAccord sources, which ship as trees of markdown and
// plain-text templates rather than a single dataset file.
type fileSource struct {
	name    string
	dataDir string
	subdir  string
	exts    map[string]struct{}
}

func newFileSource(name, dataDir, subdir string, exts ...string) *fileSource {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		set[ext] = struct{}{}
	}
	return &fileSource{name: name, dataDir: dataDir, subdir: subdir, exts: set}
}

func (s *fileSource) Name() string { return s.name }

// Records walks the tree up front to collect paths, then reads files lazily
// as the stream is consumed. Paths are sorted so batch numbering is stable
// across runs.
func (s *fileSource) Records(_ context.Context) (Stream, error) {
	root := filepath.Join(s.dataDir, s.subdir)
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if _, ok := s.exts[strings.ToLower(filepath.Ext(path))]; ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s templates: %w", s.name, err)
	}
	sort.Strings(paths)

	return &fileStream{source: s.name, root: root, paths: paths}, nil
}

type fileStream struct {
	source string
	root   string
	paths  []string
	pos    int
}

func (s *fileStream) Next(ctx context.Context) (domain.NormalizedRecord, error) {
	for {
		select {
		case <-ctx.Done():
			return domain.NormalizedRecord{}, ctx.Err()
		default:
		}

		if s.pos >= len(s.paths) {
			return domain.NormalizedRecord{}, io.EOF
		}
		path := s.paths[s.pos]
		s.pos++

		data, err := os.ReadFile(path)
		if err != nil {
			return domain.NormalizedRecord{}, &RecordError{Err: err}
		}
		text := strings.TrimSpace(string(data))
		if len(text) < minContentLen {
			// Empty or near-empty templates are skipped, not errors.
			continue
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		return domain.NewNormalizedRecord(s.source, text, map[string]string{
			"template": filepath.ToSlash(rel),
		}), nil
	}
}

func (s *fileStream) Close() error { return nil }
