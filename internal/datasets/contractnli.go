package datasets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/veritract/docpipe/internal/domain"
)

// contractNLISource streams the ContractNLI corpus: a documents array where
// each element carries the full NDA text plus span annotations. One record is
// emitted per document.
type contractNLISource struct {
	dataDir string
}

func newContractNLISource(dataDir string) *contractNLISource {
	return &contractNLISource{dataDir: dataDir}
}

func (s *contractNLISource) Name() string { return SourceContractNLI }

func (s *contractNLISource) Records(_ context.Context) (Stream, error) {
	path := filepath.Join(s.dataDir, "contract_nli", "train.json")
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open contract_nli dataset: %w", err)
	}

	dec := json.NewDecoder(f)
	if err := seekToArray(dec, "documents"); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("contract_nli dataset layout: %w", err)
	}

	return &contractNLIStream{f: f, dec: dec}, nil
}

type contractNLIDoc struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Text     string `json:"text"`
}

type contractNLIStream struct {
	f      *os.File
	dec    *json.Decoder
	closed bool
}

func (s *contractNLIStream) Next(ctx context.Context) (domain.NormalizedRecord, error) {
	for {
		select {
		case <-ctx.Done():
			return domain.NormalizedRecord{}, ctx.Err()
		default:
		}

		if !s.dec.More() {
			return domain.NormalizedRecord{}, io.EOF
		}

		var doc contractNLIDoc
		if err := s.dec.Decode(&doc); err != nil {
			return domain.NormalizedRecord{}, &RecordError{Err: err}
		}
		if len(doc.Text) < minContentLen {
			// Empty or near-empty documents are skipped, not errors.
			continue
		}

		return domain.NewNormalizedRecord(SourceContractNLI, doc.Text, map[string]string{
			"document_id": strconv.Itoa(doc.ID),
			"file_name":   doc.FileName,
		}), nil
	}
}

func (s *contractNLIStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}
