// Package datasets parses the reference corpora (CUAD, ContractNLI,
// Bonterms, CommonAccord) into lazy streams of normalized records. The
// ingestion worker is agnostic to how a source's raw files are parsed.
package datasets

import (
	"context"
	"fmt"

	"github.com/veritract/docpipe/internal/domain"
)

// Known source names.
const (
	SourceCUAD         = "cuad"
	SourceContractNLI  = "contract_nli"
	SourceBonterms     = "bonterms"
	SourceCommonAccord = "commonaccord"
)

// Stream is a lazy, single-pass sequence of normalized records. Next returns
// io.EOF when the stream is exhausted. A *RecordError return reports one bad
// record without ending the stream; any other error is fatal.
type Stream interface {
	Next(ctx context.Context) (domain.NormalizedRecord, error)
	Close() error
}

// Source is one known dataset behind a restartable record stream.
type Source interface {
	Name() string
	Records(ctx context.Context) (Stream, error)
}

// RecordError reports a single malformed record. The ingestion worker counts
// these without aborting the batch.
type RecordError struct {
	Err error
}

func (e *RecordError) Error() string { return "record: " + e.Err.Error() }
func (e *RecordError) Unwrap() error { return e.Err }

// minContentLen filters out fragments too short to be useful retrieval
// context.
const minContentLen = 20

// Open resolves a source by name. Sources form a closed set; unknown names
// are a terminal error.
func Open(name, dataDir string) (Source, error) {
	switch name {
	case SourceCUAD:
		return newCUADSource(dataDir), nil
	case SourceContractNLI:
		return newContractNLISource(dataDir), nil
	case SourceBonterms:
		return newFileSource(SourceBonterms, dataDir, "bonterms", ".md", ".txt"), nil
	case SourceCommonAccord:
		return newFileSource(SourceCommonAccord, dataDir, "commonaccord", ".md"), nil
	default:
		return nil, fmt.Errorf("%q: %w", name, domain.ErrUnknownSource)
	}
}

// OpenAll resolves the named sources, failing on the first unknown name.
func OpenAll(names []string, dataDir string) ([]Source, error) {
	out := make([]Source, 0, len(names))
	for _, n := range names {
		src, err := Open(n, dataDir)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}
