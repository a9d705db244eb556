package datasets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/veritract/docpipe/internal/domain"
)

// cuadSource streams the CUAD v1 annotated-contract dataset (SQuAD layout:
// data[].paragraphs[].qas[].answers[].text holds the labeled clause spans).
// One record is emitted per non-empty answer span.
type cuadSource struct {
	dataDir string
}

func newCUADSource(dataDir string) *cuadSource {
	return &cuadSource{dataDir: dataDir}
}

func (s *cuadSource) Name() string { return SourceCUAD }

// Records opens the dataset file and positions a streaming decoder at the
// "data" array, so the file is never held in memory as a whole.
func (s *cuadSource) Records(_ context.Context) (Stream, error) {
	path := filepath.Join(s.dataDir, "cuad", "CUAD_v1.json")
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open cuad dataset: %w", err)
	}

	dec := json.NewDecoder(f)
	if err := seekToArray(dec, "data"); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("cuad dataset layout: %w", err)
	}

	return &cuadStream{f: f, dec: dec}, nil
}

type cuadEntry struct {
	Title      string `json:"title"`
	Paragraphs []struct {
		QAs []struct {
			ID      string `json:"id"`
			Answers []struct {
				Text string `json:"text"`
			} `json:"answers"`
		} `json:"qas"`
	} `json:"paragraphs"`
}

type cuadStream struct {
	f      *os.File
	dec    *json.Decoder
	queue  []domain.NormalizedRecord
	closed bool
}

func (s *cuadStream) Next(ctx context.Context) (domain.NormalizedRecord, error) {
	for {
		select {
		case <-ctx.Done():
			return domain.NormalizedRecord{}, ctx.Err()
		default:
		}

		if len(s.queue) > 0 {
			rec := s.queue[0]
			s.queue = s.queue[1:]
			return rec, nil
		}
		if !s.dec.More() {
			return domain.NormalizedRecord{}, io.EOF
		}

		var entry cuadEntry
		if err := s.dec.Decode(&entry); err != nil {
			// One undecodable contract; report and keep streaming.
			return domain.NormalizedRecord{}, &RecordError{Err: err}
		}

		for _, para := range entry.Paragraphs {
			for _, qa := range para.QAs {
				for _, ans := range qa.Answers {
					if len(ans.Text) < minContentLen {
						continue
					}
					s.queue = append(s.queue, domain.NewNormalizedRecord(
						SourceCUAD, ans.Text, map[string]string{
							"contract": entry.Title,
							"category": qa.ID,
						},
					))
				}
			}
		}
	}
}

func (s *cuadStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}

// seekToArray advances the decoder past the opening of the named top-level
// array, leaving it positioned for element-wise Decode calls.
func seekToArray(dec *json.Decoder, name string) error {
	if _, err := dec.Token(); err != nil { // opening {
		return err
	}
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		if key == name {
			if _, err := dec.Token(); err != nil { // opening [
				return err
			}
			return nil
		}
		// Skip the value of an uninteresting key.
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return err
		}
	}
}
