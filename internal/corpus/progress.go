package corpus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/veritract/docpipe/internal/db"
	"github.com/veritract/docpipe/internal/domain"
)

// progressStore is the consumer interface for progress persistence (ISP).
type progressStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// ProgressStore persists BootstrapProgress rows, one hash per source.
// Save writes the whole row in a single HSET so a checkpoint is one durable
// unit: either the new LastBatchIndex and totals land together, or not at all.
type ProgressStore struct {
	db        progressStore
	keyPrefix string
}

// NewProgressStore creates a progress store.
func NewProgressStore(s progressStore, keyPrefix string) *ProgressStore {
	return &ProgressStore{db: s, keyPrefix: keyPrefix}
}

// Seed creates pending rows for sources that have none yet.
func (p *ProgressStore) Seed(ctx context.Context, sources []string) error {
	for _, source := range sources {
		exists, err := p.db.Exists(ctx, p.key(source))
		if err != nil {
			return fmt.Errorf("check progress for %s: %w", source, err)
		}
		if exists {
			continue
		}
		if err := p.Save(ctx, domain.BootstrapProgress{
			Source: source,
			Status: domain.StatusPending,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the progress row for a source. A missing row is
// domain.ErrProgressNotFound: rows are seeded ahead of ingestion, so absence
// is an ops error.
func (p *ProgressStore) Load(ctx context.Context, source string) (domain.BootstrapProgress, error) {
	fields, err := p.db.HGetAll(ctx, p.key(source))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.BootstrapProgress{}, fmt.Errorf("source %s: %w", source, domain.ErrProgressNotFound)
		}
		return domain.BootstrapProgress{}, fmt.Errorf("load progress for %s: %w", source, err)
	}
	if len(fields) == 0 {
		return domain.BootstrapProgress{}, fmt.Errorf("source %s: %w", source, domain.ErrProgressNotFound)
	}
	return decodeProgress(source, fields), nil
}

// Save writes the whole progress row as one HSET.
func (p *ProgressStore) Save(ctx context.Context, prog domain.BootstrapProgress) error {
	if err := p.db.HSet(ctx, p.key(prog.Source), encodeProgress(prog)); err != nil {
		return fmt.Errorf("save progress for %s: %w", prog.Source, err)
	}
	return nil
}

// LoadAll reads progress rows for the given sources, skipping missing ones.
func (p *ProgressStore) LoadAll(ctx context.Context, sources []string) ([]domain.BootstrapProgress, error) {
	out := make([]domain.BootstrapProgress, 0, len(sources))
	for _, source := range sources {
		prog, err := p.Load(ctx, source)
		if err != nil {
			if errors.Is(err, domain.ErrProgressNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, prog)
	}
	return out, nil
}

func (p *ProgressStore) key(source string) string {
	return p.keyPrefix + "bootstrap:" + source
}

func encodeProgress(prog domain.BootstrapProgress) map[string]string {
	fields := map[string]string{
		"status":              string(prog.Status),
		"total_records":       strconv.Itoa(prog.TotalRecords),
		"processed_records":   strconv.Itoa(prog.ProcessedRecords),
		"embedded_records":    strconv.Itoa(prog.EmbeddedRecords),
		"error_count":         strconv.Itoa(prog.ErrorCount),
		"last_batch_index":    strconv.Itoa(prog.LastBatchIndex),
		"last_processed_hash": prog.LastProcessedHash,
	}
	if !prog.StartedAt.IsZero() {
		fields["started_at"] = prog.StartedAt.UTC().Format(time.RFC3339)
	}
	if !prog.CompletedAt.IsZero() {
		fields["completed_at"] = prog.CompletedAt.UTC().Format(time.RFC3339)
	}
	return fields
}

func decodeProgress(source string, fields map[string]string) domain.BootstrapProgress {
	atoi := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}
	prog := domain.BootstrapProgress{
		Source:            source,
		Status:            domain.SourceStatus(fields["status"]),
		TotalRecords:      atoi(fields["total_records"]),
		ProcessedRecords:  atoi(fields["processed_records"]),
		EmbeddedRecords:   atoi(fields["embedded_records"]),
		ErrorCount:        atoi(fields["error_count"]),
		LastBatchIndex:    atoi(fields["last_batch_index"]),
		LastProcessedHash: fields["last_processed_hash"],
	}
	if v := fields["started_at"]; v != "" {
		prog.StartedAt, _ = time.Parse(time.RFC3339, v)
	}
	if v := fields["completed_at"]; v != "" {
		prog.CompletedAt, _ = time.Parse(time.RFC3339, v)
	}
	return prog
}
