// Package bootstrap runs the one-time reference corpus ingestion: streaming
// dataset records through the embedding client into the vector store, with
// durable per-source checkpoints so an interrupted run resumes where it
// stopped instead of starting over.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/veritract/docpipe/internal/datasets"
	"github.com/veritract/docpipe/internal/domain"
	"github.com/veritract/docpipe/internal/embedding"
	"github.com/veritract/docpipe/internal/events"
	"github.com/veritract/docpipe/internal/metrics"
)

// corpusStore is the consumer interface for the vector store (ISP).
type corpusStore interface {
	InsertBatch(ctx context.Context, docs []domain.CorpusDocument) error
	ContentHashes(ctx context.Context, source string) (map[string]struct{}, error)
}

// progressStore is the consumer interface for checkpoint persistence (ISP).
type progressStore interface {
	Seed(ctx context.Context, sources []string) error
	Load(ctx context.Context, source string) (domain.BootstrapProgress, error)
	Save(ctx context.Context, prog domain.BootstrapProgress) error
}

// Options tunes the ingestion worker.
type Options struct {
	// BatchSize is the number of records per embedding batch. It must stay
	// constant across runs of the same corpus: batch numbering is derived
	// from it, and the resume checkpoint is a batch index.
	BatchSize int
	// ErrorRateThreshold trips the circuit breaker when the cumulative
	// per-record error rate exceeds it.
	ErrorRateThreshold float64
	// BatchDelay is the minimum spacing between batch submissions.
	BatchDelay time.Duration
	// MaxRetries and RetryBaseDelay govern the retry loop around each
	// embedding call.
	MaxRetries     int
	RetryBaseDelay time.Duration
	// SourceConcurrency bounds how many sources RunAll ingests in parallel.
	SourceConcurrency int
}

// Worker ingests dataset sources into the shared reference corpus.
//
// Batches are formed purely from the parsed record stream, never from store
// state, so batch N always contains the same records on every run. Resume
// skips whole batches below the checkpoint index and relies on content-hash
// dedup for the boundary batch, making re-processing idempotent.
type Worker struct {
	corpus   corpusStore
	progress progressStore
	embedder domain.BatchEmbedder
	limiter  *rate.Limiter
	pub      events.Publisher
	logger   *zap.Logger
	opts     Options
}

// NewWorker creates an ingestion worker.
func NewWorker(corpus corpusStore, progress progressStore, embedder domain.BatchEmbedder, pub events.Publisher, logger *zap.Logger, opts Options) *Worker {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 128
	}
	if opts.ErrorRateThreshold <= 0 {
		opts.ErrorRateThreshold = 0.10
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = time.Second
	}
	if opts.SourceConcurrency <= 0 {
		opts.SourceConcurrency = 2
	}
	var limiter *rate.Limiter
	if opts.BatchDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.BatchDelay), 1)
	}
	if pub == nil {
		pub = events.Nop()
	}
	return &Worker{
		corpus:   corpus,
		progress: progress,
		embedder: embedder,
		limiter:  limiter,
		pub:      pub,
		logger:   logger,
		opts:     opts,
	}
}

// RunAll seeds progress rows and ingests every source, bounding concurrency.
// A source hitting its circuit breaker is logged and marked failed in its
// progress row without stopping the others, and RunAll still returns nil;
// any other error propagates and cancels the remaining sources.
func (w *Worker) RunAll(ctx context.Context, sources []datasets.Source) error {
	names := make([]string, len(sources))
	for i, src := range sources {
		names[i] = src.Name()
	}
	if err := w.progress.Seed(ctx, names); err != nil {
		return fmt.Errorf("seed progress: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.SourceConcurrency)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			if err := w.Run(ctx, src); err != nil {
				if errors.Is(err, domain.ErrCircuitBreakerTripped) {
					// Leave the other sources running; the failed one
					// keeps its checkpoint for a later resume.
					w.logger.Error("source ingestion tripped circuit breaker",
						zap.String("source", src.Name()), zap.Error(err))
					return nil
				}
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Run ingests a single source from its persisted checkpoint to completion.
// A source already marked completed is a no-op.
func (w *Worker) Run(ctx context.Context, src datasets.Source) error {
	name := src.Name()
	log := w.logger.With(zap.String("source", name))

	prog, err := w.progress.Load(ctx, name)
	if err != nil {
		return err
	}
	if prog.Status == domain.StatusCompleted {
		log.Info("source already ingested, skipping")
		return nil
	}

	seen, err := w.corpus.ContentHashes(ctx, name)
	if err != nil {
		return fmt.Errorf("load dedup set for %s: %w", name, err)
	}

	resumeFrom := 0
	if prog.Status == domain.StatusInProgress || prog.Status == domain.StatusFailed {
		resumeFrom = prog.LastBatchIndex
	}
	if prog.StartedAt.IsZero() {
		prog.StartedAt = time.Now().UTC()
	}
	prog.Status = domain.StatusInProgress
	if err := w.progress.Save(ctx, prog); err != nil {
		return err
	}

	log.Info("ingesting source",
		zap.Int("resume_from_batch", resumeFrom),
		zap.Int("dedup_set_size", len(seen)),
	)
	w.pub.Publish(events.Event{
		Source: name, Stage: "ingestion", Percent: -1,
		Message: fmt.Sprintf("ingesting from batch %d", resumeFrom),
	})

	stream, err := src.Records(ctx)
	if err != nil {
		return w.fail(ctx, prog, err)
	}
	defer stream.Close()

	batch := make([]domain.NormalizedRecord, 0, w.opts.BatchSize)
	batchIndex := 0
	streamDone := false

	for !streamDone {
		batch = batch[:0]
		for len(batch) < w.opts.BatchSize {
			rec, err := stream.Next(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) {
					streamDone = true
					break
				}
				var recErr *datasets.RecordError
				if errors.As(err, &recErr) {
					// Skipped batches already counted their record errors
					// on the run that processed them.
					if batchIndex >= resumeFrom {
						prog.ProcessedRecords++
						prog.ErrorCount++
						metrics.IngestionRecordsTotal.WithLabelValues(name, "error").Inc()
						log.Warn("bad record", zap.Error(recErr))
					}
					continue
				}
				return w.fail(ctx, prog, fmt.Errorf("stream %s: %w", name, err))
			}
			batch = append(batch, rec)
		}
		if len(batch) == 0 {
			break
		}

		if batchIndex < resumeFrom {
			metrics.IngestionBatchesTotal.WithLabelValues(name, "resumed_skip").Inc()
			batchIndex++
			continue
		}

		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				return w.checkpoint(prog, err)
			}
		}

		prog, err = w.processBatch(ctx, log, prog, batch, batchIndex, seen)
		if err != nil {
			return err
		}
		batchIndex++

		if prog.ErrorRate() > w.opts.ErrorRateThreshold {
			metrics.IngestionCircuitTripsTotal.WithLabelValues(name).Inc()
			tripErr := fmt.Errorf("source %s error rate %.2f over threshold %.2f: %w",
				name, prog.ErrorRate(), w.opts.ErrorRateThreshold, domain.ErrCircuitBreakerTripped)
			return w.fail(ctx, prog, tripErr)
		}

		select {
		case <-ctx.Done():
			// Mid-run cancellation keeps the row in_progress with the
			// checkpoint already saved; the next run resumes from it.
			return w.checkpoint(prog, ctx.Err())
		default:
		}
	}

	prog.Status = domain.StatusCompleted
	prog.TotalRecords = prog.ProcessedRecords
	prog.CompletedAt = time.Now().UTC()
	if err := w.progress.Save(context.WithoutCancel(ctx), prog); err != nil {
		return err
	}
	metrics.IngestionProgressRatio.WithLabelValues(name).Set(1)

	log.Info("source ingestion completed",
		zap.Int("processed", prog.ProcessedRecords),
		zap.Int("embedded", prog.EmbeddedRecords),
		zap.Int("errors", prog.ErrorCount),
	)
	w.pub.Publish(events.Event{
		Source: name, Stage: "ingestion", Percent: 100,
		Message: fmt.Sprintf("completed: %d embedded, %d errors", prog.EmbeddedRecords, prog.ErrorCount),
	})
	return nil
}

// processBatch embeds and stores one batch, then persists the advanced
// checkpoint. The checkpoint write is the batch's commit point: a crash
// before it replays the whole batch, which dedup makes harmless.
func (w *Worker) processBatch(ctx context.Context, log *zap.Logger, prog domain.BootstrapProgress, batch []domain.NormalizedRecord, batchIndex int, seen map[string]struct{}) (domain.BootstrapProgress, error) {
	name := prog.Source

	fresh := make([]domain.NormalizedRecord, 0, len(batch))
	skipped := 0
	for _, rec := range batch {
		if _, dup := seen[rec.ContentHash]; dup {
			skipped++
			continue
		}
		seen[rec.ContentHash] = struct{}{}
		fresh = append(fresh, rec)
	}
	if skipped > 0 {
		metrics.IngestionRecordsTotal.WithLabelValues(name, "skipped").Add(float64(skipped))
	}

	if len(fresh) > 0 {
		texts := make([]string, len(fresh))
		for i, rec := range fresh {
			texts[i] = rec.Content
		}

		var result domain.EmbedBatchResult
		embedErr := embedding.RetryWithBackoff(ctx, w.logger, func() error {
			var err error
			result, err = w.embedder.EmbedBatch(ctx, texts, domain.InputDocument)
			return err
		}, w.opts.MaxRetries, w.opts.RetryBaseDelay)
		if embedErr != nil {
			// Transient failures have already exhausted their retries here,
			// and auth or request shape errors would fail every batch the
			// same way. Either way nothing from this batch was stored, so
			// the checkpoint stays at the batch start and a later resume
			// replays the whole batch.
			for _, rec := range fresh {
				delete(seen, rec.ContentHash)
			}
			metrics.IngestionBatchesTotal.WithLabelValues(name, "error").Inc()
			log.Warn("batch failed",
				zap.Int("batch", batchIndex), zap.Error(embedErr))
			return prog, w.fail(ctx, prog, fmt.Errorf("embed batch %d: %w", batchIndex, embedErr))
		}

		docs := make([]domain.CorpusDocument, len(fresh))
		for i, rec := range fresh {
			docs[i] = domain.CorpusDocument{
				Vector:      result.Embeddings[i],
				Content:     rec.Content,
				ContentHash: rec.ContentHash,
				Source:      name,
				Metadata:    rec.Metadata,
			}
		}
		if err := w.corpus.InsertBatch(ctx, docs); err != nil {
			return prog, w.fail(ctx, prog, fmt.Errorf("insert batch %d: %w", batchIndex, err))
		}

		prog.EmbeddedRecords += len(fresh)
		prog.LastProcessedHash = fresh[len(fresh)-1].ContentHash
		metrics.IngestionRecordsTotal.WithLabelValues(name, "embedded").Add(float64(len(fresh)))
	}

	prog.ProcessedRecords += len(batch)
	prog.LastBatchIndex = batchIndex + 1
	metrics.IngestionBatchesTotal.WithLabelValues(name, "ok").Inc()
	if prog.TotalRecords > 0 {
		ratio := float64(prog.ProcessedRecords) / float64(prog.TotalRecords)
		if ratio > 1 {
			ratio = 1
		}
		metrics.IngestionProgressRatio.WithLabelValues(name).Set(ratio)
	}

	if err := w.progress.Save(ctx, prog); err != nil {
		return prog, fmt.Errorf("checkpoint batch %d: %w", batchIndex, err)
	}

	w.pub.Publish(events.Event{
		Source: name, Stage: "ingestion", Percent: -1,
		Message: fmt.Sprintf("batch %d: %d embedded, %d deduplicated", batchIndex, len(fresh), skipped),
	})
	return prog, nil
}

// fail marks the source failed, keeping the checkpoint for resume. The save
// uses a detached context so a trip during shutdown still lands.
func (w *Worker) fail(ctx context.Context, prog domain.BootstrapProgress, cause error) error {
	prog.Status = domain.StatusFailed
	if err := w.progress.Save(context.WithoutCancel(ctx), prog); err != nil {
		w.logger.Error("failed to persist failure state",
			zap.String("source", prog.Source), zap.Error(err))
	}
	w.pub.Publish(events.Event{
		Source: prog.Source, Stage: "ingestion", Percent: -1,
		Message: "ingestion failed: " + cause.Error(),
	})
	return cause
}

// checkpoint persists the in_progress row on an orderly interruption.
func (w *Worker) checkpoint(prog domain.BootstrapProgress, cause error) error {
	if err := w.progress.Save(context.Background(), prog); err != nil {
		w.logger.Error("failed to persist checkpoint",
			zap.String("source", prog.Source), zap.Error(err))
	}
	return cause
}
