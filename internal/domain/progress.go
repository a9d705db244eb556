package domain

import "time"

// SourceStatus is the lifecycle state of one ingestion source.
type SourceStatus string

// Ingestion source states. Failed is resumable back into InProgress using
// the persisted LastBatchIndex.
const (
	StatusPending    SourceStatus = "pending"
	StatusInProgress SourceStatus = "in_progress"
	StatusCompleted  SourceStatus = "completed"
	StatusFailed     SourceStatus = "failed"
)

// BootstrapProgress is the durable per-source ingestion checkpoint, the only
// state that survives a crash. The worker returns an updated copy from each
// batch step; the orchestrator owns writing it back.
//
// LastBatchIndex only moves forward. Resume re-skips all batches with index
// below it and relies on content-hash dedup for the boundary batch.
type BootstrapProgress struct {
	Source            string
	Status            SourceStatus
	TotalRecords      int
	ProcessedRecords  int
	EmbeddedRecords   int
	ErrorCount        int
	LastBatchIndex    int
	LastProcessedHash string
	StartedAt         time.Time
	CompletedAt       time.Time
}

// ErrorRate returns the cumulative per-record error rate, 0 when nothing has
// been processed yet.
func (p BootstrapProgress) ErrorRate() float64 {
	if p.ProcessedRecords == 0 {
		return 0
	}
	return float64(p.ErrorCount) / float64(p.ProcessedRecords)
}

// CorpusDocument is one embedded record as stored in a vector store.
type CorpusDocument struct {
	ID          string
	Vector      []float32
	Content     string
	ContentHash string
	Source      string
	TenantID    string
	Metadata    map[string]string
}

// RetrievalHit is one nearest-neighbor result from a vector store.
type RetrievalHit struct {
	ID          string
	Content     string
	ContentHash string
	Source      string
	Score       float64
}
