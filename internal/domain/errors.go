package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrProgressNotFound signals a missing bootstrap progress row. Progress
	// rows are seeded ahead of ingestion, so absence is an ops error, not a
	// transient condition.
	ErrProgressNotFound = errors.New("bootstrap progress not found")
	// ErrUnknownSource signals a dataset source name with no registered parser.
	ErrUnknownSource = errors.New("unknown dataset source")
	// ErrBatchTooLarge signals a batch above the provider's hard item limit.
	// This is a caller bug and must not be retried.
	ErrBatchTooLarge = errors.New("batch exceeds provider limit")
	// ErrCircuitBreakerTripped signals a sustained ingestion error rate.
	// Retrying will not fix the underlying problem; operator action required.
	ErrCircuitBreakerTripped = errors.New("circuit breaker tripped")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrVectorDimMismatch signals a vector dimension mismatch on insert.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)

// ProviderError wraps ErrEmbeddingProviderError with the HTTP status and
// retriability classification of a provider failure. StatusCode is 0 for
// network-level failures, which are treated as transient.
type ProviderError struct {
	StatusCode int
	Retriable  bool
	Detail     string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", ErrEmbeddingProviderError.Error(), e.Detail)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrEmbeddingProviderError.Error(), e.StatusCode, e.Detail)
}

func (e *ProviderError) Unwrap() error { return ErrEmbeddingProviderError }

// NewProviderError creates a classified provider error.
func NewProviderError(statusCode int, retriable bool, detail string) error {
	return &ProviderError{StatusCode: statusCode, Retriable: retriable, Detail: detail}
}

// IsRetriable reports whether err is safe to retry with backoff.
// Only provider errors explicitly classified as transient qualify;
// everything else defaults to terminal.
func IsRetriable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retriable
	}
	return false
}
