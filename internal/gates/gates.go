// Package gates implements the validation gate pipeline: small, stateless
// checks run strictly between durable pipeline steps, deciding halt-with-error
// versus proceed. A gate failure is a business-rule rejection, never a
// transient fault, so gates run outside any automatic-retry wrapper and their
// failures must never be retried.
package gates

import (
	"strings"

	"github.com/veritract/docpipe/internal/domain"
)

// Pipeline stage labels carried on validation errors.
const (
	StageParser     = "parser"
	StageExtraction = "extraction"
	StageClassifier = "classifier"
	StageBudget     = "budget"
)

// LowConfidenceThreshold is the extraction confidence below which a warning
// is attached. Warnings never block progress.
const LowConfidenceThreshold = 0.5

// ValidateParserOutput gates the text-extraction stage: empty or
// whitespace-only text and zero chunks are both hard halts.
func ValidateParserOutput(text string, chunks []domain.DocumentChunk) domain.ValidationResult {
	if strings.TrimSpace(text) == "" {
		return domain.ValidationResult{Err: newError(domain.CodeEmptyDocument, StageParser)}
	}
	if len(chunks) == 0 {
		return domain.ValidationResult{Err: newError(domain.CodeNoChunks, StageParser)}
	}
	return domain.OK()
}

// ValidateExtraction gates extraction quality. OCR need is a soft failure
// that reroutes rather than halting; encryption and corruption are hard,
// user-actionable halts; low confidence only adds a warning.
func ValidateExtraction(report domain.ExtractionReport) domain.ValidationResult {
	switch {
	case report.Encrypted:
		return domain.ValidationResult{Err: newError(domain.CodeEncrypted, StageExtraction)}
	case report.Corrupt:
		return domain.ValidationResult{Err: newError(domain.CodeCorrupt, StageExtraction)}
	case report.NeedsOCR:
		return domain.ValidationResult{Valid: true, Reroute: domain.RouteOCR}
	}

	res := domain.OK()
	if report.Confidence < LowConfidenceThreshold {
		res.Warnings = append(res.Warnings, domain.ValidationWarning{
			Code:    domain.CodeLowConfidence,
			Message: "text extraction confidence is low; results may be incomplete",
		})
	}
	return res
}

// ValidateClassifierOutput gates clause extraction. Zero clauses is never
// "nothing to report": it is treated as a likely extraction failure and halts
// the whole analysis.
func ValidateClassifierOutput(clauses []domain.Clause) domain.ValidationResult {
	if len(clauses) == 0 {
		return domain.ValidationResult{Err: newError(domain.CodeZeroClauses, StageClassifier)}
	}
	return domain.OK()
}

// ValidateBudget gates the token budget step. Unlike every other gate it
// never fails: truncation is a mitigation, not a rejection. When the
// document was truncated the result carries the truncation and a warning so
// callers can surface the removed sections.
func ValidateBudget(res domain.TruncationResult) domain.ValidationResult {
	out := domain.OK()
	if !res.Truncated {
		return out
	}
	trunc := res
	out.Truncation = &trunc
	m := messages[domain.CodeDocumentTruncated]
	out.Warnings = append(out.Warnings, domain.ValidationWarning{
		Code:    domain.CodeDocumentTruncated,
		Message: m.user,
	})
	return out
}
