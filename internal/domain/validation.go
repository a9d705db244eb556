package domain

// ValidationCode identifies a fixed, user-facing validation outcome.
type ValidationCode string

// Validation codes. EMPTY_DOCUMENT through CORRUPT halt the pipeline for the
// affected document; OCR_REQUIRED reroutes instead of halting; the remaining
// codes are warnings attached to the result.
const (
	CodeEmptyDocument     ValidationCode = "EMPTY_DOCUMENT"
	CodeNoChunks          ValidationCode = "NO_CHUNKS"
	CodeZeroClauses       ValidationCode = "ZERO_CLAUSES"
	CodeEncrypted         ValidationCode = "ENCRYPTED"
	CodeCorrupt           ValidationCode = "CORRUPT"
	CodeOCRRequired       ValidationCode = "OCR_REQUIRED"
	CodeDocumentTruncated ValidationCode = "DOCUMENT_TRUNCATED"
	CodeLowConfidence     ValidationCode = "LOW_CONFIDENCE"
)

// Route directs a document after a soft validation failure.
type Route string

// Routes out of a validation gate.
const (
	RouteNone Route = ""
	RouteOCR  Route = "ocr"
)

// ValidationError is a user-actionable pipeline halt. It is a business-rule
// rejection, never retried and never treated as a system fault.
type ValidationError struct {
	Code        ValidationCode
	Stage       string
	UserMessage string
	Suggestion  string
}

func (e *ValidationError) Error() string {
	return string(e.Code) + " at " + e.Stage + ": " + e.UserMessage
}

// ValidationWarning is attached to a result without blocking progress.
type ValidationWarning struct {
	Code    ValidationCode
	Message string
}

// ValidationResult is produced per pipeline-stage transition. Ephemeral.
//
// Valid=false carries Err. Valid=true may still carry a Reroute (soft
// failure), Warnings, or a Truncation attached by the budget gate.
type ValidationResult struct {
	Valid      bool
	Err        *ValidationError
	Reroute    Route
	Warnings   []ValidationWarning
	Truncation *TruncationResult
}

// OK returns a passing result with no attachments.
func OK() ValidationResult { return ValidationResult{Valid: true} }

// ExtractionReport is the text-extraction quality summary consumed by the
// extraction gate.
type ExtractionReport struct {
	NeedsOCR   bool
	Encrypted  bool
	Corrupt    bool
	Confidence float64
}

// Clause is the minimal clause shape the classifier gate needs to count
// extraction results. Full clause semantics live with the analysis stages.
type Clause struct {
	Type       string
	Text       string
	Confidence float64
}
