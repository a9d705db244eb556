package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/veritract/docpipe/internal/domain"
	"github.com/veritract/docpipe/internal/gates"
	"github.com/veritract/docpipe/internal/tokens"
)

type segmentRequest struct {
	DocumentID string             `json:"document_id"`
	Text       string             `json:"text"`
	Extraction *extractionRequest `json:"extraction,omitempty"`
}

// extractionRequest is the upstream extractor's quality summary for its
// document. Optional: absent means the text arrived pre-validated.
type extractionRequest struct {
	NeedsOCR   bool    `json:"needs_ocr"`
	Encrypted  bool    `json:"encrypted"`
	Corrupt    bool    `json:"corrupt"`
	Confidence float64 `json:"confidence"`
}

type chunkResponse struct {
	ID         string `json:"id"`
	Index      int    `json:"index"`
	Content    string `json:"content"`
	Overlap    string `json:"overlap,omitempty"`
	Section    string `json:"section,omitempty"`
	TokenCount int    `json:"token_count"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

type warningResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type segmentResponse struct {
	DocumentID      string            `json:"document_id"`
	Reroute         string            `json:"reroute,omitempty"`
	Chunks          []chunkResponse   `json:"chunks"`
	TokenCount      int               `json:"token_count"`
	WithinBudget    bool              `json:"within_budget"`
	Truncated       bool              `json:"truncated"`
	RemovedSections []string          `json:"removed_sections,omitempty"`
	Warnings        []warningResponse `json:"warnings,omitempty"`
}

type gateErrorResponse struct {
	Code       string `json:"code"`
	Stage      string `json:"stage"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// handleSegment runs the extraction gate, the chunker, and the token-budget
// enforcer for one document, returning either the bounded chunk list or the
// first failing gate's user-facing error.
func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	body := r.Body
	if s.pipe.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.pipe.MaxBodyBytes)
	}

	var req segmentRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"code":    "document_too_large",
				"message": fmt.Sprintf("document exceeds the %d byte limit", tooLarge.Limit),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "invalid_request",
			"message": "request body is not valid JSON",
		})
		return
	}
	if req.DocumentID == "" {
		req.DocumentID = uuid.NewString()
	}

	var warnings []domain.ValidationWarning

	if req.Extraction != nil {
		report := domain.ExtractionReport{
			NeedsOCR:   req.Extraction.NeedsOCR,
			Encrypted:  req.Extraction.Encrypted,
			Corrupt:    req.Extraction.Corrupt,
			Confidence: req.Extraction.Confidence,
		}
		res := s.runner.Run(req.DocumentID, []gates.Step{
			{Stage: gates.StageExtraction, Gate: func() domain.ValidationResult {
				return gates.ValidateExtraction(report)
			}},
		})
		if !res.Valid {
			writeGateError(w, res.Err)
			return
		}
		if res.Reroute == domain.RouteOCR {
			writeJSON(w, http.StatusOK, segmentResponse{
				DocumentID: req.DocumentID,
				Reroute:    string(res.Reroute),
				Chunks:     []chunkResponse{},
				Warnings:   toWarnings(res.Warnings),
			})
			return
		}
		warnings = res.Warnings
	}

	chunks := s.pipe.Chunker.Chunk(req.Text, s.pipe.ChunkOpts)

	var trunc domain.TruncationResult
	res := s.runner.Run(req.DocumentID, []gates.Step{
		{Stage: gates.StageParser, Gate: func() domain.ValidationResult {
			return gates.ValidateParserOutput(req.Text, chunks)
		}},
		{Stage: gates.StageBudget, Gate: func() domain.ValidationResult {
			trunc = tokens.Truncate(s.pipe.Estimator, req.Text, chunks, s.pipe.TokenBudget)
			return gates.ValidateBudget(trunc)
		}},
	})
	if !res.Valid {
		writeGateError(w, res.Err)
		return
	}
	warnings = append(warnings, res.Warnings...)

	out := make([]chunkResponse, len(trunc.Chunks))
	for i, c := range trunc.Chunks {
		out[i] = chunkResponse{
			ID:         c.ID,
			Index:      c.Index,
			Content:    c.Content,
			Overlap:    c.Overlap,
			Section:    c.SectionLabel(),
			TokenCount: c.TokenCount,
			Start:      c.StartPosition,
			End:        c.EndPosition,
		}
	}
	writeJSON(w, http.StatusOK, segmentResponse{
		DocumentID:      req.DocumentID,
		Chunks:          out,
		TokenCount:      trunc.OriginalTokens,
		WithinBudget:    !trunc.Truncated,
		Truncated:       trunc.Truncated,
		RemovedSections: trunc.RemovedSections,
		Warnings:        toWarnings(warnings),
	})
}

// writeGateError maps a gate halt to 422: the document was understood and
// rejected by policy, not malformed transport input.
func writeGateError(w http.ResponseWriter, err *domain.ValidationError) {
	writeJSON(w, http.StatusUnprocessableEntity, gateErrorResponse{
		Code:       string(err.Code),
		Stage:      err.Stage,
		Message:    err.UserMessage,
		Suggestion: err.Suggestion,
	})
}

func toWarnings(in []domain.ValidationWarning) []warningResponse {
	if len(in) == 0 {
		return nil
	}
	out := make([]warningResponse, len(in))
	for i, warn := range in {
		out[i] = warningResponse{Code: string(warn.Code), Message: warn.Message}
	}
	return out
}
