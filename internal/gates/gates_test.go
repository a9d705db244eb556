package gates

import (
	"testing"

	"github.com/veritract/docpipe/internal/domain"
	"github.com/veritract/docpipe/internal/events"
)

func TestValidateParserOutput(t *testing.T) {
	chunk := domain.DocumentChunk{Content: "some text"}

	tests := []struct {
		name   string
		text   string
		chunks []domain.DocumentChunk
		code   domain.ValidationCode
	}{
		{"ok", "some text", []domain.DocumentChunk{chunk}, ""},
		{"empty text", "", []domain.DocumentChunk{chunk}, domain.CodeEmptyDocument},
		{"whitespace only", " \n\t ", []domain.DocumentChunk{chunk}, domain.CodeEmptyDocument},
		{"no chunks", "some text", nil, domain.CodeNoChunks},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateParserOutput(tt.text, tt.chunks)
			if tt.code == "" {
				if !res.Valid {
					t.Fatalf("expected pass, got %v", res.Err)
				}
				return
			}
			if res.Valid || res.Err == nil || res.Err.Code != tt.code {
				t.Fatalf("expected %s failure, got %+v", tt.code, res)
			}
			if res.Err.Stage != StageParser {
				t.Fatalf("stage = %q, want %q", res.Err.Stage, StageParser)
			}
			if res.Err.UserMessage == "" || res.Err.Suggestion == "" {
				t.Fatal("validation errors must carry a user message and suggestion")
			}
		})
	}
}

func TestValidateExtraction_HardFailures(t *testing.T) {
	res := ValidateExtraction(domain.ExtractionReport{Encrypted: true, Confidence: 1})
	if res.Valid || res.Err.Code != domain.CodeEncrypted {
		t.Fatalf("encrypted document must hard-fail, got %+v", res)
	}

	res = ValidateExtraction(domain.ExtractionReport{Corrupt: true, Confidence: 1})
	if res.Valid || res.Err.Code != domain.CodeCorrupt {
		t.Fatalf("corrupt document must hard-fail, got %+v", res)
	}
}

func TestValidateExtraction_OCRReroutes(t *testing.T) {
	res := ValidateExtraction(domain.ExtractionReport{NeedsOCR: true})
	if !res.Valid {
		t.Fatalf("OCR need must not halt, got %v", res.Err)
	}
	if res.Reroute != domain.RouteOCR {
		t.Fatalf("reroute = %q, want %q", res.Reroute, domain.RouteOCR)
	}
}

func TestValidateExtraction_LowConfidenceWarns(t *testing.T) {
	res := ValidateExtraction(domain.ExtractionReport{Confidence: 0.3})
	if !res.Valid {
		t.Fatalf("low confidence must not halt, got %v", res.Err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Code != domain.CodeLowConfidence {
		t.Fatalf("expected a low-confidence warning, got %v", res.Warnings)
	}

	res = ValidateExtraction(domain.ExtractionReport{Confidence: 0.9})
	if len(res.Warnings) != 0 {
		t.Fatalf("high confidence must not warn, got %v", res.Warnings)
	}
}

func TestValidateClassifierOutput(t *testing.T) {
	res := ValidateClassifierOutput(nil)
	if res.Valid || res.Err.Code != domain.CodeZeroClauses {
		t.Fatalf("zero clauses must halt, got %+v", res)
	}

	res = ValidateClassifierOutput([]domain.Clause{{Type: "confidentiality"}})
	if !res.Valid {
		t.Fatalf("expected pass, got %v", res.Err)
	}
}

func TestValidateBudget(t *testing.T) {
	res := ValidateBudget(domain.TruncationResult{Truncated: false})
	if !res.Valid || len(res.Warnings) != 0 || res.Truncation != nil {
		t.Fatalf("untruncated document: %+v", res)
	}

	trunc := domain.TruncationResult{
		Truncated:       true,
		RemovedSections: []string{"ARTICLE IX"},
	}
	res = ValidateBudget(trunc)
	if !res.Valid {
		t.Fatal("truncation is a mitigation, never a rejection")
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Code != domain.CodeDocumentTruncated {
		t.Fatalf("expected a truncation warning, got %v", res.Warnings)
	}
	if res.Truncation == nil || res.Truncation.RemovedSections[0] != "ARTICLE IX" {
		t.Fatalf("truncation attachment missing, got %+v", res.Truncation)
	}
}

func TestRunner_StopsAtFirstFailure(t *testing.T) {
	var published []events.Event
	pub := events.PublisherFunc(func(e events.Event) { published = append(published, e) })

	thirdRan := false
	steps := []Step{
		{Stage: StageParser, Gate: func() domain.ValidationResult {
			return ValidateParserOutput("text", []domain.DocumentChunk{{Content: "text"}})
		}},
		{Stage: StageExtraction, Gate: func() domain.ValidationResult {
			return ValidateExtraction(domain.ExtractionReport{Corrupt: true})
		}},
		{Stage: StageClassifier, Gate: func() domain.ValidationResult {
			thirdRan = true
			return domain.OK()
		}},
	}

	res := NewRunner(pub).Run("doc-1", steps)
	if res.Valid {
		t.Fatal("expected failure from the extraction gate")
	}
	if res.Err.Code != domain.CodeCorrupt {
		t.Fatalf("code = %s, want %s", res.Err.Code, domain.CodeCorrupt)
	}
	if thirdRan {
		t.Fatal("gates after the first failure must not run")
	}
	if len(published) != 2 {
		t.Fatalf("expected 2 stage events, got %d", len(published))
	}
	if published[1].Message != string(domain.CodeCorrupt) {
		t.Fatalf("failure event message = %q", published[1].Message)
	}
}

func TestRunner_AccumulatesWarningsAndReroute(t *testing.T) {
	steps := []Step{
		{Stage: StageExtraction, Gate: func() domain.ValidationResult {
			return ValidateExtraction(domain.ExtractionReport{Confidence: 0.2})
		}},
		{Stage: StageBudget, Gate: func() domain.ValidationResult {
			return ValidateBudget(domain.TruncationResult{Truncated: true})
		}},
	}

	res := NewRunner(nil).Run("doc-2", steps)
	if !res.Valid {
		t.Fatalf("expected pass, got %v", res.Err)
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("expected low-confidence and truncation warnings, got %v", res.Warnings)
	}
	if res.Truncation == nil {
		t.Fatal("truncation attachment must survive to the final result")
	}
}

func TestMessages_CoverEveryEmittedCode(t *testing.T) {
	for _, code := range []domain.ValidationCode{
		domain.CodeEmptyDocument,
		domain.CodeNoChunks,
		domain.CodeZeroClauses,
		domain.CodeEncrypted,
		domain.CodeCorrupt,
		domain.CodeOCRRequired,
		domain.CodeDocumentTruncated,
	} {
		m, ok := messages[code]
		if !ok {
			t.Fatalf("no message for %s", code)
		}
		if m.user == "" || m.suggestion == "" {
			t.Fatalf("%s message incomplete", code)
		}
	}
}
