package gates

import "github.com/veritract/docpipe/internal/domain"

// message is one entry of the static user-facing message table.
type message struct {
	user       string
	suggestion string
}

// messages maps validation codes to plain-language explanations. Every code
// a gate can emit must have an entry; unknown codes fall back to a generic
// message rather than leaking internals.
var messages = map[domain.ValidationCode]message{
	domain.CodeEmptyDocument: {
		user:       "The document appears to be empty.",
		suggestion: "Check that the file uploaded correctly and contains text, then try again.",
	},
	domain.CodeNoChunks: {
		user:       "No analyzable text segments could be produced from this document.",
		suggestion: "The file may be an image-only scan. Try uploading a text-based version.",
	},
	domain.CodeZeroClauses: {
		user:       "No clauses were identified in this document.",
		suggestion: "This usually means text extraction failed. Re-upload the document or try a different format.",
	},
	domain.CodeEncrypted: {
		user:       "The document is password-protected or encrypted.",
		suggestion: "Remove the password protection and upload the document again.",
	},
	domain.CodeCorrupt: {
		user:       "The document file appears to be damaged and could not be read.",
		suggestion: "Re-export or re-download the file and upload it again.",
	},
	domain.CodeOCRRequired: {
		user:       "This document needs optical character recognition before analysis.",
		suggestion: "It will be routed through OCR automatically; no action needed.",
	},
	domain.CodeDocumentTruncated: {
		user:       "The document exceeds the analysis size limit and was shortened.",
		suggestion: "Sections listed as removed were excluded from analysis. Review them manually if needed.",
	},
}

var fallbackMessage = message{
	user:       "The document could not be processed.",
	suggestion: "Try uploading the document again.",
}

// newError resolves a validation error from the message table.
func newError(code domain.ValidationCode, stage string) *domain.ValidationError {
	m, ok := messages[code]
	if !ok {
		m = fallbackMessage
	}
	return &domain.ValidationError{
		Code:        code,
		Stage:       stage,
		UserMessage: m.user,
		Suggestion:  m.suggestion,
	}
}
