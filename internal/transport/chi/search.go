package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/veritract/docpipe/internal/domain"
	logpkg "github.com/veritract/docpipe/internal/logger"
)

type searchRequest struct {
	Query    string `json:"query"`
	TenantID string `json:"tenant_id"`
	K        int    `json:"k"`
}

type searchHit struct {
	ID          string  `json:"id"`
	Content     string  `json:"content"`
	ContentHash string  `json:"content_hash,omitempty"`
	Source      string  `json:"source,omitempty"`
	Score       float64 `json:"score"`
}

type searchResponse struct {
	Hits []searchHit `json:"hits"`
}

// handleSearch embeds the query text and runs the two-tier nearest-neighbor
// search across the shared corpus and the tenant's own documents.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "invalid_request",
			"message": "request body is not valid JSON",
		})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "invalid_request",
			"message": "query is required",
		})
		return
	}
	if req.TenantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "invalid_request",
			"message": "tenant_id is required",
		})
		return
	}
	k := req.K
	if k <= 0 {
		k = s.pipe.TopK
	}

	emb, err := s.pipe.Embedder.EmbedBatch(r.Context(), []string{req.Query}, domain.InputQuery)
	if err != nil {
		logpkg.FromContext(r.Context()).Error("query embedding failed", zap.Error(err))
		status := http.StatusInternalServerError
		code := "internal_error"
		if errors.Is(err, domain.ErrEmbeddingProviderError) {
			status = http.StatusBadGateway
			code = "upstream_error"
		}
		writeJSON(w, status, map[string]string{
			"code":    code,
			"message": "failed to embed query",
		})
		return
	}

	hits, err := s.pipe.Search.Search(r.Context(), emb.Embeddings[0], req.TenantID, k)
	if err != nil {
		logpkg.FromContext(r.Context()).Error("two-tier search failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"code":    "internal_error",
			"message": "search failed",
		})
		return
	}

	out := make([]searchHit, len(hits))
	for i, h := range hits {
		out[i] = searchHit{
			ID:          h.ID,
			Content:     h.Content,
			ContentHash: h.ContentHash,
			Source:      h.Source,
			Score:       h.Score,
		}
	}
	writeJSON(w, http.StatusOK, searchResponse{Hits: out})
}
