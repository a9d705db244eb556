// Package chi serves the HTTP surface of the daemon: document segmentation
// and two-tier search on /v1, plus liveness, Prometheus metrics, and
// read-only bootstrap progress.
package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/veritract/docpipe/internal/chunker"
	"github.com/veritract/docpipe/internal/domain"
	"github.com/veritract/docpipe/internal/events"
	"github.com/veritract/docpipe/internal/gates"
	logpkg "github.com/veritract/docpipe/internal/logger"
	"github.com/veritract/docpipe/internal/metrics"
	"github.com/veritract/docpipe/internal/tokens"
)

// pinger is the consumer interface for the database liveness probe (ISP).
type pinger interface {
	Ping(ctx context.Context) error
}

// progressReader is the consumer interface for progress reporting (ISP).
type progressReader interface {
	LoadAll(ctx context.Context, sources []string) ([]domain.BootstrapProgress, error)
}

// queryEmbedder is the consumer interface for query-side embedding (ISP).
type queryEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string, inputType domain.InputType) (domain.EmbedBatchResult, error)
}

// searcher is the consumer interface for two-tier retrieval (ISP).
type searcher interface {
	Search(ctx context.Context, queryVector []float32, tenantID string, k int) ([]domain.RetrievalHit, error)
}

// Pipeline bundles the document-analysis collaborators served on /v1.
type Pipeline struct {
	Chunker      *chunker.Chunker
	ChunkOpts    chunker.Options
	Estimator    tokens.Estimator
	TokenBudget  int
	MaxBodyBytes int64
	Embedder     queryEmbedder
	Search       searcher
	TopK         int
	Events       events.Publisher
}

// Server is the HTTP server.
type Server struct {
	db       pinger
	progress progressReader
	pipe     Pipeline
	runner   *gates.Runner
	sources  []string
	logger   *zap.Logger
}

// NewServer creates a server reporting on the given sources.
func NewServer(db pinger, progress progressReader, pipe Pipeline, sources []string, logger *zap.Logger) *Server {
	return &Server{
		db:       db,
		progress: progress,
		pipe:     pipe,
		runner:   gates.NewRunner(pipe.Events),
		sources:  sources,
		logger:   logger,
	}
}

// Router assembles the chi router with the standard middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/v1/bootstrap/progress", s.handleProgress)
	r.Post("/v1/documents/segment", s.handleSegment)
	r.Post("/v1/search", s.handleSearch)
	return r
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok"}
	status := http.StatusOK
	if err := s.db.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

type progressResponse struct {
	Source           string  `json:"source"`
	Status           string  `json:"status"`
	TotalRecords     int     `json:"total_records"`
	ProcessedRecords int     `json:"processed_records"`
	EmbeddedRecords  int     `json:"embedded_records"`
	ErrorCount       int     `json:"error_count"`
	ErrorRate        float64 `json:"error_rate"`
	LastBatchIndex   int     `json:"last_batch_index"`
	StartedAt        string  `json:"started_at,omitempty"`
	CompletedAt      string  `json:"completed_at,omitempty"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	rows, err := s.progress.LoadAll(r.Context(), s.sources)
	if err != nil {
		logpkg.FromContext(r.Context()).Error("failed to load bootstrap progress", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"code":    "internal_error",
			"message": "failed to load progress",
		})
		return
	}

	out := make([]progressResponse, len(rows))
	for i, row := range rows {
		out[i] = progressResponse{
			Source:           row.Source,
			Status:           string(row.Status),
			TotalRecords:     row.TotalRecords,
			ProcessedRecords: row.ProcessedRecords,
			EmbeddedRecords:  row.EmbeddedRecords,
			ErrorCount:       row.ErrorCount,
			ErrorRate:        row.ErrorRate(),
			LastBatchIndex:   row.LastBatchIndex,
		}
		if !row.StartedAt.IsZero() {
			out[i].StartedAt = row.StartedAt.UTC().Format(time.RFC3339)
		}
		if !row.CompletedAt.IsZero() {
			out[i].CompletedAt = row.CompletedAt.UTC().Format(time.RFC3339)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": out})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					writeJSON(w, http.StatusInternalServerError, map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogMiddleware emits a canonical log line per request, propagates
// X-Request-ID, and stashes a request-scoped logger in the context so
// handlers log with the request id attached.
func requestLogMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			r = r.WithContext(logpkg.WithLogger(r.Context(), reqLogger))

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http_request",
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
