// Package openai is the embedding provider transport over an
// OpenAI-compatible API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/veritract/docpipe/internal/domain"
	"github.com/veritract/docpipe/internal/metrics"
)

// Embedder calls the embedding API for batches of texts. Asymmetric models
// are handled by prepending a per-input-type instruction prefix.
type Embedder struct {
	client      *openai.Client
	model       openai.EmbeddingModel
	dimensions  int
	docPrefix   string
	queryPrefix string
	logger      *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey              string
	BaseURL             string
	Model               string
	Dimensions          int
	DocumentInstruction string
	QueryInstruction    string
	Logger              *zap.Logger
}

// NewEmbedder creates an embedding provider client.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       openai.EmbeddingModel(cfg.Model),
		dimensions:  cfg.Dimensions,
		docPrefix:   cfg.DocumentInstruction,
		queryPrefix: cfg.QueryInstruction,
		logger:      logger,
	}
}

// EmbedBatch implements domain.BatchProvider. The response items keep the
// provider's indices as-is; callers own reordering.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string, inputType domain.InputType) (domain.ProviderBatchResult, error) {
	prefix := e.docPrefix
	if inputType == domain.InputQuery {
		prefix = e.queryPrefix
	}

	input := texts
	if prefix != "" {
		input = make([]string, len(texts))
		for i, t := range texts {
			input[i] = prefix + t
		}
	}

	req := openai.EmbeddingRequest{
		Input:          input,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(string(e.model), "error").Inc()
		return domain.ProviderBatchResult{}, classifyError(err)
	}
	if len(resp.Data) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(string(e.model), "error").Inc()
		return domain.ProviderBatchResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(string(e.model), "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(string(e.model)).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(string(e.model)).Add(float64(resp.Usage.TotalTokens))
	}

	data := make([]domain.IndexedEmbedding, len(resp.Data))
	for i, d := range resp.Data {
		data[i] = domain.IndexedEmbedding{Index: d.Index, Embedding: d.Embedding}
	}

	return domain.ProviderBatchResult{Data: data, TotalTokens: resp.Usage.TotalTokens}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// classifyError maps a provider failure onto the retriability taxonomy:
// 5xx, 429 and 408 are transient; other 4xx are caller errors; anything
// without a status (network-level) is assumed transient until proven
// permanent.
func classifyError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return domain.NewProviderError(
			reqErr.HTTPStatusCode,
			retriableStatus(reqErr.HTTPStatusCode),
			string(reqErr.Body),
		)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return domain.NewProviderError(
			apiErr.HTTPStatusCode,
			retriableStatus(apiErr.HTTPStatusCode),
			apiErr.Message,
		)
	}

	return domain.NewProviderError(0, true, err.Error())
}

func retriableStatus(status int) bool {
	switch {
	case status >= http.StatusInternalServerError:
		return true
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		return true
	default:
		return false
	}
}
