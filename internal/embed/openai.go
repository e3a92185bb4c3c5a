package embed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ppiankov/verisum/internal/metrics"
	"github.com/ppiankov/verisum/internal/model"
)

// OpenAIEmbedder embeds texts through an OpenAI-compatible embeddings API
type OpenAIEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	logger     *zap.Logger
}

// NewOpenAIEmbedder creates an OpenAI embedding provider
func NewOpenAIEmbedder(cfg model.EmbeddingConfig, logger *zap.Logger) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required for embeddings: %w", model.ErrModelUnavailable)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	m := cfg.Model
	if m == "" {
		m = string(openai.SmallEmbedding3)
	}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(m),
		dimensions: cfg.Dimensions,
		logger:     logger,
	}, nil
}

// Name returns the provider name
func (e *OpenAIEmbedder) Name() string {
	return "openai"
}

// Embed implements Provider
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.Name(), string(e.model), "error").Inc()
		return nil, parseAPIError(err)
	}

	if len(resp.Data) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.Name(), string(e.model), "error").Inc()
		return nil, fmt.Errorf("embedding response has %d vectors for %d texts: %w",
			len(resp.Data), len(texts), model.ErrModelUnavailable)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.Name(), string(e.model), "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.Name(), string(e.model)).Observe(time.Since(start).Seconds())

	// Data carries its own index, order is not guaranteed
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range: %w", d.Index, model.ErrModelUnavailable)
		}
		vectors[d.Index] = d.Embedding
	}

	e.logger.Debug("embedded texts",
		zap.Int("count", len(texts)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)))

	return vectors, nil
}

// parseAPIError extracts a readable message from an API failure.
// All errors wrap model.ErrModelUnavailable.
func parseAPIError(err error) error {
	wrap := model.ErrModelUnavailable

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		var parsed struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(reqErr.Body, &parsed) == nil && parsed.Detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, parsed.Detail, wrap)
		}
		return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %v: %w", err, wrap)
}
