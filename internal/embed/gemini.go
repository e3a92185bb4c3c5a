package embed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/ppiankov/verisum/internal/metrics"
	"github.com/ppiankov/verisum/internal/model"
)

// GeminiEmbedder embeds texts through the Gemini API
type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int
	logger     *zap.Logger
}

// NewGeminiEmbedder creates a Gemini embedding provider
func NewGeminiEmbedder(ctx context.Context, cfg model.EmbeddingConfig, logger *zap.Logger) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required for embeddings: %w", model.ErrModelUnavailable)
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("initialize genai client: %v: %w", err, model.ErrModelUnavailable)
	}

	m := cfg.Model
	if m == "" || m == "text-embedding-3-small" {
		m = "gemini-embedding-001"
	}

	return &GeminiEmbedder{
		client:     client,
		model:      m,
		dimensions: cfg.Dimensions,
		logger:     logger,
	}, nil
}

// Name returns the provider name
func (e *GeminiEmbedder) Name() string {
	return "gemini"
}

// Embed implements Provider
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	var embedCfg *genai.EmbedContentConfig
	if e.dimensions > 0 {
		dim := int32(e.dimensions)
		embedCfg = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	start := time.Now()
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, embedCfg)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.Name(), e.model, "error").Inc()
		return nil, fmt.Errorf("gemini embedding failed: %v: %w", err, model.ErrModelUnavailable)
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.Name(), e.model, "error").Inc()
		return nil, fmt.Errorf("gemini returned wrong embedding count: %w", model.ErrModelUnavailable)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.Name(), e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.Name(), e.model).Observe(time.Since(start).Seconds())

	vectors := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}
