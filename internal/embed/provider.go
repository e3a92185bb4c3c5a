package embed

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/verisum/internal/model"
)

// Provider converts texts to fixed-dimensionality vectors, one per input
type Provider interface {
	// Name returns the provider name
	Name() string

	// Embed returns one vector per text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider creates an embedding provider from configuration
func NewProvider(ctx context.Context, cfg model.EmbeddingConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		return NewOpenAIEmbedder(cfg, logger)
	case "gemini":
		return NewGeminiEmbedder(ctx, cfg, logger)
	case "hash":
		return NewHashEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, gemini, hash)", cfg.Provider)
	}
}
