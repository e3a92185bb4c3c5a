package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/verisum/internal/model"
)

// Analyzer asks a language model for a verdict on flagged passages
type Analyzer struct {
	provider  Provider
	maxTokens int
	logger    *zap.Logger
}

// NewAnalyzer creates an analyzer from config. It returns nil, nil when no
// provider is configured.
func NewAnalyzer(config Config, logger *zap.Logger) (*Analyzer, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, nil
	}
	return NewAnalyzerWithProvider(provider, config.MaxTokens, logger), nil
}

// NewAnalyzerWithProvider creates an analyzer around an existing provider
func NewAnalyzerWithProvider(provider Provider, maxTokens int, logger *zap.Logger) *Analyzer {
	if maxTokens <= 0 {
		maxTokens = 400
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		provider:  provider,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Analyze returns the model's assessment of req
func (a *Analyzer) Analyze(ctx context.Context, req model.FlagRequest) (*model.AnalysisResult, error) {
	resp, err := a.provider.Complete(ctx, CompletionRequest{
		System:    analysisSystem,
		Prompt:    BuildAnalysisPrompt(req),
		MaxTokens: a.maxTokens,
		JSON:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s analysis: %w", a.provider.Name(), err)
	}

	result, err := ParseAnalysis(resp.Text)
	if err != nil {
		a.logger.Debug("unparseable analysis reply",
			zap.String("provider", a.provider.Name()),
			zap.String("reply", resp.Text))
		return nil, fmt.Errorf("%s analysis: %w", a.provider.Name(), err)
	}
	result.Provider = a.provider.Name()

	a.logger.Debug("analysis complete",
		zap.String("provider", result.Provider),
		zap.String("model", resp.Model),
		zap.String("verdict", string(result.Verdict)),
		zap.Int("tokens", resp.TokensUsed))

	return result, nil
}
