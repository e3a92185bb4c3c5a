package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/verisum/internal/metrics"
	"github.com/ppiankov/verisum/internal/model"
	"github.com/ppiankov/verisum/internal/score"
)

// DomainSource rates the publishing domain of a claim
type DomainSource interface {
	Classify(rawURL string) model.DomainResult
}

// EncyclopediaSource checks a claim against reference articles
type EncyclopediaSource interface {
	Check(ctx context.Context, claim string) (*model.EncyclopediaResult, error)
}

// FactCheckSource looks a claim up in a fact-check registry
type FactCheckSource interface {
	Enabled() bool
	Check(ctx context.Context, claim string) (*model.FactCheckResult, error)
}

// Analyzer is an optional model-backed assessment of a claim
type Analyzer interface {
	Analyze(ctx context.Context, req model.FlagRequest) (*model.AnalysisResult, error)
}

// LinkFilter drops suggested source links that are unreachable or untrustworthy
type LinkFilter interface {
	Filter(ctx context.Context, urls []string) []string
}

// ClaimStore persists verification results
type ClaimStore interface {
	Put(claim model.Claim) error
}

// Options wires evidence sources into a pipeline. A nil source is disabled.
type Options struct {
	Domain       DomainSource
	Encyclopedia EncyclopediaSource
	FactCheck    FactCheckSource
	Analyzer     Analyzer
	Links        LinkFilter
	Store        ClaimStore
	Logger       *zap.Logger
}

// Pipeline gathers evidence for flagged passages and turns it into claims
type Pipeline struct {
	domain       DomainSource
	encyclopedia EncyclopediaSource
	factCheck    FactCheckSource
	analyzer     Analyzer
	links        LinkFilter
	store        ClaimStore
	scorer       *score.Scorer
	validate     *validator.Validate
	logger       *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewPipeline creates a verification pipeline
func NewPipeline(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Pipeline{
		domain:       opts.Domain,
		encyclopedia: opts.Encyclopedia,
		factCheck:    opts.FactCheck,
		analyzer:     opts.Analyzer,
		links:        opts.Links,
		store:        opts.Store,
		scorer:       score.NewScorer(),
		validate:     validator.New(),
		logger:       opts.Logger,
		now:          time.Now,
		newID: func() string {
			return "flag-" + uuid.NewString()
		},
	}
}

// Run looks the passage up in every enabled source concurrently. A source that
// fails is left out of the bundle; the run itself only fails on bad input.
func (p *Pipeline) Run(ctx context.Context, req model.FlagRequest) (model.EvidenceBundle, error) {
	if err := p.validateRequest(req); err != nil {
		return model.EvidenceBundle{}, err
	}

	var (
		bundle model.EvidenceBundle
		mu     sync.Mutex
		wg     sync.WaitGroup
	)

	if p.domain != nil {
		p.spawn(ctx, &wg, "domain", func(ctx context.Context) (bool, error) {
			result := p.domain.Classify(req.URL)
			mu.Lock()
			bundle.Domain = &result
			mu.Unlock()
			return result.Category != model.DomainUnknown, nil
		})
	}

	if p.encyclopedia != nil {
		p.spawn(ctx, &wg, "encyclopedia", func(ctx context.Context) (bool, error) {
			result, err := p.encyclopedia.Check(ctx, req.Text)
			if err != nil || result == nil {
				return false, err
			}
			mu.Lock()
			bundle.Encyclopedia = result
			mu.Unlock()
			return len(result.Sources) > 0, nil
		})
	}

	if p.factCheck != nil && p.factCheck.Enabled() {
		p.spawn(ctx, &wg, "fact_check", func(ctx context.Context) (bool, error) {
			result, err := p.factCheck.Check(ctx, req.Text)
			if err != nil || result == nil {
				return false, err
			}
			mu.Lock()
			bundle.FactCheck = result
			mu.Unlock()
			return result.Found, nil
		})
	}

	if p.analyzer != nil {
		p.spawn(ctx, &wg, "analysis", func(ctx context.Context) (bool, error) {
			result, err := p.analyzer.Analyze(ctx, req)
			if err != nil || result == nil {
				return false, err
			}
			if p.links != nil && len(result.SuggestedSources) > 0 {
				result.SuggestedSources = p.links.Filter(ctx, result.SuggestedSources)
			}
			mu.Lock()
			bundle.Analysis = result
			mu.Unlock()
			return true, nil
		})
	}

	wg.Wait()

	p.logger.Debug("evidence gathered",
		zap.String("url", req.URL),
		zap.Int("sources", bundle.PresentCount()))

	return bundle, nil
}

// spawn runs one source lookup on its own goroutine, recording metrics and
// swallowing errors and panics so a bad source only drops out of the bundle.
func (p *Pipeline) spawn(ctx context.Context, wg *sync.WaitGroup, source string, fn func(context.Context) (bool, error)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				metrics.EvidenceRequestsTotal.WithLabelValues(source, "error").Inc()
				p.logger.Error("evidence source panicked", zap.String("source", source), zap.Any("panic", r))
			}
		}()

		found, err := fn(ctx)
		metrics.EvidenceRequestDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())

		switch {
		case err != nil:
			metrics.EvidenceRequestsTotal.WithLabelValues(source, "error").Inc()
			p.logger.Warn("evidence source failed", zap.String("source", source), zap.Error(err))
		case found:
			metrics.EvidenceRequestsTotal.WithLabelValues(source, "found").Inc()
		default:
			metrics.EvidenceRequestsTotal.WithLabelValues(source, "not_found").Inc()
		}
	}()
}

// CreateClaim scores the bundle and builds the claim record for req
func (p *Pipeline) CreateClaim(req model.FlagRequest, bundle model.EvidenceBundle) model.Claim {
	assessment := p.scorer.Assess(bundle)

	return model.Claim{
		ID:         p.newID(),
		Text:       req.Text,
		ElementID:  req.ElementID,
		Context:    req.Context,
		URL:        req.URL,
		Evidence:   bundle,
		Confidence: assessment.Confidence,
		Verdict:    assessment.Verdict,
		UserReason: score.ShortReason(bundle, assessment.Verdict, req.Reason),
		Timestamp:  p.now().UTC(),
	}
}

// Verify runs the pipeline, creates the claim and stores it. Nothing is stored
// when ctx is cancelled before the claim is complete.
func (p *Pipeline) Verify(ctx context.Context, req model.FlagRequest) (model.Claim, error) {
	bundle, err := p.Run(ctx, req)
	if err != nil {
		return model.Claim{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.Claim{}, fmt.Errorf("verify: %w", err)
	}

	claim := p.CreateClaim(req, bundle)
	metrics.VerdictsTotal.WithLabelValues(string(claim.Verdict)).Inc()

	if p.store != nil {
		if err := p.store.Put(claim); err != nil {
			return claim, fmt.Errorf("store claim: %w", err)
		}
	}

	p.logger.Info("claim verified",
		zap.String("id", claim.ID),
		zap.String("url", claim.URL),
		zap.String("verdict", string(claim.Verdict)),
		zap.Int("confidence", claim.Confidence))

	return claim, nil
}

func (p *Pipeline) validateRequest(req model.FlagRequest) error {
	req.Text = strings.TrimSpace(req.Text)
	if err := p.validate.Struct(req); err != nil {
		return fmt.Errorf("invalid flag request: %v: %w", err, model.ErrInvalidInput)
	}
	return nil
}
