package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/verisum/internal/answer"
	"github.com/ppiankov/verisum/internal/cache"
	"github.com/ppiankov/verisum/internal/claims"
	"github.com/ppiankov/verisum/internal/embed"
	"github.com/ppiankov/verisum/internal/evidence"
	"github.com/ppiankov/verisum/internal/extract"
	"github.com/ppiankov/verisum/internal/llm"
	"github.com/ppiankov/verisum/internal/model"
	"github.com/ppiankov/verisum/internal/page"
	"github.com/ppiankov/verisum/internal/pipeline"
	"github.com/ppiankov/verisum/internal/retrieval"
	"github.com/ppiankov/verisum/internal/util"
	"github.com/ppiankov/verisum/internal/validate"
	"github.com/ppiankov/verisum/internal/vector"
	"github.com/ppiankov/verisum/internal/worker"
)

// ErrAnswerDisabled is returned by Ask when no answer model is configured
var ErrAnswerDisabled = errors.New("question answering disabled: set answer.api_key or OPENAI_API_KEY")

// maxScanCandidates bounds how many passages one page scan verifies
const maxScanCandidates = 25

// App holds every service built from one configuration
type App struct {
	Config    model.Config
	Logger    *zap.Logger
	Retrieval *retrieval.Service
	Pipeline  *pipeline.Pipeline
	Claims    *claims.Store
	Answerer  *answer.Answerer // nil when disabled
	Loader    *page.Loader
	Extractor *extract.ClaimExtractor
	Batch     *worker.BatchProcessor

	memory  *cache.MemoryCache
	closers []func() error
}

// Components lets callers (mostly tests) replace collaborators that would
// otherwise be built from config
type Components struct {
	Embedder vector.Embedder
	Analyzer pipeline.Analyzer
}

// New builds the application from cfg
func New(ctx context.Context, cfg model.Config, logger *zap.Logger) (*App, error) {
	return NewWithComponents(ctx, cfg, logger, Components{})
}

// NewWithComponents builds the application, preferring the given components
func NewWithComponents(ctx context.Context, cfg model.Config, logger *zap.Logger, comps Components) (a *App, err error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	embedder := comps.Embedder
	if embedder == nil {
		provider, err := embed.NewProvider(ctx, cfg.Embedding, logger)
		if err != nil {
			return nil, fmt.Errorf("embedding provider: %w", err)
		}
		embedder = provider
	}

	store, err := a.documentStore(cfg.Cache)
	if err != nil {
		return nil, err
	}
	index := vector.NewIndex(embedder, cfg.Index.ChunkSize)
	docs := retrieval.NewDocumentCache(index, store, retrieval.DocumentCacheOptions{
		TTL:             cfg.Cache.DocumentTTL,
		MaxDurableBytes: cfg.Cache.MaxDurableBytes,
		Logger:          logger,
	})
	a.Retrieval = retrieval.NewService(index, docs, retrieval.NewQueryCache(cfg.Cache.QueryTTL), retrieval.Options{
		K:        cfg.Index.SearchK,
		MinScore: cfg.Index.MinScore,
		Logger:   logger,
	})

	blob, err := a.claimsBlob(cfg.Claims)
	if err != nil {
		return nil, err
	}
	a.Claims = claims.NewStore(blob)

	opts, err := evidenceOptions(cfg, logger)
	if err != nil {
		return nil, err
	}
	if comps.Analyzer != nil {
		opts.Analyzer = comps.Analyzer
	}
	opts.Store = a.Claims
	a.Pipeline = pipeline.NewPipeline(opts)

	if cfg.Answer.APIKey != "" {
		answerHTTP := util.NewHTTPClient(model.HTTPConfig{
			Timeout:    2 * time.Minute,
			HTTPProxy:  cfg.HTTP.HTTPProxy,
			HTTPSProxy: cfg.HTTP.HTTPSProxy,
			NoProxy:    cfg.HTTP.NoProxy,
		})
		a.Answerer, err = answer.NewAnswerer(a.Retrieval, answer.Config{
			APIKey:     cfg.Answer.APIKey,
			BaseURL:    cfg.Answer.BaseURL,
			Model:      cfg.Answer.Model,
			MaxTokens:  cfg.Answer.MaxTokens,
			History:    cfg.Answer.History,
			HTTPClient: answerHTTP,
		}, logger)
		if err != nil {
			return nil, err
		}
	}

	httpClient := util.NewHTTPClient(cfg.HTTP)
	var robots *page.RobotsChecker
	if cfg.HTTP.RespectRobots {
		robots = page.NewRobotsChecker(httpClient, cfg.HTTP.UserAgent)
	}
	a.Loader = page.NewLoader(page.NewFetcher(httpClient, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes), robots, logger)
	a.Extractor = extract.NewClaimExtractor(maxScanCandidates)
	a.Batch = worker.NewBatchProcessor(a.Pipeline, a, cfg.Worker.Concurrency)

	return a, nil
}

// documentStore builds the two-tier store behind the document cache
func (a *App) documentStore(cfg model.CacheConfig) (*cache.LayeredCache, error) {
	memory := cache.NewMemoryCache(cfg.DocumentTTL, 10*time.Minute)
	a.memory = memory

	switch cfg.Driver {
	case "disk":
		return cache.NewLayeredCache(memory, cache.NewDiskCache(filepath.Join(cfg.Dir, "documents"), cfg.DocumentTTL)), nil
	case "badger":
		db, err := cache.OpenBadgerCache(filepath.Join(cfg.Dir, "badger"), cfg.DocumentTTL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return cache.NewLayeredCache(memory, db), nil
	default:
		return cache.NewLayeredCache(memory, nil), nil
	}
}

func (a *App) claimsBlob(cfg model.ClaimsConfig) (claims.Blob, error) {
	switch cfg.Driver {
	case "badger":
		db, err := cache.OpenBadgerCache(filepath.Join(filepath.Dir(cfg.Path), "claims.db"), 0)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return claims.NewCacheBlob(db), nil
	default:
		return claims.NewFileBlob(cfg.Path), nil
	}
}

// evidenceOptions wires the enabled evidence sources. Disabled sources stay
// nil interfaces so the pipeline skips them.
func evidenceOptions(cfg model.Config, logger *zap.Logger) (pipeline.Options, error) {
	opts := pipeline.Options{Logger: logger}

	httpCfg := cfg.HTTP
	httpCfg.Timeout = cfg.Evidence.Timeout
	limiter := worker.NewLimiter(cfg.Evidence.RequestsPerSecond, cfg.Evidence.Burst)
	for _, hr := range cfg.Evidence.HostRates {
		limiter.SetHostRate(hr.Host, hr.RequestsPerSecond, hr.Burst)
	}
	httpClient := util.NewHTTPClient(httpCfg)
	client := evidence.NewClient(httpClient, limiter, cfg.HTTP.UserAgent, logger)
	domains := evidence.NewDomainClassifier(cfg.Evidence.ExtraDomains)

	if cfg.Evidence.Domain {
		opts.Domain = domains
	}
	if cfg.Evidence.CheckSources {
		opts.Links = validate.NewLinkChecker(httpClient, cfg.HTTP.UserAgent, 8, domains, limiter)
	}
	if cfg.Evidence.Encyclopedia {
		opts.Encyclopedia = evidence.NewWikipedia(client, cfg.Evidence.WikipediaAPI, logger)
	}
	opts.FactCheck = evidence.NewFactChecker(client, cfg.Evidence.FactCheckAPI, cfg.Evidence.FactCheckAPIKey)

	analyzer, err := llm.NewAnalyzer(llm.ConfigFromModel(cfg.LLM, cfg.HTTP), logger)
	if err != nil {
		return opts, fmt.Errorf("analysis provider: %w", err)
	}
	if analyzer != nil {
		opts.Analyzer = analyzer
	}

	return opts, nil
}

// CacheBytes returns the size of the in-memory document tier
func (a *App) CacheBytes() int64 {
	if a.memory == nil {
		return 0
	}
	return a.memory.Bytes()
}

// Close releases databases opened by New
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
