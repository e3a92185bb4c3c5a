package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/verisum/internal/answer"
	"github.com/ppiankov/verisum/internal/model"
	"github.com/ppiankov/verisum/internal/page"
	"github.com/ppiankov/verisum/internal/vector"
)

// BuildOrGetDocumentIndex indexes caller-supplied page parts
func (a *App) BuildOrGetDocumentIndex(ctx context.Context, url string, parts []model.Part, onProgress vector.ProgressFunc) (model.Stats, error) {
	return a.Retrieval.BuildOrGetDocumentIndex(ctx, url, parts, onProgress)
}

// IndexURL loads a page and indexes its parts
func (a *App) IndexURL(ctx context.Context, url string, onProgress vector.ProgressFunc) (*page.Page, model.Stats, error) {
	pg, err := a.Loader.Load(ctx, url)
	if err != nil {
		return nil, model.Stats{}, err
	}
	stats, err := a.Retrieval.BuildOrGetDocumentIndex(ctx, pg.URL, pg.Parts, onProgress)
	if err != nil {
		return pg, model.Stats{}, err
	}
	return pg, stats, nil
}

// Retrieve returns passages for query from the current page index
func (a *App) Retrieve(ctx context.Context, query string) (model.RetrievalResult, error) {
	return a.Retrieval.Retrieve(ctx, query)
}

// Ask streams an answer about the indexed page
func (a *App) Ask(ctx context.Context, title, query string) (<-chan answer.Snapshot, error) {
	if a.Answerer == nil {
		return nil, ErrAnswerDisabled
	}
	return a.Answerer.Ask(ctx, title, query), nil
}

// Verify runs verification for one flagged passage and stores the claim
func (a *App) Verify(ctx context.Context, req model.FlagRequest) (model.Claim, error) {
	return a.Pipeline.Verify(ctx, req)
}

// ListClaims returns stored claims, optionally only those for url
func (a *App) ListClaims(url string) ([]model.Claim, error) {
	return a.Claims.List(url)
}

// ClearAllClaims removes every stored claim
func (a *App) ClearAllClaims() error {
	return a.Claims.Clear()
}

// ClearCache removes every cached page index and query result
func (a *App) ClearCache() error {
	return a.Retrieval.ClearCache()
}

// Scan loads a page, picks checkable sentences and verifies each of them
func (a *App) Scan(ctx context.Context, url string) (*model.ScanReport, error) {
	pg, err := a.Loader.Load(ctx, url)
	if err != nil {
		return nil, err
	}

	report := &model.ScanReport{
		Subject:   pg.Subject,
		SourceURL: pg.URL,
		ScannedAt: time.Now().UTC(),
		FetchMeta: pg.Meta,
		Verdicts:  make(map[model.Verdict]int),
	}

	stats, err := a.Retrieval.BuildOrGetDocumentIndex(ctx, pg.URL, pg.Parts, nil)
	switch {
	case err == nil:
		report.Stats = stats
	case errors.Is(err, model.ErrInvalidInput):
		// Pages without paragraphs can still have list items worth checking
		a.Logger.Debug("page not indexed", zap.String("url", pg.URL), zap.Error(err))
	default:
		return nil, fmt.Errorf("index %s: %w", pg.URL, err)
	}

	candidates := a.Extractor.Extract(pg.Parts)
	report.Candidates = len(candidates)

	requests := make([]model.FlagRequest, len(candidates))
	for i, c := range candidates {
		requests[i] = c.Request(pg.URL)
	}

	for _, res := range a.Batch.VerifyAll(ctx, requests) {
		if res.Error != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%q: %v", res.Request.Text, res.Error))
			continue
		}
		report.Claims = append(report.Claims, *res.Claim)
		report.Verdicts[res.Claim.Verdict]++
	}

	a.Logger.Info("page scanned",
		zap.String("url", pg.URL),
		zap.Int("candidates", report.Candidates),
		zap.Int("claims", len(report.Claims)),
		zap.Int("errors", len(report.Errors)))

	return report, nil
}
