package page

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/verisum/internal/model"
)

// ErrDisallowed is returned when robots.txt forbids fetching a page
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Page is a fetched and extracted web page
type Page struct {
	URL        string
	Title      string
	Subject    string // Title, or the de-slugified last path segment
	Meta       model.FetchMeta
	Parts      []model.Part
	CrawlDelay time.Duration
}

// Loader turns a URL into page parts
type Loader struct {
	fetcher *Fetcher
	robots  *RobotsChecker // nil disables robots.txt checks
	logger  *zap.Logger
}

// NewLoader creates a page loader
func NewLoader(fetcher *Fetcher, robots *RobotsChecker, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		fetcher: fetcher,
		robots:  robots,
		logger:  logger,
	}
}

// Load fetches rawURL and extracts its parts
func (l *Loader) Load(ctx context.Context, rawURL string) (*Page, error) {
	var crawlDelay time.Duration
	if l.robots != nil {
		allowed, delay, err := l.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w: %v", rawURL, model.ErrInvalidInput, err)
		}
		if !allowed {
			return nil, fmt.Errorf("load %s: %w", rawURL, ErrDisallowed)
		}
		crawlDelay = delay
	}

	start := time.Now()
	result, err := l.fetcher.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", rawURL, err)
	}

	doc, err := Extract(result.HTML, result.FinalURL)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", rawURL, err)
	}

	subject := doc.Title
	if subject == "" {
		subject = result.Subject
	}

	l.logger.Debug("page loaded",
		zap.String("url", result.FinalURL),
		zap.Int("status", result.Meta.StatusCode),
		zap.Int("parts", len(doc.Parts)),
		zap.Duration("duration", time.Since(start)))

	return &Page{
		URL:        result.FinalURL,
		Title:      doc.Title,
		Subject:    subject,
		Meta:       result.Meta,
		Parts:      doc.Parts,
		CrawlDelay: crawlDelay,
	}, nil
}
