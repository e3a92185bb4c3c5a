package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ppiankov/verisum/internal/metrics"
	"github.com/ppiankov/verisum/internal/model"
	"github.com/ppiankov/verisum/internal/vector"
)

const (
	// DefaultSearchK is how many passages a retrieval asks the index for
	DefaultSearchK = 7
	// DefaultSearchMinScore is the similarity floor for retrieval
	DefaultSearchMinScore = 0.5
)

// Service builds page indexes and answers retrieval queries against them.
// Rebuilds and retrievals are serialized so a search never sees a half-built index.
type Service struct {
	mu       sync.Mutex
	index    *vector.Index
	docs     *DocumentCache
	queries  *QueryCache
	k        int
	minScore float64
	logger   *zap.Logger
}

// Options tunes a Service
type Options struct {
	K        int
	MinScore float64
	Logger   *zap.Logger
}

// NewService creates a retrieval service over an index and its caches
func NewService(index *vector.Index, docs *DocumentCache, queries *QueryCache, opts Options) *Service {
	if opts.K <= 0 {
		opts.K = DefaultSearchK
	}
	if opts.MinScore <= 0 {
		opts.MinScore = DefaultSearchMinScore
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Service{
		index:    index,
		docs:     docs,
		queries:  queries,
		k:        opts.K,
		minScore: opts.MinScore,
		logger:   opts.Logger,
	}
}

// BuildOrGetDocumentIndex makes the index reflect the given page, reusing a
// cached build when the content fingerprint still matches.
func (s *Service) BuildOrGetDocumentIndex(ctx context.Context, url string, parts []model.Part, onProgress vector.ProgressFunc) (model.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.docs.GetOrBuild(ctx, url, parts, func(ctx context.Context, entries []model.Entry) error {
		if len(entries) == 0 {
			return fmt.Errorf("no paragraphs to index: %w", model.ErrInvalidInput)
		}
		_, err := s.index.AddEntries(ctx, entries, onProgress)
		return err
	})
}

// Retrieve returns the passages relevant to query along with the full text of
// every section those passages came from.
func (s *Service) Retrieve(ctx context.Context, query string) (model.RetrievalResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index.Len() == 0 {
		return model.RetrievalResult{}, fmt.Errorf("retrieve: %w", model.ErrNotInitialized)
	}
	if strings.TrimSpace(query) == "" {
		return model.RetrievalResult{}, fmt.Errorf("retrieve: empty query: %w", model.ErrInvalidInput)
	}

	if cached, ok := s.queries.Get(query); ok {
		metrics.CacheLookupsTotal.WithLabelValues("query", "hit").Inc()
		s.logger.Debug("query cache hit", zap.String("query", query))
		return cached, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("query", "miss").Inc()

	matches, err := s.index.Search(ctx, query, s.k, s.minScore)
	if err != nil {
		return model.RetrievalResult{}, fmt.Errorf("retrieve: %w", err)
	}

	result := s.assemble(matches)
	s.queries.Put(query, result)

	s.logger.Debug("retrieved passages",
		zap.String("query", query),
		zap.Int("sources", len(result.Sources)),
		zap.Int("sections", len(result.DocumentParts)))

	return result, nil
}

// ClearCache empties the index along with the document and query caches
func (s *Service) ClearCache() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries.Clear()
	return s.docs.Clear()
}

// Len reports the number of indexed paragraphs
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Len()
}

// assemble groups matches into sources and whole-section document parts.
// Sections appear in the order of their first hit.
func (s *Service) assemble(matches []vector.Match) model.RetrievalResult {
	result := model.RetrievalResult{
		Sources:       make([]model.Source, 0, len(matches)),
		DocumentParts: make([]string, 0),
	}

	seen := make(map[string]bool)
	var sections []string
	for _, m := range matches {
		meta := m.Entry.Metadata
		if meta.Content != "" {
			result.Sources = append(result.Sources, model.Source{ID: meta.ID, Content: meta.Content})
		}
		if !seen[meta.SectionID] {
			seen[meta.SectionID] = true
			sections = append(sections, meta.SectionID)
		}
	}

	all := s.index.Entries()
	for _, section := range sections {
		var texts []string
		for _, e := range all {
			if e.Metadata.SectionID == section && e.Metadata.Content != "" {
				texts = append(texts, e.Metadata.Content)
			}
		}
		if len(texts) > 0 {
			result.DocumentParts = append(result.DocumentParts, strings.Join(texts, "\n"))
		}
	}

	return result
}
