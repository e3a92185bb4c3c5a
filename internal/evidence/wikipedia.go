package evidence

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/verisum/internal/model"
)

const (
	// DefaultWikipediaAPI is the English MediaWiki action API
	DefaultWikipediaAPI = "https://en.wikipedia.org/w/api.php"

	wikiSearchLimit  = 3
	wikiMaxArticles  = 2
	wikiMaxEntities  = 3
	wikiMinWordLen   = 4 // Claim words must be longer than this to count
	wikiConsistentAt = 0.3
)

// wikiSearchResponse is the list=search payload
type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

// wikiExtractResponse is the prop=extracts payload
type wikiExtractResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

// Wikipedia checks claims for lexical consistency with encyclopedia intros
type Wikipedia struct {
	client      *Client
	apiURL      string
	articleBase string
	logger      *zap.Logger
}

// NewWikipedia creates an encyclopedia checker against a MediaWiki API
func NewWikipedia(client *Client, apiURL string, logger *zap.Logger) *Wikipedia {
	if apiURL == "" {
		apiURL = DefaultWikipediaAPI
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	articleBase := "https://en.wikipedia.org/wiki/"
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		articleBase = u.Scheme + "://" + u.Host + "/wiki/"
	}

	return &Wikipedia{
		client:      client,
		apiURL:      apiURL,
		articleBase: articleBase,
		logger:      logger,
	}
}

// Name identifies the source in logs and metrics
func (w *Wikipedia) Name() string {
	return "encyclopedia"
}

// Check searches for articles about the claim's entities and measures how many
// of the claim's longer words appear in their intros. A transport failure
// returns an error so callers can treat the source as absent.
func (w *Wikipedia) Check(ctx context.Context, claim string) (*model.EncyclopediaResult, error) {
	if strings.TrimSpace(claim) == "" {
		return nil, fmt.Errorf("encyclopedia check: empty claim: %w", model.ErrInvalidInput)
	}

	entities := ExtractEntities(claim)
	if len(entities) == 0 {
		return &model.EncyclopediaResult{Summary: "No verifiable entities found"}, nil
	}
	if len(entities) > wikiMaxEntities {
		entities = entities[:wikiMaxEntities]
	}

	titles, err := w.search(ctx, strings.Join(entities, " "))
	if err != nil {
		return nil, fmt.Errorf("encyclopedia search: %w", err)
	}
	if len(titles) == 0 {
		return &model.EncyclopediaResult{Summary: "No Wikipedia articles found"}, nil
	}
	if len(titles) > wikiMaxArticles {
		titles = titles[:wikiMaxArticles]
	}

	var sources []string
	var content strings.Builder
	for _, title := range titles {
		extract, err := w.extract(ctx, title)
		if err != nil {
			w.logger.Debug("skipping article extract", zap.String("title", title), zap.Error(err))
			continue
		}
		if extract == "" {
			continue
		}
		sources = append(sources, w.articleBase+url.PathEscape(strings.ReplaceAll(title, " ", "_")))
		content.WriteString(strings.ToLower(extract))
		content.WriteByte(' ')
	}

	overlap := Overlap(claim, content.String())
	result := &model.EncyclopediaResult{
		Consistent: overlap > wikiConsistentAt,
		Sources:    sources,
		Overlap:    overlap,
	}
	if result.Consistent {
		result.Summary = fmt.Sprintf("Found %d related Wikipedia articles", len(sources))
	} else {
		result.Summary = "Claim not supported by Wikipedia content"
	}

	return result, nil
}

func (w *Wikipedia) search(ctx context.Context, query string) ([]string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("format", "json")
	params.Set("srlimit", fmt.Sprint(wikiSearchLimit))

	var resp wikiSearchResponse
	if err := w.client.GetJSON(ctx, w.apiURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(resp.Query.Search))
	for _, r := range resp.Query.Search {
		if r.Title != "" {
			titles = append(titles, r.Title)
		}
	}
	return titles, nil
}

func (w *Wikipedia) extract(ctx context.Context, title string) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts")
	params.Set("exintro", "true")
	params.Set("explaintext", "true")
	params.Set("titles", title)
	params.Set("format", "json")

	var resp wikiExtractResponse
	if err := w.client.GetJSON(ctx, w.apiURL+"?"+params.Encode(), &resp); err != nil {
		return "", err
	}

	for _, page := range resp.Query.Pages {
		return page.Extract, nil
	}
	return "", nil
}

// Overlap returns the fraction of claim words longer than four characters
// that occur in content. content is expected to be lowercased.
func Overlap(claim, content string) float64 {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(claim)) {
		if len(w) > wikiMinWordLen {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return 0
	}

	matched := 0
	for _, w := range words {
		if strings.Contains(content, w) {
			matched++
		}
	}
	return float64(matched) / float64(len(words))
}
