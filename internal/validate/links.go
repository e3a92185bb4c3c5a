package validate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/verisum/internal/model"
	"github.com/ppiankov/verisum/internal/worker"
)

const linkMaxRetries = 3

// linkSleepFunc is the sleep function used between retries (injectable for tests)
var linkSleepFunc = time.Sleep

// Classifier rates the domain of a link
type Classifier interface {
	Classify(rawURL string) model.DomainResult
}

// LinkResult is the outcome of checking one source link
type LinkResult struct {
	URL          string               `json:"url"`
	FinalURL     string               `json:"final_url,omitempty"` // Set when redirected
	StatusCode   int                  `json:"status_code,omitempty"`
	Reachable    bool                 `json:"reachable"`
	Dead         bool                 `json:"dead"` // 404/410 or unresolvable
	Category     model.DomainCategory `json:"category"`
	LastModified *time.Time           `json:"last_modified,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// LinkChecker checks source links concurrently
type LinkChecker struct {
	httpClient *http.Client
	userAgent  string
	maxWorkers int
	classifier Classifier
	limiter    *worker.Limiter
}

// NewLinkChecker creates a link checker. classifier and limiter may be nil.
func NewLinkChecker(httpClient *http.Client, userAgent string, maxWorkers int, classifier Classifier, limiter *worker.Limiter) *LinkChecker {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &LinkChecker{
		httpClient: httpClient,
		userAgent:  userAgent,
		maxWorkers: maxWorkers,
		classifier: classifier,
		limiter:    limiter,
	}
}

// Check checks all links concurrently. Results keep input order.
func (c *LinkChecker) Check(ctx context.Context, urls []string) []LinkResult {
	results := make([]LinkResult, len(urls))
	if len(urls) == 0 {
		return results
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, c.maxWorkers)

	for i, u := range urls {
		wg.Add(1)
		go func(idx int, rawURL string) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = LinkResult{URL: rawURL, Category: c.category(rawURL), Error: "context cancelled"}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			results[idx] = c.checkWithRetry(ctx, rawURL)
		}(i, u)
	}

	wg.Wait()
	return results
}

// Filter returns the links that are reachable and not from unreliable or
// satire domains, in input order
func (c *LinkChecker) Filter(ctx context.Context, urls []string) []string {
	kept := make([]string, 0, len(urls))
	for _, r := range c.Check(ctx, urls) {
		if !r.Reachable {
			continue
		}
		if r.Category == model.DomainUnreliable || r.Category == model.DomainSatire {
			continue
		}
		kept = append(kept, r.URL)
	}
	return kept
}

func (c *LinkChecker) category(rawURL string) model.DomainCategory {
	if c.classifier == nil {
		return model.DomainUnknown
	}
	return c.classifier.Classify(rawURL).Category
}

// checkOne issues a HEAD request, falling back to GET for servers that reject HEAD
func (c *LinkChecker) checkOne(ctx context.Context, rawURL string) LinkResult {
	result := LinkResult{URL: rawURL, Category: c.category(rawURL)}

	if err := c.limiter.Wait(ctx, rawURL); err != nil {
		result.Error = fmt.Sprintf("rate limit: %v", err)
		result.Dead = true
		return result
	}

	resp, err := c.do(ctx, http.MethodHead, rawURL)
	if err == nil && (resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented) {
		_ = resp.Body.Close()
		resp, err = c.do(ctx, http.MethodGet, rawURL)
	}
	if err != nil {
		result.Error = err.Error()
		result.Dead = !isRetryableNetworkError(result.Error)
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		result.Reachable = true
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		result.Dead = true
	}

	if final := resp.Request.URL.String(); final != rawURL {
		result.FinalURL = final
	}

	if lastModified := resp.Header.Get("Last-Modified"); lastModified != "" {
		if t, err := http.ParseTime(lastModified); err == nil {
			result.LastModified = &t
		}
	}

	return result
}

func (c *LinkChecker) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// checkWithRetry retries transient failures with exponential backoff
func (c *LinkChecker) checkWithRetry(ctx context.Context, rawURL string) LinkResult {
	var result LinkResult
	for attempt := 0; attempt < linkMaxRetries; attempt++ {
		result = c.checkOne(ctx, rawURL)
		if !isRetryable(result) || ctx.Err() != nil {
			return result
		}
		if attempt < linkMaxRetries-1 {
			linkSleepFunc(time.Duration(1<<uint(attempt)) * time.Second)
		}
	}
	return result
}

// isRetryable returns true for results that indicate transient failures
func isRetryable(result LinkResult) bool {
	if result.StatusCode >= 500 && result.StatusCode < 600 {
		return true
	}
	if result.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return result.Error != "" && isRetryableNetworkError(result.Error)
}

// isRetryableNetworkError checks error strings for transient network failures
func isRetryableNetworkError(errMsg string) bool {
	s := strings.ToLower(errMsg)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
