package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/verisum/internal/worker"
)

const (
	apiMaxRetries   = 3
	apiMaxBodyBytes = 2 << 20
)

// apiSleepFunc waits between retries (injectable for tests)
var apiSleepFunc = func(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// StatusError is a non-2xx response from an evidence API
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", redactKey(e.URL), e.Code)
}

// Client performs rate-limited JSON GETs against evidence APIs
type Client struct {
	httpClient *http.Client
	limiter    *worker.Limiter
	userAgent  string
	logger     *zap.Logger
}

// NewClient creates an evidence API client. limiter may be nil.
func NewClient(httpClient *http.Client, limiter *worker.Limiter, userAgent string, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: httpClient,
		limiter:    limiter,
		userAgent:  userAgent,
		logger:     logger,
	}
}

// GetJSON fetches rawURL and decodes the body into out, retrying transient
// failures with exponential backoff.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	var err error
	for attempt := 0; attempt < apiMaxRetries; attempt++ {
		err = c.getOnce(ctx, rawURL, out)
		if err == nil || !isRetryable(err) || ctx.Err() != nil {
			return err
		}
		if attempt < apiMaxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			c.logger.Debug("retrying evidence request",
				zap.String("url", redactKey(rawURL)),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			if serr := apiSleepFunc(ctx, backoff); serr != nil {
				return serr
			}
		}
	}
	return err
}

func (c *Client) getOnce(ctx context.Context, rawURL string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, rawURL); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, apiMaxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// isRetryable reports whether err looks transient. A refused connection means
// nothing is listening, so it fails fast instead of backing off.
func isRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || (se.Code >= 500 && se.Code < 600)
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "connection reset")
}

// redactKey strips API keys from URLs before they reach logs or errors
func redactKey(rawURL string) string {
	idx := strings.Index(rawURL, "key=")
	if idx < 0 {
		return rawURL
	}
	end := strings.IndexByte(rawURL[idx:], '&')
	if end < 0 {
		return rawURL[:idx] + "key=REDACTED"
	}
	return rawURL[:idx] + "key=REDACTED" + rawURL[idx+end:]
}
