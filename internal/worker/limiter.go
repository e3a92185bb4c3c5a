package worker

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ppiankov/verisum/internal/model"
)

// Limiter paces outbound requests per host. Evidence APIs share one
// limiter so a batch run cannot exceed their quotas.
type Limiter struct {
	mu       sync.Mutex
	hosts    map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
	disabled bool
}

// NewLimiter creates a limiter allowing requestsPerSecond per host.
// A non-positive rate disables limiting.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}
	return &Limiter{
		hosts:    make(map[string]*rate.Limiter),
		rps:      rate.Limit(requestsPerSecond),
		burst:    burst,
		disabled: requestsPerSecond <= 0,
	}
}

// Wait blocks until a request to rawURL's host may proceed
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	if l == nil || l.disabled {
		return ctx.Err()
	}
	host, err := hostKey(rawURL)
	if err != nil {
		return err
	}
	return l.forHost(host).Wait(ctx)
}

// SetHostRate overrides the rate for one host, e.g. an API with a tighter
// quota than the default
func (l *Limiter) SetHostRate(host string, requestsPerSecond float64, burst int) {
	if l == nil {
		return
	}
	if burst <= 0 {
		burst = l.burst
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hosts[strings.ToLower(host)] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

func (l *Limiter) forHost(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.hosts[host]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.hosts[host] = lim
	}
	return lim
}

// hostKey returns the lowercase host (without port) of rawURL
func hostKey(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("rate limit: %w: %v", model.ErrInvalidInput, err)
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", fmt.Errorf("rate limit: no host in %q: %w", rawURL, model.ErrInvalidInput)
	}
	return host, nil
}
