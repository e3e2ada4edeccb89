package github

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ispasdani/k2ide/internal/core/domain"
)

const (
	headerRateRemaining = "X-RateLimit-Remaining"
	headerRateReset     = "X-RateLimit-Reset"
)

// rateLimiter throttles requests with a token bucket and stops early once
// the API reports an exhausted quota.
type rateLimiter struct {
	mu        sync.Mutex
	bucket    *rate.Limiter
	remaining int
	resetAt   time.Time
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		bucket:    rate.NewLimiter(limit, burst),
		remaining: -1,
	}
}

// Wait blocks for a bucket token. It fails fast with ErrRateLimited while the
// last response said the quota is spent and the reset is still ahead.
func (r *rateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	remaining, resetAt := r.remaining, r.resetAt
	r.mu.Unlock()

	if remaining == 0 && time.Now().Before(resetAt) {
		return fmt.Errorf("github quota exhausted until %s: %w", resetAt.Format(time.RFC3339), domain.ErrRateLimited)
	}
	return r.bucket.Wait(ctx)
}

// Observe records the quota headers of a response
func (r *rateLimiter) Observe(resp *http.Response) {
	if resp == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v := resp.Header.Get(headerRateRemaining); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			r.remaining = n
		}
	}
	if v := resp.Header.Get(headerRateReset); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			r.resetAt = time.Unix(ts, 0)
		}
	}
}
