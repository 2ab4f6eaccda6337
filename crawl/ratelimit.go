package crawl

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter paces fetches. Wait blocks until the next request to host
// may proceed or ctx is cancelled.
type RateLimiter interface {
	Wait(ctx context.Context, host string) error
	Close()
}

type noRateLimit struct{}

func (noRateLimit) Wait(context.Context, string) error { return nil }
func (noRateLimit) Close()                             {}

// NoRateLimit lets every fetch proceed immediately.
var NoRateLimit RateLimiter = noRateLimit{}

type globalRateLimiter struct {
	limiter *rate.Limiter
}

// NewGlobalRateLimiter caps the whole crawl at rps requests per second
// across all hosts.
func NewGlobalRateLimiter(rps float64, burst int) RateLimiter {
	if rps <= 0 {
		return NoRateLimit
	}
	if burst <= 0 {
		burst = 1
	}
	return &globalRateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (g *globalRateLimiter) Wait(ctx context.Context, host string) error {
	return g.limiter.Wait(ctx)
}

func (g *globalRateLimiter) Close() {}

type hostRateLimiter struct {
	rps   float64
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostRateLimiter gives each host its own budget of rps requests per
// second, so one slow site does not stall the rest of the crawl.
func NewHostRateLimiter(rps float64, burst int) RateLimiter {
	if rps <= 0 {
		return NoRateLimit
	}
	if burst <= 0 {
		burst = 1
	}
	return &hostRateLimiter{
		rps:      rps,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (h *hostRateLimiter) Wait(ctx context.Context, host string) error {
	h.mu.Lock()
	limiter, ok := h.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(h.rps), h.burst)
		h.limiters[host] = limiter
	}
	h.mu.Unlock()

	return limiter.Wait(ctx)
}

func (h *hostRateLimiter) Close() {}
