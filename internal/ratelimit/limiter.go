// Package ratelimit paces requests against the local agent API.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter caps how often the agent status endpoint is polled.
type Limiter struct {
	limiter *rate.Limiter
	rate    rate.Limit
	burst   int

	mu     sync.Mutex
	waited time.Duration
}

// NewLimiter creates a new rate limiter.
// A non-positive rate disables pacing.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
		rate:    limit,
		burst:   burst,
	}
}

// Wait blocks until a request is allowed or context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	err := l.limiter.Wait(ctx)

	l.mu.Lock()
	l.waited += time.Since(start)
	l.mu.Unlock()

	return err
}

// Stats returns rate limiter statistics.
func (l *Limiter) Stats() LimiterStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return LimiterStats{
		Rate:   float64(l.rate),
		Burst:  l.burst,
		Waited: l.waited,
	}
}

// LimiterStats contains rate limiter statistics.
type LimiterStats struct {
	Rate   float64       `json:"rate"`
	Burst  int           `json:"burst"`
	Waited time.Duration `json:"waited"`
}
