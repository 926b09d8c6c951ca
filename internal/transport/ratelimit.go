// Package transport is the composable per-platform HTTP middleware stack
// every adapter call goes through: token-bucket rate limiting, a circuit
// breaker, and single-flight auth-token refresh coalescing. Generalized from
// the teacher's internal/net/{ratelimit,circuit,client} stack, retargeted at
// ad-platform adapters and domain.AdapterError instead of exchange calls.
package transport

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

// Limiter provides per-platform rate limiting using a token bucket. One
// limiter is created lazily per platform and reused for the adapter's
// lifetime.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[domain.PlatformID]*rate.Limiter
	rps      float64
	burst    int
}

// NewLimiter returns a Limiter applying the same rps/burst to every
// platform. Per-platform overrides can be set with SetPlatformLimit.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[domain.PlatformID]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func (l *Limiter) getLimiter(platform domain.PlatformID) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.limiters[platform]
	l.mu.RUnlock()
	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[platform]; ok {
		return lim
	}
	lim = rate.NewLimiter(rate.Limit(l.rps), l.burst)
	l.limiters[platform] = lim
	return lim
}

// SetPlatformLimit overrides the rps/burst for one platform, e.g. to match a
// documented per-minute API quota.
func (l *Limiter) SetPlatformLimit(platform domain.PlatformID, rps float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiters[platform] = rate.NewLimiter(rate.Limit(rps), burst)
}

// Wait blocks until a call to platform is allowed, or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context, platform domain.PlatformID) error {
	return l.getLimiter(platform).Wait(ctx)
}
