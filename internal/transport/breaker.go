package transport

import (
	"time"

	gobreaker "github.com/sony/gobreaker"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

// Breakers holds one gobreaker.CircuitBreaker per platform, opening after
// repeated adapter failures so a degraded platform stops being hammered
// every tick. Adapted from the teacher's infra/breakers wrapper; the
// ReadyToTrip policy is unchanged, only the breaker set is now keyed by
// domain.PlatformID instead of a bare provider name.
type Breakers struct {
	byPlatform map[domain.PlatformID]*gobreaker.CircuitBreaker
}

// NewBreakers constructs one breaker per platform in platforms.
func NewBreakers(platforms []domain.PlatformID) *Breakers {
	b := &Breakers{byPlatform: make(map[domain.PlatformID]*gobreaker.CircuitBreaker, len(platforms))}
	for _, p := range platforms {
		b.byPlatform[p] = newBreaker(string(p))
	}
	return b
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		total := counts.Requests
		if total < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(total) > 0.1
	}
	return gobreaker.NewCircuitBreaker(st)
}

// BreakerConfig overrides the default ReadyToTrip policy and open-state
// timeout for one platform, sourced from that platform's
// config.ProviderConfig.Circuit.
type BreakerConfig struct {
	FailureThreshold uint32
	SuccessThreshold uint32
	Timeout          time.Duration
}

// SetPlatformBreaker replaces platform's breaker with one built from cfg,
// overriding the shared defaults NewBreakers applies to every platform.
func (b *Breakers) SetPlatformBreaker(platform domain.PlatformID, cfg BreakerConfig) {
	st := gobreaker.Settings{Name: string(platform)}
	st.Interval = 60 * time.Second
	st.Timeout = cfg.Timeout
	st.MaxRequests = cfg.SuccessThreshold
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= cfg.FailureThreshold
	}
	b.byPlatform[platform] = gobreaker.NewCircuitBreaker(st)
}

// Execute runs fn through the breaker for platform. A platform with no
// registered breaker runs unguarded — callers should register every
// platform they adapt for at startup via NewBreakers.
func (b *Breakers) Execute(platform domain.PlatformID, fn func() (any, error)) (any, error) {
	br, ok := b.byPlatform[platform]
	if !ok {
		return fn()
	}
	return br.Execute(fn)
}

// State reports the current breaker state for platform, used by the
// adapter's health() call (§4.1).
func (b *Breakers) State(platform domain.PlatformID) string {
	br, ok := b.byPlatform[platform]
	if !ok {
		return gobreaker.StateClosed.String()
	}
	return br.State().String()
}
