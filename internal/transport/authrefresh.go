package transport

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

// TokenSource fetches a fresh access token for a platform credential. The
// concrete implementation (OAuth refresh-token exchange, service-account
// JWT, …) is adapter-specific; this type only coalesces concurrent calls.
type TokenSource func(ctx context.Context, platform domain.PlatformID) (string, error)

// AuthRefresher coalesces concurrent refreshes of the same platform's
// credential behind a single in-flight call, so a burst of AUTH_EXPIRED
// errors across a tick's fan-out triggers one refresh instead of one per
// goroutine. Grounded on the teacher's single-flight-style coalescing in
// internal/net/budget for a shared limited resource, generalized from
// "shared daily budget" to "shared auth token."
type AuthRefresher struct {
	group     singleflight.Group
	fetch     TokenSource
}

// NewAuthRefresher wraps fetch with single-flight coalescing.
func NewAuthRefresher(fetch TokenSource) *AuthRefresher {
	return &AuthRefresher{fetch: fetch}
}

// Refresh returns a current token for platform, making at most one
// concurrent underlying call per platform regardless of how many callers
// invoke Refresh at once.
func (r *AuthRefresher) Refresh(ctx context.Context, platform domain.PlatformID) (string, error) {
	v, err, _ := r.group.Do(string(platform), func() (any, error) {
		return r.fetch(ctx, platform)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
