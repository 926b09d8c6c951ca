// Package adapters implements the Adapter Abstraction Layer: one uniform
// capability set over every ad platform (§4.1), plus the Registry that
// holds a value per PlatformID rather than an ambient global (§9 design
// note: "no package-level singleton registry").
package adapters

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

// TimeRange is a half-open [Since, Until) window for get_performance.
type TimeRange struct {
	Since time.Time
	Until time.Time
}

// HealthStatus is the result of an adapter's health() call. It never
// surfaces as an error — health is a report, not a fallible operation.
type HealthStatus struct {
	Platform       domain.PlatformID
	OK             bool
	Detail         string
	BreakerState   string
	LastSuccessAt  time.Time
	MockData       bool
}

// Adapter is the uniform capability set every ad platform implements
// (§4.1's table). All methods are read-only or confirmed-write: a nil error
// on a write means the platform has confirmed the change, not merely that
// the request was sent.
type Adapter interface {
	Platform() domain.PlatformID

	// ListCampaigns returns every campaign visible to this credential. If
	// since is non-zero, adapters may use it as a watermark to skip
	// unchanged campaigns, but must still return a complete, idempotent
	// result either way.
	ListCampaigns(ctx context.Context, since time.Time) ([]domain.Campaign, error)

	// GetPerformance returns one aggregated MetricSample per campaign (or
	// per id in ids, if non-empty) across rng.
	GetPerformance(ctx context.Context, rng TimeRange, ids []string) ([]domain.MetricSample, error)

	// UpdateBudget confirms a new canonical daily budget for a campaign.
	UpdateBudget(ctx context.Context, externalID string, newDailyBudget domain.Money, idempotencyKey string) error

	// SetStatus confirms an ENABLED/PAUSED transition.
	SetStatus(ctx context.Context, externalID string, status domain.CampaignStatus, idempotencyKey string) error

	Health(ctx context.Context) HealthStatus
}

// Registry holds one Adapter per platform. It is a plain value, constructed
// once at startup and passed explicitly to whatever needs it (the Decision
// Engine) — never reached through a package-level variable.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.PlatformID]Adapter
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[domain.PlatformID]Adapter)}
}

// Register adds or replaces the adapter for its own Platform().
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Platform()] = a
}

// Get returns the adapter for platform, or false if none is registered.
func (r *Registry) Get(platform domain.PlatformID) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[platform]
	return a, ok
}

// Platforms returns every registered platform, order unspecified.
func (r *Registry) Platforms() []domain.PlatformID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.PlatformID, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	return out
}

// MustGet panics if platform has no registered adapter — reserved for
// startup wiring paths where a missing adapter is a configuration bug, not
// a runtime condition to recover from.
func (r *Registry) MustGet(platform domain.PlatformID) Adapter {
	a, ok := r.Get(platform)
	if !ok {
		panic(fmt.Sprintf("adapters: no adapter registered for platform %q", platform))
	}
	return a
}
