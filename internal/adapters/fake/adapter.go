// Package fake is the deterministic, in-memory Adapter used when a
// platform's credentials are absent (§4.1 "mock mode") and in tests.
// Grounded on the teacher's internal/data/exchanges/fake adapter and
// internal/data/facade/fake_setup.go fixture-seeding pattern.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/zurychhh/ai-budget-optimizer/internal/adapters"
	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

// Adapter serves a fixed set of campaigns and synthesizes metric samples
// deterministically from each campaign's budget and id, so repeated calls
// with the same rng produce the same numbers — useful for golden-output
// tests and for
// exercising the full tick loop with no external dependency.
type Adapter struct {
	mu         sync.Mutex
	platform   domain.PlatformID
	campaigns  map[string]domain.Campaign
	seq        int64 // confirmed write counter
}

// NewAdapter seeds platform with a small fixed campaign set.
func NewAdapter(platform domain.PlatformID) *Adapter {
	now := time.Now().Add(-30 * 24 * time.Hour)
	a := &Adapter{
		platform:  platform,
		campaigns: make(map[string]domain.Campaign),
	}
	seed := []struct {
		id     string
		name   string
		budget float64
	}{
		{"fixture-1", "Prospecting - Broad", 100},
		{"fixture-2", "Retargeting - Cart Abandon", 50},
		{"fixture-3", "Brand - Search Exact", 250},
	}
	for _, s := range seed {
		a.campaigns[s.id] = domain.Campaign{
			Ref:         domain.CampaignRef{Platform: platform, ExternalID: s.id},
			Name:        s.name,
			Status:      domain.CampaignEnabled,
			DailyBudget: domain.NewMoney(s.budget, "USD"),
			BudgetType:  domain.BudgetDaily,
			Objective:   "CONVERSIONS",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	return a
}

func (a *Adapter) Platform() domain.PlatformID { return a.platform }

func (a *Adapter) ListCampaigns(ctx context.Context, since time.Time) ([]domain.Campaign, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.Campaign, 0, len(a.campaigns))
	for _, c := range a.campaigns {
		if !since.IsZero() && c.UpdatedAt.Before(since) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (a *Adapter) GetPerformance(ctx context.Context, rng adapters.TimeRange, ids []string) ([]domain.MetricSample, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}

	out := make([]domain.MetricSample, 0, len(a.campaigns))
	for id, c := range a.campaigns {
		if len(ids) > 0 && !want[id] {
			continue
		}
		// Deterministic pseudo-metrics derived from the campaign's own
		// budget and id length, so the same fixture always yields the same
		// sample — no time.Now()/rand dependency.
		variance := float64(len(id)%5+1) / 10
		spend := c.DailyBudget.Float64() * (0.6 + variance)
		impressions := int64(spend * 400)
		clicks := int64(spend * 8)
		conversions := int64(spend / 20)
		revenue := spend * (1.5 + variance)

		out = append(out, domain.MetricSample{
			Campaign:    c.Ref,
			SampleTime:  rng.Until,
			Impressions: impressions,
			Clicks:      clicks,
			Spend:       domain.NewMoney(spend, "USD"),
			Conversions: conversions,
			Revenue:     domain.NewMoney(revenue, "USD"),
			MockData:    true,
		})
	}
	return out, nil
}

func (a *Adapter) UpdateBudget(ctx context.Context, externalID string, newDailyBudget domain.Money, idempotencyKey string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.campaigns[externalID]
	if !ok {
		return domain.NewAdapterError(domain.KindNotFound, a.platform, "update_budget", errNotFound(externalID))
	}
	c.DailyBudget = newDailyBudget
	c.UpdatedAt = time.Now()
	a.campaigns[externalID] = c
	a.seq++
	return nil
}

func (a *Adapter) SetStatus(ctx context.Context, externalID string, status domain.CampaignStatus, idempotencyKey string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.campaigns[externalID]
	if !ok {
		return domain.NewAdapterError(domain.KindNotFound, a.platform, "set_status", errNotFound(externalID))
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	a.campaigns[externalID] = c
	a.seq++
	return nil
}

func (a *Adapter) Health(ctx context.Context) adapters.HealthStatus {
	return adapters.HealthStatus{Platform: a.platform, OK: true, Detail: "fixture adapter", MockData: true, LastSuccessAt: time.Now()}
}

type notFoundErr struct{ id string }

func (e notFoundErr) Error() string { return "fake: campaign not found: " + e.id }

func errNotFound(id string) error { return notFoundErr{id: id} }
