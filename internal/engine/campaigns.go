package engine

import (
	"sync"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

// campaignCache holds the most recently confirmed Campaign state per
// reference, refreshed at the start of each COLLECTING phase. It backs the
// guards.PlatformBudgetView the Guardrail Gate's I3 check needs, so the
// gate itself never talks to the Adapter Registry directly.
type campaignCache struct {
	mu    sync.RWMutex
	byRef map[domain.CampaignRef]domain.Campaign
}

func newCampaignCache() *campaignCache {
	return &campaignCache{byRef: make(map[domain.CampaignRef]domain.Campaign)}
}

func (c *campaignCache) put(campaigns []domain.Campaign) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, camp := range campaigns {
		c.byRef[camp.Ref] = camp
	}
}

func (c *campaignCache) get(ref domain.CampaignRef) (domain.Campaign, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	camp, ok := c.byRef[ref]
	return camp, ok
}

// EnabledBudgetSum implements guards.PlatformBudgetView.
func (c *campaignCache) EnabledBudgetSum(platform domain.PlatformID, excluding domain.CampaignRef) domain.Money {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var sum domain.Money
	for ref, camp := range c.byRef {
		if ref.Platform != platform || ref == excluding || camp.Status != domain.CampaignEnabled {
			continue
		}
		sum = sum.Add(camp.DailyBudget)
	}
	return sum
}
