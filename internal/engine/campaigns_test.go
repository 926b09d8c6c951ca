package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

func TestCampaignCache_EnabledBudgetSumExcludesTargetAndDisabled(t *testing.T) {
	c := newCampaignCache()
	now := time.Now()

	c.put([]domain.Campaign{
		{Ref: domain.CampaignRef{Platform: domain.PlatformGoogleAds, ExternalID: "a"}, Status: domain.CampaignEnabled, DailyBudget: usd(100), CreatedAt: now},
		{Ref: domain.CampaignRef{Platform: domain.PlatformGoogleAds, ExternalID: "b"}, Status: domain.CampaignEnabled, DailyBudget: usd(200), CreatedAt: now},
		{Ref: domain.CampaignRef{Platform: domain.PlatformGoogleAds, ExternalID: "c"}, Status: domain.CampaignPaused, DailyBudget: usd(300), CreatedAt: now},
		{Ref: domain.CampaignRef{Platform: domain.PlatformMetaAds, ExternalID: "d"}, Status: domain.CampaignEnabled, DailyBudget: usd(400), CreatedAt: now},
	})

	sum := c.EnabledBudgetSum(domain.PlatformGoogleAds, domain.CampaignRef{Platform: domain.PlatformGoogleAds, ExternalID: "a"})
	assert.Equal(t, usd(200), sum, "only campaign b counts: a is excluded, c is paused, d is on a different platform")
}

func TestCampaignCache_EnabledBudgetSumEmptyWhenNothingMatches(t *testing.T) {
	c := newCampaignCache()
	sum := c.EnabledBudgetSum(domain.PlatformGoogleAds, domain.CampaignRef{})
	assert.Equal(t, domain.Money{}, sum)
}

func TestCampaignCache_PutOverwritesOnSameRef(t *testing.T) {
	c := newCampaignCache()
	ref := domain.CampaignRef{Platform: domain.PlatformGoogleAds, ExternalID: "a"}
	c.put([]domain.Campaign{{Ref: ref, Status: domain.CampaignEnabled, DailyBudget: usd(100)}})
	c.put([]domain.Campaign{{Ref: ref, Status: domain.CampaignEnabled, DailyBudget: usd(150)}})

	camp, ok := c.get(ref)
	assert.True(t, ok)
	assert.Equal(t, usd(150), camp.DailyBudget)
}
