package guards

import "github.com/zurychhh/ai-budget-optimizer/internal/domain"

// PlatformBudgetView answers the platform-wide query the I3 check needs:
// the sum of confirmed daily budgets across ENABLED campaigns on a
// platform, excluding one campaign (the proposal's target, whose current
// contribution the caller adds back in explicitly). Implemented by the
// Adapter Registry's campaign cache; kept as a narrow interface here so the
// evaluator has no dependency on the registry package.
type PlatformBudgetView interface {
	EnabledBudgetSum(platform domain.PlatformID, excluding domain.CampaignRef) domain.Money
}
