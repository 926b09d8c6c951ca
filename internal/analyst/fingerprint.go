package analyst

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

// canonicalProposal is the subset of a pending Proposal that affects the
// analyst's answer, used only to build a stable fingerprint.
type canonicalProposal struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind"`
	Campaign   string  `json:"campaign"`
	Confidence float64 `json:"confidence"`
}

// canonicalGuardrails mirrors domain.Guardrails' scalar fields only.
// PerCampaignOverrides is keyed by a struct (domain.CampaignRef), which
// encoding/json cannot marshal as a map key, so overrides are flattened
// into a sorted slice instead of carried as-is.
type canonicalGuardrails struct {
	ConfidenceThreshold              float64               `json:"confidence_threshold"`
	MaxDailyAdjustments              int                   `json:"max_daily_adjustments"`
	MaxBudgetReallocationFractionDay float64               `json:"max_budget_reallocation_fraction_day"`
	MaxSingleBudgetIncreaseFraction  float64               `json:"max_single_budget_increase_fraction"`
	MinCampaignRuntimeBeforePause    int64                 `json:"min_campaign_runtime_before_pause_ns"`
	MajorChangeFraction              float64               `json:"major_change_fraction"`
	ApprovalTTL                      int64                 `json:"approval_ttl_ns"`
	AutomationLevel                  string                `json:"automation_level"`
	Overrides                        []canonicalOverride   `json:"overrides"`
}

type canonicalOverride struct {
	Campaign string  `json:"campaign"`
	Fraction float64 `json:"major_change_fraction"`
}

func toCanonicalGuardrails(g domain.Guardrails) canonicalGuardrails {
	overrides := make([]canonicalOverride, 0, len(g.PerCampaignOverrides))
	for ref, o := range g.PerCampaignOverrides {
		overrides = append(overrides, canonicalOverride{
			Campaign: string(ref.Platform) + ":" + ref.ExternalID,
			Fraction: o.MajorChangeFraction,
		})
	}
	sort.Slice(overrides, func(i, j int) bool { return overrides[i].Campaign < overrides[j].Campaign })

	return canonicalGuardrails{
		ConfidenceThreshold:              g.ConfidenceThreshold,
		MaxDailyAdjustments:              g.MaxDailyAdjustments,
		MaxBudgetReallocationFractionDay: g.MaxBudgetReallocationFractionDay,
		MaxSingleBudgetIncreaseFraction:  g.MaxSingleBudgetIncreaseFraction,
		MinCampaignRuntimeBeforePause:    int64(g.MinCampaignRuntimeBeforePause),
		MajorChangeFraction:              g.MajorChangeFraction,
		ApprovalTTL:                      int64(g.ApprovalTTL),
		AutomationLevel:                  string(g.AutomationLevel),
		Overrides:                        overrides,
	}
}

// Fingerprint returns a deterministic hex-encoded sha256 digest of req's
// decision-relevant fields, excluding GeneratedAt — a tick retried a few
// seconds later with otherwise identical inputs must fingerprint the same
// (§4.3 step 3: "a retried tick with identical inputs does not
// multiply-bill the analyst"). Campaigns and pending proposals are sorted
// first so fan-out's non-deterministic collection order never changes the
// digest.
func Fingerprint(req Request) string {
	campaigns := make([]CampaignContext, len(req.Campaigns))
	copy(campaigns, req.Campaigns)
	sort.Slice(campaigns, func(i, j int) bool {
		a, b := campaigns[i].Campaign.Ref, campaigns[j].Campaign.Ref
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		}
		return a.ExternalID < b.ExternalID
	})

	pending := make([]canonicalProposal, 0, len(req.Pending))
	for _, p := range req.Pending {
		pending = append(pending, canonicalProposal{
			ID:         p.ID,
			Kind:       string(p.Kind),
			Campaign:   string(p.Campaign.Platform) + ":" + p.Campaign.ExternalID,
			Confidence: p.Confidence,
		})
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })

	payload := struct {
		Campaigns  []CampaignContext    `json:"campaigns"`
		Guardrails canonicalGuardrails  `json:"guardrails"`
		Pending    []canonicalProposal  `json:"pending"`
	}{Campaigns: campaigns, Guardrails: toCanonicalGuardrails(req.Guardrails), Pending: pending}

	buf, err := json.Marshal(payload)
	if err != nil {
		// every field above is a plain scalar or slice of scalars; this
		// should be unreachable, but fail closed rather than panic mid-tick.
		return "unfingerprintable"
	}

	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}
