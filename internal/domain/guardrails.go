package domain

import "time"

// Guardrails is the configuration read by the Guardrail Gate. Changes to it
// are themselves recorded as CONFIG_CHANGE ActionRecords (§3 table).
type Guardrails struct {
	ConfidenceThreshold               float64
	MaxDailyAdjustments               int
	MaxBudgetReallocationFractionDay  float64
	MaxSingleBudgetIncreaseFraction   float64
	MinCampaignRuntimeBeforePause     time.Duration
	MajorChangeFraction               float64
	ApprovalTTL                       time.Duration
	Timezone                          *time.Location
	AutomationLevel                   AutomationLevel
	PlatformCeilings                  map[PlatformID]Money // optional; zero value = unset
	PerCampaignOverrides              map[CampaignRef]Guardrails
}

// EffectiveMajorChangeFraction resolves the SEMI automation level's override
// (SPEC_FULL §Supplemented Features #4: SEMI pins the R4 threshold to 0).
func (g Guardrails) EffectiveMajorChangeFraction() float64 {
	if g.AutomationLevel == AutomationSemi {
		return 0
	}
	return g.MajorChangeFraction
}

// ForCampaign returns the effective guardrails for ref, applying any
// per-campaign override on top of the global defaults.
func (g Guardrails) ForCampaign(ref CampaignRef) Guardrails {
	if override, ok := g.PerCampaignOverrides[ref]; ok {
		merged := g
		if override.ConfidenceThreshold != 0 {
			merged.ConfidenceThreshold = override.ConfidenceThreshold
		}
		if override.MaxDailyAdjustments != 0 {
			merged.MaxDailyAdjustments = override.MaxDailyAdjustments
		}
		if override.MaxSingleBudgetIncreaseFraction != 0 {
			merged.MaxSingleBudgetIncreaseFraction = override.MaxSingleBudgetIncreaseFraction
		}
		if override.MinCampaignRuntimeBeforePause != 0 {
			merged.MinCampaignRuntimeBeforePause = override.MinCampaignRuntimeBeforePause
		}
		if override.MajorChangeFraction != 0 {
			merged.MajorChangeFraction = override.MajorChangeFraction
		}
		return merged
	}
	return g
}

// DailyCounters are the per-calendar-day running totals the Decision Engine
// owns and rolls over at local midnight of Guardrails.Timezone. There is no
// separate counter store: on cold start the engine reconstructs this by
// scanning the ledger since local midnight (§4.5 recovery contract).
type DailyCounters struct {
	Day                time.Time // local midnight this counter covers
	AdjustmentsMade    int
	BudgetMovedByPlatform map[PlatformID]Money
	BudgetMovedByCampaign map[CampaignRef]Money
	SpendDeltaByPlatform  map[PlatformID]Money
}

// NewDailyCounters returns an empty counter set for the given local day.
func NewDailyCounters(day time.Time) DailyCounters {
	return DailyCounters{
		Day:                   day,
		BudgetMovedByPlatform: make(map[PlatformID]Money),
		BudgetMovedByCampaign: make(map[CampaignRef]Money),
		SpendDeltaByPlatform:  make(map[PlatformID]Money),
	}
}
