package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

// GuardrailsFile is the on-disk shape of the static guardrail configuration
// (§6's table plus per-campaign overrides), loaded once at startup.
// Generalized from the teacher's GuardsConfig (profile-per-regime YAML),
// replacing "regime profile" with "the single active guardrail set" since
// this domain has no regime concept — only one effective Guardrails value
// plus named per-campaign exceptions.
type GuardrailsFile struct {
	ConfidenceThreshold                  float64                     `yaml:"confidence_threshold"`
	MaxDailyAdjustments                  int                         `yaml:"max_daily_adjustments"`
	MaxBudgetReallocationFractionPerDay  float64                     `yaml:"max_budget_reallocation_fraction_per_day"`
	MaxSingleBudgetIncreaseFraction      float64                     `yaml:"max_single_budget_increase_fraction"`
	MinCampaignRuntimeHoursBeforePause   int                         `yaml:"min_campaign_runtime_hours_before_pause"`
	MajorChangeFraction                  float64                     `yaml:"major_change_fraction"`
	ApprovalTTLHours                     float64                     `yaml:"approval_ttl_hours"`
	Timezone                             string                      `yaml:"timezone"`
	AutomationLevel                      string                      `yaml:"automation_level"`
	PlatformCeilings                     map[string]float64          `yaml:"platform_ceilings"`
	PerCampaignOverrides                 []CampaignOverrideFile      `yaml:"per_campaign_overrides"`
}

// CampaignOverrideFile names the campaign it overrides by platform+external
// id, since YAML can't key a map by a compound struct the way
// domain.Guardrails.PerCampaignOverrides does in memory.
type CampaignOverrideFile struct {
	Platform                     string  `yaml:"platform"`
	ExternalID                   string  `yaml:"external_id"`
	ConfidenceThreshold          float64 `yaml:"confidence_threshold"`
	MaxDailyAdjustments          int     `yaml:"max_daily_adjustments"`
	MaxSingleBudgetIncreaseFraction float64 `yaml:"max_single_budget_increase_fraction"`
	MinCampaignRuntimeHours      int     `yaml:"min_campaign_runtime_hours"`
	MajorChangeFraction          float64 `yaml:"major_change_fraction"`
}

// DefaultGuardrailsFile mirrors §6's stated defaults.
func DefaultGuardrailsFile() GuardrailsFile {
	return GuardrailsFile{
		ConfidenceThreshold:                 0.85,
		MaxDailyAdjustments:                 50,
		MaxBudgetReallocationFractionPerDay: 1.0,
		MaxSingleBudgetIncreaseFraction:     0.5,
		MinCampaignRuntimeHoursBeforePause:  72,
		MajorChangeFraction:                 0.20,
		ApprovalTTLHours:                    4,
		Timezone:                            "UTC",
		AutomationLevel:                     string(domain.AutomationFull),
	}
}

// LoadGuardrailsFile reads and parses path, falling back to
// DefaultGuardrailsFile's values for any zero field left unset in the file.
func LoadGuardrailsFile(path string) (GuardrailsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GuardrailsFile{}, fmt.Errorf("config: read guardrails file: %w", err)
	}
	file := DefaultGuardrailsFile()
	if err := yaml.Unmarshal(data, &file); err != nil {
		return GuardrailsFile{}, fmt.Errorf("config: parse guardrails YAML: %w", err)
	}
	return file, nil
}

// ToDomain converts the on-disk shape into the domain.Guardrails the
// Guardrail Gate actually evaluates against.
func (f GuardrailsFile) ToDomain() (domain.Guardrails, error) {
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return domain.Guardrails{}, fmt.Errorf("config: timezone %q: %w", f.Timezone, err)
	}

	g := domain.Guardrails{
		ConfidenceThreshold:              f.ConfidenceThreshold,
		MaxDailyAdjustments:              f.MaxDailyAdjustments,
		MaxBudgetReallocationFractionDay: f.MaxBudgetReallocationFractionPerDay,
		MaxSingleBudgetIncreaseFraction:  f.MaxSingleBudgetIncreaseFraction,
		MinCampaignRuntimeBeforePause:    time.Duration(f.MinCampaignRuntimeHoursBeforePause) * time.Hour,
		MajorChangeFraction:              f.MajorChangeFraction,
		ApprovalTTL:                      time.Duration(f.ApprovalTTLHours * float64(time.Hour)),
		Timezone:                         loc,
		AutomationLevel:                  domain.AutomationLevel(f.AutomationLevel),
		PlatformCeilings:                 make(map[domain.PlatformID]domain.Money),
		PerCampaignOverrides:             make(map[domain.CampaignRef]domain.Guardrails),
	}

	for platform, ceiling := range f.PlatformCeilings {
		g.PlatformCeilings[domain.PlatformID(platform)] = domain.NewMoney(ceiling, "USD")
	}

	for _, o := range f.PerCampaignOverrides {
		ref := domain.CampaignRef{Platform: domain.PlatformID(o.Platform), ExternalID: o.ExternalID}
		g.PerCampaignOverrides[ref] = domain.Guardrails{
			ConfidenceThreshold:             o.ConfidenceThreshold,
			MaxDailyAdjustments:             o.MaxDailyAdjustments,
			MaxSingleBudgetIncreaseFraction: o.MaxSingleBudgetIncreaseFraction,
			MinCampaignRuntimeBeforePause:   time.Duration(o.MinCampaignRuntimeHours) * time.Hour,
			MajorChangeFraction:             o.MajorChangeFraction,
		}
	}

	return g, nil
}

// GetDefaultGuardrailsConfigPath mirrors the teacher's GetGuardsConfigPath
// convention for where the file lives relative to the working directory.
func GetDefaultGuardrailsConfigPath() string {
	return "config/guardrails.yaml"
}
