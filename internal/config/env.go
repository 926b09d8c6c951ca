package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

// EnvOptions is §6's environment-option table, read by LoadEnvOptions and
// layered over the guardrails loaded from YAML by ApplyTo, so an operator
// can tune a single knob with an env var instead of redeploying
// config/guardrails.yaml.
type EnvOptions struct {
	TickInterval                        time.Duration
	TickDeadlineFraction                float64
	ConfidenceThreshold                 float64
	MaxDailyAdjustments                 int
	MaxBudgetReallocationFractionPerDay float64
	MaxSingleBudgetIncreaseFraction     float64
	MinCampaignRuntimeHoursBeforePause  int
	MajorChangeFraction                 float64
	ApprovalTTL                         time.Duration
	Timezone                            string
	AutomationLevel                     string
}

// LoadEnvOptions binds §6's environment variables (prefixed OPTIMIZER_) on
// top of viper defaults taken from DefaultGuardrailsFile, the way the
// teacher's settings loader layers env over file defaults.
func LoadEnvOptions() (EnvOptions, error) {
	v := viper.New()
	v.SetEnvPrefix("optimizer")
	v.AutomaticEnv()

	def := DefaultGuardrailsFile()
	v.SetDefault("tick_interval", "15m")
	v.SetDefault("tick_deadline_fraction", 0.8)
	v.SetDefault("confidence_threshold", def.ConfidenceThreshold)
	v.SetDefault("max_daily_adjustments", def.MaxDailyAdjustments)
	v.SetDefault("max_budget_reallocation_fraction_per_day", def.MaxBudgetReallocationFractionPerDay)
	v.SetDefault("max_single_budget_increase_fraction", def.MaxSingleBudgetIncreaseFraction)
	v.SetDefault("min_campaign_runtime_hours_before_pause", def.MinCampaignRuntimeHoursBeforePause)
	v.SetDefault("major_change_fraction", def.MajorChangeFraction)
	v.SetDefault("approval_ttl", "4h")
	v.SetDefault("timezone", def.Timezone)
	v.SetDefault("automation_level", def.AutomationLevel)

	for _, key := range []string{
		"tick_interval", "tick_deadline_fraction", "confidence_threshold",
		"max_daily_adjustments", "max_budget_reallocation_fraction_per_day",
		"max_single_budget_increase_fraction", "min_campaign_runtime_hours_before_pause",
		"major_change_fraction", "approval_ttl", "timezone", "automation_level",
	} {
		if err := v.BindEnv(key); err != nil {
			return EnvOptions{}, fmt.Errorf("config: bind env %s: %w", key, err)
		}
	}

	tickInterval, err := time.ParseDuration(v.GetString("tick_interval"))
	if err != nil {
		return EnvOptions{}, fmt.Errorf("config: OPTIMIZER_TICK_INTERVAL: %w", err)
	}
	approvalTTL, err := time.ParseDuration(v.GetString("approval_ttl"))
	if err != nil {
		return EnvOptions{}, fmt.Errorf("config: OPTIMIZER_APPROVAL_TTL: %w", err)
	}

	return EnvOptions{
		TickInterval:                        tickInterval,
		TickDeadlineFraction:                v.GetFloat64("tick_deadline_fraction"),
		ConfidenceThreshold:                 v.GetFloat64("confidence_threshold"),
		MaxDailyAdjustments:                 v.GetInt("max_daily_adjustments"),
		MaxBudgetReallocationFractionPerDay: v.GetFloat64("max_budget_reallocation_fraction_per_day"),
		MaxSingleBudgetIncreaseFraction:     v.GetFloat64("max_single_budget_increase_fraction"),
		MinCampaignRuntimeHoursBeforePause:  v.GetInt("min_campaign_runtime_hours_before_pause"),
		MajorChangeFraction:                 v.GetFloat64("major_change_fraction"),
		ApprovalTTL:                         approvalTTL,
		Timezone:                            v.GetString("timezone"),
		AutomationLevel:                     v.GetString("automation_level"),
	}, nil
}

// ApplyTo overlays env options on top of a base guardrails value, giving the
// env table priority. Every field EnvOptions carries is overwritten, whether
// or not its env var was set: an unset var contributes LoadEnvOptions'
// default, which replaces the base value for that field.
func (e EnvOptions) ApplyTo(base domain.Guardrails) (domain.Guardrails, error) {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return domain.Guardrails{}, fmt.Errorf("config: timezone %q: %w", e.Timezone, err)
	}
	base.ConfidenceThreshold = e.ConfidenceThreshold
	base.MaxDailyAdjustments = e.MaxDailyAdjustments
	base.MaxBudgetReallocationFractionDay = e.MaxBudgetReallocationFractionPerDay
	base.MaxSingleBudgetIncreaseFraction = e.MaxSingleBudgetIncreaseFraction
	base.MinCampaignRuntimeBeforePause = time.Duration(e.MinCampaignRuntimeHoursBeforePause) * time.Hour
	base.MajorChangeFraction = e.MajorChangeFraction
	base.ApprovalTTL = e.ApprovalTTL
	base.Timezone = loc
	base.AutomationLevel = domain.AutomationLevel(e.AutomationLevel)
	return base, nil
}
