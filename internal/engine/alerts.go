package engine

import (
	"fmt"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

// AlertThresholds are the fixed constants the Alert Monitor side channel
// evaluates against each tick's normalised samples (SPEC_FULL Supplemented
// Feature #1). Grounded on the original implementation's
// _check_alert_conditions (backend/app/tasks/monitoring.py): zero
// conversions with non-trivial spend, sub-1.0 ROAS with material spend, and
// a CPC ceiling. Alerts never gate or reject a Proposal — they are a
// parallel observability stream the Decision Engine writes alongside its
// own decisions.
type AlertThresholds struct {
	ZeroConversionsMinSpend domain.Money
	LowROASThreshold        float64
	LowROASMinSpend         domain.Money
	HighCPCThreshold        float64
}

// DefaultAlertThresholds mirrors the original's hard-coded $50 / $100 / $5.0
// constants.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		ZeroConversionsMinSpend: domain.NewMoney(50, "USD"),
		LowROASThreshold:        1.0,
		LowROASMinSpend:         domain.NewMoney(100, "USD"),
		HighCPCThreshold:        5.0,
	}
}

// checkAlerts evaluates every sample against alertCfg, independent of and
// in addition to whatever the Guardrail Gate decides about any proposal
// targeting the same campaign.
func (e *Engine) checkAlerts(samples []domain.MetricSample) []domain.Alert {
	var alerts []domain.Alert
	now := e.clock()

	for _, s := range samples {
		if s.Conversions == 0 && s.Spend.GreaterThan(e.alertCfg.ZeroConversionsMinSpend) {
			alerts = append(alerts, domain.Alert{
				Type:       domain.AlertZeroConversions,
				Severity:   domain.SeverityHigh,
				Campaign:   s.Campaign,
				Message:    fmt.Sprintf("%s spent %s with zero conversions", s.Campaign.ExternalID, s.Spend),
				MetricName: "conversions",
				Value:      0,
				Threshold:  0,
				CreatedAt:  now,
			})
		}

		if s.Spend.GreaterThan(e.alertCfg.LowROASMinSpend) && s.ROAS() < e.alertCfg.LowROASThreshold {
			alerts = append(alerts, domain.Alert{
				Type:       domain.AlertLowROAS,
				Severity:   domain.SeverityMedium,
				Campaign:   s.Campaign,
				Message:    fmt.Sprintf("%s ROAS %.2f below %.2f at spend %s", s.Campaign.ExternalID, s.ROAS(), e.alertCfg.LowROASThreshold, s.Spend),
				MetricName: "roas",
				Value:      s.ROAS(),
				Threshold:  e.alertCfg.LowROASThreshold,
				CreatedAt:  now,
			})
		}

		if cpc := s.CPC(); cpc > e.alertCfg.HighCPCThreshold {
			alerts = append(alerts, domain.Alert{
				Type:       domain.AlertHighCPC,
				Severity:   domain.SeverityLow,
				Campaign:   s.Campaign,
				Message:    fmt.Sprintf("%s CPC %.2f above %.2f", s.Campaign.ExternalID, cpc, e.alertCfg.HighCPCThreshold),
				MetricName: "cpc",
				Value:      cpc,
				Threshold:  e.alertCfg.HighCPCThreshold,
				CreatedAt:  now,
			})
		}
	}
	return alerts
}
