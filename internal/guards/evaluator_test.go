package guards

import (
	"testing"
	"time"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

func baseGuardrails() domain.Guardrails {
	return domain.Guardrails{
		ConfidenceThreshold:             0.85,
		MaxDailyAdjustments:             50,
		MaxSingleBudgetIncreaseFraction: 0.5,
		MinCampaignRuntimeBeforePause:   72 * time.Hour,
		MajorChangeFraction:             0.20,
		ApprovalTTL:                     4 * time.Hour,
		AutomationLevel:                 domain.AutomationFull,
	}
}

func money(major float64) domain.Money { return domain.NewMoney(major, "USD") }

func baseCampaign(ref domain.CampaignRef, budget float64, createdAt time.Time) domain.Campaign {
	return domain.Campaign{
		Ref:         ref,
		Status:      domain.CampaignEnabled,
		DailyBudget: money(budget),
		CreatedAt:   createdAt,
	}
}

// TestScenarioHappyIncrease mirrors spec.md §8 scenario 1: G1 on google_ads,
// $100/day, confidence 0.90, analyst proposes +30% -> APPROVAL_REQUIRED.
func TestScenarioHappyIncrease(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	ref := domain.CampaignRef{Platform: domain.PlatformGoogleAds, ExternalID: "G1"}
	campaign := baseCampaign(ref, 100, now.Add(-30*24*time.Hour))

	proposal := domain.Proposal{
		Campaign:   ref,
		Kind:       domain.ProposalIncreaseBudget,
		Confidence: 0.90,
		ToState:    domain.CampaignSnapshot{DailyBudget: money(130)},
	}

	in := Inputs{Proposal: proposal, Campaign: campaign, Now: now, Guardrails: baseGuardrails(), Counters: domain.NewDailyCounters(now)}
	d := Evaluate(in)

	if d.Outcome != domain.DecisionApprovalRequired {
		t.Fatalf("expected APPROVAL_REQUIRED, got %s (%s)", d.Outcome, d.Justification)
	}
	if d.Justification != domain.JustMajorChange {
		t.Fatalf("expected MAJOR_CHANGE, got %s", d.Justification)
	}
}

// TestScenarioAutoExecutedDecrease mirrors §8 scenario 2: M1 on meta_ads,
// $80/day, confidence 0.93, -20% -> AUTO_EXECUTE (R4 uses ">", 0.20 is not > 0.20).
func TestScenarioAutoExecutedDecrease(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	ref := domain.CampaignRef{Platform: domain.PlatformMetaAds, ExternalID: "M1"}
	campaign := baseCampaign(ref, 80, now.Add(-30*24*time.Hour))

	proposal := domain.Proposal{
		Campaign:   ref,
		Kind:       domain.ProposalDecreaseBudget,
		Confidence: 0.93,
		ToState:    domain.CampaignSnapshot{DailyBudget: money(64)},
	}

	in := Inputs{Proposal: proposal, Campaign: campaign, Now: now, Guardrails: baseGuardrails(), Counters: domain.NewDailyCounters(now)}
	d := Evaluate(in)

	if d.Outcome != domain.DecisionAutoExecute {
		t.Fatalf("expected AUTO_EXECUTE, got %s (%s): %s", d.Outcome, d.Justification, d.Detail)
	}
}

// TestScenarioPauseBlockedByRuntime mirrors §8 scenario 3.
func TestScenarioPauseBlockedByRuntime(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	ref := domain.CampaignRef{Platform: domain.PlatformTikTokAds, ExternalID: "T1"}
	campaign := baseCampaign(ref, 50, now.Add(-40*time.Hour))

	proposal := domain.Proposal{
		Campaign:   ref,
		Kind:       domain.ProposalPause,
		Confidence: 0.95,
	}

	g := baseGuardrails()
	g.MinCampaignRuntimeBeforePause = 72 * time.Hour

	in := Inputs{Proposal: proposal, Campaign: campaign, Now: now, Guardrails: g, Counters: domain.NewDailyCounters(now)}
	d := Evaluate(in)

	if d.Outcome != domain.DecisionRejected || d.Justification != domain.JustInsufficientRuntime {
		t.Fatalf("expected REJECTED/INSUFFICIENT_RUNTIME, got %s/%s", d.Outcome, d.Justification)
	}
}

// TestScenarioLowConfidence mirrors §8 scenario 4.
func TestScenarioLowConfidence(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	ref := domain.CampaignRef{Platform: domain.PlatformGoogleAds, ExternalID: "L1"}
	campaign := baseCampaign(ref, 5000, now.Add(-90*24*time.Hour))

	proposal := domain.Proposal{
		Campaign:   ref,
		Kind:       domain.ProposalReallocate,
		Confidence: 0.78,
		ToState:    domain.CampaignSnapshot{DailyBudget: money(3000)},
	}

	in := Inputs{Proposal: proposal, Campaign: campaign, Now: now, Guardrails: baseGuardrails(), Counters: domain.NewDailyCounters(now)}
	d := Evaluate(in)

	if d.Outcome != domain.DecisionRejected || d.Justification != domain.JustLowConfidence {
		t.Fatalf("expected REJECTED/LOW_CONFIDENCE, got %s/%s", d.Outcome, d.Justification)
	}
}

// TestConfidenceBoundaryIsAccepted covers spec.md §8: "confidence =
// confidence_threshold is accepted (R1 uses <, not <=)".
func TestConfidenceBoundaryIsAccepted(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	ref := domain.CampaignRef{Platform: domain.PlatformGoogleAds, ExternalID: "G2"}
	campaign := baseCampaign(ref, 1000, now.Add(-90*24*time.Hour))

	proposal := domain.Proposal{
		Campaign:   ref,
		Kind:       domain.ProposalResume,
		Confidence: 0.85, // exactly the threshold
	}

	in := Inputs{Proposal: proposal, Campaign: campaign, Now: now, Guardrails: baseGuardrails(), Counters: domain.NewDailyCounters(now)}

	if RuleLowConfidence(in) {
		t.Fatal("confidence exactly at threshold must not trigger R1")
	}
}

func TestRuleHighImpactKind(t *testing.T) {
	cases := []struct {
		kind domain.ProposalKind
		want bool
	}{
		{domain.ProposalCreateCampaign, true},
		{domain.ProposalStrategyChange, true},
		{domain.ProposalPause, false},
		{domain.ProposalIncreaseBudget, false},
	}
	for _, c := range cases {
		t.Run(string(c.kind), func(t *testing.T) {
			in := Inputs{Proposal: domain.Proposal{Kind: c.kind}}
			if got := RuleHighImpactKind(in); got != c.want {
				t.Errorf("RuleHighImpactKind(%s) = %v, want %v", c.kind, got, c.want)
			}
		})
	}
}

func TestSemiAutomationPinsMajorChangeThresholdToZero(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	ref := domain.CampaignRef{Platform: domain.PlatformMetaAds, ExternalID: "M2"}
	campaign := baseCampaign(ref, 100, now.Add(-30*24*time.Hour))

	proposal := domain.Proposal{
		Campaign:   ref,
		Kind:       domain.ProposalIncreaseBudget,
		Confidence: 0.95,
		ToState:    domain.CampaignSnapshot{DailyBudget: money(105)}, // tiny 5% change
	}

	g := baseGuardrails()
	g.AutomationLevel = domain.AutomationSemi

	in := Inputs{Proposal: proposal, Campaign: campaign, Now: now, Guardrails: g, Counters: domain.NewDailyCounters(now)}
	d := Evaluate(in)

	if d.Outcome != domain.DecisionApprovalRequired || d.Justification != domain.JustMajorChange {
		t.Fatalf("SEMI mode should force any nonzero budget change to APPROVAL_REQUIRED, got %s/%s", d.Outcome, d.Justification)
	}
}

func TestAdvisoryModeForcesApprovalOnOtherwiseAutoExecute(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	ref := domain.CampaignRef{Platform: domain.PlatformLinkedInAds, ExternalID: "LI1"}
	campaign := baseCampaign(ref, 200, now.Add(-30*24*time.Hour))

	proposal := domain.Proposal{
		Campaign:   ref,
		Kind:       domain.ProposalResume,
		Confidence: 0.99,
	}

	g := baseGuardrails()
	g.AutomationLevel = domain.AutomationAdvisory

	in := Inputs{Proposal: proposal, Campaign: campaign, Now: now, Guardrails: g, Counters: domain.NewDailyCounters(now)}
	d := Evaluate(in)

	if d.Outcome != domain.DecisionApprovalRequired || d.Justification != domain.JustAdvisoryMode {
		t.Fatalf("ADVISORY mode should force APPROVAL_REQUIRED, got %s/%s", d.Outcome, d.Justification)
	}
}

func TestInvariantI4DailyAdjustmentCap(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	ref := domain.CampaignRef{Platform: domain.PlatformGoogleAds, ExternalID: "G3"}
	campaign := baseCampaign(ref, 100, now.Add(-30*24*time.Hour))

	proposal := domain.Proposal{Campaign: ref, Kind: domain.ProposalResume, Confidence: 0.99}

	g := baseGuardrails()
	g.MaxDailyAdjustments = 3
	counters := domain.NewDailyCounters(now)
	counters.AdjustmentsMade = 3

	in := Inputs{Proposal: proposal, Campaign: campaign, Now: now, Guardrails: g, Counters: counters}
	d := Evaluate(in)

	if d.Outcome != domain.DecisionRejected || d.Justification != domain.JustDailyAdjustmentCap {
		t.Fatalf("expected REJECTED/I4_DAILY_ADJUSTMENT_CAP, got %s/%s", d.Outcome, d.Justification)
	}
}

func TestInvariantI5PerCampaignBudgetCap(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	ref := domain.CampaignRef{Platform: domain.PlatformGoogleAds, ExternalID: "G4"}
	campaign := baseCampaign(ref, 100, now.Add(-30*24*time.Hour))

	proposal := domain.Proposal{
		Campaign:   ref,
		Kind:       domain.ProposalIncreaseBudget,
		Confidence: 0.99,
		ToState:    domain.CampaignSnapshot{DailyBudget: money(140)}, // +40
	}

	g := baseGuardrails()
	g.MaxSingleBudgetIncreaseFraction = 0.5 // cap is $50 of movement today

	counters := domain.NewDailyCounters(now)
	counters.BudgetMovedByCampaign[ref] = money(20) // already moved $20 today

	in := Inputs{Proposal: proposal, Campaign: campaign, Now: now, Guardrails: g, Counters: counters}
	d := Evaluate(in)

	// 20 (already) + 40 (this) = 60 > 50 cap -> rejected
	if d.Outcome != domain.DecisionRejected || d.Justification != domain.JustSingleIncreaseCap {
		t.Fatalf("expected REJECTED/I5_SINGLE_INCREASE_CAP, got %s/%s", d.Outcome, d.Justification)
	}
}

func TestInvariantI3PlatformCeiling(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	ref := domain.CampaignRef{Platform: domain.PlatformGoogleAds, ExternalID: "G5"}
	campaign := baseCampaign(ref, 100, now.Add(-30*24*time.Hour))

	proposal := domain.Proposal{
		Campaign:   ref,
		Kind:       domain.ProposalIncreaseBudget,
		Confidence: 0.99,
		ToState:    domain.CampaignSnapshot{DailyBudget: money(110)},
	}

	g := baseGuardrails()
	g.PlatformCeilings = map[domain.PlatformID]domain.Money{domain.PlatformGoogleAds: money(1000)}

	in := Inputs{
		Proposal:              proposal,
		Campaign:               campaign,
		Now:                    now,
		Guardrails:             g,
		Counters:               domain.NewDailyCounters(now),
		PlatformEnabledBudget: money(950), // other enabled campaigns already sum to 950
	}
	d := Evaluate(in)

	if d.Outcome != domain.DecisionRejected || d.Justification != domain.JustPlatformCeiling {
		t.Fatalf("expected REJECTED/I3_PLATFORM_CEILING, got %s/%s", d.Outcome, d.Justification)
	}
}

func TestRecheckAtExecutionCatchesExpiredRuntime(t *testing.T) {
	producedAt := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	campaignCreated := producedAt.Add(-40 * time.Hour) // 40h old when proposed

	ref := domain.CampaignRef{Platform: domain.PlatformTikTokAds, ExternalID: "T2"}
	campaign := baseCampaign(ref, 50, campaignCreated)

	proposal := domain.Proposal{Campaign: ref, Kind: domain.ProposalPause, Confidence: 0.95}
	g := baseGuardrails()
	g.MinCampaignRuntimeBeforePause = 72 * time.Hour

	// Re-check happens later, but the campaign is still younger than the
	// runtime floor either way -- recheck must still reject.
	recheckNow := producedAt.Add(2 * time.Hour)
	in := Inputs{Proposal: proposal, Campaign: campaign, Now: recheckNow, Guardrails: g, Counters: domain.NewDailyCounters(recheckNow)}

	d := RecheckAtExecution(in)
	if d.Outcome != domain.DecisionRejected || d.Justification != domain.JustInsufficientRuntime {
		t.Fatalf("expected re-check to reject on runtime, got %s/%s", d.Outcome, d.Justification)
	}
}
