// Package guards implements the deterministic classification predicate of
// §4.4: six rules evaluated in order, first match wins, every rule exposed
// as an addressable unit so tests can target individual clauses.
package guards

import (
	"time"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

// Inputs bundles everything a rule needs. All fields are snapshots taken at
// the moment of evaluation — the evaluator never reaches back out to a live
// store, so the same Inputs always yields the same Decision (purity
// requirement, §4.4).
type Inputs struct {
	Proposal   domain.Proposal
	Campaign   domain.Campaign // confirmed state as of the start of GATING
	Now        time.Time
	Guardrails domain.Guardrails
	Counters   domain.DailyCounters
	// PlatformEnabledBudget is the sum of confirmed daily budgets across
	// ENABLED campaigns on the proposal's platform, excluding Campaign's
	// own current contribution (I3).
	PlatformEnabledBudget domain.Money
}

// proposedBudgetDelta returns the signed minor-unit delta this proposal
// would apply to Campaign.DailyBudget. Zero for non-budget kinds.
func proposedBudgetDelta(in Inputs) domain.Money {
	if !in.Proposal.Kind.IsBudgetChange() {
		return domain.Money{Currency: in.Campaign.DailyBudget.Currency}
	}
	return in.Proposal.ToState.DailyBudget.Sub(in.Campaign.DailyBudget)
}

// RuleLowConfidence is R1: confidence below threshold is always rejected.
// Uses strict "<" so confidence exactly at the threshold is accepted
// (spec.md §8 boundary behaviour).
func RuleLowConfidence(in Inputs) bool {
	effective := in.Guardrails.ForCampaign(in.Proposal.Campaign)
	return in.Proposal.Confidence < effective.ConfidenceThreshold
}

// RuleInsufficientRuntime is R2 / invariant I6: no PAUSE may auto-execute
// (or even reach approval — the rule rejects outright) on a campaign
// younger than the configured minimum runtime.
func RuleInsufficientRuntime(in Inputs) bool {
	if in.Proposal.Kind != domain.ProposalPause {
		return false
	}
	effective := in.Guardrails.ForCampaign(in.Proposal.Campaign)
	return in.Campaign.AgeAt(in.Now) < effective.MinCampaignRuntimeBeforePause
}

// InvariantCheckResult names which invariant (if any) a proposal would
// violate were it executed right now.
type InvariantCheckResult struct {
	Violated      bool
	Justification domain.JustificationCode
	Detail        string
}

// CheckInvariants is R3: would executing this proposal violate I3
// (platform ceiling), I4 (daily adjustment cap), or I5 (per-campaign daily
// budget-delta cap)? Exposed separately from RuleX so both the initial gate
// and the approval-queue re-check (§4.4) can call it.
func CheckInvariants(in Inputs) InvariantCheckResult {
	effective := in.Guardrails.ForCampaign(in.Proposal.Campaign)

	// I4: the counter check happens "at the instant an auto-execution is
	// committed" — here we check against what the counter would become if
	// this proposal executed, so the caller can reject before attempting it.
	if effective.MaxDailyAdjustments > 0 && in.Counters.AdjustmentsMade+1 > effective.MaxDailyAdjustments {
		return InvariantCheckResult{true, domain.JustDailyAdjustmentCap, "daily adjustment cap reached"}
	}

	delta := proposedBudgetDelta(in)
	if delta.Minor != 0 {
		// I5: cumulative absolute budget delta from auto-executions for
		// this campaign today, plus this proposal's delta, bounded by
		// current_budget * max_single_budget_increase_fraction.
		already := in.Counters.BudgetMovedByCampaign[in.Proposal.Campaign]
		projected := already.Abs().Add(delta.Abs())
		cap := in.Campaign.DailyBudget.Fraction(effective.MaxSingleBudgetIncreaseFraction)
		if projected.GreaterThan(cap) {
			return InvariantCheckResult{true, domain.JustSingleIncreaseCap, "per-campaign daily budget delta cap exceeded"}
		}

		// I3: platform ceiling, checked only when one is configured.
		if ceiling, ok := in.Guardrails.PlatformCeilings[in.Proposal.Campaign.Platform]; ok {
			newBudget := in.Campaign.DailyBudget.Add(delta)
			if in.Campaign.Status != domain.CampaignEnabled {
				newBudget = delta // campaign is not ENABLED, so PlatformEnabledBudget left it out; only the delta is added
			}
			projectedSum := in.PlatformEnabledBudget.Add(newBudget)
			if projectedSum.GreaterThan(ceiling) {
				return InvariantCheckResult{true, domain.JustPlatformCeiling, "platform daily budget ceiling exceeded"}
			}
		}
	}

	return InvariantCheckResult{}
}

// RuleMajorChange is R4: an absolute budget-change fraction beyond the
// configured major-change threshold requires human approval rather than
// outright rejection. The fraction is measured against the pre-tick budget
// (SPEC_FULL's Open Question decision) using strict ">" so a change exactly
// at the threshold auto-executes (mirrors R1's boundary convention, and
// matches the worked example in spec.md §8 scenario 2).
func RuleMajorChange(in Inputs) bool {
	if !in.Proposal.Kind.IsBudgetChange() || in.Campaign.DailyBudget.Minor == 0 {
		return false
	}
	effective := in.Guardrails.ForCampaign(in.Proposal.Campaign)
	delta := proposedBudgetDelta(in)
	fraction := delta.Abs().Float64() / in.Campaign.DailyBudget.Float64()
	return fraction > effective.EffectiveMajorChangeFraction()
}

// RuleHighImpactKind is R5: certain proposal kinds always require approval
// regardless of confidence or magnitude.
func RuleHighImpactKind(in Inputs) bool {
	return in.Proposal.Kind == domain.ProposalCreateCampaign || in.Proposal.Kind == domain.ProposalStrategyChange
}

// Evaluate runs R1–R6 in order and returns the first matching outcome. A
// FULL automation level behaves exactly per the table; ADVISORY forces
// every R6 (otherwise-auto-executable) outcome to APPROVAL_REQUIRED instead
// (SPEC_FULL §Supplemented Features #4) — SEMI's effect is already folded
// into RuleMajorChange via Guardrails.EffectiveMajorChangeFraction.
func Evaluate(in Inputs) domain.Decision {
	now := in.Now

	if RuleLowConfidence(in) {
		return domain.Decision{Outcome: domain.DecisionRejected, Justification: domain.JustLowConfidence, Detail: "confidence below threshold", EvaluatedAt: now}
	}
	if RuleInsufficientRuntime(in) {
		return domain.Decision{Outcome: domain.DecisionRejected, Justification: domain.JustInsufficientRuntime, Detail: "campaign younger than minimum pause runtime", EvaluatedAt: now}
	}
	if inv := CheckInvariants(in); inv.Violated {
		return domain.Decision{Outcome: domain.DecisionRejected, Justification: inv.Justification, Detail: inv.Detail, EvaluatedAt: now}
	}
	if RuleMajorChange(in) {
		return domain.Decision{Outcome: domain.DecisionApprovalRequired, Justification: domain.JustMajorChange, Detail: "budget change exceeds major-change fraction", EvaluatedAt: now}
	}
	if RuleHighImpactKind(in) {
		return domain.Decision{Outcome: domain.DecisionApprovalRequired, Justification: domain.JustHighImpactKind, Detail: "proposal kind always requires approval", EvaluatedAt: now}
	}

	if in.Guardrails.AutomationLevel == domain.AutomationAdvisory {
		return domain.Decision{Outcome: domain.DecisionApprovalRequired, Justification: domain.JustAdvisoryMode, Detail: "automation level is ADVISORY", EvaluatedAt: now}
	}
	return domain.Decision{Outcome: domain.DecisionAutoExecute, Justification: domain.JustWithinLimits, Detail: "within all limits", EvaluatedAt: now}
}

// RecheckAtExecution re-runs only the invariants that may have moved since
// a proposal was placed in the approval queue: I6 (runtime, via R2) and
// I3–I5 (via CheckInvariants). It deliberately does not re-run R1 (the
// human already approved despite confidence), R4, or R5 (classification
// doesn't change retroactively) — only the state-dependent invariants do
// (§4.4: "bypassing re-analysis but not re-guardrailing").
func RecheckAtExecution(in Inputs) domain.Decision {
	now := in.Now
	if RuleInsufficientRuntime(in) {
		return domain.Decision{Outcome: domain.DecisionRejected, Justification: domain.JustInsufficientRuntime, Detail: "re-check: runtime requirement no longer satisfied", EvaluatedAt: now}
	}
	if inv := CheckInvariants(in); inv.Violated {
		return domain.Decision{Outcome: domain.DecisionRejected, Justification: inv.Justification, Detail: "re-check: " + inv.Detail, EvaluatedAt: now}
	}
	return domain.Decision{Outcome: domain.DecisionAutoExecute, Justification: domain.JustWithinLimits, Detail: "re-check passed", EvaluatedAt: now}
}
