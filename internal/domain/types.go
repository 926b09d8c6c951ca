// Package domain holds the core entities of the optimization loop: the
// compound-keyed campaign identity, the immutable metric and ledger rows,
// and the proposal/decision pair the guardrail gate mediates between.
package domain

import "time"

// PlatformID is an opaque tag drawn from the closed set of supported ad
// platforms. It never varies at runtime — adapters are registered against
// one of these constants, never an arbitrary string.
type PlatformID string

const (
	PlatformGoogleAds   PlatformID = "google_ads"
	PlatformMetaAds     PlatformID = "meta_ads"
	PlatformTikTokAds   PlatformID = "tiktok_ads"
	PlatformLinkedInAds PlatformID = "linkedin_ads"
)

// CampaignStatus mirrors the confirmed platform-side lifecycle state.
type CampaignStatus string

const (
	CampaignEnabled CampaignStatus = "ENABLED"
	CampaignPaused  CampaignStatus = "PAUSED"
	CampaignRemoved CampaignStatus = "REMOVED"
)

// BudgetType distinguishes a campaign whose DailyBudget is a native daily
// cap from one whose DailyBudget is derived from a lifetime cap divided by
// remaining days.
type BudgetType string

const (
	BudgetDaily    BudgetType = "daily"
	BudgetLifetime BudgetType = "lifetime"
)

// CampaignRef is the compound identity used everywhere a campaign is
// referenced — metric samples and ledger rows never hold a back-pointer,
// only this key, so they can be discovered by range scan (§9 design note:
// no cyclic references between Campaign and MetricSample).
type CampaignRef struct {
	Platform   PlatformID
	ExternalID string
}

// Campaign is the read-mostly row the Adapter Registry owns: inserted on
// first sight from an adapter, never deleted, only ever transitioned to
// CampaignRemoved.
type Campaign struct {
	Ref            CampaignRef
	Name           string
	Status         CampaignStatus
	DailyBudget    Money
	LifetimeBudget Money
	BudgetType     BudgetType
	Objective      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AgeAt reports how long the campaign has existed as of t. Used by guard R2
// (minimum runtime before a PAUSE may auto-execute).
func (c Campaign) AgeAt(t time.Time) time.Duration {
	return t.Sub(c.CreatedAt)
}

// MetricSample is an immutable, time-indexed row written by the Decision
// Engine at each tick. Derived ratios are computed on read, never stored,
// so there is nothing to keep in sync when the underlying raw counters
// change mid-aggregation.
type MetricSample struct {
	Campaign    CampaignRef
	SampleTime  time.Time
	Impressions int64
	Clicks      int64
	Spend       Money
	Conversions int64
	Revenue     Money
	MockData    bool
}

// CPC is cost per click; 0 when Clicks is 0 (never infinity, never an error).
func (m MetricSample) CPC() float64 {
	if m.Clicks == 0 {
		return 0
	}
	return m.Spend.Float64() / float64(m.Clicks)
}

// CTR is click-through rate; 0 when Impressions is 0.
func (m MetricSample) CTR() float64 {
	if m.Impressions == 0 {
		return 0
	}
	return float64(m.Clicks) / float64(m.Impressions)
}

// ROAS is revenue divided by spend; 0 when Spend is 0.
func (m MetricSample) ROAS() float64 {
	if m.Spend.Minor == 0 {
		return 0
	}
	return m.Revenue.Float64() / m.Spend.Float64()
}

// CPA is cost per acquisition; 0 when Conversions is 0.
func (m MetricSample) CPA() float64 {
	if m.Conversions == 0 {
		return 0
	}
	return m.Spend.Float64() / float64(m.Conversions)
}

// ProposalKind is the closed set of actions the analyst may propose. Analyst
// output that doesn't map onto one of these is rejected at the boundary,
// never best-effort parsed (§9 design note).
type ProposalKind string

const (
	ProposalPause           ProposalKind = "PAUSE"
	ProposalResume          ProposalKind = "RESUME"
	ProposalIncreaseBudget  ProposalKind = "INCREASE_BUDGET"
	ProposalDecreaseBudget  ProposalKind = "DECREASE_BUDGET"
	ProposalReallocate      ProposalKind = "REALLOCATE"
	ProposalCreateCampaign  ProposalKind = "CREATE_CAMPAIGN"
	ProposalStrategyChange  ProposalKind = "STRATEGY_CHANGE"
)

// IsBudgetChange reports whether the kind carries a budget delta subject to
// the major-change fraction (R4) and the per-campaign daily cap (I5).
func (k ProposalKind) IsBudgetChange() bool {
	return k == ProposalIncreaseBudget || k == ProposalDecreaseBudget || k == ProposalReallocate
}

// IsDecreaseOrPause reports whether the kind must execute before increases
// within a tick (§4.3 step 5, §5 ordering guarantees).
func (k ProposalKind) IsDecreaseOrPause() bool {
	return k == ProposalPause || k == ProposalDecreaseBudget
}

// ExpectedImpact is the analyst's forecast for a proposal, carried through
// unmodified for audit and explain().
type ExpectedImpact struct {
	Metric        string
	ChangePercent float64
}

// Proposal is produced by the LLM Analyst and consumed exactly once by the
// Guardrail Gate (invariant I1).
type Proposal struct {
	ID             string
	Campaign       CampaignRef
	Kind           ProposalKind
	FromState      CampaignSnapshot
	ToState        CampaignSnapshot
	Confidence     float64
	Reasoning      string
	ExpectedImpact ExpectedImpact
	ProducedAt     time.Time
}

// CampaignSnapshot captures the fields of a Campaign relevant to a proposed
// transition — not a live reference, a point-in-time copy.
type CampaignSnapshot struct {
	Status      CampaignStatus
	DailyBudget Money
}

// DecisionOutcome is the gate's verdict.
type DecisionOutcome string

const (
	DecisionAutoExecute      DecisionOutcome = "AUTO_EXECUTE"
	DecisionApprovalRequired DecisionOutcome = "APPROVAL_REQUIRED"
	DecisionRejected         DecisionOutcome = "REJECTED"
)

// JustificationCode identifies which rule (or invariant) produced a
// Decision, so tests can target individual clauses and audit rows are
// self-explanatory.
type JustificationCode string

const (
	JustLowConfidence        JustificationCode = "LOW_CONFIDENCE"
	JustInsufficientRuntime   JustificationCode = "INSUFFICIENT_RUNTIME"
	JustPlatformCeiling       JustificationCode = "I3_PLATFORM_CEILING"
	JustDailyAdjustmentCap    JustificationCode = "I4_DAILY_ADJUSTMENT_CAP"
	JustSingleIncreaseCap     JustificationCode = "I5_SINGLE_INCREASE_CAP"
	JustMajorChange           JustificationCode = "MAJOR_CHANGE"
	JustHighImpactKind        JustificationCode = "HIGH_IMPACT_KIND"
	JustWithinLimits          JustificationCode = "WITHIN_LIMITS"
	JustAdvisoryMode          JustificationCode = "ADVISORY_MODE"
	JustSuperseded            JustificationCode = "SUPERSEDED"
	JustExpired               JustificationCode = "EXPIRED"
	JustRecheckFailed         JustificationCode = "RECHECK_FAILED"
)

// Decision is the Guardrail Gate's immutable verdict on a Proposal.
type Decision struct {
	Outcome       DecisionOutcome
	Justification JustificationCode
	Detail        string
	EvaluatedAt   time.Time
}

// ActionOutcome is the terminal state of an ActionRecord.
type ActionOutcome string

const (
	OutcomeSuccess    ActionOutcome = "SUCCESS"
	OutcomeFailed     ActionOutcome = "FAILED"
	OutcomeCancelled  ActionOutcome = "CANCELLED"
	OutcomeExpired    ActionOutcome = "EXPIRED"
	OutcomePending    ActionOutcome = "PENDING"
	OutcomeSuperseded ActionOutcome = "SUPERSEDED"
	OutcomeRecorded   ActionOutcome = "RECORDED" // tick-level events that never execute anything
)

// EntryKind widens ProposalKind with the tick-level event kinds §4.5 also
// ledgers (TICK_FAILED, TICK_SKIPPED, PLATFORM_EXCLUDED, CONFIG_CHANGE):
// every ActionRecord.Kind is one of these, not only a proposal's own kind.
type EntryKind string

const (
	EntryPause           EntryKind = EntryKind(ProposalPause)
	EntryResume          EntryKind = EntryKind(ProposalResume)
	EntryIncreaseBudget  EntryKind = EntryKind(ProposalIncreaseBudget)
	EntryDecreaseBudget  EntryKind = EntryKind(ProposalDecreaseBudget)
	EntryReallocate      EntryKind = EntryKind(ProposalReallocate)
	EntryCreateCampaign  EntryKind = EntryKind(ProposalCreateCampaign)
	EntryStrategyChange  EntryKind = EntryKind(ProposalStrategyChange)
	EntryTickFailed      EntryKind = "TICK_FAILED"
	EntryTickSkipped     EntryKind = "TICK_SKIPPED"
	EntryPlatformExcluded EntryKind = "PLATFORM_EXCLUDED"
	EntryConfigChange    EntryKind = "CONFIG_CHANGE"
	EntryAlert           EntryKind = "ALERT"
)

// ActionRecord is the append-only ledger row: the Action Ledger's one and
// only write shape, recorded for every proposal regardless of decision
// (invariant I1) and for tick-level events (TICK_FAILED, TICK_SKIPPED,
// PLATFORM_EXCLUDED, CONFIG_CHANGE) using the zero CampaignRef.
type ActionRecord struct {
	ID          string
	ProposalRef string
	Campaign    CampaignRef
	Decision    Decision
	ExecutedAt  *time.Time
	BeforeState CampaignSnapshot
	AfterState  *CampaignSnapshot
	Outcome     ActionOutcome
	Error       string
	Message     string
	Kind        EntryKind
	RecordedAt  time.Time
}

// OverallHealth is the analyst's coarse signal for the whole fleet.
type OverallHealth string

const (
	HealthExcellent OverallHealth = "EXCELLENT"
	HealthGood      OverallHealth = "GOOD"
	HealthFair      OverallHealth = "FAIR"
	HealthPoor      OverallHealth = "POOR"
	HealthCritical  OverallHealth = "CRITICAL"
)

// AutomationLevel gates how aggressively R6 auto-executes, per spec.md §6.
type AutomationLevel string

const (
	AutomationAdvisory AutomationLevel = "ADVISORY"
	AutomationSemi     AutomationLevel = "SEMI"
	AutomationFull     AutomationLevel = "FULL"
)

// Alert is the supplemented observability side channel (SPEC_FULL §
// Supplemented Features #1): it never gates or blocks a Proposal, it is
// written alongside the tick for dashboards and on-call paging.
type AlertType string

const (
	AlertZeroConversions AlertType = "ZERO_CONVERSIONS"
	AlertLowROAS         AlertType = "LOW_ROAS"
	AlertHighCPC          AlertType = "HIGH_CPC"
)

type AlertSeverity string

const (
	SeverityLow    AlertSeverity = "LOW"
	SeverityMedium AlertSeverity = "MEDIUM"
	SeverityHigh   AlertSeverity = "HIGH"
)

type Alert struct {
	Type       AlertType
	Severity   AlertSeverity
	Campaign   CampaignRef
	Message    string
	MetricName string
	Value      float64
	Threshold  float64
	CreatedAt  time.Time
}
