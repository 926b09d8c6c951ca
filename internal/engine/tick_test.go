package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zurychhh/ai-budget-optimizer/internal/adapters"
	"github.com/zurychhh/ai-budget-optimizer/internal/analyst"
	analystfake "github.com/zurychhh/ai-budget-optimizer/internal/analyst/fake"
	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
	"github.com/zurychhh/ai-budget-optimizer/internal/normaliser"
)

var testRef = domain.CampaignRef{Platform: domain.PlatformGoogleAds, ExternalID: "g1"}
var testRef2 = domain.CampaignRef{Platform: domain.PlatformGoogleAds, ExternalID: "g2"}

func baseGuardrails() domain.Guardrails {
	return domain.Guardrails{
		ConfidenceThreshold:             0.7,
		MaxDailyAdjustments:             50,
		MaxSingleBudgetIncreaseFraction: 0.5,
		MinCampaignRuntimeBeforePause:   72 * time.Hour,
		MajorChangeFraction:             0.25,
		ApprovalTTL:                     4 * time.Hour,
		AutomationLevel:                 domain.AutomationFull,
	}
}

func usd(major float64) domain.Money { return domain.NewMoney(major, "USD") }

func decreaseProposal(id string, ref domain.CampaignRef, fromMinor, toMinor int64, confidence float64) domain.Proposal {
	return domain.Proposal{
		ID:         id,
		Campaign:   ref,
		Kind:       domain.ProposalDecreaseBudget,
		FromState:  domain.CampaignSnapshot{Status: domain.CampaignEnabled, DailyBudget: domain.Money{Minor: fromMinor, Currency: "USD"}},
		ToState:    domain.CampaignSnapshot{Status: domain.CampaignEnabled, DailyBudget: domain.Money{Minor: toMinor, Currency: "USD"}},
		Confidence: confidence,
		Reasoning:  "test: underperforming ROAS",
	}
}

func increaseProposal(id string, ref domain.CampaignRef, fromMinor, toMinor int64, confidence float64) domain.Proposal {
	return domain.Proposal{
		ID:         id,
		Campaign:   ref,
		Kind:       domain.ProposalIncreaseBudget,
		FromState:  domain.CampaignSnapshot{Status: domain.CampaignEnabled, DailyBudget: domain.Money{Minor: fromMinor, Currency: "USD"}},
		ToState:    domain.CampaignSnapshot{Status: domain.CampaignEnabled, DailyBudget: domain.Money{Minor: toMinor, Currency: "USD"}},
		Confidence: confidence,
		Reasoning:  "test: strong ROAS",
	}
}

type fixture struct {
	registry  *adapters.Registry
	adapter   *fakeAdapter
	ledger    *fakeLedger
	approvals *fakeApprovalQueue
	analyst   *analystfake.Client
	engine    *Engine
}

func newFixture(t *testing.T, g domain.Guardrails, responses ...analyst.Response) *fixture {
	t.Helper()
	registry := adapters.NewRegistry()
	adapter := newFakeAdapter(domain.PlatformGoogleAds)
	registry.Register(adapter)

	led := newFakeLedger()
	approvals := newFakeApprovalQueue()
	fake := analystfake.New(responses...)
	norm := normaliser.New("USD", normaliser.FXTable{})

	eng := NewEngine(registry, norm, fake, led, approvals, func() domain.Guardrails { return g }, NewLocalLease(), zerolog.Nop(), Config{})
	return &fixture{registry: registry, adapter: adapter, ledger: led, approvals: approvals, analyst: fake, engine: eng}
}

func sampleCampaign(ref domain.CampaignRef, budget float64, createdAt time.Time) domain.Campaign {
	return domain.Campaign{Ref: ref, Status: domain.CampaignEnabled, DailyBudget: usd(budget), CreatedAt: createdAt}
}

func sampleMetric(ref domain.CampaignRef, at time.Time, spend, revenue float64, clicks, conversions int64) domain.MetricSample {
	return domain.MetricSample{Campaign: ref, SampleTime: at, Spend: usd(spend), Revenue: usd(revenue), Clicks: clicks, Conversions: conversions}
}

func TestTick_AutoExecutesWithinLimits(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	proposal := decreaseProposal("p-1", testRef, 10000, 9000, 0.9)
	f := newFixture(t, baseGuardrails(), analyst.Response{Proposals: []domain.Proposal{proposal}, OverallHealth: domain.HealthGood})
	f.adapter.campaigns = []domain.Campaign{sampleCampaign(testRef, 100, now.Add(-60*24*time.Hour))}
	f.adapter.samples = []domain.MetricSample{sampleMetric(testRef, now, 40, 80, 100, 5)}
	f.engine.clock = func() time.Time { return now }

	result, ran, err := f.engine.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
	assert.Equal(t, TickSuccess, result.Outcome)
	require.Len(t, result.Records, 1)
	assert.Equal(t, domain.OutcomeSuccess, result.Records[0].Outcome)
	assert.Equal(t, domain.DecisionAutoExecute, result.Records[0].Decision.Outcome)
	assert.Equal(t, []string{"g1"}, f.adapter.budgetUpdates)
}

func TestTick_QueuesApprovalRequiredProposal(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	proposal := decreaseProposal("p-2", testRef, 10000, 7000, 0.9) // -30%, exceeds 0.25 major-change fraction
	f := newFixture(t, baseGuardrails(), analyst.Response{Proposals: []domain.Proposal{proposal}, OverallHealth: domain.HealthGood})
	f.adapter.campaigns = []domain.Campaign{sampleCampaign(testRef, 100, now.Add(-60*24*time.Hour))}
	f.adapter.samples = []domain.MetricSample{sampleMetric(testRef, now, 40, 80, 100, 5)}
	f.engine.clock = func() time.Time { return now }

	result, ran, err := f.engine.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
	require.Len(t, result.Records, 1)
	assert.Equal(t, domain.OutcomePending, result.Records[0].Outcome)
	assert.Equal(t, domain.JustMajorChange, result.Records[0].Decision.Justification)
	assert.Empty(t, f.adapter.budgetUpdates)

	entries, err := f.approvals.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, proposal.ID, entries[0].Proposal.ID)
}

func TestTick_SecondProposalOnSameCampaignIsSuperseded(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	first := decreaseProposal("p-first", testRef, 10000, 9000, 0.9)
	second := decreaseProposal("p-second", testRef, 10000, 8500, 0.9)
	f := newFixture(t, baseGuardrails(), analyst.Response{Proposals: []domain.Proposal{first, second}, OverallHealth: domain.HealthGood})
	f.adapter.campaigns = []domain.Campaign{sampleCampaign(testRef, 100, now.Add(-60*24*time.Hour))}
	f.adapter.samples = []domain.MetricSample{sampleMetric(testRef, now, 40, 80, 100, 5)}
	f.engine.clock = func() time.Time { return now }

	result, ran, err := f.engine.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
	require.Len(t, result.Records, 2)

	outcomes := map[string]domain.ActionOutcome{}
	for _, rec := range result.Records {
		outcomes[rec.ProposalRef] = rec.Outcome
	}
	assert.Equal(t, domain.OutcomeSuccess, outcomes[first.ID])
	assert.Equal(t, domain.OutcomeSuperseded, outcomes[second.ID])
}

func TestTick_SkipsWhenLeaseHeld(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, baseGuardrails())
	f.engine.clock = func() time.Time { return now }

	got, err := f.engine.lease.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, got)

	result, ran, err := f.engine.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Nil(t, result)
}

func TestTick_RejectsLowConfidenceProposal(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	proposal := decreaseProposal("p-3", testRef, 10000, 9000, 0.4)
	f := newFixture(t, baseGuardrails(), analyst.Response{Proposals: []domain.Proposal{proposal}, OverallHealth: domain.HealthGood})
	f.adapter.campaigns = []domain.Campaign{sampleCampaign(testRef, 100, now.Add(-60*24*time.Hour))}
	f.adapter.samples = []domain.MetricSample{sampleMetric(testRef, now, 40, 80, 100, 5)}
	f.engine.clock = func() time.Time { return now }

	result, ran, err := f.engine.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
	require.Len(t, result.Records, 1)
	assert.Equal(t, domain.OutcomeCancelled, result.Records[0].Outcome)
	assert.Equal(t, domain.JustLowConfidence, result.Records[0].Decision.Justification)
}

func TestTick_EnforcesDailyAdjustmentCapWithinTick(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	g := baseGuardrails()
	g.MaxDailyAdjustments = 1
	first := decreaseProposal("p-cap-1", testRef, 10000, 9000, 0.9)
	second := decreaseProposal("p-cap-2", testRef2, 10000, 9000, 0.9)
	f := newFixture(t, g, analyst.Response{Proposals: []domain.Proposal{first, second}, OverallHealth: domain.HealthGood})
	f.adapter.campaigns = []domain.Campaign{
		sampleCampaign(testRef, 100, now.Add(-60*24*time.Hour)),
		sampleCampaign(testRef2, 100, now.Add(-60*24*time.Hour)),
	}
	f.adapter.samples = []domain.MetricSample{
		sampleMetric(testRef, now, 40, 80, 100, 5),
		sampleMetric(testRef2, now, 40, 80, 100, 5),
	}
	f.engine.clock = func() time.Time { return now }

	result, ran, err := f.engine.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
	require.Len(t, result.Records, 2)

	outcomes := map[string]domain.ActionOutcome{}
	justifications := map[string]domain.JustificationCode{}
	for _, rec := range result.Records {
		outcomes[rec.ProposalRef] = rec.Outcome
		justifications[rec.ProposalRef] = rec.Decision.Justification
	}
	assert.Equal(t, domain.OutcomeSuccess, outcomes[first.ID])
	assert.Equal(t, domain.OutcomeCancelled, outcomes[second.ID])
	assert.Equal(t, domain.JustDailyAdjustmentCap, justifications[second.ID])
}

func TestTick_ExecutesDistinctCampaignsConcurrentlyWithoutDroppingCounters(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	first := decreaseProposal("p-conc-1", testRef, 10000, 9000, 0.9)
	second := decreaseProposal("p-conc-2", testRef2, 10000, 9000, 0.9)
	f := newFixture(t, baseGuardrails(), analyst.Response{Proposals: []domain.Proposal{first, second}, OverallHealth: domain.HealthGood})
	f.adapter.campaigns = []domain.Campaign{
		sampleCampaign(testRef, 100, now.Add(-60*24*time.Hour)),
		sampleCampaign(testRef2, 100, now.Add(-60*24*time.Hour)),
	}
	f.adapter.samples = []domain.MetricSample{
		sampleMetric(testRef, now, 40, 80, 100, 5),
		sampleMetric(testRef2, now, 40, 80, 100, 5),
	}
	f.engine.clock = func() time.Time { return now }

	result, ran, err := f.engine.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
	require.Len(t, result.Records, 2)
	for _, rec := range result.Records {
		assert.Equal(t, domain.OutcomeSuccess, rec.Outcome)
	}

	f.engine.counterMu.Lock()
	adjustments := f.engine.counters.AdjustmentsMade
	f.engine.counterMu.Unlock()
	assert.Equal(t, 2, adjustments)
}

func TestTick_RunsDecreaseCohortBeforeIncreaseCohort(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	decrease := decreaseProposal("p-order-decrease", testRef, 10000, 9000, 0.9)
	increase := increaseProposal("p-order-increase", testRef2, 10000, 11000, 0.9)
	// Analyst order puts the increase first; gate's sort fixes presentation
	// order but execute must still run the decrease cohort to completion
	// before launching the increase cohort, regardless of analyst order.
	f := newFixture(t, baseGuardrails(), analyst.Response{Proposals: []domain.Proposal{increase, decrease}, OverallHealth: domain.HealthGood})
	f.adapter.campaigns = []domain.Campaign{
		sampleCampaign(testRef, 100, now.Add(-60*24*time.Hour)),
		sampleCampaign(testRef2, 100, now.Add(-60*24*time.Hour)),
	}
	f.adapter.samples = []domain.MetricSample{
		sampleMetric(testRef, now, 40, 80, 100, 5),
		sampleMetric(testRef2, now, 40, 80, 100, 5),
	}
	f.engine.clock = func() time.Time { return now }

	result, ran, err := f.engine.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
	require.Len(t, result.Records, 2)
	for _, rec := range result.Records {
		assert.Equal(t, domain.OutcomeSuccess, rec.Outcome)
	}

	require.Equal(t, []string{"g1", "g2"}, f.adapter.budgetUpdates)
}

func TestApprove_ResolvesPendingLedgerRowToTerminalOutcome(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	proposal := decreaseProposal("p-approve-1", testRef, 10000, 7000, 0.9) // -30%, exceeds 0.25 major-change fraction
	f := newFixture(t, baseGuardrails(), analyst.Response{Proposals: []domain.Proposal{proposal}, OverallHealth: domain.HealthGood})
	f.adapter.campaigns = []domain.Campaign{sampleCampaign(testRef, 100, now.Add(-60*24*time.Hour))}
	f.adapter.samples = []domain.MetricSample{sampleMetric(testRef, now, 40, 80, 100, 5)}
	f.engine.clock = func() time.Time { return now }

	result, ran, err := f.engine.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
	require.Len(t, result.Records, 1)
	require.Equal(t, domain.OutcomePending, result.Records[0].Outcome)

	pendingRow, found, err := f.ledger.ByProposal(context.Background(), proposal.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.OutcomePending, pendingRow.Outcome)

	rec, err := f.engine.Approve(context.Background(), proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, rec.Outcome)

	resolvedRow, found, err := f.ledger.ByProposal(context.Background(), proposal.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.OutcomeSuccess, resolvedRow.Outcome)
	require.NotNil(t, resolvedRow.AfterState)
	assert.Equal(t, usd(70).Minor, resolvedRow.AfterState.DailyBudget.Minor)
}

func TestTick_RaisesAlertOnZeroConversionsWithSpend(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, baseGuardrails(), analyst.Response{OverallHealth: domain.HealthPoor})
	f.adapter.campaigns = []domain.Campaign{sampleCampaign(testRef, 100, now.Add(-60*24*time.Hour))}
	f.adapter.samples = []domain.MetricSample{sampleMetric(testRef, now, 75, 0, 100, 0)}
	f.engine.clock = func() time.Time { return now }

	result, ran, err := f.engine.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, domain.AlertZeroConversions, result.Alerts[0].Type)
	assert.Equal(t, domain.SeverityHigh, result.Alerts[0].Severity)
	assert.Len(t, f.ledger.alerts, 1)
}
