package control

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zurychhh/ai-budget-optimizer/internal/adapters"
	"github.com/zurychhh/ai-budget-optimizer/internal/config"
	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
	"github.com/zurychhh/ai-budget-optimizer/internal/engine"
	"github.com/zurychhh/ai-budget-optimizer/internal/guards"
	"github.com/zurychhh/ai-budget-optimizer/internal/normaliser"
)

// fakeLedger is a minimal in-memory ledger.Ledger, matching the hand-written
// fake convention used throughout internal/engine's own test suite.
type fakeLedger struct {
	mu      sync.Mutex
	records []domain.ActionRecord
}

func newFakeLedger() *fakeLedger { return &fakeLedger{} }

func (f *fakeLedger) Append(ctx context.Context, rec domain.ActionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeLedger) AppendAlert(ctx context.Context, alert domain.Alert) error { return nil }

func (f *fakeLedger) RangeByCampaign(ctx context.Context, ref domain.CampaignRef, since, until time.Time) ([]domain.ActionRecord, error) {
	return nil, nil
}

func (f *fakeLedger) RangeByOutcome(ctx context.Context, outcome domain.ActionOutcome, since, until time.Time) ([]domain.ActionRecord, error) {
	return nil, nil
}

func (f *fakeLedger) RecentActions(ctx context.Context, since time.Time) ([]domain.ActionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ActionRecord
	for _, r := range f.records {
		if !r.RecordedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeLedger) ByProposal(ctx context.Context, proposalID string) (*domain.ActionRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ProposalRef == proposalID {
			rec := r
			return &rec, true, nil
		}
	}
	return nil, false, nil
}

func (f *fakeLedger) CountersSince(ctx context.Context, localMidnight time.Time) (domain.DailyCounters, error) {
	return domain.NewDailyCounters(localMidnight), nil
}

// fakeApprovalQueue mirrors internal/engine's own fake, kept local since
// that one is unexported to its package.
type fakeApprovalQueue struct {
	mu      sync.Mutex
	entries map[string]guards.ApprovalEntry
}

func newFakeApprovalQueue() *fakeApprovalQueue {
	return &fakeApprovalQueue{entries: make(map[string]guards.ApprovalEntry)}
}

func (q *fakeApprovalQueue) Enqueue(ctx context.Context, entry guards.ApprovalEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[entry.Proposal.ID] = entry
	return nil
}

func (q *fakeApprovalQueue) Get(ctx context.Context, proposalID string) (guards.ApprovalEntry, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[proposalID]
	return e, ok, nil
}

func (q *fakeApprovalQueue) List(ctx context.Context) ([]guards.ApprovalEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]guards.ApprovalEntry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, e)
	}
	return out, nil
}

func (q *fakeApprovalQueue) Remove(ctx context.Context, proposalID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, proposalID)
	return nil
}

var _ guards.ApprovalQueue = (*fakeApprovalQueue)(nil)

func newTestController(t *testing.T) (*Controller, *fakeLedger, *fakeApprovalQueue) {
	t.Helper()
	led := newFakeLedger()
	approvals := newFakeApprovalQueue()
	registry := adapters.NewRegistry()
	norm := normaliser.New("USD", normaliser.FXTable{})
	overrides := config.NewOverrideStore(nil)
	eng := engine.NewEngine(registry, norm, nil, led, approvals, func() domain.Guardrails { return domain.Guardrails{} }, nil, zerolog.Nop(), engine.Config{})
	return New(eng, led, overrides, zerolog.Nop()), led, approvals
}

func TestController_ListPendingApprovals_DelegatesToEngine(t *testing.T) {
	c, _, approvals := newTestController(t)
	now := time.Now()
	entry := guards.ApprovalEntry{Proposal: domain.Proposal{ID: "p1"}, QueuedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, approvals.Enqueue(context.Background(), entry))

	list, err := c.ListPendingApprovals(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "p1", list[0].Proposal.ID)
}

func TestController_GetRecentActions_FiltersBySince(t *testing.T) {
	c, led, _ := newTestController(t)
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, led.Append(context.Background(), domain.ActionRecord{ID: "a", RecordedAt: old}))
	require.NoError(t, led.Append(context.Background(), domain.ActionRecord{ID: "b", RecordedAt: recent}))

	actions, err := c.GetRecentActions(context.Background(), time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "b", actions[0].ID)
}

func TestController_Explain_RendersDecisionAndBudgetChange(t *testing.T) {
	c, led, _ := newTestController(t)
	after := domain.CampaignSnapshot{Status: domain.CampaignEnabled, DailyBudget: domain.NewMoney(70, "USD")}
	require.NoError(t, led.Append(context.Background(), domain.ActionRecord{
		ID:          "rec-p1",
		ProposalRef: "p1",
		Campaign:    domain.CampaignRef{Platform: domain.PlatformGoogleAds, ExternalID: "g1"},
		Decision:    domain.Decision{Outcome: domain.DecisionAutoExecute, Justification: domain.JustWithinLimits},
		BeforeState: domain.CampaignSnapshot{Status: domain.CampaignEnabled, DailyBudget: domain.NewMoney(100, "USD")},
		AfterState:  &after,
		Outcome:     domain.OutcomeSuccess,
		RecordedAt:  time.Now(),
	}))

	explanation, err := c.Explain(context.Background(), "p1")
	require.NoError(t, err)
	assert.Contains(t, explanation, "p1")
	assert.Contains(t, explanation, "AUTO_EXECUTE")
	assert.Contains(t, explanation, "budget:")
}

func TestController_Explain_NotFound(t *testing.T) {
	c, _, _ := newTestController(t)
	_, err := c.Explain(context.Background(), "missing")
	assert.Error(t, err)
}

func TestController_OverrideGuardrail_RecordsConfigChangeAndActivates(t *testing.T) {
	c, led, _ := newTestController(t)

	err := c.OverrideGuardrail(context.Background(), "confidence_threshold", 0.95, "", time.Hour)
	require.NoError(t, err)

	active := c.ActiveOverrides()
	require.Len(t, active, 1)
	assert.Equal(t, config.ScopeConfidenceThreshold, active[0].Scope)

	recent, err := led.RecentActions(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, domain.EntryConfigChange, recent[0].Kind)
}

func TestController_OverrideGuardrail_RejectsUnknownScope(t *testing.T) {
	c, _, _ := newTestController(t)
	err := c.OverrideGuardrail(context.Background(), "not_a_real_scope", 1, "", time.Hour)
	assert.Error(t, err)
}

func TestController_ClearGuardrailOverride_ErrorsWhenNothingActive(t *testing.T) {
	c, _, _ := newTestController(t)
	err := c.ClearGuardrailOverride(context.Background(), "confidence_threshold")
	assert.Error(t, err)
}

func TestController_ClearGuardrailOverride_RemovesActiveOverride(t *testing.T) {
	c, _, _ := newTestController(t)
	require.NoError(t, c.OverrideGuardrail(context.Background(), "automation_level", 0, "SEMI", 0))
	require.Len(t, c.ActiveOverrides(), 1)

	require.NoError(t, c.ClearGuardrailOverride(context.Background(), "automation_level"))
	assert.Empty(t, c.ActiveOverrides())
}
