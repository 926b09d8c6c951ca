package engine

import (
	"context"
	"sync"
	"time"

	"github.com/zurychhh/ai-budget-optimizer/internal/adapters"
	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
	"github.com/zurychhh/ai-budget-optimizer/internal/guards"
	"github.com/zurychhh/ai-budget-optimizer/internal/ledger"
)

// fakeAdapter is a hand-written in-memory Adapter, grounded on the
// analyst/fake.Client pattern: a scripted returns list plus a call log the
// test can assert against, no mocking framework involved.
type fakeAdapter struct {
	mu        sync.Mutex
	platform  domain.PlatformID
	campaigns []domain.Campaign
	samples   []domain.MetricSample
	listErr   error
	perfErr   error

	budgetUpdates []string // externalIDs, in call order
	statusUpdates []string // externalID:status pairs
}

func newFakeAdapter(platform domain.PlatformID) *fakeAdapter {
	return &fakeAdapter{platform: platform}
}

func (a *fakeAdapter) Platform() domain.PlatformID { return a.platform }

func (a *fakeAdapter) ListCampaigns(ctx context.Context, since time.Time) ([]domain.Campaign, error) {
	if a.listErr != nil {
		return nil, a.listErr
	}
	return a.campaigns, nil
}

func (a *fakeAdapter) GetPerformance(ctx context.Context, rng adapters.TimeRange, ids []string) ([]domain.MetricSample, error) {
	if a.perfErr != nil {
		return nil, a.perfErr
	}
	return a.samples, nil
}

func (a *fakeAdapter) UpdateBudget(ctx context.Context, externalID string, newDailyBudget domain.Money, idempotencyKey string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.budgetUpdates = append(a.budgetUpdates, externalID)
	return nil
}

func (a *fakeAdapter) SetStatus(ctx context.Context, externalID string, status domain.CampaignStatus, idempotencyKey string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.statusUpdates = append(a.statusUpdates, externalID+":"+string(status))
	return nil
}

func (a *fakeAdapter) Health(ctx context.Context) adapters.HealthStatus {
	return adapters.HealthStatus{Platform: a.platform, OK: true}
}

var _ adapters.Adapter = (*fakeAdapter)(nil)

// fakeLedger is an in-memory Ledger, enforcing the same I1 idempotence
// contract SQLStore does.
type fakeLedger struct {
	mu      sync.Mutex
	records []domain.ActionRecord
	alerts  []domain.Alert
}

func newFakeLedger() *fakeLedger { return &fakeLedger{} }

func (l *fakeLedger) Append(ctx context.Context, rec domain.ActionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec.ProposalRef != "" {
		for i, existing := range l.records {
			if existing.ProposalRef == rec.ProposalRef {
				if existing.Outcome != domain.OutcomePending {
					return nil // already terminal: replay is a no-op.
				}
				l.records[i] = rec // queued -> resolved: overwrite the PENDING row.
				return nil
			}
		}
	}
	l.records = append(l.records, rec)
	return nil
}

func (l *fakeLedger) AppendAlert(ctx context.Context, alert domain.Alert) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.alerts = append(l.alerts, alert)
	return nil
}

func (l *fakeLedger) RangeByCampaign(ctx context.Context, ref domain.CampaignRef, since, until time.Time) ([]domain.ActionRecord, error) {
	return nil, nil
}

func (l *fakeLedger) RangeByOutcome(ctx context.Context, outcome domain.ActionOutcome, since, until time.Time) ([]domain.ActionRecord, error) {
	return nil, nil
}

func (l *fakeLedger) RecentActions(ctx context.Context, since time.Time) ([]domain.ActionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.ActionRecord, len(l.records))
	copy(out, l.records)
	return out, nil
}

func (l *fakeLedger) ByProposal(ctx context.Context, proposalID string) (*domain.ActionRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range l.records {
		if rec.ProposalRef == proposalID {
			return &rec, true, nil
		}
	}
	return nil, false, nil
}

func (l *fakeLedger) CountersSince(ctx context.Context, localMidnight time.Time) (domain.DailyCounters, error) {
	return domain.NewDailyCounters(localMidnight), nil
}

var _ ledger.Ledger = (*fakeLedger)(nil)

// fakeApprovalQueue is an in-memory ApprovalQueue.
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
	entry, ok := q.entries[proposalID]
	return entry, ok, nil
}

func (q *fakeApprovalQueue) List(ctx context.Context) ([]guards.ApprovalEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]guards.ApprovalEntry, 0, len(q.entries))
	for _, entry := range q.entries {
		out = append(out, entry)
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
