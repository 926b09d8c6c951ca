package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
	"github.com/zurychhh/ai-budget-optimizer/internal/guards"
)

// ErrApprovalNotFound is returned by Approve/Reject when proposalID is not
// (or is no longer) in the approval queue — already resolved, expired, or
// never enqueued.
var ErrApprovalNotFound = fmt.Errorf("engine: approval entry not found")

// Approve re-checks the state-dependent invariants (§4.4's "bypassing
// re-analysis but not re-guardrailing") and, if they still hold, executes
// the proposal exactly as EXECUTING would have. It shares the tick mutex
// with Tick (SPEC_FULL's Open Question decision: an approve() call that
// arrives mid-tick blocks until the engine returns to IDLE) so a human
// decision and a concurrent tick can never race over the same campaign.
func (e *Engine) Approve(ctx context.Context, proposalID string) (domain.ActionRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok, err := e.approvals.Get(ctx, proposalID)
	if err != nil {
		return domain.ActionRecord{}, fmt.Errorf("engine: approve %s: %w", proposalID, err)
	}
	if !ok {
		return domain.ActionRecord{}, ErrApprovalNotFound
	}

	now := e.clock()
	camp, found := e.campaigns.get(entry.Proposal.Campaign)
	if !found {
		rec := e.recordApprovalOutcome(ctx, entry, now, domain.Decision{
			Outcome:       domain.DecisionRejected,
			Justification: domain.JustRecheckFailed,
			Detail:        "campaign no longer present in registry cache",
			EvaluatedAt:   now,
		}, domain.CampaignSnapshot{}, nil)
		return rec, nil
	}

	recheck := guards.RecheckAtExecution(guards.Inputs{
		Proposal:              entry.Proposal,
		Campaign:               camp,
		Now:                    now,
		Guardrails:             e.guardrails(),
		Counters:               e.counters,
		PlatformEnabledBudget: e.campaigns.EnabledBudgetSum(entry.Proposal.Campaign.Platform, entry.Proposal.Campaign),
	})

	before := domain.CampaignSnapshot{Status: camp.Status, DailyBudget: camp.DailyBudget}
	if recheck.Outcome != domain.DecisionAutoExecute {
		return e.recordApprovalOutcome(ctx, entry, now, recheck, before, nil), nil
	}

	after, err := e.applyToAdapter(ctx, gatedProposal{proposal: entry.Proposal, decision: recheck, campaign: camp})
	if err != nil {
		failDecision := domain.Decision{Outcome: domain.DecisionRejected, Justification: domain.JustRecheckFailed, Detail: err.Error(), EvaluatedAt: now}
		return e.recordApprovalOutcome(ctx, entry, now, failDecision, before, nil), nil
	}
	e.applyCounters(gatedProposal{proposal: entry.Proposal, campaign: camp}, after)
	return e.recordApprovalOutcome(ctx, entry, now, recheck, before, &after), nil
}

// ListPendingApprovals returns every entry currently queued, oldest-deadline
// first — backs the control surface's list_pending_approvals verb (§6).
func (e *Engine) ListPendingApprovals(ctx context.Context) ([]guards.ApprovalEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.approvals.List(ctx)
}

// Reject removes a pending proposal from the approval queue without
// executing it, recording the human's decision on the ledger.
func (e *Engine) Reject(ctx context.Context, proposalID, reason string) (domain.ActionRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok, err := e.approvals.Get(ctx, proposalID)
	if err != nil {
		return domain.ActionRecord{}, fmt.Errorf("engine: reject %s: %w", proposalID, err)
	}
	if !ok {
		return domain.ActionRecord{}, ErrApprovalNotFound
	}

	now := e.clock()
	decision := domain.Decision{Outcome: domain.DecisionRejected, Justification: entry.Decision.Justification, Detail: reason, EvaluatedAt: now}
	before := domain.CampaignSnapshot{Status: entry.Proposal.FromState.Status, DailyBudget: entry.Proposal.FromState.DailyBudget}
	return e.recordApprovalOutcome(ctx, entry, now, decision, before, nil), nil
}

// ExpireApprovals sweeps the queue for entries past their TTL and records
// them as EXPIRED (§4.4: "expiry auto-rejects with outcome EXPIRED").
// Redis's own key TTL already makes an expired entry invisible to
// List/Get; this only needs to run when the ledger should reflect the
// expiry explicitly, e.g. from a periodic housekeeping call.
func (e *Engine) ExpireApprovals(ctx context.Context) ([]domain.ActionRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries, err := e.approvals.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: expire approvals: %w", err)
	}

	now := e.clock()
	var records []domain.ActionRecord
	for _, entry := range entries {
		if !entry.Expired(now) {
			continue
		}
		decision := domain.Decision{Outcome: domain.DecisionRejected, Justification: domain.JustExpired, Detail: "approval TTL elapsed before a human decision", EvaluatedAt: now}
		before := domain.CampaignSnapshot{Status: entry.Proposal.FromState.Status, DailyBudget: entry.Proposal.FromState.DailyBudget}
		rec := e.recordApprovalOutcome(ctx, entry, now, decision, before, nil)
		rec.Outcome = domain.OutcomeExpired
		records = append(records, rec)
	}
	return records, nil
}

func (e *Engine) recordApprovalOutcome(ctx context.Context, entry guards.ApprovalEntry, now time.Time, decision domain.Decision, before domain.CampaignSnapshot, after *domain.CampaignSnapshot) domain.ActionRecord {
	rec := domain.ActionRecord{
		ID:          fmt.Sprintf("rec-%s", entry.Proposal.ID),
		ProposalRef: entry.Proposal.ID,
		Campaign:    entry.Proposal.Campaign,
		Kind:        domain.EntryKind(entry.Proposal.Kind),
		Decision:    decision,
		BeforeState: before,
		AfterState:  after,
		RecordedAt:  now,
	}
	if decision.Outcome == domain.DecisionAutoExecute {
		rec.Outcome = domain.OutcomeSuccess
		t := now
		rec.ExecutedAt = &t
	} else {
		rec.Outcome = domain.OutcomeCancelled
		if decision.Justification == domain.JustExpired {
			rec.Outcome = domain.OutcomeExpired
		}
	}

	if err := e.ledger.Append(ctx, rec); err != nil {
		e.log.Error().Err(err).Str("proposal", entry.Proposal.ID).Msg("failed to append approval outcome")
	}
	if err := e.approvals.Remove(ctx, entry.Proposal.ID); err != nil {
		e.log.Error().Err(err).Str("proposal", entry.Proposal.ID).Msg("failed to remove resolved approval")
	}
	return rec
}
