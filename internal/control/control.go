// Package control implements the five inbound control-surface verbs (§6):
// list_pending_approvals, approve, reject, get_recent_actions,
// override_guardrail, plus the supplemented explain(action_id) verb.
// There is no REST façade (Non-goal) — Controller is a plain Go API that
// cmd/optimizercore's CLI calls directly, grounded on the teacher's
// internal/application services being thin wrappers over the scheduler and
// the persistence layer rather than owning any business logic themselves.
package control

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/zurychhh/ai-budget-optimizer/internal/config"
	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
	"github.com/zurychhh/ai-budget-optimizer/internal/engine"
	"github.com/zurychhh/ai-budget-optimizer/internal/guards"
	"github.com/zurychhh/ai-budget-optimizer/internal/ledger"
)

// Controller wraps the Decision Engine and the Action Ledger with the
// operator-facing verbs. It holds the same *config.OverrideStore the
// engine's GuardrailsSource closure reads, so an override_guardrail call
// is visible to the very next tick without restarting anything.
type Controller struct {
	engine    *engine.Engine
	ledger    ledger.Ledger
	overrides *config.OverrideStore
	clock     func() time.Time
	log       zerolog.Logger
}

// New builds a Controller over an already-running Engine.
func New(eng *engine.Engine, led ledger.Ledger, overrides *config.OverrideStore, log zerolog.Logger) *Controller {
	return &Controller{
		engine:    eng,
		ledger:    led,
		overrides: overrides,
		clock:     time.Now,
		log:       log.With().Str("component", "control").Logger(),
	}
}

// ListPendingApprovals returns every APPROVAL_REQUIRED proposal still
// awaiting a human decision, oldest-deadline first.
func (c *Controller) ListPendingApprovals(ctx context.Context) ([]guards.ApprovalEntry, error) {
	return c.engine.ListPendingApprovals(ctx)
}

// Approve resolves a pending proposal in the human's favor, re-checking the
// state-dependent invariants before executing (§4.4).
func (c *Controller) Approve(ctx context.Context, proposalID string) (domain.ActionRecord, error) {
	return c.engine.Approve(ctx, proposalID)
}

// Reject resolves a pending proposal without executing it.
func (c *Controller) Reject(ctx context.Context, proposalID, reason string) (domain.ActionRecord, error) {
	return c.engine.Reject(ctx, proposalID, reason)
}

// GetRecentActions returns every ActionRecord recorded at or after since.
func (c *Controller) GetRecentActions(ctx context.Context, since time.Time) ([]domain.ActionRecord, error) {
	return c.ledger.RecentActions(ctx, since)
}

// Explain formats the existing reasoning behind one already-decided action
// (SUPPLEMENTED FEATURES #2): no new LLM call, just the ActionRecord's own
// Decision and before/after snapshot rendered as prose.
func (c *Controller) Explain(ctx context.Context, actionID string) (string, error) {
	rec, found, err := c.ledger.ByProposal(ctx, actionID)
	if err != nil {
		return "", fmt.Errorf("control: explain %s: %w", actionID, err)
	}
	if !found {
		return "", fmt.Errorf("control: no action recorded for proposal %s", actionID)
	}

	explanation := fmt.Sprintf(
		"proposal %s on %s/%s: %s (%s)\n  justification: %s",
		rec.ProposalRef, rec.Campaign.Platform, rec.Campaign.ExternalID, rec.Decision.Outcome, rec.Outcome, rec.Decision.Justification,
	)
	if rec.Decision.Detail != "" {
		explanation += fmt.Sprintf("\n  detail: %s", rec.Decision.Detail)
	}
	if rec.AfterState != nil {
		explanation += fmt.Sprintf(
			"\n  budget: %s -> %s",
			rec.BeforeState.DailyBudget.String(), rec.AfterState.DailyBudget.String(),
		)
	}
	if rec.ExecutedAt != nil {
		explanation += fmt.Sprintf("\n  executed at: %s", rec.ExecutedAt.Format(time.RFC3339))
	}
	return explanation, nil
}

// OverrideGuardrail pins scope to value for ttl (zero ttl means until an
// explicit clear or process restart), and records the change as a
// CONFIG_CHANGE ActionRecord (§3) since the override store itself never
// persists. SPEC_FULL ties this to the SEMI automation level's override
// path as well — the same scope names double as the automation_level knob.
func (c *Controller) OverrideGuardrail(ctx context.Context, scope string, value float64, strValue string, ttl time.Duration) error {
	parsed, err := config.ParseScope(scope)
	if err != nil {
		return err
	}
	now := c.clock()
	override := c.overrides.Set(parsed, value, strValue, ttl)

	rec := domain.ActionRecord{
		ID:         fmt.Sprintf("config-change-%s-%d", parsed, now.UnixNano()),
		Kind:       domain.EntryConfigChange,
		Outcome:    domain.OutcomeRecorded,
		Message:    fmt.Sprintf("guardrail override %s set: %s", parsed, describeOverride(override)),
		RecordedAt: now,
	}
	if err := c.ledger.Append(ctx, rec); err != nil {
		c.log.Error().Err(err).Str("scope", scope).Msg("failed to record guardrail override")
		return fmt.Errorf("control: record override: %w", err)
	}
	return nil
}

// ClearGuardrailOverride removes an active override ahead of its TTL.
func (c *Controller) ClearGuardrailOverride(ctx context.Context, scope string) error {
	parsed, err := config.ParseScope(scope)
	if err != nil {
		return err
	}
	if !c.overrides.Clear(parsed) {
		return fmt.Errorf("control: no active override for scope %s", scope)
	}

	now := c.clock()
	rec := domain.ActionRecord{
		ID:         fmt.Sprintf("config-change-%s-clear-%d", parsed, now.UnixNano()),
		Kind:       domain.EntryConfigChange,
		Outcome:    domain.OutcomeRecorded,
		Message:    fmt.Sprintf("guardrail override %s cleared", parsed),
		RecordedAt: now,
	}
	if err := c.ledger.Append(ctx, rec); err != nil {
		c.log.Error().Err(err).Str("scope", scope).Msg("failed to record guardrail override clear")
		return fmt.Errorf("control: record override clear: %w", err)
	}
	return nil
}

// ActiveOverrides returns every override currently in effect, for the
// config show CLI command.
func (c *Controller) ActiveOverrides() []config.Override {
	return c.overrides.Active()
}

func describeOverride(o config.Override) string {
	if o.ExpiresAt.IsZero() {
		return fmt.Sprintf("value=%v (no expiry)", overrideDisplayValue(o))
	}
	return fmt.Sprintf("value=%v, expires %s", overrideDisplayValue(o), o.ExpiresAt.Format(time.RFC3339))
}

func overrideDisplayValue(o config.Override) string {
	if o.Scope == config.ScopeAutomationLevel {
		return o.StrValue
	}
	return fmt.Sprintf("%g", o.Value)
}
