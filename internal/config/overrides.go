package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

// OverrideScope names the single guardrail field a runtime override pins,
// matching the control surface's override_guardrail(scope, value, ttl) verb.
type OverrideScope string

const (
	ScopeConfidenceThreshold     OverrideScope = "confidence_threshold"
	ScopeMaxDailyAdjustments     OverrideScope = "max_daily_adjustments"
	ScopeMaxBudgetReallocFrac    OverrideScope = "max_budget_reallocation_fraction_per_day"
	ScopeMaxSingleIncreaseFrac   OverrideScope = "max_single_budget_increase_fraction"
	ScopeMajorChangeFraction     OverrideScope = "major_change_fraction"
	ScopeAutomationLevel         OverrideScope = "automation_level"
)

// Override is one active runtime pin: scope, its value, and when it expires.
type Override struct {
	Scope     OverrideScope
	Value     float64
	StrValue  string // used only when Scope == ScopeAutomationLevel
	SetAt     time.Time
	ExpiresAt time.Time
}

func (o Override) expired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt)
}

// OverrideStore holds the TTL-bound runtime overrides sitting above the
// static Guardrails loaded from file/env. It never persists itself; the
// control surface is responsible for writing the CONFIG_CHANGE ledger row
// alongside every Set/Clear call so the history survives a restart even
// though the override itself does not.
type OverrideStore struct {
	mu        sync.Mutex
	clock     func() time.Time
	overrides map[OverrideScope]Override
}

// NewOverrideStore builds an empty store. clock defaults to time.Now.
func NewOverrideStore(clock func() time.Time) *OverrideStore {
	if clock == nil {
		clock = time.Now
	}
	return &OverrideStore{clock: clock, overrides: make(map[OverrideScope]Override)}
}

// Set pins scope to value until ttl elapses. ttl of zero means no
// expiry (cleared only by an explicit Clear or process restart).
func (s *OverrideStore) Set(scope OverrideScope, value float64, strValue string, ttl time.Duration) Override {
	now := s.clock()
	o := Override{Scope: scope, Value: value, StrValue: strValue, SetAt: now}
	if ttl > 0 {
		o.ExpiresAt = now.Add(ttl)
	}
	s.mu.Lock()
	s.overrides[scope] = o
	s.mu.Unlock()
	return o
}

// Clear removes any active override for scope, returning whether one was present.
func (s *OverrideStore) Clear(scope OverrideScope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, found := s.overrides[scope]
	delete(s.overrides, scope)
	return found
}

// Active returns the currently non-expired overrides, pruning expired ones
// from the store as a side effect.
func (s *OverrideStore) Active() []Override {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	active := make([]Override, 0, len(s.overrides))
	for scope, o := range s.overrides {
		if o.expired(now) {
			delete(s.overrides, scope)
			continue
		}
		active = append(active, o)
	}
	return active
}

// Apply layers every non-expired override on top of base, returning the
// effective Guardrails the Guardrail Gate should evaluate against for this
// tick. Overrides never touch PlatformCeilings or PerCampaignOverrides —
// those are structural config, not single-value knobs.
func (s *OverrideStore) Apply(base domain.Guardrails) domain.Guardrails {
	for _, o := range s.Active() {
		switch o.Scope {
		case ScopeConfidenceThreshold:
			base.ConfidenceThreshold = o.Value
		case ScopeMaxDailyAdjustments:
			base.MaxDailyAdjustments = int(o.Value)
		case ScopeMaxBudgetReallocFrac:
			base.MaxBudgetReallocationFractionDay = o.Value
		case ScopeMaxSingleIncreaseFrac:
			base.MaxSingleBudgetIncreaseFraction = o.Value
		case ScopeMajorChangeFraction:
			base.MajorChangeFraction = o.Value
		case ScopeAutomationLevel:
			base.AutomationLevel = domain.AutomationLevel(o.StrValue)
		}
	}
	return base
}

// ParseScope validates a control-surface scope string against the known set.
func ParseScope(raw string) (OverrideScope, error) {
	switch OverrideScope(raw) {
	case ScopeConfidenceThreshold, ScopeMaxDailyAdjustments, ScopeMaxBudgetReallocFrac,
		ScopeMaxSingleIncreaseFrac, ScopeMajorChangeFraction, ScopeAutomationLevel:
		return OverrideScope(raw), nil
	default:
		return "", fmt.Errorf("config: unknown override scope %q", raw)
	}
}
