package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

func TestOverrideStore_ApplyOverridesMatchingScopesOnly(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewOverrideStore(func() time.Time { return now })
	store.Set(ScopeConfidenceThreshold, 0.95, "", time.Hour)

	base := domain.Guardrails{ConfidenceThreshold: 0.85, MaxDailyAdjustments: 50}
	effective := store.Apply(base)

	assert.Equal(t, 0.95, effective.ConfidenceThreshold)
	assert.Equal(t, 50, effective.MaxDailyAdjustments, "untouched scope must keep the base value")
}

func TestOverrideStore_ExpiredOverrideIsPruned(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := now
	store := NewOverrideStore(func() time.Time { return clock })
	store.Set(ScopeMajorChangeFraction, 0.10, "", time.Minute)

	clock = now.Add(2 * time.Minute)
	active := store.Active()
	assert.Empty(t, active, "override past its TTL must not appear as active")

	effective := store.Apply(domain.Guardrails{MajorChangeFraction: 0.20})
	assert.Equal(t, 0.20, effective.MajorChangeFraction)
}

func TestOverrideStore_ZeroTTLNeverExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := now
	store := NewOverrideStore(func() time.Time { return clock })
	store.Set(ScopeAutomationLevel, 0, "SEMI", 0)

	clock = now.Add(365 * 24 * time.Hour)
	active := store.Active()
	require.Len(t, active, 1)

	effective := store.Apply(domain.Guardrails{AutomationLevel: domain.AutomationFull})
	assert.Equal(t, domain.AutomationSemi, effective.AutomationLevel)
}

func TestOverrideStore_ClearRemovesOverrideAndReportsPresence(t *testing.T) {
	store := NewOverrideStore(nil)
	store.Set(ScopeMaxDailyAdjustments, 10, "", time.Hour)

	assert.True(t, store.Clear(ScopeMaxDailyAdjustments))
	assert.False(t, store.Clear(ScopeMaxDailyAdjustments), "clearing an absent override reports false")
	assert.Empty(t, store.Active())
}

func TestParseScope_RejectsUnknownScope(t *testing.T) {
	_, err := ParseScope("not_a_real_scope")
	assert.Error(t, err)

	scope, err := ParseScope("confidence_threshold")
	require.NoError(t, err)
	assert.Equal(t, ScopeConfidenceThreshold, scope)
}
