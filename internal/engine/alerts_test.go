package engine

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

func TestCheckAlerts_LowROASAboveSpendThreshold(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	eng := &Engine{clock: func() time.Time { return now }, alertCfg: DefaultAlertThresholds(), log: zerolog.Nop()}

	alerts := eng.checkAlerts([]domain.MetricSample{sampleMetric(testRef, now, 150, 100, 200, 10)})
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertLowROAS, alerts[0].Type)
	assert.Equal(t, domain.SeverityMedium, alerts[0].Severity)
}

func TestCheckAlerts_HighCPCAboveThreshold(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	eng := &Engine{clock: func() time.Time { return now }, alertCfg: DefaultAlertThresholds(), log: zerolog.Nop()}

	alerts := eng.checkAlerts([]domain.MetricSample{sampleMetric(testRef, now, 60, 120, 10, 3)})
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertHighCPC, alerts[0].Type)
	assert.Equal(t, domain.SeverityLow, alerts[0].Severity)
}

func TestCheckAlerts_NoAlertWhenHealthy(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	eng := &Engine{clock: func() time.Time { return now }, alertCfg: DefaultAlertThresholds(), log: zerolog.Nop()}

	alerts := eng.checkAlerts([]domain.MetricSample{sampleMetric(testRef, now, 40, 80, 100, 5)})
	assert.Empty(t, alerts)
}
