// Package telemetry exposes the Decision Engine's operational metrics
// through github.com/prometheus/client_golang, replacing the teacher's
// hand-rolled internal/telemetry/providers.MetricsCollector (which tracked
// per-provider counters in a plain map and serialized its own Prometheus
// text format by hand) with real client_golang collectors registered
// against a shared registry.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

// Metrics bundles every collector the Decision Engine and its adapters
// report to. Construct once per process with NewMetrics and pass it down
// to the engine and transport layers that need it.
type Metrics struct {
	TickDuration      *prometheus.HistogramVec
	TicksTotal        *prometheus.CounterVec
	AdjustmentsTotal  *prometheus.CounterVec
	GuardDecisions    *prometheus.CounterVec
	AdapterCallLatency *prometheus.HistogramVec
	AdapterErrors     *prometheus.CounterVec
	BreakerState      *prometheus.GaugeVec
	PendingApprovals  prometheus.Gauge
	StageDuration     *prometheus.HistogramVec
}

// NewMetrics registers every collector against reg and returns the bundle.
// Pass prometheus.NewRegistry() for an isolated registry (e.g. in tests) or
// prometheus.DefaultRegisterer to expose via the standard /metrics handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "optimizercore",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one Decision Engine tick, by terminal outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "optimizercore",
			Name:      "ticks_total",
			Help:      "Total completed ticks, by terminal outcome.",
		}, []string{"outcome"}),
		AdjustmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "optimizercore",
			Name:      "adjustments_total",
			Help:      "Total executed budget/status adjustments, by platform and proposal kind.",
		}, []string{"platform", "kind"}),
		GuardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "optimizercore",
			Name:      "guard_decisions_total",
			Help:      "Guardrail Gate decisions, by outcome.",
		}, []string{"outcome"}),
		AdapterCallLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "optimizercore",
			Name:      "adapter_call_duration_seconds",
			Help:      "Latency of adapter calls, by platform and operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"platform", "operation"}),
		AdapterErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "optimizercore",
			Name:      "adapter_errors_total",
			Help:      "Adapter call errors, by platform and error kind.",
		}, []string{"platform", "kind"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "optimizercore",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per platform: 0=closed, 1=half-open, 2=open.",
		}, []string{"platform"}),
		PendingApprovals: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "optimizercore",
			Name:      "pending_approvals",
			Help:      "Number of proposals currently awaiting human approval.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "optimizercore",
			Name:      "tick_stage_duration_seconds",
			Help:      "Duration of one tick-state-machine stage (collect/analyse/gate/execute/audit).",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}

	reg.MustRegister(
		m.TickDuration, m.TicksTotal, m.AdjustmentsTotal, m.GuardDecisions,
		m.AdapterCallLatency, m.AdapterErrors, m.BreakerState, m.PendingApprovals,
		m.StageDuration,
	)
	return m
}

// ObserveTick records one completed tick's duration and outcome.
func (m *Metrics) ObserveTick(outcome string, d time.Duration) {
	m.TickDuration.WithLabelValues(outcome).Observe(d.Seconds())
	m.TicksTotal.WithLabelValues(outcome).Inc()
}

// ObserveAdjustment records one executed proposal.
func (m *Metrics) ObserveAdjustment(platform domain.PlatformID, kind domain.ProposalKind) {
	m.AdjustmentsTotal.WithLabelValues(string(platform), string(kind)).Inc()
}

// ObserveGuardDecision records one Guardrail Gate verdict.
func (m *Metrics) ObserveGuardDecision(outcome domain.DecisionOutcome) {
	m.GuardDecisions.WithLabelValues(string(outcome)).Inc()
}

// ObserveAdapterCall records one adapter call's latency.
func (m *Metrics) ObserveAdapterCall(platform domain.PlatformID, operation string, d time.Duration) {
	m.AdapterCallLatency.WithLabelValues(string(platform), operation).Observe(d.Seconds())
}

// ObserveAdapterError records one adapter call failure.
func (m *Metrics) ObserveAdapterError(platform domain.PlatformID, kind domain.ErrorKind) {
	m.AdapterErrors.WithLabelValues(string(platform), string(kind)).Inc()
}

// SetBreakerState reports a platform's current circuit breaker state.
func (m *Metrics) SetBreakerState(platform domain.PlatformID, state string) {
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	m.BreakerState.WithLabelValues(string(platform)).Set(v)
}

// SetPendingApprovals reports the current approval queue depth.
func (m *Metrics) SetPendingApprovals(n int) {
	m.PendingApprovals.Set(float64(n))
}

// ObserveStage records one tick-state-machine stage's wall-clock duration.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
