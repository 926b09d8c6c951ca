// Package engine drives the Decision Engine's tick state machine (§4.3):
// IDLE → COLLECTING → ANALYZING → GATING → EXECUTING → AUDITING → IDLE,
// with FAILED reachable from any state on an unrecoverable error. Grounded
// on the teacher's internal/scheduler.Scheduler for the cadence-driven
// control loop shape (ticker-based, context-cancellable), generalized from
// a cron-style job runner into a fixed-step state machine with an
// exclusive lease and per-tick transaction semantics the teacher's
// scheduler never needed.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/zurychhh/ai-budget-optimizer/internal/adapters"
	"github.com/zurychhh/ai-budget-optimizer/internal/analyst"
	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
	"github.com/zurychhh/ai-budget-optimizer/internal/guards"
	"github.com/zurychhh/ai-budget-optimizer/internal/ledger"
	"github.com/zurychhh/ai-budget-optimizer/internal/normaliser"
	"github.com/zurychhh/ai-budget-optimizer/internal/telemetry"
)

// TickState is one position in the §4.3 state machine.
type TickState string

const (
	StateIdle        TickState = "IDLE"
	StateCollecting  TickState = "COLLECTING"
	StateAnalyzing   TickState = "ANALYZING"
	StateGating      TickState = "GATING"
	StateExecuting   TickState = "EXECUTING"
	StateAuditing    TickState = "AUDITING"
	StateFailed      TickState = "FAILED"
)

// TickOutcome summarizes how a tick ended.
type TickOutcome string

const (
	TickSuccess TickOutcome = "SUCCESS"
	TickFailed  TickOutcome = "FAILED"
)

// TickResult is everything a caller (the CLI's `tick` command, the control
// surface, tests) might want to inspect about one completed tick.
type TickResult struct {
	Outcome           TickOutcome
	FailedAt          TickState
	StartedAt         time.Time
	FinishedAt        time.Time
	Records           []domain.ActionRecord
	Alerts            []domain.Alert
	ExcludedPlatforms []domain.PlatformID
	Err               error
}

// Config bundles the Engine's tunables; everything with a non-zero
// SPEC_FULL default is filled in by NewEngine when left zero.
type Config struct {
	Cadence             time.Duration // default 15 minutes
	TrailingWindow      time.Duration // default 7 * 24h
	PlatformConcurrency int           // default 4, concurrent adapter calls per platform within a tick
	AnalystTimeout       time.Duration // default 20s, enforced by the analyst.Client itself
}

func (c Config) withDefaults() Config {
	if c.Cadence <= 0 {
		c.Cadence = 15 * time.Minute
	}
	if c.TrailingWindow <= 0 {
		c.TrailingWindow = 7 * 24 * time.Hour
	}
	if c.PlatformConcurrency <= 0 {
		c.PlatformConcurrency = 4
	}
	return c
}

// GuardrailsSource returns the currently effective Guardrails. It is a
// function rather than a stored value so a live override_guardrail call
// (§6) is visible to the very next tick without restarting the engine.
type GuardrailsSource func() domain.Guardrails

// Engine owns one tick's transaction end to end. Apart from metrics (set by
// SetMetrics), fields are set once at construction; the mutable state is
// campaigns, window, counters, seen and lastTickTime, all touched while mu
// is held.
type Engine struct {
	registry   *adapters.Registry
	normaliser *normaliser.Normaliser
	analystCli analyst.Client
	ledger     ledger.Ledger
	approvals  guards.ApprovalQueue
	guardrails GuardrailsSource
	lease      Lease
	clock      func() time.Time
	log        zerolog.Logger
	cfg        Config
	alertCfg   AlertThresholds
	metrics    *telemetry.Metrics

	// mu serializes ticks and approval processing (SPEC_FULL's Open
	// Question decision: "an approve() call that arrives mid-tick blocks
	// on the engine's tick mutex and is processed after IDLE").
	mu sync.Mutex

	// counterMu guards counters specifically, independent of mu: execute's
	// errgroup runs executeOne concurrently across proposals (bounded by
	// cfg.PlatformConcurrency), and each successful AUTO_EXECUTE mutates
	// counters via applyCounters from its own goroutine.
	counterMu sync.Mutex

	campaigns    *campaignCache
	window       map[domain.CampaignRef][]domain.MetricSample // trailing samples, capped by cfg.TrailingWindow
	seen         normaliser.Seen
	counters     domain.DailyCounters
	lastTickTime time.Time
}

// NewEngine wires every collaborator the Decision Engine needs. lease may
// be nil, in which case a LocalLease is used.
func NewEngine(
	registry *adapters.Registry,
	norm *normaliser.Normaliser,
	analystCli analyst.Client,
	led ledger.Ledger,
	approvals guards.ApprovalQueue,
	guardrails GuardrailsSource,
	lease Lease,
	log zerolog.Logger,
	cfg Config,
) *Engine {
	if lease == nil {
		lease = NewLocalLease()
	}
	return &Engine{
		registry:   registry,
		normaliser: norm,
		analystCli: analystCli,
		ledger:     led,
		approvals:  approvals,
		guardrails: guardrails,
		lease:      lease,
		clock:      time.Now,
		log:        log.With().Str("component", "engine").Logger(),
		cfg:        cfg.withDefaults(),
		alertCfg:   DefaultAlertThresholds(),
		campaigns:  newCampaignCache(),
		window:     make(map[domain.CampaignRef][]domain.MetricSample),
		seen:       normaliser.Seen{},
		counters:   domain.NewDailyCounters(time.Time{}),
	}
}

// SetMetrics attaches a telemetry.Metrics bundle the engine reports tick
// and adjustment counters to. Optional: a nil or unset metrics field means
// Tick simply skips recording, so tests never need to wire one up.
func (e *Engine) SetMetrics(m *telemetry.Metrics) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics = m
}

// Recover reconstructs DailyCounters from the ledger since local midnight
// (§4.5 recovery contract). Call once at startup before the first tick.
func (e *Engine) Recover(ctx context.Context, localMidnight time.Time) error {
	counters, err := e.ledger.CountersSince(ctx, localMidnight)
	if err != nil {
		return fmt.Errorf("engine: recover counters: %w", err)
	}
	e.mu.Lock()
	e.counters = counters
	e.mu.Unlock()
	return nil
}

// Tick runs one full IDLE→...→IDLE cycle. It acquires the lease itself;
// callers (the cadence loop, the CLI's `tick` command) do not need to.
// A false, nil return means another holder already owns the lease — the
// caller should treat this as a skip, not a failure.
func (e *Engine) Tick(ctx context.Context) (*TickResult, bool, error) {
	got, err := e.lease.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("engine: acquire lease: %w", err)
	}
	if !got {
		return nil, false, nil
	}
	defer e.lease.Release(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	result := &TickResult{StartedAt: e.clock()}
	now := result.StartedAt
	e.rolloverCountersIfNeeded(now)

	stageStart := e.clock()
	samples, excluded, err := e.collect(ctx, now)
	e.reportStage(StateCollecting, stageStart)
	result.ExcludedPlatforms = excluded
	if err != nil {
		return e.fail(ctx, result, StateCollecting, err)
	}
	for _, p := range excluded {
		rec := domain.ActionRecord{
			ID:         fmt.Sprintf("platform-excluded-%s-%d", p, now.UnixNano()),
			Kind:       domain.EntryPlatformExcluded,
			Outcome:    domain.OutcomeRecorded,
			Message:    fmt.Sprintf("platform %s excluded from this tick after a collection error", p),
			RecordedAt: now,
		}
		if err := e.ledger.Append(ctx, rec); err != nil {
			e.log.Warn().Err(err).Str("platform", string(p)).Msg("failed to record PLATFORM_EXCLUDED")
		}
	}

	normalised := e.normalise(samples)
	alerts := e.checkAlerts(normalised)
	result.Alerts = alerts
	for _, a := range alerts {
		if err := e.ledger.AppendAlert(ctx, a); err != nil {
			e.log.Warn().Err(err).Str("campaign", a.Campaign.ExternalID).Msg("failed to persist alert")
		}
	}

	pending, err := e.pendingProposals(ctx)
	if err != nil {
		return e.fail(ctx, result, StateAnalyzing, err)
	}

	stageStart = e.clock()
	resp, err := e.analyse(ctx, now, normalised, pending)
	e.reportStage(StateAnalyzing, stageStart)
	if err != nil {
		return e.fail(ctx, result, StateAnalyzing, err)
	}

	stageStart = e.clock()
	decisions := e.gate(now, resp.Proposals)
	e.reportStage(StateGating, stageStart)

	stageStart = e.clock()
	records, err := e.execute(ctx, now, decisions)
	e.reportStage(StateExecuting, stageStart)
	if err != nil {
		return e.fail(ctx, result, StateExecuting, err)
	}
	result.Records = records

	stageStart = e.clock()
	auditErr := e.audit(ctx, records)
	e.reportStage(StateAuditing, stageStart)
	if auditErr != nil {
		return e.fail(ctx, result, StateAuditing, auditErr)
	}

	e.lastTickTime = now
	result.Outcome = TickSuccess
	result.FinishedAt = e.clock()
	e.reportTick(result)
	for _, rec := range records {
		if rec.Outcome == domain.OutcomeSuccess {
			e.reportAdjustment(rec)
		}
	}
	return result, true, nil
}

func (e *Engine) reportTick(result *TickResult) {
	if e.metrics == nil {
		return
	}
	e.metrics.ObserveTick(string(result.Outcome), result.FinishedAt.Sub(result.StartedAt))
	if approvals, err := e.approvals.List(context.Background()); err == nil {
		e.metrics.SetPendingApprovals(len(approvals))
	}
}

func (e *Engine) reportAdjustment(rec domain.ActionRecord) {
	if e.metrics == nil {
		return
	}
	e.metrics.ObserveAdjustment(rec.Campaign.Platform, domain.ProposalKind(rec.Kind))
}

// reportStage records one state-machine stage's duration, mapped to the
// metric's label convention ("collect", not "COLLECTING").
func (e *Engine) reportStage(state TickState, start time.Time) {
	if e.metrics == nil {
		return
	}
	labels := map[TickState]string{StateCollecting: "collect", StateAnalyzing: "analyse", StateGating: "gate", StateExecuting: "execute", StateAuditing: "audit"}
	label, ok := labels[state]
	if !ok {
		label = strings.ToLower(string(state))
	}
	e.metrics.ObserveStage(label, e.clock().Sub(start))
}

func (e *Engine) fail(ctx context.Context, result *TickResult, at TickState, err error) (*TickResult, bool, error) {
	result.Outcome = TickFailed
	result.FailedAt = at
	result.Err = err
	result.FinishedAt = e.clock()
	e.reportTick(result)

	rec := domain.ActionRecord{
		ID:         fmt.Sprintf("tick-failed-%d", result.StartedAt.UnixNano()),
		Kind:       domain.EntryTickFailed,
		Outcome:    domain.OutcomeFailed,
		Message:    fmt.Sprintf("tick failed in %s: %v", at, err),
		RecordedAt: result.FinishedAt,
	}
	if appendErr := e.ledger.Append(ctx, rec); appendErr != nil {
		e.log.Error().Err(appendErr).Msg("failed to record TICK_FAILED")
	}
	e.log.Error().Err(err).Str("state", string(at)).Msg("tick failed")
	return result, true, err
}

// Skip records a TICK_SKIPPED row. Called by the cadence loop when a
// scheduled boundary arrives while the previous tick is still running
// (§4.3: "if a tick exceeds the cadence interval, the next tick is
// skipped, not queued").
func (e *Engine) Skip(ctx context.Context, boundary time.Time) {
	rec := domain.ActionRecord{
		ID:         fmt.Sprintf("tick-skipped-%d", boundary.UnixNano()),
		Kind:       domain.EntryTickSkipped,
		Outcome:    domain.OutcomeRecorded,
		Message:    "previous tick still in flight at scheduled boundary",
		RecordedAt: boundary,
	}
	if err := e.ledger.Append(ctx, rec); err != nil {
		e.log.Error().Err(err).Msg("failed to record TICK_SKIPPED")
	}
	e.log.Warn().Time("boundary", boundary).Msg("tick skipped")
}

func (e *Engine) rolloverCountersIfNeeded(now time.Time) {
	g := e.guardrails()
	loc := g.Timezone
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if e.counters.Day.IsZero() || midnight.After(e.counters.Day) {
		e.counters = domain.NewDailyCounters(midnight)
	}
}

// collect fans out ListCampaigns+GetPerformance across every registered
// platform in parallel (§4.3 step 1). A platform that errors is excluded
// from this tick's analysis rather than failing the tick — the loop is
// self-healing, the next tick retries.
func (e *Engine) collect(ctx context.Context, now time.Time) ([]domain.MetricSample, []domain.PlatformID, error) {
	platforms := e.registry.Platforms()
	since := e.lastTickTime

	type platformResult struct {
		platform domain.PlatformID
		samples  []domain.MetricSample
		err      error
	}
	results := make(chan platformResult, len(platforms))

	var wg sync.WaitGroup
	for _, p := range platforms {
		wg.Add(1)
		go func(platform domain.PlatformID) {
			defer wg.Done()
			adapter, ok := e.registry.Get(platform)
			if !ok {
				results <- platformResult{platform: platform, err: fmt.Errorf("no adapter registered")}
				return
			}
			campaigns, err := adapter.ListCampaigns(ctx, since)
			if err != nil {
				results <- platformResult{platform: platform, err: err}
				return
			}
			e.campaigns.put(campaigns)

			samples, err := adapter.GetPerformance(ctx, adapters.TimeRange{Since: since, Until: now}, nil)
			if err != nil {
				results <- platformResult{platform: platform, err: err}
				return
			}
			results <- platformResult{platform: platform, samples: samples}
		}(p)
	}
	wg.Wait()
	close(results)

	var samples []domain.MetricSample
	var excluded []domain.PlatformID
	for r := range results {
		if r.err != nil {
			excluded = append(excluded, r.platform)
			e.log.Warn().Err(r.err).Str("platform", string(r.platform)).Msg("platform excluded from tick")
			continue
		}
		samples = append(samples, r.samples...)
	}
	return samples, excluded, nil
}

// normalise feeds raw samples through the Metric Normaliser, folds the
// results into the trailing window, and advances the seen watermark
// (§4.3 step 2).
func (e *Engine) normalise(raw []domain.MetricSample) []domain.MetricSample {
	results, errs := e.normaliser.Normalise(raw, e.seen)
	for _, err := range errs {
		e.log.Warn().Err(err).Msg("sample dropped during normalisation")
	}

	out := make([]domain.MetricSample, 0, len(results))
	cutoff := e.clock().Add(-e.cfg.TrailingWindow)
	for _, r := range results {
		out = append(out, r.Sample)
		e.seen[r.Sample.Campaign] = r.LastSeenAt

		win := append(e.window[r.Sample.Campaign], r.Sample)
		pruned := win[:0]
		for _, s := range win {
			if s.SampleTime.After(cutoff) {
				pruned = append(pruned, s)
			}
		}
		e.window[r.Sample.Campaign] = pruned
	}
	return out
}

func (e *Engine) pendingProposals(ctx context.Context) ([]domain.Proposal, error) {
	entries, err := e.approvals.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	out := make([]domain.Proposal, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Proposal)
	}
	return out, nil
}

// analyse builds the analysis request and calls the LLM Analyst (§4.3
// step 3).
func (e *Engine) analyse(ctx context.Context, now time.Time, current []domain.MetricSample, pending []domain.Proposal) (analyst.Response, error) {
	byCampaign := make(map[domain.CampaignRef]domain.MetricSample, len(current))
	for _, s := range current {
		byCampaign[s.Campaign] = s
	}

	contexts := make([]analyst.CampaignContext, 0, len(byCampaign))
	for ref, sample := range byCampaign {
		camp, ok := e.campaigns.get(ref)
		if !ok {
			continue
		}
		contexts = append(contexts, analyst.CampaignContext{
			Campaign: camp,
			Current:  sample,
			Trailing: e.window[ref],
		})
	}
	sort.Slice(contexts, func(i, j int) bool {
		a, b := contexts[i].Campaign.Ref, contexts[j].Campaign.Ref
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		}
		return a.ExternalID < b.ExternalID
	})

	req := analyst.Request{
		GeneratedAt: now,
		Campaigns:   contexts,
		Guardrails:  e.guardrails(),
		Pending:     pending,
	}
	return e.analystCli.Analyse(ctx, req)
}

// gate feeds each proposal through the Guardrail Gate (§4.3 step 4, §4.4),
// applying the same-campaign same-tick ordering and supersession rule
// (SPEC_FULL's Open Question decision: earlier-ordered proposal wins,
// later ones on the same campaign are marked SUPERSEDED and dropped).
func (e *Engine) gate(now time.Time, proposals []domain.Proposal) []gatedProposal {
	seenCampaign := make(map[domain.CampaignRef]bool, len(proposals))
	out := make([]gatedProposal, 0, len(proposals))
	g := e.guardrails()
	// projected is a local copy of e.counters whose AdjustmentsMade is
	// incremented for every proposal this loop classifies AUTO_EXECUTE, so
	// I4's cap is enforced across proposals within this tick, not just
	// against the count carried over from prior ticks.
	projected := e.counters

	for _, p := range proposals {
		if seenCampaign[p.Campaign] {
			out = append(out, gatedProposal{
				proposal: p,
				decision: domain.Decision{Outcome: domain.DecisionRejected, Justification: domain.JustSuperseded, Detail: "superseded by an earlier proposal on the same campaign this tick", EvaluatedAt: now},
			})
			continue
		}
		seenCampaign[p.Campaign] = true

		camp, ok := e.campaigns.get(p.Campaign)
		if !ok {
			out = append(out, gatedProposal{
				proposal: p,
				decision: domain.Decision{Outcome: domain.DecisionRejected, Justification: domain.JustRecheckFailed, Detail: "campaign not found in registry cache", EvaluatedAt: now},
			})
			continue
		}

		decision := guards.Evaluate(guards.Inputs{
			Proposal:              p,
			Campaign:               camp,
			Now:                    now,
			Guardrails:             g,
			Counters:               projected,
			PlatformEnabledBudget: e.campaigns.EnabledBudgetSum(p.Campaign.Platform, p.Campaign),
		})
		if decision.Outcome == domain.DecisionAutoExecute {
			projected.AdjustmentsMade++
		}
		out = append(out, gatedProposal{proposal: p, decision: decision, campaign: camp})
	}

	// decreases/pauses ordered before increases in the returned slice,
	// regardless of analyst-supplied order, so result.Records reads in
	// §4.3 step 5 order. execute is what actually enforces the ordering
	// guarantee at run time, by running the decrease/pause cohort to
	// completion before launching the increase cohort — this sort alone
	// only fixes presentation order, not concurrent execution order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].proposal.Kind.IsDecreaseOrPause() && !out[j].proposal.Kind.IsDecreaseOrPause()
	})
	if e.metrics != nil {
		for _, gp := range out {
			e.metrics.ObserveGuardDecision(gp.decision.Outcome)
		}
	}
	return out
}

type gatedProposal struct {
	proposal domain.Proposal
	decision domain.Decision
	campaign domain.Campaign
}

// execute runs AUTO_EXECUTE proposals through the adapter, enqueues
// APPROVAL_REQUIRED ones, and passes REJECTED/SUPERSEDED straight to
// audit (§4.3 step 5). Adapter calls for independent campaigns run with
// bounded concurrency within a cohort, but the decrease/pause cohort runs
// to completion before the increase cohort is even launched — gate's sort
// only fixes slice order, and a cross-campaign increase launched
// concurrently with a decrease on the same platform would otherwise
// violate §4.3 step 5 / §5's "decreases/pauses before increases, I3 holds
// throughout the tick even under partial failure" guarantee.
func (e *Engine) execute(ctx context.Context, now time.Time, gated []gatedProposal) ([]domain.ActionRecord, error) {
	records := make([]domain.ActionRecord, len(gated))

	var decreaseCohort, increaseCohort []int
	for i, gp := range gated {
		if gp.proposal.Kind.IsDecreaseOrPause() {
			decreaseCohort = append(decreaseCohort, i)
		} else {
			increaseCohort = append(increaseCohort, i)
		}
	}

	if err := e.executeCohort(ctx, now, gated, records, decreaseCohort); err != nil {
		return nil, err
	}
	if err := e.executeCohort(ctx, now, gated, records, increaseCohort); err != nil {
		return nil, err
	}
	return records, nil
}

// executeCohort runs the proposals at indices into gated with at most
// cfg.PlatformConcurrency in flight per platform, writing each result into
// the matching slot of records.
func (e *Engine) executeCohort(ctx context.Context, now time.Time, gated []gatedProposal, records []domain.ActionRecord, indices []int) error {
	sems := make(map[domain.PlatformID]chan struct{})
	for _, i := range indices {
		p := gated[i].proposal.Campaign.Platform
		if sems[p] == nil {
			sems[p] = make(chan struct{}, e.cfg.PlatformConcurrency)
		}
	}

	grp, gctx := errgroup.WithContext(ctx)
	for _, i := range indices {
		i, gp := i, gated[i]
		sem := sems[gp.proposal.Campaign.Platform]
		grp.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			records[i] = e.executeOne(gctx, now, gp)
			return nil
		})
	}
	return grp.Wait()
}

func (e *Engine) executeOne(ctx context.Context, now time.Time, gp gatedProposal) domain.ActionRecord {
	rec := domain.ActionRecord{
		ID:          fmt.Sprintf("rec-%s", gp.proposal.ID),
		ProposalRef: gp.proposal.ID,
		Campaign:    gp.proposal.Campaign,
		Kind:        domain.EntryKind(gp.proposal.Kind),
		Decision:    gp.decision,
		BeforeState: domain.CampaignSnapshot{Status: gp.campaign.Status, DailyBudget: gp.campaign.DailyBudget},
		RecordedAt:  now,
	}

	switch gp.decision.Outcome {
	case domain.DecisionRejected:
		rec.Outcome = domain.OutcomeCancelled
		if gp.decision.Justification == domain.JustSuperseded {
			rec.Outcome = domain.OutcomeSuperseded
		}
		return rec
	case domain.DecisionApprovalRequired:
		ttl := e.guardrails().ApprovalTTL
		if ttl <= 0 {
			ttl = 4 * time.Hour
		}
		entry := guards.ApprovalEntry{Proposal: gp.proposal, Decision: gp.decision, QueuedAt: now, ExpiresAt: now.Add(ttl)}
		if err := e.approvals.Enqueue(ctx, entry); err != nil {
			rec.Outcome = domain.OutcomeFailed
			rec.Error = err.Error()
			return rec
		}
		rec.Outcome = domain.OutcomePending
		return rec
	}

	after, err := e.applyToAdapter(ctx, gp)
	if err != nil {
		rec.Outcome = domain.OutcomeFailed
		rec.Error = err.Error()
		return rec
	}
	rec.Outcome = domain.OutcomeSuccess
	rec.AfterState = &after
	t := now
	rec.ExecutedAt = &t
	e.applyCounters(gp, after)
	return rec
}

// applyToAdapter performs the confirmed write and returns the resulting
// CampaignSnapshot. The idempotency key is the Proposal's own id (§4.3
// "Idempotence").
func (e *Engine) applyToAdapter(ctx context.Context, gp gatedProposal) (domain.CampaignSnapshot, error) {
	adapter, ok := e.registry.Get(gp.proposal.Campaign.Platform)
	if !ok {
		return domain.CampaignSnapshot{}, fmt.Errorf("no adapter registered for %s", gp.proposal.Campaign.Platform)
	}

	after := domain.CampaignSnapshot{Status: gp.campaign.Status, DailyBudget: gp.campaign.DailyBudget}
	switch gp.proposal.Kind {
	case domain.ProposalPause:
		if err := adapter.SetStatus(ctx, gp.proposal.Campaign.ExternalID, domain.CampaignPaused, gp.proposal.ID); err != nil {
			return after, err
		}
		after.Status = domain.CampaignPaused
	case domain.ProposalResume:
		if err := adapter.SetStatus(ctx, gp.proposal.Campaign.ExternalID, domain.CampaignEnabled, gp.proposal.ID); err != nil {
			return after, err
		}
		after.Status = domain.CampaignEnabled
	case domain.ProposalIncreaseBudget, domain.ProposalDecreaseBudget, domain.ProposalReallocate:
		if err := adapter.UpdateBudget(ctx, gp.proposal.Campaign.ExternalID, gp.proposal.ToState.DailyBudget, gp.proposal.ID); err != nil {
			return after, err
		}
		after.DailyBudget = gp.proposal.ToState.DailyBudget
	default:
		return after, fmt.Errorf("execute: unsupported proposal kind %s", gp.proposal.Kind)
	}
	return after, nil
}

// applyCounters updates the running daily counters after a successful
// execution. Callable from execute's concurrent goroutines, so the map
// writes are guarded by counterMu rather than relying on the caller already
// holding e.mu (execute's errgroup goroutines don't).
func (e *Engine) applyCounters(gp gatedProposal, after domain.CampaignSnapshot) {
	e.counterMu.Lock()
	defer e.counterMu.Unlock()

	e.counters.AdjustmentsMade++
	delta := after.DailyBudget.Sub(gp.campaign.DailyBudget).Abs()
	if delta.Minor == 0 {
		return
	}
	e.counters.BudgetMovedByCampaign[gp.proposal.Campaign] = e.counters.BudgetMovedByCampaign[gp.proposal.Campaign].Add(delta)
	e.counters.BudgetMovedByPlatform[gp.proposal.Campaign.Platform] = e.counters.BudgetMovedByPlatform[gp.proposal.Campaign.Platform].Add(delta)
}

// audit writes one ActionRecord per proposal regardless of decision
// (§4.3 step 6, invariant I1).
func (e *Engine) audit(ctx context.Context, records []domain.ActionRecord) error {
	for _, rec := range records {
		if err := e.ledger.Append(ctx, rec); err != nil {
			return fmt.Errorf("audit: append %s: %w", rec.ProposalRef, err)
		}
	}
	return nil
}
