// Package analyst speaks the LLM Analyst's request/response protocol
// (§4.6) and translates to/from domain types. It owns nothing persistent:
// every exported Client implementation is safe to retry.
package analyst

import (
	"context"
	"time"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

// CampaignContext bundles one campaign's current sample and trailing window
// — the per-campaign unit the analyst reasons over.
type CampaignContext struct {
	Campaign domain.Campaign
	Current  domain.MetricSample
	Trailing []domain.MetricSample // bounded, e.g. last 7 days
}

// Request is the single outbound request kind (§4.6, §9 design note: one
// fixed tagged union, not a free-form message).
type Request struct {
	GeneratedAt time.Time
	Campaigns   []CampaignContext
	Guardrails  domain.Guardrails
	Pending     []domain.Proposal
}

// Response is the analyst's structured answer: zero or more proposals plus
// a fleet-wide health signal. Unknown wire fields are ignored; a missing
// required field fails analysis (§4.6).
type Response struct {
	Proposals     []domain.Proposal
	OverallHealth domain.OverallHealth
	Summary       string
}

// Client is the Decision Engine's view of the LLM Analyst: one blocking
// call per tick, cancellable, stateless.
type Client interface {
	Analyse(ctx context.Context, req Request) (Response, error)
}
