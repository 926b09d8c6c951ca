// Package fake provides a canned-response analyst.Client for tests and for
// mock_data=true deployments, matching the pack's convention of a hand-
// written fake implementation of a real interface rather than a generated
// mock (mirrors internal/adapters/fake and internal/data/exchanges/fake).
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/zurychhh/ai-budget-optimizer/internal/analyst"
	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

// Client returns a scripted sequence of analyst.Response values, one per
// call, repeating the last entry once the script is exhausted. With no
// script configured it returns an empty proposal set and HealthGood.
type Client struct {
	mu      sync.Mutex
	script  []analyst.Response
	calls   []analyst.Request
	errs    []error
	callIdx int
}

// New builds a Client that returns responses in order, repeating the final
// one for any call beyond len(responses).
func New(responses ...analyst.Response) *Client {
	return &Client{script: responses}
}

// WithError schedules the nth call (0-indexed) to fail with err instead of
// returning a response. Used to exercise the Decision Engine's ANALYZING
// failure path without a live analyst.
func (c *Client) WithError(n int, err error) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.errs) <= n {
		c.errs = append(c.errs, nil)
	}
	c.errs[n] = err
	return c
}

func (c *Client) Analyse(_ context.Context, req analyst.Request) (analyst.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.callIdx
	c.callIdx++
	c.calls = append(c.calls, req)

	if idx < len(c.errs) && c.errs[idx] != nil {
		return analyst.Response{}, c.errs[idx]
	}
	if len(c.script) == 0 {
		return analyst.Response{OverallHealth: domain.HealthGood}, nil
	}
	if idx >= len(c.script) {
		idx = len(c.script) - 1
	}
	return c.script[idx], nil
}

// Calls returns every request this Client has seen so far, for assertions.
func (c *Client) Calls() []analyst.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]analyst.Request, len(c.calls))
	copy(out, c.calls)
	return out
}

// ProposeDecreaseBudget is a small builder for the common "recommend
// cutting an underperforming campaign's budget" fixture used across
// Guardrail Gate and Decision Engine tests.
func ProposeDecreaseBudget(ref domain.CampaignRef, fromMinor, toMinor int64, currency string, confidence float64) domain.Proposal {
	return domain.Proposal{
		ID:         fmt.Sprintf("fake-%s-%s-decrease", ref.Platform, ref.ExternalID),
		Campaign:   ref,
		Kind:       domain.ProposalDecreaseBudget,
		FromState:  domain.CampaignSnapshot{Status: domain.CampaignEnabled, DailyBudget: domain.Money{Minor: fromMinor, Currency: currency}},
		ToState:    domain.CampaignSnapshot{Status: domain.CampaignEnabled, DailyBudget: domain.Money{Minor: toMinor, Currency: currency}},
		Confidence: confidence,
		Reasoning:  "fake: underperforming ROAS",
	}
}
