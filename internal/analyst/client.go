package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

// Config configures the live GenAIClient.
type Config struct {
	APIKey  string
	Model   string // default "gemini-2.0-flash"
	Timeout time.Duration
}

// GenAIClient speaks to Google's Gemini API, grounded on
// theRebelliousNerd-codenerd's internal/embedding/genai.go client
// construction (google.golang.org/genai.NewClient, one long-lived client
// reused across calls), generalized from "embed text" to "analyse campaign
// state and propose actions."
type GenAIClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

// NewGenAIClient builds a GenAIClient from cfg. It does not validate the
// API key against the network; the first Analyse call surfaces auth
// failures as a KindAnalystMalformed AnalystError.
func NewGenAIClient(ctx context.Context, cfg Config, log zerolog.Logger) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("analyst: API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("analyst: create genai client: %w", err)
	}
	return &GenAIClient{client: client, model: model, timeout: timeout, log: log.With().Str("component", "analyst").Logger()}, nil
}

// wireProposal and wireResponse are the JSON shapes the model is asked to
// return. Unknown fields are ignored by plain json.Unmarshal (no
// DisallowUnknownFields); presence of required fields is checked
// explicitly after decode, per §4.6's "missing required fields fail
// analysis, unknown fields are ignored."
type wireProposal struct {
	ID             string  `json:"id"`
	CampaignPlat   string  `json:"campaign_platform"`
	CampaignExtID  string  `json:"campaign_external_id"`
	Kind           string  `json:"kind"`
	ToBudgetMinor  *int64  `json:"to_budget_minor"`
	ToCurrency     string  `json:"to_currency"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
	ImpactMetric   string  `json:"expected_impact_metric"`
	ImpactPercent  float64 `json:"expected_impact_change_percent"`
}

type wireResponse struct {
	Proposals     []wireProposal `json:"proposals"`
	OverallHealth string         `json:"overall_health"`
	Summary       string         `json:"summary"`
}

func (c *GenAIClient) Analyse(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := buildPrompt(req)
	result, err := c.client.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, &domain.AnalystError{Kind: domain.KindAnalystTimeout, Err: err}
		}
		return Response{}, &domain.AnalystError{Kind: domain.KindAnalystMalformed, Err: err}
	}

	text := extractText(result)
	if text == "" {
		return Response{}, &domain.AnalystError{Kind: domain.KindAnalystMalformed, Err: fmt.Errorf("empty response")}
	}

	var wire wireResponse
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return Response{}, &domain.AnalystError{Kind: domain.KindAnalystMalformed, Err: fmt.Errorf("decode response: %w", err)}
	}
	return toResponse(wire, req.GeneratedAt)
}

func extractText(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 {
		return ""
	}
	cand := result.Candidates[0]
	if cand.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// toResponse validates required fields and maps the wire shape onto domain
// types, rejecting any proposal kind outside the closed set (§9 design
// note) rather than best-effort coercing it.
func toResponse(wire wireResponse, producedAt time.Time) (Response, error) {
	health := domain.OverallHealth(wire.OverallHealth)
	switch health {
	case domain.HealthExcellent, domain.HealthGood, domain.HealthFair, domain.HealthPoor, domain.HealthCritical:
	default:
		return Response{}, &domain.AnalystError{Kind: domain.KindAnalystMalformed, Err: fmt.Errorf("missing or unknown overall_health %q", wire.OverallHealth)}
	}

	proposals := make([]domain.Proposal, 0, len(wire.Proposals))
	for i, wp := range wire.Proposals {
		if wp.ID == "" || wp.CampaignPlat == "" || wp.CampaignExtID == "" {
			return Response{}, &domain.AnalystError{Kind: domain.KindAnalystMalformed, Err: fmt.Errorf("proposal %d missing id or campaign", i)}
		}
		kind := domain.ProposalKind(wp.Kind)
		switch kind {
		case domain.ProposalPause, domain.ProposalResume, domain.ProposalIncreaseBudget,
			domain.ProposalDecreaseBudget, domain.ProposalReallocate, domain.ProposalCreateCampaign,
			domain.ProposalStrategyChange:
		default:
			return Response{}, &domain.AnalystError{Kind: domain.KindAnalystMalformed, Err: fmt.Errorf("proposal %d has unknown kind %q", i, wp.Kind)}
		}

		p := domain.Proposal{
			ID:         wp.ID,
			Campaign:   domain.CampaignRef{Platform: domain.PlatformID(wp.CampaignPlat), ExternalID: wp.CampaignExtID},
			Kind:       kind,
			Confidence: wp.Confidence,
			Reasoning:  wp.Reasoning,
			ExpectedImpact: domain.ExpectedImpact{
				Metric:        wp.ImpactMetric,
				ChangePercent: wp.ImpactPercent,
			},
			ProducedAt: producedAt,
		}
		if kind.IsBudgetChange() && wp.ToBudgetMinor != nil {
			p.ToState.DailyBudget = domain.Money{Minor: *wp.ToBudgetMinor, Currency: wp.ToCurrency}
		}
		proposals = append(proposals, p)
	}

	return Response{Proposals: proposals, OverallHealth: health, Summary: wire.Summary}, nil
}

// buildPrompt redacts anything the analyst's job does not need — §4.6:
// "the client ... is responsible for redacting any value not required by
// the analyst's job" — campaign names and raw adapter credentials never
// leave this boundary, only the metric/guardrail fields the prompt below
// enumerates.
func buildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("You are an advertising budget optimization analyst. ")
	sb.WriteString("Respond with a single JSON object matching this shape: ")
	sb.WriteString(`{"proposals":[{"id":string,"campaign_platform":string,"campaign_external_id":string,"kind":"PAUSE|RESUME|INCREASE_BUDGET|DECREASE_BUDGET|REALLOCATE|CREATE_CAMPAIGN|STRATEGY_CHANGE","to_budget_minor":int,"to_currency":string,"confidence":number,"reasoning":string,"expected_impact_metric":string,"expected_impact_change_percent":number}],"overall_health":"EXCELLENT|GOOD|FAIR|POOR|CRITICAL","summary":string}. `)
	sb.WriteString("Do not include any other text.\n\n")

	fmt.Fprintf(&sb, "Confidence threshold: %.2f. Major change fraction: %.2f. Automation level: %s.\n",
		req.Guardrails.ConfidenceThreshold, req.Guardrails.EffectiveMajorChangeFraction(), req.Guardrails.AutomationLevel)

	for _, cc := range req.Campaigns {
		fmt.Fprintf(&sb, "Campaign %s/%s status=%s budget=%s roas=%.2f cpc=%.2f ctr=%.4f cpa=%.2f trailing_days=%d\n",
			cc.Campaign.Ref.Platform, cc.Campaign.Ref.ExternalID, cc.Campaign.Status,
			cc.Campaign.DailyBudget, cc.Current.ROAS(), cc.Current.CPC(), cc.Current.CTR(), cc.Current.CPA(),
			len(cc.Trailing))
	}

	if len(req.Pending) > 0 {
		fmt.Fprintf(&sb, "Already pending proposals: %d. Do not duplicate these.\n", len(req.Pending))
	}
	return sb.String()
}
