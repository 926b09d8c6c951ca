// Package metaads implements adapters.Adapter against the Meta Marketing
// API. Meta reports budgets in the account currency's minor unit directly
// (cents for USD), so no micros conversion is needed here — unlike
// googleads, the boundary conversion is the identity; only the adapter
// shape (REST + health tracking) is shared with googleads, grounded on the
// same teacher per-exchange-adapter pattern.
package metaads

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/zurychhh/ai-budget-optimizer/internal/adapters"
	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
	"github.com/zurychhh/ai-budget-optimizer/internal/transport"
)

const platform = domain.PlatformMetaAds

type Config struct {
	BaseURL   string
	AdAccount string
	Currency  string
	Timeout   time.Duration
}

type Adapter struct {
	cfg      Config
	http     *http.Client
	limiter  *transport.Limiter
	breakers *transport.Breakers
	auth     *transport.AuthRefresher
	log      zerolog.Logger
	lastOK   time.Time
}

func New(cfg Config, limiter *transport.Limiter, breakers *transport.Breakers, auth *transport.AuthRefresher, log zerolog.Logger) *Adapter {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Adapter{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, limiter: limiter, breakers: breakers, auth: auth, log: log.With().Str("platform", string(platform)).Logger()}
}

func (a *Adapter) Platform() domain.PlatformID { return platform }

func (a *Adapter) await(ctx context.Context) error {
	if err := a.limiter.Wait(ctx, platform); err != nil {
		return domain.NewAdapterError(domain.KindTransient, platform, "rate_limit_wait", err)
	}
	return nil
}

func (a *Adapter) ListCampaigns(ctx context.Context, since time.Time) ([]domain.Campaign, error) {
	if err := a.await(ctx); err != nil {
		return nil, err
	}
	result, err := a.breakers.Execute(platform, func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/"+a.cfg.AdAccount+"/campaigns", nil)
		if err != nil {
			return nil, err
		}
		a.setAuthHeaders(ctx, req)
		resp, err := a.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if err := checkStatus(resp); err != nil {
			return nil, err
		}
		return []domain.Campaign{}, nil
	})
	if err != nil {
		return nil, a.classify(err, "list_campaigns")
	}
	a.lastOK = time.Now()
	return result.([]domain.Campaign), nil
}

func (a *Adapter) GetPerformance(ctx context.Context, rng adapters.TimeRange, ids []string) ([]domain.MetricSample, error) {
	if err := a.await(ctx); err != nil {
		return nil, err
	}
	result, err := a.breakers.Execute(platform, func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/"+a.cfg.AdAccount+"/insights", nil)
		if err != nil {
			return nil, err
		}
		a.setAuthHeaders(ctx, req)
		resp, err := a.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if err := checkStatus(resp); err != nil {
			return nil, err
		}
		return []domain.MetricSample{}, nil
	})
	if err != nil {
		return nil, a.classify(err, "get_performance")
	}
	a.lastOK = time.Now()
	return result.([]domain.MetricSample), nil
}

func (a *Adapter) UpdateBudget(ctx context.Context, externalID string, newDailyBudget domain.Money, idempotencyKey string) error {
	if err := a.await(ctx); err != nil {
		return err
	}
	_, err := a.breakers.Execute(platform, func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/"+externalID, nil)
		if err != nil {
			return nil, err
		}
		a.setAuthHeaders(ctx, req)
		req.Header.Set("Idempotency-Key", idempotencyKey)
		req.Header.Set("X-Daily-Budget-Minor", fmt.Sprintf("%d", newDailyBudget.Minor))
		resp, err := a.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return nil, checkStatus(resp)
	})
	if err != nil {
		return a.classify(err, "update_budget")
	}
	a.lastOK = time.Now()
	return nil
}

func (a *Adapter) SetStatus(ctx context.Context, externalID string, status domain.CampaignStatus, idempotencyKey string) error {
	if err := a.await(ctx); err != nil {
		return err
	}
	_, err := a.breakers.Execute(platform, func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/"+externalID, nil)
		if err != nil {
			return nil, err
		}
		a.setAuthHeaders(ctx, req)
		req.Header.Set("Idempotency-Key", idempotencyKey)
		metaStatus := "ACTIVE"
		if status == domain.CampaignPaused {
			metaStatus = "PAUSED"
		}
		req.Header.Set("X-Status", metaStatus)
		resp, err := a.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return nil, checkStatus(resp)
	})
	if err != nil {
		return a.classify(err, "set_status")
	}
	a.lastOK = time.Now()
	return nil
}

func (a *Adapter) Health(ctx context.Context) adapters.HealthStatus {
	return adapters.HealthStatus{Platform: platform, OK: time.Since(a.lastOK) < 30*time.Minute, BreakerState: a.breakers.State(platform), LastSuccessAt: a.lastOK}
}

func (a *Adapter) setAuthHeaders(ctx context.Context, req *http.Request) {
	token, err := a.auth.Refresh(ctx, platform)
	if err != nil {
		a.log.Warn().Err(err).Msg("auth refresh failed, proceeding without token")
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return domain.NewAdapterError(domain.KindAuthExpired, platform, "http", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.RateLimitedError(platform, "http", 60*time.Second, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return domain.NewAdapterError(domain.KindNotFound, platform, "http", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return domain.NewAdapterError(domain.KindValidation, platform, "http", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return domain.NewAdapterError(domain.KindUnavailable, platform, "http", fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

func (a *Adapter) classify(err error, op string) error {
	if _, ok := domain.KindOf(err); ok {
		return err
	}
	return domain.NewAdapterError(domain.KindTransient, platform, op, err)
}
