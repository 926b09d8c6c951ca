// app.go assembles the dependency graph every subcommand needs: adapters,
// transport middleware, the Decision Engine, and the Controller wrapping
// it. Grounded on the teacher's cmd/cryptorun/main.go wiring HTTP metrics
// and the scanning pipeline once at process start, generalized to build
// the engine/control pair instead.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/zurychhh/ai-budget-optimizer/internal/adapters"
	adapterfake "github.com/zurychhh/ai-budget-optimizer/internal/adapters/fake"
	"github.com/zurychhh/ai-budget-optimizer/internal/adapters/googleads"
	"github.com/zurychhh/ai-budget-optimizer/internal/adapters/linkedinads"
	"github.com/zurychhh/ai-budget-optimizer/internal/adapters/metaads"
	"github.com/zurychhh/ai-budget-optimizer/internal/adapters/tiktokads"
	"github.com/zurychhh/ai-budget-optimizer/internal/analyst"
	analystfake "github.com/zurychhh/ai-budget-optimizer/internal/analyst/fake"
	"github.com/zurychhh/ai-budget-optimizer/internal/config"
	"github.com/zurychhh/ai-budget-optimizer/internal/control"
	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
	"github.com/zurychhh/ai-budget-optimizer/internal/engine"
	"github.com/zurychhh/ai-budget-optimizer/internal/guards"
	"github.com/zurychhh/ai-budget-optimizer/internal/ledger"
	"github.com/zurychhh/ai-budget-optimizer/internal/normaliser"
	"github.com/zurychhh/ai-budget-optimizer/internal/telemetry"
	"github.com/zurychhh/ai-budget-optimizer/internal/transport"
)

// app bundles every long-lived component a subcommand might touch. Built
// once per process invocation by newApp.
type app struct {
	engine    *engine.Engine
	control   *control.Controller
	registry  *adapters.Registry
	ledger    ledger.Ledger
	db        closer
	overrides *config.OverrideStore
	cadence   time.Duration
	log       zerolog.Logger
}

type closer interface {
	Close() error
}

// newApp wires the full stack from flags/env. mockMode swaps every live
// platform adapter and the GenAI analyst for deterministic fakes; it is set
// only by `--mock`. Without it the live platform adapters are registered
// even when no platform credentials are configured; only the analyst falls
// back to its fake when OPTIMIZER_GENAI_API_KEY is unset.
func newApp(ctx context.Context, log zerolog.Logger, guardrailsPath, providersPath, dbDriver, dbDSN string, mockMode bool) (*app, error) {
	guardrailsFile, err := config.LoadGuardrailsFile(guardrailsPath)
	if err != nil {
		return nil, fmt.Errorf("load guardrails config: %w", err)
	}
	baseGuardrails, err := guardrailsFile.ToDomain()
	if err != nil {
		return nil, fmt.Errorf("convert guardrails config: %w", err)
	}

	envOpts, err := config.LoadEnvOptions()
	if err != nil {
		return nil, fmt.Errorf("load environment options: %w", err)
	}
	baseGuardrails, err = envOpts.ApplyTo(baseGuardrails)
	if err != nil {
		return nil, fmt.Errorf("apply environment options: %w", err)
	}

	overrides := config.NewOverrideStore(nil)
	guardrailsSource := func() domain.Guardrails {
		return overrides.Apply(baseGuardrails)
	}

	led, db, err := openLedger(dbDriver, dbDSN)
	if err != nil {
		return nil, err
	}

	platforms := []domain.PlatformID{
		domain.PlatformGoogleAds, domain.PlatformMetaAds, domain.PlatformTikTokAds, domain.PlatformLinkedInAds,
	}
	registry := adapters.NewRegistry()
	if mockMode {
		for _, p := range platforms {
			registry.Register(adapterfake.NewAdapter(p))
		}
	} else {
		providersCfg, err := config.LoadProvidersConfig(providersPath)
		if err != nil {
			return nil, fmt.Errorf("load providers config: %w", err)
		}

		limiter := transport.NewLimiter(5, 10)
		breakers := transport.NewBreakers(platforms)
		for _, p := range platforms {
			pc, ok := providersCfg.GetProvider(string(p))
			if !ok {
				continue
			}
			limiter.SetPlatformLimit(p, float64(pc.RPS), pc.Burst)
			breakers.SetPlatformBreaker(p, transport.BreakerConfig{
				FailureThreshold: uint32(pc.Circuit.FailureThreshold),
				SuccessThreshold: uint32(pc.Circuit.SuccessThreshold),
				Timeout:          time.Duration(pc.Circuit.TimeoutMS) * time.Millisecond,
			})
		}
		auth := transport.NewAuthRefresher(fetchTokenFromEnv)

		register := func(p domain.PlatformID, build func(baseURL string, timeout time.Duration) adapters.Adapter) {
			pc, ok := providersCfg.GetProvider(string(p))
			if ok && !pc.Enabled {
				return
			}
			baseURL, timeout := "", 10*time.Second
			if ok {
				baseURL, timeout = pc.BaseURL, pc.GetRequestTimeout()
			}
			registry.Register(build(baseURL, timeout))
		}

		register(domain.PlatformGoogleAds, func(baseURL string, timeout time.Duration) adapters.Adapter {
			return googleads.New(googleads.Config{
				BaseURL:        envString("OPTIMIZER_GOOGLEADS_BASE_URL", orDefault(baseURL, "https://googleads.googleapis.com")),
				CustomerID:     os.Getenv("OPTIMIZER_GOOGLEADS_CUSTOMER_ID"),
				DeveloperToken: os.Getenv("OPTIMIZER_GOOGLEADS_DEVELOPER_TOKEN"),
				Timeout:        timeout,
			}, limiter, breakers, auth, log)
		})
		register(domain.PlatformMetaAds, func(baseURL string, timeout time.Duration) adapters.Adapter {
			return metaads.New(metaads.Config{
				BaseURL:   envString("OPTIMIZER_METAADS_BASE_URL", orDefault(baseURL, "https://graph.facebook.com/v19.0")),
				AdAccount: os.Getenv("OPTIMIZER_METAADS_ACCOUNT_ID"),
				Timeout:   timeout,
			}, limiter, breakers, auth, log)
		})
		register(domain.PlatformTikTokAds, func(baseURL string, timeout time.Duration) adapters.Adapter {
			return tiktokads.New(tiktokads.Config{
				BaseURL:      envString("OPTIMIZER_TIKTOKADS_BASE_URL", orDefault(baseURL, "https://business-api.tiktok.com")),
				AdvertiserID: os.Getenv("OPTIMIZER_TIKTOKADS_ADVERTISER_ID"),
				Timeout:      timeout,
			}, limiter, breakers, auth, log)
		})
		register(domain.PlatformLinkedInAds, func(baseURL string, timeout time.Duration) adapters.Adapter {
			return linkedinads.New(linkedinads.Config{
				BaseURL:      envString("OPTIMIZER_LINKEDINADS_BASE_URL", orDefault(baseURL, "https://api.linkedin.com")),
				AdAccountURN: os.Getenv("OPTIMIZER_LINKEDINADS_ACCOUNT_URN"),
				Timeout:      timeout,
			}, limiter, breakers, auth, log)
		})
	}

	norm := normaliser.New("USD", normaliser.FXTable{})

	var analystCli analyst.Client
	if mockMode || os.Getenv("OPTIMIZER_GENAI_API_KEY") == "" {
		analystCli = analystfake.New()
	} else {
		genaiCli, err := analyst.NewGenAIClient(ctx, analyst.Config{APIKey: os.Getenv("OPTIMIZER_GENAI_API_KEY")}, log)
		if err != nil {
			return nil, fmt.Errorf("build analyst client: %w", err)
		}
		analystCli = genaiCli
	}

	approvals := guards.NewLocalApprovalQueue()

	eng := engine.NewEngine(registry, norm, analystCli, led, approvals, guardrailsSource, engine.NewLocalLease(), log, engine.Config{
		Cadence: envOpts.TickInterval,
	})

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	eng.SetMetrics(metrics)

	ctl := control.New(eng, led, overrides, log)

	return &app{engine: eng, control: ctl, registry: registry, ledger: led, db: db, overrides: overrides, cadence: envOpts.TickInterval, log: log}, nil
}

func (a *app) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func openLedger(driver, dsn string) (ledger.Ledger, closer, error) {
	switch driver {
	case "postgres":
		led, db, err := ledger.OpenPostgres(ledger.PostgresConfig{DSN: dsn, MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: 30 * time.Minute})
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres ledger: %w", err)
		}
		return led, db, nil
	case "sqlite", "":
		path := dsn
		if path == "" {
			path = "optimizercore.db"
		}
		led, db, err := ledger.OpenSQLite(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite ledger: %w", err)
		}
		return led, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger driver %q", driver)
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// orDefault returns fallback when v is empty, used when a provider's YAML
// config omits base_url and an env override is also unset.
func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// fetchTokenFromEnv reads a per-platform access token from the
// environment. A live deployment with OAuth refresh-token credentials
// replaces this with a real token exchange; wiring that exchange per
// platform is out of scope here the same way the adapters' own HTTP
// decode bodies are (§1).
func fetchTokenFromEnv(ctx context.Context, platform domain.PlatformID) (string, error) {
	key := "OPTIMIZER_" + envPlatformPrefix(platform) + "_ACCESS_TOKEN"
	token := os.Getenv(key)
	if token == "" {
		return "", fmt.Errorf("no access token configured for %s (set %s)", platform, key)
	}
	return token, nil
}

func envPlatformPrefix(platform domain.PlatformID) string {
	switch platform {
	case domain.PlatformGoogleAds:
		return "GOOGLEADS"
	case domain.PlatformMetaAds:
		return "METAADS"
	case domain.PlatformTikTokAds:
		return "TIKTOKADS"
	case domain.PlatformLinkedInAds:
		return "LINKEDINADS"
	default:
		return string(platform)
	}
}
