package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var flagMetricsAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Decision Engine on its configured cadence until interrupted",
	Long: `serve is the long-running process form of tick: it drives the same
IDLE->COLLECTING->ANALYZING->GATING->EXECUTING->AUDITING->IDLE loop on a
fixed cadence, grounded on the teacher's internal/scheduler cadence-driven
job runner, simplified here to the Decision Engine's single recurring tick
rather than a multi-job cron table.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", ":9090", "address to serve /metrics on, empty to disable")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, log.Logger, flagGuardrailsPath, flagProvidersPath, flagDBDriver, flagDBDSN, flagMock)
	if err != nil {
		return err
	}
	defer a.Close()

	if flagMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: flagMetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
		log.Info().Str("addr", flagMetricsAddr).Msg("metrics endpoint listening")
	}

	ticker := time.NewTicker(a.cadence)
	defer ticker.Stop()

	log.Info().Dur("cadence", a.cadence).Msg("optimizercore serve starting")
	runOnce(ctx, a)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("optimizercore serve stopping")
			return nil
		case <-ticker.C:
			runOnce(ctx, a)
		}
	}
}

func runOnce(ctx context.Context, a *app) {
	result, ran, err := a.engine.Tick(ctx)
	if err != nil {
		log.Error().Err(err).Msg("tick failed")
		return
	}
	if !ran {
		log.Debug().Msg("tick skipped")
		return
	}
	log.Info().
		Str("outcome", string(result.Outcome)).
		Int("records", len(result.Records)).
		Int("alerts", len(result.Alerts)).
		Dur("elapsed", result.FinishedAt.Sub(result.StartedAt)).
		Msg("tick completed")
}
