// Command optimizercore is the operator-facing CLI over the Decision
// Engine: run ticks, inspect pending approvals, approve/reject them, read
// the action ledger, and tune guardrails at runtime. Grounded on the
// teacher's cmd/cryptorun root+subcommand-per-file cobra layout
// (cmd/cryptorun/main.go), using a clean package-level rootCmd instead of
// the teacher's locally-scoped one so every subcommand file's init() can
// register against it without a compile-time scope mismatch.
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "optimizercore"
	version = "v0.1.0"
)

var (
	flagGuardrailsPath string
	flagProvidersPath  string
	flagDBDriver       string
	flagDBDSN          string
	flagMock           bool
)

var rootCmd = &cobra.Command{
	Use:     appName,
	Short:   "Autonomous advertising budget optimization core",
	Version: version,
	Long: `optimizercore runs the Decision Engine tick loop over a fleet of ad
platform campaigns: collect performance, ask the analyst for proposals,
gate them against guardrails, execute the ones that clear, and record
every outcome to the action ledger.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagGuardrailsPath, "guardrails", "config/guardrails.yaml", "path to the guardrails YAML config")
	rootCmd.PersistentFlags().StringVar(&flagProvidersPath, "providers", "config/providers.yaml", "path to the ad platform adapter YAML config (rate limits, circuit breakers, enabled platforms)")
	rootCmd.PersistentFlags().StringVar(&flagDBDriver, "db-driver", "sqlite", "ledger backend: sqlite|postgres")
	rootCmd.PersistentFlags().StringVar(&flagDBDSN, "db-dsn", "optimizercore.db", "ledger DSN (sqlite path or postgres connection string)")
	rootCmd.PersistentFlags().BoolVar(&flagMock, "mock", false, "use in-memory fake adapters and analyst instead of live platform credentials")
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("optimizercore exited with error")
	}
}
