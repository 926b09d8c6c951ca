package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run a single Decision Engine tick and print its outcome",
	RunE:  runTick,
}

func init() {
	rootCmd.AddCommand(tickCmd)
}

func runTick(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, log.Logger, flagGuardrailsPath, flagProvidersPath, flagDBDriver, flagDBDSN, flagMock)
	if err != nil {
		return err
	}
	defer a.Close()

	result, ran, err := a.engine.Tick(ctx)
	if err != nil {
		return fmt.Errorf("tick: %w", err)
	}
	if !ran {
		fmt.Println("tick skipped: lease held elsewhere")
		return nil
	}

	fmt.Printf("tick %s in %s\n", result.Outcome, result.FinishedAt.Sub(result.StartedAt))
	if result.FailedAt != "" {
		fmt.Printf("  failed at: %s (%v)\n", result.FailedAt, result.Err)
	}
	fmt.Printf("  records: %d  alerts: %d  excluded platforms: %v\n", len(result.Records), len(result.Alerts), result.ExcludedPlatforms)
	for _, rec := range result.Records {
		fmt.Printf("  - %s/%s %s: %s\n", rec.Campaign.Platform, rec.Campaign.ExternalID, rec.Decision.Outcome, rec.Outcome)
	}
	return nil
}
