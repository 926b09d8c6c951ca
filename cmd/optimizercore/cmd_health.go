package main

import (
	"context"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report per-platform adapter health: breaker state and last successful call",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, log.Logger, flagGuardrailsPath, flagProvidersPath, flagDBDriver, flagDBDSN, flagMock)
	if err != nil {
		return err
	}
	defer a.Close()

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Platform", "OK", "Breaker", "Last Success", "Detail"})
	for _, platform := range a.registry.Platforms() {
		adapter, ok := a.registry.Get(platform)
		if !ok {
			continue
		}
		h := adapter.Health(ctx)
		lastSuccess := "never"
		if !h.LastSuccessAt.IsZero() {
			lastSuccess = h.LastSuccessAt.Format("2006-01-02 15:04:05")
		}
		tw.AppendRow(table.Row{platform, h.OK, h.BreakerState, lastSuccess, h.Detail})
	}
	renderTable(tw)
	return nil
}
