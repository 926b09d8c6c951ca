package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Inspect the action ledger",
}

var actionsSince string

var actionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every action recorded since a given time (default: last 24h)",
	RunE:  runActionsList,
}

var actionsExplainCmd = &cobra.Command{
	Use:   "explain <proposal-id>",
	Short: "Render the reasoning and before/after state behind one recorded action",
	Args:  cobra.ExactArgs(1),
	RunE:  runActionsExplain,
}

func init() {
	rootCmd.AddCommand(actionsCmd)
	actionsCmd.AddCommand(actionsListCmd)
	actionsCmd.AddCommand(actionsExplainCmd)

	actionsListCmd.Flags().StringVar(&actionsSince, "since", "24h", "lookback window as a Go duration, e.g. 24h, 168h")
}

func runActionsList(cmd *cobra.Command, args []string) error {
	lookback, err := time.ParseDuration(actionsSince)
	if err != nil {
		return fmt.Errorf("invalid --since %q: %w", actionsSince, err)
	}

	ctx := context.Background()
	a, err := newApp(ctx, log.Logger, flagGuardrailsPath, flagProvidersPath, flagDBDriver, flagDBDSN, flagMock)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.control.GetRecentActions(ctx, time.Now().Add(-lookback))
	if err != nil {
		return fmt.Errorf("get recent actions: %w", err)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Campaign", "Decision", "Outcome", "Recorded", "Message"})
	for _, rec := range records {
		campaign := "-"
		if rec.Campaign.Platform != "" {
			campaign = fmt.Sprintf("%s/%s", rec.Campaign.Platform, rec.Campaign.ExternalID)
		}
		tw.AppendRow(table.Row{
			rec.ID, campaign, rec.Decision.Outcome, rec.Outcome,
			humanize.Time(rec.RecordedAt), rec.Message,
		})
	}
	renderTable(tw)
	return nil
}

func runActionsExplain(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, log.Logger, flagGuardrailsPath, flagProvidersPath, flagDBDriver, flagDBDSN, flagMock)
	if err != nil {
		return err
	}
	defer a.Close()

	explanation, err := a.control.Explain(ctx, args[0])
	if err != nil {
		return fmt.Errorf("explain %s: %w", args[0], err)
	}
	fmt.Println(explanation)
	return nil
}
