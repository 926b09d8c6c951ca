package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Inspect and resolve pending human approvals",
}

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every APPROVAL_REQUIRED proposal still awaiting a decision",
	RunE:  runApprovalsList,
}

var approvalsApproveCmd = &cobra.Command{
	Use:   "approve <proposal-id>",
	Short: "Approve a pending proposal and execute it",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprovalsApprove,
}

var approvalsRejectCmd = &cobra.Command{
	Use:   "reject <proposal-id> <reason>",
	Short: "Reject a pending proposal without executing it",
	Args:  cobra.ExactArgs(2),
	RunE:  runApprovalsReject,
}

func init() {
	rootCmd.AddCommand(approvalsCmd)
	approvalsCmd.AddCommand(approvalsListCmd)
	approvalsCmd.AddCommand(approvalsApproveCmd)
	approvalsCmd.AddCommand(approvalsRejectCmd)
}

func runApprovalsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, log.Logger, flagGuardrailsPath, flagProvidersPath, flagDBDriver, flagDBDSN, flagMock)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.control.ListPendingApprovals(ctx)
	if err != nil {
		return fmt.Errorf("list pending approvals: %w", err)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Proposal", "Campaign", "Kind", "Confidence", "Queued At", "Expires At"})
	for _, e := range entries {
		tw.AppendRow(table.Row{
			e.Proposal.ID,
			fmt.Sprintf("%s/%s", e.Proposal.Campaign.Platform, e.Proposal.Campaign.ExternalID),
			e.Proposal.Kind,
			fmt.Sprintf("%.2f", e.Proposal.Confidence),
			e.QueuedAt.Format("2006-01-02 15:04"),
			e.ExpiresAt.Format("2006-01-02 15:04"),
		})
	}
	renderTable(tw)
	return nil
}

func runApprovalsApprove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, log.Logger, flagGuardrailsPath, flagProvidersPath, flagDBDriver, flagDBDSN, flagMock)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.control.Approve(ctx, args[0])
	if err != nil {
		return fmt.Errorf("approve %s: %w", args[0], err)
	}
	fmt.Printf("approved %s: %s (%s)\n", args[0], rec.Decision.Outcome, rec.Outcome)
	return nil
}

func runApprovalsReject(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, log.Logger, flagGuardrailsPath, flagProvidersPath, flagDBDriver, flagDBDSN, flagMock)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.control.Reject(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("reject %s: %w", args[0], err)
	}
	fmt.Printf("rejected %s: %s\n", args[0], rec.Outcome)
	return nil
}
