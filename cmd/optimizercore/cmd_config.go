package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and tune runtime guardrail overrides",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List every guardrail override currently in effect",
	RunE:  runConfigShow,
}

var overrideTTL time.Duration

var configOverrideCmd = &cobra.Command{
	Use:   "override <scope> <value>",
	Short: "Pin a guardrail scope to value, optionally for a limited --ttl",
	Long: `Valid scopes: confidence_threshold, max_daily_adjustments,
max_budget_reallocation_fraction_per_day, max_single_budget_increase_fraction,
major_change_fraction, automation_level.

automation_level takes a string value (ADVISORY|SEMI|FULL); every other scope
takes a float.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigOverride,
}

var configClearCmd = &cobra.Command{
	Use:   "clear-override <scope>",
	Short: "Remove an active guardrail override ahead of its TTL",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigClear,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configOverrideCmd)
	configCmd.AddCommand(configClearCmd)

	configOverrideCmd.Flags().DurationVar(&overrideTTL, "ttl", 0, "how long the override stays active (0 = until cleared or restart)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, log.Logger, flagGuardrailsPath, flagProvidersPath, flagDBDriver, flagDBDSN, flagMock)
	if err != nil {
		return err
	}
	defer a.Close()

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Scope", "Value", "Set At", "Expires At"})
	for _, o := range a.control.ActiveOverrides() {
		val := fmt.Sprintf("%g", o.Value)
		if o.StrValue != "" {
			val = o.StrValue
		}
		expires := "never"
		if !o.ExpiresAt.IsZero() {
			expires = o.ExpiresAt.Format(time.RFC3339)
		}
		tw.AppendRow(table.Row{o.Scope, val, o.SetAt.Format(time.RFC3339), expires})
	}
	renderTable(tw)
	return nil
}

func runConfigOverride(cmd *cobra.Command, args []string) error {
	scope, rawValue := args[0], args[1]

	ctx := context.Background()
	a, err := newApp(ctx, log.Logger, flagGuardrailsPath, flagProvidersPath, flagDBDriver, flagDBDSN, flagMock)
	if err != nil {
		return err
	}
	defer a.Close()

	var value float64
	if f, convErr := strconv.ParseFloat(rawValue, 64); convErr == nil {
		value = f
	}
	if err := a.control.OverrideGuardrail(ctx, scope, value, rawValue, overrideTTL); err != nil {
		return fmt.Errorf("override %s: %w", scope, err)
	}
	fmt.Printf("override %s set to %s\n", scope, rawValue)
	return nil
}

func runConfigClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, log.Logger, flagGuardrailsPath, flagProvidersPath, flagDBDriver, flagDBDSN, flagMock)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.control.ClearGuardrailOverride(ctx, args[0]); err != nil {
		return fmt.Errorf("clear override %s: %w", args[0], err)
	}
	fmt.Printf("override %s cleared\n", args[0])
	return nil
}
