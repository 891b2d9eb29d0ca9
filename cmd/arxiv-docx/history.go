// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/arxiv-docx/internal/ledger"
	"github.com/pdiddy/arxiv-docx/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previous runs",
	Long: `History prints the most recent runs recorded in the run ledger, newest
first. Use --format yaml or json to export runs with their per-image outcomes.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of runs to show")
	historyCmd.Flags().String("format", "table", "output format: table, yaml, or json")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	cfg := pipelineConfig(v)
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")

	store, err := openLedger(v, cfg)
	if err != nil {
		return fmt.Errorf("opening run history: %w", err)
	}
	if store == nil {
		return fmt.Errorf("run history is disabled (%s=false)", keyHistoryEnabled)
	}
	defer store.Close()

	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	switch format {
	case ledger.FormatYAML, ledger.FormatJSON:
		return store.Export(ctx, w, format, limit)
	case "table":
		runs, err := store.Runs(ctx, limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(w, "no runs recorded")
			return nil
		}
		out, err := pterm.DefaultTable.WithHasHeader().WithData(historyTable(runs)).Srender()
		if err != nil {
			return fmt.Errorf("rendering table: %w", err)
		}
		fmt.Fprintln(w, out)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want table, yaml, or json)", format)
	}
}

func historyTable(runs []types.RunRecord) [][]string {
	data := [][]string{{"ID", "Paper", "Status", "Fetched", "Skipped", "Failed", "Finished", "Output"}}
	for _, r := range runs {
		output := r.OutputPath
		if output == "" {
			output = r.HTMLPath
		}
		data = append(data, []string{
			strconv.FormatInt(r.ID, 10),
			r.Identifier,
			string(r.Status),
			strconv.Itoa(r.Fetched),
			strconv.Itoa(r.SkippedExisting + r.SkippedInline),
			strconv.Itoa(r.Failed),
			r.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			output,
		})
	}
	return data
}
