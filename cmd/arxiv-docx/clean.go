// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/arxiv-docx/internal/cleanup"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [dir]",
	Short: "Remove downloaded images",
	Long: `Clean walks a directory (default: the output directory) recursively and
removes files with image extensions. Files that disappear or cannot be opened
during the pass are reported and skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	cfg := pipelineConfig(v)

	dir := cfg.OutputDir
	if len(args) == 1 {
		dir = args[0]
	}

	logger, err := newLogger(v.GetBool("verbose"))
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	w := cmd.OutOrStdout()
	report := cleanup.Clean(dir, cfg.Cleanup.Extensions, logger)
	for _, path := range report.Removed {
		fmt.Fprintf(w, "removed: %s\n", path)
	}
	for _, e := range report.Errors {
		fmt.Fprintf(w, "skipped: %s (%s: %v)\n", e.Path, e.Reason, e.Err)
	}
	fmt.Fprintf(w, "\nClean summary: %d removed, %d skipped\n", len(report.Removed), len(report.Errors))
	return nil
}
