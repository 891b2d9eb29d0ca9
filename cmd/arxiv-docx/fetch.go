// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/arxiv-docx/internal/pipeline"
	"github.com/pdiddy/arxiv-docx/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [identifiers...]",
	Short: "Fetch papers, localize their figures, and convert them",
	Long: `Fetch accepts arXiv identifiers (2403.01915, arXiv:2403.01915v2) or
arxiv.org / ar5iv links. For each paper it downloads the ar5iv HTML, fetches
every figure with bounded concurrency, rewrites figure references to the local
copies, writes <output-dir>/<id>.html, and converts it to <id>.docx.

Images already on disk are not downloaded again. A failed figure does not
stop the run; a failed document fetch does.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().Int("concurrency", 0, "asset downloads in flight (default 5)")
	fetchCmd.Flags().Duration("document-timeout", 0, "timeout for the document request (default 10s)")
	fetchCmd.Flags().Int("retries", 0, "retries on 429/5xx for the document request (default 3, -1 disables)")
	fetchCmd.Flags().String("backend", "", "conversion backend: pandoc, container, or none (default pandoc)")
	fetchCmd.Flags().Bool("no-convert", false, "stop after writing the HTML document")
	fetchCmd.Flags().Bool("keep-images", false, "do not remove images after conversion")

	viper.BindPFlag(keyConcurrency, fetchCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag(keyDocumentTimeout, fetchCmd.Flags().Lookup("document-timeout"))
	viper.BindPFlag(keyDocumentRetries, fetchCmd.Flags().Lookup("retries"))
	viper.BindPFlag(keyBackend, fetchCmd.Flags().Lookup("backend"))

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	cfg := pipelineConfig(v)

	if noConvert, _ := cmd.Flags().GetBool("no-convert"); noConvert {
		cfg.Conversion.Backend = types.BackendNone
	}
	if keep, _ := cmd.Flags().GetBool("keep-images"); keep {
		cfg.Cleanup.Enabled = false
	}

	logger, err := newLogger(v.GetBool("verbose"))
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	conv, err := newConverter(cfg)
	if err != nil {
		return err
	}

	deps := pipeline.Deps{
		Client:    &http.Client{Timeout: cfg.Fetch.Timeout},
		Converter: conv,
		Logger:    logger,
		Out:       cmd.OutOrStdout(),
	}
	store, err := openLedger(v, cfg)
	if err != nil {
		return fmt.Errorf("opening run history: %w", err)
	}
	if store != nil {
		defer store.Close()
		deps.Ledger = store
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := pipeline.New(cfg, deps).ProcessBatch(ctx, args)
	if result.HasFailures() {
		return fmt.Errorf("%d paper(s) failed", result.Failed)
	}
	return ctx.Err()
}
