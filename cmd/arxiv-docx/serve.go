// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/arxiv-docx/internal/metrics"
	"github.com/pdiddy/arxiv-docx/internal/pipeline"
	"github.com/pdiddy/arxiv-docx/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline over HTTP",
	Long: `Serve starts an HTTP API:

  POST /papers/{id}   run a paper through the pipeline
  POST /papers        same, with {"input": "<id or link>"}
  GET  /runs          recent runs from the run ledger
  GET  /runs/{runID}  one run with its per-image outcomes
  GET  /metrics       Prometheus metrics
  GET  /healthz       liveness

Runs are processed one at a time.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	viper.BindPFlag("serve.addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	cfg := pipelineConfig(v)

	logger, err := newLogger(v.GetBool("verbose"))
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	conv, err := newConverter(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	deps := pipeline.Deps{
		Client:    &http.Client{Timeout: cfg.Fetch.Timeout},
		Converter: conv,
		Metrics:   m,
		Logger:    logger,
		Out:       cmd.ErrOrStderr(),
	}

	var history server.History
	store, err := openLedger(v, cfg)
	if err != nil {
		return fmt.Errorf("opening run history: %w", err)
	}
	if store != nil {
		defer store.Close()
		deps.Ledger = store
		history = store
	}

	srv := server.NewServer(v.GetString("serve.addr"), pipeline.New(cfg, deps), history, m, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "serving on %s\n", v.GetString("serve.addr"))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
