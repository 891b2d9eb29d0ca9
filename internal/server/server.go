// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the pipeline and its run history over HTTP.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/arxiv-docx/internal/metrics"
	"github.com/pdiddy/arxiv-docx/internal/pipeline"
	"github.com/pdiddy/arxiv-docx/pkg/types"
)

// Processor runs one paper through the pipeline.
type Processor interface {
	Process(ctx context.Context, input string) (*pipeline.Result, error)
}

// History reads recorded runs.
type History interface {
	Runs(ctx context.Context, limit int) ([]types.RunRecord, error)
	Run(ctx context.Context, id int64) (types.RunRecord, error)
}

// Server holds the dependencies for the HTTP API.
type Server struct {
	addr       string
	processor  Processor
	history    History
	metrics    *metrics.Metrics
	logger     *zap.Logger
	router     http.Handler
	httpServer *http.Server

	// Runs share the output directory and cleanup walks all of it, so
	// they are serialized.
	runMu sync.Mutex
}

// NewServer wires the API. history and m may be nil.
func NewServer(addr string, proc Processor, history History, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		addr:      addr,
		processor: proc,
		history:   history,
		metrics:   m,
		logger:    logger,
	}
	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight runs.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
