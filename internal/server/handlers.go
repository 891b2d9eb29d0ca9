// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pdiddy/arxiv-docx/internal/ledger"
	"github.com/pdiddy/arxiv-docx/internal/pipeline"
	"github.com/pdiddy/arxiv-docx/internal/resolve"
	"github.com/pdiddy/arxiv-docx/pkg/types"
)

// ProcessRequest is the body accepted by POST /papers.
type ProcessRequest struct {
	Input string `json:"input"`
}

// ProcessResponse reports one run.
type ProcessResponse struct {
	Status types.RunStatus  `json:"status"`
	Error  string           `json:"error,omitempty"`
	Result *pipeline.Result `json:"result"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	s.process(w, r, chi.URLParam(r, "id"))
}

func (s *Server) handleProcessBody(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.process(w, r, req.Input)
}

func (s *Server) process(w http.ResponseWriter, r *http.Request, input string) {
	if _, ok := resolve.Extract(input); !ok {
		s.respondWithError(w, http.StatusBadRequest, "unrecognized arXiv identifier: "+input)
		return
	}

	s.runMu.Lock()
	res, err := s.processor.Process(r.Context(), input)
	s.runMu.Unlock()

	resp := ProcessResponse{Status: res.Status(), Result: res}
	if err != nil {
		resp.Error = err.Error()
	}

	var docErr *pipeline.DocumentFetchError
	var persistErr *pipeline.PersistError
	switch {
	case errors.As(err, &docErr):
		s.respondWithJSON(w, http.StatusBadGateway, resp)
	case errors.As(err, &persistErr):
		s.logger.Error("document not persisted", zap.String("input", input), zap.Error(err))
		s.respondWithJSON(w, http.StatusInternalServerError, resp)
	case res.Err != nil:
		s.respondWithJSON(w, http.StatusInternalServerError, resp)
	default:
		s.respondWithJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondWithError(w, http.StatusNotFound, "run history is disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondWithError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := s.history.Runs(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list runs", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "could not list runs")
		return
	}
	if runs == nil {
		runs = []types.RunRecord{}
	}
	s.respondWithJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondWithError(w, http.StatusNotFound, "run history is disabled")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "runID"), 10, 64)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "run id must be an integer")
		return
	}

	run, err := s.history.Run(r.Context(), id)
	if errors.Is(err, ledger.ErrNotFound) {
		s.respondWithError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to read run", zap.Int64("run_id", id), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "could not read run")
		return
	}
	s.respondWithJSON(w, http.StatusOK, run)
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
		code = http.StatusInternalServerError
		response = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
