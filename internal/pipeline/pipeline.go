// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline fetches a rendered paper, localizes its images, persists
// the rewritten document, and hands it to a converter.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/arxiv-docx/internal/assets"
	"github.com/pdiddy/arxiv-docx/internal/cleanup"
	"github.com/pdiddy/arxiv-docx/internal/convert"
	"github.com/pdiddy/arxiv-docx/internal/metrics"
	"github.com/pdiddy/arxiv-docx/pkg/types"
)

// State is how far a run progressed. States only move forward.
type State int

const (
	StateStart State = iota
	StateIdentifierKnown
	StateDocumentFetched
	StateAssetsResolved
	StateDocumentRewritten
	StatePersisted
	StateConverted
	StateCleanedUp
)

var stateNames = [...]string{
	StateStart:             "start",
	StateIdentifierKnown:   "identifier_known",
	StateDocumentFetched:   "document_fetched",
	StateAssetsResolved:    "assets_resolved",
	StateDocumentRewritten: "document_rewritten",
	StatePersisted:         "persisted",
	StateConverted:         "converted",
	StateCleanedUp:         "cleaned_up",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	name := string(b)
	for i, n := range stateNames {
		if n == name {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown pipeline state %q", name)
}

// Ledger records finished runs.
type Ledger interface {
	RecordRun(ctx context.Context, rec types.RunRecord) (int64, error)
}

// Deps are the collaborators of a Pipeline. Only Client is required.
type Deps struct {
	// Client performs the document and asset requests. It must be safe for
	// concurrent use.
	Client assets.HTTPClient

	// Converter is run by Finish. Nil skips conversion.
	Converter convert.Converter

	// Ledger stores a record of every processed run. Nil disables history.
	Ledger Ledger

	Metrics *metrics.Metrics
	Logger  *zap.Logger

	// Out receives per-item status lines. Nil discards them.
	Out io.Writer

	// Now defaults to time.Now.
	Now func() time.Time
}

// Pipeline runs papers through fetch, localize, persist, convert and cleanup.
// A Pipeline is safe for concurrent use when runs target different output
// directories or when StrictNames is set.
type Pipeline struct {
	cfg       types.PipelineConfig
	client    assets.HTTPClient
	converter convert.Converter
	ledger    Ledger
	metrics   *metrics.Metrics
	logger    *zap.Logger
	out       io.Writer
	now       func() time.Time
}

// New returns a Pipeline for cfg. Zero-valued config fields take their
// defaults.
func New(cfg types.PipelineConfig, deps Deps) *Pipeline {
	p := &Pipeline{
		cfg:       cfg.WithDefaults(),
		client:    deps.Client,
		converter: deps.Converter,
		ledger:    deps.Ledger,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		out:       deps.Out,
		now:       deps.Now,
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: p.cfg.Fetch.Timeout}
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.out == nil {
		p.out = io.Discard
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Config returns the effective configuration.
func (p *Pipeline) Config() types.PipelineConfig {
	return p.cfg
}

// Result describes one run. It is returned even when the run fails so the
// caller can see how far it got.
type Result struct {
	Identifier   string           `json:"identifier"`
	State        State            `json:"state"`
	SourceURL    string           `json:"source_url,omitempty"`
	HTMLPath     string           `json:"html_path,omitempty"`
	ManifestPath string           `json:"manifest_path,omitempty"`
	OutputPath   string           `json:"output_path,omitempty"`
	Rewritten    int              `json:"rewritten"`
	Outcomes     []assets.Outcome `json:"-"`
	Summary      assets.Summary   `json:"summary"`
	Diagnostics  []string         `json:"diagnostics,omitempty"`

	// Err is the error that aborted the run, if any.
	Err error `json:"-"`

	// ConversionErr is set when Finish could not convert the document.
	ConversionErr error `json:"-"`

	// Cleanup is set when a cleanup pass ran.
	Cleanup *cleanup.Report `json:"-"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Status maps the result onto a ledger status.
func (r *Result) Status() types.RunStatus {
	switch {
	case r.Err != nil:
		return types.RunFailed
	case r.ConversionErr != nil:
		return types.RunConversionFailed
	case r.State >= StateConverted:
		return types.RunConverted
	default:
		return types.RunPersisted
	}
}

// Record converts the result into a ledger row.
func (r *Result) Record() types.RunRecord {
	rec := types.RunRecord{
		Identifier:      r.Identifier,
		Status:          r.Status(),
		HTMLPath:        r.HTMLPath,
		OutputPath:      r.OutputPath,
		Fetched:         r.Summary.Fetched,
		SkippedInline:   r.Summary.SkippedInline,
		SkippedExisting: r.Summary.SkippedExisting,
		Failed:          r.Summary.Failed,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
	}
	switch {
	case r.Err != nil:
		rec.Error = r.Err.Error()
	case r.ConversionErr != nil:
		rec.Error = r.ConversionErr.Error()
	}
	for _, o := range r.Outcomes {
		rec.Assets = append(rec.Assets, o.Record())
	}
	return rec
}

func (r *Result) diagnose(format string, args ...any) {
	r.Diagnostics = append(r.Diagnostics, fmt.Sprintf(format, args...))
}
