// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/arxiv-docx/internal/assets"
	"github.com/pdiddy/arxiv-docx/internal/convert"
	"github.com/pdiddy/arxiv-docx/internal/httputil"
	"github.com/pdiddy/arxiv-docx/internal/metrics"
	"github.com/pdiddy/arxiv-docx/pkg/types"
)

const paperID = "2403.01915"

// paperPage has two figures, one missing figure, an inline image, an
// external absolute image and a shared site asset. %s is the server origin.
const paperPage = `<!DOCTYPE html>
<html><head><title>Efficient Attention</title></head>
<body>
<p>Figure 1 shows the architecture.</p>
<img src="/html/2403.01915/assets/x1.png" alt="Architecture">
<img src="/html/2403.01915/assets/x2.png" alt="Results">
<img src="/html/2403.01915/assets/missing.png" alt="Ablation">
<img src="data:image/png;base64,iVBORw0KGgo=" alt="inline">
<img src="%s/static/logo.png" alt="external">
<img src="/assets/ar5iv.png" alt="site">
</body></html>
`

// paperServer serves paperPage at /html/<paperID> and image payloads
// elsewhere. Paths containing "missing" return 404.
type paperServer struct {
	*httptest.Server
	documentRequests atomic.Int32
	assetRequests    atomic.Int32
	document         http.HandlerFunc
}

func newPaperServer(t *testing.T) *paperServer {
	t.Helper()
	s := &paperServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/html/"+paperID {
			s.documentRequests.Add(1)
			if s.document != nil {
				s.document(w, r)
				return
			}
			fmt.Fprintf(w, paperPage, "http://"+r.Host)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/html/") && strings.Count(r.URL.Path, "/") == 2 {
			s.documentRequests.Add(1)
			http.NotFound(w, r)
			return
		}
		s.assetRequests.Add(1)
		if strings.Contains(r.URL.Path, "missing") {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "png:"+r.URL.Path)
	}))
	t.Cleanup(s.Close)
	return s
}

func testConfig(t *testing.T, srv *paperServer) types.PipelineConfig {
	t.Helper()
	return types.PipelineConfig{
		OutputDir: filepath.Join(t.TempDir(), "output"),
		Fetch: types.FetchConfig{
			BaseURL:         srv.URL,
			DocumentRetries: -1,
			StrictNames:     true,
		},
		Conversion: types.ConversionConfig{Backend: types.BackendNone},
	}
}

// fakeConverter writes a placeholder document next to its input.
type fakeConverter struct {
	err   error
	calls int
}

func (f *fakeConverter) Convert(_ context.Context, in string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	out := convert.OutputPath(in, ".docx")
	return out, os.WriteFile(out, []byte("docx"), 0o644)
}

type fakeLedger struct {
	mu      sync.Mutex
	records []types.RunRecord
	err     error
}

func (l *fakeLedger) RecordRun(_ context.Context, rec types.RunRecord) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return 0, l.err
	}
	l.records = append(l.records, rec)
	return int64(len(l.records)), nil
}

func localSrc(cfg types.PipelineConfig, name string) string {
	return `src="` + filepath.ToSlash(filepath.Join(cfg.OutputDir, name)) + `"`
}

func TestRunLocalizesAssets(t *testing.T) {
	srv := newPaperServer(t)
	cfg := testConfig(t, srv)
	var out bytes.Buffer
	p := New(cfg, Deps{Client: srv.Client(), Out: &out})

	res, err := p.Run(context.Background(), "https://arxiv.org/abs/"+paperID)
	require.NoError(t, err)

	assert.Equal(t, paperID, res.Identifier)
	assert.Equal(t, StatePersisted, res.State)
	assert.Equal(t, assets.Summary{Fetched: 4, SkippedInline: 1, Failed: 1}, res.Summary)
	require.Len(t, res.Outcomes, 6)
	assert.Equal(t, assets.OutcomeFailed, res.Outcomes[2].Kind)
	assert.Equal(t, 4, res.Rewritten)
	require.Len(t, res.Diagnostics, 1)
	assert.Contains(t, res.Diagnostics[0], "missing.png")

	assert.Equal(t, DocumentPath(cfg.OutputDir, paperID), res.HTMLPath)
	data, err := os.ReadFile(res.HTMLPath)
	require.NoError(t, err)
	html := string(data)

	for _, name := range []string{"x1.png", "x2.png", "missing.png", "ar5iv.png"} {
		assert.Contains(t, html, localSrc(cfg, name))
	}
	assert.Contains(t, html, `<img src="`+srv.URL+`/static/logo.png" alt="external">`)
	assert.Contains(t, html, `<img src="data:image/png;base64,iVBORw0KGgo=" alt="inline">`)
	assert.Contains(t, html, "<p>Figure 1 shows the architecture.</p>")
	assert.NotContains(t, html, `src="/html/`)

	for _, name := range []string{"x1.png", "x2.png", "logo.png", "ar5iv.png"} {
		got, err := os.ReadFile(filepath.Join(cfg.OutputDir, name))
		require.NoError(t, err, name)
		assert.True(t, strings.HasPrefix(string(got), "png:"), name)
	}
	assert.NoFileExists(t, filepath.Join(cfg.OutputDir, "missing.png"))

	assert.Contains(t, out.String(), "fetched: x1.png")
	assert.Contains(t, out.String(), "failed:  "+srv.URL+"/html/2403.01915/assets/missing.png")
	assert.Contains(t, out.String(), "Asset summary: 4 fetched, 0 skipped (existing), 1 skipped (inline), 1 failed (total: 6)")
}

func TestRunWritesManifest(t *testing.T) {
	srv := newPaperServer(t)
	cfg := testConfig(t, srv)
	p := New(cfg, Deps{Client: srv.Client()})

	res, err := p.Run(context.Background(), paperID)
	require.NoError(t, err)
	require.Equal(t, ManifestPath(cfg.OutputDir, paperID), res.ManifestPath)

	data, err := os.ReadFile(res.ManifestPath)
	require.NoError(t, err)
	var m types.RunManifest
	require.NoError(t, yaml.Unmarshal(data, &m))

	assert.Equal(t, paperID, m.Identifier)
	assert.Equal(t, srv.URL+"/html/"+paperID, m.SourceURL)
	assert.Equal(t, 4, m.Rewritten)
	require.Len(t, m.Assets, 6)
	assert.Equal(t, "x1.png", m.Assets[0].LocalName)
	assert.Equal(t, "failed", m.Assets[2].Outcome)
	assert.Equal(t, "skipped_inline", m.Assets[3].Outcome)
}

func TestRunDocumentNotFound(t *testing.T) {
	srv := newPaperServer(t)
	cfg := testConfig(t, srv)
	p := New(cfg, Deps{Client: srv.Client()})

	res, err := p.Run(context.Background(), "2401.99999")

	var docErr *DocumentFetchError
	require.True(t, errors.As(err, &docErr), "got %v", err)
	assert.Equal(t, http.StatusNotFound, docErr.StatusCode)
	assert.Equal(t, StateIdentifierKnown, res.State)
	assert.Equal(t, types.RunFailed, res.Status())
	assert.Equal(t, int32(0), srv.assetRequests.Load())
	assert.NoDirExists(t, cfg.OutputDir)
}

func TestRunDocumentTimeout(t *testing.T) {
	srv := newPaperServer(t)
	srv.document = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}
	cfg := testConfig(t, srv)
	cfg.Fetch.DocumentTimeout = 50 * time.Millisecond
	p := New(cfg, Deps{Client: srv.Client()})

	_, err := p.Run(context.Background(), paperID)

	var docErr *DocumentFetchError
	require.True(t, errors.As(err, &docErr), "got %v", err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Equal(t, int32(0), srv.assetRequests.Load())
	assert.NoFileExists(t, DocumentPath(cfg.OutputDir, paperID))
}

func TestRunRetriesDocument(t *testing.T) {
	orig := httputil.RetryBaseDelay
	httputil.RetryBaseDelay = time.Millisecond
	t.Cleanup(func() { httputil.RetryBaseDelay = orig })

	srv := newPaperServer(t)
	var calls atomic.Int32
	srv.document = func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(w, paperPage, "http://"+r.Host)
	}
	cfg := testConfig(t, srv)
	cfg.Fetch.DocumentRetries = 2

	core, logs := observer.New(zap.InfoLevel)
	p := New(cfg, Deps{Client: srv.Client(), Logger: zap.New(core)})

	res, err := p.Run(context.Background(), paperID)
	require.NoError(t, err)
	assert.Equal(t, StatePersisted, res.State)
	assert.Equal(t, int32(2), srv.documentRequests.Load())
	assert.Equal(t, 1, logs.FilterMessage("retrying request").Len())
}

func TestRunIsIdempotent(t *testing.T) {
	srv := newPaperServer(t)
	cfg := testConfig(t, srv)
	p := New(cfg, Deps{Client: srv.Client()})
	ctx := context.Background()

	first, err := p.Run(ctx, paperID)
	require.NoError(t, err)
	firstHTML, err := os.ReadFile(first.HTMLPath)
	require.NoError(t, err)
	before := srv.assetRequests.Load()

	second, err := p.Run(ctx, paperID)
	require.NoError(t, err)
	assert.Equal(t, assets.Summary{SkippedExisting: 4, SkippedInline: 1, Failed: 1}, second.Summary)
	// Only the missing asset is requested again.
	assert.Equal(t, int32(1), srv.assetRequests.Load()-before)

	secondHTML, err := os.ReadFile(second.HTMLPath)
	require.NoError(t, err)
	assert.Equal(t, string(firstHTML), string(secondHTML))
}

func TestRunUnrecognizedIdentifier(t *testing.T) {
	srv := newPaperServer(t)
	p := New(testConfig(t, srv), Deps{Client: srv.Client()})

	res, err := p.Run(context.Background(), "not a paper")
	require.Error(t, err)
	assert.Equal(t, StateStart, res.State)
	assert.Equal(t, int32(0), srv.documentRequests.Load())
}

func TestRunPersistError(t *testing.T) {
	srv := newPaperServer(t)
	cfg := testConfig(t, srv)
	// A regular file where the output directory should be.
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.OutputDir), 0o755))
	require.NoError(t, os.WriteFile(cfg.OutputDir, []byte("x"), 0o644))
	p := New(cfg, Deps{Client: srv.Client()})

	res, err := p.Run(context.Background(), paperID)

	var persistErr *PersistError
	require.True(t, errors.As(err, &persistErr), "got %v", err)
	assert.Empty(t, res.HTMLPath)
	assert.Equal(t, int32(0), srv.assetRequests.Load())
}

func TestProcessConvertsAndCleans(t *testing.T) {
	srv := newPaperServer(t)
	cfg := testConfig(t, srv)
	cfg.Cleanup.Enabled = true
	conv := &fakeConverter{}
	ledger := &fakeLedger{}
	m := metrics.New()
	p := New(cfg, Deps{Client: srv.Client(), Converter: conv, Ledger: ledger, Metrics: m})

	res, err := p.Process(context.Background(), paperID)
	require.NoError(t, err)

	assert.Equal(t, StateCleanedUp, res.State)
	assert.Equal(t, types.RunConverted, res.Status())
	assert.Equal(t, filepath.Join(cfg.OutputDir, paperID+".docx"), res.OutputPath)
	assert.FileExists(t, res.OutputPath)
	assert.FileExists(t, res.HTMLPath)
	require.NotNil(t, res.Cleanup)
	assert.Len(t, res.Cleanup.Removed, 4)
	assert.NoFileExists(t, filepath.Join(cfg.OutputDir, "x1.png"))

	require.Len(t, ledger.records, 1)
	rec := ledger.records[0]
	assert.Equal(t, types.RunConverted, rec.Status)
	assert.Equal(t, res.OutputPath, rec.OutputPath)
	assert.Len(t, rec.Assets, 6)
	assert.Equal(t, 6, rec.Total())

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["arxiv_docx_assets_total"])
	assert.True(t, names["arxiv_docx_runs_total"])
	assert.True(t, names["arxiv_docx_document_fetch_duration_seconds"])
}

func TestProcessConversionFailureKeepsFiles(t *testing.T) {
	srv := newPaperServer(t)
	cfg := testConfig(t, srv)
	cfg.Cleanup.Enabled = true
	convErr := &convert.ConversionError{Tool: "pandoc", Missing: true, Err: errors.New("not found")}
	ledger := &fakeLedger{}
	p := New(cfg, Deps{Client: srv.Client(), Converter: &fakeConverter{err: convErr}, Ledger: ledger})

	res, err := p.Process(context.Background(), paperID)

	var ce *convert.ConversionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, StatePersisted, res.State)
	assert.Equal(t, types.RunConversionFailed, res.Status())
	assert.Nil(t, res.Cleanup)
	assert.FileExists(t, res.HTMLPath)
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "x1.png"))

	require.Len(t, ledger.records, 1)
	assert.Equal(t, types.RunConversionFailed, ledger.records[0].Status)
	assert.Contains(t, ledger.records[0].Error, "pandoc")
}

func TestProcessLedgerErrorIsDiagnostic(t *testing.T) {
	srv := newPaperServer(t)
	p := New(testConfig(t, srv), Deps{Client: srv.Client(), Ledger: &fakeLedger{err: errors.New("disk full")}})

	res, err := p.Process(context.Background(), paperID)
	require.NoError(t, err)
	assert.Contains(t, res.Diagnostics[len(res.Diagnostics)-1], "disk full")
}

func TestFinishRequiresPersistedDocument(t *testing.T) {
	p := New(types.PipelineConfig{}, Deps{Converter: &fakeConverter{}})
	assert.ErrorIs(t, p.Finish(context.Background(), &Result{State: StateAssetsResolved}), ErrNotPersisted)
	assert.ErrorIs(t, p.Finish(context.Background(), nil), ErrNotPersisted)
}

func TestProcessBatch(t *testing.T) {
	srv := newPaperServer(t)
	var out bytes.Buffer
	p := New(testConfig(t, srv), Deps{Client: srv.Client(), Out: &out})

	batch := p.ProcessBatch(context.Background(), []string{
		"https://ar5iv.labs.arxiv.org/html/" + paperID,
		"not a paper",
		"2401.99999",
	})

	assert.Equal(t, 1, batch.Persisted)
	assert.Equal(t, 2, batch.Failed)
	assert.Equal(t, 3, batch.Total())
	assert.True(t, batch.HasFailures())
	assert.Len(t, batch.Results, 3)
	assert.Contains(t, out.String(), "failed:  not a paper")
	assert.Contains(t, out.String(), "Batch summary: 0 converted, 1 persisted, 2 failed (total: 3)")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "persisted", StatePersisted.String())
	assert.Equal(t, "cleaned_up", StateCleanedUp.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func TestStateTextRoundTrip(t *testing.T) {
	for st := StateStart; st <= StateCleanedUp; st++ {
		b, err := st.MarshalText()
		require.NoError(t, err)

		var got State
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, st, got)
	}

	var res Result
	require.NoError(t, json.Unmarshal([]byte(`{"state":"converted"}`), &res))
	assert.Equal(t, StateConverted, res.State)

	var bad State
	assert.Error(t, bad.UnmarshalText([]byte("halfway")))
}
