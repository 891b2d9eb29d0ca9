// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/arxiv-docx/internal/assets"
	"github.com/pdiddy/arxiv-docx/internal/httputil"
	"github.com/pdiddy/arxiv-docx/internal/resolve"
	"github.com/pdiddy/arxiv-docx/pkg/types"
)

// DocumentPath returns where the rewritten document for id is stored.
func DocumentPath(outputDir, id string) string {
	return filepath.Join(outputDir, id+".html")
}

// ManifestPath returns where the asset manifest for id is stored.
func ManifestPath(outputDir, id string) string {
	return filepath.Join(outputDir, id+".assets.yaml")
}

// Run resolves input to an identifier, fetches the rendered document,
// retrieves its images, rewrites server-relative image sources to local
// paths, and writes the document. Asset failures are recorded as
// diagnostics; only a failed document fetch or write aborts the run.
func (p *Pipeline) Run(ctx context.Context, input string) (*Result, error) {
	res := &Result{Identifier: input, State: StateStart, StartedAt: p.now()}

	id, err := resolve.ExtractID(input)
	if err != nil {
		return p.fail(res, err)
	}
	res.Identifier = id
	res.State = StateIdentifierKnown
	logger := p.logger.With(zap.String("paper", id))

	base, err := url.Parse(p.cfg.Fetch.BaseURL)
	if err != nil {
		return p.fail(res, fmt.Errorf("parsing base URL: %w", err))
	}
	docURL := strings.TrimRight(p.cfg.Fetch.BaseURL, "/") + "/html/" + id

	fmt.Fprintf(p.out, "downloading: %s\n", id)
	body, err := p.fetchDocument(ctx, docURL, logger)
	if err != nil {
		return p.fail(res, err)
	}
	res.SourceURL = docURL
	res.State = StateDocumentFetched
	logger.Info("document fetched", zap.String("url", docURL), zap.Int("bytes", len(body)))

	outDir := p.cfg.OutputDir
	var storeOpts []assets.StoreOption
	if p.cfg.Fetch.StrictNames {
		storeOpts = append(storeOpts, assets.WithNameLock())
	}
	store := assets.NewStore(outDir, storeOpts...)
	if err := store.Prepare(); err != nil {
		return p.fail(res, &PersistError{Path: outDir, Err: err})
	}

	refs, err := assets.Scan(body, base)
	if err != nil {
		return p.fail(res, err)
	}

	fetcher := assets.NewFetcher(p.client, store,
		assets.WithConcurrency(p.cfg.Fetch.Concurrency),
		assets.WithUserAgent(p.cfg.Fetch.UserAgent),
		assets.WithLogger(logger),
		assets.WithObserver(func(o assets.Outcome) {
			p.metrics.ObserveAsset(o.Kind.String())
		}),
	)
	res.Outcomes = fetcher.FetchAll(ctx, refs)
	res.Summary = assets.Summarize(res.Outcomes)
	res.State = StateAssetsResolved
	p.reportOutcomes(res)

	if err := ctx.Err(); err != nil {
		return p.fail(res, err)
	}

	rewritten, n, err := assets.Rewrite(body, outDir, p.cfg.RewritePrefixes)
	if err != nil {
		return p.fail(res, err)
	}
	res.Rewritten = n
	res.State = StateDocumentRewritten

	htmlPath := DocumentPath(outDir, id)
	if err := writeAtomic(htmlPath, []byte(rewritten)); err != nil {
		return p.fail(res, &PersistError{Path: htmlPath, Err: err})
	}
	res.HTMLPath = htmlPath
	res.State = StatePersisted
	fmt.Fprintf(p.out, "wrote: %s (%d references rewritten)\n", htmlPath, n)

	manifestPath := ManifestPath(outDir, id)
	if err := p.writeManifest(res, manifestPath); err != nil {
		res.diagnose("writing manifest: %v", err)
		logger.Warn("manifest not written", zap.String("path", manifestPath), zap.Error(err))
	} else {
		res.ManifestPath = manifestPath
	}

	res.FinishedAt = p.now()
	return res, nil
}

func (p *Pipeline) fail(res *Result, err error) (*Result, error) {
	res.Err = err
	res.FinishedAt = p.now()
	p.logger.Error("run failed",
		zap.String("paper", res.Identifier),
		zap.Stringer("state", res.State),
		zap.Error(err),
	)
	return res, err
}

// fetchDocument retrieves docURL within the document timeout, retrying
// transient statuses.
func (p *Pipeline) fetchDocument(ctx context.Context, docURL string, logger *zap.Logger) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Fetch.DocumentTimeout)
	defer cancel()

	start := time.Now()
	body, err := p.getDocument(ctx, docURL, logger)
	p.metrics.ObserveDocumentFetch(time.Since(start), err == nil)
	return body, err
}

func (p *Pipeline) getDocument(ctx context.Context, docURL string, logger *zap.Logger) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return "", &DocumentFetchError{URL: docURL, Err: err}
	}
	req.Header.Set("User-Agent", p.cfg.Fetch.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := httputil.DoWithRetry(ctx, p.client, req, p.cfg.Fetch.DocumentRetries, logger)
	if err != nil {
		return "", &DocumentFetchError{URL: docURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &DocumentFetchError{URL: docURL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &DocumentFetchError{URL: docURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading body: %w", err)}
	}
	return string(data), nil
}

// reportOutcomes writes one status line per reference in document order and
// records failures as diagnostics.
func (p *Pipeline) reportOutcomes(res *Result) {
	for _, o := range res.Outcomes {
		switch o.Kind {
		case assets.OutcomeFetched:
			fmt.Fprintf(p.out, "fetched: %s (%d bytes)\n", o.LocalName, o.Bytes)
		case assets.OutcomeSkippedExisting:
			fmt.Fprintf(p.out, "skipped: %s (already exists)\n", o.LocalName)
		case assets.OutcomeSkippedInline:
			fmt.Fprintf(p.out, "skipped: image #%d (inline)\n", o.Ref.Index)
		case assets.OutcomeFailed:
			fmt.Fprintf(p.out, "failed:  %s (%v)\n", o.Ref.URL, o.Err)
			res.diagnose("%v", o.Err)
		}
	}
	fmt.Fprintf(p.out, "\nAsset summary: %s\n", res.Summary)
}

func (p *Pipeline) writeManifest(res *Result, path string) error {
	m := types.RunManifest{
		Identifier: res.Identifier,
		SourceURL:  res.SourceURL,
		HTMLPath:   res.HTMLPath,
		Rewritten:  res.Rewritten,
		FetchedAt:  res.StartedAt.UTC(),
		Assets:     make([]types.AssetRecord, len(res.Outcomes)),
	}
	for i, o := range res.Outcomes {
		m.Assets[i] = o.Record()
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	return writeAtomic(path, data)
}

// writeAtomic writes data to a temp file in the destination directory and
// renames it into place, so readers never see a partial file.
func writeAtomic(destPath string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".pipeline-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", destPath, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
