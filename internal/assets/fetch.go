// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of asset retrievals allowed in flight.
const DefaultConcurrency = 5

// HTTPClient is the subset of *http.Client used for retrievals. It must be
// safe for concurrent use.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher retrieves assets with a fixed number of workers and hands each
// payload to a Store. A failed retrieval only affects its own outcome.
type Fetcher struct {
	client      HTTPClient
	store       *Store
	concurrency int
	userAgent   string
	logger      *zap.Logger
	observe     func(Outcome)
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithConcurrency sets the number of workers. Values below 1 mean 1.
func WithConcurrency(n int) FetcherOption {
	return func(f *Fetcher) {
		if n < 1 {
			n = 1
		}
		f.concurrency = n
	}
}

// WithUserAgent sets the User-Agent header on every asset request.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithLogger sets the logger used for per-asset diagnostics.
func WithLogger(l *zap.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithObserver registers fn to be called once per outcome as it resolves.
// fn is called from worker goroutines and must be safe for concurrent use.
func WithObserver(fn func(Outcome)) FetcherOption {
	return func(f *Fetcher) { f.observe = fn }
}

// NewFetcher returns a Fetcher that writes through store.
func NewFetcher(client HTTPClient, store *Store, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:      client,
		store:       store,
		concurrency: DefaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll resolves every reference and returns outcomes[i] for refs[i].
// Inline references are skipped without a network call. The rest are queued
// to the workers; queueing blocks while all workers are busy. FetchAll
// returns only after every reference has an outcome.
func (f *Fetcher) FetchAll(ctx context.Context, refs []Reference) []Outcome {
	outcomes := make([]Outcome, len(refs))
	queue := make(chan int)

	var g errgroup.Group
	for w := 0; w < f.concurrency; w++ {
		g.Go(func() error {
			for i := range queue {
				outcomes[i] = f.fetchOne(ctx, refs[i])
				f.report(outcomes[i])
			}
			return nil
		})
	}

	for i, ref := range refs {
		if IsInline(ref.URL) {
			outcomes[i] = Outcome{Ref: ref, Kind: OutcomeSkippedInline}
			f.report(outcomes[i])
			continue
		}
		queue <- i
	}
	close(queue)
	_ = g.Wait()

	return outcomes
}

func (f *Fetcher) fetchOne(ctx context.Context, ref Reference) Outcome {
	name := LocalName(ref.URL)
	if f.store.Exists(name) {
		return Outcome{Ref: ref, Kind: OutcomeSkippedExisting, LocalName: name, Path: f.store.Path(name)}
	}

	data, err := f.get(ctx, ref.URL)
	if err != nil {
		return Outcome{Ref: ref, Kind: OutcomeFailed, LocalName: name, Err: err}
	}

	res, err := f.store.Put(ref.URL, data)
	if err != nil {
		return Outcome{
			Ref:       ref,
			Kind:      OutcomeFailed,
			LocalName: name,
			Err:       &AssetError{Op: OpWrite, URL: ref.URL, Err: err},
		}
	}
	if res.Skipped {
		return Outcome{Ref: ref, Kind: OutcomeSkippedExisting, LocalName: res.LocalName, Path: res.Path}
	}
	return Outcome{Ref: ref, Kind: OutcomeFetched, LocalName: res.LocalName, Path: res.Path, Bytes: res.Bytes}
}

// get performs a single GET with no retry.
func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &AssetError{Op: OpFetch, URL: rawURL, Err: fmt.Errorf("creating request: %w", err)}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &AssetError{Op: OpFetch, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &AssetError{Op: OpFetch, URL: rawURL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AssetError{Op: OpFetch, URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading body: %w", err)}
	}
	return data, nil
}

func (f *Fetcher) report(o Outcome) {
	switch o.Kind {
	case OutcomeFailed:
		f.logger.Warn("asset failed", zap.String("url", o.Ref.URL), zap.Error(o.Err))
	case OutcomeSkippedInline:
		f.logger.Debug("asset skipped (inline)", zap.Int("index", o.Ref.Index))
	case OutcomeSkippedExisting:
		f.logger.Debug("asset skipped (exists)", zap.String("url", o.Ref.URL), zap.String("name", o.LocalName))
	default:
		f.logger.Debug("asset fetched", zap.String("url", o.Ref.URL), zap.String("name", o.LocalName), zap.Int64("bytes", o.Bytes))
	}
	if f.observe != nil {
		f.observe(o)
	}
}
