// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/arxiv-docx/internal/cleanup"
	"github.com/pdiddy/arxiv-docx/pkg/types"
)

// ErrNotPersisted is returned by Finish for a run that never wrote its
// document.
var ErrNotPersisted = errors.New("document was not persisted")

// Finish converts the persisted document and, when cleanup is enabled and
// conversion succeeded, removes transient images from the output
// directory. A conversion error is recorded on res and returned; the HTML
// document and its images are left in place.
func (p *Pipeline) Finish(ctx context.Context, res *Result) error {
	if res == nil || res.State < StatePersisted {
		return ErrNotPersisted
	}
	defer func() { res.FinishedAt = p.now() }()

	if p.converter == nil {
		return nil
	}

	out, err := p.converter.Convert(ctx, res.HTMLPath)
	if err != nil {
		res.ConversionErr = err
		res.diagnose("%v", err)
		fmt.Fprintf(p.out, "failed:  conversion of %s (%v)\n", res.HTMLPath, err)
		p.logger.Warn("conversion failed", zap.String("paper", res.Identifier), zap.Error(err))
		return err
	}
	res.OutputPath = out
	res.State = StateConverted
	fmt.Fprintf(p.out, "converted: %s\n", out)
	p.logger.Info("document converted", zap.String("paper", res.Identifier), zap.String("output", out))

	if !p.cfg.Cleanup.Enabled {
		return nil
	}
	report := cleanup.Clean(p.cfg.OutputDir, p.cfg.Cleanup.Extensions, p.logger)
	res.Cleanup = &report
	for _, e := range report.Errors {
		res.diagnose("%v", e)
	}
	res.State = StateCleanedUp
	fmt.Fprintf(p.out, "cleaned: %d removed, %d skipped\n", len(report.Removed), len(report.Errors))
	return nil
}

// Process runs, finishes and records one paper. The returned error is the
// run error or the conversion error; res is never nil.
func (p *Pipeline) Process(ctx context.Context, input string) (*Result, error) {
	res, err := p.Run(ctx, input)
	if err == nil {
		err = p.Finish(ctx, res)
	}
	p.record(ctx, res)
	return res, err
}

func (p *Pipeline) record(ctx context.Context, res *Result) {
	status := res.Status()
	p.metrics.ObserveRun(string(status))

	if p.ledger == nil {
		return
	}
	if _, err := p.ledger.RecordRun(context.WithoutCancel(ctx), res.Record()); err != nil {
		res.diagnose("recording run: %v", err)
		p.logger.Warn("run not recorded", zap.String("paper", res.Identifier), zap.Error(err))
	}
}

// BatchResult holds the outcome of processing several papers.
type BatchResult struct {
	Converted int
	Persisted int
	Failed    int
	Results   []*Result
}

// Total returns the number of papers processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Persisted + r.Failed
}

// HasFailures reports whether any paper failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// ProcessBatch processes inputs in order, continuing after individual
// failures, and prints a summary line. It stops early if ctx is cancelled.
func (p *Pipeline) ProcessBatch(ctx context.Context, inputs []string) BatchResult {
	var batch BatchResult
	for _, input := range inputs {
		if ctx.Err() != nil {
			break
		}
		res, err := p.Process(ctx, input)
		batch.Results = append(batch.Results, res)

		switch res.Status() {
		case types.RunConverted:
			batch.Converted++
		case types.RunPersisted:
			batch.Persisted++
		case types.RunFailed:
			fmt.Fprintf(p.out, "failed:  %s (%v)\n", input, err)
			batch.Failed++
		default:
			batch.Failed++
		}
	}
	fmt.Fprintf(p.out, "\nBatch summary: %d converted, %d persisted, %d failed (total: %d)\n",
		batch.Converted, batch.Persisted, batch.Failed, batch.Total())
	return batch
}
