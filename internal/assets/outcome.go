// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assets

import (
	"fmt"
	"strings"

	"github.com/pdiddy/arxiv-docx/pkg/types"
)

// OutcomeKind classifies the result of processing one Reference.
type OutcomeKind int

const (
	OutcomePending OutcomeKind = iota
	OutcomeFetched
	OutcomeSkippedInline
	OutcomeSkippedExisting
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFetched:
		return "fetched"
	case OutcomeSkippedInline:
		return "skipped_inline"
	case OutcomeSkippedExisting:
		return "skipped_existing"
	case OutcomeFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Outcome is the result for exactly one Reference.
type Outcome struct {
	Ref  Reference
	Kind OutcomeKind

	// LocalName and Path are set for fetched and skipped-existing outcomes.
	LocalName string
	Path      string

	// Bytes is the payload size for fetched outcomes.
	Bytes int64

	// Err is an *AssetError for failed outcomes.
	Err error
}

// Record converts o into its manifest form.
func (o Outcome) Record() types.AssetRecord {
	r := types.AssetRecord{
		Src:       o.Ref.Src,
		URL:       o.Ref.URL,
		LocalName: o.LocalName,
		Outcome:   o.Kind.String(),
	}
	if IsInline(r.URL) {
		r.URL = truncateInline(r.URL)
		r.Src = r.URL
	}
	if o.Err != nil {
		r.Error = o.Err.Error()
	}
	return r
}

// truncateInline keeps data: URLs out of manifests and logs.
func truncateInline(ref string) string {
	if i := strings.IndexByte(ref, ','); i >= 0 && i < 64 {
		return ref[:i+1] + "..."
	}
	if len(ref) > 64 {
		return ref[:64] + "..."
	}
	return ref
}

// Summary holds per-kind counts for a set of outcomes.
type Summary struct {
	Fetched         int `json:"fetched" yaml:"fetched"`
	SkippedInline   int `json:"skipped_inline" yaml:"skipped_inline"`
	SkippedExisting int `json:"skipped_existing" yaml:"skipped_existing"`
	Failed          int `json:"failed" yaml:"failed"`
}

// Total returns the number of outcomes counted.
func (s Summary) Total() int {
	return s.Fetched + s.SkippedInline + s.SkippedExisting + s.Failed
}

// HasFailures reports whether any asset failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

func (s Summary) String() string {
	return fmt.Sprintf("%d fetched, %d skipped (existing), %d skipped (inline), %d failed (total: %d)",
		s.Fetched, s.SkippedExisting, s.SkippedInline, s.Failed, s.Total())
}

// Summarize counts outcomes by kind.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.Kind {
		case OutcomeFetched:
			s.Fetched++
		case OutcomeSkippedInline:
			s.SkippedInline++
		case OutcomeSkippedExisting:
			s.SkippedExisting++
		case OutcomeFailed:
			s.Failed++
		}
	}
	return s
}

// Asset error operations.
const (
	OpFetch = "fetch"
	OpWrite = "write"
)

// AssetError describes why a single asset could not be fetched or stored.
// It never aborts a run.
type AssetError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *AssetError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: HTTP %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }
