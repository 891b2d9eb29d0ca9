// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RunStatus indicates how far a pipeline run progressed.
type RunStatus string

const (
	RunFailed           RunStatus = "failed"
	RunPersisted        RunStatus = "persisted"
	RunConverted        RunStatus = "converted"
	RunConversionFailed RunStatus = "conversion_failed"
)

// AssetRecord describes the fate of one image reference in a run.
type AssetRecord struct {
	// Src is the raw source attribute as it appeared in the document.
	Src string `json:"src" yaml:"src"`

	// URL is the absolute form of Src.
	URL string `json:"url" yaml:"url"`

	// LocalName is the file name the asset is stored under, if any.
	LocalName string `json:"local_name,omitempty" yaml:"local_name,omitempty"`

	// Outcome is one of "fetched", "skipped_inline", "skipped_existing", "failed".
	Outcome string `json:"outcome" yaml:"outcome"`

	// Error holds the failure reason for failed assets.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// RunManifest is written next to the rewritten document and records where
// every asset came from.
type RunManifest struct {
	Identifier string        `json:"identifier" yaml:"identifier"`
	SourceURL  string        `json:"source_url" yaml:"source_url"`
	HTMLPath   string        `json:"html_path" yaml:"html_path"`
	Rewritten  int           `json:"rewritten" yaml:"rewritten"`
	FetchedAt  time.Time     `json:"fetched_at" yaml:"fetched_at"`
	Assets     []AssetRecord `json:"assets" yaml:"assets"`
}

// RunRecord is one row of the run history.
type RunRecord struct {
	ID         int64     `json:"id" yaml:"id"`
	Identifier string    `json:"identifier" yaml:"identifier"`
	Status     RunStatus `json:"status" yaml:"status"`
	HTMLPath   string    `json:"html_path,omitempty" yaml:"html_path,omitempty"`
	OutputPath string    `json:"output_path,omitempty" yaml:"output_path,omitempty"`

	Fetched         int `json:"fetched" yaml:"fetched"`
	SkippedInline   int `json:"skipped_inline" yaml:"skipped_inline"`
	SkippedExisting int `json:"skipped_existing" yaml:"skipped_existing"`
	Failed          int `json:"failed" yaml:"failed"`

	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	Assets []AssetRecord `json:"assets,omitempty" yaml:"assets,omitempty"`
}

// Total returns the number of asset references processed in the run.
func (r RunRecord) Total() int {
	return r.Fetched + r.SkippedInline + r.SkippedExisting + r.Failed
}
