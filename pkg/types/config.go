// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines configuration and run records shared by the
// arxiv-docx packages.
package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the client-wide request timeout. Zero means no timeout,
	// which is the default for asset retrievals.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "arxiv-docx/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// FetchConfig holds settings for the document and asset fetch phases.
type FetchConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the host prefix that serves rendered papers
	// (default "https://ar5iv.labs.arxiv.org"). Documents are fetched from
	// BaseURL/html/<id> and relative asset sources resolve against BaseURL.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// DocumentTimeout bounds the main document request (default 10s).
	DocumentTimeout time.Duration `json:"document_timeout" yaml:"document_timeout"`

	// DocumentRetries is the number of retries on 429/5xx for the main
	// document (default 3, negative disables). Asset fetches are never retried.
	DocumentRetries int `json:"document_retries" yaml:"document_retries"`

	// Concurrency caps the number of asset retrievals in flight (default 5).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// StrictNames serializes writers that resolve to the same local name so
	// exactly one of them writes.
	StrictNames bool `json:"strict_names" yaml:"strict_names"`
}

// ConversionBackend identifies the HTML-to-document conversion tool.
type ConversionBackend string

const (
	BackendNone      ConversionBackend = "none"
	BackendPandoc    ConversionBackend = "pandoc"
	BackendContainer ConversionBackend = "container"
)

// ConversionConfig holds settings for the conversion stage.
type ConversionConfig struct {
	// Backend selects the conversion tool: pandoc, container, or none.
	Backend ConversionBackend `json:"backend" yaml:"backend"`

	// Binary is the converter executable for the pandoc backend (default "pandoc").
	Binary string `json:"binary" yaml:"binary"`

	// Image is the container image for the container backend
	// (default "pandoc/core:latest").
	Image string `json:"image" yaml:"image"`

	// Runtime pins the container runtime ("docker" or "podman"). Empty
	// detects docker, then podman.
	Runtime string `json:"runtime,omitempty" yaml:"runtime,omitempty"`

	// Extension is the output file extension (default ".docx").
	Extension string `json:"extension" yaml:"extension"`
}

// CleanupConfig holds settings for removing transient assets after conversion.
type CleanupConfig struct {
	// Enabled turns the cleanup pass on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Extensions lists the file extensions treated as transient assets.
	Extensions []string `json:"extensions" yaml:"extensions"`
}

// PipelineConfig groups all stage configurations for one pipeline run.
type PipelineConfig struct {
	// OutputDir receives the rewritten document, its manifest, and the assets.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// RewritePrefixes lists the server-relative source prefixes that are
	// rewritten to local paths (default "/html", "/assets").
	RewritePrefixes []string `json:"rewrite_prefixes" yaml:"rewrite_prefixes"`

	Fetch      FetchConfig      `json:"fetch" yaml:"fetch"`
	Conversion ConversionConfig `json:"conversion" yaml:"conversion"`
	Cleanup    CleanupConfig    `json:"cleanup" yaml:"cleanup"`
}

// Defaults used when a config field is left at its zero value.
const (
	DefaultBaseURL         = "https://ar5iv.labs.arxiv.org"
	DefaultOutputDir       = "output"
	DefaultDocumentTimeout = 10 * time.Second
	DefaultDocumentRetries = 3
	DefaultConcurrency     = 5
	DefaultUserAgent       = "arxiv-docx/0.1"
	DefaultPandocBinary    = "pandoc"
	DefaultPandocImage     = "pandoc/core:latest"
	DefaultExtension       = ".docx"
)

// DefaultRewritePrefixes are the ar5iv server-relative asset prefixes.
var DefaultRewritePrefixes = []string{"/html", "/assets"}

// DefaultImageExtensions are the extensions removed by the cleanup pass.
var DefaultImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".webp"}

// WithDefaults returns a copy of c with zero-valued fields filled in.
func (c PipelineConfig) WithDefaults() PipelineConfig {
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if len(c.RewritePrefixes) == 0 {
		c.RewritePrefixes = append([]string(nil), DefaultRewritePrefixes...)
	}
	if c.Fetch.BaseURL == "" {
		c.Fetch.BaseURL = DefaultBaseURL
	}
	if c.Fetch.DocumentTimeout <= 0 {
		c.Fetch.DocumentTimeout = DefaultDocumentTimeout
	}
	if c.Fetch.DocumentRetries == 0 {
		c.Fetch.DocumentRetries = DefaultDocumentRetries
	}
	if c.Fetch.Concurrency < 1 {
		c.Fetch.Concurrency = DefaultConcurrency
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = DefaultUserAgent
	}
	if c.Conversion.Backend == "" {
		c.Conversion.Backend = BackendPandoc
	}
	if c.Conversion.Binary == "" {
		c.Conversion.Binary = DefaultPandocBinary
	}
	if c.Conversion.Image == "" {
		c.Conversion.Image = DefaultPandocImage
	}
	if c.Conversion.Extension == "" {
		c.Conversion.Extension = DefaultExtension
	}
	if len(c.Cleanup.Extensions) == 0 {
		c.Cleanup.Extensions = append([]string(nil), DefaultImageExtensions...)
	}
	return c
}
