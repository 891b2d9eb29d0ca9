// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/pdiddy/arxiv-docx/internal/convert"
	"github.com/pdiddy/arxiv-docx/internal/ledger"
	"github.com/pdiddy/arxiv-docx/pkg/types"
)

// Config keys. Nested keys map to ARXIV_DOCX_<SECTION>_<KEY> in the
// environment.
const (
	keyOutputDir         = "output_dir"
	keyRewritePrefixes   = "rewrite_prefixes"
	keyBaseURL           = "fetch.base_url"
	keyTimeout           = "fetch.timeout"
	keyUserAgent         = "fetch.user_agent"
	keyDocumentTimeout   = "fetch.document_timeout"
	keyDocumentRetries   = "fetch.document_retries"
	keyConcurrency       = "fetch.concurrency"
	keyStrictNames       = "fetch.strict_names"
	keyBackend           = "conversion.backend"
	keyBinary            = "conversion.binary"
	keyImage             = "conversion.image"
	keyRuntime           = "conversion.runtime"
	keyExtension         = "conversion.extension"
	keyCleanupEnabled    = "cleanup.enabled"
	keyCleanupExtensions = "cleanup.extensions"
	keyHistoryEnabled    = "history.enabled"
	keyHistoryDir        = "history.dir"
)

// historyDirName is the ledger directory inside the output directory.
const historyDirName = ".history"

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyOutputDir, types.DefaultOutputDir)
	v.SetDefault(keyBaseURL, types.DefaultBaseURL)
	v.SetDefault(keyUserAgent, types.DefaultUserAgent)
	v.SetDefault(keyDocumentTimeout, types.DefaultDocumentTimeout)
	v.SetDefault(keyDocumentRetries, types.DefaultDocumentRetries)
	v.SetDefault(keyConcurrency, types.DefaultConcurrency)
	v.SetDefault(keyStrictNames, true)
	v.SetDefault(keyBackend, string(types.BackendPandoc))
	v.SetDefault(keyCleanupEnabled, true)
	v.SetDefault(keyCleanupExtensions, types.DefaultImageExtensions)
	v.SetDefault(keyHistoryEnabled, true)
}

// pipelineConfig builds the pipeline configuration from v.
func pipelineConfig(v *viper.Viper) types.PipelineConfig {
	cfg := types.PipelineConfig{
		OutputDir:       v.GetString(keyOutputDir),
		RewritePrefixes: v.GetStringSlice(keyRewritePrefixes),
		Fetch: types.FetchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   v.GetDuration(keyTimeout),
				UserAgent: v.GetString(keyUserAgent),
			},
			BaseURL:         v.GetString(keyBaseURL),
			DocumentTimeout: v.GetDuration(keyDocumentTimeout),
			DocumentRetries: v.GetInt(keyDocumentRetries),
			Concurrency:     v.GetInt(keyConcurrency),
			StrictNames:     v.GetBool(keyStrictNames),
		},
		Conversion: types.ConversionConfig{
			Backend:   types.ConversionBackend(v.GetString(keyBackend)),
			Binary:    v.GetString(keyBinary),
			Image:     v.GetString(keyImage),
			Runtime:   v.GetString(keyRuntime),
			Extension: v.GetString(keyExtension),
		},
		Cleanup: types.CleanupConfig{
			Enabled:    v.GetBool(keyCleanupEnabled),
			Extensions: v.GetStringSlice(keyCleanupExtensions),
		},
	}
	return cfg.WithDefaults()
}

// historyDir returns the ledger directory, or "" when history is disabled.
func historyDir(v *viper.Viper, cfg types.PipelineConfig) string {
	if !v.GetBool(keyHistoryEnabled) {
		return ""
	}
	if dir := v.GetString(keyHistoryDir); dir != "" {
		return dir
	}
	return filepath.Join(cfg.OutputDir, historyDirName)
}

// openLedger opens the run ledger, or returns nil when history is disabled.
func openLedger(v *viper.Viper, cfg types.PipelineConfig) (*ledger.Store, error) {
	dir := historyDir(v, cfg)
	if dir == "" {
		return nil, nil
	}
	return ledger.Open(dir)
}

// newConverter builds the configured converter; BackendNone yields nil.
func newConverter(cfg types.PipelineConfig) (convert.Converter, error) {
	return convert.New(cfg.Conversion)
}
