// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/arxiv-docx/pkg/types"
)

func TestPipelineConfigDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := pipelineConfig(v)
	assert.Equal(t, types.DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, types.DefaultBaseURL, cfg.Fetch.BaseURL)
	assert.Equal(t, types.DefaultConcurrency, cfg.Fetch.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.Fetch.DocumentTimeout)
	assert.True(t, cfg.Fetch.StrictNames)
	assert.Equal(t, types.BackendPandoc, cfg.Conversion.Backend)
	assert.True(t, cfg.Cleanup.Enabled)
	assert.Equal(t, types.DefaultImageExtensions, cfg.Cleanup.Extensions)
	assert.Equal(t, types.DefaultRewritePrefixes, cfg.RewritePrefixes)
	assert.Equal(t, filepath.Join("output", historyDirName), historyDir(v, cfg))
}

func TestPipelineConfigOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set(keyOutputDir, "papers")
	v.Set(keyConcurrency, 2)
	v.Set(keyBackend, "none")
	v.Set(keyDocumentRetries, -1)
	v.Set(keyHistoryDir, "/var/lib/arxiv-docx")

	cfg := pipelineConfig(v)
	assert.Equal(t, "papers", cfg.OutputDir)
	assert.Equal(t, 2, cfg.Fetch.Concurrency)
	assert.Equal(t, types.BackendNone, cfg.Conversion.Backend)
	assert.Equal(t, -1, cfg.Fetch.DocumentRetries)
	assert.Equal(t, "/var/lib/arxiv-docx", historyDir(v, cfg))

	v.Set(keyHistoryEnabled, false)
	assert.Empty(t, historyDir(v, cfg))
	store, err := openLedger(v, cfg)
	assert.NoError(t, err)
	assert.Nil(t, store)
}

func TestHistoryTable(t *testing.T) {
	runs := []types.RunRecord{
		{ID: 3, Identifier: "2403.01915", Status: types.RunConverted, Fetched: 4, SkippedInline: 1, Failed: 1,
			HTMLPath: "output/2403.01915.html", OutputPath: "output/2403.01915.docx"},
		{ID: 2, Identifier: "2401.00001", Status: types.RunPersisted, SkippedExisting: 2, HTMLPath: "output/2401.00001.html"},
	}
	data := historyTable(runs)
	assert.Len(t, data, 3)
	assert.Equal(t, "ID", data[0][0])
	assert.Equal(t, []string{"3", "2403.01915", "converted", "4", "1", "1"}, data[1][:6])
	assert.Equal(t, "output/2403.01915.docx", data[1][7])
	assert.Equal(t, "output/2401.00001.html", data[2][7])
}
