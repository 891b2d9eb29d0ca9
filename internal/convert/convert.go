// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns a rewritten HTML document into a word-processor
// document through a pluggable backend.
package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pdiddy/arxiv-docx/internal/container"
	"github.com/pdiddy/arxiv-docx/pkg/types"
)

// Converter transforms the document at inputPath and returns the path of
// the produced file. Different backends (pandoc binary, pandoc container)
// implement this interface.
type Converter interface {
	Convert(ctx context.Context, inputPath string) (outputPath string, err error)
}

// ConversionError reports a converter that is missing or exited non-zero.
// The input document is left in place.
type ConversionError struct {
	Tool     string
	Input    string
	Output   string
	Missing  bool
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ConversionError) Error() string {
	if e.Missing {
		return fmt.Sprintf("converter %s is not installed: %v", e.Tool, e.Err)
	}
	msg := fmt.Sprintf("converting %s with %s: %v", e.Input, e.Tool, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ConversionError) Unwrap() error { return e.Err }

// OutputPath swaps the extension of inputPath for ext (".docx").
func OutputPath(inputPath, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ext
}

// New builds the converter selected by cfg. BackendNone yields a nil
// Converter and no error.
func New(cfg types.ConversionConfig) (Converter, error) {
	switch cfg.Backend {
	case types.BackendNone:
		return nil, nil
	case types.BackendPandoc, "":
		return NewPandocConverter(cfg.Binary, cfg.Extension), nil
	case types.BackendContainer:
		rt, err := container.DetectRuntime(cfg.Runtime)
		if err != nil {
			return nil, err
		}
		c, err := NewContainerConverter(rt, cfg.Image, cfg.Extension)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown conversion backend %q (want pandoc, container, or none)", cfg.Backend)
	}
}
