// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/pdiddy/arxiv-docx/pkg/types"
)

// commandRunner abstracts process execution for testing.
type commandRunner interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args []string) (stderr string, err error)
}

type osRunner struct{}

func (osRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osRunner) Run(ctx context.Context, name string, args []string) (string, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	err := cmd.Run()
	return strings.TrimSpace(stderr.String()), err
}

// PandocConverter runs a locally installed pandoc as
// "pandoc <input> -o <output>".
type PandocConverter struct {
	bin    string
	ext    string
	runner commandRunner
}

// NewPandocConverter returns a converter invoking bin (default "pandoc")
// and writing files with extension ext (default ".docx").
func NewPandocConverter(bin, ext string) *PandocConverter {
	if bin == "" {
		bin = types.DefaultPandocBinary
	}
	if ext == "" {
		ext = types.DefaultExtension
	}
	return &PandocConverter{bin: bin, ext: ext, runner: osRunner{}}
}

// Convert runs pandoc on inputPath. A missing binary or non-zero exit is
// returned as a *ConversionError.
func (p *PandocConverter) Convert(ctx context.Context, inputPath string) (string, error) {
	if _, err := p.runner.LookPath(p.bin); err != nil {
		return "", &ConversionError{Tool: p.bin, Input: inputPath, Missing: true, Err: err}
	}

	out := OutputPath(inputPath, p.ext)
	stderr, err := p.runner.Run(ctx, p.bin, []string{inputPath, "-o", out})
	if err != nil {
		return "", &ConversionError{
			Tool:     p.bin,
			Input:    inputPath,
			Output:   out,
			ExitCode: exitCode(err),
			Stderr:   stderr,
			Err:      err,
		}
	}
	return out, nil
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
