// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/arxiv-docx/internal/container"
	"github.com/pdiddy/arxiv-docx/pkg/types"
)

// ContainerConverter runs pandoc from a container image. It depends on a
// container.Runtime (docker or podman) injected at construction time. The
// document's directory is mounted at its host path and the container runs
// in the current working directory, so relative image paths written by the
// rewriter resolve exactly as they do on the host.
type ContainerConverter struct {
	runtime container.Runtime
	image   string
	ext     string
	getwd   func() (string, error)
}

// NewContainerConverter creates a converter that uses rt to run image. It
// verifies that the image exists locally before returning.
func NewContainerConverter(rt container.Runtime, image, ext string) (*ContainerConverter, error) {
	if image == "" {
		image = types.DefaultPandocImage
	}
	if ext == "" {
		ext = types.DefaultExtension
	}
	if err := rt.ImageExists(image); err != nil {
		return nil, fmt.Errorf("%s image not available in %s: %w", image, rt.Name(), err)
	}
	return &ContainerConverter{runtime: rt, image: image, ext: ext, getwd: os.Getwd}, nil
}

// Convert runs the image as "<image> <input> -o <output>".
func (c *ContainerConverter) Convert(ctx context.Context, inputPath string) (string, error) {
	tool := c.runtime.Name() + ":" + c.image
	out := OutputPath(inputPath, c.ext)

	absIn, err := filepath.Abs(inputPath)
	if err != nil {
		return "", &ConversionError{Tool: tool, Input: inputPath, Output: out, ExitCode: -1, Err: err}
	}
	wd, err := c.getwd()
	if err != nil {
		return "", &ConversionError{Tool: tool, Input: inputPath, Output: out, ExitCode: -1, Err: err}
	}

	if err := c.runtime.Run(ctx, c.image, filepath.Dir(absIn), wd, []string{inputPath, "-o", out}); err != nil {
		return "", &ConversionError{Tool: tool, Input: inputPath, Output: out, ExitCode: exitCode(err), Err: err}
	}
	return out, nil
}
