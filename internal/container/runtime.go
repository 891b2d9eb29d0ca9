// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container implements container runtime detection and execution
// for converters that ship as images.
package container

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const (
	binDocker = "docker"
	binPodman = "podman"
)

// Runtime provides container operations: checking availability, verifying
// images, and running containers.
type Runtime interface {
	// Name returns the runtime name ("docker" or "podman").
	Name() string

	// Available reports whether the runtime binary exists on PATH and
	// responds to an info command.
	Available() bool

	// ImageExists checks whether the named image exists locally.
	// Returns nil when the image is found, or an error describing the failure.
	ImageExists(image string) error

	// Run executes image with args. hostDir is mounted at the same path
	// inside the container so host paths resolve unchanged; workDir is the
	// container working directory.
	Run(ctx context.Context, image, hostDir, workDir string, args []string) error
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(name string, args ...string) error
	RunContext(ctx context.Context, name string, args []string) (stderr string, err error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunSilent(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (o *osExecutor) RunContext(ctx context.Context, name string, args []string) (string, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	err := cmd.Run()
	return strings.TrimSpace(stderr.String()), err
}

// runtime implements Runtime for a specific container binary. Both Docker
// and Podman share the same logic; they differ only in binary name and the
// subcommand used to check image existence.
type runtime struct {
	bin           string
	imageCheckCmd []string // e.g. ["image", "inspect"] for docker
	exec          executor
}

func (r *runtime) Name() string { return r.bin }

func (r *runtime) Available() bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	return r.exec.RunSilent(r.bin, "info") == nil
}

func (r *runtime) ImageExists(image string) error {
	args := make([]string, 0, len(r.imageCheckCmd)+1)
	args = append(args, r.imageCheckCmd...)
	args = append(args, image)

	if err := r.exec.RunSilent(r.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) Run(ctx context.Context, image, hostDir, workDir string, args []string) error {
	full := RunArgs(image, hostDir, workDir, args)
	stderr, err := r.exec.RunContext(ctx, r.bin, full)
	if err != nil {
		if stderr != "" {
			return fmt.Errorf("running %s container %s: %w: %s", r.bin, image, err, stderr)
		}
		return fmt.Errorf("running %s container %s: %w", r.bin, image, err)
	}
	return nil
}

// RunArgs returns the runtime arguments for running image with hostDir
// bind-mounted at its own path.
func RunArgs(image, hostDir, workDir string, args []string) []string {
	full := []string{"run", "--rm", "-v", hostDir + ":" + hostDir}
	if workDir != "" {
		full = append(full, "-w", workDir)
	}
	full = append(full, image)
	return append(full, args...)
}

// imageCheck maps each supported runtime to the subcommand that reports
// whether an image exists locally.
var imageCheck = map[string][]string{
	binDocker: {"image", "inspect"},
	binPodman: {"image", "exists"},
}

func newRuntime(bin string, exec executor) *runtime {
	return &runtime{bin: bin, imageCheckCmd: imageCheck[bin], exec: exec}
}

var defaultExec = &osExecutor{}

// DetectRuntime returns the first operational runtime. A non-empty
// preferred name ("docker" or "podman") is the only candidate tried;
// otherwise docker is tried before podman.
func DetectRuntime(preferred string) (Runtime, error) {
	return detectRuntime(defaultExec, preferred)
}

func detectRuntime(exec executor, preferred string) (Runtime, error) {
	candidates := []string{binDocker, binPodman}
	if preferred != "" {
		if _, ok := imageCheck[preferred]; !ok {
			return nil, fmt.Errorf("unknown container runtime %q (want %s or %s)", preferred, binDocker, binPodman)
		}
		candidates = []string{preferred}
	}

	for _, bin := range candidates {
		if rt := newRuntime(bin, exec); rt.Available() {
			return rt, nil
		}
	}
	return nil, fmt.Errorf("no container runtime available: tried %s", strings.Join(candidates, ", "))
}
