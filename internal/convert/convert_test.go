// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/pdiddy/arxiv-docx/pkg/types"
)

// fakeRunner implements commandRunner for testing.
type fakeRunner struct {
	missing  bool
	stderr   string
	err      error
	gotName  string
	gotArgs  []string
	runCalls int
}

func (f *fakeRunner) LookPath(file string) (string, error) {
	if f.missing {
		return "", errors.New("executable file not found in $PATH")
	}
	return "/usr/bin/" + file, nil
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string) (string, error) {
	f.runCalls++
	f.gotName, f.gotArgs = name, args
	return f.stderr, f.err
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		in, ext, want string
	}{
		{"output/2403.01915.html", ".docx", "output/2403.01915.docx"},
		{"output/2403.01915v2.html", "docx", "output/2403.01915v2.docx"},
		{"paper", ".odt", "paper.odt"},
		{"/abs/dir/a.htm", ".docx", "/abs/dir/a.docx"},
	}
	for _, tt := range tests {
		if got := OutputPath(tt.in, tt.ext); got != tt.want {
			t.Errorf("OutputPath(%q, %q) = %q, want %q", tt.in, tt.ext, got, tt.want)
		}
	}
}

func TestPandocConvert(t *testing.T) {
	tests := []struct {
		name        string
		runner      *fakeRunner
		wantOut     string
		wantMissing bool
		wantErr     bool
		wantRuns    int
	}{
		{
			name:     "successful conversion",
			runner:   &fakeRunner{},
			wantOut:  "output/2403.01915.docx",
			wantRuns: 1,
		},
		{
			name:        "missing binary",
			runner:      &fakeRunner{missing: true},
			wantMissing: true,
			wantErr:     true,
		},
		{
			name:     "non-zero exit",
			runner:   &fakeRunner{err: errors.New("exit status 1"), stderr: "pandoc: could not fetch resource"},
			wantErr:  true,
			wantRuns: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPandocConverter("", "")
			p.runner = tt.runner

			out, err := p.Convert(context.Background(), "output/2403.01915.html")
			if tt.runner.runCalls != tt.wantRuns {
				t.Errorf("runs = %d, want %d", tt.runner.runCalls, tt.wantRuns)
			}
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if out != tt.wantOut {
					t.Errorf("output = %q, want %q", out, tt.wantOut)
				}
				wantArgs := []string{"output/2403.01915.html", "-o", "output/2403.01915.docx"}
				if tt.runner.gotName != "pandoc" || !reflect.DeepEqual(tt.runner.gotArgs, wantArgs) {
					t.Errorf("ran %s %v, want pandoc %v", tt.runner.gotName, tt.runner.gotArgs, wantArgs)
				}
				return
			}

			var convErr *ConversionError
			if !errors.As(err, &convErr) {
				t.Fatalf("error %v is not a *ConversionError", err)
			}
			if convErr.Missing != tt.wantMissing {
				t.Errorf("Missing = %v, want %v", convErr.Missing, tt.wantMissing)
			}
			if convErr.Input != "output/2403.01915.html" {
				t.Errorf("Input = %q", convErr.Input)
			}
			if tt.runner.stderr != "" && convErr.Stderr != tt.runner.stderr {
				t.Errorf("Stderr = %q, want %q", convErr.Stderr, tt.runner.stderr)
			}
		})
	}
}

// fakeRuntime implements container.Runtime for testing.
type fakeRuntime struct {
	imageErr   error
	runErr     error
	gotImage   string
	gotHostDir string
	gotWorkDir string
	gotArgs    []string
}

func (f *fakeRuntime) Name() string { return "docker" }

func (f *fakeRuntime) Available() bool { return true }

func (f *fakeRuntime) ImageExists(string) error { return f.imageErr }

func (f *fakeRuntime) Run(_ context.Context, image, hostDir, workDir string, args []string) error {
	f.gotImage, f.gotHostDir, f.gotWorkDir, f.gotArgs = image, hostDir, workDir, args
	return f.runErr
}

func TestNewContainerConverterRequiresImage(t *testing.T) {
	_, err := NewContainerConverter(&fakeRuntime{imageErr: errors.New("no such image")}, "", "")
	if err == nil {
		t.Fatal("expected error when image is missing")
	}
}

func TestContainerConvert(t *testing.T) {
	rt := &fakeRuntime{}
	c, err := NewContainerConverter(rt, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.getwd = func() (string, error) { return "/work", nil }

	out, err := c.Convert(context.Background(), "/work/output/2403.01915.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "/work/output/2403.01915.docx" {
		t.Errorf("output = %q", out)
	}
	if rt.gotImage != types.DefaultPandocImage {
		t.Errorf("image = %q, want %q", rt.gotImage, types.DefaultPandocImage)
	}
	if rt.gotHostDir != "/work/output" || rt.gotWorkDir != "/work" {
		t.Errorf("mount = %q, workdir = %q", rt.gotHostDir, rt.gotWorkDir)
	}
	wantArgs := []string{"/work/output/2403.01915.html", "-o", "/work/output/2403.01915.docx"}
	if !reflect.DeepEqual(rt.gotArgs, wantArgs) {
		t.Errorf("args = %v, want %v", rt.gotArgs, wantArgs)
	}
}

func TestContainerConvertFailure(t *testing.T) {
	rt := &fakeRuntime{runErr: errors.New("container exited with code 1")}
	c, err := NewContainerConverter(rt, "pandoc/core:3", ".docx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.getwd = func() (string, error) { return "/work", nil }

	_, err = c.Convert(context.Background(), "/work/output/a.html")
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("error %v is not a *ConversionError", err)
	}
	if convErr.Tool != "docker:pandoc/core:3" {
		t.Errorf("Tool = %q", convErr.Tool)
	}
}

func TestNewBackends(t *testing.T) {
	c, err := New(types.ConversionConfig{Backend: types.BackendNone})
	if err != nil || c != nil {
		t.Errorf("none backend = (%v, %v), want (nil, nil)", c, err)
	}

	c, err = New(types.ConversionConfig{Backend: types.BackendPandoc})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.(*PandocConverter); !ok {
		t.Errorf("pandoc backend returned %T", c)
	}

	if _, err := New(types.ConversionConfig{Backend: "word"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
