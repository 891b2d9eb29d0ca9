// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cleanup removes transient image files left behind after a
// document has been converted.
package cleanup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Reasons a file could not be removed.
const (
	ReasonMissing    = "missing"
	ReasonUnreadable = "unreadable"
	ReasonRemove     = "remove"
)

// CleanupError describes one file the pass could not remove. It never
// aborts the pass.
type CleanupError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup %s (%s): %v", e.Path, e.Reason, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// Report lists what a cleanup pass did.
type Report struct {
	Removed []string
	Errors  []*CleanupError
}

// HasErrors reports whether any file was skipped.
func (r Report) HasErrors() bool {
	return len(r.Errors) > 0
}

// Clean walks root recursively and removes regular files whose extension
// (case-insensitive) is in extensions. Files that are missing or cannot be
// opened at the time of the pass are reported and skipped. logger may be nil.
func Clean(root string, extensions []string, logger *zap.Logger) Report {
	if logger == nil {
		logger = zap.NewNop()
	}
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = true
	}

	var report Report
	fail := func(path, reason string, err error) {
		logger.Warn("cleanup skipped file", zap.String("path", path), zap.String("reason", reason), zap.Error(err))
		report.Errors = append(report.Errors, &CleanupError{Path: path, Reason: reason, Err: err})
	}

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			reason := ReasonUnreadable
			if errors.Is(err, fs.ErrNotExist) {
				reason = ReasonMissing
			}
			fail(path, reason, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		if reason, err := checkAccessible(path); err != nil {
			fail(path, reason, err)
			return nil
		}
		if err := os.Remove(path); err != nil {
			fail(path, ReasonRemove, err)
			return nil
		}
		logger.Debug("removed asset", zap.String("path", path))
		report.Removed = append(report.Removed, path)
		return nil
	})

	return report
}

// checkAccessible reports files that vanished or cannot be opened.
func checkAccessible(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ReasonMissing, err
		}
		return ReasonUnreadable, err
	}
	f.Close()
	return "", nil
}
