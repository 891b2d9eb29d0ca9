// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import "fmt"

// DocumentFetchError means the main document could not be retrieved. No
// files are written and the asset phase is not entered.
type DocumentFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DocumentFetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetching document %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching document %s: %v", e.URL, e.Err)
}

func (e *DocumentFetchError) Unwrap() error { return e.Err }

// PersistError means the rewritten document could not be written.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("writing document %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
