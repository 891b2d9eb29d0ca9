// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists asset payloads in a single directory under their LocalName.
// A name that already exists is never overwritten.
//
// Writers targeting different names never interfere. Without WithNameLock,
// two writers targeting the same name may both pass the existence check;
// both then write identical content and the later rename wins.
type Store struct {
	dir   string
	locks *nameLocks
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithNameLock serializes Put calls per LocalName so exactly one writer
// stores a given name and the rest report it as existing.
func WithNameLock() StoreOption {
	return func(s *Store) {
		s.locks = &nameLocks{locks: make(map[string]*sync.Mutex)}
	}
}

// NewStore returns a Store rooted at dir. Call Prepare before the first Put.
func NewStore(dir string, opts ...StoreOption) *Store {
	s := &Store{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StoreResult describes a Put.
type StoreResult struct {
	LocalName string
	Path      string
	Bytes     int64
	Skipped   bool
}

// Dir returns the directory assets are written to.
func (s *Store) Dir() string { return s.dir }

// Prepare creates the store directory and its parents. It is idempotent.
func (s *Store) Prepare() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", s.dir, err)
	}
	return nil
}

// Path returns the on-disk path for a local name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Exists reports whether a file named name is already stored.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Put stores data under LocalName(rawURL) unless that name already exists,
// in which case it reports Skipped. Data lands in a temp file first and is
// renamed into place, so a failed write never leaves a partial asset.
func (s *Store) Put(rawURL string, data []byte) (StoreResult, error) {
	name := LocalName(rawURL)
	dest := s.Path(name)
	res := StoreResult{LocalName: name, Path: dest}

	if s.locks != nil {
		unlock := s.locks.lock(name)
		defer unlock()
	}

	if s.Exists(name) {
		res.Skipped = true
		return res, nil
	}

	tmpFile, err := os.CreateTemp(s.dir, ".asset-*.tmp")
	if err != nil {
		return res, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return res, fmt.Errorf("writing %s: %w", name, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return res, fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return res, fmt.Errorf("renaming temp file: %w", err)
	}
	res.Bytes = int64(n)
	return res, nil
}

// nameLocks hands out one mutex per local name.
type nameLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *nameLocks) lock(name string) func() {
	l.mu.Lock()
	m, ok := l.locks[name]
	if !ok {
		m = &sync.Mutex{}
		l.locks[name] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
