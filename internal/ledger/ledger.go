// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger keeps a SQLite history of pipeline runs and the outcome of
// every asset each run touched.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/arxiv-docx/pkg/types"
)

// DBFile is the database file name inside the ledger directory.
const DBFile = "runs.db"

const defaultLimit = 50

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("run not found")

// Store manages the run ledger database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates dir/runs.db and its schema.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	path := filepath.Join(dir, DBFile)
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			identifier TEXT NOT NULL,
			status TEXT NOT NULL,
			html_path TEXT,
			output_path TEXT,
			fetched INTEGER NOT NULL DEFAULT 0,
			skipped_inline INTEGER NOT NULL DEFAULT 0,
			skipped_existing INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS assets (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			src TEXT NOT NULL,
			url TEXT NOT NULL,
			local_name TEXT,
			outcome TEXT NOT NULL,
			error TEXT,
			PRIMARY KEY (run_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_identifier ON runs(identifier)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordRun inserts rec and its assets in one transaction and returns the
// new run id.
func (s *Store) RecordRun(ctx context.Context, rec types.RunRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (identifier, status, html_path, output_path,
			fetched, skipped_inline, skipped_existing, failed, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Identifier, string(rec.Status), rec.HTMLPath, rec.OutputPath,
		rec.Fetched, rec.SkippedInline, rec.SkippedExisting, rec.Failed, rec.Error,
		formatTime(rec.StartedAt), formatTime(rec.FinishedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	if len(rec.Assets) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO assets (run_id, position, src, url, local_name, outcome, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for i, a := range rec.Assets {
			if _, err := stmt.ExecContext(ctx, id, i, a.Src, a.URL, a.LocalName, a.Outcome, a.Error); err != nil {
				return 0, fmt.Errorf("inserting asset %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return id, nil
}

// Runs returns the most recent runs, newest first, without their assets.
// A non-positive limit uses a default of 50.
func (s *Store) Runs(ctx context.Context, limit int) ([]types.RunRecord, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, identifier, status, html_path, output_path,
			fetched, skipped_inline, skipped_existing, failed, error, started_at, finished_at
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []types.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// Run returns one run with its assets in document order.
func (s *Store) Run(ctx context.Context, id int64) (types.RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, identifier, status, html_path, output_path,
			fetched, skipped_inline, skipped_existing, failed, error, started_at, finished_at
		 FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.RunRecord{}, fmt.Errorf("run %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.RunRecord{}, err
	}

	rec.Assets, err = s.Assets(ctx, id)
	if err != nil {
		return types.RunRecord{}, err
	}
	return rec, nil
}

// Assets returns the asset records of a run in document order.
func (s *Store) Assets(ctx context.Context, runID int64) ([]types.AssetRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT src, url, local_name, outcome, error FROM assets
		 WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying assets: %w", err)
	}
	defer rows.Close()

	var assets []types.AssetRecord
	for rows.Next() {
		var a types.AssetRecord
		var localName, errText sql.NullString
		if err := rows.Scan(&a.Src, &a.URL, &localName, &a.Outcome, &errText); err != nil {
			return nil, fmt.Errorf("scanning asset: %w", err)
		}
		a.LocalName = localName.String
		a.Error = errText.String
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (types.RunRecord, error) {
	var rec types.RunRecord
	var status string
	var htmlPath, outputPath, errText sql.NullString
	var started, finished string
	err := row.Scan(&rec.ID, &rec.Identifier, &status, &htmlPath, &outputPath,
		&rec.Fetched, &rec.SkippedInline, &rec.SkippedExisting, &rec.Failed,
		&errText, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("scanning run: %w", err)
	}
	rec.Status = types.RunStatus(status)
	rec.HTMLPath = htmlPath.String
	rec.OutputPath = outputPath.String
	rec.Error = errText.String
	rec.StartedAt = parseTime(started)
	rec.FinishedAt = parseTime(finished)
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
