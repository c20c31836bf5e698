// Package store provides a SQLite-backed ledger of upload batches. Every
// accepted upload is recorded with its staged file paths and the id of the
// ingestion job it produced, so batches can be looked up after the fact
// (GET /batches/{id}) even once the job result has expired from the queue
// backend.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// ErrNotFound is returned by Get when no batch has the requested id.
var ErrNotFound = errors.New("store: batch not found")

// Batch is one recorded upload.
type Batch struct {
	// ID is the batch id, also the vector-store collection name.
	ID string
	// JobID is the id of the ingestion job enqueued for the batch.
	JobID string
	// FilePaths are the staged file locations, in upload order.
	FilePaths []string
	// CreatedAt is when the upload was accepted.
	CreatedAt time.Time
}

// Ledger persists and retrieves upload batches. Implementations must be safe
// for concurrent use.
type Ledger interface {
	// Record persists a batch. Recording the same id twice is an error.
	Record(ctx context.Context, b Batch) error
	// Get returns the batch with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (Batch, error)
	// Recent returns up to n batches, newest first.
	Recent(ctx context.Context, n int) ([]Batch, error)
	// Close releases any resources held by the ledger.
	Close() error
}

// SQLiteStore is a Ledger backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the batch ledger database.
// It resolves to ~/.resumechat/ledger.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".resumechat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "ledger.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS batches (
    id           TEXT    PRIMARY KEY,
    job_id       TEXT    NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (milliseconds)
);
CREATE INDEX IF NOT EXISTS idx_batches_created ON batches (created_at);
CREATE TABLE IF NOT EXISTS batch_files (
    batch_id     TEXT    NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
    position     INTEGER NOT NULL,
    path         TEXT    NOT NULL,
    PRIMARY KEY (batch_id, position)
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Record persists the batch and its file list in one transaction.
func (s *SQLiteStore) Record(ctx context.Context, b Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: record: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	const qb = `INSERT INTO batches (id, job_id, created_at) VALUES (?, ?, ?)`
	if _, err := tx.ExecContext(ctx, qb, b.ID, b.JobID, b.CreatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("store: record batch %s: %w", b.ID, err)
	}

	const qf = `INSERT INTO batch_files (batch_id, position, path) VALUES (?, ?, ?)`
	for i, p := range b.FilePaths {
		if _, err := tx.ExecContext(ctx, qf, b.ID, i, p); err != nil {
			return fmt.Errorf("store: record file %d of %s: %w", i, b.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: record: commit: %w", err)
	}
	return nil
}

// Get returns the batch with the given id and its files in upload order.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Batch, error) {
	var b Batch
	var ts int64
	const qb = `SELECT id, job_id, created_at FROM batches WHERE id = ?`
	err := s.db.QueryRowContext(ctx, qb, id).Scan(&b.ID, &b.JobID, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return Batch{}, ErrNotFound
	}
	if err != nil {
		return Batch{}, fmt.Errorf("store: get %s: %w", id, err)
	}
	b.CreatedAt = time.UnixMilli(ts)

	files, err := s.files(ctx, id)
	if err != nil {
		return Batch{}, err
	}
	b.FilePaths = files
	return b, nil
}

// Recent returns up to n batches, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Batch, error) {
	const q = `SELECT id, job_id, created_at FROM batches ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}

	var out []Batch
	for rows.Next() {
		var b Batch
		var ts int64
		if err := rows.Scan(&b.ID, &b.JobID, &ts); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		b.CreatedAt = time.UnixMilli(ts)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	// Release the single connection before querying file lists.
	_ = rows.Close()

	for i := range out {
		files, err := s.files(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].FilePaths = files
	}
	return out, nil
}

// files returns the staged paths of a batch in upload order.
func (s *SQLiteStore) files(ctx context.Context, id string) ([]string, error) {
	const q = `SELECT path FROM batch_files WHERE batch_id = ? ORDER BY position`
	rows, err := s.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("store: files %s: %w", id, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("store: files scan: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: files rows: %w", err)
	}
	return paths, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
