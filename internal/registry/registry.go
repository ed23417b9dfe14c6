// Package registry provides a SQLite catalog of extractions across the cache.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one recorded extraction. The cache directory remains the source
// of truth; the registry only exists so "what has been extracted" is
// answerable without walking the cache tree.
type Entry struct {
	Key          string    `json:"key"`
	SourcePath   string    `json:"source_path"`
	OriginalName string    `json:"original_name"`
	Format       string    `json:"format"`
	SizeBytes    int64     `json:"size_bytes"`
	Chunks       int       `json:"chunks"`
	TotalTokens  int       `json:"total_tokens"`
	ExtractedAt  time.Time `json:"extracted_at"`
}

// Registry records extractions in a SQLite database.
type Registry struct {
	db *sql.DB
}

// Open opens or creates the registry database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func Open(dbPath string) (*Registry, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create registry directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Registry{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS extractions (
		key TEXT PRIMARY KEY,
		source_path TEXT NOT NULL,
		original_name TEXT NOT NULL,
		format TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		chunks INTEGER NOT NULL,
		total_tokens INTEGER NOT NULL,
		extracted_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_extractions_format ON extractions(format);
	CREATE INDEX IF NOT EXISTS idx_extractions_extracted_at ON extractions(extracted_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Record inserts or replaces the entry for its key.
func (r *Registry) Record(ctx context.Context, e *Entry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO extractions
		 (key, source_path, original_name, format, size_bytes, chunks, total_tokens, extracted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Key, e.SourcePath, e.OriginalName, e.Format, e.SizeBytes, e.Chunks, e.TotalTokens, e.ExtractedAt,
	)
	return err
}

// Get returns the entry for key, or nil when the key is unknown.
func (r *Registry) Get(ctx context.Context, key string) (*Entry, error) {
	var e Entry
	err := r.db.QueryRowContext(ctx,
		`SELECT key, source_path, original_name, format, size_bytes, chunks, total_tokens, extracted_at
		 FROM extractions WHERE key = ?`, key,
	).Scan(&e.Key, &e.SourcePath, &e.OriginalName, &e.Format, &e.SizeBytes, &e.Chunks, &e.TotalTokens, &e.ExtractedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns entries newest first.
func (r *Registry) List(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, source_path, original_name, format, size_bytes, chunks, total_tokens, extracted_at
		 FROM extractions ORDER BY extracted_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.SourcePath, &e.OriginalName, &e.Format, &e.SizeBytes, &e.Chunks, &e.TotalTokens, &e.ExtractedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Delete removes the entry for key.
func (r *Registry) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM extractions WHERE key = ?`, key)
	return err
}

// Count returns the number of recorded extractions.
func (r *Registry) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM extractions`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (r *Registry) Close() error {
	return r.db.Close()
}
