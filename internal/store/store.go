// Package store persists operator enable/disable overrides for patches so
// that toggles survive reloads and restarts.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

const schema = `
CREATE TABLE IF NOT EXISTS overrides (
    title_id   INTEGER NOT NULL,
    patch_id   INTEGER NOT NULL,
    enabled    INTEGER NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (title_id, patch_id)
);
`

// Override forces a patch on or off regardless of its file's default.
type Override struct {
	TitleID uint32
	PatchID uint32
	Enabled bool
}

// Toggler is the subset of the patching system overrides are replayed into.
type Toggler interface {
	SetEnabled(titleID, patchID uint32, enabled bool) int
}

// SQLiteStore keeps overrides in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and creates the schema.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Set upserts the override for one patch.
func (s *SQLiteStore) Set(ctx context.Context, o Override) error {
	const q = `
		INSERT INTO overrides (title_id, patch_id, enabled, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(title_id, patch_id) DO UPDATE SET enabled = excluded.enabled, updated_at = CURRENT_TIMESTAMP`
	if _, err := s.db.ExecContext(ctx, q, int64(o.TitleID), int64(o.PatchID), o.Enabled); err != nil {
		return fmt.Errorf("store: set override %08X/%d: %w", o.TitleID, o.PatchID, err)
	}
	return nil
}

// Get returns the override for one patch and whether one exists.
func (s *SQLiteStore) Get(ctx context.Context, titleID, patchID uint32) (Override, bool, error) {
	o := Override{TitleID: titleID, PatchID: patchID}
	err := s.db.QueryRowContext(ctx,
		"SELECT enabled FROM overrides WHERE title_id = ? AND patch_id = ?",
		int64(titleID), int64(patchID)).Scan(&o.Enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return Override{}, false, nil
	}
	if err != nil {
		return Override{}, false, fmt.Errorf("store: get override %08X/%d: %w", titleID, patchID, err)
	}
	return o, true, nil
}

// Delete removes the override for one patch, restoring the file default on
// the next load.
func (s *SQLiteStore) Delete(ctx context.Context, titleID, patchID uint32) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM overrides WHERE title_id = ? AND patch_id = ?",
		int64(titleID), int64(patchID)); err != nil {
		return fmt.Errorf("store: delete override %08X/%d: %w", titleID, patchID, err)
	}
	return nil
}

// List returns every override ordered by title and patch id.
func (s *SQLiteStore) List(ctx context.Context) ([]Override, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT title_id, patch_id, enabled FROM overrides ORDER BY title_id, patch_id")
	if err != nil {
		return nil, fmt.Errorf("store: list overrides: %w", err)
	}
	defer rows.Close()

	var out []Override
	for rows.Next() {
		var title, patch int64
		var o Override
		if err := rows.Scan(&title, &patch, &o.Enabled); err != nil {
			return nil, fmt.Errorf("store: scan override: %w", err)
		}
		o.TitleID, o.PatchID = uint32(title), uint32(patch)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list overrides: %w", err)
	}
	return out, nil
}

// Replay applies every stored override to t and returns the overrides that
// matched no loaded patch.
func (s *SQLiteStore) Replay(ctx context.Context, t Toggler) ([]Override, error) {
	overrides, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var unmatched []Override
	for _, o := range overrides {
		if t.SetEnabled(o.TitleID, o.PatchID, o.Enabled) == 0 {
			unmatched = append(unmatched, o)
		}
	}
	return unmatched, nil
}
