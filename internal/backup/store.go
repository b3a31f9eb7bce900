// Package backup persists byte-for-byte pre-mutation copies of patched
// files. Content lives as flat files in the backup directory; metadata
// lives in a SQLite index alongside them. Records are append-only: a
// backup is never mutated after creation, only pruned.
package backup

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"strictpatch/internal/logging"
)

// ErrNotFound is returned when a backup id has no record.
var ErrNotFound = errors.New("backup not found")

// Meta describes a stored backup without its content.
type Meta struct {
	ID           string
	PatchID      string
	OriginalPath string
	CreatedAt    time.Time
	Size         int64
}

// Backup is a full record including the original file content.
type Backup struct {
	Meta
	Content []byte
}

// Store is a directory of backup content files indexed by SQLite.
// Backup ids are ULIDs, so lexical order is creation order.
type Store struct {
	db  *sql.DB
	dir string
}

// NewStore opens (or creates) a backup store rooted at dir.
func NewStore(dir string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "backup.NewStore")
	defer timer.Stop()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open backup index: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.Get(logging.CategoryStore).Debug("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.Get(logging.CategoryStore).Debug("failed to set journal_mode=WAL: %v", err)
	}

	s := &Store{db: db, dir: dir}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS backups (
			id            TEXT PRIMARY KEY,
			patch_id      TEXT NOT NULL,
			original_path TEXT NOT NULL,
			created_at    INTEGER NOT NULL,
			size          INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_backups_created ON backups(created_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize backup schema: %w", err)
	}
	return nil
}

// Close releases the index database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the backup directory path.
func (s *Store) Dir() string { return s.dir }

func (s *Store) contentPath(id string) string {
	return filepath.Join(s.dir, id+".bak")
}

// Create persists content under a fresh ULID and returns the metadata.
// The content file is written before the index row so a crash between
// the two leaves an orphan file, never a dangling row.
func (s *Store) Create(originalPath string, content []byte, patchID string) (*Meta, error) {
	now := time.Now()
	meta := &Meta{
		ID:           ulid.Make().String(),
		PatchID:      patchID,
		OriginalPath: originalPath,
		CreatedAt:    now,
		Size:         int64(len(content)),
	}

	if err := os.WriteFile(s.contentPath(meta.ID), content, 0644); err != nil {
		return nil, fmt.Errorf("failed to write backup content: %w", err)
	}

	_, err := s.db.Exec(
		"INSERT INTO backups (id, patch_id, original_path, created_at, size) VALUES (?, ?, ?, ?, ?)",
		meta.ID, meta.PatchID, meta.OriginalPath, now.UnixMilli(), meta.Size,
	)
	if err != nil {
		_ = os.Remove(s.contentPath(meta.ID))
		return nil, fmt.Errorf("failed to index backup: %w", err)
	}

	logging.Backup("created backup %s for %s (patch %s, %d bytes)",
		meta.ID, originalPath, patchID, meta.Size)

	return meta, nil
}

// Read loads a full backup record by id.
func (s *Store) Read(id string) (*Backup, error) {
	row := s.db.QueryRow(
		"SELECT id, patch_id, original_path, created_at, size FROM backups WHERE id = ?", id)

	var b Backup
	var createdMilli int64
	err := row.Scan(&b.ID, &b.PatchID, &b.OriginalPath, &createdMilli, &b.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("backup %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query backup %s: %w", id, err)
	}
	b.CreatedAt = time.UnixMilli(createdMilli)

	b.Content, err = os.ReadFile(s.contentPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("backup %s content missing: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read backup %s content: %w", id, err)
	}

	return &b, nil
}

// List returns all backup metadata, newest first.
func (s *Store) List() ([]Meta, error) {
	rows, err := s.db.Query(
		"SELECT id, patch_id, original_path, created_at, size FROM backups ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	defer rows.Close()

	var metas []Meta
	for rows.Next() {
		var m Meta
		var createdMilli int64
		if err := rows.Scan(&m.ID, &m.PatchID, &m.OriginalPath, &createdMilli, &m.Size); err != nil {
			return nil, fmt.Errorf("failed to scan backup row: %w", err)
		}
		m.CreatedAt = time.UnixMilli(createdMilli)
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// Delete removes a backup's index row and content file. Idempotent:
// deleting an unknown id is not an error. The two halves are one
// logical unit; a content-file failure reports after the row is gone
// so a retry cannot resurrect metadata for missing content.
func (s *Store) Delete(id string) error {
	if _, err := s.db.Exec("DELETE FROM backups WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete backup %s index row: %w", id, err)
	}

	if err := os.Remove(s.contentPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete backup %s content: %w", id, err)
	}

	logging.BackupDebug("deleted backup %s", id)
	return nil
}
