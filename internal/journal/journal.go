// Package journal records mutations of the downloaded manifest as they happen
// so that a session killed without a flush can resume where it stopped.
package journal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/assetsync/internal/db"
	"github.com/openmined/assetsync/internal/manifest"
)

const schema = `
CREATE TABLE IF NOT EXISTS manifest_ops (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    op TEXT NOT NULL CHECK (op IN ('put', 'delete')),
    path TEXT NOT NULL,
    size INTEGER NOT NULL DEFAULT 0,
    hash TEXT NOT NULL DEFAULT '',
    recorded_at TEXT NOT NULL -- RFC3339
);
`

const (
	opPut    = "put"
	opDelete = "delete"
)

var (
	ErrNotOpen     = errors.New("journal: not open")
	ErrAlreadyOpen = errors.New("journal: already open")
)

type record struct {
	Seq        int64  `db:"seq"`
	Op         string `db:"op"`
	Path       string `db:"path"`
	Size       int64  `db:"size"`
	Hash       string `db:"hash"`
	RecordedAt string `db:"recorded_at"`
}

// Journal is an append-only log of put and delete operations backed by SQLite.
type Journal struct {
	db     *sqlx.DB
	dbPath string
}

// New creates a journal at dbPath. Use db.MemoryPath for a throwaway journal.
func New(dbPath string) *Journal {
	return &Journal{dbPath: dbPath}
}

func (j *Journal) Open() error {
	if j.db != nil {
		return ErrAlreadyOpen
	}

	conn, err := db.Open(db.WithPath(j.dbPath))
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return fmt.Errorf("journal: init schema: %w", err)
	}

	j.db = conn
	slog.Debug("journal open", "path", j.dbPath)
	return nil
}

func (j *Journal) Close() error {
	if j.db == nil {
		return ErrNotOpen
	}
	err := j.db.Close()
	j.db = nil
	if err != nil {
		return fmt.Errorf("journal: close: %w", err)
	}
	return nil
}

func (j *Journal) RecordPut(e manifest.Entry) error {
	return j.record(record{Op: opPut, Path: e.Path, Size: int64(e.Size), Hash: e.Hash})
}

func (j *Journal) RecordDelete(path string) error {
	return j.record(record{Op: opDelete, Path: path})
}

func (j *Journal) record(r record) error {
	if j.db == nil {
		return ErrNotOpen
	}
	r.RecordedAt = time.Now().UTC().Format(time.RFC3339)
	query := `INSERT INTO manifest_ops (op, path, size, hash, recorded_at)
	          VALUES (:op, :path, :size, :hash, :recorded_at)`
	if _, err := j.db.NamedExec(query, r); err != nil {
		return fmt.Errorf("journal: record %s %q: %w", r.Op, r.Path, err)
	}
	return nil
}

// Replay applies the recorded operations to m in the order they were
// recorded and returns how many were applied.
func (j *Journal) Replay(m *manifest.Manifest) (int, error) {
	if j.db == nil {
		return 0, ErrNotOpen
	}

	var records []record
	if err := j.db.Select(&records, "SELECT seq, op, path, size, hash, recorded_at FROM manifest_ops ORDER BY seq"); err != nil {
		return 0, fmt.Errorf("journal: replay: %w", err)
	}

	applied := 0
	for _, r := range records {
		switch r.Op {
		case opPut:
			if r.Size < 0 {
				slog.Warn("journal skip record", "seq", r.Seq, "path", r.Path, "size", r.Size)
				continue
			}
			m.Put(manifest.Entry{Path: r.Path, Size: uint64(r.Size), Hash: r.Hash})
		case opDelete:
			m.Delete(r.Path)
		default:
			slog.Warn("journal skip record", "seq", r.Seq, "op", r.Op)
			continue
		}
		applied++
	}

	if applied > 0 {
		slog.Info("journal replayed", "ops", applied)
	}
	return applied, nil
}

// Clear drops every record. Called once the manifest file is persisted.
func (j *Journal) Clear() error {
	if j.db == nil {
		return ErrNotOpen
	}
	if _, err := j.db.Exec("DELETE FROM manifest_ops"); err != nil {
		return fmt.Errorf("journal: clear: %w", err)
	}
	return nil
}

func (j *Journal) Count() (int, error) {
	if j.db == nil {
		return 0, ErrNotOpen
	}
	var n int
	if err := j.db.Get(&n, "SELECT COUNT(*) FROM manifest_ops"); err != nil {
		return 0, fmt.Errorf("journal: count: %w", err)
	}
	return n, nil
}
