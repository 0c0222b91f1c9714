// Package journal records moss operations (snapshots, restores, sandbox
// applies and resets) in a SQLite database at <root>/.moss/journal.db.
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Kind names a journaled operation.
type Kind string

const (
	KindSnapshot Kind = "snapshot"
	KindRestore  Kind = "restore"
	KindApply    Kind = "apply"
	KindReset    Kind = "reset"
	KindSync     Kind = "sync"
)

// Entry is one journaled operation.
type Entry struct {
	ID         string
	Kind       Kind
	SnapshotID string
	Paths      []string
	Detail     string
	CreatedAt  time.Time
}

// Journal is the SQLite-backed operation log.
type Journal struct {
	db *sql.DB
}

// Open opens the journal database at dbPath with WAL mode enabled.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Migrate creates the operations table. Idempotent.
func (j *Journal) Migrate() error {
	if _, err := j.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate journal: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS operations (
  id          TEXT PRIMARY KEY,
  kind        TEXT NOT NULL,
  snapshot_id TEXT,
  paths       TEXT NOT NULL,
  detail      TEXT,
  created_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_operations_kind ON operations(kind);
`

// Record appends e to the journal, filling in ID and CreatedAt when empty,
// and returns the stored entry.
func (j *Journal) Record(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.Must(uuid.NewV7()).String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	paths, err := json.Marshal(nonNil(e.Paths))
	if err != nil {
		return Entry{}, fmt.Errorf("encode paths: %w", err)
	}
	_, err = j.db.Exec(
		"INSERT INTO operations (id, kind, snapshot_id, paths, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		e.ID, string(e.Kind), e.SnapshotID, string(paths), e.Detail, e.CreatedAt,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("record %s: %w", e.Kind, err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first. A limit of zero or less
// returns everything.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	return j.query("SELECT id, kind, snapshot_id, paths, detail, created_at FROM operations ORDER BY rowid DESC LIMIT ?", limitArg(limit))
}

// ByKind returns up to limit entries of the given kind, newest first.
func (j *Journal) ByKind(kind Kind, limit int) ([]Entry, error) {
	return j.query("SELECT id, kind, snapshot_id, paths, detail, created_at FROM operations WHERE kind = ? ORDER BY rowid DESC LIMIT ?", string(kind), limitArg(limit))
}

func (j *Journal) query(q string, args ...any) ([]Entry, error) {
	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                  Entry
			kind, paths        string
			snapshotID, detail sql.NullString
		)
		if err := rows.Scan(&e.ID, &kind, &snapshotID, &paths, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		e.Kind = Kind(kind)
		e.SnapshotID = snapshotID.String
		e.Detail = detail.String
		if err := json.Unmarshal([]byte(paths), &e.Paths); err != nil {
			return nil, fmt.Errorf("decode paths of %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// limitArg maps "no limit" to SQLite's -1.
func limitArg(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
