// Package indexdb keeps a small read-model index of snapshot saves in
// SQLite. Writes go through a single writer goroutine so the frame loop
// never waits on the database.
package indexdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SnapshotRow is one recorded snapshot save.
type SnapshotRow struct {
	Tick           uint64
	Path           string
	Seed           int64
	ModifiedChunks int
	SavedAt        string
}

type SQLiteIndex struct {
	db *sql.DB

	ch   chan SnapshotRow
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Int64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan SnapshotRow, 1024),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-style workload; NORMAL is fine for a secondary
	// index that can be rebuilt from the snapshot files.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			modified_chunks INTEGER NOT NULL,
			saved_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) loop() {
	for row := range s.ch {
		if _, err := s.db.Exec(
			`INSERT OR REPLACE INTO snapshots (tick, path, seed, modified_chunks, saved_at)
			 VALUES (?, ?, ?, ?, ?);`,
			int64(row.Tick), row.Path, row.Seed, row.ModifiedChunks, row.SavedAt,
		); err != nil {
			// The index is best-effort; snapshot files remain authoritative.
			continue
		}
	}
}

// RecordSnapshot queues one row for the writer. Drops the row instead of
// blocking when the buffer is full.
func (s *SQLiteIndex) RecordSnapshot(row SnapshotRow) {
	if s.closed.Load() {
		return
	}
	if row.SavedAt == "" {
		row.SavedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	select {
	case s.ch <- row:
	default:
		s.dropped.Add(1)
	}
}

// LatestSnapshot returns the most recent recorded save, if any.
func (s *SQLiteIndex) LatestSnapshot() (SnapshotRow, bool, error) {
	var row SnapshotRow
	var tick int64
	err := s.db.QueryRow(
		`SELECT tick, path, seed, modified_chunks, saved_at
		 FROM snapshots ORDER BY tick DESC LIMIT 1;`,
	).Scan(&tick, &row.Path, &row.Seed, &row.ModifiedChunks, &row.SavedAt)
	if err == sql.ErrNoRows {
		return row, false, nil
	}
	if err != nil {
		return row, false, err
	}
	row.Tick = uint64(tick)
	return row, true, nil
}

// SetMeta stores one key/value pair (world id, engine version).
func (s *SQLiteIndex) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?);`, key, value)
	return err
}

func (s *SQLiteIndex) Meta(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?;`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Dropped reports how many rows were discarded because the buffer was full.
func (s *SQLiteIndex) Dropped() int64 { return s.dropped.Load() }

// Close flushes queued rows and closes the database.
func (s *SQLiteIndex) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
	})
	s.wg.Wait()
	return s.db.Close()
}
