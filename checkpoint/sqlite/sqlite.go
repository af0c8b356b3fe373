// Package sqlite implements a durable core.ThreadStore on SQLite using the
// pure Go modernc.org/sqlite driver.
//
// Every Save appends a new checkpoint row; Load reads the most recent one.
// Thread enumeration is derived from the checkpoint rows themselves, so it
// can never drift from what was actually persisted.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hupe1980/toolchat/core"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

var _ core.ThreadStore = (*Store)(nil)

// Options configures the SQLite store.
type Options struct {
	// BusyTimeout is applied through PRAGMA busy_timeout.
	BusyTimeout time.Duration
	// KeepCheckpoints bounds the number of checkpoints retained per thread.
	// Zero keeps the full checkpoint log.
	KeepCheckpoints int
}

// Store persists thread checkpoints in a SQLite database.
type Store struct {
	db   *sql.DB
	opts Options
}

// Open opens (or creates) the database at path and migrates the schema.
// The special path ":memory:" opens a private in-memory database.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{BusyTimeout: 3 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}

	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("sqlite: missing db path")
	}
	if p != ":memory:" {
		p = filepath.Clean(p)
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}

	// A single connection serializes writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initSchema(db, opts); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, opts: opts}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the messages of the latest checkpoint of threadID, or an empty
// slice when the thread has none.
func (s *Store) Load(ctx context.Context, threadID string) ([]core.Message, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
SELECT messages_json
FROM checkpoints
WHERE thread_id = ?
ORDER BY seq DESC
LIMIT 1
`, threadID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []core.Message{}, nil
	}
	if err != nil {
		return nil, core.NewPersistenceError("load", threadID, err)
	}

	msgs := []core.Message{}
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, core.NewPersistenceError("load", threadID, fmt.Errorf("decode checkpoint: %w", err))
	}
	return msgs, nil
}

// Save appends a new checkpoint holding msgs. The insert runs in a
// transaction so readers observe either the previous or the new checkpoint.
func (s *Store) Save(ctx context.Context, threadID string, msgs []core.Message) error {
	if msgs == nil {
		msgs = []core.Message{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return core.NewPersistenceError("save", threadID, fmt.Errorf("encode checkpoint: %w", err))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewPersistenceError("save", threadID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO checkpoints(thread_id, checkpoint_id, created_at_unix_ms, messages_json)
VALUES(?, ?, ?, ?)
`, threadID, core.NewID(), time.Now().UnixMilli(), string(b)); err != nil {
		return core.NewPersistenceError("save", threadID, err)
	}

	if s.opts.KeepCheckpoints > 0 {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM checkpoints
WHERE thread_id = ?
  AND seq NOT IN (
    SELECT seq FROM checkpoints WHERE thread_id = ? ORDER BY seq DESC LIMIT ?
  )
`, threadID, threadID, s.opts.KeepCheckpoints); err != nil {
			return core.NewPersistenceError("save", threadID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.NewPersistenceError("save", threadID, err)
	}
	return nil
}

// ListIDs returns every thread id with at least one checkpoint, sorted.
func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT thread_id FROM checkpoints ORDER BY thread_id`)
	if err != nil {
		return nil, core.NewPersistenceError("list", "", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, core.NewPersistenceError("list", "", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewPersistenceError("list", "", err)
	}
	return ids, nil
}

// Delete removes all checkpoints of the given threads in one transaction.
func (s *Store) Delete(ctx context.Context, threadIDs ...string) error {
	if len(threadIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewPersistenceError("delete", "", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range threadIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, id); err != nil {
			return core.NewPersistenceError("delete", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.NewPersistenceError("delete", "", err)
	}
	return nil
}

// CheckpointCount returns the number of stored checkpoints of threadID.
func (s *Store) CheckpointCount(ctx context.Context, threadID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM checkpoints WHERE thread_id = ?`, threadID).Scan(&n); err != nil {
		return 0, core.NewPersistenceError("count", threadID, err)
	}
	return n, nil
}

func initSchema(db *sql.DB, opts Options) error {
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return fmt.Errorf("pragma journal_mode: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf(`PRAGMA busy_timeout=%d;`, opts.BusyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("pragma busy_timeout: %w", err)
	}
	return migrateSchema(db)
}

const schemaVersion = 1

func migrateSchema(db *sql.DB) error {
	var v int
	if err := db.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return fmt.Errorf("pragma user_version: %w", err)
	}
	if v >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS checkpoints (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  thread_id TEXT NOT NULL,
  checkpoint_id TEXT NOT NULL UNIQUE,
  created_at_unix_ms INTEGER NOT NULL,
  messages_json TEXT NOT NULL
);
`); err != nil {
		return fmt.Errorf("create checkpoints: %w", err)
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_checkpoints_thread_seq ON checkpoints(thread_id, seq DESC);`); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version=%d;`, schemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return tx.Commit()
}
