package sqlitekv

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/rangeplan/internal/ir"
	"github.com/roach88/rangeplan/internal/kv"
	"github.com/roach88/rangeplan/internal/query"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added meta table recording the engine version that created the file
const currentSchemaVersion = 1

// Store is a kv.Store backed by a SQLite database file.
type Store struct {
	db    *sql.DB
	clock kv.Clock

	mu     sync.Mutex
	closed bool
}

var _ kv.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for scan time limits.
func WithClock(c kv.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db, clock: kv.SystemClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.db == nil {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kv.ErrClosed
	}
	return nil
}

// Put inserts or replaces the value at key.
func (s *Store) Put(ctx context.Context, key, value []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("put entry: %w", err)
	}
	return nil
}

// Delete removes key. Deleting a missing key succeeds.
func (s *Store) Delete(ctx context.Context, key []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// Scan opens a cursor over r. Snapshot isolation runs the query inside a
// read-only transaction that is released when the cursor closes.
func (s *Store) Scan(ctx context.Context, r query.KeyRange, continuation []byte, props kv.ScanProperties) (kv.Cursor, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	resumed, err := kv.ResumeRange(r, continuation, props.Reverse)
	if err != nil {
		return nil, err
	}

	stmt, args := CompileRange(resumed, props.Reverse)

	var tx *sql.Tx
	var rows *sql.Rows
	if props.Isolation == kv.Snapshot {
		tx, err = s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			return nil, fmt.Errorf("begin read transaction: %w", err)
		}
		rows, err = tx.QueryContext(ctx, stmt, args...)
	} else {
		rows, err = s.db.QueryContext(ctx, stmt, args...)
	}
	if err != nil {
		if tx != nil {
			_ = tx.Rollback()
		}
		return nil, fmt.Errorf("query entries: %w", err)
	}

	return kv.NewCursor(&rowIterator{rows: rows, tx: tx}, continuation, props, s.clock), nil
}

// SchemaVersion returns PRAGMA user_version.
func (s *Store) SchemaVersion() (int, error) {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

type rowIterator struct {
	rows  *sql.Rows
	tx    *sql.Tx
	entry kv.Entry
	err   error
}

func (it *rowIterator) Next() bool {
	if !it.rows.Next() {
		it.err = it.rows.Err()
		return false
	}
	var key, value []byte
	if err := it.rows.Scan(&key, &value); err != nil {
		it.err = fmt.Errorf("scan entry: %w", err)
		return false
	}
	it.entry = kv.Entry{Key: key, Value: value}
	return true
}

func (it *rowIterator) Entry() kv.Entry { return it.entry }

func (it *rowIterator) Err() error { return it.err }

func (it *rowIterator) Close() error {
	err := it.rows.Close()
	if it.tx != nil {
		if rbErr := it.tx.Rollback(); err == nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = rbErr
		}
	}
	return err
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the meta table. The creating engine version is written
// once and never overwritten by later opens.
func migrateToV1(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS meta (
			name  TEXT PRIMARY KEY NOT NULL,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO meta (name, value) VALUES ('created_by', ?)`, ir.EngineVersion); err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	stmt := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(stmt).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
