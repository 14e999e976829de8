// Package sqlitekv implements kv.Store on SQLite.
//
// Entries live in a single WITHOUT ROWID table keyed by BLOB, so range scans
// are primary-key index walks. Ranges are compiled to parameterized SQL; key
// bytes are never interpolated into statements.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The pool is limited to one connection. A cursor holds that connection until
// it is closed, so writes must not be issued while a cursor is open.
package sqlitekv
