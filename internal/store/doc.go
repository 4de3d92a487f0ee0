// Package store provides a SQLite-backed audit log of compilations.
//
// Every compile request, successful or not, is appended as one Record:
// the intent in canonical JSON, its fingerprint, the SQL produced (or the
// error code), and the segments and metrics it used. Governance reviews
// read the log to see which certified definitions answered which
// questions.
//
// # Ordering
//
// Records carry a seq assigned by SQLite on insert. All list queries
// order by seq, then id COLLATE BINARY, so results are identical across
// runs regardless of wall time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
