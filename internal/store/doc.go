// Package store archives ablation runs in SQLite so tables can be
// re-rendered later without re-reading any recording.
//
// A run is stored as:
//   - runs: one row per run with the manifest and catalogue digests
//   - run_variants: the variant definitions in catalogue order (JSON)
//   - run_files: the manifest entries in manifest order
//   - measurements: one row per populated cell of the raw matrix
//
// Only the un-normalized matrix is stored; normalization is applied when
// rendering. NaN values are stored as NULL and read back as NaN; failed
// cells keep their error text.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The schema is managed by golang-migrate from migrations embedded in the
// binary. Either the cgo driver (mattn/go-sqlite3) or the pure-Go driver
// (modernc.org/sqlite) can back the store.
package store
