// Package store provides the SQLite run journal for workshop-dl.
//
// The journal is append-only and records, per run:
//   - Runs: the resolved item a run acquired
//   - Transitions: every phase change of the acquisition state
//   - Outcomes: the single terminal outcome
//
// # Invariants
//
// Exactly-once outcome
//   - outcomes.run_id is the primary key and inserts use ON CONFLICT DO NOTHING
//   - A second outcome for the same run is reported as not inserted
//
// Logical ordering
//   - Transitions are ordered by seq from the run's logical clock
//   - Runs are ordered by their UUIDv7 id, which sorts by start time
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
