// Package store provides a SQLite journal of a sketch editing session.
//
// The journal is append-only and has three tables:
//   - commands: every command sent, with its canonical digest
//   - events: every event observed, in arrival order
//   - snapshots: full sketches encoded as deterministic CBOR
//
// # Ordering
//
// All ordering uses the seq INTEGER column, never timestamps, so a journal
// replays identically regardless of wall time. Queries order by seq ASC.
//
// # Integrity
//
// Command payloads are stored as RFC 8785 canonical JSON next to a
// domain-separated SHA-256 digest (internal/ir/hash.go); ReadCommands
// rejects rows whose payload no longer matches. Snapshots carry the sketch
// fingerprint; a blob that fails to decode or to match is treated as absent.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
