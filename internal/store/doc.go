// Package store is the durable job store for scheduled posts.
//
// Two drivers are provided:
//   - "file": a single JSON snapshot rewritten atomically on every mutation
//     (write-to-temp-then-rename), guarded by a process-local lock.
//   - "sqlite": an embedded SQLite database (modernc.org/sqlite, WAL mode).
//
// Both drivers implement UpdateStatus as a compare-and-swap on the persisted
// status. That CAS is the engine's sole concurrency-control primitive:
// concurrent claims on the same job self-arbitrate, one caller wins and the
// rest receive ErrConflict.
package store
