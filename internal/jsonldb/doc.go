// Package jsonldb provides a generic, concurrent-safe, JSONL-backed table.
//
// # Overview
//
// [Table] stores rows in a JSONL (JSON Lines) file with the full content cached
// in memory. Reads are served from the cache and return clones, so callers can
// never mutate the cached rows.
//
// # Concurrency: Pessimistic Locking
//
// [Table.Modify] holds the write lock for the entire read-modify-write
// operation. This guarantees success without retries. Throughput under
// contention is lower than with optimistic schemes, which is fine for local
// file storage.
//
// # File Format
//
// One JSON object per line. Empty lines are ignored. The file is rewritten
// through a temporary file and renamed into place, so a crash mid-write leaves
// the previous content intact.
package jsonldb
