// Package store is the SQLite journal of engine traffic.
//
// Three append-only tables hold what crossed the engine:
//   - commands: every dispatched command with its correlation key
//   - responses: every settlement, including timeouts and unmatched replies
//   - events: every inbound event with the number of handlers it reached
//
// # Ordering
//
// All rows carry seq, the engine's logical clock. Reads order by seq only,
// never by wall time, so a journal reads back identically however fast it
// was written. Reopening a journal and resuming the clock at MaxSeq keeps
// seq unique.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - a single connection, since the journal is written from several goroutines
//
// JSON bodies and payloads are stored as canonical JSON when they parse,
// verbatim otherwise.
package store
