// Package storage implements the record store behind a single node's data
// API: schema-partitioned partial records keyed by their client-chosen
// identifiers. Two implementations exist, an in-memory store for tests and a
// file-backed store for long-lived development nodes.
//
// Creates are idempotent by identifier: re-inserting an identical record is a
// no-op success, while an identifier collision with different content fails
// with ErrDuplicateRecord. Deletes of absent records are not errors. Both
// properties are what make the client's per-node write retries safe.
package storage
