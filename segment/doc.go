// Package segment defines the storage unit a shard fans writes and queries
// out to, and the Holder registry that owns a shard's segments.
//
// Segments are either appendable (accept inserts) or sealed (accept deletes
// and edits of points they already hold). Every mutation carries the
// operation id that caused it; a segment skips mutations older than the
// version it already holds, which makes WAL replay idempotent.
package segment
