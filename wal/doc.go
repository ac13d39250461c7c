// Package wal provides the write-ahead log a shard admits operations through.
//
// A Log assigns every appended entry a strictly increasing, gap-free id
// starting at 1. An id is only handed out once the entry is durable under
// the configured Durability; a failed append consumes no id.
//
// Backends:
//   - FileLog: a single CRC-framed append-only file
//   - PebbleLog: entries stored as keys in a Pebble database
//
// SerdeWAL layers typed operations on top of any Log, encoding each
// operation with a codec and optionally compressing it with zstd.
package wal
