// Package snapshot copies a shard's WAL to and from a blobstore.Store.
//
// A snapshot is an lz4 frame holding the magic "VSHSNAP1", then one record
// per WAL entry ([id u64][len u32][data], little-endian), then an end marker
// record with id 0. Restoring appends the records into an empty log and
// checks that the log hands out the same ids, so a restored shard replays to
// the same state as the source shard.
package snapshot
