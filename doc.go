// Package vecshard implements a single shard of a vector search service.
//
// A Shard owns a write-ahead log and a set of segments. Every mutation is
// written to the WAL first and only then applied to the segments, tagged with
// the id the WAL assigned. Searches fan a query out to every segment and
// merge the partial answers into one deduplicated, ranked page.
//
// # Quick Start
//
//	ctx := context.Background()
//	shard, _ := vecshard.Open(ctx, "./data", vecshard.WithVectors(map[string]segment.VectorConfig{
//	    "": {Size: 3, Distance: distance.MetricCosine},
//	}))
//	defer shard.Close()
//
//	_, _ = shard.Update(ctx, operation.UpsertPoints{Points: []model.Record{
//	    {ID: 1, Vectors: model.Vectors{"": {0.1, 0.2, 0.3}}, Payload: model.Payload{"city": "Berlin"}},
//	}})
//
//	hits, _ := shard.Search(ctx, &model.SearchRequest{Vector: []float32{0.1, 0.2, 0.3}, Limit: 10})
//
// # Failure Model
//
// Update distinguishes two failures:
//
//   - *ServiceError (matches ErrDurability): the WAL write failed and nothing
//     changed. The caller may retry.
//   - *ApplyError: the operation is durable but a segment rejected it. It is
//     not retried; Recover replays the WAL when the shard is reopened.
//
// Search fails as a whole when any segment fails (*SegmentError); partial
// results are never returned.
//
// # Snapshots
//
// Snapshot streams the WAL into a blobstore.Store as an lz4-compressed
// archive; snapshot.Restore rebuilds a log from it.
package vecshard
