// Package testutil provides testing utilities for shards and segments.
//
// This package is intended for use in tests only. It generates reproducible
// points and computes exact search results to compare shard output against.
//
// # Random Points
//
//	rng := testutil.NewRNG(seed)
//	recs := rng.Records(1000, 16, func(i int) model.Payload {
//	    return model.Payload{"bucket": int64(i % 10)}
//	})
//
// # Ground Truth
//
//	want := testutil.ExactTopK(query, recs, 10, distance.MetricCosine, nil)
package testutil
