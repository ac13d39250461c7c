// Package model defines the core types shared by the shard, its segments and its WAL.
//
// # Identity Types
//
//   - PointID: user-facing point identifier (uint64)
//   - OpID: WAL-assigned operation identifier, also used as point version
//   - SegmentID: identifier of a segment within a shard
//
// # Data Types
//
//   - Record: a point with its version, named vectors and payload
//   - ScoredPoint: a search hit with id, version, score and optional data
//   - Filter: payload/id conditions pushed down to segments
//   - SearchRequest: a single-vector query with pagination
package model
