// Package distance provides the similarity metrics segments score with.
//
// Every metric is expressed as a score where higher is better, so results
// from segments with different metrics can share one ordering rule:
//
//   - MetricDot: inner product
//   - MetricCosine: inner product of L2-normalized vectors
//   - MetricEuclid: negated Euclidean distance
//   - MetricManhattan: negated L1 distance
//
// # Usage
//
//	score, err := distance.Score(distance.MetricCosine, query, stored)
package distance
