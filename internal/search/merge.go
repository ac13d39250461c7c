package search

import (
	"cmp"
	"slices"

	"github.com/hupe1980/vecshard/model"
)

// Merge combines candidate lists from several segments.
//
// The same point id may appear in several lists with different versions;
// only the highest version survives. Survivors are ordered by score
// descending; equal scores are ordered by ascending id.
// Points scoring below threshold are dropped before the window
// [offset, offset+limit) is taken. An offset past the end yields an empty,
// non-nil result.
func Merge(batches [][]model.ScoredPoint, offset, limit int, threshold *float32) []model.ScoredPoint {
	var total int
	for _, b := range batches {
		total += len(b)
	}
	all := make([]model.ScoredPoint, 0, total)
	for _, b := range batches {
		all = append(all, b...)
	}

	slices.SortStableFunc(all, func(a, b model.ScoredPoint) int {
		if c := cmp.Compare(a.ID, b.ID); c != 0 {
			return c
		}
		return cmp.Compare(b.Version, a.Version)
	})
	all = slices.CompactFunc(all, func(a, b model.ScoredPoint) bool { return a.ID == b.ID })

	slices.SortStableFunc(all, func(a, b model.ScoredPoint) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if threshold != nil {
		t := *threshold
		// Sorted descending, so everything from the first miss on is dropped.
		// NaN scores compare below every number and never pass a threshold.
		cut := slices.IndexFunc(all, func(p model.ScoredPoint) bool { return !(p.Score >= t) })
		if cut >= 0 {
			all = all[:cut]
		}
	}

	return Window(all, offset, limit)
}

// Window returns points[offset:offset+limit], clamped to the slice bounds.
func Window(points []model.ScoredPoint, offset, limit int) []model.ScoredPoint {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(points) || limit <= 0 {
		return []model.ScoredPoint{}
	}
	end := len(points)
	if limit < end-offset {
		end = offset + limit
	}
	return slices.Clone(points[offset:end])
}
