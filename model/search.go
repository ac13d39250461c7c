package model

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest is returned by SearchRequest.Validate.
var ErrInvalidRequest = errors.New("invalid search request")

// SearchParams tunes how segments execute a query.
type SearchParams struct {
	// Exact forces exhaustive scoring. Plain segments always score exactly.
	Exact bool
	// IndexedOnly restricts the search to points reachable through payload
	// indexes when a filter is given.
	IndexedOnly bool
}

// SearchRequest is a single-vector query against a shard.
type SearchRequest struct {
	Vector     []float32
	VectorName string
	Filter     *Filter
	Params     *SearchParams
	Limit      int
	Offset     int

	// WithPayload and WithVector default to "not included" when nil.
	WithPayload *WithPayload
	WithVector  *WithVector

	// ScoreThreshold drops merged results scoring below it.
	ScoreThreshold *float32
}

// Validate checks the request shape.
func (r *SearchRequest) Validate() error {
	switch {
	case len(r.Vector) == 0:
		return fmt.Errorf("%w: query vector is empty", ErrInvalidRequest)
	case r.Limit <= 0:
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidRequest, r.Limit)
	case r.Offset < 0:
		return fmt.Errorf("%w: offset must not be negative, got %d", ErrInvalidRequest, r.Offset)
	}
	return nil
}

// PayloadSelector returns the effective payload selector.
func (r *SearchRequest) PayloadSelector() WithPayload {
	if r.WithPayload == nil {
		return WithPayload{}
	}
	return *r.WithPayload
}

// VectorSelector returns the effective vector selector.
func (r *SearchRequest) VectorSelector() WithVector {
	if r.WithVector == nil {
		return WithVector{}
	}
	return *r.WithVector
}
