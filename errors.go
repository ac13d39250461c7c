package vecshard

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecshard/model"
	"github.com/hupe1980/vecshard/operation"
	"github.com/hupe1980/vecshard/segment"
)

var (
	// ErrClosed is returned by operations on a closed shard.
	ErrClosed = errors.New("shard closed")
	// ErrInvalidArgument is returned for malformed requests or options.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDurability marks failures to persist an operation. The operation
	// had no effect.
	ErrDurability = errors.New("durability failure")
	// ErrContractViolation is returned when a segment breaks the batch search
	// contract (one result list per query).
	ErrContractViolation = errors.New("segment contract violation")

	// ErrPointNotFound is returned by Retrieve when no segment holds the point.
	ErrPointNotFound = segment.ErrPointNotFound
	// ErrNoAppendableSegment is returned when an upsert has nowhere to go.
	ErrNoAppendableSegment = segment.ErrNoAppendableSegment
)

// ServiceError reports an operation that could not be made durable.
// It matches ErrDurability and the underlying WAL error with errors.Is.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error: %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() []error { return []error{ErrDurability, e.Err} }

// ApplyError reports an operation that is in the WAL but failed to apply to
// the segments.
type ApplyError struct {
	OpID uint64
	Kind operation.Kind
	Err  error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply %s operation %d: %v", e.Kind, e.OpID, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// SegmentError reports a segment that failed during a search.
type SegmentError struct {
	SegmentID model.SegmentID
	Err       error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %s: %v", e.SegmentID, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }
