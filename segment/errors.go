package segment

import "errors"

var (
	// ErrPointNotFound is returned when a mutation targets a missing point.
	ErrPointNotFound = errors.New("point not found")
	// ErrVectorNameNotFound is returned for a vector name the segment is not configured for.
	ErrVectorNameNotFound = errors.New("vector name not found")
	// ErrDimensionMismatch is returned when a vector has the wrong size.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrReadOnlySegment is returned when inserting into a sealed segment.
	ErrReadOnlySegment = errors.New("segment is read-only")
	// ErrNoAppendableSegment is returned when the holder has no segment to insert into.
	ErrNoAppendableSegment = errors.New("no appendable segment")
	// ErrDuplicateSegment is returned by Holder.Add for an id already registered.
	ErrDuplicateSegment = errors.New("duplicate segment id")
	// ErrInvalidFieldSchema is returned for an unsupported field index schema.
	ErrInvalidFieldSchema = errors.New("invalid field schema")
)
