// Package plain implements an in-memory segment with exact scoring.
//
// Points live in an offset-addressed slice; deletes are recorded in a
// roaring bitmap of offsets. Payload field indexes map keyword, integer and
// bool values to offset bitmaps and are used to narrow filtered searches
// when the candidate set is small enough.
package plain
