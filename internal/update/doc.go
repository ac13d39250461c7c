// Package update applies admitted operations to the segments of a holder.
//
// Every routine takes the operation id the WAL assigned and returns the
// number of points (or segments, for field index operations) it changed.
// Inserts go to an appendable segment; edits of points that only live in
// sealed segments copy the point into an appendable segment first.
package update
