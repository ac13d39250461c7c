package segment

import (
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/vecshard/model"
)

// Holder is the registry of a shard's segments.
//
// It is safe for concurrent use. Readers take a Snapshot and work on the
// copied handles without holding the lock.
type Holder struct {
	mu       sync.RWMutex
	segments map[model.SegmentID]Segment
}

// NewHolder creates a holder with the given segments.
func NewHolder(segs ...Segment) (*Holder, error) {
	h := &Holder{segments: make(map[model.SegmentID]Segment, len(segs))}
	for _, s := range segs {
		if err := h.Add(s); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Add registers s.
func (h *Holder) Add(s Segment) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.segments == nil {
		h.segments = make(map[model.SegmentID]Segment)
	}
	if _, ok := h.segments[s.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSegment, s.ID())
	}
	h.segments[s.ID()] = s
	return nil
}

// Remove unregisters and returns the segment with the given id.
func (h *Holder) Remove(id model.SegmentID) (Segment, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.segments[id]
	if ok {
		delete(h.segments, id)
	}
	return s, ok
}

// Len returns the number of registered segments.
func (h *Holder) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.segments)
}

// NextID returns an id one past the highest registered id.
func (h *Holder) NextID() model.SegmentID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var next model.SegmentID
	for id := range h.segments {
		if id >= next {
			next = id + 1
		}
	}
	return next
}

// Read takes a consistent snapshot of the registered segments.
func (h *Holder) Read() Snapshot {
	h.mu.RLock()
	segs := make([]Segment, 0, len(h.segments))
	for _, s := range h.segments {
		segs = append(segs, s)
	}
	h.mu.RUnlock()

	slices.SortFunc(segs, func(a, b Segment) int {
		if a.Appendable() != b.Appendable() {
			if a.Appendable() {
				return 1
			}
			return -1
		}
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		}
		return 0
	})
	return Snapshot{segments: segs}
}

// AppendableSegment returns the preferred segment for inserts.
func (h *Holder) AppendableSegment() (Segment, error) {
	return h.Read().PreferredAppendable()
}

// Snapshot is an immutable view of the holder at one point in time.
// Segments are ordered non-appendable first, then appendable, each by id.
type Snapshot struct {
	segments []Segment
}

// NewSnapshot builds a snapshot over segs in the given order.
func NewSnapshot(segs ...Segment) Snapshot {
	return Snapshot{segments: slices.Clone(segs)}
}

// Len returns the number of segments in the snapshot.
func (s Snapshot) Len() int { return len(s.segments) }

// NonAppendableThenAppendable returns the segment handles.
func (s Snapshot) NonAppendableThenAppendable() []Segment {
	return slices.Clone(s.segments)
}

// Appendable returns only the appendable segments.
func (s Snapshot) Appendable() []Segment {
	var out []Segment
	for _, seg := range s.segments {
		if seg.Appendable() {
			out = append(out, seg)
		}
	}
	return out
}

// Get returns the segment with the given id.
func (s Snapshot) Get(id model.SegmentID) (Segment, bool) {
	for _, seg := range s.segments {
		if seg.ID() == id {
			return seg, true
		}
	}
	return nil, false
}

// Holding returns every segment that holds id.
func (s Snapshot) Holding(id model.PointID) []Segment {
	var out []Segment
	for _, seg := range s.segments {
		if seg.HasPoint(id) {
			out = append(out, seg)
		}
	}
	return out
}

// PreferredAppendable returns the appendable segment with the fewest points,
// breaking ties by lowest id.
func (s Snapshot) PreferredAppendable() (Segment, error) {
	var (
		best      Segment
		bestCount int
	)
	for _, seg := range s.segments {
		if !seg.Appendable() {
			continue
		}
		n := seg.AvailablePointCount()
		if best == nil || n < bestCount {
			best, bestCount = seg, n
		}
	}
	if best == nil {
		return nil, ErrNoAppendableSegment
	}
	return best, nil
}
