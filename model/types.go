package model

import (
	"fmt"
	"slices"
)

// PointID is the user-facing stable identifier of a point.
type PointID uint64

// OpID is the identifier the WAL assigns to an admitted operation.
// It is strictly increasing and gap-free per shard.
type OpID = uint64

// Version is the operation identifier that last modified a point.
type Version = uint64

// SegmentID is the unique identifier for a segment within a shard.
type SegmentID uint64

// String returns a string representation of the SegmentID.
func (id SegmentID) String() string {
	return fmt.Sprintf("seg-%d", id)
}

// DefaultVectorName is the name of the unnamed vector.
const DefaultVectorName = ""

// Vectors maps vector names to their values.
type Vectors map[string][]float32

// Clone returns a deep copy of v.
func (v Vectors) Clone() Vectors {
	if v == nil {
		return nil
	}
	out := make(Vectors, len(v))
	for name, vec := range v {
		out[name] = slices.Clone(vec)
	}
	return out
}

// Payload is the JSON-like document attached to a point.
//
// Values are expected to be JSON-compatible: string, bool, float64, int64,
// []any and map[string]any.
type Payload map[string]any

// Clone returns a deep copy of p. Nested []any and map[string]any values are
// copied; scalars are immutable and shared.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		if t == nil {
			return t
		}
		return map[string]any(Payload(t).Clone())
	case Payload:
		return t.Clone()
	default:
		return v
	}
}

// Record represents a full point as stored by a segment.
type Record struct {
	ID      PointID `json:"id"`
	Version Version `json:"version,omitempty"`
	Vectors Vectors `json:"vectors,omitempty"`
	Payload Payload `json:"payload,omitempty"`
}

// Clone returns a copy of r that shares no vector storage with it.
func (r Record) Clone() Record {
	return Record{
		ID:      r.ID,
		Version: r.Version,
		Vectors: r.Vectors.Clone(),
		Payload: r.Payload.Clone(),
	}
}

// ScoredPoint is the unit of search output.
//
// Scores are "higher is better" for every distance metric.
type ScoredPoint struct {
	ID      PointID `json:"id"`
	Version Version `json:"version"`
	Score   float32 `json:"score"`
	Payload Payload `json:"payload,omitempty"`
	Vectors Vectors `json:"vectors,omitempty"`
}

// WithPayload selects which payload to return with search results.
type WithPayload struct {
	Enable bool
	// Include restricts the returned payload to these keys. Empty means all.
	Include []string
}

// Select returns the projection of p requested by w, or nil when disabled.
func (w WithPayload) Select(p Payload) Payload {
	if !w.Enable || p == nil {
		return nil
	}
	if len(w.Include) == 0 {
		return p.Clone()
	}
	out := make(Payload, len(w.Include))
	for _, k := range w.Include {
		if v, ok := p[k]; ok {
			out[k] = cloneValue(v)
		}
	}
	return out
}

// WithVector selects which vectors to return with search results.
type WithVector struct {
	Enable bool
	// Names restricts the returned vectors. Empty means all.
	Names []string
}

// Select returns the projection of v requested by w, or nil when disabled.
func (w WithVector) Select(v Vectors) Vectors {
	if !w.Enable || v == nil {
		return nil
	}
	if len(w.Names) == 0 {
		return v.Clone()
	}
	out := make(Vectors, len(w.Names))
	for _, n := range w.Names {
		if vec, ok := v[n]; ok {
			out[n] = slices.Clone(vec)
		}
	}
	return out
}
