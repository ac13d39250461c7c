package model

import (
	"slices"
)

// Filter combines conditions on point ids and payload values.
//
// A point matches when every Must condition holds, at least one Should
// condition holds (if any are given) and no MustNot condition holds.
// A nil *Filter matches every point.
type Filter struct {
	Must    []Condition `json:"must,omitempty"`
	Should  []Condition `json:"should,omitempty"`
	MustNot []Condition `json:"must_not,omitempty"`
}

// Condition is a single predicate. Exactly one of Match, Range, HasID,
// IsEmpty or Filter is expected to be set.
type Condition struct {
	Key     string    `json:"key,omitempty"`
	Match   *Match    `json:"match,omitempty"`
	Range   *Range    `json:"range,omitempty"`
	HasID   []PointID `json:"has_id,omitempty"`
	IsEmpty bool      `json:"is_empty,omitempty"`
	Filter  *Filter   `json:"filter,omitempty"`
}

// Match is an equality predicate on a payload value.
// Arrays in the payload match when any element equals Value.
type Match struct {
	Value any `json:"value"`
}

// Range is a numeric range predicate. Nil bounds are open.
type Range struct {
	Gt  *float64 `json:"gt,omitempty"`
	Gte *float64 `json:"gte,omitempty"`
	Lt  *float64 `json:"lt,omitempty"`
	Lte *float64 `json:"lte,omitempty"`
}

// MatchKeyword returns a condition matching key == value.
func MatchKeyword(key, value string) Condition {
	return Condition{Key: key, Match: &Match{Value: value}}
}

// MatchInteger returns a condition matching key == value.
func MatchInteger(key string, value int64) Condition {
	return Condition{Key: key, Match: &Match{Value: value}}
}

// MatchBool returns a condition matching key == value.
func MatchBool(key string, value bool) Condition {
	return Condition{Key: key, Match: &Match{Value: value}}
}

// HasIDs returns a condition matching any of the given point ids.
func HasIDs(ids ...PointID) Condition {
	return Condition{HasID: ids}
}

// Matches reports whether the point with the given id and payload passes f.
func (f *Filter) Matches(id PointID, p Payload) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Must {
		if !c.matches(id, p) {
			return false
		}
	}
	if len(f.Should) > 0 {
		if !slices.ContainsFunc(f.Should, func(c Condition) bool { return c.matches(id, p) }) {
			return false
		}
	}
	for _, c := range f.MustNot {
		if c.matches(id, p) {
			return false
		}
	}
	return true
}

func (c Condition) matches(id PointID, p Payload) bool {
	switch {
	case c.Filter != nil:
		return c.Filter.Matches(id, p)
	case c.HasID != nil:
		return slices.Contains(c.HasID, id)
	case c.IsEmpty:
		v, ok := p[c.Key]
		if !ok || v == nil {
			return true
		}
		if arr, ok := v.([]any); ok {
			return len(arr) == 0
		}
		return false
	case c.Match != nil:
		return anyValue(p[c.Key], func(v any) bool { return ValuesEqual(v, c.Match.Value) })
	case c.Range != nil:
		return anyValue(p[c.Key], func(v any) bool {
			f, ok := ToFloat(v)
			return ok && c.Range.contains(f)
		})
	default:
		return true
	}
}

func (r *Range) contains(v float64) bool {
	if r.Gt != nil && !(v > *r.Gt) {
		return false
	}
	if r.Gte != nil && !(v >= *r.Gte) {
		return false
	}
	if r.Lt != nil && !(v < *r.Lt) {
		return false
	}
	if r.Lte != nil && !(v <= *r.Lte) {
		return false
	}
	return true
}

func anyValue(v any, fn func(any) bool) bool {
	if v == nil {
		return false
	}
	if arr, ok := v.([]any); ok {
		return slices.ContainsFunc(arr, fn)
	}
	return fn(v)
}

// ValuesEqual compares two payload values. Numbers compare by value across
// integer and float representations, since values decoded from the WAL come
// back as float64.
func ValuesEqual(a, b any) bool {
	if fa, ok := ToFloat(a); ok {
		fb, ok := ToFloat(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

// ToFloat converts a numeric payload value to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}
