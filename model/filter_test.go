package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func f64(v float64) *float64 { return &v }

func TestConditionMatches(t *testing.T) {
	payload := Payload{
		"color":  "red",
		"count":  int64(3),
		"price":  2.5,
		"tags":   []any{"a", "b", float64(7)},
		"none":   nil,
		"empty":  []any{},
		"active": true,
	}

	t.Run("IsEmpty", func(t *testing.T) {
		tests := []struct {
			name     string
			key      string
			expected bool
		}{
			{"missing key", "missing", true},
			{"nil value", "none", true},
			{"empty array", "empty", true},
			{"non-empty array", "tags", false},
			{"scalar", "color", false},
			{"bool", "active", false},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				c := Condition{Key: tc.key, IsEmpty: true}
				assert.Equal(t, tc.expected, c.matches(1, payload))
			})
		}
	})

	t.Run("Match", func(t *testing.T) {
		tests := []struct {
			name     string
			cond     Condition
			expected bool
		}{
			{"keyword", MatchKeyword("color", "red"), true},
			{"keyword mismatch", MatchKeyword("color", "blue"), false},
			{"bool", MatchBool("active", true), true},
			{"integer", MatchInteger("count", 3), true},
			{"array any element", MatchKeyword("tags", "b"), true},
			{"array no element", MatchKeyword("tags", "z"), false},
			{"array numeric element", MatchInteger("tags", 7), true},
			{"missing key", MatchKeyword("missing", "red"), false},
			{"nil value", MatchKeyword("none", "red"), false},
			{"type mismatch", MatchKeyword("count", "3"), false},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				assert.Equal(t, tc.expected, tc.cond.matches(1, payload))
			})
		}
	})

	t.Run("Range", func(t *testing.T) {
		tests := []struct {
			name     string
			r        Range
			expected bool
		}{
			{"gt excludes bound", Range{Gt: f64(3)}, false},
			{"gte includes bound", Range{Gte: f64(3)}, true},
			{"lt excludes bound", Range{Lt: f64(3)}, false},
			{"lte includes bound", Range{Lte: f64(3)}, true},
			{"closed interval", Range{Gte: f64(1), Lte: f64(5)}, true},
			{"outside interval", Range{Gt: f64(3), Lt: f64(5)}, false},
			{"open range", Range{}, true},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				c := Condition{Key: "count", Range: &tc.r}
				assert.Equal(t, tc.expected, c.matches(1, payload))
			})
		}

		t.Run("array any element", func(t *testing.T) {
			c := Condition{Key: "tags", Range: &Range{Gte: f64(7)}}
			assert.True(t, c.matches(1, payload))
		})

		t.Run("non-numeric value", func(t *testing.T) {
			c := Condition{Key: "color", Range: &Range{}}
			assert.False(t, c.matches(1, payload))
		})
	})

	t.Run("HasID", func(t *testing.T) {
		assert.True(t, HasIDs(1, 2).matches(2, payload))
		assert.False(t, HasIDs(1, 2).matches(3, payload))
	})

	t.Run("Nested filter", func(t *testing.T) {
		nested := &Filter{Should: []Condition{
			MatchKeyword("color", "blue"),
			MatchInteger("count", 3),
		}}
		assert.True(t, Condition{Filter: nested}.matches(1, payload))

		nested = &Filter{Must: []Condition{
			MatchKeyword("color", "red"),
			{Filter: &Filter{MustNot: []Condition{MatchBool("active", true)}}},
		}}
		assert.False(t, Condition{Filter: nested}.matches(1, payload))
	})
}

func TestFilterMatches(t *testing.T) {
	payload := Payload{"color": "red", "count": int64(3)}

	tests := []struct {
		name     string
		filter   *Filter
		expected bool
	}{
		{"nil filter", nil, true},
		{"empty filter", &Filter{}, true},
		{"all must", &Filter{Must: []Condition{MatchKeyword("color", "red"), MatchInteger("count", 3)}}, true},
		{"one must fails", &Filter{Must: []Condition{MatchKeyword("color", "red"), MatchInteger("count", 4)}}, false},
		{"one should holds", &Filter{Should: []Condition{MatchKeyword("color", "blue"), MatchKeyword("color", "red")}}, true},
		{"no should holds", &Filter{Should: []Condition{MatchKeyword("color", "blue")}}, false},
		{"must not holds", &Filter{MustNot: []Condition{MatchKeyword("color", "red")}}, false},
		{"must not misses", &Filter{MustNot: []Condition{MatchKeyword("color", "blue")}}, true},
		{"all clauses", &Filter{
			Must:    []Condition{MatchInteger("count", 3)},
			Should:  []Condition{MatchKeyword("color", "red")},
			MustNot: []Condition{HasIDs(9)},
		}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.filter.Matches(1, payload))
		})
	}
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		a, b     any
		expected bool
	}{
		{"int64 and float64", int64(3), float64(3), true},
		{"float64 and int64", float64(3), int64(3), true},
		{"int and float32", 2, float32(2), true},
		{"uint64 and int64", uint64(5), int64(5), true},
		{"fractional float", int64(3), 3.5, false},
		{"number and string", int64(3), "3", false},
		{"strings", "a", "a", true},
		{"different strings", "a", "b", false},
		{"bools", true, true, true},
		{"bool and string", true, "true", false},
		{"nil values", nil, nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ValuesEqual(tc.a, tc.b))
		})
	}
}
