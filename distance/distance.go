package distance

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Metric represents the similarity metric used for vector comparison.
type Metric int

const (
	MetricDot Metric = iota
	MetricCosine
	MetricEuclid
	MetricManhattan
)

func (m Metric) String() string {
	switch m {
	case MetricDot:
		return "Dot"
	case MetricCosine:
		return "Cosine"
	case MetricEuclid:
		return "Euclid"
	case MetricManhattan:
		return "Manhattan"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// ParseMetric parses a metric name (case-insensitive).
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(s) {
	case "dot":
		return MetricDot, nil
	case "cosine":
		return MetricCosine, nil
	case "euclid", "l2":
		return MetricEuclid, nil
	case "manhattan", "l1":
		return MetricManhattan, nil
	default:
		return 0, fmt.Errorf("unsupported metric %q", s)
	}
}

// Func scores two vectors of equal length. Higher is better.
type Func func(a, b []float32) float32

// Provider returns the scoring function for the given metric.
//
// Cosine scoring assumes both inputs are already normalized (see Preprocess).
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricDot, MetricCosine:
		return Dot, nil
	case MetricEuclid:
		return func(a, b []float32) float32 { return -float32(math.Sqrt(float64(SquaredL2(a, b)))) }, nil
	case MetricManhattan:
		return func(a, b []float32) float32 { return -L1(a, b) }, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}

// Preprocess prepares a vector for storage or querying under metric m.
// Cosine vectors are normalized into a copy; others are returned as is.
func Preprocess(m Metric, v []float32) []float32 {
	if m != MetricCosine {
		return v
	}
	out, ok := NormalizeL2Copy(v)
	if !ok {
		return v
	}
	return out
}

// Score computes the similarity of a and b under metric m.
func Score(m Metric, a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector sizes do not match: %d != %d", len(a), len(b))
	}
	fn, err := Provider(m)
	if err != nil {
		return 0, err
	}
	return fn(Preprocess(m, a), Preprocess(m, b)), nil
}

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 calculates the squared Euclidean distance between two vectors.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// L1 calculates the Manhattan distance between two vectors.
func L1(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += float32(math.Abs(float64(a[i] - b[i])))
	}
	return sum
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := float32(1 / math.Sqrt(float64(norm2)))
	for i := range v {
		v[i] *= inv
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}
