package testutil

import (
	"cmp"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/vecshard/distance"
	"github.com/hupe1980/vecshard/model"
)

// RNG wraps a seeded random source. It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// FillUniformRange fills dst with random values in range [minVal, maxVal).
func (r *RNG) FillUniformRange(dst []float32, minVal, maxVal float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	span := maxVal - minVal
	for i := range dst {
		dst[i] = minVal + r.rand.Float32()*span
	}
}

// Vector returns a vector with values in [-1, 1).
func (r *RNG) Vector(dim int) []float32 {
	v := make([]float32, dim)
	r.FillUniformRange(v, -1, 1)
	return v
}

// Records returns n points with ids 1..n and a random default vector.
// payload may be nil.
func (r *RNG) Records(n, dim int, payload func(i int) model.Payload) []model.Record {
	recs := make([]model.Record, n)
	for i := range recs {
		recs[i] = model.Record{
			ID:      model.PointID(i + 1),
			Vectors: model.Vectors{model.DefaultVectorName: r.Vector(dim)},
		}
		if payload != nil {
			recs[i].Payload = payload(i)
		}
	}
	return recs
}

// ExactTopK scores every record passing filter against query and returns
// the best k, ordered by score descending then id ascending.
func ExactTopK(query []float32, recs []model.Record, k int, metric distance.Metric, filter *model.Filter) []model.ScoredPoint {
	score, err := distance.Provider(metric)
	if err != nil {
		return nil
	}
	q := distance.Preprocess(metric, query)
	out := make([]model.ScoredPoint, 0, len(recs))
	for _, rec := range recs {
		if !filter.Matches(rec.ID, rec.Payload) {
			continue
		}
		vec, ok := rec.Vectors[model.DefaultVectorName]
		if !ok {
			continue
		}
		if len(vec) != len(q) {
			continue
		}
		out = append(out, model.ScoredPoint{ID: rec.ID, Version: rec.Version, Score: score(q, distance.Preprocess(metric, vec))})
	}
	slices.SortFunc(out, func(a, b model.ScoredPoint) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// IDs returns the ids of points in order.
func IDs(points []model.ScoredPoint) []model.PointID {
	ids := make([]model.PointID, len(points))
	for i, p := range points {
		ids[i] = p.ID
	}
	return ids
}
