package plain

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecshard/distance"
	"github.com/hupe1980/vecshard/model"
	"github.com/hupe1980/vecshard/operation"
	"github.com/hupe1980/vecshard/segment"
	"github.com/hupe1980/vecshard/telemetry"
)

func newTestSegment(t *testing.T, opts ...Option) *Segment {
	t.Helper()
	s, err := New(1, map[string]segment.VectorConfig{
		"": {Size: 2, Distance: distance.MetricDot},
	}, opts...)
	require.NoError(t, err)
	return s
}

func rec(id model.PointID, x, y float32, payload model.Payload) model.Record {
	return model.Record{ID: id, Vectors: model.Vectors{"": {x, y}}, Payload: payload}
}

func search(t *testing.T, s *Segment, q []float32, opts segment.SearchBatchOptions, qc *segment.QueryContext) []model.ScoredPoint {
	t.Helper()
	res, err := s.SearchBatch(context.Background(), "", [][]float32{q}, opts, qc)
	require.NoError(t, err)
	require.Len(t, res, 1)
	return res[0]
}

func TestUpsertAndRetrieve(t *testing.T) {
	s := newTestSegment(t)

	applied, err := s.Upsert(1, rec(10, 1, 0, model.Payload{"color": "red"}))
	require.NoError(t, err)
	assert.True(t, applied)

	r, err := s.Retrieve(10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.Version)
	assert.Equal(t, "red", r.Payload["color"])

	v, ok := s.PointVersion(10)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), v)
	assert.Equal(t, uint64(1), s.Version())
	assert.Equal(t, 1, s.AvailablePointCount())

	_, err = s.Retrieve(11)
	assert.ErrorIs(t, err, segment.ErrPointNotFound)
}

func TestVersionRule(t *testing.T) {
	s := newTestSegment(t)

	_, err := s.Upsert(5, rec(1, 1, 0, model.Payload{"v": "new"}))
	require.NoError(t, err)

	applied, err := s.Upsert(3, rec(1, 0, 1, model.Payload{"v": "old"}))
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = s.SetPayload(4, 1, model.Payload{"v": "older"}, "")
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = s.Delete(2, 1)
	require.NoError(t, err)
	assert.False(t, applied)

	r, err := s.Retrieve(1)
	require.NoError(t, err)
	assert.Equal(t, "new", r.Payload["v"])

	// Replaying the same op id is allowed.
	applied, err = s.Upsert(5, rec(1, 1, 0, model.Payload{"v": "new"}))
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestValidation(t *testing.T) {
	s := newTestSegment(t)

	_, err := s.Upsert(1, model.Record{ID: 1, Vectors: model.Vectors{"": {1, 2, 3}}})
	assert.ErrorIs(t, err, segment.ErrDimensionMismatch)

	_, err = s.Upsert(1, model.Record{ID: 1, Vectors: model.Vectors{"image": {1, 2}}})
	assert.ErrorIs(t, err, segment.ErrVectorNameNotFound)

	_, err = s.CreateFieldIndex(1, "x", operation.FieldSchema("geo"))
	assert.ErrorIs(t, err, segment.ErrInvalidFieldSchema)

	_, err = New(2, nil)
	assert.Error(t, err)
}

func TestSealed(t *testing.T) {
	s := newTestSegment(t)
	_, err := s.Upsert(1, rec(1, 1, 0, nil))
	require.NoError(t, err)
	s.Seal()

	assert.False(t, s.Appendable())
	_, err = s.Upsert(2, rec(2, 1, 0, nil))
	assert.ErrorIs(t, err, segment.ErrReadOnlySegment)

	applied, err := s.SetPayload(3, 1, model.Payload{"a": "b"}, "")
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.Delete(4, 1)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.False(t, s.HasPoint(1))
}

func TestPayloadEdits(t *testing.T) {
	s := newTestSegment(t)
	_, err := s.Upsert(1, rec(1, 1, 0, model.Payload{"a": "x", "b": "y"}))
	require.NoError(t, err)

	_, err = s.SetPayload(2, 1, model.Payload{"c": "z"}, "")
	require.NoError(t, err)
	_, err = s.SetPayload(3, 1, model.Payload{"lat": 1.5}, "geo")
	require.NoError(t, err)
	_, err = s.DeletePayload(4, 1, []string{"a"})
	require.NoError(t, err)

	r, err := s.Retrieve(1)
	require.NoError(t, err)
	assert.Equal(t, model.Payload{"b": "y", "c": "z", "geo": map[string]any{"lat": 1.5}}, r.Payload)

	_, err = s.OverwritePayload(5, 1, model.Payload{"only": true})
	require.NoError(t, err)
	r, _ = s.Retrieve(1)
	assert.Equal(t, model.Payload{"only": true}, r.Payload)

	_, err = s.ClearPayload(6, 1)
	require.NoError(t, err)
	r, _ = s.Retrieve(1)
	assert.Empty(t, r.Payload)

	_, err = s.ClearPayload(7, 99)
	assert.ErrorIs(t, err, segment.ErrPointNotFound)
}

func TestPayloadIsolatedFromCaller(t *testing.T) {
	s := newTestSegment(t)
	payload := model.Payload{"tags": []any{"a"}}
	_, err := s.Upsert(1, rec(1, 1, 0, payload))
	require.NoError(t, err)

	geo := model.Payload{"path": []any{1.0}}
	_, err = s.SetPayload(2, 1, geo, "")
	require.NoError(t, err)

	payload["tags"].([]any)[0] = "changed"
	geo["path"].([]any)[0] = 9.0

	r, err := s.Retrieve(1)
	require.NoError(t, err)
	assert.Equal(t, model.Payload{"tags": []any{"a"}, "path": []any{1.0}}, r.Payload)

	r.Payload["tags"].([]any)[0] = "changed"
	r, err = s.Retrieve(1)
	require.NoError(t, err)
	assert.Equal(t, "a", r.Payload["tags"].([]any)[0])
}

func TestVectorEdits(t *testing.T) {
	s, err := New(1, map[string]segment.VectorConfig{
		"text":  {Size: 2, Distance: distance.MetricDot},
		"image": {Size: 3, Distance: distance.MetricEuclid},
	})
	require.NoError(t, err)

	_, err = s.Upsert(1, model.Record{ID: 1, Vectors: model.Vectors{"text": {1, 0}}})
	require.NoError(t, err)

	_, err = s.UpdateVectors(2, 1, model.Vectors{"image": {1, 2, 3}})
	require.NoError(t, err)
	r, _ := s.Retrieve(1)
	assert.Len(t, r.Vectors, 2)

	_, err = s.DeleteVectors(3, 1, []string{"text"})
	require.NoError(t, err)
	r, _ = s.Retrieve(1)
	assert.Equal(t, model.Vectors{"image": {1, 2, 3}}, r.Vectors)

	_, err = s.DeleteVectors(4, 1, []string{"audio"})
	assert.ErrorIs(t, err, segment.ErrVectorNameNotFound)

	// Points lacking the searched vector are not returned.
	hits := func() []model.ScoredPoint {
		res, err := s.SearchBatch(context.Background(), "text", [][]float32{{1, 0}}, segment.SearchBatchOptions{Top: 10}, nil)
		require.NoError(t, err)
		return res[0]
	}()
	assert.Empty(t, hits)
}

func TestSearchOrdering(t *testing.T) {
	s := newTestSegment(t)
	for i := 1; i <= 5; i++ {
		_, err := s.Upsert(uint64(i), rec(model.PointID(i), float32(i), 0, model.Payload{"n": int64(i)}))
		require.NoError(t, err)
	}

	hits := search(t, s, []float32{1, 0}, segment.SearchBatchOptions{
		Top:         3,
		WithPayload: model.WithPayload{Enable: true},
	}, nil)

	require.Len(t, hits, 3)
	assert.Equal(t, model.PointID(5), hits[0].ID)
	assert.Equal(t, model.PointID(4), hits[1].ID)
	assert.Equal(t, model.PointID(3), hits[2].ID)
	assert.Equal(t, float32(5), hits[0].Score)
	assert.Equal(t, int64(5), hits[0].Payload["n"])
	assert.Nil(t, hits[0].Vectors)
}

func TestSearchErrors(t *testing.T) {
	s := newTestSegment(t)

	_, err := s.SearchBatch(context.Background(), "missing", [][]float32{{1, 0}}, segment.SearchBatchOptions{Top: 1}, nil)
	assert.ErrorIs(t, err, segment.ErrVectorNameNotFound)

	_, err = s.SearchBatch(context.Background(), "", [][]float32{{1}}, segment.SearchBatchOptions{Top: 1}, nil)
	assert.ErrorIs(t, err, segment.ErrDimensionMismatch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.SearchBatch(ctx, "", [][]float32{{1, 0}}, segment.SearchBatchOptions{Top: 1}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchIgnoresDeleted(t *testing.T) {
	s := newTestSegment(t)
	_, _ = s.Upsert(1, rec(1, 1, 0, nil))
	_, _ = s.Upsert(2, rec(2, 2, 0, nil))
	_, err := s.Delete(3, 2)
	require.NoError(t, err)

	hits := search(t, s, []float32{1, 0}, segment.SearchBatchOptions{Top: 10}, nil)
	require.Len(t, hits, 1)
	assert.Equal(t, model.PointID(1), hits[0].ID)
}

func TestFilteredSearchStrategiesAgree(t *testing.T) {
	s := newTestSegment(t)
	colors := []string{"red", "green", "blue"}
	for i := 0; i < 60; i++ {
		_, err := s.Upsert(uint64(i+1), rec(model.PointID(i), float32(i%7), float32(i%5), model.Payload{
			"color": colors[i%3],
			"size":  int64(i % 4),
			"tags":  []any{fmt.Sprintf("t%d", i%2)},
		}))
		require.NoError(t, err)
	}
	_, err := s.CreateFieldIndex(100, "color", operation.SchemaKeyword)
	require.NoError(t, err)
	_, err = s.CreateFieldIndex(101, "size", operation.SchemaInteger)
	require.NoError(t, err)

	lo := 1.0
	filters := []*model.Filter{
		{Must: []model.Condition{model.MatchKeyword("color", "red")}},
		{Must: []model.Condition{model.MatchKeyword("color", "blue"), {Key: "size", Range: &model.Range{Gte: &lo}}}},
		{Must: []model.Condition{model.MatchInteger("size", 2)}, MustNot: []model.Condition{model.MatchKeyword("tags", "t0")}},
		{Should: []model.Condition{model.MatchKeyword("color", "green"), model.HasIDs(1, 2)}},
		{Must: []model.Condition{model.HasIDs(3, 4, 5, 6)}},
	}

	for i, f := range filters {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			opts := segment.SearchBatchOptions{Top: 10, Filter: f}
			var indexedHW, scanHW telemetry.Accumulator

			indexed := search(t, s, []float32{1, 1}, opts, segment.NewQueryContext(1_000, &indexedHW))
			scanned := search(t, s, []float32{1, 1}, opts, segment.NewQueryContext(1, &scanHW))

			assert.Equal(t, scanned, indexed)
			for _, hit := range indexed {
				r, err := s.Retrieve(hit.ID)
				require.NoError(t, err)
				assert.True(t, f.Matches(hit.ID, r.Payload))
			}
		})
	}
}

func TestIndexedOnly(t *testing.T) {
	s := newTestSegment(t)
	_, _ = s.Upsert(1, rec(1, 1, 0, model.Payload{"color": "red"}))

	f := &model.Filter{Must: []model.Condition{model.MatchKeyword("color", "red")}}
	opts := segment.SearchBatchOptions{Top: 10, Filter: f, Params: &model.SearchParams{IndexedOnly: true}}

	assert.Empty(t, search(t, s, []float32{1, 0}, opts, nil))

	_, err := s.CreateFieldIndex(2, "color", operation.SchemaKeyword)
	require.NoError(t, err)
	assert.Len(t, search(t, s, []float32{1, 0}, opts, nil), 1)
}

func TestFieldIndexMaintenance(t *testing.T) {
	s := newTestSegment(t)
	_, err := s.CreateFieldIndex(1, "color", operation.SchemaKeyword)
	require.NoError(t, err)
	assert.Equal(t, map[string]operation.FieldSchema{"color": operation.SchemaKeyword}, s.IndexedFields())

	_, _ = s.Upsert(2, rec(1, 1, 0, model.Payload{"color": "red"}))
	_, _ = s.SetPayload(3, 1, model.Payload{"color": "blue"}, "")

	red := &model.Filter{Must: []model.Condition{model.MatchKeyword("color", "red")}}
	blue := &model.Filter{Must: []model.Condition{model.MatchKeyword("color", "blue")}}
	opts := segment.SearchBatchOptions{Top: 10, Params: &model.SearchParams{IndexedOnly: true}}

	opts.Filter = red
	assert.Empty(t, search(t, s, []float32{1, 0}, opts, nil))
	opts.Filter = blue
	assert.Len(t, search(t, s, []float32{1, 0}, opts, nil), 1)

	// Stale segment-level ops are skipped.
	applied, err := s.DeleteFieldIndex(2, "color")
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = s.DeleteFieldIndex(4, "color")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Empty(t, s.IndexedFields())
}

func TestReadFiltered(t *testing.T) {
	s := newTestSegment(t)
	_, _ = s.Upsert(1, rec(3, 1, 0, model.Payload{"k": true}))
	_, _ = s.Upsert(2, rec(1, 1, 0, model.Payload{"k": true}))
	_, _ = s.Upsert(3, rec(2, 1, 0, model.Payload{"k": false}))

	f := &model.Filter{Must: []model.Condition{model.MatchBool("k", true)}}
	assert.Equal(t, []model.PointID{1, 3}, s.ReadFiltered(f))
	assert.Equal(t, []model.PointID{1, 2, 3}, s.ReadFiltered(nil))
}

func TestHardwareCounters(t *testing.T) {
	var writes telemetry.Accumulator
	s := newTestSegment(t, WithHardwareCounter(&writes))
	_, err := s.CreateFieldIndex(1, "color", operation.SchemaKeyword)
	require.NoError(t, err)
	_, _ = s.Upsert(2, rec(1, 1, 0, model.Payload{"color": "red"}))

	assert.Positive(t, writes.Get(telemetry.PayloadWrite))
	assert.Equal(t, uint64(1), writes.Get(telemetry.IndexWrite))

	var reads telemetry.Accumulator
	search(t, s, []float32{1, 0}, segment.SearchBatchOptions{Top: 1}, segment.NewQueryContext(0, &reads))
	assert.Equal(t, uint64(8), reads.Get(telemetry.VectorRead))
	assert.Equal(t, uint64(1), reads.Get(telemetry.CPU))
}

func TestCosineNormalizesStoredVectors(t *testing.T) {
	s, err := New(1, map[string]segment.VectorConfig{"": {Size: 2, Distance: distance.MetricCosine}})
	require.NoError(t, err)
	_, _ = s.Upsert(1, rec(1, 3, 4, nil))

	hits := search(t, s, []float32{3, 4}, segment.SearchBatchOptions{Top: 1}, nil)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}
