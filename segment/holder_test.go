package segment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecshard/distance"
	"github.com/hupe1980/vecshard/internal/segment/plain"
	"github.com/hupe1980/vecshard/model"
	"github.com/hupe1980/vecshard/segment"
	"github.com/hupe1980/vecshard/telemetry"
)

var vectors = map[string]segment.VectorConfig{"": {Size: 2, Distance: distance.MetricDot}}

func newPlain(t *testing.T, id model.SegmentID, sealed bool, points ...model.PointID) *plain.Segment {
	t.Helper()
	s, err := plain.New(id, vectors)
	require.NoError(t, err)
	for i, p := range points {
		_, err := s.Upsert(uint64(i+1), model.Record{ID: p, Vectors: model.Vectors{"": {1, 0}}})
		require.NoError(t, err)
	}
	if sealed {
		s.Seal()
	}
	return s
}

func ids(segs []segment.Segment) []model.SegmentID {
	out := make([]model.SegmentID, len(segs))
	for i, s := range segs {
		out[i] = s.ID()
	}
	return out
}

func TestSnapshotOrder(t *testing.T) {
	h, err := segment.NewHolder(
		newPlain(t, 4, false),
		newPlain(t, 1, true),
		newPlain(t, 3, false),
		newPlain(t, 2, true),
	)
	require.NoError(t, err)

	snap := h.Read()
	assert.Equal(t, []model.SegmentID{1, 2, 3, 4}, ids(snap.NonAppendableThenAppendable()))
	assert.Equal(t, []model.SegmentID{3, 4}, ids(snap.Appendable()))
	assert.Equal(t, 4, snap.Len())
	assert.Equal(t, model.SegmentID(5), h.NextID())
}

func TestSnapshotIsolation(t *testing.T) {
	h, err := segment.NewHolder(newPlain(t, 1, false))
	require.NoError(t, err)

	snap := h.Read()
	require.NoError(t, h.Add(newPlain(t, 2, false)))

	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, 2, h.Len())

	_, ok := h.Remove(1)
	assert.True(t, ok)
	_, ok = h.Remove(1)
	assert.False(t, ok)
	_, ok = snap.Get(1)
	assert.True(t, ok)
}

func TestAddDuplicate(t *testing.T) {
	h, err := segment.NewHolder(newPlain(t, 1, false))
	require.NoError(t, err)
	assert.ErrorIs(t, h.Add(newPlain(t, 1, false)), segment.ErrDuplicateSegment)
}

func TestPreferredAppendable(t *testing.T) {
	h, err := segment.NewHolder(
		newPlain(t, 1, true),
		newPlain(t, 2, false, 10, 11),
		newPlain(t, 3, false, 12),
		newPlain(t, 4, false, 13),
	)
	require.NoError(t, err)

	s, err := h.AppendableSegment()
	require.NoError(t, err)
	assert.Equal(t, model.SegmentID(3), s.ID())

	assert.Equal(t, []model.SegmentID{2}, ids(h.Read().Holding(11)))

	empty, err := segment.NewHolder(newPlain(t, 1, true))
	require.NoError(t, err)
	_, err = empty.AppendableSegment()
	assert.ErrorIs(t, err, segment.ErrNoAppendableSegment)
}

func TestQueryContextDefaults(t *testing.T) {
	qc := segment.NewQueryContext(0, nil)
	assert.Equal(t, segment.DefaultFullScanThreshold, qc.FullScanThreshold)
	assert.NotNil(t, qc.Counter())

	var nilQC *segment.QueryContext
	assert.Equal(t, segment.DefaultFullScanThreshold, nilQC.Threshold())
	assert.NotPanics(t, func() { nilQC.Counter().Add(telemetry.CPU, 1) })
}

func TestVectorConfigValidate(t *testing.T) {
	assert.NoError(t, segment.VectorConfig{Size: 3, Distance: distance.MetricCosine}.Validate())
	assert.Error(t, segment.VectorConfig{Size: 0}.Validate())
	assert.Error(t, segment.VectorConfig{Size: 3, Distance: distance.Metric(9)}.Validate())
}
