package segment

import (
	"context"
	"fmt"

	"github.com/hupe1980/vecshard/distance"
	"github.com/hupe1980/vecshard/model"
	"github.com/hupe1980/vecshard/operation"
	"github.com/hupe1980/vecshard/telemetry"
)

// DefaultFullScanThreshold is the candidate count above which a filtered
// search scans all points instead of the index candidates.
const DefaultFullScanThreshold = 10_000

// VectorConfig describes one named vector of a segment.
type VectorConfig struct {
	Size     int             `json:"size" yaml:"size"`
	Distance distance.Metric `json:"distance" yaml:"distance"`
}

// Validate checks the configuration.
func (c VectorConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("invalid vector size: %d", c.Size)
	}
	if _, err := distance.Provider(c.Distance); err != nil {
		return err
	}
	return nil
}

// QueryContext carries per-call search settings. A new one is created for
// every search call.
type QueryContext struct {
	FullScanThreshold int
	Hardware          telemetry.Counter
}

// NewQueryContext creates a query context. A non-positive threshold selects
// DefaultFullScanThreshold, a nil counter discards measurements.
func NewQueryContext(threshold int, hw telemetry.Counter) *QueryContext {
	if threshold <= 0 {
		threshold = DefaultFullScanThreshold
	}
	if hw == nil {
		hw = telemetry.Disposable()
	}
	return &QueryContext{FullScanThreshold: threshold, Hardware: hw}
}

// Counter returns the hardware sink, never nil.
func (qc *QueryContext) Counter() telemetry.Counter {
	if qc == nil || qc.Hardware == nil {
		return telemetry.Disposable()
	}
	return qc.Hardware
}

// Threshold returns the effective full-scan threshold.
func (qc *QueryContext) Threshold() int {
	if qc == nil || qc.FullScanThreshold <= 0 {
		return DefaultFullScanThreshold
	}
	return qc.FullScanThreshold
}

// SearchBatchOptions applies to every query of a SearchBatch call.
type SearchBatchOptions struct {
	WithPayload model.WithPayload
	WithVector  model.WithVector
	Filter      *model.Filter
	Top         int
	Params      *model.SearchParams
}

// Segment is a set of points searchable by vector similarity.
//
// Mutations take the operation id first and return applied=false when the
// segment already holds a newer version of the target, in which case
// nothing changes.
type Segment interface {
	ID() model.SegmentID
	Appendable() bool
	// Version is the highest operation id applied to the segment.
	Version() uint64

	PointVersion(id model.PointID) (uint64, bool)
	HasPoint(id model.PointID) bool
	Retrieve(id model.PointID) (model.Record, error)
	ReadFiltered(filter *model.Filter) []model.PointID
	AvailablePointCount() int

	Upsert(opID uint64, rec model.Record) (bool, error)
	Delete(opID uint64, id model.PointID) (bool, error)
	UpdateVectors(opID uint64, id model.PointID, vectors model.Vectors) (bool, error)
	DeleteVectors(opID uint64, id model.PointID, names []string) (bool, error)
	SetPayload(opID uint64, id model.PointID, payload model.Payload, key string) (bool, error)
	OverwritePayload(opID uint64, id model.PointID, payload model.Payload) (bool, error)
	DeletePayload(opID uint64, id model.PointID, keys []string) (bool, error)
	ClearPayload(opID uint64, id model.PointID) (bool, error)
	CreateFieldIndex(opID uint64, field string, schema operation.FieldSchema) (bool, error)
	DeleteFieldIndex(opID uint64, field string) (bool, error)

	// SearchBatch answers each query with at most opts.Top points, best first.
	// The result has exactly one list per query.
	SearchBatch(ctx context.Context, vectorName string, queries [][]float32, opts SearchBatchOptions, qc *QueryContext) ([][]model.ScoredPoint, error)
}
