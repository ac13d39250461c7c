package plain

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecshard/distance"
	"github.com/hupe1980/vecshard/model"
	"github.com/hupe1980/vecshard/operation"
	"github.com/hupe1980/vecshard/segment"
	"github.com/hupe1980/vecshard/telemetry"
)

type point struct {
	id      model.PointID
	version uint64
	vectors model.Vectors
	payload model.Payload
}

// Segment is an in-memory segment.Segment.
type Segment struct {
	mu         sync.RWMutex
	id         model.SegmentID
	appendable bool
	configs    map[string]segment.VectorConfig
	scorers    map[string]distance.Func
	hw         telemetry.Counter

	points  []point
	offsets map[model.PointID]uint32
	deleted *roaring.Bitmap
	version uint64
	indexes map[string]*fieldIndex
}

var _ segment.Segment = (*Segment)(nil)

// Option configures a Segment.
type Option func(*Segment)

// WithReadOnly creates the segment sealed.
func WithReadOnly() Option {
	return func(s *Segment) { s.appendable = false }
}

// WithHardwareCounter sets the sink for write-side measurements.
func WithHardwareCounter(c telemetry.Counter) Option {
	return func(s *Segment) {
		if c != nil {
			s.hw = c
		}
	}
}

// New creates an empty appendable segment with the given named vectors.
func New(id model.SegmentID, vectors map[string]segment.VectorConfig, opts ...Option) (*Segment, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("segment %s: no vectors configured", id)
	}
	s := &Segment{
		id:         id,
		appendable: true,
		configs:    maps.Clone(vectors),
		scorers:    make(map[string]distance.Func, len(vectors)),
		hw:         telemetry.Disposable(),
		offsets:    make(map[model.PointID]uint32),
		deleted:    roaring.New(),
		indexes:    make(map[string]*fieldIndex),
	}
	for name, cfg := range vectors {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("segment %s: vector %q: %w", id, name, err)
		}
		fn, err := distance.Provider(cfg.Distance)
		if err != nil {
			return nil, err
		}
		s.scorers[name] = fn
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Seal makes the segment non-appendable. Sealed segments still accept
// deletes and edits of points they hold.
func (s *Segment) Seal() {
	s.mu.Lock()
	s.appendable = false
	s.mu.Unlock()
}

func (s *Segment) ID() model.SegmentID { return s.id }

func (s *Segment) Appendable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appendable
}

func (s *Segment) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Segment) PointVersion(id model.PointID) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	off, ok := s.live(id)
	if !ok {
		return 0, false
	}
	return s.points[off].version, true
}

func (s *Segment) HasPoint(id model.PointID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.live(id)
	return ok
}

func (s *Segment) Retrieve(id model.PointID) (model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	off, ok := s.live(id)
	if !ok {
		return model.Record{}, fmt.Errorf("%w: %d", segment.ErrPointNotFound, id)
	}
	p := s.points[off]
	return model.Record{ID: p.id, Version: p.version, Vectors: p.vectors.Clone(), Payload: p.payload.Clone()}, nil
}

// ReadFiltered returns the ids of live points matching filter in ascending order.
func (s *Segment) ReadFiltered(filter *model.Filter) []model.PointID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.PointID
	for id, off := range s.offsets {
		if s.deleted.Contains(off) {
			continue
		}
		if filter.Matches(id, s.points[off].payload) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func (s *Segment) AvailablePointCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points) - int(s.deleted.GetCardinality())
}

// live returns the offset of id if it is present and not deleted.
// Must be called under s.mu.
func (s *Segment) live(id model.PointID) (uint32, bool) {
	off, ok := s.offsets[id]
	if !ok || s.deleted.Contains(off) {
		return 0, false
	}
	return off, true
}

// stale reports whether a point mutation with opID must be skipped.
// Must be called under s.mu.
func (s *Segment) stale(off uint32, opID uint64) bool {
	return opID < s.points[off].version
}

func (s *Segment) bump(opID uint64) {
	if opID > s.version {
		s.version = opID
	}
}

func (s *Segment) prepareVectors(vectors model.Vectors) (model.Vectors, error) {
	out := make(model.Vectors, len(vectors))
	for name, v := range vectors {
		cfg, ok := s.configs[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", segment.ErrVectorNameNotFound, name)
		}
		if len(v) != cfg.Size {
			return nil, fmt.Errorf("%w: vector %q expected %d, got %d", segment.ErrDimensionMismatch, name, cfg.Size, len(v))
		}
		out[name] = slices.Clone(distance.Preprocess(cfg.Distance, v))
	}
	return out, nil
}

func (s *Segment) Upsert(opID uint64, rec model.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.appendable {
		return false, fmt.Errorf("%w: %s", segment.ErrReadOnlySegment, s.id)
	}
	vectors, err := s.prepareVectors(rec.Vectors)
	if err != nil {
		return false, err
	}

	p := point{id: rec.ID, version: opID, vectors: vectors, payload: rec.Payload.Clone()}
	if off, ok := s.live(rec.ID); ok {
		if s.stale(off, opID) {
			return false, nil
		}
		s.unindex(off)
		s.points[off] = p
		s.index(off)
	} else {
		off := uint32(len(s.points))
		s.points = append(s.points, p)
		s.offsets[rec.ID] = off
		s.index(off)
	}
	s.hw.Add(telemetry.PayloadWrite, payloadSize(p.payload))
	s.bump(opID)
	return true, nil
}

func (s *Segment) Delete(opID uint64, id model.PointID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	off, ok := s.live(id)
	if !ok || s.stale(off, opID) {
		return false, nil
	}
	s.unindex(off)
	s.deleted.Add(off)
	s.points[off].version = opID
	s.bump(opID)
	return true, nil
}

// edit applies fn to a live point under the version rule.
func (s *Segment) edit(opID uint64, id model.PointID, fn func(p *point) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	off, ok := s.live(id)
	if !ok {
		return false, fmt.Errorf("%w: %d", segment.ErrPointNotFound, id)
	}
	if s.stale(off, opID) {
		return false, nil
	}
	s.unindex(off)
	err := fn(&s.points[off])
	s.index(off)
	if err != nil {
		return false, err
	}
	s.points[off].version = opID
	s.bump(opID)
	return true, nil
}

func (s *Segment) UpdateVectors(opID uint64, id model.PointID, vectors model.Vectors) (bool, error) {
	prepared, err := func() (model.Vectors, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.prepareVectors(vectors)
	}()
	if err != nil {
		return false, err
	}
	return s.edit(opID, id, func(p *point) error {
		if p.vectors == nil {
			p.vectors = make(model.Vectors, len(prepared))
		}
		maps.Copy(p.vectors, prepared)
		return nil
	})
}

func (s *Segment) DeleteVectors(opID uint64, id model.PointID, names []string) (bool, error) {
	return s.edit(opID, id, func(p *point) error {
		for _, name := range names {
			if _, ok := s.configs[name]; !ok {
				return fmt.Errorf("%w: %q", segment.ErrVectorNameNotFound, name)
			}
		}
		for _, name := range names {
			delete(p.vectors, name)
		}
		return nil
	})
}

func (s *Segment) SetPayload(opID uint64, id model.PointID, payload model.Payload, key string) (bool, error) {
	return s.edit(opID, id, func(p *point) error {
		if p.payload == nil {
			p.payload = make(model.Payload, len(payload))
		}
		target := map[string]any(p.payload)
		if key != "" {
			var nested map[string]any
			switch cur := p.payload[key].(type) {
			case map[string]any:
				nested = maps.Clone(cur)
			case model.Payload:
				nested = maps.Clone(map[string]any(cur))
			default:
				nested = make(map[string]any, len(payload))
			}
			p.payload[key] = nested
			target = nested
		}
		maps.Copy(target, payload.Clone())
		s.hw.Add(telemetry.PayloadWrite, payloadSize(payload))
		return nil
	})
}

func (s *Segment) OverwritePayload(opID uint64, id model.PointID, payload model.Payload) (bool, error) {
	return s.edit(opID, id, func(p *point) error {
		p.payload = payload.Clone()
		s.hw.Add(telemetry.PayloadWrite, payloadSize(payload))
		return nil
	})
}

func (s *Segment) DeletePayload(opID uint64, id model.PointID, keys []string) (bool, error) {
	return s.edit(opID, id, func(p *point) error {
		for _, k := range keys {
			delete(p.payload, k)
		}
		return nil
	})
}

func (s *Segment) ClearPayload(opID uint64, id model.PointID) (bool, error) {
	return s.edit(opID, id, func(p *point) error {
		p.payload = nil
		return nil
	})
}

func (s *Segment) CreateFieldIndex(opID uint64, field string, schema operation.FieldSchema) (bool, error) {
	if !schema.Valid() {
		return false, fmt.Errorf("%w: %q", segment.ErrInvalidFieldSchema, schema)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if opID < s.version {
		return false, nil
	}
	fi := newFieldIndex(schema)
	var writes int
	for off := range s.points {
		if s.deleted.Contains(uint32(off)) {
			continue
		}
		if v, ok := s.points[off].payload[field]; ok {
			writes += fi.add(uint32(off), v)
		}
	}
	s.indexes[field] = fi
	s.hw.Add(telemetry.IndexWrite, uint64(writes))
	s.bump(opID)
	return true, nil
}

func (s *Segment) DeleteFieldIndex(opID uint64, field string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if opID < s.version {
		return false, nil
	}
	delete(s.indexes, field)
	s.bump(opID)
	return true, nil
}

// IndexedFields returns the indexed payload fields and their schema.
func (s *Segment) IndexedFields() map[string]operation.FieldSchema {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]operation.FieldSchema, len(s.indexes))
	for k, fi := range s.indexes {
		out[k] = fi.schema
	}
	return out
}

func (s *Segment) index(off uint32) {
	var writes int
	for field, fi := range s.indexes {
		if v, ok := s.points[off].payload[field]; ok {
			writes += fi.add(off, v)
		}
	}
	if writes > 0 {
		s.hw.Add(telemetry.IndexWrite, uint64(writes))
	}
}

func (s *Segment) unindex(off uint32) {
	for field, fi := range s.indexes {
		if v, ok := s.points[off].payload[field]; ok {
			fi.remove(off, v)
		}
	}
}

// SearchBatch implements segment.Segment.
func (s *Segment) SearchBatch(ctx context.Context, vectorName string, queries [][]float32, opts segment.SearchBatchOptions, qc *segment.QueryContext) ([][]model.ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[vectorName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", segment.ErrVectorNameNotFound, vectorName)
	}
	score := s.scorers[vectorName]
	hw := qc.Counter()

	offsets, err := s.plan(opts, qc.Threshold())
	if err != nil {
		return nil, err
	}

	out := make([][]model.ScoredPoint, len(queries))
	for qi, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(q) != cfg.Size {
			return nil, fmt.Errorf("%w: query expected %d, got %d", segment.ErrDimensionMismatch, cfg.Size, len(q))
		}
		out[qi] = s.searchOne(distance.Preprocess(cfg.Distance, q), vectorName, score, offsets, opts, hw)
	}
	return out, nil
}

// plan returns the offsets to score, or nil for a full scan.
func (s *Segment) plan(opts segment.SearchBatchOptions, threshold int) (*roaring.Bitmap, error) {
	if opts.Filter == nil {
		return nil, nil
	}
	cands, ok := s.candidates(opts.Filter)
	indexedOnly := opts.Params != nil && opts.Params.IndexedOnly
	switch {
	case ok && cands.GetCardinality() < uint64(threshold):
		return cands, nil
	case !ok && indexedOnly:
		return roaring.New(), nil
	default:
		return nil, nil
	}
}

// candidates resolves the Must conditions of f answerable from indexes to an
// offset bitmap that is a superset of the matching live points.
func (s *Segment) candidates(f *model.Filter) (*roaring.Bitmap, bool) {
	var acc *roaring.Bitmap
	intersect := func(bm *roaring.Bitmap) {
		if acc == nil {
			acc = bm.Clone()
			return
		}
		acc.And(bm)
	}

	for _, c := range f.Must {
		switch {
		case c.HasID != nil:
			bm := roaring.New()
			for _, id := range c.HasID {
				if off, ok := s.offsets[id]; ok {
					bm.Add(off)
				}
			}
			intersect(bm)
		case c.Match != nil:
			fi, ok := s.indexes[c.Key]
			if !ok {
				continue
			}
			if bm, ok := fi.lookup(c.Match.Value); ok {
				intersect(bm)
			}
		case c.Range != nil:
			fi, ok := s.indexes[c.Key]
			if !ok {
				continue
			}
			if bm, ok := fi.lookupRange(c.Range); ok {
				intersect(bm)
			}
		}
	}
	if acc == nil {
		return nil, false
	}
	acc.AndNot(s.deleted)
	return acc, true
}

func (s *Segment) searchOne(q []float32, name string, score distance.Func, offsets *roaring.Bitmap, opts segment.SearchBatchOptions, hw telemetry.Counter) []model.ScoredPoint {
	if opts.Top <= 0 {
		return []model.ScoredPoint{}
	}

	var (
		hits    []model.ScoredPoint
		scanned uint64
	)
	visit := func(off uint32) {
		if s.deleted.Contains(off) {
			return
		}
		p := &s.points[off]
		if opts.Filter != nil {
			hw.Add(telemetry.PayloadRead, payloadSize(p.payload))
			if !opts.Filter.Matches(p.id, p.payload) {
				return
			}
		}
		v, ok := p.vectors[name]
		if !ok {
			return
		}
		scanned++
		hw.Add(telemetry.VectorRead, uint64(len(v)*4))
		hits = append(hits, model.ScoredPoint{ID: p.id, Version: p.version, Score: score(q, v)})
	}

	if offsets != nil {
		it := offsets.Iterator()
		for it.HasNext() {
			visit(it.Next())
		}
	} else {
		for off := range s.points {
			visit(uint32(off))
		}
	}
	hw.Add(telemetry.CPU, scanned)

	slices.SortFunc(hits, func(a, b model.ScoredPoint) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(hits) > opts.Top {
		hits = hits[:opts.Top]
	}

	for i := range hits {
		p := &s.points[s.offsets[hits[i].ID]]
		hits[i].Payload = opts.WithPayload.Select(p.payload)
		hits[i].Vectors = opts.WithVector.Select(p.vectors)
	}
	if hits == nil {
		hits = []model.ScoredPoint{}
	}
	return hits
}

// payloadSize estimates the in-memory size of a payload in bytes.
func payloadSize(p map[string]any) uint64 {
	var n uint64
	for k, v := range p {
		n += uint64(len(k)) + valueSize(v)
	}
	return n
}

func valueSize(v any) uint64 {
	switch x := v.(type) {
	case string:
		return uint64(len(x))
	case bool:
		return 1
	case []any:
		var n uint64
		for _, e := range x {
			n += valueSize(e)
		}
		return n
	case map[string]any:
		return payloadSize(x)
	case model.Payload:
		return payloadSize(x)
	case nil:
		return 0
	default:
		return 8
	}
}
