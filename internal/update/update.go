package update

import (
	"fmt"
	"slices"

	"github.com/hupe1980/vecshard/model"
	"github.com/hupe1980/vecshard/operation"
	"github.com/hupe1980/vecshard/segment"
)

// ProcessPointOperation applies an insert or delete operation.
func ProcessPointOperation(h *segment.Holder, opID uint64, op operation.PointOperation) (int, error) {
	snap := h.Read()
	switch o := op.(type) {
	case operation.UpsertPoints:
		return upsertPoints(snap, opID, o.Points)
	case operation.DeletePoints:
		return deletePoints(snap, opID, o.IDs)
	case operation.DeletePointsByFilter:
		return deletePoints(snap, opID, filtered(snap, o.Filter))
	default:
		return 0, fmt.Errorf("unsupported point operation %T", op)
	}
}

// ProcessVectorOperation applies a named-vector edit.
func ProcessVectorOperation(h *segment.Holder, opID uint64, op operation.VectorOperation) (int, error) {
	snap := h.Read()
	switch o := op.(type) {
	case operation.UpdateVectors:
		var n int
		for _, pv := range o.Points {
			applied, err := editPoint(snap, opID, pv.ID, func(s segment.Segment) (bool, error) {
				return s.UpdateVectors(opID, pv.ID, pv.Vectors)
			})
			if err != nil {
				return n, err
			}
			if applied {
				n++
			}
		}
		return n, nil
	case operation.DeleteVectors:
		return editSelected(snap, opID, o.IDs, o.Filter, func(s segment.Segment, id model.PointID) (bool, error) {
			return s.DeleteVectors(opID, id, o.Names)
		})
	default:
		return 0, fmt.Errorf("unsupported vector operation %T", op)
	}
}

// ProcessPayloadOperation applies a payload edit.
func ProcessPayloadOperation(h *segment.Holder, opID uint64, op operation.PayloadOperation) (int, error) {
	snap := h.Read()
	switch o := op.(type) {
	case operation.SetPayload:
		return editSelected(snap, opID, o.IDs, o.Filter, func(s segment.Segment, id model.PointID) (bool, error) {
			return s.SetPayload(opID, id, o.Payload, o.Key)
		})
	case operation.OverwritePayload:
		return editSelected(snap, opID, o.IDs, o.Filter, func(s segment.Segment, id model.PointID) (bool, error) {
			return s.OverwritePayload(opID, id, o.Payload)
		})
	case operation.DeletePayload:
		return editSelected(snap, opID, o.IDs, o.Filter, func(s segment.Segment, id model.PointID) (bool, error) {
			return s.DeletePayload(opID, id, o.Keys)
		})
	case operation.ClearPayload:
		return editSelected(snap, opID, o.IDs, o.Filter, func(s segment.Segment, id model.PointID) (bool, error) {
			return s.ClearPayload(opID, id)
		})
	default:
		return 0, fmt.Errorf("unsupported payload operation %T", op)
	}
}

// ProcessFieldIndexOperation creates or drops a payload index on every segment.
func ProcessFieldIndexOperation(h *segment.Holder, opID uint64, op operation.FieldIndexOperation) (int, error) {
	var apply func(segment.Segment) (bool, error)
	switch o := op.(type) {
	case operation.CreateFieldIndex:
		if !o.Schema.Valid() {
			return 0, fmt.Errorf("%w: %q", segment.ErrInvalidFieldSchema, o.Schema)
		}
		apply = func(s segment.Segment) (bool, error) { return s.CreateFieldIndex(opID, o.Field, o.Schema) }
	case operation.DeleteFieldIndex:
		apply = func(s segment.Segment) (bool, error) { return s.DeleteFieldIndex(opID, o.Field) }
	default:
		return 0, fmt.Errorf("unsupported field index operation %T", op)
	}

	var n int
	for _, s := range h.Read().NonAppendableThenAppendable() {
		applied, err := apply(s)
		if err != nil {
			return n, fmt.Errorf("segment %s: %w", s.ID(), err)
		}
		if applied {
			n++
		}
	}
	return n, nil
}

func upsertPoints(snap segment.Snapshot, opID uint64, points []model.Record) (int, error) {
	var n int
	for _, rec := range points {
		holding := snap.Holding(rec.ID)
		if _, v, ok := newest(holding, rec.ID); ok && opID < v {
			continue
		}

		var target segment.Segment
		for _, s := range holding {
			if s.Appendable() {
				target = s
				break
			}
		}
		if target == nil {
			var err error
			if target, err = snap.PreferredAppendable(); err != nil {
				return n, err
			}
		}

		applied, err := target.Upsert(opID, rec)
		if err != nil {
			return n, fmt.Errorf("segment %s: upsert %d: %w", target.ID(), rec.ID, err)
		}
		if err := deleteFromOthers(holding, target, opID, rec.ID); err != nil {
			return n, err
		}
		if applied {
			n++
		}
	}
	return n, nil
}

func deletePoints(snap segment.Snapshot, opID uint64, ids []model.PointID) (int, error) {
	var n int
	for _, id := range ids {
		var deleted bool
		for _, s := range snap.Holding(id) {
			applied, err := s.Delete(opID, id)
			if err != nil {
				return n, fmt.Errorf("segment %s: delete %d: %w", s.ID(), id, err)
			}
			deleted = deleted || applied
		}
		if deleted {
			n++
		}
	}
	return n, nil
}

// editSelected applies fn to explicit ids (which must exist) and to every
// point matching filter (which may match nothing).
func editSelected(snap segment.Snapshot, opID uint64, ids []model.PointID, filter *model.Filter, fn func(segment.Segment, model.PointID) (bool, error)) (int, error) {
	var n int
	seen := make(map[model.PointID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		applied, err := editPoint(snap, opID, id, func(s segment.Segment) (bool, error) { return fn(s, id) })
		if err != nil {
			return n, err
		}
		if applied {
			n++
		}
	}
	if filter == nil {
		return n, nil
	}
	for _, id := range filtered(snap, filter) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		applied, err := editPoint(snap, opID, id, func(s segment.Segment) (bool, error) { return fn(s, id) })
		if err != nil {
			return n, err
		}
		if applied {
			n++
		}
	}
	return n, nil
}

// editPoint applies fn to the newest copy of id. A copy held only by a sealed
// segment is moved to an appendable segment first.
func editPoint(snap segment.Snapshot, opID uint64, id model.PointID, fn func(segment.Segment) (bool, error)) (bool, error) {
	holding := snap.Holding(id)
	src, version, ok := newest(holding, id)
	if !ok {
		return false, fmt.Errorf("%w: %d", segment.ErrPointNotFound, id)
	}
	if opID < version {
		return false, nil
	}

	target := src
	if !src.Appendable() {
		rec, err := src.Retrieve(id)
		if err != nil {
			return false, fmt.Errorf("segment %s: %w", src.ID(), err)
		}
		if target, err = snap.PreferredAppendable(); err != nil {
			return false, err
		}
		if _, err := target.Upsert(opID, rec); err != nil {
			return false, fmt.Errorf("segment %s: move %d: %w", target.ID(), id, err)
		}
	}

	applied, err := fn(target)
	if err != nil {
		return false, fmt.Errorf("segment %s: %w", target.ID(), err)
	}
	if err := deleteFromOthers(holding, target, opID, id); err != nil {
		return false, err
	}
	return applied, nil
}

func deleteFromOthers(holding []segment.Segment, keep segment.Segment, opID uint64, id model.PointID) error {
	for _, s := range holding {
		if s.ID() == keep.ID() {
			continue
		}
		if _, err := s.Delete(opID, id); err != nil {
			return fmt.Errorf("segment %s: delete %d: %w", s.ID(), id, err)
		}
	}
	return nil
}

// newest returns the segment holding the highest version of id. Ties prefer
// appendable segments.
func newest(holding []segment.Segment, id model.PointID) (segment.Segment, uint64, bool) {
	var (
		best    segment.Segment
		version uint64
	)
	for _, s := range holding {
		v, ok := s.PointVersion(id)
		if !ok {
			continue
		}
		if best == nil || v > version || (v == version && s.Appendable() && !best.Appendable()) {
			best, version = s, v
		}
	}
	return best, version, best != nil
}

// filtered returns the ids matching filter in any segment, ascending.
func filtered(snap segment.Snapshot, filter *model.Filter) []model.PointID {
	var out []model.PointID
	for _, s := range snap.NonAppendableThenAppendable() {
		out = append(out, s.ReadFiltered(filter)...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
