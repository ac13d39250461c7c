package plain

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecshard/model"
	"github.com/hupe1980/vecshard/operation"
)

// fieldIndex maps payload values of one field to offset bitmaps.
type fieldIndex struct {
	schema  operation.FieldSchema
	keyword map[string]*roaring.Bitmap
	integer map[int64]*roaring.Bitmap
	boolean [2]*roaring.Bitmap
}

func newFieldIndex(schema operation.FieldSchema) *fieldIndex {
	return &fieldIndex{
		schema:  schema,
		keyword: make(map[string]*roaring.Bitmap),
		integer: make(map[int64]*roaring.Bitmap),
		boolean: [2]*roaring.Bitmap{roaring.New(), roaring.New()},
	}
}

// add indexes every value of v under off and returns the number of postings written.
func (fi *fieldIndex) add(off uint32, v any) int {
	n := 0
	forEachValue(v, func(x any) {
		if bm := fi.bitmapFor(x, true); bm != nil {
			bm.Add(off)
			n++
		}
	})
	return n
}

func (fi *fieldIndex) remove(off uint32, v any) {
	forEachValue(v, func(x any) {
		if bm := fi.bitmapFor(x, false); bm != nil {
			bm.Remove(off)
		}
	})
}

// lookup returns the postings of value, or false if value cannot be
// answered by this index.
func (fi *fieldIndex) lookup(value any) (*roaring.Bitmap, bool) {
	if !fi.accepts(value) {
		return nil, false
	}
	bm := fi.bitmapFor(value, false)
	if bm == nil {
		return roaring.New(), true
	}
	return bm, true
}

// lookupRange unions the postings of all integer values inside r.
func (fi *fieldIndex) lookupRange(r *model.Range) (*roaring.Bitmap, bool) {
	if fi.schema != operation.SchemaInteger {
		return nil, false
	}
	out := roaring.New()
	for k, bm := range fi.integer {
		if inRange(r, float64(k)) {
			out.Or(bm)
		}
	}
	return out, true
}

func (fi *fieldIndex) accepts(value any) bool {
	switch fi.schema {
	case operation.SchemaKeyword:
		_, ok := value.(string)
		return ok
	case operation.SchemaInteger:
		_, ok := asInt(value)
		return ok
	case operation.SchemaBool:
		_, ok := value.(bool)
		return ok
	}
	return false
}

func (fi *fieldIndex) bitmapFor(value any, create bool) *roaring.Bitmap {
	switch fi.schema {
	case operation.SchemaKeyword:
		s, ok := value.(string)
		if !ok {
			return nil
		}
		bm, ok := fi.keyword[s]
		if !ok && create {
			bm = roaring.New()
			fi.keyword[s] = bm
		}
		return bm
	case operation.SchemaInteger:
		i, ok := asInt(value)
		if !ok {
			return nil
		}
		bm, ok := fi.integer[i]
		if !ok && create {
			bm = roaring.New()
			fi.integer[i] = bm
		}
		return bm
	case operation.SchemaBool:
		b, ok := value.(bool)
		if !ok {
			return nil
		}
		if b {
			return fi.boolean[1]
		}
		return fi.boolean[0]
	}
	return nil
}

func forEachValue(v any, fn func(any)) {
	if arr, ok := v.([]any); ok {
		for _, x := range arr {
			fn(x)
		}
		return
	}
	if v != nil {
		fn(v)
	}
}

func asInt(v any) (int64, bool) {
	f, ok := model.ToFloat(v)
	if !ok || math.Trunc(f) != f || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

func inRange(r *model.Range, v float64) bool {
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
