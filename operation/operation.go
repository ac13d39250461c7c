package operation

import (
	"fmt"

	"github.com/hupe1980/vecshard/model"
)

// Kind is the top-level class of an operation.
type Kind int

const (
	KindPoint Kind = iota
	KindVector
	KindPayload
	KindFieldIndex
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindVector:
		return "vector"
	case KindPayload:
		return "payload"
	case KindFieldIndex:
		return "field_index"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Operation is an immutable mutation request.
// The set of implementations is closed to this package.
type Operation interface {
	Kind() Kind
	// Name is the stable variant tag persisted in the envelope.
	Name() string
	isOperation()
}

// PointOperation inserts or removes whole points.
type PointOperation interface {
	Operation
	isPointOperation()
}

// VectorOperation edits named vectors of existing points.
type VectorOperation interface {
	Operation
	isVectorOperation()
}

// PayloadOperation edits payloads of existing points.
type PayloadOperation interface {
	Operation
	isPayloadOperation()
}

// FieldIndexOperation creates or drops payload field indexes.
type FieldIndexOperation interface {
	Operation
	isFieldIndexOperation()
}

// Variant tags.
const (
	NameUpsertPoints         = "upsert_points"
	NameDeletePoints         = "delete_points"
	NameDeletePointsByFilter = "delete_points_by_filter"
	NameUpdateVectors        = "update_vectors"
	NameDeleteVectors        = "delete_vectors"
	NameSetPayload           = "set_payload"
	NameOverwritePayload     = "overwrite_payload"
	NameDeletePayload        = "delete_payload"
	NameClearPayload         = "clear_payload"
	NameCreateFieldIndex     = "create_field_index"
	NameDeleteFieldIndex     = "delete_field_index"
)

// UpsertPoints inserts points or replaces them entirely.
type UpsertPoints struct {
	Points []model.Record `json:"points"`
}

// DeletePoints removes points by id.
type DeletePoints struct {
	IDs []model.PointID `json:"ids"`
}

// DeletePointsByFilter removes every point matching Filter.
type DeletePointsByFilter struct {
	Filter *model.Filter `json:"filter"`
}

// PointVectors carries new named vectors for one point.
type PointVectors struct {
	ID      model.PointID `json:"id"`
	Vectors model.Vectors `json:"vectors"`
}

// UpdateVectors replaces the given named vectors, keeping the others.
type UpdateVectors struct {
	Points []PointVectors `json:"points"`
}

// DeleteVectors removes named vectors from the selected points.
type DeleteVectors struct {
	IDs    []model.PointID `json:"ids,omitempty"`
	Filter *model.Filter   `json:"filter,omitempty"`
	Names  []string        `json:"names"`
}

// SetPayload merges Payload into the payload of the selected points.
// With Key set, Payload is merged into the nested object at Key.
type SetPayload struct {
	IDs     []model.PointID `json:"ids,omitempty"`
	Filter  *model.Filter   `json:"filter,omitempty"`
	Payload model.Payload   `json:"payload"`
	Key     string          `json:"key,omitempty"`
}

// OverwritePayload replaces the payload of the selected points.
type OverwritePayload struct {
	IDs     []model.PointID `json:"ids,omitempty"`
	Filter  *model.Filter   `json:"filter,omitempty"`
	Payload model.Payload   `json:"payload"`
}

// DeletePayload removes keys from the payload of the selected points.
type DeletePayload struct {
	IDs    []model.PointID `json:"ids,omitempty"`
	Filter *model.Filter   `json:"filter,omitempty"`
	Keys   []string        `json:"keys"`
}

// ClearPayload removes the whole payload of the selected points.
type ClearPayload struct {
	IDs    []model.PointID `json:"ids,omitempty"`
	Filter *model.Filter   `json:"filter,omitempty"`
}

// FieldSchema is the value type a payload field index is built for.
type FieldSchema string

const (
	SchemaKeyword FieldSchema = "keyword"
	SchemaInteger FieldSchema = "integer"
	SchemaBool    FieldSchema = "bool"
)

// Valid reports whether s is a supported schema.
func (s FieldSchema) Valid() bool {
	switch s {
	case SchemaKeyword, SchemaInteger, SchemaBool:
		return true
	}
	return false
}

// CreateFieldIndex builds a payload index on Field.
type CreateFieldIndex struct {
	Field  string      `json:"field"`
	Schema FieldSchema `json:"schema"`
}

// DeleteFieldIndex drops the payload index on Field.
type DeleteFieldIndex struct {
	Field string `json:"field"`
}

func (UpsertPoints) Kind() Kind         { return KindPoint }
func (DeletePoints) Kind() Kind         { return KindPoint }
func (DeletePointsByFilter) Kind() Kind { return KindPoint }
func (UpdateVectors) Kind() Kind        { return KindVector }
func (DeleteVectors) Kind() Kind        { return KindVector }
func (SetPayload) Kind() Kind           { return KindPayload }
func (OverwritePayload) Kind() Kind     { return KindPayload }
func (DeletePayload) Kind() Kind        { return KindPayload }
func (ClearPayload) Kind() Kind         { return KindPayload }
func (CreateFieldIndex) Kind() Kind     { return KindFieldIndex }
func (DeleteFieldIndex) Kind() Kind     { return KindFieldIndex }

func (UpsertPoints) Name() string         { return NameUpsertPoints }
func (DeletePoints) Name() string         { return NameDeletePoints }
func (DeletePointsByFilter) Name() string { return NameDeletePointsByFilter }
func (UpdateVectors) Name() string        { return NameUpdateVectors }
func (DeleteVectors) Name() string        { return NameDeleteVectors }
func (SetPayload) Name() string           { return NameSetPayload }
func (OverwritePayload) Name() string     { return NameOverwritePayload }
func (DeletePayload) Name() string        { return NameDeletePayload }
func (ClearPayload) Name() string         { return NameClearPayload }
func (CreateFieldIndex) Name() string     { return NameCreateFieldIndex }
func (DeleteFieldIndex) Name() string     { return NameDeleteFieldIndex }

func (UpsertPoints) isOperation()         {}
func (DeletePoints) isOperation()         {}
func (DeletePointsByFilter) isOperation() {}
func (UpdateVectors) isOperation()        {}
func (DeleteVectors) isOperation()        {}
func (SetPayload) isOperation()           {}
func (OverwritePayload) isOperation()     {}
func (DeletePayload) isOperation()        {}
func (ClearPayload) isOperation()         {}
func (CreateFieldIndex) isOperation()     {}
func (DeleteFieldIndex) isOperation()     {}

func (UpsertPoints) isPointOperation()         {}
func (DeletePoints) isPointOperation()         {}
func (DeletePointsByFilter) isPointOperation() {}

func (UpdateVectors) isVectorOperation() {}
func (DeleteVectors) isVectorOperation() {}

func (SetPayload) isPayloadOperation()       {}
func (OverwritePayload) isPayloadOperation() {}
func (DeletePayload) isPayloadOperation()    {}
func (ClearPayload) isPayloadOperation()     {}

func (CreateFieldIndex) isFieldIndexOperation() {}
func (DeleteFieldIndex) isFieldIndexOperation() {}
