// Package operation defines the closed set of mutations a shard admits.
//
// Every Operation belongs to exactly one Kind, and each kind has its own
// sealed interface so the dispatcher can switch on it exhaustively:
//
//   - PointOperation: UpsertPoints, DeletePoints, DeletePointsByFilter
//   - VectorOperation: UpdateVectors, DeleteVectors
//   - PayloadOperation: SetPayload, OverwritePayload, DeletePayload, ClearPayload
//   - FieldIndexOperation: CreateFieldIndex, DeleteFieldIndex
//
// Operations are persisted through Marshal/Unmarshal as an envelope
// {"type": <name>, "body": <variant>} encoded with a codec.Codec.
package operation
