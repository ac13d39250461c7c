package operation

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/vecshard/codec"
)

// ErrUnknownOperation is returned when decoding an envelope whose type tag
// does not name a known variant.
var ErrUnknownOperation = errors.New("unknown operation")

type envelope struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

// Marshal encodes op as an envelope using c.
func Marshal(c codec.Codec, op Operation) ([]byte, error) {
	if op == nil {
		return nil, fmt.Errorf("%w: nil", ErrUnknownOperation)
	}
	body, err := c.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", op.Name(), err)
	}
	return c.Marshal(envelope{Type: op.Name(), Body: body})
}

// Unmarshal decodes an envelope produced by Marshal.
func Unmarshal(c codec.Codec, data []byte) (Operation, error) {
	var env envelope
	if err := c.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var (
		op  Operation
		err error
	)
	switch env.Type {
	case NameUpsertPoints:
		op, err = decode[UpsertPoints](c, env.Body)
	case NameDeletePoints:
		op, err = decode[DeletePoints](c, env.Body)
	case NameDeletePointsByFilter:
		op, err = decode[DeletePointsByFilter](c, env.Body)
	case NameUpdateVectors:
		op, err = decode[UpdateVectors](c, env.Body)
	case NameDeleteVectors:
		op, err = decode[DeleteVectors](c, env.Body)
	case NameSetPayload:
		op, err = decode[SetPayload](c, env.Body)
	case NameOverwritePayload:
		op, err = decode[OverwritePayload](c, env.Body)
	case NameDeletePayload:
		op, err = decode[DeletePayload](c, env.Body)
	case NameClearPayload:
		op, err = decode[ClearPayload](c, env.Body)
	case NameCreateFieldIndex:
		op, err = decode[CreateFieldIndex](c, env.Body)
	case NameDeleteFieldIndex:
		op, err = decode[DeleteFieldIndex](c, env.Body)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return op, nil
}

func decode[T Operation](c codec.Codec, body []byte) (Operation, error) {
	var v T
	if err := c.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return v, nil
}
