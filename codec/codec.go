// Package codec selects how operations are encoded into WAL entries and
// snapshots.
//
// Every persisted entry records the codec it was written with, so changing
// the default only affects new writes. Replaying an entry written by an
// unknown codec fails with ErrUnknownCodec.
package codec

import (
	"errors"
	"fmt"
)

// ErrUnknownCodec is returned by ByID and ByName for unregistered codecs.
var ErrUnknownCodec = errors.New("unknown codec")

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
	// ID is the stable single-byte tag persisted next to encoded data.
	ID() byte
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, error) {
	switch name {
	case JSON{}.Name():
		return JSON{}, nil
	case GoJSON{}.Name():
		return GoJSON{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// ByID returns a built-in codec by its persisted tag.
func ByID(id byte) (Codec, error) {
	switch id {
	case JSON{}.ID():
		return JSON{}, nil
	case GoJSON{}.ID():
		return GoJSON{}, nil
	default:
		return nil, fmt.Errorf("%w: id %d", ErrUnknownCodec, id)
	}
}

// Default is the codec used for new WAL entries.
var Default Codec = GoJSON{}
