package wal

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrClosed              = errors.New("wal closed")
	ErrBroken              = errors.New("wal broken by a failed append that could not be rolled back")
	ErrInvalidCRC          = errors.New("invalid WAL record checksum")
	ErrInvalidHeader       = errors.New("invalid WAL header")
	ErrIncompatibleVersion = errors.New("incompatible WAL version")
	ErrRecordTooLarge      = errors.New("WAL record too large")
	ErrShortRead           = errors.New("short read in WAL record")
	ErrCorruptEntry        = errors.New("corrupt WAL entry")
)

// MaxRecordSize is the largest entry a log accepts.
const MaxRecordSize = 64 << 20

// Log is an append-only sequence of opaque entries.
type Log interface {
	// Append durably stores data and returns its id.
	Append(data []byte) (uint64, error)
	// Replay calls fn for every entry with id >= from in id order, stopping
	// at the first error fn returns. Entries appended during the replay are
	// not visited.
	Replay(from uint64, fn func(id uint64, data []byte) error) error
	// LastID returns the id of the newest entry, or 0 when empty.
	LastID() uint64
	Close() error
}

// Durability controls when an append is acknowledged.
type Durability int

const (
	// DurabilitySync flushes every append to stable storage before returning.
	DurabilitySync Durability = iota
	// DurabilityAsync relies on the OS page cache.
	DurabilityAsync
)

func (d Durability) String() string {
	switch d {
	case DurabilitySync:
		return "sync"
	case DurabilityAsync:
		return "async"
	default:
		return "unknown"
	}
}

// ParseDurability parses "sync" or "async".
func ParseDurability(s string) (Durability, error) {
	switch strings.ToLower(s) {
	case "sync", "":
		return DurabilitySync, nil
	case "async":
		return DurabilityAsync, nil
	default:
		return 0, fmt.Errorf("unknown durability %q", s)
	}
}

// Options configures a log backend.
type Options struct {
	Durability Durability
}

// DefaultOptions returns the default log options.
func DefaultOptions() Options {
	return Options{Durability: DurabilitySync}
}
