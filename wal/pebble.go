package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
)

var metaLastKey = []byte("m/last")

func entryKey(id uint64) []byte {
	key := make([]byte, 9)
	key[0] = 'w'
	binary.BigEndian.PutUint64(key[1:], id)
	return key
}

// PebbleLog is a Log whose entries are keys of a Pebble database.
//
// Each append writes the entry and the new last id in one batch.
type PebbleLog struct {
	mu        sync.Mutex
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
	lastID    uint64
	closed    bool
}

var _ Log = (*PebbleLog)(nil)

// OpenPebble opens or creates a Pebble-backed log in dir.
func OpenPebble(dir string, opts Options) (*PebbleLog, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble wal: %w", err)
	}

	l := &PebbleLog{db: db, writeOpts: pebble.Sync}
	if opts.Durability == DurabilityAsync {
		l.writeOpts = pebble.NoSync
	}

	value, closer, err := db.Get(metaLastKey)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
	case err != nil:
		db.Close()
		return nil, err
	default:
		if len(value) != 8 {
			closer.Close()
			db.Close()
			return nil, fmt.Errorf("%w: last id has %d bytes", ErrCorruptEntry, len(value))
		}
		l.lastID = binary.BigEndian.Uint64(value)
		closer.Close()
	}
	return l, nil
}

// Append implements Log.
func (l *PebbleLog) Append(data []byte) (uint64, error) {
	if len(data) > MaxRecordSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, len(data))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrClosed
	}

	id := l.lastID + 1
	var last [8]byte
	binary.BigEndian.PutUint64(last[:], id)

	batch := l.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(entryKey(id), data, nil); err != nil {
		return 0, err
	}
	if err := batch.Set(metaLastKey, last[:], nil); err != nil {
		return 0, err
	}
	if err := batch.Commit(l.writeOpts); err != nil {
		return 0, fmt.Errorf("wal append: %w", err)
	}

	l.lastID = id
	return id, nil
}

// Replay implements Log.
func (l *PebbleLog) Replay(from uint64, fn func(id uint64, data []byte) error) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	last := l.lastID
	l.mu.Unlock()

	for id := max(from, 1); id <= last; id++ {
		value, closer, err := l.db.Get(entryKey(id))
		if err != nil {
			if errors.Is(err, pebble.ErrNotFound) {
				return fmt.Errorf("%w: entry %d missing", ErrCorruptEntry, id)
			}
			return err
		}
		data := make([]byte, len(value))
		copy(data, value)
		closer.Close()

		if err := fn(id, data); err != nil {
			return err
		}
	}
	return nil
}

// LastID implements Log.
func (l *PebbleLog) LastID() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastID
}

// Close implements Log. Closing twice returns ErrClosed.
func (l *PebbleLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	l.closed = true
	if err := l.db.Flush(); err != nil {
		l.db.Close()
		return err
	}
	return l.db.Close()
}
