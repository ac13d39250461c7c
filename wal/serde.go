package wal

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/vecshard/codec"
	"github.com/hupe1980/vecshard/operation"
)

const (
	flagZstd byte = 1 << 0

	entryHeaderSize = 2 // flags + codec id
)

// SerdeWAL stores typed operations in a Log.
//
// Entry layout: [flags][codec id][operation envelope]. The envelope is
// zstd-compressed when flag bit 0 is set.
type SerdeWAL struct {
	log      Log
	codec    codec.Codec
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

// SerdeOption configures a SerdeWAL.
type SerdeOption func(*SerdeWAL)

// WithCodec sets the codec used for new entries. Existing entries are read
// with the codec they were written with.
func WithCodec(c codec.Codec) SerdeOption {
	return func(w *SerdeWAL) {
		if c != nil {
			w.codec = c
		}
	}
}

// WithCompression enables zstd compression of new entries.
func WithCompression(enabled bool) SerdeOption {
	return func(w *SerdeWAL) { w.compress = enabled }
}

// NewSerde wraps log.
func NewSerde(log Log, opts ...SerdeOption) (*SerdeWAL, error) {
	w := &SerdeWAL{log: log, codec: codec.Default}
	for _, opt := range opts {
		opt(w)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	w.dec = dec

	if w.compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			dec.Close()
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		w.enc = enc
	}
	return w, nil
}

// Write appends op and returns the id the log assigned to it.
func (w *SerdeWAL) Write(op operation.Operation) (uint64, error) {
	data, err := w.Encode(op)
	if err != nil {
		return 0, err
	}
	return w.log.Append(data)
}

// Encode returns the entry bytes for op without appending them.
func (w *SerdeWAL) Encode(op operation.Operation) ([]byte, error) {
	body, err := operation.Marshal(w.codec, op)
	if err != nil {
		return nil, err
	}

	var flags byte
	if w.enc != nil {
		body = w.enc.EncodeAll(body, nil)
		flags |= flagZstd
	}

	entry := make([]byte, 0, entryHeaderSize+len(body))
	entry = append(entry, flags, w.codec.ID())
	return append(entry, body...), nil
}

// Decode parses an entry produced by Encode.
func (w *SerdeWAL) Decode(entry []byte) (operation.Operation, error) {
	if len(entry) < entryHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptEntry, len(entry))
	}
	flags, codecID, body := entry[0], entry[1], entry[entryHeaderSize:]

	c, err := codec.ByID(codecID)
	if err != nil {
		return nil, err
	}
	if flags&flagZstd != 0 {
		if body, err = w.dec.DecodeAll(body, nil); err != nil {
			return nil, fmt.Errorf("%w: decompress: %w", ErrCorruptEntry, err)
		}
	}
	return operation.Unmarshal(c, body)
}

// Replay decodes every entry with id >= from and passes it to fn.
// A decode failure stops the replay.
func (w *SerdeWAL) Replay(from uint64, fn func(id uint64, op operation.Operation) error) error {
	return w.log.Replay(from, func(id uint64, data []byte) error {
		op, err := w.Decode(data)
		if err != nil {
			return fmt.Errorf("wal entry %d: %w", id, err)
		}
		return fn(id, op)
	})
}

// LastID returns the id of the newest entry.
func (w *SerdeWAL) LastID() uint64 { return w.log.LastID() }

// Log returns the underlying log.
func (w *SerdeWAL) Log() Log { return w.log }

// Close releases the codecs and closes the underlying log.
func (w *SerdeWAL) Close() error {
	w.dec.Close()
	if w.enc != nil {
		_ = w.enc.Close()
	}
	return w.log.Close()
}
