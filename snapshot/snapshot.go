package snapshot

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"golang.org/x/time/rate"

	"github.com/hupe1980/vecshard/blobstore"
	"github.com/hupe1980/vecshard/wal"
)

const magic = "VSHSNAP1"

const recordHeaderSize = 12

var (
	// ErrInvalidSnapshot is returned when a blob is not a complete snapshot.
	ErrInvalidSnapshot = errors.New("snapshot: invalid snapshot")
	// ErrIDMismatch is returned by Restore when the target log assigns an id
	// different from the one recorded in the snapshot.
	ErrIDMismatch = errors.New("snapshot: operation id mismatch")
	// ErrLogNotEmpty is returned by Restore when the target log already has entries.
	ErrLogNotEmpty = errors.New("snapshot: target log is not empty")
)

// Source is what a snapshot is taken from. wal.Log satisfies it.
type Source interface {
	Replay(from uint64, fn func(id uint64, data []byte) error) error
	LastID() uint64
}

// Info describes a snapshot.
type Info struct {
	Name    string
	Entries uint64
	FirstID uint64
	LastID  uint64
	// Bytes is the uncompressed size of the record stream.
	Bytes int64
}

type options struct {
	bytesPerSec int
	level       lz4.CompressionLevel
}

// Option configures Create.
type Option func(*options)

// WithRateLimit caps the upload at bytesPerSec compressed bytes per second.
// Zero or negative disables the limit.
func WithRateLimit(bytesPerSec int) Option {
	return func(o *options) { o.bytesPerSec = bytesPerSec }
}

// WithCompressionLevel sets the lz4 compression level. Default: lz4.Fast.
func WithCompressionLevel(level lz4.CompressionLevel) Option {
	return func(o *options) { o.level = level }
}

// Create writes every entry of src to store under name.
//
// The blob is committed only if the whole log was written; on error it is
// aborted and nothing is left behind.
func Create(ctx context.Context, store blobstore.Store, name string, src Source, opts ...Option) (Info, error) {
	o := options{level: lz4.Fast}
	for _, fn := range opts {
		fn(&o)
	}

	blob, err := store.Create(ctx, name)
	if err != nil {
		return Info{}, fmt.Errorf("snapshot: create %s: %w", name, err)
	}

	info, err := write(ctx, blob, src, o)
	if err != nil {
		return Info{}, errors.Join(err, blob.Abort())
	}
	if err := blob.Close(); err != nil {
		return Info{}, fmt.Errorf("snapshot: commit %s: %w", name, err)
	}
	info.Name = name
	return info, nil
}

func write(ctx context.Context, blob io.Writer, src Source, o options) (Info, error) {
	var out io.Writer = blob
	if o.bytesPerSec > 0 {
		out = newLimitedWriter(ctx, blob, o.bytesPerSec)
	}

	zw := lz4.NewWriter(out)
	if err := zw.Apply(lz4.CompressionLevelOption(o.level)); err != nil {
		return Info{}, err
	}
	bw := bufio.NewWriter(zw)

	var info Info
	if _, err := bw.WriteString(magic); err != nil {
		return Info{}, err
	}

	last := src.LastID()
	var hdr [recordHeaderSize]byte
	err := src.Replay(1, func(id uint64, data []byte) error {
		if id > last {
			return errStop
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(hdr[0:8], id)
		binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(data)))
		if _, err := bw.Write(hdr[:]); err != nil {
			return err
		}
		if _, err := bw.Write(data); err != nil {
			return err
		}
		if info.Entries == 0 {
			info.FirstID = id
		}
		info.Entries++
		info.LastID = id
		info.Bytes += int64(recordHeaderSize + len(data))
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return Info{}, err
	}

	clear(hdr[:])
	if _, err := bw.Write(hdr[:]); err != nil {
		return Info{}, err
	}
	if err := bw.Flush(); err != nil {
		return Info{}, err
	}
	if err := zw.Close(); err != nil {
		return Info{}, err
	}
	return info, nil
}

var errStop = errors.New("stop")

// Restore appends the entries of the named snapshot into dst, which must be
// empty.
func Restore(ctx context.Context, store blobstore.Store, name string, dst wal.Log) (Info, error) {
	if dst.LastID() != 0 {
		return Info{}, ErrLogNotEmpty
	}
	info := Info{Name: name}
	err := Read(ctx, store, name, func(id uint64, data []byte) error {
		got, err := dst.Append(data)
		if err != nil {
			return err
		}
		if got != id {
			return fmt.Errorf("%w: snapshot has %d, log assigned %d", ErrIDMismatch, id, got)
		}
		if info.Entries == 0 {
			info.FirstID = id
		}
		info.Entries++
		info.LastID = id
		info.Bytes += int64(recordHeaderSize + len(data))
		return nil
	})
	if err != nil {
		return Info{}, err
	}
	return info, nil
}

// Read streams the entries of the named snapshot to fn in id order.
func Read(ctx context.Context, store blobstore.Store, name string, fn func(id uint64, data []byte) error) error {
	rc, err := store.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("snapshot: open %s: %w", name, err)
	}
	defer rc.Close()

	br := bufio.NewReader(lz4.NewReader(rc))

	var m [len(magic)]byte
	if _, err := io.ReadFull(br, m[:]); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if string(m[:]) != magic {
		return fmt.Errorf("%w: bad magic", ErrInvalidSnapshot)
	}

	var (
		hdr  [recordHeaderSize]byte
		prev uint64
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			return fmt.Errorf("%w: truncated: %w", ErrInvalidSnapshot, err)
		}
		id := binary.LittleEndian.Uint64(hdr[0:8])
		n := binary.LittleEndian.Uint32(hdr[8:12])
		if id == 0 {
			if n != 0 {
				return fmt.Errorf("%w: bad end marker", ErrInvalidSnapshot)
			}
			return nil
		}
		if id <= prev {
			return fmt.Errorf("%w: id %d after %d", ErrInvalidSnapshot, id, prev)
		}
		if n > wal.MaxRecordSize {
			return fmt.Errorf("%w: record %d too large", ErrInvalidSnapshot, id)
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(br, data); err != nil {
			return fmt.Errorf("%w: truncated record %d: %w", ErrInvalidSnapshot, id, err)
		}
		if err := fn(id, data); err != nil {
			return err
		}
		prev = id
	}
}

// limitedWriter throttles writes with a token bucket.
type limitedWriter struct {
	ctx     context.Context
	w       io.Writer
	limiter *rate.Limiter
}

func newLimitedWriter(ctx context.Context, w io.Writer, bytesPerSec int) *limitedWriter {
	return &limitedWriter{
		ctx:     ctx,
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec),
	}
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	var written int
	for len(p) > 0 {
		chunk := min(len(p), l.limiter.Burst())
		if err := l.limiter.WaitN(l.ctx, chunk); err != nil {
			return written, err
		}
		n, err := l.w.Write(p[:chunk])
		written += n
		if err != nil {
			return written, err
		}
		p = p[chunk:]
	}
	return written, nil
}
