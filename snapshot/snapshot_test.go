package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecshard/blobstore"
	"github.com/hupe1980/vecshard/wal"
)

type entry struct {
	id   uint64
	data []byte
}

// sliceSource serves fixed entries, optionally failing after some of them.
type sliceSource struct {
	entries []entry
	failAt  int
}

func (s *sliceSource) Replay(from uint64, fn func(uint64, []byte) error) error {
	for i, e := range s.entries {
		if s.failAt > 0 && i == s.failAt {
			return errors.New("source failed")
		}
		if e.id < from {
			continue
		}
		if err := fn(e.id, e.data); err != nil {
			return err
		}
	}
	return nil
}

func (s *sliceSource) LastID() uint64 {
	if len(s.entries) == 0 {
		return 0
	}
	return s.entries[len(s.entries)-1].id
}

func openLog(t *testing.T) *wal.FileLog {
	t.Helper()
	log, err := wal.OpenFile(filepath.Join(t.TempDir(), "wal.log"), wal.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func collect(t *testing.T, src Source) []entry {
	t.Helper()
	var out []entry
	require.NoError(t, src.Replay(1, func(id uint64, data []byte) error {
		out = append(out, entry{id: id, data: bytes.Clone(data)})
		return nil
	}))
	return out
}

func TestCreateRestore(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	src := openLog(t)
	for i := range 5 {
		_, err := src.Append([]byte(fmt.Sprintf("op-%d", i)))
		require.NoError(t, err)
	}

	info, err := Create(ctx, store, "shard-0.snap", src)
	require.NoError(t, err)
	assert.Equal(t, Info{Name: "shard-0.snap", Entries: 5, FirstID: 1, LastID: 5, Bytes: 5 * (recordHeaderSize + 4)}, info)

	dst := openLog(t)
	restored, err := Restore(ctx, store, "shard-0.snap", dst)
	require.NoError(t, err)
	assert.Equal(t, info, restored)
	assert.Equal(t, collect(t, src), collect(t, dst))
}

func TestCreate_EmptyLog(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	info, err := Create(ctx, store, "empty", openLog(t))
	require.NoError(t, err)
	assert.Zero(t, info.Entries)

	dst := openLog(t)
	_, err = Restore(ctx, store, "empty", dst)
	require.NoError(t, err)
	assert.Zero(t, dst.LastID())
}

func TestCreate_RateLimited(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	src := &sliceSource{entries: []entry{{1, bytes.Repeat([]byte("a"), 4096)}, {2, []byte("b")}}}

	info, err := Create(ctx, store, "limited", src, WithRateLimit(1<<20), WithCompressionLevel(lz4.Level5))
	require.NoError(t, err)
	assert.EqualValues(t, 2, info.Entries)

	var got []entry
	require.NoError(t, Read(ctx, store, "limited", func(id uint64, data []byte) error {
		got = append(got, entry{id: id, data: data})
		return nil
	}))
	assert.Equal(t, src.entries, got)
}

func TestCreate_SourceErrorAborts(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	src := &sliceSource{entries: []entry{{1, []byte("a")}, {2, []byte("b")}}, failAt: 1}

	_, err := Create(ctx, store, "broken", src)
	require.Error(t, err)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRestore_Errors(t *testing.T) {
	ctx := context.Background()

	compress := func(t *testing.T, raw []byte) []byte {
		t.Helper()
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		_, err := zw.Write(raw)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		return buf.Bytes()
	}

	t.Run("not found", func(t *testing.T) {
		_, err := Restore(ctx, blobstore.NewMemoryStore(), "missing", openLog(t))
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("not lz4", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		require.NoError(t, store.Put(ctx, "junk", []byte("definitely not a snapshot")))
		_, err := Restore(ctx, store, "junk", openLog(t))
		assert.ErrorIs(t, err, ErrInvalidSnapshot)
	})

	t.Run("bad magic", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		require.NoError(t, store.Put(ctx, "magic", compress(t, []byte("NOTASNAP-and-more-bytes"))))
		_, err := Restore(ctx, store, "magic", openLog(t))
		assert.ErrorIs(t, err, ErrInvalidSnapshot)
	})

	t.Run("missing end marker", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		raw := append([]byte(magic), 1, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 'x')
		require.NoError(t, store.Put(ctx, "truncated", compress(t, raw)))
		_, err := Restore(ctx, store, "truncated", openLog(t))
		assert.ErrorIs(t, err, ErrInvalidSnapshot)
	})

	t.Run("id mismatch", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		src := &sliceSource{entries: []entry{{5, []byte("late")}}}
		_, err := Create(ctx, store, "gap", src)
		require.NoError(t, err)

		_, err = Restore(ctx, store, "gap", openLog(t))
		assert.ErrorIs(t, err, ErrIDMismatch)
	})

	t.Run("target not empty", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		_, err := Create(ctx, store, "s", &sliceSource{entries: []entry{{1, []byte("a")}}})
		require.NoError(t, err)

		dst := openLog(t)
		_, err = dst.Append([]byte("existing"))
		require.NoError(t, err)

		_, err = Restore(ctx, store, "s", dst)
		assert.ErrorIs(t, err, ErrLogNotEmpty)
	})
}
