package wal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecshard/internal/fs"
)

func collect(t *testing.T, l Log, from uint64) map[uint64]string {
	t.Helper()
	out := make(map[uint64]string)
	require.NoError(t, l.Replay(from, func(id uint64, data []byte) error {
		out[id] = string(data)
		return nil
	}))
	return out
}

func TestFileLogAppendReplay(t *testing.T) {
	for _, d := range []Durability{DurabilitySync, DurabilityAsync} {
		t.Run(d.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "wal.log")
			l, err := OpenFile(path, Options{Durability: d})
			require.NoError(t, err)

			for i := 1; i <= 5; i++ {
				id, err := l.Append([]byte(fmt.Sprintf("op-%d", i)))
				require.NoError(t, err)
				assert.Equal(t, uint64(i), id)
			}
			assert.Equal(t, uint64(5), l.LastID())

			got := collect(t, l, 3)
			assert.Equal(t, map[uint64]string{3: "op-3", 4: "op-4", 5: "op-5"}, got)
			require.NoError(t, l.Close())

			// Reopen continues the id sequence.
			l, err = OpenFile(path, DefaultOptions())
			require.NoError(t, err)
			defer l.Close()
			assert.Equal(t, uint64(5), l.LastID())
			assert.Zero(t, l.TornBytes())

			id, err := l.Append([]byte("op-6"))
			require.NoError(t, err)
			assert.Equal(t, uint64(6), id)
			assert.Len(t, collect(t, l, 0), 6)
		})
	}
}

func TestFileLogTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	l, err := OpenFile(path, DefaultOptions())
	require.NoError(t, err)
	_, err = l.Append([]byte("first"))
	require.NoError(t, err)
	_, err = l.Append([]byte("second"))
	require.NoError(t, err)
	size := l.Size()
	require.NoError(t, l.Close())

	// Simulate a crash halfway through writing a third record.
	rec := encodeRecord(3, []byte("third"))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write(rec[:len(rec)/2])
	require.NoError(t, err)
	require.NoError(t, f.Close())

	l, err = OpenFile(path, DefaultOptions())
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, uint64(2), l.LastID())
	assert.Equal(t, size, l.Size())
	assert.Equal(t, int64(len(rec)/2), l.TornBytes())

	id, err := l.Append([]byte("third"))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), id)
	assert.Equal(t, map[uint64]string{1: "first", 2: "second", 3: "third"}, collect(t, l, 0))
}

func TestFileLogCorruptRecordStopsRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	l, err := OpenFile(path, DefaultOptions())
	require.NoError(t, err)
	_, _ = l.Append([]byte("a"))
	_, _ = l.Append([]byte("b"))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	l, err = OpenFile(path, DefaultOptions())
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, uint64(1), l.LastID())
}

func TestFileLogInvalidHeader(t *testing.T) {
	dir := t.TempDir()

	short := filepath.Join(dir, "short")
	require.NoError(t, os.WriteFile(short, []byte("VSH"), 0o644))
	_, err := OpenFile(short, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidHeader)

	magic := filepath.Join(dir, "magic")
	require.NoError(t, os.WriteFile(magic, []byte("NOTAWAL!\x01\x00\x00\x00"), 0o644))
	_, err = OpenFile(magic, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidHeader)

	version := filepath.Join(dir, "version")
	require.NoError(t, os.WriteFile(version, []byte("VSHWAL01\x02\x00\x00\x00"), 0o644))
	_, err = OpenFile(version, DefaultOptions())
	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}

func TestFileLogFailedAppendConsumesNoID(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	path := filepath.Join(t.TempDir(), "wal.log")
	l, err := openFile(ffs, path, DefaultOptions())
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Append([]byte("ok"))
	require.NoError(t, err)

	// Header (12) and the first record (18) are written; let 5 bytes of the
	// next record through before failing.
	ffs.AddRule("wal.log", fs.Fault{FailAfterBytes: 35, PartialWrite: true})
	_, err = l.Append([]byte("lost"))
	assert.ErrorIs(t, err, fs.ErrInjected)
	assert.Equal(t, uint64(1), l.LastID())

	ffs.ClearRules()
	ffs.AddRule("wal.log", fs.Fault{FailAfterBytes: -1, FailOnSync: true})
	_, err = l.Append([]byte("unsynced"))
	assert.ErrorIs(t, err, fs.ErrInjected)

	ffs.ClearRules()
	id, err := l.Append([]byte("next"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), id)
	assert.Equal(t, map[uint64]string{1: "ok", 2: "next"}, collect(t, l, 0))
}

func TestFileLogBrokenAfterFailedRollback(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	l, err := openFile(ffs, filepath.Join(t.TempDir(), "wal.log"), DefaultOptions())
	require.NoError(t, err)
	defer l.Close()

	ffs.AddRule("wal.log", fs.Fault{FailAfterBytes: -1, FailOnSync: true, FailOnTruncate: true})
	_, err = l.Append([]byte("x"))
	assert.ErrorIs(t, err, ErrBroken)

	ffs.ClearRules()
	_, err = l.Append([]byte("y"))
	assert.ErrorIs(t, err, ErrBroken)
}

func TestFileLogRecordTooLarge(t *testing.T) {
	l, err := OpenFile(filepath.Join(t.TempDir(), "wal.log"), DefaultOptions())
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Append(make([]byte, MaxRecordSize+1))
	assert.ErrorIs(t, err, ErrRecordTooLarge)
	assert.Zero(t, l.LastID())
}

func TestFileLogReplayStopsOnCallbackError(t *testing.T) {
	l, err := OpenFile(filepath.Join(t.TempDir(), "wal.log"), DefaultOptions())
	require.NoError(t, err)
	defer l.Close()
	for i := 0; i < 3; i++ {
		_, _ = l.Append([]byte{byte(i)})
	}

	stop := errors.New("stop")
	var seen []uint64
	err = l.Replay(0, func(id uint64, _ []byte) error {
		seen = append(seen, id)
		if id == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []uint64{1, 2}, seen)
}

func TestFileLogClose(t *testing.T) {
	l, err := OpenFile(filepath.Join(t.TempDir(), "wal.log"), DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, l.Close())

	assert.ErrorIs(t, l.Close(), ErrClosed)
	_, err = l.Append(nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, l.Replay(0, func(uint64, []byte) error { return nil }), ErrClosed)
}

func TestFileLogConcurrentAppendsAreGapFree(t *testing.T) {
	l, err := OpenFile(filepath.Join(t.TempDir(), "wal.log"), Options{Durability: DurabilityAsync})
	require.NoError(t, err)
	defer l.Close()

	const writers, perWriter = 8, 25
	ids := make(chan uint64, writers*perWriter)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				id, err := l.Append([]byte("x"))
				assert.NoError(t, err)
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	for id := uint64(1); id <= writers*perWriter; id++ {
		assert.True(t, seen[id], "missing id %d", id)
	}
}
