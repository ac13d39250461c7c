package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hupe1980/vecshard/internal/fs"
)

const (
	fileMagic      = "VSHWAL01" // 8 bytes
	fileVersion    = 1          // 4 bytes
	fileHeaderSize = 12
)

// FileLog is a Log stored in a single append-only file.
type FileLog struct {
	mu     sync.Mutex
	fs     fs.FileSystem
	file   fs.File
	path   string
	opts   Options
	size   int64 // end of the last complete record
	lastID uint64
	torn   int64
	closed bool
	broken bool
}

var _ Log = (*FileLog)(nil)

// OpenFile opens or creates the log file at path.
//
// An existing file is scanned to its last valid record; anything after it
// (a record torn by a crash) is truncated away.
func OpenFile(path string, opts Options) (*FileLog, error) {
	return openFile(fs.Default, path, opts)
}

func openFile(fsys fs.FileSystem, path string, opts Options) (*FileLog, error) {
	f, err := fsys.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	l := &FileLog{fs: fsys, file: f, path: path, opts: opts}
	if stat.Size() == 0 {
		err = l.writeHeader()
	} else {
		err = l.recover(stat.Size())
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

func (l *FileLog) writeHeader() error {
	header := make([]byte, fileHeaderSize)
	copy(header[0:8], fileMagic)
	binary.LittleEndian.PutUint32(header[8:12], fileVersion)
	if _, err := l.file.Write(header); err != nil {
		return err
	}
	if err := l.file.Sync(); err != nil {
		return err
	}
	l.size = fileHeaderSize
	return nil
}

func (l *FileLog) recover(fileSize int64) error {
	if fileSize < fileHeaderSize {
		return fmt.Errorf("%w: file too small (%d < %d)", ErrInvalidHeader, fileSize, fileHeaderSize)
	}
	header := make([]byte, fileHeaderSize)
	if _, err := l.file.ReadAt(header, 0); err != nil {
		return err
	}
	if string(header[0:8]) != fileMagic {
		return fmt.Errorf("%w: invalid magic %q", ErrInvalidHeader, header[0:8])
	}
	if ver := binary.LittleEndian.Uint32(header[8:12]); ver != fileVersion {
		return fmt.Errorf("%w: version %d (expected %d)", ErrIncompatibleVersion, ver, fileVersion)
	}

	r := bufio.NewReader(io.NewSectionReader(l.file, fileHeaderSize, fileSize-fileHeaderSize))
	l.size = fileHeaderSize
	for {
		id, _, n, err := decodeRecord(r)
		if err != nil || id != l.lastID+1 {
			break
		}
		l.size += n
		l.lastID = id
	}

	if l.size < fileSize {
		l.torn = fileSize - l.size
		if err := l.file.Truncate(l.size); err != nil {
			return fmt.Errorf("truncate torn tail: %w", err)
		}
		if err := l.file.Sync(); err != nil {
			return err
		}
	}
	return nil
}

// Append implements Log.
func (l *FileLog) Append(data []byte) (uint64, error) {
	if len(data) > MaxRecordSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, len(data))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrClosed
	}
	if l.broken {
		return 0, ErrBroken
	}

	id := l.lastID + 1
	rec := encodeRecord(id, data)
	_, err := l.file.Write(rec)
	if err == nil && l.opts.Durability == DurabilitySync {
		err = fs.Datasync(l.file)
	}
	if err != nil {
		// Drop whatever part of the record reached the file so the id can be
		// handed out again.
		if terr := l.file.Truncate(l.size); terr != nil {
			l.broken = true
			return 0, errors.Join(fmt.Errorf("wal append: %w", err), ErrBroken, terr)
		}
		return 0, fmt.Errorf("wal append: %w", err)
	}

	l.size += int64(len(rec))
	l.lastID = id
	return id, nil
}

// Replay implements Log.
func (l *FileLog) Replay(from uint64, fn func(id uint64, data []byte) error) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	end, last := l.size, l.lastID
	l.mu.Unlock()

	f, err := l.fs.OpenFile(l.path, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(io.NewSectionReader(f, fileHeaderSize, end-fileHeaderSize))
	for expected := uint64(1); expected <= last; expected++ {
		id, data, _, err := decodeRecord(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				err = fmt.Errorf("%w: record %d: %w", ErrShortRead, expected, err)
			}
			return err
		}
		if id != expected {
			return fmt.Errorf("%w: expected record %d, found %d", ErrCorruptEntry, expected, id)
		}
		if id < from {
			continue
		}
		if err := fn(id, data); err != nil {
			return err
		}
	}
	return nil
}

// LastID implements Log.
func (l *FileLog) LastID() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastID
}

// Size returns the size of the log file in bytes.
func (l *FileLog) Size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// TornBytes returns how many bytes of an incomplete tail were dropped at open.
func (l *FileLog) TornBytes() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.torn
}

// Path returns the log file path.
func (l *FileLog) Path() string { return l.path }

// Close implements Log. Closing twice returns ErrClosed.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	l.closed = true
	if l.opts.Durability == DurabilityAsync && !l.broken {
		if err := l.file.Sync(); err != nil {
			l.file.Close()
			return err
		}
	}
	return l.file.Close()
}
