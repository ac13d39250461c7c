//go:build linux

package fs

import "golang.org/x/sys/unix"

// Datasync flushes the data of f to stable storage. Files backed by a file
// descriptor use fdatasync, which skips metadata that is not needed to read
// the data back; others fall back to Sync.
func Datasync(f File) error {
	if d, ok := f.(fder); ok {
		for {
			err := unix.Fdatasync(int(d.Fd()))
			if err != unix.EINTR {
				return err
			}
		}
	}
	return f.Sync()
}
