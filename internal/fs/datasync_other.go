//go:build !linux

package fs

// Datasync flushes the data of f to stable storage.
func Datasync(f File) error {
	return f.Sync()
}
