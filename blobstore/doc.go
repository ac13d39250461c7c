// Package blobstore provides the storage abstraction snapshots are written to.
//
// Store is the interface for writing and reading whole blobs by name.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local file system, atomic rename on commit
//   - MemoryStore: in-process map, for tests
//   - s3.Store: Amazon S3 with multipart streaming uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
//	type Store interface {
//	    Open(ctx, name) (io.ReadCloser, error)       // Open for reading
//	    Create(ctx, name) (WritableBlob, error)      // Create for writing
//	    Put(ctx, name, data) error                   // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// A blob created with Create becomes visible only when Close returns nil.
// Abort discards it.
package blobstore
