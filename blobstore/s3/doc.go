// Package s3 provides an Amazon S3 implementation of blobstore.Store.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "snapshots/")
//
//	info, err := shard.Snapshot(ctx, store, "shard-0")
//
// # Features
//
//   - Multipart streaming uploads through the transfer manager
//   - CRC32C integrity checks on uploads
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
