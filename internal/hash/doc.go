// Package hash provides the CRC32-Castagnoli checksum used for object store
// uploads.
//
// S3 validates uploads against a CRC32C sent with the request; the checksum
// must be computed over exactly the bytes uploaded.
//
//	sum := hash.CRC32C(data)
package hash
