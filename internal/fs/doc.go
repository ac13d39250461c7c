// Package fs abstracts the file operations the WAL performs so tests can
// inject I/O failures.
//
//   - [LocalFS]: the os-backed implementation ([Default])
//   - [FaultyFS]: wraps another FileSystem and fails writes, syncs,
//     truncates or closes on files matching a name pattern
//
// [Datasync] flushes file data to stable storage, using fdatasync where the
// platform has it.
package fs
