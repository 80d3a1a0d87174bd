// Package shmem maps named shared-memory segments and exposes the futex
// primitives used to sleep on words inside them.
//
// It is the only package that talks to mmap, flock, ftruncate and futex
// directly. Everything above it sees plain byte slices and two wait/wake
// helpers.
//
// Segment layout:
//
//	+----------------------+  offset 0
//	| header (page-sized)  |  fixed for the life of the segment
//	+----------------------+  offset HeaderSize
//	| data                 |  grows, never shrinks
//	+----------------------+
//
// The header and data regions are mapped separately so the data mapping can
// be replaced when the file grows without moving the header, which other
// goroutines may be sleeping on.
//
// Lifecycle:
//   - Open creates or opens <dir>/shmflow.<name> and maps the header
//   - WithLock runs a function under an exclusive flock on the file; size
//     changes, attach/detach bookkeeping and Unlink happen under it
//   - An opener that wins the race against Unlink notices the unlinked inode
//     (nlink == 0) and retries on a fresh file
//
// Example Usage:
//
//	seg, err := shmem.Open(shmem.DefaultDir, "raw", 4096)
//	if err != nil {
//		return err
//	}
//	defer seg.Close()
//
//	err = seg.WithLock(func() error {
//		return seg.Grow(1 << 20)
//	})
package shmem
