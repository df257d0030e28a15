// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package storage defines the File/FS abstraction backing on-disk runs —
// grounded on a vfs.File shape — so that a disk-zone scan
// performs genuine, possibly network-bound, I/O rather than
// simulating suspension.
package storage

import "io"

// File is the minimal read surface a disk run needs. Real vfs.File
// implementations commonly expose a much larger surface (Sync,
// Preallocate, Fd, ...); the read iterator subsystem only ever reads
// sealed, immutable run files, so this interface is pared down to that.
type File interface {
	io.ReaderAt
	io.Closer
	Size() (int64, error)
}

// FS creates and opens run files by name.
type FS interface {
	Open(name string) (File, error)
	Create(name string) (io.WriteCloser, error)
}
