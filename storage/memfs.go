// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package storage

import (
	"bytes"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
)

// MemFS is an in-memory FS used by tests and the local (non-cloud) default,
// mirroring the vfs.Default/MemFS pairing common to storage layers like this one.
type MemFS struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMemFS creates an empty in-memory filesystem.
func NewMemFS() *MemFS { return &MemFS{files: make(map[string][]byte)} }

type memFile struct {
	data []byte
}

func (f *memFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *memFile) Size() (int64, error) { return int64(len(f.data)), nil }
func (f *memFile) Close() error         { return nil }

type memWriter struct {
	fs   *MemFS
	name string
	buf  bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *memWriter) Close() error {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	w.fs.files[w.name] = append([]byte(nil), w.buf.Bytes()...)
	return nil
}

// Open implements FS.
func (fs *MemFS) Open(name string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	data, ok := fs.files[name]
	if !ok {
		return nil, errors.Newf("storage: file not found: %s", name)
	}
	return &memFile{data: data}, nil
}

// Create implements FS.
func (fs *MemFS) Create(name string) (io.WriteCloser, error) {
	return &memWriter{fs: fs, name: name}, nil
}
