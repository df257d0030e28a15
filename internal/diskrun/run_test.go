// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package diskrun

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devlibx/vystore/internal/base"
	"github.com/devlibx/vystore/internal/history"
	"github.com/devlibx/vystore/storage"
)

func testCmp() *base.Comparer {
	return &base.Comparer{
		Compare: func(a, b base.UserKey) int {
			switch {
			case string(a) < string(b):
				return -1
			case string(a) > string(b):
				return 1
			default:
				return 0
			}
		},
	}
}

func sampleEntries() []base.Statement {
	return []base.Statement{
		{Key: base.UserKey("c"), Value: []byte("3"), Kind: base.KindInsert, Version: 1},
		{Key: base.UserKey("a"), Value: []byte("1"), Kind: base.KindInsert, Version: 1},
		{Key: base.UserKey("b"), Value: []byte("2"), Kind: base.KindInsert, Version: 1},
	}
}

func TestWriteOpenRoundTrip(t *testing.T) {
	for _, codec := range []Codec{CodecNone, CodecSnappy, CodecZstd} {
		fs := storage.NewMemFS()
		cmp := testCmp()
		_, err := Write(fs, "run1", codec, cmp, base.Version(10), sampleEntries())
		require.NoError(t, err)

		run, err := Open(fs, "run1", codec, cmp, base.Version(10))
		require.NoError(t, err)
		require.Len(t, run.entries, 3)
		require.Equal(t, "a", string(run.entries[0].Key))
		require.Equal(t, "b", string(run.entries[1].Key))
		require.Equal(t, "c", string(run.entries[2].Key))
	}
}

func TestOpenDetectsChecksumMismatch(t *testing.T) {
	fs := storage.NewMemFS()
	cmp := testCmp()
	_, err := Write(fs, "run1", CodecNone, cmp, base.Version(1), sampleEntries())
	require.NoError(t, err)

	f, err := fs.Open("run1")
	require.NoError(t, err)
	size, err := f.Size()
	require.NoError(t, err)
	buf := make([]byte, size)
	_, _ = f.ReadAt(buf, 0)
	buf[0] ^= 0xFF // corrupt the payload without touching the trailing checksum
	w, err := fs.Create("run1")
	require.NoError(t, err)
	_, err = w.Write(buf)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = Open(fs, "run1", CodecNone, cmp, base.Version(1))
	require.Error(t, err)
}

func TestSliceEnsureLoadsLazily(t *testing.T) {
	fs := storage.NewMemFS()
	cmp := testCmp()
	_, err := Write(fs, "run1", CodecZstd, cmp, base.Version(3), sampleEntries())
	require.NoError(t, err)

	slice := NewSlice(fs, "run1", CodecZstd, cmp, base.Version(3), nil, nil)
	require.Nil(t, slice.Run)
	require.Equal(t, base.Version(3), slice.DumpVersion())

	require.NoError(t, slice.Ensure())
	require.NotNil(t, slice.Run)
	require.NoError(t, slice.Ensure(), "Ensure must be idempotent once loaded")
}

func TestSliceEntriesClipToBounds(t *testing.T) {
	fs := storage.NewMemFS()
	cmp := testCmp()
	run, err := Write(fs, "run1", CodecNone, cmp, base.Version(1), sampleEntries())
	require.NoError(t, err)

	slice := NewResidentSlice(run, base.UserKey("b"), nil)
	out := slice.entries()
	require.Len(t, out, 2)
	require.Equal(t, "b", string(out[0].Key))
	require.Equal(t, "c", string(out[1].Key))
}

func TestCursorScansAscendingAndDescending(t *testing.T) {
	fs := storage.NewMemFS()
	cmp := testCmp()
	run, err := Write(fs, "run1", CodecSnappy, cmp, base.Version(1), sampleEntries())
	require.NoError(t, err)
	slice := NewResidentSlice(run, nil, nil)

	pool := history.NewPool()
	h := history.New(pool)
	cur := Open(slice, cmp, base.PredGE, base.UserKey("a"))
	require.NoError(t, cur.Skip(nil, h))
	require.Equal(t, "a", string(h.LastStmt().Key))

	h2 := history.New(pool)
	require.NoError(t, cur.Next(h2))
	require.Equal(t, "b", string(h2.LastStmt().Key))

	h3 := history.New(pool)
	curDesc := Open(slice, cmp, base.PredLE, base.UserKey("c"))
	require.NoError(t, curDesc.Skip(nil, h3))
	require.Equal(t, "c", string(h3.LastStmt().Key))
}

func TestSliceRefCounting(t *testing.T) {
	slice := NewResidentSlice(&Run{}, nil, nil)
	require.Equal(t, int32(0), slice.RefCount())
	slice.Pin()
	slice.Pin()
	require.Equal(t, int32(2), slice.RefCount())
	slice.Unpin()
	require.Equal(t, int32(1), slice.RefCount())
}
