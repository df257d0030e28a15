// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devlibx/vystore/internal/base"
	"github.com/devlibx/vystore/internal/diskrun"
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

func TestPutGoesToActiveLevel(t *testing.T) {
	l := New(testCmp(), 16)
	l.Put(base.UserKey("a"), base.Statement{Key: base.UserKey("a"), Version: 1})
	require.Len(t, l.Active().All(), 1)
	require.Empty(t, l.Sealed())
}

func TestFlushSealsActiveAndBumpsVersion(t *testing.T) {
	l := New(testCmp(), 16)
	l.Put(base.UserKey("a"), base.Statement{Key: base.UserKey("a"), Version: 1})
	before := l.MemListVersion()

	l.Flush(base.Version(2))
	require.Equal(t, before+1, l.MemListVersion())
	require.Len(t, l.Sealed(), 1)
	require.True(t, l.Sealed()[0].Sealed)
	require.Equal(t, base.Version(2), l.Sealed()[0].FlushVersion)
	require.Empty(t, l.Active().All(), "a fresh active level must be empty after flush")
}

func TestDumpSealedAttachesSliceAndClearsSealed(t *testing.T) {
	l := New(testCmp(), 16)
	l.Put(base.UserKey("a"), base.Statement{Key: base.UserKey("a"), Kind: base.KindInsert, Version: 1})
	l.Flush(base.Version(2))

	entries := l.Sealed()[0].All()
	fs := storage.NewMemFS()
	run, err := diskrun.Write(fs, "run1", diskrun.CodecNone, testCmp(), base.Version(2), entries)
	require.NoError(t, err)

	owner := l.Tree.FindByKey(1, base.UserKey("a"))
	beforeVersion := l.MemListVersion()
	l.DumpSealed(run, owner, nil, nil)

	require.Empty(t, l.Sealed())
	require.Equal(t, beforeVersion+1, l.MemListVersion())
	require.Len(t, owner.Slices(), 1)
	require.Equal(t, base.Version(2), owner.Slices()[0].DumpVersion())
}
