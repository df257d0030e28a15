// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package history

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devlibx/vystore/internal/base"
)

func newCmp() *base.Comparer {
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

func TestAppendAndLastStmt(t *testing.T) {
	pool := NewPool()
	h := New(pool)
	require.True(t, h.Empty())
	require.Nil(t, h.LastStmt())

	h.Append(base.Statement{Key: base.UserKey("a"), Kind: base.KindReplace, Version: 3})
	require.False(t, h.Empty())
	require.Equal(t, base.Version(3), h.LastStmt().Version)

	h.Append(base.Statement{Key: base.UserKey("a"), Kind: base.KindUpsert, Version: 2})
	require.Equal(t, base.Version(3), h.LastStmt().Version, "LastStmt always reflects the first-appended fragment")
}

func TestIsTerminal(t *testing.T) {
	pool := NewPool()
	h := New(pool)
	require.False(t, h.IsTerminal())
	h.Append(base.Statement{Kind: base.KindUpsert})
	require.False(t, h.IsTerminal())

	h2 := New(pool)
	h2.Append(base.Statement{Kind: base.KindInsert})
	require.True(t, h2.IsTerminal())
}

func TestApplyFoldsUpsertsOntoTerminal(t *testing.T) {
	pool := NewPool()
	h := New(pool)
	cmp := newCmp()

	h.Append(base.Statement{Key: base.UserKey("k"), Kind: base.KindUpsert, Version: 3, Value: []byte("-c")})
	h.Append(base.Statement{Key: base.UserKey("k"), Kind: base.KindUpsert, Version: 2, Value: []byte("-b")})
	h.Append(base.Statement{Key: base.UserKey("k"), Kind: base.KindReplace, Version: 1, Value: []byte("a")})

	var upserts int
	result, ok := Apply(h, cmp, true, &upserts)
	require.True(t, ok)
	require.Equal(t, base.KindReplace, result.Kind)
	require.Equal(t, "a-b-c", string(result.Value))
	require.Equal(t, base.Version(3), result.Version)
	require.Equal(t, 2, upserts)
}

func TestApplyStopsAtDelete(t *testing.T) {
	pool := NewPool()
	h := New(pool)
	cmp := newCmp()

	h.Append(base.Statement{Key: base.UserKey("k"), Kind: base.KindDelete, Version: 5})
	// A fragment from an older source deposited after the delete must never
	// be consulted: the delete is already terminal.
	h.Append(base.Statement{Key: base.UserKey("k"), Kind: base.KindReplace, Version: 1})

	var upserts int
	result, ok := Apply(h, cmp, true, &upserts)
	require.True(t, ok)
	require.Equal(t, base.KindDelete, result.Kind)
	require.Equal(t, 0, upserts)
}

func TestApplyEmptyHistory(t *testing.T) {
	pool := NewPool()
	h := New(pool)
	var upserts int
	_, ok := Apply(h, newCmp(), true, &upserts)
	require.False(t, ok)
}

func TestSpliceTransfersFragmentsAndClearsSource(t *testing.T) {
	pool := NewPool()
	a := New(pool)
	b := New(pool)

	a.Append(base.Statement{Version: 1})
	b.Append(base.Statement{Version: 2})
	b.Append(base.Statement{Version: 3})

	a.Splice(b)
	require.True(t, b.Empty())
	require.Equal(t, base.Version(1), a.LastStmt().Version)

	var n int
	for cur := a.head; cur != nil; cur = cur.next {
		n++
	}
	require.Equal(t, 3, n)
}

func TestCleanupReturnsNodesToPool(t *testing.T) {
	pool := NewPool()
	h := New(pool)
	h.Append(base.Statement{Version: 1})
	h.Append(base.Statement{Version: 2})
	h.Cleanup()
	require.True(t, h.Empty())

	// The pool should now satisfy two Append calls without any new
	// allocation path being exercised differently; functionally this just
	// verifies Cleanup didn't leak or corrupt the free list.
	h2 := New(pool)
	h2.Append(base.Statement{Version: 9})
	h2.Append(base.Statement{Version: 8})
	require.Equal(t, base.Version(9), h2.LastStmt().Version)
}
