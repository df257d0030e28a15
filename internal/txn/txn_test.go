// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package txn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devlibx/vystore/internal/base"
	"github.com/devlibx/vystore/internal/history"
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

func TestPutSortsWriteSet(t *testing.T) {
	tx := New(testCmp())
	tx.Put(base.Statement{Key: base.UserKey("c")})
	tx.Put(base.Statement{Key: base.UserKey("a")})
	tx.Put(base.Statement{Key: base.UserKey("b")})

	writes := tx.Writes()
	require.Equal(t, []string{"a", "b", "c"}, []string{string(writes[0].Key), string(writes[1].Key), string(writes[2].Key)})
	for _, w := range writes {
		require.True(t, w.Uncommitted)
		require.Equal(t, base.VersionUncommitted, w.Version)
	}
}

func TestSendToReadViewOnlyNarrows(t *testing.T) {
	tx := New(testCmp())
	require.Equal(t, base.VersionMax, tx.ReadView().Bound)
	tx.SendToReadView(base.Version(5))
	require.Equal(t, base.Version(5), tx.ReadView().Bound)
	tx.SendToReadView(base.Version(10))
	require.Equal(t, base.Version(5), tx.ReadView().Bound, "a later, larger bound must never widen the view")
}

func TestAbortChangesStateAndPreparedOk(t *testing.T) {
	tx := New(testCmp())
	require.True(t, tx.IsPreparedOk())
	tx.Abort()
	require.Equal(t, StateAborted, tx.State())
	require.False(t, tx.IsPreparedOk())
}

func TestTrackAccumulatesRanges(t *testing.T) {
	tx := New(testCmp())
	tx.Track(base.UserKey("a"), true, base.UserKey("b"), false)
	tx.Track(base.UserKey("c"), false, nil, true)
	ranges := tx.TrackedRanges()
	require.Len(t, ranges, 2)
	require.Equal(t, "a", string(ranges[0].Begin))
	require.Nil(t, ranges[1].End)
}

func TestCursorScansWriteSetAscending(t *testing.T) {
	tx := New(testCmp())
	tx.Put(base.Statement{Key: base.UserKey("a")})
	tx.Put(base.Statement{Key: base.UserKey("c")})
	tx.Put(base.Statement{Key: base.UserKey("b")})

	pool := history.NewPool()
	h := history.New(pool)
	cur := Open(tx, testCmp(), base.PredGE, base.UserKey("a"))
	require.NoError(t, cur.Skip(nil, h))
	require.Equal(t, "a", string(h.LastStmt().Key))

	h2 := history.New(pool)
	require.NoError(t, cur.Next(h2))
	require.Equal(t, "b", string(h2.LastStmt().Key))
}

func TestCursorExhaustedReturnsNothing(t *testing.T) {
	tx := New(testCmp())
	tx.Put(base.Statement{Key: base.UserKey("a")})

	pool := history.NewPool()
	h := history.New(pool)
	cur := Open(tx, testCmp(), base.PredGT, base.UserKey("z"))
	require.NoError(t, cur.Skip(nil, h))
	require.True(t, h.Empty())
}
