// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rcache

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

func TestAddAndLookupFirst(t *testing.T) {
	c := New(testCmp(), 8)
	next := base.Statement{Key: base.UserKey("b"), Kind: base.KindReplace, Version: 1}
	c.Add(next, base.Statement{}, false, true, 0)

	link, ok := c.Lookup(nil, true)
	require.True(t, ok)
	require.True(t, link.HasNext)
	require.Equal(t, "b", string(link.Next.Key))
}

func TestAddAndLookupByPrevKey(t *testing.T) {
	c := New(testCmp(), 8)
	prev := base.Statement{Key: base.UserKey("a")}
	next := base.Statement{Key: base.UserKey("b")}
	c.Add(next, prev, true, false, 5)

	link, ok := c.Lookup(base.UserKey("a"), false)
	require.True(t, ok)
	require.Equal(t, base.Version(5), link.SkipLSN)
}

func TestLookupMiss(t *testing.T) {
	c := New(testCmp(), 8)
	_, ok := c.Lookup(base.UserKey("nope"), false)
	require.False(t, ok)
}

func TestInvalidateRemovesLink(t *testing.T) {
	c := New(testCmp(), 8)
	prev := base.Statement{Key: base.UserKey("a")}
	c.Add(base.Statement{Key: base.UserKey("b")}, prev, true, false, 0)
	c.Invalidate(base.UserKey("a"))
	_, ok := c.Lookup(base.UserKey("a"), false)
	require.False(t, ok)
}

func TestCapacityEvictsOldest(t *testing.T) {
	c := New(testCmp(), 2)
	c.Add(base.Statement{Key: base.UserKey("2")}, base.Statement{Key: base.UserKey("1")}, true, false, 0)
	c.Add(base.Statement{Key: base.UserKey("3")}, base.Statement{Key: base.UserKey("2")}, true, false, 0)
	c.Add(base.Statement{Key: base.UserKey("4")}, base.Statement{Key: base.UserKey("3")}, true, false, 0)

	_, ok := c.Lookup(base.UserKey("1"), false)
	require.False(t, ok, "oldest link should have been evicted")
	_, ok = c.Lookup(base.UserKey("3"), false)
	require.True(t, ok)
}

func TestCursorSkipDepositsCachedNextAsTerminal(t *testing.T) {
	c := New(testCmp(), 8)
	c.Add(base.Statement{Key: base.UserKey("b"), Kind: base.KindReplace}, base.Statement{}, false, true, 0)

	pool := history.NewPool()
	h := history.New(pool)
	cur := Open(c, base.PredGE, base.UserKey("a"), true)
	require.NoError(t, cur.Skip(nil, h))
	require.Equal(t, "b", string(h.LastStmt().Key))
}

func TestCursorMissDepositsNothing(t *testing.T) {
	c := New(testCmp(), 8)
	pool := history.NewPool()
	h := history.New(pool)
	cur := Open(c, base.PredGE, base.UserKey("a"), true)
	require.NoError(t, cur.Skip(nil, h))
	require.True(t, h.Empty())
	require.False(t, cur.IntervalComplete())
}
