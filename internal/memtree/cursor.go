// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package memtree

import (
	"github.com/devlibx/vystore/internal/base"
	"github.com/devlibx/vystore/internal/source"
)

// Cursor scans one Level, honoring a read-view bound: for a key with
// multiple recorded versions, deposits start at the newest version <= the
// bound (or Uncommitted/Prepared per isPreparedOk) and continue through
// the older versions beneath it down to the first terminal one.
type Cursor struct {
	level        *Level
	cmp          *base.Comparer
	pred         base.PredicateKind
	key          base.UserKey
	readView     base.ReadView
	isPreparedOk bool

	cur            *node
	minSkippedPLSN base.Version
	seenGeneration uint64
}

var _ source.Cursor = (*Cursor)(nil)
var _ source.MemCursor = (*Cursor)(nil)

// Open opens a memory-level cursor. REQ is issued as LE.
func Open(l *Level, cmp *base.Comparer, pred base.PredicateKind, key base.UserKey, rv base.ReadView, preparedOk bool) *Cursor {
	effective := pred
	if effective == base.PredREQ {
		effective = base.PredLE
	}
	return &Cursor{level: l, cmp: cmp, pred: effective, key: key, readView: rv, isPreparedOk: preparedOk}
}

func (c *Cursor) ascending() bool { return c.pred.Direction() > 0 }

// depositVisible finds the newest statement at n visible under c.readView,
// tracking the smallest skipped prepared version for read-view narrowing,
// then deposits it and every statement beneath it in n's own entries down
// through (and including) the first terminal fragment: Level.Put keeps
// each node's versions newest-first by Version, so a single node's
// entries already hold a key's whole UPSERT chain atop its terminal base.
func (c *Cursor) depositVisible(n *node, h source.History) bool {
	c.minSkippedPLSN = base.VersionUncommitted
	start := -1
	for i, s := range n.entries {
		if s.Prepared && !c.isPreparedOk {
			if s.Version < c.minSkippedPLSN {
				c.minSkippedPLSN = s.Version
			}
			continue
		}
		if s.Uncommitted || s.Version <= c.readView.Bound {
			start = i
			break
		}
		if s.Prepared && s.Version < c.minSkippedPLSN {
			c.minSkippedPLSN = s.Version
		}
	}
	if start < 0 {
		return false
	}
	for _, s := range n.entries[start:] {
		h.Append(s)
		if s.Kind.IsTerminal() {
			break
		}
	}
	return true
}

func (c *Cursor) depositFrom(n *node, h source.History) {
	for n != nil {
		if c.depositVisible(n, h) {
			c.cur = n
			return
		}
		if c.ascending() {
			n = n.forward[0]
		} else {
			n = n.backward
		}
	}
	c.cur = nil
}

// Skip implements source.Cursor.
func (c *Cursor) Skip(anchor base.UserKey, h source.History) error {
	k := c.key
	strict := c.pred == base.PredGT || c.pred == base.PredLT
	if anchor != nil {
		k = anchor
		strict = true
	}
	var start *node
	if c.ascending() {
		start = c.level.seekGE(k, strict)
	} else {
		start = c.level.seekLE(k, strict)
	}
	c.depositFrom(start, h)
	return nil
}

// Next implements source.Cursor.
func (c *Cursor) Next(h source.History) error {
	if c.cur == nil {
		return c.Skip(nil, h)
	}
	if c.ascending() {
		c.depositFrom(c.cur.forward[0], h)
	} else {
		c.depositFrom(c.cur.backward, h)
	}
	return nil
}

// Restore implements source.Cursor. The active level can be mutated by
// concurrent writers between suspension points; sealed levels never
// mutate once sealed, so Restore is a no-op for them.
func (c *Cursor) Restore(anchor base.UserKey, h source.History) (source.RestoreResult, error) {
	if c.level.Sealed || c.seenGeneration == c.level.generation() {
		return source.RestoreUnchanged, nil
	}
	c.seenGeneration = c.level.generation()
	prevCur := c.cur
	if err := c.Skip(anchor, h); err != nil {
		return source.RestoreUnchanged, err
	}
	if c.cur == nil && prevCur == nil {
		// Nothing was deposited and the cursor is still exhausted.
		return source.RestoreUnchanged, nil
	}
	return source.RestoreChanged, nil
}

// Close implements source.Cursor.
func (c *Cursor) Close() error { return nil }

// MinSkippedPreparedVersion implements source.MemCursor.
func (c *Cursor) MinSkippedPreparedVersion() base.Version { return c.minSkippedPLSN }
