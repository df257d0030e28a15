// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package txn

import (
	"sort"

	"github.com/devlibx/vystore/internal/base"
	"github.com/devlibx/vystore/internal/source"
)

// Cursor scans a Transaction's write set in comparator order. It never
// suspends: the write set is private to the transaction's own fiber and
// cannot change underneath a concurrent reader.
type Cursor struct {
	tx   *Transaction
	cmp  *base.Comparer
	pred base.PredicateKind
	key  base.UserKey

	writes []base.Statement
	pos    int // index of the statement last deposited, or -1
}

var _ source.Cursor = (*Cursor)(nil)

// Open opens a write-set cursor positioned per pred/key. REQ is issued to
// the underlying write set as LE, matching how every other cursor kind
// handles REQ.
func Open(tx *Transaction, cmp *base.Comparer, pred base.PredicateKind, key base.UserKey) *Cursor {
	effective := pred
	if effective == base.PredREQ {
		effective = base.PredLE
	}
	return &Cursor{tx: tx, cmp: cmp, pred: effective, key: key, writes: tx.Writes(), pos: -1}
}

func (c *Cursor) ascending() bool { return c.pred.Direction() > 0 }

// seekIndex finds the first index i such that writes[i] satisfies anchor
// under the cursor's direction, using the cursor's initial predicate/key
// when anchor is nil.
func (c *Cursor) seekIndex(anchor base.UserKey) int {
	k := c.key
	strict := c.pred == base.PredGT || c.pred == base.PredLT
	if anchor != nil {
		k = anchor
		strict = true // "after" an anchor is always strict
	}
	n := len(c.writes)
	if c.ascending() {
		i := sort.Search(n, func(i int) bool {
			cmp := c.cmp.Compare(c.writes[i].Key, k)
			if strict {
				return cmp > 0
			}
			return cmp >= 0
		})
		return i
	}
	// descending: find the last index with key <= k (or < k if strict),
	// scanning from the back since writes is ascending-sorted.
	i := sort.Search(n, func(i int) bool {
		cmp := c.cmp.Compare(c.writes[i].Key, k)
		if strict {
			return cmp >= 0
		}
		return cmp > 0
	})
	return i - 1
}

func (c *Cursor) depositAt(i int, h source.History) {
	if i < 0 || i >= len(c.writes) {
		c.pos = -2 // exhausted
		return
	}
	c.pos = i
	h.Append(c.writes[i])
}

// Skip implements source.Cursor.
func (c *Cursor) Skip(anchor base.UserKey, h source.History) error {
	i := c.seekIndex(anchor)
	c.depositAt(i, h)
	return nil
}

// Next implements source.Cursor.
func (c *Cursor) Next(h source.History) error {
	if c.pos < 0 {
		return c.Skip(nil, h)
	}
	if c.ascending() {
		c.depositAt(c.pos+1, h)
	} else {
		c.depositAt(c.pos-1, h)
	}
	return nil
}

// Restore implements source.Cursor. The write set cannot change mid-scan
// for the reading transaction's own cursor (it is private to this fiber),
// so Restore is always a no-op returning Unchanged.
func (c *Cursor) Restore(anchor base.UserKey, h source.History) (source.RestoreResult, error) {
	return source.RestoreUnchanged, nil
}

// Close implements source.Cursor.
func (c *Cursor) Close() error { return nil }
