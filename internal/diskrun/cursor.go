// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package diskrun

import (
	"sort"

	"github.com/devlibx/vystore/internal/base"
	"github.com/devlibx/vystore/internal/source"
)

// Cursor scans one Slice. Positioning calls search the run's entries in
// memory; the (possibly network-backed) storage.FS read that makes them
// available happens earlier, in Slice.Ensure.
type Cursor struct {
	slice *Slice
	cmp   *base.Comparer
	pred  base.PredicateKind
	key   base.UserKey

	entries []base.Statement
	pos     int
}

var _ source.Cursor = (*Cursor)(nil)

// Open opens a disk cursor over slice. REQ is issued as LE.
func Open(slice *Slice, cmp *base.Comparer, pred base.PredicateKind, key base.UserKey) *Cursor {
	effective := pred
	if effective == base.PredREQ {
		effective = base.PredLE
	}
	return &Cursor{slice: slice, cmp: cmp, pred: effective, key: key, entries: slice.entries(), pos: -1}
}

func (c *Cursor) ascending() bool { return c.pred.Direction() > 0 }

func (c *Cursor) seekIndex(anchor base.UserKey) int {
	k := c.key
	strict := c.pred == base.PredGT || c.pred == base.PredLT
	if anchor != nil {
		k = anchor
		strict = true
	}
	n := len(c.entries)
	if c.ascending() {
		return sort.Search(n, func(i int) bool {
			cmp := c.cmp.Compare(c.entries[i].Key, k)
			if strict {
				return cmp > 0
			}
			return cmp >= 0
		})
	}
	i := sort.Search(n, func(i int) bool {
		cmp := c.cmp.Compare(c.entries[i].Key, k)
		if strict {
			return cmp >= 0
		}
		return cmp > 0
	})
	return i - 1
}

func (c *Cursor) depositAt(i int, h source.History) {
	// Disk runs may store more than one version for a key (multiple
	// flushes compacted into the same run), newest first per key (see
	// Write's sort). The cursor always positions on and deposits a key's
	// newest version; versions are not filtered by read view here — the
	// registry-level MaxVersion/visibility rule decides whether this slot
	// is scanned at all.
	if i < 0 || i >= len(c.entries) {
		c.pos = -2
		return
	}
	for i > 0 && c.cmp.Equal(c.entries[i-1].Key, c.entries[i].Key) {
		i--
	}
	c.pos = i
	h.Append(c.entries[i])
}

// Skip implements source.Cursor.
func (c *Cursor) Skip(anchor base.UserKey, h source.History) error {
	c.depositAt(c.seekIndex(anchor), h)
	return nil
}

// Next implements source.Cursor.
func (c *Cursor) Next(h source.History) error {
	if c.pos < 0 {
		return c.Skip(nil, h)
	}
	c.depositAt(c.seekIndex(c.entries[c.pos].Key), h)
	return nil
}

// Restore implements source.Cursor. Disk runs are immutable once written;
// only compaction can remove a slice entirely, which the resilience
// controller handles by detecting the range-tree/range version bump and
// rebuilding the disk zone from scratch, not by calling Restore on a
// stale cursor. Restore is therefore always a no-op here.
func (c *Cursor) Restore(anchor base.UserKey, h source.History) (source.RestoreResult, error) {
	return source.RestoreUnchanged, nil
}

// Close implements source.Cursor.
func (c *Cursor) Close() error { return nil }
