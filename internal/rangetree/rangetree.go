// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package rangetree implements the range tree: an ordered structure
// mapping key-space partitions ("ranges") to the disk slices they own.
// Backed by github.com/google/btree, the natural off-the-shelf structure
// for find-by-key / next / prev over an ordered set of ranges.
package rangetree

import (
	"sync"
	"sync/atomic"

	"github.com/google/btree"

	"github.com/devlibx/vystore/internal/base"
)

// Range is a key-space partition owning a set of disk slices.
type Range struct {
	Begin, End base.UserKey // End == nil means "unbounded"
	version    uint64
	slices     []SliceRef
}

// SliceRef is the narrow contract the range tree needs from a disk slice:
// enough to pin/unpin and to read its dump version for MaxVersion.
type SliceRef interface {
	DumpVersion() base.Version
}

// Version returns the range's own version counter, bumped on slice
// attach/detach (the "range-version" snapshot an open iterator
// state).
func (r *Range) Version() uint64 { return atomic.LoadUint64(&r.version) }

// Slices returns a snapshot of the range's current slices, newest-run
// first (matching disk-zone freshness order).
func (r *Range) Slices() []SliceRef {
	out := make([]SliceRef, len(r.slices))
	copy(out, r.slices)
	return out
}

// AttachSlice adds a slice at the front of the range (newest run first)
// and bumps its version.
func (r *Range) AttachSlice(s SliceRef) {
	r.slices = append([]SliceRef{s}, r.slices...)
	atomic.AddUint64(&r.version, 1)
}

// DetachSlice removes a slice (by identity) from the range and bumps its
// version.
func (r *Range) DetachSlice(s SliceRef) {
	for i, cur := range r.slices {
		if cur == s {
			r.slices = append(r.slices[:i], r.slices[i+1:]...)
			atomic.AddUint64(&r.version, 1)
			return
		}
	}
}

type item struct {
	r   *Range
	cmp *base.Comparer
}

func (a item) Less(b btree.Item) bool {
	bi := b.(item)
	if a.r.Begin == nil {
		return bi.r.Begin != nil
	}
	if bi.r.Begin == nil {
		return false
	}
	return a.cmp.Compare(a.r.Begin, bi.r.Begin) < 0
}

// Tree is the range tree: an ordered sequence of non-overlapping Ranges
// covering the whole key space, plus a tree-wide version counter bumped by
// compaction range splits/merges.
type Tree struct {
	mu      sync.RWMutex
	bt      *btree.BTree
	cmp     *base.Comparer
	version uint64
	ordered []*Range // kept in parallel for O(1) next/prev without re-walking the btree
}

// New creates a range tree with a single unbounded range covering the
// whole key space.
func New(cmp *base.Comparer) *Tree {
	t := &Tree{bt: btree.New(16), cmp: cmp}
	root := &Range{}
	t.ordered = []*Range{root}
	t.bt.ReplaceOrInsert(item{r: root, cmp: cmp})
	return t
}

// Version returns the tree-wide version counter.
func (t *Tree) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Split splits the range containing at into two ranges at at, bumping the
// tree version. Used by tests to model compaction range splits.
func (t *Tree) Split(at base.UserKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, r := range t.ordered {
		if r.Begin != nil && t.cmp.Compare(at, r.Begin) <= 0 {
			continue
		}
		if r.End != nil && t.cmp.Compare(at, r.End) >= 0 {
			continue
		}
		left := &Range{Begin: r.Begin, End: at}
		right := &Range{Begin: at, End: r.End}
		t.ordered = append(t.ordered[:i], append([]*Range{left, right}, t.ordered[i+1:]...)...)
		t.bt.Delete(item{r: r, cmp: t.cmp})
		t.bt.ReplaceOrInsert(item{r: left, cmp: t.cmp})
		t.bt.ReplaceOrInsert(item{r: right, cmp: t.cmp})
		t.version++
		return
	}
}

// FindByKey locates the range owning key via a B-tree descend: it walks
// ranges in descending Begin order starting from the first Begin <= key
// and returns the first whose [Begin, End) contains key, which is always
// the very first candidate since ranges tile the whole space without gaps.
func (t *Tree) FindByKey(dir int, key base.UserKey) *Range {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var found *Range
	probe := item{r: &Range{Begin: key}, cmp: t.cmp}
	t.bt.DescendLessOrEqual(probe, func(it btree.Item) bool {
		found = it.(item).r
		return false
	})
	if found == nil {
		// key precedes every range's Begin: the first (unbounded-begin)
		// range owns it.
		found = t.ordered[0]
	}
	return found
}

// Next returns the range following r in ascending key order, or nil.
func (t *Tree) Next(r *Range) *Range {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i, cur := range t.ordered {
		if cur == r {
			if i+1 < len(t.ordered) {
				return t.ordered[i+1]
			}
			return nil
		}
	}
	return nil
}

// Prev returns the range preceding r in ascending key order, or nil.
func (t *Tree) Prev(r *Range) *Range {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i, cur := range t.ordered {
		if cur == r {
			if i > 0 {
				return t.ordered[i-1]
			}
			return nil
		}
	}
	return nil
}
