// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package lsm ties together the in-memory levels, range tree, and result
// cache that one index (one key range's worth of data) is built from. It
// is the "LSM" the read iterator is opened against, and the seam through
// which tests drive flush, compaction, and rollback concurrently with an
// open iterator.
package lsm

import (
	"sync"
	"sync/atomic"

	"github.com/devlibx/vystore/internal/base"
	"github.com/devlibx/vystore/internal/diskrun"
	"github.com/devlibx/vystore/internal/memtree"
	"github.com/devlibx/vystore/internal/rangetree"
	"github.com/devlibx/vystore/internal/rcache"
)

// LSM is one index's log-structured merge tree: an active in-memory level,
// zero or more sealed levels, a range tree of disk runs, and a result
// cache.
type LSM struct {
	mu sync.RWMutex

	Cmp   *base.Comparer
	Cache *rcache.Cache
	Tree  *rangetree.Tree

	active *memtree.Level
	sealed []*memtree.Level // newest first

	memListVersion uint64
}

// New creates an empty LSM over cmp with a fresh cache of the given
// capacity.
func New(cmp *base.Comparer, cacheCapacity int) *LSM {
	return &LSM{
		Cmp:    cmp,
		Cache:  rcache.New(cmp, cacheCapacity),
		Tree:   rangetree.New(cmp),
		active: memtree.New(cmp, 1),
	}
}

// MemListVersion returns the version counter bumped whenever a memory
// level is added or removed by flush.
func (l *LSM) MemListVersion() uint64 {
	return atomic.LoadUint64(&l.memListVersion)
}

// RangeTreeVersion returns the range tree's own version counter.
func (l *LSM) RangeTreeVersion() uint64 { return l.Tree.Version() }

// Active returns the current active (writable) memory level.
func (l *LSM) Active() *memtree.Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Sealed returns a snapshot of the sealed levels, newest first.
func (l *LSM) Sealed() []*memtree.Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*memtree.Level, len(l.sealed))
	copy(out, l.sealed)
	return out
}

// Put writes stmt for key into the active level.
func (l *LSM) Put(key base.UserKey, stmt base.Statement) {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()
	active.Put(key, stmt)
}

// Flush seals the active level at flushVersion and opens a fresh active
// level, bumping MemListVersion so any iterator mid-scan restores.
func (l *LSM) Flush(flushVersion base.Version) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active.Sealed = true
	l.active.FlushVersion = flushVersion
	l.sealed = append([]*memtree.Level{l.active}, l.sealed...)
	l.active = memtree.New(l.Cmp, int64(len(l.sealed)+1))
	atomic.AddUint64(&l.memListVersion, 1)
}

// DumpSealed attaches run, an already-written disk run holding the sealed
// levels' entries, to owner as a slice clipped to [lower, upper) and drops
// the sealed levels, bumping MemListVersion again. It writes nothing
// itself; the caller produces run (e.g. via diskrun.Write). This models the second half of a
// real flush/compaction pipeline (out of scope, but needed
// for the merge evaluator's tests to exercise the disk zone at all).
func (l *LSM) DumpSealed(run *diskrun.Run, owner *rangetree.Range, lower, upper base.UserKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	owner.AttachSlice(diskrun.NewResidentSlice(run, lower, upper))
	l.sealed = nil
	atomic.AddUint64(&l.memListVersion, 1)
}
