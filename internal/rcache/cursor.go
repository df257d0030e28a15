// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rcache

import (
	"github.com/devlibx/vystore/internal/base"
	"github.com/devlibx/vystore/internal/source"
)

// Cursor scans the result cache for a single chain hop matching the
// iterator's predicate and anchor. If the cache has no link for the
// position, Skip/Next deposit nothing (a miss, not an error) and the merge
// evaluator falls through to deeper sources.
type Cursor struct {
	cache        *Cache
	pred         base.PredicateKind
	key          base.UserKey
	isPreparedOk bool

	lastWasFirst bool
	interval     bool
}

var _ source.Cursor = (*Cursor)(nil)
var _ source.CacheCursor = (*Cursor)(nil)

// Open opens a cache cursor. REQ is issued as LE.
func Open(c *Cache, pred base.PredicateKind, key base.UserKey, preparedOk bool) *Cursor {
	effective := pred
	if effective == base.PredREQ {
		effective = base.PredLE
	}
	return &Cursor{cache: c, pred: effective, key: key, isPreparedOk: preparedOk}
}

func (c *Cursor) lookup(anchorKey base.UserKey, isFirst bool, h source.History) {
	c.interval = false
	link, ok := c.cache.Lookup(anchorKey, isFirst)
	if !ok || !link.HasNext {
		return
	}
	c.interval = link.Complete
	// The cached Next is already a fully-resolved result (history was
	// applied when it was cached), so it is deposited as a terminal
	// fragment: deeper sources never need to be consulted for this key
	// unless the link turns out not to cover it (see IntervalComplete).
	h.Append(link.Next)
}

// Skip implements source.Cursor. anchor == nil means "use the iterator's
// first-cached position".
func (c *Cursor) Skip(anchor base.UserKey, h source.History) error {
	isFirst := anchor == nil
	c.lastWasFirst = isFirst
	c.lookup(anchor, isFirst, h)
	return nil
}

// Next implements source.Cursor. The cache never advances past the single
// link it was opened with — each read consults the cache exactly once per
// key, consistent with the cache's role as a short-circuit, not a
// general-purpose ordered structure.
func (c *Cursor) Next(h source.History) error {
	return nil
}

// Restore implements source.Cursor; the cache is append/evict-only under a
// separate lock, so nothing here depends on the LSM's structural version
// counters.
func (c *Cursor) Restore(anchor base.UserKey, h source.History) (source.RestoreResult, error) {
	return source.RestoreUnchanged, nil
}

// Close implements source.Cursor.
func (c *Cursor) Close() error { return nil }

// IntervalComplete implements source.CacheCursor.
func (c *Cursor) IntervalComplete() bool { return c.interval }
