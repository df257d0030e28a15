// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package iter implements the merging read iterator: a merge evaluator,
// a resilience controller, a result assembler, a conflict tracker bridge,
// and a cache-link emitter, all wired against one LSM. This is the
// subsystem every other package in this module exists to serve.
package iter

import (
	"github.com/cockroachdb/errors"

	"github.com/devlibx/vystore/internal/base"
	"github.com/devlibx/vystore/internal/diskrun"
	"github.com/devlibx/vystore/internal/lsm"
	"github.com/devlibx/vystore/internal/metrics"
	"github.com/devlibx/vystore/internal/rangetree"
	"github.com/devlibx/vystore/internal/source"
	"github.com/devlibx/vystore/internal/txn"
)

// ErrClosed is returned by Next once Close has been called (CacheAdd is a
// no-op after Close).
var ErrClosed = errors.New("vystore: iterator closed")

// Iterator is one merging read over an LSM, bound to a predicate, a search
// key, and a read view. It is single-owner and not safe for concurrent use
// — the only goroutine that may observe
// it mid-scan is one racing the backing LSM's structural mutations, which
// is exactly what the resilience controller exists to survive.
type Iterator struct {
	store   *lsm.LSM
	tx      *txn.Transaction
	cmp     *base.Comparer
	metrics *metrics.Metrics

	pred      base.PredicateKind
	searchKey base.UserKey

	lastReturned    base.UserKey
	hasLastReturned bool
	readView        base.ReadView

	needCheckEq     bool
	checkExactMatch bool

	started     bool
	frontID     uint64
	prevFrontID uint64
	skippedSrc  int

	registry   *source.Registry
	diskSlices []*diskrun.Slice

	memListVersion   uint64
	rangeTreeVersion uint64
	rangeVersion     uint64
	currentRange     *rangetree.Range
	forceRange       *rangetree.Range

	runnerUpVersion  base.Version
	runnerUpPrepared bool
	cacheLinkAccum   base.Version
	cacheLinkBroken  bool

	lastCached    base.Statement
	hasLastCached bool

	closed bool
}

// Open creates an iterator over store bound to pred/searchKey, resuming
// after lastReturned if non-nil). tx may be nil for a read with no
// attached transaction. m may be nil to disable metrics.
func Open(store *lsm.LSM, tx *txn.Transaction, pred base.PredicateKind, searchKey base.UserKey, lastReturned base.UserKey, rv base.ReadView, m *metrics.Metrics) *Iterator {
	it := &Iterator{
		store:     store,
		tx:        tx,
		cmp:       store.Cmp,
		metrics:   m,
		pred:      pred,
		searchKey: searchKey,
		readView:  rv,
		registry:  source.NewRegistry(),
	}
	it.registry.TxwSrc, it.registry.CacheSrc, it.registry.MemSrc, it.registry.DiskSrc = -1, -1, -1, -1
	if lastReturned != nil {
		it.lastReturned = lastReturned
		it.hasLastReturned = true
	}
	it.needCheckEq = pred == base.PredREQ
	switch pred {
	case base.PredEQ, base.PredREQ, base.PredGE, base.PredLE:
		if store.Cmp.IsExactKey != nil && store.Cmp.IsExactKey(searchKey) {
			it.checkExactMatch = true
		}
	}
	return it
}

// Close releases every open cursor. Close is idempotent.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	var firstErr error
	for i := 0; i < it.registry.Len(); i++ {
		slot := it.registry.Slot(i)
		if slot.Cursor == nil {
			continue
		}
		if err := slot.Cursor.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	it.registry.Reset()
	return firstErr
}

// anchorKey returns the key every per-source cursor should position itself
// after (or before, for descending predicates): last-returned if the
// iterator has produced a result already, else nil (meaning "use the
// predicate's search key", per source.Cursor.Skip's contract).
func (it *Iterator) anchorKey() base.UserKey {
	if it.hasLastReturned {
		return it.lastReturned
	}
	return nil
}

// effectiveReadView is the iterator's read view narrowed by any bound the
// attached transaction has accumulated via SendToReadView.
func (it *Iterator) effectiveReadView() base.ReadView {
	rv := it.readView
	if it.tx != nil {
		if txrv := it.tx.ReadView(); txrv.Bound < rv.Bound {
			rv = txrv
		}
	}
	return rv
}

func (it *Iterator) preparedOk() bool {
	return it.tx == nil || it.tx.IsPreparedOk()
}

// compareCandidate returns <0 if entry is strictly better (more extreme in
// the predicate direction) than candidate, 0 if they tie (same key), and >0
// otherwise. A nil statement sorts as "no result", the worst possible value.
func (it *Iterator) compareCandidate(entry, candidate *base.Statement) int {
	if entry == nil && candidate == nil {
		return 0
	}
	if entry == nil {
		return 1
	}
	if candidate == nil {
		return -1
	}
	return it.pred.Direction() * it.cmp.Compare(entry.Key, candidate.Key)
}

// withinRange reports whether key lies inside r's [Begin, End) bounds.
func (it *Iterator) withinRange(r *rangetree.Range, key base.UserKey) bool {
	if r.Begin != nil && it.cmp.Compare(key, r.Begin) < 0 {
		return false
	}
	if r.End != nil && it.cmp.Compare(key, r.End) >= 0 {
		return false
	}
	return true
}
