// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package iter

import (
	"github.com/devlibx/vystore/internal/base"
	"github.com/devlibx/vystore/internal/history"
)

// assembleResult implements the result assembler: splice every slot
// participating in the current front into a temporary history, stopping at
// the first terminal fragment, then fold any UPSERTs onto it.
func (it *Iterator) assembleResult() base.Statement {
	temp := history.New(it.registry.Pool())
	stopped := false
	for i := 0; i < it.registry.Len(); i++ {
		slot := it.registry.Slot(i)
		if slot.FrontID != it.frontID {
			continue
		}
		if stopped {
			slot.History.Cleanup()
			continue
		}
		if slot.History.IsTerminal() {
			stopped = true
		}
		temp.Splice(slot.History)
	}
	var upsertCount int
	result, _ := history.Apply(temp, it.cmp, true, &upsertCount)
	temp.Cleanup()
	return result
}

// accumulateCacheLinkVersion folds a suppressed DELETE's version into the
// cache-link bookkeeping: the link eventually emitted for
// the next delivered key must reflect the newest version skipped along the
// way, and a DELETE drawn from the write set (uncommitted) forcibly breaks
// the chain.
func (it *Iterator) accumulateCacheLinkVersion(stmt base.Statement) {
	if stmt.Version > it.cacheLinkAccum {
		it.cacheLinkAccum = stmt.Version
	}
	if stmt.Uncommitted {
		it.cacheLinkBroken = true
	}
}

// emitCacheLink implements the cache-link emitter for a delivered,
// non-delete result.
func (it *Iterator) emitCacheLink(result base.Statement) {
	linkVersion := it.runnerUpVersion
	prepared := it.runnerUpPrepared
	if it.cacheLinkAccum > linkVersion {
		linkVersion = it.cacheLinkAccum
	}
	broken := it.cacheLinkBroken
	it.cacheLinkAccum = 0
	it.cacheLinkBroken = false

	if !it.effectiveReadView().IsNewest() {
		it.hasLastCached = false
		return
	}
	if broken || prepared {
		// A skipped version that is still prepared (pending, not durable)
		// would invalidate this link on rollback without the rollback
		// itself touching the cache, so no link is safe to emit.
		it.hasLastCached = false
		return
	}

	it.store.Cache.Add(result, it.lastCached, it.hasLastCached, !it.hasLastCached, linkVersion)
	it.lastCached = result
	it.hasLastCached = true
}

// CacheAdd is the caller-driven counterpart to emitCacheLink): a caller that already knows a result and
// the newest version it skipped to find it can feed that directly into the
// same chain the iterator's own Next calls build.
func (it *Iterator) CacheAdd(result base.Statement, skippedVersion base.Version, skippedPrepared bool) {
	if it.closed {
		return
	}
	if !it.effectiveReadView().IsNewest() || skippedPrepared {
		it.hasLastCached = false
		return
	}
	it.store.Cache.Add(result, it.lastCached, it.hasLastCached, !it.hasLastCached, skippedVersion)
	it.lastCached = result
	it.hasLastCached = true
}

// trackRead implements the conflict tracker bridge: on every delivered
// result (including the terminator) it registers a range read on the
// attached transaction bounded by the search key and the returned key.
func (it *Iterator) trackRead(result *base.Statement) {
	if it.tx == nil {
		return
	}

	begin := it.searchKey
	beginIncl := it.pred != base.PredGT && it.pred != base.PredLT

	var end base.UserKey
	endIncl := true
	switch {
	case result != nil:
		end = result.Key
	case it.pred == base.PredEQ || it.pred == base.PredREQ:
		end = it.searchKey
	default:
		end = nil // unbounded: no more keys exist in this direction
	}

	if it.pred.Direction() < 0 {
		begin, beginIncl, end, endIncl = end, endIncl, begin, beginIncl
	}
	it.tx.Track(begin, beginIncl, end, endIncl)
}

// Next implements next() → statement | none. It drives
// advance until a non-DELETE result surfaces or the terminator is reached,
// threading the result assembler, conflict tracker, and cache-link emitter
// around each advance pass.
func (it *Iterator) Next() (base.Statement, bool, error) {
	if it.closed {
		return base.Statement{}, false, ErrClosed
	}
	for {
		candidate, ok, err := it.advance()
		if err != nil {
			return base.Statement{}, false, err
		}
		if !ok {
			it.trackRead(nil)
			return base.Statement{}, false, nil
		}

		result := it.assembleResult()
		it.checkExactMatch = false

		it.lastReturned = append(it.lastReturned[:0], result.Key...)
		it.hasLastReturned = true

		if result.Kind == base.KindDelete {
			it.accumulateCacheLinkVersion(result)
			continue
		}

		it.trackRead(&result)
		it.emitCacheLink(result)
		return result, true, nil
	}
}
