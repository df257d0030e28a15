// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package iter

import (
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devlibx/vystore/internal/base"
	"github.com/devlibx/vystore/internal/diskrun"
	"github.com/devlibx/vystore/internal/memtree"
	"github.com/devlibx/vystore/internal/rangetree"
	"github.com/devlibx/vystore/internal/rcache"
	"github.com/devlibx/vystore/internal/source"
	"github.com/devlibx/vystore/internal/txn"
)

// evaluateSrc folds one slot's current head into candidate (C4 step 2-3):
// it updates front-id bookkeeping, advances skipped-src, and reports
// whether the caller should stop scanning deeper slots this pass.
func (it *Iterator) evaluateSrc(idx int, candidate **base.Statement) bool {
	slot := it.registry.Slot(idx)
	entry := slot.History.LastStmt()
	cmp := it.compareCandidate(entry, *candidate)

	if cmp > 0 && entry != nil {
		if entry.Version > it.runnerUpVersion {
			it.runnerUpVersion = entry.Version
			it.runnerUpPrepared = entry.Prepared
		} else if entry.Version == it.runnerUpVersion && entry.Prepared {
			it.runnerUpPrepared = true
		}
	}

	if cmp < 0 {
		*candidate = entry
		it.frontID++
	}
	if cmp <= 0 {
		slot.FrontID = it.frontID
	}

	if slot.Terminal {
		it.skippedSrc = idx + 1
		return true
	}

	if it.checkExactMatch && cmp < 0 && slot.History.IsTerminal() {
		if it.cmp.Equal(entry.Key, it.searchKey) {
			if it.pred == base.PredEQ || it.pred == base.PredREQ {
				slot.Terminal = true
			}
			it.skippedSrc = idx + 1
			return true
		}
	}

	if idx+1 > it.skippedSrc {
		it.skippedSrc = idx + 1
	}
	return false
}

// reevaluateSrcs rebuilds candidate from scratch over every slot up to
// limit, used by restoreMem's demotion case: the old winner
// may have tied multiple slots forward, so only a full re-scan of the
// already-visited slots can find the true new minimum.
func (it *Iterator) reevaluateSrcs(candidate **base.Statement, limit int) {
	*candidate = nil
	n := it.registry.Len()
	if limit < n {
		n = limit
	}
	for i := 0; i < n; i++ {
		slot := it.registry.Slot(i)
		entry := slot.History.LastStmt()
		cmp := it.compareCandidate(entry, *candidate)
		if cmp < 0 {
			*candidate = entry
			it.frontID++
		}
		if cmp <= 0 {
			slot.FrontID = it.frontID
		}
	}
}

// srcIsVisible implements the visibility rule: every slot but the
// deepest is visible only if the read view can see versions beyond what the
// next (older) slot could possibly hold.
func (it *Iterator) srcIsVisible(idx int) bool {
	if idx >= it.registry.Len()-1 {
		return true
	}
	next := it.registry.Slot(idx + 1)
	return it.effectiveReadView().Bound > next.MaxVersion
}

// positionZone advances one slot and folds its new head into candidate.
// When restored is source.RestoreChanged, the caller's Cursor.Restore call
// already repositioned the cursor and deposited its fragments this pass, so
// the Skip/Next block is skipped — running it anyway would deposit the same
// fragments a second time.
func (it *Iterator) positionZone(idx int, useThreshold bool, candidate **base.Statement, restored source.RestoreResult) (bool, error) {
	slot := it.registry.Slot(idx)
	var err error
	if restored != source.RestoreChanged {
		switch {
		case !slot.Started || (useThreshold && idx >= it.skippedSrc):
			err = slot.Cursor.Skip(it.anchorKey(), slot.History)
		case slot.FrontID == it.prevFrontID:
			err = slot.Cursor.Next(slot.History)
		}
	}
	slot.Started = true
	if err != nil {
		return false, base.WrapSourceError(err)
	}
	return it.evaluateSrc(idx, candidate), nil
}

// scanTxw scans the transaction write-set slot, if one is attached.
func (it *Iterator) scanTxw(candidate **base.Statement) (bool, error) {
	if it.registry.TxwSrc < 0 {
		return false, nil
	}
	idx := it.registry.TxwSrc
	slot := it.registry.Slot(idx)
	restored, err := slot.Cursor.Restore(it.anchorKey(), slot.History)
	if err != nil {
		return false, base.WrapSourceError(err)
	}
	return it.positionZone(idx, false, candidate, restored)
}

// scanCache scans the result-cache slot. A cache interval reported complete
// means every key in it is already known, so deeper (mem/disk) sources need
// not be consulted for this key at all: the scan stops here.
func (it *Iterator) scanCache(candidate **base.Statement) (bool, error) {
	if it.registry.CacheSrc < 0 {
		return false, nil
	}
	idx := it.registry.CacheSrc
	slot := it.registry.Slot(idx)
	restored, err := slot.Cursor.Restore(it.anchorKey(), slot.History)
	if err != nil {
		return false, base.WrapSourceError(err)
	}
	stop, err := it.positionZone(idx, true, candidate, restored)
	if err != nil {
		return false, err
	}
	if cc, ok := slot.Cursor.(source.CacheCursor); ok && cc.IntervalComplete() {
		it.metrics.IncCacheHits()
		it.skippedSrc = idx + 1
		stop = true
	}
	return stop, nil
}

// scanMem scans one memory-zone slot (active or sealed).
func (it *Iterator) scanMem(idx int, candidate **base.Statement) (bool, error) {
	if !it.srcIsVisible(idx) {
		return false, nil
	}
	slot := it.registry.Slot(idx)
	restored, err := slot.Cursor.Restore(it.anchorKey(), slot.History)
	if err != nil {
		return false, base.WrapSourceError(err)
	}
	return it.positionZone(idx, true, candidate, restored)
}

// scanDisk scans one disk-zone slot. Unlike the other zones, disk cursors
// are never Restore()d mid-pass: their immutability means a structural
// change is always detected by the range/range-tree version counters
// instead.
func (it *Iterator) scanDisk(idx int, candidate **base.Statement) (bool, error) {
	if !it.srcIsVisible(idx) {
		return false, nil
	}
	return it.positionZone(idx, true, candidate, source.RestoreUnchanged)
}

func (it *Iterator) pinDiskSlices() {
	for _, s := range it.diskSlices {
		s.Pin()
	}
}

func (it *Iterator) unpinDiskSlices() {
	for _, s := range it.diskSlices {
		s.Unpin()
	}
}

// restore performs a full resilience-controller restore:
// close every slot, reselect the current range, snapshot the three version
// counters, and re-add every zone in freshness order.
func (it *Iterator) restore() error {
	it.metrics.IncRestores()

	for i := 0; i < it.registry.Len(); i++ {
		if cur := it.registry.Slot(i).Cursor; cur != nil {
			_ = cur.Close()
		}
	}
	it.registry.Reset()
	it.diskSlices = nil

	var rng *rangetree.Range
	if it.forceRange != nil {
		rng = it.forceRange
		it.forceRange = nil
	} else {
		anchor := it.anchorKey()
		if anchor == nil {
			anchor = it.searchKey
		}
		rng = it.store.Tree.FindByKey(it.pred.Direction(), anchor)
	}
	it.currentRange = rng
	it.memListVersion = it.store.MemListVersion()
	it.rangeTreeVersion = it.store.RangeTreeVersion()
	it.rangeVersion = rng.Version()

	rv := it.effectiveReadView()
	preparedOk := it.preparedOk()

	if it.tx != nil {
		cur := txn.Open(it.tx, it.cmp, it.pred, it.searchKey)
		it.registry.TxwSrc = it.registry.Add(source.KindTxw, cur, base.VersionMax)
	} else {
		it.registry.TxwSrc = -1
	}

	cacheCur := rcache.Open(it.store.Cache, it.pred, it.searchKey, preparedOk)
	it.registry.CacheSrc = it.registry.Add(source.KindCache, cacheCur, base.VersionMax)

	it.registry.MemSrc = it.registry.Len()
	activeCur := memtree.Open(it.store.Active(), it.cmp, it.pred, it.searchKey, rv, preparedOk)
	it.registry.Add(source.KindMemory, activeCur, base.VersionMax)
	for _, level := range it.store.Sealed() {
		cur := memtree.Open(level, it.cmp, it.pred, it.searchKey, rv, preparedOk)
		it.registry.Add(source.KindMemory, cur, level.FlushVersion)
	}

	it.registry.DiskSrc = it.registry.Len()
	slices := make([]*diskrun.Slice, 0, len(rng.Slices()))
	for _, sr := range rng.Slices() {
		if slice, ok := sr.(*diskrun.Slice); ok {
			slices = append(slices, slice)
		}
	}
	// Ensure every slice's run is resident before any cursor opens over it:
	// for a storage.FS-backed slice this is the genuine (network) I/O the
	// disk zone suspends on, fanned out across slices of the range rather
	// than paid one at a time.
	var g errgroup.Group
	for _, slice := range slices {
		slice := slice
		g.Go(slice.Ensure)
	}
	if err := g.Wait(); err != nil {
		return base.WrapSourceError(err)
	}
	for _, slice := range slices {
		cur := diskrun.Open(slice, it.cmp, it.pred, it.searchKey)
		it.registry.Add(source.KindDisk, cur, slice.DumpVersion())
		it.diskSlices = append(it.diskSlices, slice)
	}

	it.started = true
	return nil
}

// restoreMem re-anchors the active memory slot after a disk-scan suspension
//: the active level may have accepted writes while the fiber
// was suspended, and this is the only suspension-window mutation that can
// demote a slot already part of the current front.
func (it *Iterator) restoreMem(candidate **base.Statement) error {
	idx := it.registry.MemSrc
	if idx < 0 || idx >= it.registry.DiskSrc {
		return nil
	}
	slot := it.registry.Slot(idx)
	memCur, ok := slot.Cursor.(source.MemCursor)
	if !ok {
		return nil
	}

	result, err := memCur.Restore(it.anchorKey(), slot.History)
	if err != nil {
		return base.WrapSourceError(err)
	}
	it.metrics.IncRestoreMems()

	if skipped := memCur.MinSkippedPreparedVersion(); skipped != base.VersionUncommitted {
		if it.tx != nil {
			it.tx.SendToReadView(skipped)
			if it.tx.State() == txn.StateAborted {
				return base.ErrTransactionConflict
			}
		}
	}

	if result == source.RestoreUnchanged {
		return nil
	}

	newHead := slot.History.LastStmt()
	cmp := it.compareCandidate(newHead, *candidate)
	wasInFront := slot.FrontID == it.frontID

	if cmp > 0 && wasInFront {
		// Demotion: the slot that used to win now loses, and it had tied
		// (or led) the current front, so any slot it tied forward must be
		// re-derived from scratch.
		it.reevaluateSrcs(candidate, it.skippedSrc)
		return nil
	}

	if cmp < 0 {
		*candidate = newHead
		it.frontID++
		if it.registry.CacheSrc >= 0 {
			// The cache slot's history may hold a stale UPSERT base that
			// predates this newly-visible, more-recent memory statement.
			it.registry.Slot(it.registry.CacheSrc).History.Cleanup()
		}
	}
	if cmp <= 0 {
		slot.FrontID = it.frontID
	}
	return nil
}

// rangeIsDone reports whether the current range has nothing more to offer
// for this predicate: either the search key (EQ/REQ) lies outside it, or
// the candidate (if any) has crossed its far boundary, or there simply is
// no candidate left inside it.
func (it *Iterator) rangeIsDone(candidate *base.Statement) bool {
	if it.currentRange == nil {
		return true
	}
	if it.pred == base.PredEQ || it.pred == base.PredREQ {
		if !it.withinRange(it.currentRange, it.searchKey) {
			return true
		}
		return candidate == nil
	}
	if candidate == nil {
		return true
	}
	if it.pred.Direction() > 0 {
		return it.currentRange.End != nil && it.cmp.Compare(candidate.Key, it.currentRange.End) >= 0
	}
	return it.currentRange.Begin != nil && it.cmp.Compare(candidate.Key, it.currentRange.Begin) < 0
}

// nextRange returns the neighbouring range in the predicate direction, or
// false if there is none or the predicate is a point query (EQ/REQ never
// spans ranges).
func (it *Iterator) nextRange() (*rangetree.Range, bool) {
	if it.pred == base.PredEQ || it.pred == base.PredREQ {
		return nil, false
	}
	var nr *rangetree.Range
	if it.pred.Direction() > 0 {
		nr = it.store.Tree.Next(it.currentRange)
	} else {
		nr = it.store.Tree.Prev(it.currentRange)
	}
	if nr == nil {
		return nil, false
	}
	return nr, true
}

// advance runs one merge-evaluator pass wrapped by the resilience
// controller, returning the winning candidate statement (before history
// application) or ok=false at the terminator.
func (it *Iterator) advance() (base.Statement, bool, error) {
	start := time.Now()
	defer func() { it.metrics.ObserveAdvance(time.Since(start)) }()

	for {
		needRestore := !it.started ||
			it.store.MemListVersion() != it.memListVersion ||
			it.store.RangeTreeVersion() != it.rangeTreeVersion ||
			it.currentRange.Version() != it.rangeVersion
		if needRestore {
			if err := it.restore(); err != nil {
				return base.Statement{}, false, err
			}
		}

		it.prevFrontID = it.frontID
		it.frontID++
		it.skippedSrc = 0
		it.runnerUpVersion = 0
		it.runnerUpPrepared = false

		var candidate *base.Statement
		stop := false

		if s, err := it.scanTxw(&candidate); err != nil {
			return base.Statement{}, false, err
		} else if s {
			stop = true
		}

		if !stop {
			if s, err := it.scanCache(&candidate); err != nil {
				return base.Statement{}, false, err
			} else if s {
				stop = true
			}
		}

		if !stop {
			for i := it.registry.MemSrc; i >= 0 && i < it.registry.DiskSrc; i++ {
				s, err := it.scanMem(i, &candidate)
				if err != nil {
					return base.Statement{}, false, err
				}
				if s {
					stop = true
					break
				}
			}
		}

		if !stop {
			it.metrics.IncDiskScans()
			it.pinDiskSlices()
			var scanErr error
			for i := it.registry.DiskSrc; i < it.registry.Len(); i++ {
				s, err := it.scanDisk(i, &candidate)
				if err != nil {
					scanErr = err
					break
				}
				if s {
					break
				}
			}
			it.unpinDiskSlices()
			if scanErr != nil {
				return base.Statement{}, false, scanErr
			}

			if it.tx != nil && it.tx.State() == txn.StateAborted {
				return base.Statement{}, false, base.ErrTransactionConflict
			}

			// Structural changes during the disk-scan suspension window are
			// caught here; falling through to the top of the loop re-checks
			// the version counters and, on mismatch, restores and restarts.
			if it.store.MemListVersion() != it.memListVersion || it.store.RangeTreeVersion() != it.rangeTreeVersion {
				continue
			}

			if err := it.restoreMem(&candidate); err != nil {
				return base.Statement{}, false, err
			}
		}

		if it.rangeIsDone(candidate) {
			nr, ok := it.nextRange()
			if !ok {
				it.metrics.IncTerminals()
				return base.Statement{}, false, nil
			}
			it.forceRange = nr
			if err := it.restore(); err != nil {
				return base.Statement{}, false, err
			}
			continue
		}

		if candidate == nil {
			it.metrics.IncTerminals()
			return base.Statement{}, false, nil
		}

		if it.needCheckEq && !it.cmp.Equal(candidate.Key, it.searchKey) {
			it.frontID++
			it.metrics.IncTerminals()
			return base.Statement{}, false, nil
		}

		return *candidate, true, nil
	}
}
