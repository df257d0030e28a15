// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package source defines the polymorphic per-source cursor contract (the
// four cursor kinds share shape but not parameters) and the growable,
// zone-partitioned registry of source slots.
package source

import (
	"github.com/devlibx/vystore/internal/base"
	"github.com/devlibx/vystore/internal/history"
)

// Kind identifies which of the four source zones a slot belongs to.
type Kind uint8

const (
	KindTxw Kind = iota
	KindCache
	KindMemory
	KindDisk
)

func (k Kind) String() string {
	switch k {
	case KindTxw:
		return "txw"
	case KindCache:
		return "cache"
	case KindMemory:
		return "memory"
	case KindDisk:
		return "disk"
	default:
		return "?"
	}
}

// RestoreResult is returned by Cursor.Restore.
type RestoreResult uint8

const (
	RestoreUnchanged RestoreResult = iota
	RestoreChanged
)

// Cursor is the shape shared by the transaction-write-set, result-cache,
// in-memory-tree, and on-disk-run cursors. The merge loop only ever needs
// head-of-history, freshness order, and max-version — it never interprets
// the fragments a Cursor deposits.
type Cursor interface {
	// Skip positions the cursor at the first statement strictly after (for
	// ascending predicates) or strictly before (descending) anchor,
	// depositing fragments into h. anchor is nil for the very first
	// call, meaning "use the predicate's search key" with the predicate's
	// own inclusivity.
	Skip(anchor base.UserKey, h History) error
	// Next advances to the statement following the previous position and
	// deposits fragments into h.
	Next(h History) error
	// Restore re-anchors the cursor at anchor after a suspension point if
	// the underlying structure mutated concurrently, depositing any
	// newly-visible fragments into h.
	Restore(anchor base.UserKey, h History) (RestoreResult, error)
	// Close releases the cursor's resources.
	Close() error
}

// History is the narrow interface Cursor implementations deposit fragments
// into; it is satisfied by *history.History.
type History interface {
	Append(stmt base.Statement)
}

// MemCursor is the extra contract the active memory cursor exposes for
// read-view narrowing.
type MemCursor interface {
	Cursor
	// MinSkippedPreparedVersion returns the smallest prepared (pending)
	// version skipped during the most recent Skip/Next/Restore call, or
	// base.VersionUncommitted if none was skipped.
	MinSkippedPreparedVersion() base.Version
}

// CacheCursor is the extra contract the result-cache cursor exposes.
type CacheCursor interface {
	Cursor
	// IntervalComplete reports whether the position just scanned lies
	// inside a cache interval known to cover every key in it, allowing
	// the merge evaluator to stop scanning deeper sources.
	IntervalComplete() bool
}

// Slot holds one per-source cursor plus the merge bookkeeping the
// iterator tracks for it across an advance pass.
type Slot struct {
	Kind       Kind
	Cursor     Cursor
	Started    bool
	Terminal   bool
	FrontID    uint64
	MaxVersion base.Version
	History    *history.History
}
