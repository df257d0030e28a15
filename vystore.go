// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package vystore is the small DB-shaped facade that ties one LSM, its
// storage backend, and the merging read iterator together: Open, Put,
// BeginTx/Commit, Flush, Compact, and NewIterator. Everything interesting lives one
// layer down, in internal/iter and its collaborators; this package exists
// so a caller never has to construct a source.Registry or a rangetree.Tree
// by hand.
package vystore

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/devlibx/vystore/internal/base"
	"github.com/devlibx/vystore/internal/diskrun"
	"github.com/devlibx/vystore/internal/iter"
	"github.com/devlibx/vystore/internal/lsm"
	"github.com/devlibx/vystore/internal/metrics"
	"github.com/devlibx/vystore/internal/rangetree"
	"github.com/devlibx/vystore/internal/txn"
	"github.com/devlibx/vystore/storage"
)

// Options configures a DB.
type Options struct {
	Comparer      *base.Comparer
	FS            storage.FS
	Codec         diskrun.Codec
	CacheCapacity int
	Namespace     string // Prometheus metric namespace; empty disables metrics
}

// DB is one open index: an LSM tree, the storage backend its disk runs are
// written to, and a version counter standing in for a real write-ahead
// log's durable sequence number.
type DB struct {
	lsm     *lsm.LSM
	fs      storage.FS
	codec   diskrun.Codec
	metrics *metrics.Metrics
	version uint64
}

// Open creates a DB over opts. FS and Comparer are required; CacheCapacity
// defaults to 4096 links if zero.
func Open(opts Options) *DB {
	capacity := opts.CacheCapacity
	if capacity <= 0 {
		capacity = 4096
	}
	var m *metrics.Metrics
	if opts.Namespace != "" {
		m = metrics.New(opts.Namespace, nil)
	}
	return &DB{
		lsm:     lsm.New(opts.Comparer, capacity),
		fs:      opts.FS,
		codec:   opts.Codec,
		metrics: m,
	}
}

// nextVersion hands out a monotonically increasing version, standing in
// for the durable sequence number a real write-ahead log would assign.
func (db *DB) nextVersion() base.Version {
	return base.Version(atomic.AddUint64(&db.version, 1))
}

// Put writes a statement for key at a freshly assigned version directly
// into the active memory level, bypassing any transaction write-set.
func (db *DB) Put(key base.UserKey, kind base.Kind, value []byte) base.Version {
	v := db.nextVersion()
	db.lsm.Put(key, base.Statement{Key: key, Value: value, Kind: kind, Version: v})
	return v
}

// BeginTx opens a transaction bound to this DB's comparer.
func (db *DB) BeginTx() *txn.Transaction {
	return txn.New(db.lsm.Cmp)
}

// Commit assigns a durable version to every write in tx and applies them
// to the active memory level. The caller is responsible for having
// resolved conflicts via tx.TrackedRanges beforehand; Commit itself does
// not re-validate.
func (db *DB) Commit(tx *txn.Transaction) base.Version {
	v := db.nextVersion()
	for _, w := range tx.Writes() {
		w.Uncommitted = false
		w.Version = v
		db.lsm.Put(w.Key, w)
	}
	return v
}

// Flush seals the active memory level so a subsequent Compact can drain it
// to disk, per lsm.LSM.Flush.
func (db *DB) Flush() {
	db.lsm.Flush(db.nextVersion())
}

// Compact drains every sealed level into a single new disk run scoped to
// owner, names it with a fresh UUID (so repeated compactions never
// collide on the same storage.FS namespace), and attaches it to owner.
// This models the second half of a real flush/compaction pipeline; the
// read iterator only needs the result, not the policy that decided when
// to compact.
func (db *DB) Compact(owner *rangetree.Range, lower, upper base.UserKey) error {
	var entries []base.Statement
	for _, level := range db.lsm.Sealed() {
		entries = append(entries, level.All()...)
	}
	if len(entries) == 0 {
		return nil
	}
	name := uuid.NewString() + ".run"
	dumpVersion := db.nextVersion()
	run, err := diskrun.Write(db.fs, name, db.codec, db.lsm.Cmp, dumpVersion, entries)
	if err != nil {
		return err
	}
	db.lsm.DumpSealed(run, owner, lower, upper)
	return nil
}

// NewIterator opens a merging read iterator over this DB, bound to pred/
// searchKey and resuming after lastReturned if non-nil. tx may be nil; rv
// defaults to base.ReadViewNewest if its Bound is zero.
func (db *DB) NewIterator(tx *txn.Transaction, pred base.PredicateKind, searchKey, lastReturned base.UserKey, rv base.ReadView) *iter.Iterator {
	if rv.Bound == 0 {
		rv = base.ReadViewNewest
	}
	return iter.Open(db.lsm, tx, pred, searchKey, lastReturned, rv, db.metrics)
}

// Metrics returns the DB's metrics collector, or nil if metrics are
// disabled (Options.Namespace was empty).
func (db *DB) Metrics() *metrics.Metrics { return db.metrics }

// Tree returns the DB's range tree, letting a caller locate the owner
// range to pass to Compact.
func (db *DB) Tree() *rangetree.Tree { return db.lsm.Tree }

