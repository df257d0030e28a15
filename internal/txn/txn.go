// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package txn implements the transaction write-set and the minimal
// transaction-manager contract the read iterator depends on:
// SendToReadView, IsPreparedOk, state query, and Track (conflict ranges).
package txn

import (
	"sort"
	"sync"

	"github.com/devlibx/vystore/internal/base"
)

// State is the lifecycle state of a transaction: a single-owner mutable
// struct with explicit transitions, the same style this module's other
// stateful types use rather than scattering booleans.
type State uint8

const (
	StateReady State = iota
	StatePrepared
	StateCommitted
	StateAborted
)

// TrackedRange is one conflict-tracking range registered via Track.
type TrackedRange struct {
	Begin, End                   base.UserKey
	BeginInclusive, EndInclusive bool
}

// Transaction is the write-set owning object attached to a read iterator.
// It is single-owner (one fiber at a time mutates it) but guards State
// with a mutex because SendToReadView / abort can race with a concurrent
// administrative abort during a disk-scan suspension point.
type Transaction struct {
	mu sync.Mutex

	state    State
	readView base.ReadView
	writes   []base.Statement // sorted by Key via Comparer when sealed
	cmp      *base.Comparer

	tracked []TrackedRange
}

// New creates a transaction bound to cmp, starting in the Ready state with
// the newest read view.
func New(cmp *base.Comparer) *Transaction {
	return &Transaction{cmp: cmp, readView: base.ReadViewNewest, state: StateReady}
}

// Put appends a statement to the write set. Statements must be appended in
// ascending key order by the caller (mirroring how a real write set is
// built incrementally); Put re-sorts defensively so cursors never observe
// an out-of-order write set.
func (t *Transaction) Put(stmt base.Statement) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stmt.Uncommitted = true
	stmt.Version = base.VersionUncommitted
	t.writes = append(t.writes, stmt)
	sort.SliceStable(t.writes, func(i, j int) bool {
		return t.cmp.Compare(t.writes[i].Key, t.writes[j].Key) < 0
	})
}

// State returns the transaction's current lifecycle state.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Abort transitions the transaction to Aborted; used by tests to model
// concurrent rollback during a suspended disk scan.
func (t *Transaction) Abort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateAborted
}

// IsPreparedOk reports whether prepared (not-yet-durable) statements from
// other transactions may be observed by this transaction's reads.
func (t *Transaction) IsPreparedOk() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state != StateAborted
}

// SendToReadView narrows the transaction's observable bound to at most
// bound — called by the resilience controller after restore-mem skips a
// prepared statement.
func (t *Transaction) SendToReadView(bound base.Version) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if bound < t.readView.Bound {
		t.readView.Bound = bound
	}
}

// ReadView returns the transaction's current narrowed read view.
func (t *Transaction) ReadView() base.ReadView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readView
}

// Track registers a conflict-tracking range read bounded by [begin, end]
// with the given inclusivity.
func (t *Transaction) Track(begin base.UserKey, beginIncl bool, end base.UserKey, endIncl bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracked = append(t.tracked, TrackedRange{Begin: begin, End: end, BeginInclusive: beginIncl, EndInclusive: endIncl})
}

// TrackedRanges returns the ranges registered so far, for tests.
func (t *Transaction) TrackedRanges() []TrackedRange {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TrackedRange, len(t.tracked))
	copy(out, t.tracked)
	return out
}

// Writes returns a snapshot of the write set, for the txw cursor.
func (t *Transaction) Writes() []base.Statement {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]base.Statement, len(t.writes))
	copy(out, t.writes)
	return out
}
