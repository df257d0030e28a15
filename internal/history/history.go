// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package history accumulates the statement fragments a source deposits for
// the key it is currently positioned at, and folds UPSERT deltas onto the
// newest terminal statement.
package history

import "github.com/devlibx/vystore/internal/base"

// node is a pooled linked-list cell so that splicing histories on registry
// growth re-parents list nodes rather than copying fragment slices.
type node struct {
	stmt base.Statement
	next *node
}

// Pool is a tiny free-list shared by all histories belonging to one
// iterator's source registry, avoiding an allocation per fragment on the
// hot path. It is not safe for concurrent use — the whole merge engine is
// single-fiber.
type Pool struct {
	free *node
}

// NewPool creates an empty node pool; one is shared by an entire source
// registry so History splicing never needs to copy fragment payloads.
func NewPool() *Pool { return &Pool{} }

func (p *Pool) get(stmt base.Statement) *node {
	n := p.free
	if n == nil {
		n = &node{}
	} else {
		p.free = n.next
	}
	n.stmt = stmt
	n.next = nil
	return n
}

func (p *Pool) put(n *node) {
	n.next = p.free
	n.stmt = base.Statement{}
	p.free = n
}

// History is the accumulator of fragments for one source slot's current
// key. Fragments are kept newest-first: Append adds each fragment at the
// tail, and cursors deposit statements in freshness order relative to
// their own source, so the head is the newest fragment.
type History struct {
	pool *Pool
	head *node
	tail *node
}

// New creates a History backed by the given shared node pool.
func New(p *Pool) *History {
	return &History{pool: p}
}

// Append deposits one fragment at the tail (oldest-appended-last) position.
func (h *History) Append(stmt base.Statement) {
	n := h.pool.get(stmt)
	if h.head == nil {
		h.head = n
		h.tail = n
		return
	}
	h.tail.next = n
	h.tail = n
}

// LastStmt returns the head fragment (the first one appended, i.e. the
// newest), or nil if the history is empty — this is what the merge
// evaluator compares across sources.
func (h *History) LastStmt() *base.Statement {
	if h.head == nil {
		return nil
	}
	return &h.head.stmt
}

// IsTerminal reports whether the first (newest) fragment is terminal, i.e.
// folding can stop without looking at any older source.
func (h *History) IsTerminal() bool {
	if h.head == nil {
		return false
	}
	return h.head.stmt.Kind.IsTerminal()
}

// Splice appends all of other's fragments after h's own, transferring
// ownership of other's nodes, and clears other. Used by the result
// assembler to collect every slot participating in the current front,
// stopping at the first terminal fragment.
func (h *History) Splice(other *History) {
	if other.head == nil {
		return
	}
	if h.head == nil {
		h.head = other.head
		h.tail = other.tail
	} else {
		h.tail.next = other.head
		h.tail = other.tail
	}
	other.head = nil
	other.tail = nil
}

// Cleanup releases every fragment back to the shared pool.
func (h *History) Cleanup() {
	n := h.head
	for n != nil {
		next := n.next
		h.pool.put(n)
		n = next
	}
	h.head = nil
	h.tail = nil
}

// Empty reports whether the history currently holds no fragments.
func (h *History) Empty() bool { return h.head == nil }

// Apply folds the accumulated fragments — newest first, oldest last — into
// a single resultant statement: walk from newest, stop at (and include)
// the first terminal fragment, then fold every UPSERT seen along the way
// onto it in oldest-to-newest order. suppressDeletes is accepted for
// signature symmetry with the caller's own suppress/count bookkeeping;
// the read iterator always suppresses deletes itself in the result
// assembler, so this implementation does not special-case it beyond
// returning the DELETE unmodified for the caller to suppress.
func Apply(h *History, cmp *base.Comparer, suppressDeletes bool, upsertCount *int) (base.Statement, bool) {
	if h.head == nil {
		return base.Statement{}, false
	}

	// Collect the chain up to and including the first terminal fragment,
	// in newest-to-oldest order, then walk it in reverse (oldest upsert
	// first) so deltas fold onto the terminal in the order they were
	// written.
	var chain []base.Statement
	for n := h.head; n != nil; n = n.next {
		chain = append(chain, n.stmt)
		if n.stmt.Kind.IsTerminal() {
			break
		}
	}
	if len(chain) == 0 {
		return base.Statement{}, false
	}

	result := chain[len(chain)-1]
	if result.Kind == base.KindDelete {
		return result, true
	}

	for i := len(chain) - 2; i >= 0; i-- {
		delta := chain[i]
		if delta.Kind != base.KindUpsert {
			// Not reachable given how fragments are deposited, but
			// keep Apply defensive against a misbehaving source.
			continue
		}
		result = foldUpsert(result, delta)
		*upsertCount++
	}
	return result, true
}

// foldUpsert applies a single UPSERT delta onto the newest terminal known
// so far. The concrete delta semantics (value merge function) are a
// pluggable concern in a real deployment; this implementation supplies
// the minimal byte-append semantics needed to exercise UPSERT folding.
func foldUpsert(terminal, delta base.Statement) base.Statement {
	out := terminal
	out.Version = delta.Version
	out.Value = append(append([]byte(nil), terminal.Value...), delta.Value...)
	out.Kind = base.KindReplace
	return out
}
