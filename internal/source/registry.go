// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package source

import (
	"github.com/devlibx/vystore/internal/base"
	"github.com/devlibx/vystore/internal/history"
)

// Registry is a growable, contiguous, index-stable sequence of source
// slots partitioned into four zones (txw, cache, memory, disk) in
// freshness-descending order. Growing the registry never moves an
// already-assigned slot to a different index; it only appends.
type Registry struct {
	slots []Slot
	pool  *history.Pool

	TxwSrc, CacheSrc, MemSrc, DiskSrc int
}

// NewRegistry creates an empty registry. Reset must be called before the
// first use to establish zone boundaries.
func NewRegistry() *Registry {
	return &Registry{pool: history.NewPool()}
}

// Reset clears every slot (closing nothing — callers must Close cursors
// themselves before Reset) and zone boundaries, ready for a fresh restore
// pass.
func (r *Registry) Reset() {
	r.slots = r.slots[:0]
	r.TxwSrc, r.CacheSrc, r.MemSrc, r.DiskSrc = -1, -1, -1, -1
}

// Len returns the number of slots currently registered.
func (r *Registry) Len() int { return len(r.slots) }

// Pool returns the node pool shared by every slot's History, so the result
// assembler can build a temporary History that participates in the
// same splice/cleanup bookkeeping as the slots themselves.
func (r *Registry) Pool() *history.Pool { return r.pool }

// Slot returns a pointer to the i'th slot. Growing the backing slice on a
// later Add never invalidates fragment ownership because each Slot's
// History owns linked-list nodes drawn from a shared pool rather than
// storing them inline, so a slice copy during growth re-homes the History
// struct (head/tail pointers) atomically along with everything else.
func (r *Registry) Slot(i int) *Slot { return &r.slots[i] }

// Add appends a new slot of the given kind with the given cursor and
// max-version, returning its index.
func (r *Registry) Add(kind Kind, cur Cursor, maxVersion base.Version) int {
	r.slots = append(r.slots, Slot{
		Kind:       kind,
		Cursor:     cur,
		MaxVersion: maxVersion,
		History:    history.New(r.pool),
	})
	return len(r.slots) - 1
}
