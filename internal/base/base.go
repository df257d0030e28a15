// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base defines the primitive types shared by every layer of the
// read iterator: statements, versions, read views and the comparator
// contract used to order keys.
package base

import "github.com/cockroachdb/errors"

// Kind identifies the shape of a Statement.
type Kind uint8

const (
	// KindInsert is a terminal statement that introduces a key not
	// previously visible under the writer's view.
	KindInsert Kind = iota
	// KindReplace is a terminal statement that overwrites the full value
	// of a key.
	KindReplace
	// KindDelete is a terminal tombstone; never returned to callers.
	KindDelete
	// KindUpsert is a delta statement that must be folded onto the
	// newest terminal statement for its key.
	KindUpsert
)

// IsTerminal reports whether a statement of this kind ends a history chain
// without needing to look at older statements for the same key.
func (k Kind) IsTerminal() bool {
	return k == KindInsert || k == KindReplace || k == KindDelete
}

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "INSERT"
	case KindReplace:
		return "REPLACE"
	case KindDelete:
		return "DELETE"
	case KindUpsert:
		return "UPSERT"
	default:
		return "UNKNOWN"
	}
}

// Version is a monotonically assigned sequence number. VersionUncommitted
// is a reserved placeholder used only for ordering: it sorts after every
// committed version. Code that must distinguish "uncommitted, belongs to
// this transaction" from "prepared, belongs to another transaction" does
// so via the explicit flags on Statement, never by comparing against this
// sentinel — see the Open Question resolution in SPEC_FULL.md.
type Version uint64

// VersionUncommitted is the reserved sentinel marking a statement that has
// not yet been assigned a durable version.
const VersionUncommitted Version = ^Version(0)

// VersionMax is the largest version a committed statement can carry (one
// below VersionUncommitted); used by ReadViewNewest.
const VersionMax Version = ^Version(0) - 1

// UserKey is the user-visible key-columns portion of a Statement, already
// encoded in comparator-ready form.
type UserKey []byte

// Statement is an immutable record produced by one source.
type Statement struct {
	Key     UserKey
	Value   []byte // nil for KindDelete
	Kind    Kind
	Version Version
	// Uncommitted marks a statement drawn from the write set of the
	// transaction that is doing the reading: it has VersionUncommitted
	// but is visible to this reader regardless of read view.
	Uncommitted bool
	// Prepared marks a statement whose version has been assigned but is
	// not yet durable (written by another, possibly concurrent,
	// transaction). Prepared statements break cache-link chains.
	Prepared bool
}

// IsZero reports whether s is the absence of a statement (the position
// following the last one).
func (s *Statement) IsZero() bool { return s == nil }

// ReadView is an immutable visibility bound: "the largest version this
// iterator may observe".
type ReadView struct {
	Bound Version
}

// ReadViewNewest denotes "no bound", i.e. the newest possible view.
var ReadViewNewest = ReadView{Bound: VersionMax}

// IsNewest reports whether rv admits every committed version.
func (rv ReadView) IsNewest() bool { return rv.Bound == VersionMax }

// Comparer provides a total order over key columns plus exact-key
// predicate metadata, needed to detect EQ/REQ point lookups cheaply.
type Comparer struct {
	// Compare returns <0, 0, >0 like bytes.Compare, but over decoded key
	// columns rather than raw bytes.
	Compare func(a, b UserKey) int
	// IsExactKey reports whether key is a full key (as opposed to a
	// prefix) under the index's uniqueness metadata; used to compute
	// Iterator.CheckExactMatch.
	IsExactKey func(key UserKey) bool
}

// Equal reports whether a and b compare equal under c.
func (c *Comparer) Equal(a, b UserKey) bool { return c.Compare(a, b) == 0 }

// PredicateKind is the search predicate driving iteration direction and
// inclusivity.
type PredicateKind uint8

const (
	PredEQ PredicateKind = iota
	PredREQ
	PredGE
	PredGT
	PredLE
	PredLT
)

// Direction returns +1 for ascending predicates, -1 for descending ones.
func (p PredicateKind) Direction() int {
	if p == PredLE || p == PredLT || p == PredREQ {
		return -1
	}
	return 1
}

func (p PredicateKind) String() string {
	switch p {
	case PredEQ:
		return "EQ"
	case PredREQ:
		return "REQ"
	case PredGE:
		return "GE"
	case PredGT:
		return "GT"
	case PredLE:
		return "LE"
	case PredLT:
		return "LT"
	default:
		return "?"
	}
}

// Error kinds surfaced by advance's failure channel. They are
// sentinel errors marked via cockroachdb/errors so callers can test with
// errors.Is without depending on a concrete type.
var (
	// ErrOutOfMemory marks allocation failures in registry growth or
	// history accumulation.
	ErrOutOfMemory = errors.New("vystore: out of memory")
	// ErrTransactionConflict marks an attached transaction aborting
	// while the iterator was mid-scan.
	ErrTransactionConflict = errors.New("vystore: transaction conflict")
	// ErrSource marks an error propagated from an underlying cursor.
	ErrSource = errors.New("vystore: source error")
)

// WrapSourceError marks err as a source-error, preserving its message.
func WrapSourceError(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, "source"), ErrSource)
}
