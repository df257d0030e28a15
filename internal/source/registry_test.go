// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package source

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devlibx/vystore/internal/base"
	"github.com/devlibx/vystore/internal/history"
)

type fakeCursor struct{ closed bool }

func (f *fakeCursor) Skip(base.UserKey, History) error { return nil }
func (f *fakeCursor) Next(History) error               { return nil }
func (f *fakeCursor) Restore(base.UserKey, History) (RestoreResult, error) {
	return RestoreUnchanged, nil
}
func (f *fakeCursor) Close() error { f.closed = true; return nil }

func TestRegistryAddIsStableAcrossGrowth(t *testing.T) {
	r := NewRegistry()
	r.Reset()

	idx0 := r.Add(KindTxw, &fakeCursor{}, base.VersionMax)
	require.Equal(t, 0, idx0)

	slot0 := r.Slot(0)
	slot0.FrontID = 42

	for i := 0; i < 32; i++ {
		r.Add(KindDisk, &fakeCursor{}, base.Version(i))
	}

	require.Equal(t, uint64(42), r.Slot(0).FrontID, "growth must not disturb an already-assigned slot")
	require.Equal(t, 33, r.Len())
}

func TestRegistryResetClearsZoneBoundaries(t *testing.T) {
	r := NewRegistry()
	r.Reset()
	r.TxwSrc = 0
	r.CacheSrc = 1
	r.MemSrc = 2
	r.DiskSrc = 5
	r.Add(KindTxw, &fakeCursor{}, base.VersionMax)

	r.Reset()
	require.Equal(t, 0, r.Len())
	require.Equal(t, -1, r.TxwSrc)
	require.Equal(t, -1, r.CacheSrc)
	require.Equal(t, -1, r.MemSrc)
	require.Equal(t, -1, r.DiskSrc)
}

func TestRegistrySharesPoolAcrossSlots(t *testing.T) {
	r := NewRegistry()
	r.Reset()
	r.Add(KindCache, &fakeCursor{}, base.VersionMax)
	r.Add(KindMemory, &fakeCursor{}, base.VersionMax)
	require.NotNil(t, r.Pool())

	// A fragment deposited into one slot's history and then spliced into a
	// temporary history built from the same pool (as the result assembler
	// does) must round-trip intact, proving the slots share one pool.
	r.Slot(0).History.Append(base.Statement{Key: base.UserKey("k"), Version: 1})
	temp := history.New(r.Pool())
	temp.Splice(r.Slot(0).History)
	require.Equal(t, base.Version(1), temp.LastStmt().Version)
}
