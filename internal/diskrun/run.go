// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package diskrun implements the immutable on-disk run and the slice that
// clips a run to a range, the disk zone the merge evaluator scans last,
// backed by storage.FS. Blocks are optionally compressed with either
// klauspost/compress/zstd or golang/snappy, picked per run at write time
// and dispatched on by the reader, rather than arbitrarily dropping one
// (see DESIGN.md).
package diskrun

import (
	"encoding/binary"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/devlibx/vystore/internal/base"
	"github.com/devlibx/vystore/storage"
)

// Codec identifies the block compressor used by a run.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecSnappy
	CodecZstd
)

func compress(codec Codec, data []byte) ([]byte, error) {
	switch codec {
	case CodecSnappy:
		return snappy.Encode(nil, data), nil
	case CodecZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		out := enc.EncodeAll(data, nil)
		return out, enc.Close()
	default:
		return data, nil
	}
}

func decompress(codec Codec, data []byte) ([]byte, error) {
	switch codec {
	case CodecSnappy:
		return snappy.Decode(nil, data)
	case CodecZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	default:
		return data, nil
	}
}

// Run is an immutable, sorted sequence of statements written through a
// storage.File, grouped into one block for simplicity (real sstables use
// many blocks and an index; this subsystem's concern is the merge
// iterator, not block layout, so one block is sufficient — see
// SPEC_FULL.md's Non-goals).
type Run struct {
	DumpVersion base.Version
	codec       Codec
	entries     []base.Statement // sorted ascending by key, then by Version descending
	cmp         *base.Comparer
}

// Write sorts a copy of entries (ascending by key, then newest version
// first), serializes it to name through fs, compressed with codec, and
// returns the Run descriptor the slice layer wraps.
func Write(fs storage.FS, name string, codec Codec, cmp *base.Comparer, dumpVersion base.Version, entries []base.Statement) (*Run, error) {
	sorted := append([]base.Statement(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := cmp.Compare(sorted[i].Key, sorted[j].Key); c != 0 {
			return c < 0
		}
		return sorted[i].Version > sorted[j].Version
	})

	raw := encode(sorted)
	payload, err := compress(codec, raw)
	if err != nil {
		return nil, err
	}
	checksum := xxhash.Sum64(payload)
	framed := appendChecksum(payload, checksum)

	w, err := fs.Create(name)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(framed); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return &Run{DumpVersion: dumpVersion, codec: codec, entries: sorted, cmp: cmp}, nil
}

// Open reads name back from fs and reconstructs a Run descriptor, verifying
// the trailing xxhash checksum (grounded on pebble's own use of xxhash for
// block checksums) before decompressing. In a full implementation this
// would read a block index first; this subsystem's runs are single-block,
// so Open reads the whole file.
func Open(fs storage.FS, name string, codec Codec, cmp *base.Comparer, dumpVersion base.Version) (*Run, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	size, err := f.Size()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	payload, wantSum, err := splitChecksum(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "diskrun: reading %s", redact.Safe(name))
	}
	if gotSum := xxhash.Sum64(payload); gotSum != wantSum {
		return nil, errors.Newf("diskrun: checksum mismatch in %s", redact.Safe(name))
	}
	raw, err := decompress(codec, payload)
	if err != nil {
		return nil, err
	}
	entries := decode(raw)
	return &Run{DumpVersion: dumpVersion, codec: codec, entries: entries, cmp: cmp}, nil
}

func appendChecksum(payload []byte, sum uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], sum)
	return append(append([]byte(nil), payload...), tmp[:]...)
}

func splitChecksum(framed []byte) (payload []byte, sum uint64, err error) {
	if len(framed) < 8 {
		return nil, 0, errors.New("diskrun: truncated file")
	}
	split := len(framed) - 8
	return framed[:split], binary.LittleEndian.Uint64(framed[split:]), nil
}

func encode(entries []base.Statement) []byte {
	var buf []byte
	var tmp [binary.MaxVarintLen64]byte
	putUvarint := func(v uint64) {
		n := binary.PutUvarint(tmp[:], v)
		buf = append(buf, tmp[:n]...)
	}
	putUvarint(uint64(len(entries)))
	for _, s := range entries {
		putUvarint(uint64(len(s.Key)))
		buf = append(buf, s.Key...)
		putUvarint(uint64(len(s.Value)))
		buf = append(buf, s.Value...)
		putUvarint(uint64(s.Kind))
		putUvarint(uint64(s.Version))
	}
	return buf
}

func decode(raw []byte) []base.Statement {
	r := raw
	readUvarint := func() uint64 {
		v, n := binary.Uvarint(r)
		r = r[n:]
		return v
	}
	count := readUvarint()
	out := make([]base.Statement, 0, count)
	for i := uint64(0); i < count; i++ {
		klen := readUvarint()
		key := append([]byte(nil), r[:klen]...)
		r = r[klen:]
		vlen := readUvarint()
		var val []byte
		if vlen > 0 {
			val = append([]byte(nil), r[:vlen]...)
		}
		r = r[vlen:]
		kind := base.Kind(readUvarint())
		version := base.Version(readUvarint())
		out = append(out, base.Statement{Key: key, Value: val, Kind: kind, Version: version})
	}
	return out
}

// Slice clips a Run to a range and is reference-counted so pinning
// prevents reclaim while a disk-zone scan is in flight. A
// freshly-described slice is not resident: Ensure performs the (possibly
// network) read through storage.FS the first time a disk-zone scan touches
// it, which is the genuine suspension point in a merging scan.
type Slice struct {
	mu  sync.Mutex
	Run *Run // resident once Ensure has succeeded

	fs          storage.FS
	name        string
	codec       Codec
	cmp         *base.Comparer
	dumpVersion base.Version

	refs       int32
	LowerBound base.UserKey
	UpperBound base.UserKey // nil means unbounded
}

// NewSlice describes a disk slice backed by fs, not yet loaded into memory.
func NewSlice(fs storage.FS, name string, codec Codec, cmp *base.Comparer, dumpVersion base.Version, lower, upper base.UserKey) *Slice {
	return &Slice{fs: fs, name: name, codec: codec, cmp: cmp, dumpVersion: dumpVersion, LowerBound: lower, UpperBound: upper}
}

// NewResidentSlice wraps an already-loaded run (e.g. one just produced by
// Write within the same process) as a slice, skipping the Ensure round
// trip.
func NewResidentSlice(run *Run, lower, upper base.UserKey) *Slice {
	return &Slice{Run: run, dumpVersion: run.DumpVersion, LowerBound: lower, UpperBound: upper}
}

// Ensure loads the slice's run from storage if it is not already resident.
// Safe to call concurrently across slices from the disk-zone pin/fetch
// fan-out (internal/iter's restore, via golang.org/x/sync/errgroup).
func (s *Slice) Ensure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Run != nil {
		return nil
	}
	run, err := Open(s.fs, s.name, s.codec, s.cmp, s.dumpVersion)
	if err != nil {
		return err
	}
	s.Run = run
	return nil
}

// DumpVersion implements rangetree.SliceRef. It is available even before
// Ensure has loaded the run, since the dump version is fixed at write time.
func (s *Slice) DumpVersion() base.Version { return s.dumpVersion }

// Pin increments the slice's reference count, preventing compaction from
// reclaiming it mid-scan.
func (s *Slice) Pin() { atomic.AddInt32(&s.refs, 1) }

// Unpin decrements the reference count.
func (s *Slice) Unpin() { atomic.AddInt32(&s.refs, -1) }

// RefCount returns the current pin count, for tests.
func (s *Slice) RefCount() int32 { return atomic.LoadInt32(&s.refs) }

// entries returns the slice's view of the run's entries, clipped to bounds.
func (s *Slice) entries() []base.Statement {
	cmp := s.Run.cmp
	out := s.Run.entries
	lo := sort.Search(len(out), func(i int) bool {
		if s.LowerBound == nil {
			return true
		}
		return cmp.Compare(out[i].Key, s.LowerBound) >= 0
	})
	hi := len(out)
	if s.UpperBound != nil {
		hi = sort.Search(len(out), func(i int) bool {
			return cmp.Compare(out[i].Key, s.UpperBound) >= 0
		})
	}
	if lo > hi {
		lo = hi
	}
	return out[lo:hi]
}
