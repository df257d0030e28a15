// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Command vystore-iterstat drives a synthetic workload through a vystore.DB
// and reports the merging read iterator's advance-latency percentiles, both
// as numbers and as an ASCII sparkline of the running p99 over successive
// batches. It exists to make the resilience controller's restore cost
// visible without standing up a benchmark harness.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/devlibx/vystore"
	"github.com/devlibx/vystore/internal/base"
	"github.com/devlibx/vystore/internal/diskrun"
	"github.com/devlibx/vystore/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var keys int
	var batches int
	var flushEvery int

	cmd := &cobra.Command{
		Use:   "vystore-iterstat",
		Short: "Report merging read iterator advance-latency percentiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), keys, batches, flushEvery)
		},
	}
	cmd.Flags().IntVar(&keys, "keys", 2000, "number of distinct keys to write")
	cmd.Flags().IntVar(&batches, "batches", 20, "number of full scans to run")
	cmd.Flags().IntVar(&flushEvery, "flush-every", 5, "flush+compact the active level every N batches")
	return cmd
}

func run(out io.Writer, keys, batches, flushEvery int) error {
	cmp := &base.Comparer{
		Compare:    func(a, b base.UserKey) int { return bytesCompare(a, b) },
		IsExactKey: func(base.UserKey) bool { return true },
	}
	db := vystore.Open(vystore.Options{
		Comparer:      cmp,
		FS:            storage.NewMemFS(),
		Codec:         diskrun.CodecZstd,
		CacheCapacity: 4096,
		Namespace:     "vystore_iterstat",
	})

	for i := 0; i < keys; i++ {
		db.Put(keyFor(i), base.KindInsert, []byte("v"))
	}

	p99s := make([]float64, 0, batches)
	for b := 0; b < batches; b++ {
		tx := db.BeginTx()
		it := db.NewIterator(tx, base.PredGE, keyFor(0), nil, base.ReadView{})
		for {
			_, ok, err := it.Next()
			if err != nil {
				_ = it.Close()
				return err
			}
			if !ok {
				break
			}
		}
		if err := it.Close(); err != nil {
			return err
		}

		if flushEvery > 0 && (b+1)%flushEvery == 0 {
			db.Flush()
			owner := db.Tree().FindByKey(1, keyFor(0))
			if err := db.Compact(owner, nil, nil); err != nil {
				return err
			}
		}

		p99 := float64(db.Metrics().AdvanceLatencyPercentile(99)) / 1000 // microseconds
		p99s = append(p99s, p99)
	}

	fmt.Fprintln(out, asciigraph.Plot(p99s,
		asciigraph.Height(12),
		asciigraph.Caption("advance() p99 latency (us) per batch")))
	fmt.Fprintf(out, "final percentiles (us): p50=%d p90=%d p99=%d\n",
		db.Metrics().AdvanceLatencyPercentile(50)/1000,
		db.Metrics().AdvanceLatencyPercentile(90)/1000,
		db.Metrics().AdvanceLatencyPercentile(99)/1000)
	return nil
}

func keyFor(i int) base.UserKey {
	return base.UserKey(fmt.Sprintf("key-%08d", i))
}

func bytesCompare(a, b base.UserKey) int {
	switch {
	case string(a) < string(b):
		return -1
	case string(a) > string(b):
		return 1
	default:
		return 0
	}
}
