// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package rcache implements the in-memory result cache: a bounded chain of
// "next-of" links keyed by the predicate direction, plus the cache cursor
// the merge evaluator scans as its second-freshest zone, right after the
// transaction write set and ahead of the memory and disk zones.
//
// An off-the-shelf LRU (e.g. hashicorp/golang-lru) would only buy eviction
// bookkeeping; the part that actually matters here — interval completeness
// and link-chain invalidation on rollback — has no off-the-shelf analogue,
// so this cache is hand-rolled over container/list the way pebble's own
// internal caches are hand-rolled rather than borrowed. See DESIGN.md.
package rcache

import (
	"container/list"
	"sync"

	"github.com/devlibx/vystore/internal/base"
)

// Link is one cached "next-of" edge: Key maps to Next under the search
// predicate that produced it, tagged with the lsn of the newest version
// skipped while assembling Next.
type Link struct {
	Key      base.UserKey
	Next     base.Statement // zero value means "no more results"
	HasNext  bool
	SkipLSN  base.Version
	IsFirst  bool
	Complete bool // the interval [Key, Next) is known to contain no other key
}

// Cache is a bounded store of Links, evicted LRU-style.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	index    map[string]*list.Element
	cmp      *base.Comparer
}

// New creates a Cache with the given maximum number of links.
func New(cmp *base.Comparer, capacity int) *Cache {
	return &Cache{capacity: capacity, ll: list.New(), index: make(map[string]*list.Element), cmp: cmp}
}

// Add inserts or refreshes the link from prev (or "first" if isFirst) to
// entry, tagged with linkLSN — the signature mirrors 
// cache-add contract.
func (c *Cache) Add(entry base.Statement, prev base.Statement, hasPrev, isFirst bool, linkLSN base.Version) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := "first"
	if hasPrev {
		key = string(prev.Key)
	}
	if el, ok := c.index[key]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*Link).Next = entry
		el.Value.(*Link).HasNext = true
		el.Value.(*Link).SkipLSN = linkLSN
		return
	}
	l := &Link{Key: prev.Key, Next: entry, HasNext: true, SkipLSN: linkLSN, IsFirst: isFirst}
	el := c.ll.PushFront(l)
	c.index[key] = el
	if c.ll.Len() > c.capacity {
		back := c.ll.Back()
		if back != nil {
			c.ll.Remove(back)
			delete(c.index, cacheKey(back.Value.(*Link)))
		}
	}
}

// Invalidate drops any link keyed by key; used on rollback of an
// uncommitted write whose DELETE would otherwise leave a stale chain.
func (c *Cache) Invalidate(key base.UserKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := string(key)
	if el, ok := c.index[k]; ok {
		c.ll.Remove(el)
		delete(c.index, k)
	}
}

func cacheKey(l *Link) string {
	if l.IsFirst {
		return "first"
	}
	return string(l.Key)
}

// Lookup returns the link keyed by key (or the "first" link if isFirst),
// promoting it to the front.
func (c *Cache) Lookup(key base.UserKey, isFirst bool) (*Link, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := "first"
	if !isFirst {
		k = string(key)
	}
	el, ok := c.index[k]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	l := *el.Value.(*Link)
	return &l, true
}
