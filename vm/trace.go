// Copyright 2025 The go-lumen Authors
// This file is part of the go-lumen library.
//
// The go-lumen library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-lumen library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-lumen library. If not, see <http://www.gnu.org/licenses/>.

package vm

import (
	"sync"

	"github.com/lumen-lang/go-lumen/codec"
	"github.com/lumen-lang/go-lumen/store"
)

// TraceCache memoizes force results, keyed by thunk identity.  Distinct
// thunks that would reduce to the same value are not conflated; that
// would require content-addressed hashing, which the cache does not
// perform.  Entries live for the cache's lifetime; errors are never
// recorded, so a failed force may be retried.
type TraceCache struct {
	mu      sync.Mutex
	entries map[codec.ObjPointer]*traceEntry
}

type traceEntry struct {
	done bool
	val  store.ObjectRef
}

// NewTraceCache creates an empty cache.
func NewTraceCache() *TraceCache {
	return &TraceCache{entries: make(map[codec.ObjPointer]*traceEntry)}
}

// Lookup is the result of a cache query: either a completed entry, or a
// builder making the caller responsible for recording the result.
type Lookup struct {
	Hit   bool
	Value store.ObjectRef
	Trace *TraceBuilder
}

// Query checks the cache for the thunk's identity.  A miss installs an
// in-progress sentinel; the returned builder must be resolved with
// Returned or Abandon.  Cooperative scheduling makes concurrent misses
// for one key unexpected, but redundant computation is tolerated:
// Returned is last-writer-wins over identical results.
func (c *TraceCache) Query(ref store.ObjectRef) Lookup {
	key := ref.Ptr()
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.done {
		return Lookup{Hit: true, Value: e.val}
	}
	if _, ok := c.entries[key]; !ok {
		c.entries[key] = &traceEntry{}
	}
	return Lookup{Trace: &TraceBuilder{cache: c, key: key}}
}

// Len returns the number of entries, completed or in progress.
func (c *TraceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TraceBuilder is the writer for one in-progress key.
type TraceBuilder struct {
	cache *TraceCache
	key   codec.ObjPointer
}

// Returned records the memoized result for the key.
func (b *TraceBuilder) Returned(val store.ObjectRef) {
	b.cache.mu.Lock()
	defer b.cache.mu.Unlock()
	e, ok := b.cache.entries[b.key]
	if !ok {
		e = &traceEntry{}
		b.cache.entries[b.key] = e
	}
	e.done = true
	e.val = val
}

// Abandon clears the in-progress sentinel so a later force can retry.
// Calling it after Returned (or after another writer completed the key)
// is a no-op.
func (b *TraceBuilder) Abandon() {
	b.cache.mu.Lock()
	defer b.cache.mu.Unlock()
	if e, ok := b.cache.entries[b.key]; ok && !e.done {
		delete(b.cache.entries, b.key)
	}
}
