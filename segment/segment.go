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

// Package segment provides word-aligned raw memory arenas with stable
// handles and bounded sliced views.  An arena hands out opaque handles for
// fixed-size regions; the handle stays valid across any number of later
// allocations, which is what lets higher layers treat it as a stable
// object identity.
package segment

import "errors"

// Word is the 64-bit allocation unit.  All sizes and offsets in this
// package are counted in words, not bytes.
type Word = uint64

// WordBytes is the size of one Word in bytes.
const WordBytes = 8

// Handle identifies an allocated region.  Handles are non-zero; the zero
// value is reserved to mean "unset".
type Handle uint64

// Nil reports whether the handle is the reserved zero value.
func (h Handle) Nil() bool { return h == 0 }

// ErrOutOfMemory is returned when an allocation would exceed the arena's
// word limit.
var ErrOutOfMemory = errors.New("segment: out of memory")

// ErrInvalidHandle is returned when an operation names a handle that was
// never allocated, was deallocated, or whose requested view falls outside
// the region bounds.
var ErrInvalidHandle = errors.New("segment: invalid handle")

// ErrZeroSize is returned when an allocation of zero words is requested.
var ErrZeroSize = errors.New("segment: zero-size allocation")

// Allocator is a two-level store's backing memory.  Implementations must
// keep handles stable across unrelated allocations.
//
// Views returned by Slice must only be read; views returned by SliceMut
// must not overlap a live read view.  Callers that follow the write-once
// discipline (fully write a region, then only ever Slice it) may hold any
// number of concurrent read views.
type Allocator interface {
	// Alloc reserves a fresh region of wordSize words and returns its handle.
	Alloc(wordSize uint64) (Handle, error)

	// Dealloc releases the region.  Calling Dealloc while a view obtained
	// from Slice or SliceMut is still in use is undefined; the allocator
	// need not detect it.
	Dealloc(h Handle, wordSize uint64) error

	// Slice returns a read view of wordLen words starting wordOff words
	// into the region.
	Slice(h Handle, wordOff, wordLen uint64) ([]Word, error)

	// SliceMut returns a writable view of wordLen words starting wordOff
	// words into the region.
	SliceMut(h Handle, wordOff, wordLen uint64) ([]Word, error)
}
