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

package segment

import (
	"fmt"
	"sync"
)

// DefaultArenaLimit is the maximum number of words an Arena may hold
// across all live allocations (32 MiB).
const DefaultArenaLimit uint64 = 4 * 1024 * 1024

// Arena is a heap-backed Allocator.  Each allocation is a separate Go
// slice tracked in a map keyed by a monotone handle, so regions never
// move and handles stay stable for the arena's lifetime.
//
// The zero value is not usable; use NewArena.
type Arena struct {
	mu      sync.Mutex
	regions map[Handle][]Word
	next    Handle // next handle to issue; starts at 1, zero is reserved
	limit   uint64 // max total live words
	used    uint64 // current total live words
}

// NewArena creates an Arena with the given word limit.
// If limit is 0, DefaultArenaLimit is used.
func NewArena(limit uint64) *Arena {
	if limit == 0 {
		limit = DefaultArenaLimit
	}
	return &Arena{
		regions: make(map[Handle][]Word),
		next:    1,
		limit:   limit,
	}
}

// Alloc reserves wordSize words and returns a fresh handle.
// The region is zero-filled.
func (a *Arena) Alloc(wordSize uint64) (Handle, error) {
	if wordSize == 0 {
		return 0, ErrZeroSize
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.used+wordSize > a.limit {
		return 0, fmt.Errorf("%w: %d words requested, %d of %d in use", ErrOutOfMemory, wordSize, a.used, a.limit)
	}
	h := a.next
	a.next++
	a.regions[h] = make([]Word, wordSize)
	a.used += wordSize
	return h, nil
}

// Dealloc releases the region at h.  wordSize must match the size passed
// to Alloc.
func (a *Arena) Dealloc(h Handle, wordSize uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	region, ok := a.regions[h]
	if !ok {
		return fmt.Errorf("%w: dealloc of %d", ErrInvalidHandle, h)
	}
	if uint64(len(region)) != wordSize {
		return fmt.Errorf("%w: dealloc of %d with size %d, allocated %d", ErrInvalidHandle, h, wordSize, len(region))
	}
	delete(a.regions, h)
	a.used -= wordSize
	return nil
}

// Slice returns a read view of the region.
func (a *Arena) Slice(h Handle, wordOff, wordLen uint64) ([]Word, error) {
	return a.view(h, wordOff, wordLen)
}

// SliceMut returns a writable view of the region.
func (a *Arena) SliceMut(h Handle, wordOff, wordLen uint64) ([]Word, error) {
	return a.view(h, wordOff, wordLen)
}

// Used returns the current number of live words.
func (a *Arena) Used() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used
}

// Limit returns the configured word ceiling.
func (a *Arena) Limit() uint64 { return a.limit }

func (a *Arena) view(h Handle, wordOff, wordLen uint64) ([]Word, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	region, ok := a.regions[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	if wordOff+wordLen > uint64(len(region)) {
		return nil, fmt.Errorf("%w: view [%d,%d) of %d-word region %d", ErrInvalidHandle, wordOff, wordOff+wordLen, len(region), h)
	}
	return region[wordOff : wordOff+wordLen : wordOff+wordLen], nil
}
