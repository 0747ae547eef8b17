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
	"unsafe"

	"github.com/edsrzf/mmap-go"
)

// MmapArena is an Allocator whose regions are anonymous memory mappings.
// Regions allocated this way live outside the Go heap, which keeps very
// large data arenas from inflating garbage collector scan time.
//
// The zero value is not usable; use NewMmapArena.
type MmapArena struct {
	mu      sync.Mutex
	regions map[Handle]mmap.MMap
	next    Handle
	limit   uint64
	used    uint64
}

// NewMmapArena creates an MmapArena with the given word limit.
// If limit is 0, DefaultArenaLimit is used.
func NewMmapArena(limit uint64) *MmapArena {
	if limit == 0 {
		limit = DefaultArenaLimit
	}
	return &MmapArena{
		regions: make(map[Handle]mmap.MMap),
		next:    1,
		limit:   limit,
	}
}

// Alloc maps a fresh anonymous region of wordSize words.
func (a *MmapArena) Alloc(wordSize uint64) (Handle, error) {
	if wordSize == 0 {
		return 0, ErrZeroSize
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.used+wordSize > a.limit {
		return 0, fmt.Errorf("%w: %d words requested, %d of %d in use", ErrOutOfMemory, wordSize, a.used, a.limit)
	}
	m, err := mmap.MapRegion(nil, int(wordSize*WordBytes), mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: mmap: %v", ErrOutOfMemory, err)
	}
	h := a.next
	a.next++
	a.regions[h] = m
	a.used += wordSize
	return h, nil
}

// Dealloc unmaps the region at h.
func (a *MmapArena) Dealloc(h Handle, wordSize uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.regions[h]
	if !ok {
		return fmt.Errorf("%w: dealloc of %d", ErrInvalidHandle, h)
	}
	if uint64(len(m)) != wordSize*WordBytes {
		return fmt.Errorf("%w: dealloc of %d with size %d, mapped %d bytes", ErrInvalidHandle, h, wordSize, len(m))
	}
	delete(a.regions, h)
	a.used -= wordSize
	if err := m.Unmap(); err != nil {
		return fmt.Errorf("%w: munmap: %v", ErrInvalidHandle, err)
	}
	return nil
}

// Slice returns a read view of the region.
func (a *MmapArena) Slice(h Handle, wordOff, wordLen uint64) ([]Word, error) {
	return a.view(h, wordOff, wordLen)
}

// SliceMut returns a writable view of the region.
func (a *MmapArena) SliceMut(h Handle, wordOff, wordLen uint64) ([]Word, error) {
	return a.view(h, wordOff, wordLen)
}

// Used returns the current number of live words.
func (a *MmapArena) Used() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used
}

func (a *MmapArena) view(h Handle, wordOff, wordLen uint64) ([]Word, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.regions[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	total := uint64(len(m)) / WordBytes
	if wordOff+wordLen > total {
		return nil, fmt.Errorf("%w: view [%d,%d) of %d-word region %d", ErrInvalidHandle, wordOff, wordOff+wordLen, total, h)
	}
	if wordLen == 0 {
		return nil, nil
	}
	// A mapped region is page-aligned, so reinterpreting the byte slice as
	// a word slice is safe on every supported platform.
	words := unsafe.Slice((*Word)(unsafe.Pointer(&m[0])), total)
	return words[wordOff : wordOff+wordLen : wordOff+wordLen], nil
}
