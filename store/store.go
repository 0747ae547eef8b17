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

// Package store implements the content-addressed object store: a
// two-level indirection in which fixed 2-word object entries point into a
// data arena of variable-length, write-once value records.
//
// Object entries have stable identity and mutable contents (the push/pop
// result discipline); data records are immutable once published.  That
// asymmetry is what lets a forcing path overlay a WHNF result atop a
// thunk entry while concurrent readers keep aliasing the old record
// safely.
package store

import (
	"errors"
	"fmt"

	"github.com/lumen-lang/go-lumen/codec"
	"github.com/lumen-lang/go-lumen/segment"
)

// ErrUninitialized is returned when reading an object entry whose data
// slot has never been set.
var ErrUninitialized = errors.New("store: uninitialized object entry")

// entryWords is the fixed size of an object entry: [cur, saved].
const entryWords = 2

// Store is the two-level object store.  The object arena holds fixed
// 2-word entries; the data arena holds [len, payload...] records.
type Store struct {
	objects segment.Allocator
	data    segment.Allocator
}

// New creates a store over the given arenas.
func New(objects, data segment.Allocator) *Store {
	return &Store{objects: objects, data: data}
}

// NewArena creates a store backed by two heap arenas with the given word
// limits (0 means the segment package default).
func NewArena(objectLimit, dataLimit uint64) *Store {
	return New(segment.NewArena(objectLimit), segment.NewArena(dataLimit))
}

// Alloc reserves a fresh object entry initialized to [0,0] and returns a
// reference to it.
func (s *Store) Alloc() (ObjectRef, error) {
	h, err := s.objects.Alloc(entryWords)
	if err != nil {
		return ObjectRef{}, err
	}
	// Arena allocations are zero-filled, so the entry is born unset.
	return ObjectRef{store: s, handle: h}, nil
}

// Get rehydrates a reference from a pointer without allocating.
func (s *Store) Get(ptr codec.ObjPointer) ObjectRef {
	return ObjectRef{store: s, handle: segment.Handle(ptr)}
}

// Insert encodes v canonically into the data arena as [len, payload...]
// and returns a read-only reference to the published record.
func (s *Store) Insert(v *codec.Value) (DataRef, error) {
	payload, err := codec.EncodeValue(v)
	if err != nil {
		return DataRef{}, err
	}
	total := uint64(len(payload)) + 1
	h, err := s.data.Alloc(total)
	if err != nil {
		return DataRef{}, err
	}
	w, err := s.data.SliceMut(h, 0, total)
	if err != nil {
		return DataRef{}, err
	}
	w[0] = total
	copy(w[1:], payload)
	return s.getData(h)
}

// NewObject allocates an object entry, publishes v, and sets the entry's
// data slot to the new record.
func (s *Store) NewObject(v *codec.Value) (ObjectRef, error) {
	ref, err := s.Alloc()
	if err != nil {
		return ObjectRef{}, err
	}
	d, err := s.Insert(v)
	if err != nil {
		return ObjectRef{}, err
	}
	if err := ref.PushResult(d); err != nil {
		return ObjectRef{}, err
	}
	return ref, nil
}

// getData rehydrates a record reference from a data-arena handle.  Once
// a record has been published its length header never changes, so the
// read view taken here stays valid for the store's lifetime.
func (s *Store) getData(h segment.Handle) (DataRef, error) {
	hdr, err := s.data.Slice(h, 0, 1)
	if err != nil {
		return DataRef{}, err
	}
	total := hdr[0]
	if total < 1 {
		return DataRef{}, fmt.Errorf("%w: record %d has length %d", segment.ErrInvalidHandle, h, total)
	}
	payload, err := s.data.Slice(h, 1, total-1)
	if err != nil {
		return DataRef{}, err
	}
	return DataRef{handle: h, payload: payload}, nil
}

// ObjectRef is a reference to an object entry.  It is a cheap value: any
// number of references to the same entry may be held at once, and all of
// them observe push/pop updates.
type ObjectRef struct {
	store  *Store
	handle segment.Handle
}

// Ptr returns the entry's stable identity.
func (r ObjectRef) Ptr() codec.ObjPointer { return codec.ObjPointer(r.handle) }

// Valid reports whether the reference names an entry at all.
func (r ObjectRef) Valid() bool { return r.store != nil && !r.handle.Nil() }

// Value returns the record currently visible in the entry's data slot.
func (r ObjectRef) Value() (DataRef, error) {
	e, err := r.store.objects.Slice(r.handle, 0, entryWords)
	if err != nil {
		return DataRef{}, err
	}
	cur := e[0]
	if cur == 0 {
		return DataRef{}, fmt.Errorf("%w: %s", ErrUninitialized, r.Ptr())
	}
	return r.store.getData(segment.Handle(cur))
}

// PushResult overlays d on the entry: the previous record is saved and d
// becomes current.  The saved slot holds a single level; pushing twice
// without popping discards the older saved record.
func (r ObjectRef) PushResult(d DataRef) error {
	e, err := r.store.objects.SliceMut(r.handle, 0, entryWords)
	if err != nil {
		return err
	}
	e[1] = e[0]
	e[0] = segment.Word(d.handle)
	return nil
}

// PopResult restores the saved record as current and clears the saved
// slot.
func (r ObjectRef) PopResult() error {
	e, err := r.store.objects.SliceMut(r.handle, 0, entryWords)
	if err != nil {
		return err
	}
	e[0] = e[1]
	e[1] = 0
	return nil
}

// DataRef is a read-only reference to a published data record.
type DataRef struct {
	handle  segment.Handle
	payload []segment.Word
}

// Handle returns the record's data-arena handle.
func (d DataRef) Handle() segment.Handle { return d.handle }

// Words returns the record payload, excluding the length header.  The
// view aliases the arena; callers must not write through it.
func (d DataRef) Words() []segment.Word { return d.payload }

// Decode parses the record payload as a value.
func (d DataRef) Decode() (*codec.Value, error) {
	return codec.DecodeValue(d.payload)
}

// Fingerprint returns the content address of the record.
func (d DataRef) Fingerprint() codec.Fingerprint {
	return codec.FingerprintWords(d.payload)
}
