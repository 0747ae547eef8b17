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
	"fmt"
	"sync"

	"github.com/lumen-lang/go-lumen/codec"
	"github.com/lumen-lang/go-lumen/store"
)

// register holds one live value binding.  A lifted register was
// allocated eagerly to satisfy a consumer that ran before its producer;
// it carries no use count and is reconciled by a later AllocEntry.
type register struct {
	ref       store.ObjectRef
	remaining uint16
	lifted    bool
}

// Registers is the per-execution register file: a map from local object
// ids to live bindings with use-count reclamation.  All methods are safe
// to call from the interpreter goroutine and its sub-tasks concurrently.
type Registers struct {
	mu    sync.Mutex
	regs  map[codec.ObjectID]*register
	store *store.Store
}

// NewRegisters creates an empty register file over st.
func NewRegisters(st *store.Store) *Registers {
	return &Registers{
		regs:  make(map[codec.ObjectID]*register),
		store: st,
	}
}

// AllocEntry returns the object entry to populate for id.  If a lifted
// register exists the earlier allocation is removed and returned, so the
// producer fills the same entry its out-of-order consumers already hold.
// Otherwise a fresh entry is allocated.  A live non-lifted register for
// id is a protocol violation.
func (r *Registers) AllocEntry(id codec.ObjectID) (store.ObjectRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.regs[id]; ok {
		if !reg.lifted {
			return store.ObjectRef{}, fmt.Errorf("%w: alloc over live register %d", ErrImproperReuse, id)
		}
		delete(r.regs, id)
		return reg.ref, nil
	}
	return r.store.Alloc()
}

// SetObject binds dest's id to ref with a use count equal to the number
// of consumers.  A live non-lifted register for the id is a protocol
// violation; a lifted register left behind by a producer that skipped
// AllocEntry is replaced.
func (r *Registers) SetObject(dest codec.Dest, ref store.ObjectRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.regs[dest.ID]; ok && !reg.lifted {
		return fmt.Errorf("%w: set of live register %d", ErrImproperReuse, dest.ID)
	}
	r.regs[dest.ID] = &register{
		ref:       ref,
		remaining: uint16(len(dest.UsedBy)),
	}
	return nil
}

// Consume hands out id's value to one consumer.
//
// A live register's use count is decremented; the final consumer takes
// the stored reference and the register is reclaimed, earlier consumers
// get a fresh reference to the same entry.  A lifted register is cloned
// without touching any count.  If no register exists the consumer is
// running ahead of the producer: a bare entry is allocated, recorded as
// lifted, and a second reference to it is returned.
func (r *Registers) Consume(id codec.ObjectID) (store.ObjectRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regs[id]
	if !ok {
		entry, err := r.store.Alloc()
		if err != nil {
			return store.ObjectRef{}, err
		}
		r.regs[id] = &register{ref: entry, lifted: true}
		return r.store.Get(entry.Ptr()), nil
	}
	if reg.lifted {
		return r.store.Get(reg.ref.Ptr()), nil
	}
	reg.remaining--
	if reg.remaining == 0 {
		delete(r.regs, id)
		return reg.ref, nil
	}
	return r.store.Get(reg.ref.Ptr()), nil
}

// Live returns the number of live registers.  Used by tests to check
// reclamation.
func (r *Registers) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.regs)
}
