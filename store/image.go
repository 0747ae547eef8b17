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

package store

import (
	"fmt"

	"github.com/lumen-lang/go-lumen/codec"
)

// LoadImage inserts every value of a decoded image into the store and
// returns one object reference per image slot, in order.  Pointer fields
// inside image values are 1-based slot indexes; they are rewritten to
// the real pointers of the freshly allocated entries.
//
// Entries are allocated up front so that values may point at any slot,
// including later ones and themselves.
func (s *Store) LoadImage(values []*codec.Value) ([]ObjectRef, error) {
	refs := make([]ObjectRef, len(values))
	for i := range values {
		ref, err := s.Alloc()
		if err != nil {
			return nil, err
		}
		refs[i] = ref
	}
	remap := func(p codec.ObjPointer) (codec.ObjPointer, error) {
		if p.Nil() {
			return 0, nil
		}
		slot := uint64(p)
		if slot > uint64(len(refs)) {
			return 0, fmt.Errorf("%w: image slot %d of %d", codec.ErrEncoding, slot, len(refs))
		}
		return refs[slot-1].Ptr(), nil
	}
	for i, v := range values {
		rewritten, err := rewritePointers(v, remap)
		if err != nil {
			return nil, fmt.Errorf("image slot %d: %w", i+1, err)
		}
		d, err := s.Insert(rewritten)
		if err != nil {
			return nil, err
		}
		if err := refs[i].PushResult(d); err != nil {
			return nil, err
		}
	}
	return refs, nil
}

// rewritePointers maps every object pointer field of v through remap,
// returning a copy when anything changed.
func rewritePointers(v *codec.Value, remap func(codec.ObjPointer) (codec.ObjPointer, error)) (*codec.Value, error) {
	switch v.Tag {
	case codec.TagThunk:
		t, err := remap(v.Target)
		if err != nil {
			return nil, err
		}
		return codec.Thunk(t), nil
	case codec.TagPartial:
		cp, err := remap(v.CodePtr)
		if err != nil {
			return nil, err
		}
		args := make([]codec.ObjPointer, len(v.Args))
		for i, a := range v.Args {
			if args[i], err = remap(a); err != nil {
				return nil, err
			}
		}
		return codec.Partial(cp, args), nil
	case codec.TagCode:
		c := *v.Code
		c.Constants = make([]codec.Constant, len(v.Code.Constants))
		copy(c.Constants, v.Code.Constants)
		for i := range c.Constants {
			p, err := remap(c.Constants[i].Ptr)
			if err != nil {
				return nil, err
			}
			c.Constants[i].Ptr = p
		}
		return codec.CodeValue(&c), nil
	default:
		return v, nil
	}
}
