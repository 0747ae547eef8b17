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

import "errors"

// ErrTypeMismatch is returned when a value's tag does not fit the
// operation applied to it (forcing a non-callable, binding a primitive,
// selecting on a non-integer case).
var ErrTypeMismatch = errors.New("vm: value type mismatch")

// ErrNoSuchBranch is returned when a select case index is outside its
// branch list, or a match finds no arm and has no default.
var ErrNoSuchBranch = errors.New("vm: no such branch")

// ErrImproperReuse is returned when the register protocol is violated:
// allocating over a live non-lifted register, or setting a destination
// twice.
var ErrImproperReuse = errors.New("vm: improper register reuse")

// ErrNotImplemented is returned for reserved opcodes.
var ErrNotImplemented = errors.New("vm: not implemented")
