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

// Package codec defines the canonical word-level encoding of lumen values
// and code objects.  The encoding is deterministic: equal values always
// produce identical word sequences, which is what makes fingerprinting and
// content addressing of encoded records possible.
package codec

import (
	"errors"
	"fmt"
)

// ErrEncoding is returned when a word sequence cannot be decoded as a
// value record (truncated payload, inconsistent lengths).
var ErrEncoding = errors.New("codec: malformed encoding")

// ErrBadTag is returned when a record carries an unknown value tag.
var ErrBadTag = errors.New("codec: unknown value tag")

// ObjPointer is the stable identity of an object in a store's object
// arena.  The zero value is the null pointer.  It is serialized as the
// underlying handle word.
type ObjPointer uint64

// Nil reports whether the pointer is null.
func (p ObjPointer) Nil() bool { return p == 0 }

func (p ObjPointer) String() string { return fmt.Sprintf("&%d", uint64(p)) }

// Tag discriminates the variants of the value union.
type Tag uint8

const (
	// TagUnit is the empty value.
	TagUnit Tag = iota
	// TagInt is a signed 64-bit integer primitive.
	TagInt
	// TagFloat is a 64-bit IEEE-754 primitive.
	TagFloat
	// TagBool is a boolean primitive.
	TagBool
	// TagBuffer is an opaque byte string.
	TagBuffer
	// TagThunk is a suspended computation pointing at a code or partial
	// object to be forced.
	TagThunk
	// TagPartial is a closure: a code pointer plus bound arguments.
	TagPartial
	// TagCode is a static code object.
	TagCode

	tagCount
)

var tagNames = [tagCount]string{
	TagUnit:    "unit",
	TagInt:     "int",
	TagFloat:   "float",
	TagBool:    "bool",
	TagBuffer:  "buffer",
	TagThunk:   "thunk",
	TagPartial: "partial",
	TagCode:    "code",
}

// String returns the lowercase variant name, suitable for error messages.
func (t Tag) String() string {
	if int(t) >= len(tagNames) {
		return "unknown"
	}
	return tagNames[t]
}

// Value is the decoded form of an encoded record.  Exactly the fields of
// the active variant (per Tag) are meaningful; the rest are zero.
type Value struct {
	Tag Tag

	Int    int64
	Float  float64
	Bool   bool
	Buffer []byte

	// Target is the forced object for TagThunk.
	Target ObjPointer

	// CodePtr and Args describe a TagPartial closure.
	CodePtr ObjPointer
	Args    []ObjPointer

	// Code holds the decoded code object for TagCode.
	Code *Code
}

// Unit returns the empty value.
func Unit() *Value { return &Value{Tag: TagUnit} }

// Int64 returns an integer primitive.
func Int64(i int64) *Value { return &Value{Tag: TagInt, Int: i} }

// Float64 returns a float primitive.
func Float64(f float64) *Value { return &Value{Tag: TagFloat, Float: f} }

// Boolean returns a boolean primitive.
func Boolean(b bool) *Value { return &Value{Tag: TagBool, Bool: b} }

// Buffer returns a byte-string value.  The slice is not copied.
func Buffer(b []byte) *Value { return &Value{Tag: TagBuffer, Buffer: b} }

// Thunk returns a suspended computation whose target is the given pointer.
func Thunk(target ObjPointer) *Value { return &Value{Tag: TagThunk, Target: target} }

// Partial returns a closure over code with the given bound arguments.
func Partial(code ObjPointer, args []ObjPointer) *Value {
	return &Value{Tag: TagPartial, CodePtr: code, Args: args}
}

// CodeValue wraps a code object as a value.
func CodeValue(c *Code) *Value { return &Value{Tag: TagCode, Code: c} }

// WHNF reports whether the value is in weak-head normal form, i.e. its
// outermost tag is not a thunk.
func (v *Value) WHNF() bool { return v.Tag != TagThunk }

// AsInt returns the integer payload, or ErrBadTag if the value is not an
// integer primitive.
func (v *Value) AsInt() (int64, error) {
	if v.Tag != TagInt {
		return 0, fmt.Errorf("%w: have %s, want int", ErrBadTag, v.Tag)
	}
	return v.Int, nil
}
