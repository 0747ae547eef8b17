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

package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, v *Value) *Value {
	t.Helper()
	w, err := EncodeValue(v)
	require.NoError(t, err)
	got, err := DecodeValue(w)
	require.NoError(t, err)
	return got
}

func TestPrimitiveRoundTrip(t *testing.T) {
	assert.Equal(t, int64(-17), roundTrip(t, Int64(-17)).Int)
	assert.Equal(t, 2.5, roundTrip(t, Float64(2.5)).Float)
	assert.True(t, roundTrip(t, Boolean(true)).Bool)
	assert.Equal(t, TagUnit, roundTrip(t, Unit()).Tag)
	// A buffer whose length is not word-aligned keeps its exact bytes.
	assert.Equal(t, []byte("hello world"), roundTrip(t, Buffer([]byte("hello world"))).Buffer)
}

func TestThunkPartialRoundTrip(t *testing.T) {
	th := roundTrip(t, Thunk(ObjPointer(77)))
	assert.Equal(t, ObjPointer(77), th.Target)

	p := roundTrip(t, Partial(ObjPointer(5), []ObjPointer{8, 9}))
	assert.Equal(t, ObjPointer(5), p.CodePtr)
	assert.Equal(t, []ObjPointer{8, 9}, p.Args)
}

func TestCodeRoundTrip(t *testing.T) {
	b := NewCodeBuilder("roundtrip")
	p0 := b.Param()
	k := b.Constant(ObjPointer(3))
	f := b.Force(p0)
	m := b.Match(f, &MatchSpec{
		Patterns: []Pattern{
			{Kind: PatInt, Int: 4},
			{Kind: PatTag, Tag: TagBool},
			{Kind: PatBool, Bool: true},
		},
		Default: 1,
	})
	sel := b.Select(m, f, k)
	bi := b.Builtin("add", sel, k)
	inv := b.Invoke(b.Bind(p0, bi))
	b.Ret(inv)
	code, err := b.Build()
	require.NoError(t, err)

	got := roundTrip(t, CodeValue(code))
	require.Equal(t, TagCode, got.Tag)
	assert.Equal(t, code, got.Code)
}

func TestCanonicalEncoding(t *testing.T) {
	a, err := EncodeValue(Partial(ObjPointer(1), []ObjPointer{2, 3}))
	require.NoError(t, err)
	b, err := EncodeValue(Partial(ObjPointer(1), []ObjPointer{2, 3}))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, FingerprintWords(a), FingerprintWords(b))

	c, err := EncodeValue(Partial(ObjPointer(1), []ObjPointer{3, 2}))
	require.NoError(t, err)
	assert.NotEqual(t, FingerprintWords(a), FingerprintWords(c))
}

func TestDecodeBadInput(t *testing.T) {
	_, err := DecodeValue([]Word{Word(tagCount) + 7})
	assert.ErrorIs(t, err, ErrBadTag)

	_, err = DecodeValue([]Word{Word(TagInt)})
	assert.ErrorIs(t, err, ErrEncoding)

	// Trailing garbage after a complete record.
	_, err = DecodeValue([]Word{Word(TagInt), 5, 99})
	assert.ErrorIs(t, err, ErrEncoding)

	// A buffer whose declared byte length overruns the record.
	_, err = DecodeValue([]Word{Word(TagBuffer), 1 << 40})
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestBuilderDependencies(t *testing.T) {
	b := NewCodeBuilder("deps")
	p := b.Param()
	k := b.Constant(ObjPointer(1))
	sum := b.Builtin("add", p, k) // op 0
	b.Ret(sum)                    // op 1
	code, err := b.Build()
	require.NoError(t, err)

	require.Len(t, code.Ops, 2)
	assert.Equal(t, uint16(2), code.Ops[0].NumDeps)
	assert.Equal(t, uint16(1), code.Ops[1].NumDeps)
	assert.Equal(t, []OpAddr{0}, code.Params[0].UsedBy)
	assert.Equal(t, []OpAddr{0}, code.Constants[0].Dest.UsedBy)
	assert.Equal(t, []OpAddr{1}, code.Ops[0].Dest.UsedBy)
}

// An operand consumed twice by one op counts twice.
func TestBuilderDuplicateOperand(t *testing.T) {
	b := NewCodeBuilder("dup")
	k := b.Constant(ObjPointer(1))
	dbl := b.Builtin("add", k, k)
	b.Ret(dbl)
	code, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, uint16(2), code.Ops[0].NumDeps)
	assert.Equal(t, []OpAddr{0, 0}, code.Constants[0].Dest.UsedBy)
}

// Forward references are legal: an op may consume an id produced later.
func TestBuilderForwardReference(t *testing.T) {
	b := NewCodeBuilder("recursive")
	k := b.Constant(ObjPointer(1))
	fwd := ObjectID(200) // produced by nothing
	b.Builtin("add", k, fwd)
	b.Ret(k)
	_, err := b.Build()
	assert.Error(t, err, "unbound ids must be rejected")

	b2 := NewCodeBuilder("recursive")
	k2 := b2.Constant(ObjPointer(1))          // id 0
	sum := b2.Builtin("add", ObjectID(2), k2) // op 0 (id 1) consumes id 2 before it exists
	b2.Invoke(k2)                             // op 1 defines id 2
	b2.Ret(sum)
	code, err := b2.Build()
	require.NoError(t, err)
	assert.Equal(t, []OpAddr{0}, code.Ops[1].Dest.UsedBy)
}

func TestImageRoundTrip(t *testing.T) {
	b := NewCodeBuilder("img")
	b.Ret(b.Constant(ObjPointer(1)))
	code, err := b.Build()
	require.NoError(t, err)

	values := []*Value{Int64(8), CodeValue(code), Thunk(ObjPointer(2))}
	w, err := EncodeImage(values)
	require.NoError(t, err)

	// Through the byte form, as written to disk.
	w2, err := BytesToWords(WordsToBytes(w))
	require.NoError(t, err)
	got, err := DecodeImage(w2)
	require.NoError(t, err)
	assert.Equal(t, values, got)
}

func TestImageBadMagic(t *testing.T) {
	_, err := DecodeImage([]Word{1, 2, 3})
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestBytesToWordsUnaligned(t *testing.T) {
	_, err := BytesToWords(make([]byte, 11))
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestOpcodeString(t *testing.T) {
	cases := []struct {
		op   Opcode
		want string
	}{
		{OpRet, "RET"},
		{OpForceRet, "FORCE_RET"},
		{OpForce, "FORCE"},
		{OpBind, "BIND"},
		{OpInvoke, "INVOKE"},
		{OpBuiltin, "BUILTIN"},
		{OpMatch, "MATCH"},
		{OpSelect, "SELECT"},
		{OpRecForce, "REC_FORCE"},
		{Opcode(200), "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := tc.op.String(); got != tc.want {
			t.Errorf("Opcode(%d).String() = %q; want %q", tc.op, got, tc.want)
		}
	}
}
