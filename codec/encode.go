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
	"fmt"
	"math"
)

// EncodeValue produces the canonical word sequence for v.  The sequence
// excludes the record length header; the store prepends it when the
// record is published to a data arena.
func EncodeValue(v *Value) ([]Word, error) {
	var w []Word
	switch v.Tag {
	case TagUnit:
		w = append(w, Word(TagUnit))
	case TagInt:
		w = append(w, Word(TagInt), Word(v.Int))
	case TagFloat:
		w = append(w, Word(TagFloat), math.Float64bits(v.Float))
	case TagBool:
		w = append(w, Word(TagBool), boolWord(v.Bool))
	case TagBuffer:
		w = append(w, Word(TagBuffer))
		w = appendBytes(w, v.Buffer)
	case TagThunk:
		w = append(w, Word(TagThunk), Word(v.Target))
	case TagPartial:
		w = append(w, Word(TagPartial), Word(v.CodePtr), Word(len(v.Args)))
		for _, a := range v.Args {
			w = append(w, Word(a))
		}
	case TagCode:
		if v.Code == nil {
			return nil, fmt.Errorf("%w: code value without code object", ErrEncoding)
		}
		w = append(w, Word(TagCode))
		var err error
		if w, err = appendCode(w, v.Code); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrBadTag, v.Tag)
	}
	return w, nil
}

// Word is the 64-bit encoding unit, aliased here so codec callers do not
// need to import the segment package for word-level manipulation.
type Word = uint64

func boolWord(b bool) Word {
	if b {
		return 1
	}
	return 0
}

// appendBytes encodes a byte string as [byteLen, packed words...] with
// the bytes packed little-endian, zero-padded in the final word.
func appendBytes(w []Word, b []byte) []Word {
	w = append(w, Word(len(b)))
	for i := 0; i < len(b); i += 8 {
		var word Word
		for j := 0; j < 8 && i+j < len(b); j++ {
			word |= Word(b[i+j]) << (8 * j)
		}
		w = append(w, word)
	}
	return w
}

func appendString(w []Word, s string) []Word {
	return appendBytes(w, []byte(s))
}

func appendDest(w []Word, d Dest) []Word {
	w = append(w, Word(d.ID), Word(len(d.UsedBy)))
	for _, u := range d.UsedBy {
		w = append(w, Word(u))
	}
	return w
}

func appendCode(w []Word, c *Code) ([]Word, error) {
	w = appendString(w, c.Name)
	w = append(w, Word(len(c.Params)))
	for _, p := range c.Params {
		w = appendDest(w, p)
	}
	w = append(w, Word(len(c.Constants)))
	for _, k := range c.Constants {
		w = appendDest(w, k.Dest)
		w = append(w, Word(k.Ptr))
	}
	w = append(w, Word(len(c.Ops)))
	for i := range c.Ops {
		var err error
		if w, err = appendOp(w, &c.Ops[i]); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// appendOp encodes one op as [wordLen, opcode, numDeps, fields...].  The
// leading length makes individual ops skippable without decoding their
// variant fields.
func appendOp(w []Word, op *Op) ([]Word, error) {
	start := len(w)
	w = append(w, 0, Word(op.Opcode), Word(op.NumDeps))
	switch op.Opcode {
	case OpRet, OpForceRet:
		w = append(w, Word(op.Src))
	case OpForce, OpInvoke:
		w = append(w, Word(op.Src))
		w = appendDest(w, op.Dest)
	case OpBind, OpSelect:
		w = append(w, Word(op.Src), Word(len(op.Args)))
		for _, a := range op.Args {
			w = append(w, Word(a))
		}
		w = appendDest(w, op.Dest)
	case OpBuiltin:
		w = appendString(w, op.Name)
		w = append(w, Word(len(op.Args)))
		for _, a := range op.Args {
			w = append(w, Word(a))
		}
		w = appendDest(w, op.Dest)
	case OpMatch:
		if op.Match == nil {
			return nil, fmt.Errorf("%w: match op without specification", ErrEncoding)
		}
		w = append(w, Word(op.Src), Word(len(op.Match.Patterns)))
		for _, p := range op.Match.Patterns {
			w = append(w, Word(p.Kind), patternOperand(p))
		}
		w = append(w, Word(uint64(int64(op.Match.Default))))
		w = appendDest(w, op.Dest)
	case OpRecForce:
		// no operands
	default:
		return nil, fmt.Errorf("%w: opcode %d", ErrEncoding, op.Opcode)
	}
	w[start] = Word(len(w) - start)
	return w, nil
}

func patternOperand(p Pattern) Word {
	switch p.Kind {
	case PatTag:
		return Word(p.Tag)
	case PatInt:
		return Word(p.Int)
	case PatBool:
		return boolWord(p.Bool)
	}
	return 0
}

// WordsToBytes serializes a word sequence little-endian, the byte form
// used for fingerprinting and file output.
func WordsToBytes(w []Word) []byte {
	out := make([]byte, len(w)*8)
	for i, word := range w {
		for j := 0; j < 8; j++ {
			out[i*8+j] = byte(word >> (8 * j))
		}
	}
	return out
}

// BytesToWords is the inverse of WordsToBytes.  The byte length must be a
// multiple of eight.
func BytesToWords(b []byte) ([]Word, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not word-aligned", ErrEncoding, len(b))
	}
	out := make([]Word, len(b)/8)
	for i := range out {
		var word Word
		for j := 0; j < 8; j++ {
			word |= Word(b[i*8+j]) << (8 * j)
		}
		out[i] = word
	}
	return out, nil
}
