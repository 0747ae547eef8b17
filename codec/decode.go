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

// DecodeValue decodes the canonical payload of one record.  Data records
// are immutable once published, so the returned Value may alias the input
// only for Buffer payloads, which are copied anyway during unpacking.
func DecodeValue(w []Word) (*Value, error) {
	r := &wordReader{w: w}
	v, err := r.value()
	if err != nil {
		return nil, err
	}
	if r.pos != len(r.w) {
		return nil, fmt.Errorf("%w: %d trailing words", ErrEncoding, len(r.w)-r.pos)
	}
	return v, nil
}

// wordReader is a bounds-checked cursor over an encoded record.
type wordReader struct {
	w   []Word
	pos int
}

func (r *wordReader) word() (Word, error) {
	if r.pos >= len(r.w) {
		return 0, fmt.Errorf("%w: truncated at word %d", ErrEncoding, r.pos)
	}
	v := r.w[r.pos]
	r.pos++
	return v, nil
}

func (r *wordReader) count(what string, limit int) (int, error) {
	n, err := r.word()
	if err != nil {
		return 0, err
	}
	if n > Word(limit) {
		return 0, fmt.Errorf("%w: %s count %d exceeds record bounds", ErrEncoding, what, n)
	}
	return int(n), nil
}

func (r *wordReader) value() (*Value, error) {
	tag, err := r.word()
	if err != nil {
		return nil, err
	}
	switch Tag(tag) {
	case TagUnit:
		return Unit(), nil
	case TagInt:
		i, err := r.word()
		if err != nil {
			return nil, err
		}
		return Int64(int64(i)), nil
	case TagFloat:
		bits, err := r.word()
		if err != nil {
			return nil, err
		}
		return Float64(math.Float64frombits(bits)), nil
	case TagBool:
		b, err := r.word()
		if err != nil {
			return nil, err
		}
		return Boolean(b != 0), nil
	case TagBuffer:
		b, err := r.bytes()
		if err != nil {
			return nil, err
		}
		return Buffer(b), nil
	case TagThunk:
		target, err := r.word()
		if err != nil {
			return nil, err
		}
		return Thunk(ObjPointer(target)), nil
	case TagPartial:
		code, err := r.word()
		if err != nil {
			return nil, err
		}
		args, err := r.pointers()
		if err != nil {
			return nil, err
		}
		return Partial(ObjPointer(code), args), nil
	case TagCode:
		c, err := r.code()
		if err != nil {
			return nil, err
		}
		return CodeValue(c), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrBadTag, tag)
	}
}

func (r *wordReader) bytes() ([]byte, error) {
	n, err := r.count("byte", (len(r.w)-r.pos)*8)
	if err != nil {
		return nil, err
	}
	words := (n + 7) / 8
	out := make([]byte, n)
	for i := 0; i < words; i++ {
		word, err := r.word()
		if err != nil {
			return nil, err
		}
		for j := 0; j < 8 && i*8+j < n; j++ {
			out[i*8+j] = byte(word >> (8 * j))
		}
	}
	return out, nil
}

func (r *wordReader) str() (string, error) {
	b, err := r.bytes()
	return string(b), err
}

func (r *wordReader) pointers() ([]ObjPointer, error) {
	n, err := r.count("pointer", len(r.w)-r.pos)
	if err != nil {
		return nil, err
	}
	out := make([]ObjPointer, n)
	for i := range out {
		p, err := r.word()
		if err != nil {
			return nil, err
		}
		out[i] = ObjPointer(p)
	}
	return out, nil
}

func (r *wordReader) ids() ([]ObjectID, error) {
	n, err := r.count("operand", len(r.w)-r.pos)
	if err != nil {
		return nil, err
	}
	out := make([]ObjectID, n)
	for i := range out {
		id, err := r.word()
		if err != nil {
			return nil, err
		}
		out[i] = ObjectID(id)
	}
	return out, nil
}

func (r *wordReader) dest() (Dest, error) {
	id, err := r.word()
	if err != nil {
		return Dest{}, err
	}
	n, err := r.count("used-by", len(r.w)-r.pos)
	if err != nil {
		return Dest{}, err
	}
	d := Dest{ID: ObjectID(id)}
	if n > 0 {
		d.UsedBy = make([]OpAddr, n)
	}
	for i := 0; i < n; i++ {
		u, err := r.word()
		if err != nil {
			return Dest{}, err
		}
		d.UsedBy[i] = OpAddr(u)
	}
	return d, nil
}

func (r *wordReader) code() (*Code, error) {
	c := &Code{}
	var err error
	if c.Name, err = r.str(); err != nil {
		return nil, err
	}
	nparams, err := r.count("param", len(r.w)-r.pos)
	if err != nil {
		return nil, err
	}
	c.Params = make([]Dest, 0, nparams)
	for i := 0; i < nparams; i++ {
		d, err := r.dest()
		if err != nil {
			return nil, err
		}
		c.Params = append(c.Params, d)
	}
	nconsts, err := r.count("constant", len(r.w)-r.pos)
	if err != nil {
		return nil, err
	}
	c.Constants = make([]Constant, 0, nconsts)
	for i := 0; i < nconsts; i++ {
		d, err := r.dest()
		if err != nil {
			return nil, err
		}
		ptr, err := r.word()
		if err != nil {
			return nil, err
		}
		c.Constants = append(c.Constants, Constant{Dest: d, Ptr: ObjPointer(ptr)})
	}
	nops, err := r.count("op", len(r.w)-r.pos)
	if err != nil {
		return nil, err
	}
	c.Ops = make([]Op, 0, nops)
	for i := 0; i < nops; i++ {
		op, err := r.op()
		if err != nil {
			return nil, err
		}
		c.Ops = append(c.Ops, op)
	}
	return c, nil
}

func (r *wordReader) op() (Op, error) {
	start := r.pos
	wordLen, err := r.word()
	if err != nil {
		return Op{}, err
	}
	opcode, err := r.word()
	if err != nil {
		return Op{}, err
	}
	numDeps, err := r.word()
	if err != nil {
		return Op{}, err
	}
	op := Op{Opcode: Opcode(opcode), NumDeps: uint16(numDeps)}
	switch op.Opcode {
	case OpRet, OpForceRet:
		src, err := r.word()
		if err != nil {
			return Op{}, err
		}
		op.Src = ObjectID(src)
	case OpForce, OpInvoke:
		src, err := r.word()
		if err != nil {
			return Op{}, err
		}
		op.Src = ObjectID(src)
		if op.Dest, err = r.dest(); err != nil {
			return Op{}, err
		}
	case OpBind, OpSelect:
		src, err := r.word()
		if err != nil {
			return Op{}, err
		}
		op.Src = ObjectID(src)
		if op.Args, err = r.ids(); err != nil {
			return Op{}, err
		}
		if op.Dest, err = r.dest(); err != nil {
			return Op{}, err
		}
	case OpBuiltin:
		if op.Name, err = r.str(); err != nil {
			return Op{}, err
		}
		if op.Args, err = r.ids(); err != nil {
			return Op{}, err
		}
		if op.Dest, err = r.dest(); err != nil {
			return Op{}, err
		}
	case OpMatch:
		src, err := r.word()
		if err != nil {
			return Op{}, err
		}
		op.Src = ObjectID(src)
		spec := &MatchSpec{}
		npat, err := r.count("pattern", (len(r.w)-r.pos)/2)
		if err != nil {
			return Op{}, err
		}
		for i := 0; i < npat; i++ {
			kind, err := r.word()
			if err != nil {
				return Op{}, err
			}
			operand, err := r.word()
			if err != nil {
				return Op{}, err
			}
			if kind >= Word(patternKindCount) {
				return Op{}, fmt.Errorf("%w: pattern kind %d", ErrEncoding, kind)
			}
			p := Pattern{Kind: PatternKind(kind)}
			switch p.Kind {
			case PatTag:
				p.Tag = Tag(operand)
			case PatInt:
				p.Int = int64(operand)
			case PatBool:
				p.Bool = operand != 0
			}
			spec.Patterns = append(spec.Patterns, p)
		}
		def, err := r.word()
		if err != nil {
			return Op{}, err
		}
		spec.Default = int32(int64(def))
		op.Match = spec
		if op.Dest, err = r.dest(); err != nil {
			return Op{}, err
		}
	case OpRecForce:
		// no operands
	default:
		return Op{}, fmt.Errorf("%w: opcode %d", ErrEncoding, opcode)
	}
	if r.pos-start != int(wordLen) {
		return Op{}, fmt.Errorf("%w: op length %d, decoded %d words", ErrEncoding, wordLen, r.pos-start)
	}
	return op, nil
}
