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

import "fmt"

// CodeBuilder assembles a code object op by op.  It allocates fresh
// ObjectIDs for every produced value and, at Build time, derives the
// UsedBy list of every destination and the NumDeps count of every op
// from the recorded operand references, so hand-maintained dependency
// bookkeeping cannot drift out of sync with the op list.
//
// References to an id defined by a later op are legal; that is how
// recursive definitions are expressed.
type CodeBuilder struct {
	name   string
	nextID ObjectID

	params []ObjectID
	consts []builderConst
	ops    []builderOp
}

type builderConst struct {
	id  ObjectID
	ptr ObjPointer
}

type builderOp struct {
	opcode Opcode
	src    ObjectID
	srcSet bool
	args   []ObjectID
	name   string
	match  *MatchSpec
	dest   ObjectID
}

// NewCodeBuilder creates a builder for a code object with the given
// metadata name.
func NewCodeBuilder(name string) *CodeBuilder {
	return &CodeBuilder{name: name}
}

func (b *CodeBuilder) fresh() ObjectID {
	id := b.nextID
	b.nextID++
	return id
}

// Param declares the next positional parameter and returns its id.
func (b *CodeBuilder) Param() ObjectID {
	id := b.fresh()
	b.params = append(b.params, id)
	return id
}

// Constant binds a pre-built store object and returns its id.
func (b *CodeBuilder) Constant(ptr ObjPointer) ObjectID {
	id := b.fresh()
	b.consts = append(b.consts, builderConst{id: id, ptr: ptr})
	return id
}

// Force records a force of arg and returns the id of its WHNF result.
func (b *CodeBuilder) Force(arg ObjectID) ObjectID {
	return b.emit(builderOp{opcode: OpForce, src: arg, srcSet: true, dest: b.fresh()})
}

// Bind records a partial application of args to lam and returns the id
// of the new partial.
func (b *CodeBuilder) Bind(lam ObjectID, args ...ObjectID) ObjectID {
	return b.emit(builderOp{opcode: OpBind, src: lam, srcSet: true, args: args, dest: b.fresh()})
}

// Invoke records the wrapping of src in a fresh unforced thunk and
// returns the thunk's id.
func (b *CodeBuilder) Invoke(src ObjectID) ObjectID {
	return b.emit(builderOp{opcode: OpInvoke, src: src, srcSet: true, dest: b.fresh()})
}

// Builtin records the application of a named builtin and returns the id
// of its result.
func (b *CodeBuilder) Builtin(name string, args ...ObjectID) ObjectID {
	return b.emit(builderOp{opcode: OpBuiltin, name: name, args: args, dest: b.fresh()})
}

// Match records a match of scrut against spec and returns the id of the
// integer case result.
func (b *CodeBuilder) Match(scrut ObjectID, spec *MatchSpec) ObjectID {
	return b.emit(builderOp{opcode: OpMatch, src: scrut, srcSet: true, match: spec, dest: b.fresh()})
}

// Select records the forcing of branches[case] and returns the id of the
// selected branch's WHNF result.
func (b *CodeBuilder) Select(caseID ObjectID, branches ...ObjectID) ObjectID {
	return b.emit(builderOp{opcode: OpSelect, src: caseID, srcSet: true, args: branches, dest: b.fresh()})
}

// Ret records the terminating return of src.
func (b *CodeBuilder) Ret(src ObjectID) {
	b.ops = append(b.ops, builderOp{opcode: OpRet, src: src, srcSet: true})
}

// ForceRet records the terminating tail-force of src.
func (b *CodeBuilder) ForceRet(src ObjectID) {
	b.ops = append(b.ops, builderOp{opcode: OpForceRet, src: src, srcSet: true})
}

func (b *CodeBuilder) emit(op builderOp) ObjectID {
	b.ops = append(b.ops, op)
	return op.dest
}

// Build assembles the code object, deriving every destination's UsedBy
// list and every op's NumDeps from the recorded operand references.  It
// fails if an op references an id that no parameter, constant, or op
// defines.
func (b *CodeBuilder) Build() (*Code, error) {
	producers := make(map[ObjectID]*Dest, int(b.nextID))
	code := &Code{Name: b.name}

	code.Params = make([]Dest, len(b.params))
	for i, id := range b.params {
		code.Params[i] = Dest{ID: id}
		producers[id] = &code.Params[i]
	}
	code.Constants = make([]Constant, len(b.consts))
	for i, k := range b.consts {
		code.Constants[i] = Constant{Dest: Dest{ID: k.id}, Ptr: k.ptr}
		producers[k.id] = &code.Constants[i].Dest
	}
	code.Ops = make([]Op, len(b.ops))
	for i, d := range b.ops {
		code.Ops[i] = Op{
			Opcode: d.opcode,
			Src:    d.src,
			Args:   d.args,
			Name:   d.name,
			Match:  d.match,
		}
		if d.opcode.HasDest() {
			code.Ops[i].Dest = Dest{ID: d.dest}
			producers[d.dest] = &code.Ops[i].Dest
		}
	}

	// Second pass: every operand reference adds one entry to the
	// producer's UsedBy list and one dependency to the consuming op.
	for i, d := range b.ops {
		addr := OpAddr(i)
		deps := 0
		ref := func(id ObjectID) error {
			p, ok := producers[id]
			if !ok {
				return fmt.Errorf("codec: op %d references undefined object %d", addr, id)
			}
			p.UsedBy = append(p.UsedBy, addr)
			deps++
			return nil
		}
		if d.srcSet {
			if err := ref(d.src); err != nil {
				return nil, err
			}
		}
		for _, a := range d.args {
			if err := ref(a); err != nil {
				return nil, err
			}
		}
		code.Ops[i].NumDeps = uint16(deps)
	}
	return code, nil
}
