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

// ObjectID is a local SSA-style name, unique within one code object.
type ObjectID uint16

// OpAddr is the 0-based ordinal of an operation inside a code object.
type OpAddr uint32

// Opcode is the operation discriminator of a code object's op list.
type Opcode uint8

const (
	// OpRet consumes its source and returns it as the stack's result.
	OpRet Opcode = iota
	// OpForceRet consumes its source and tail-calls into it: the forcing
	// loop continues with the source as the next thunk, without growing
	// the native stack.
	OpForceRet
	// OpForce consumes its argument, forces it to WHNF in a cooperative
	// sub-task, and stores the result in its destination.
	OpForce
	// OpBind consumes a code or partial plus arguments and produces a new
	// partial.  Newly bound arguments are applied before previously bound
	// ones.
	OpBind
	// OpInvoke consumes a code or partial and wraps it in a fresh thunk
	// without forcing it.
	OpInvoke
	// OpBuiltin consumes its arguments and applies a named builtin
	// operator, inline if the builtin is synchronous, in a sub-task
	// otherwise.
	OpBuiltin
	// OpMatch consumes a scrutinee and produces the integer index of the
	// first matching arm of its match specification.
	OpMatch
	// OpSelect consumes an integer case plus branch values, forces the
	// selected branch in a sub-task, and stores its WHNF result.
	OpSelect
	// OpRecForce is reserved for fixed-point forcing of mutually
	// recursive thunk sets; executing it is an error.
	OpRecForce

	opcodeCount
)

// opcodeInfo groups the mnemonic and operand shape for an opcode.
type opcodeInfo struct {
	name    string
	hasSrc  bool // single source operand
	hasArgs bool // variadic argument list
	hasDest bool // produces a destination
}

var opcodeTable = [opcodeCount]opcodeInfo{
	OpRet:      {"RET", true, false, false},
	OpForceRet: {"FORCE_RET", true, false, false},
	OpForce:    {"FORCE", true, false, true},
	OpBind:     {"BIND", true, true, true},
	OpInvoke:   {"INVOKE", true, false, true},
	OpBuiltin:  {"BUILTIN", false, true, true},
	OpMatch:    {"MATCH", true, false, true},
	OpSelect:   {"SELECT", true, true, true},
	OpRecForce: {"REC_FORCE", false, false, false},
}

// String returns the mnemonic name of the opcode.
func (op Opcode) String() string {
	if int(op) >= len(opcodeTable) {
		return "UNKNOWN"
	}
	return opcodeTable[op].name
}

// HasDest reports whether the opcode produces a destination value.
func (op Opcode) HasDest() bool {
	if int(op) >= len(opcodeTable) {
		return false
	}
	return opcodeTable[op].hasDest
}

// Dest is the static descriptor of an operation's output: the local
// object it defines and the addresses of every op that consumes it.
// An id consumed twice by the same op appears twice in UsedBy.
type Dest struct {
	ID     ObjectID
	UsedBy []OpAddr
}

// Constant binds a pre-built store object to a destination at the start
// of execution.
type Constant struct {
	Dest Dest
	Ptr  ObjPointer
}

// Op is one operation of a code object.  Operand fields are meaningful
// per opcode:
//
//	Ret, ForceRet:  Src
//	Force, Invoke:  Src, Dest
//	Bind:           Src (the lambda), Args, Dest
//	Builtin:        Name, Args, Dest
//	Match:          Src (the scrutinee), Match, Dest
//	Select:         Src (the case), Args (the branches), Dest
//	RecForce:       none
//
// NumDeps is the number of operand references the op holds; the exec
// queue dispatches the op after exactly that many completion
// notifications.
type Op struct {
	Opcode  Opcode
	NumDeps uint16

	Src   ObjectID
	Args  []ObjectID
	Name  string
	Match *MatchSpec
	Dest  Dest
}

// Code is a static record of operations, constants, parameter
// destinations, and metadata that together describe a reducible
// computation.
type Code struct {
	// Name is optional metadata used in logs and listings.
	Name string

	Params    []Dest
	Constants []Constant
	Ops       []Op
}

// PatternKind discriminates match patterns.
type PatternKind uint8

const (
	// PatTag matches any value with the given variant tag.
	PatTag PatternKind = iota
	// PatInt matches an integer primitive with the given payload.
	PatInt
	// PatBool matches a boolean primitive with the given payload.
	PatBool

	patternKindCount
)

// Pattern is one arm of a match specification.
type Pattern struct {
	Kind PatternKind
	Tag  Tag
	Int  int64
	Bool bool
}

// MatchSpec is an ordered pattern list.  Default is the arm index to use
// when no pattern matches, or -1 when there is no default arm.
type MatchSpec struct {
	Patterns []Pattern
	Default  int32
}

// NoDefault marks a MatchSpec without a default arm.
const NoDefault int32 = -1
