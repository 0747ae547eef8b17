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

package builtin

import (
	"errors"
	"fmt"

	"github.com/lumen-lang/go-lumen/codec"
	"github.com/lumen-lang/go-lumen/store"
)

// ErrDivisionByZero is returned by div and mod when both operands are
// integers and the divisor is zero.  Float division by zero returns an
// IEEE-754 infinity or NaN without an error.
var ErrDivisionByZero = errors.New("builtin: division by zero")

// Default returns a registry populated with the standard operator set:
// arithmetic (add, sub, mul, div, mod), comparison (eq, lt), and buffer
// concatenation (concat).
func Default() *Registry {
	r := NewRegistry()
	r.RegisterSync("add", numericOp(func(a, b int64) (int64, error) { return a + b, nil },
		func(a, b float64) float64 { return a + b }))
	r.RegisterSync("sub", numericOp(func(a, b int64) (int64, error) { return a - b, nil },
		func(a, b float64) float64 { return a - b }))
	r.RegisterSync("mul", numericOp(func(a, b int64) (int64, error) { return a * b, nil },
		func(a, b float64) float64 { return a * b }))
	r.RegisterSync("div", numericOp(func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a / b, nil
	}, func(a, b float64) float64 { return a / b }))
	r.RegisterSync("mod", numericOp(func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a % b, nil
	}, nil))
	r.RegisterSync("eq", compareOp(func(a, b int64) bool { return a == b }))
	r.RegisterSync("lt", compareOp(func(a, b int64) bool { return a < b }))
	r.RegisterSync("concat", concatBuiltin)
	return r
}

// numeric extracts the numeric payload of a WHNF value.
func numeric(v *codec.Value) (i int64, f float64, isFloat bool, err error) {
	switch v.Tag {
	case codec.TagInt:
		return v.Int, 0, false, nil
	case codec.TagFloat:
		return 0, v.Float, true, nil
	default:
		return 0, 0, false, fmt.Errorf("builtin: %s is not numeric", v.Tag)
	}
}

// numericOp lifts an int/float operation pair into a binary builtin.
// Mixed operands promote to float; floatFn == nil restricts the builtin
// to integers.
func numericOp(intFn func(a, b int64) (int64, error), floatFn func(a, b float64) float64) SyncFunc {
	return func(st *store.Store, args []store.ObjectRef) (store.ObjectRef, error) {
		l, r, err := binaryArgs(args)
		if err != nil {
			return store.ObjectRef{}, err
		}
		li, lf, lFloat, err := numeric(l)
		if err != nil {
			return store.ObjectRef{}, err
		}
		ri, rf, rFloat, err := numeric(r)
		if err != nil {
			return store.ObjectRef{}, err
		}
		if lFloat || rFloat {
			if floatFn == nil {
				return store.ObjectRef{}, fmt.Errorf("builtin: float operand not supported")
			}
			if !lFloat {
				lf = float64(li)
			}
			if !rFloat {
				rf = float64(ri)
			}
			return st.NewObject(codec.Float64(floatFn(lf, rf)))
		}
		res, err := intFn(li, ri)
		if err != nil {
			return store.ObjectRef{}, err
		}
		return st.NewObject(codec.Int64(res))
	}
}

func compareOp(cmp func(a, b int64) bool) SyncFunc {
	return func(st *store.Store, args []store.ObjectRef) (store.ObjectRef, error) {
		l, r, err := binaryArgs(args)
		if err != nil {
			return store.ObjectRef{}, err
		}
		li, err := l.AsInt()
		if err != nil {
			return store.ObjectRef{}, err
		}
		ri, err := r.AsInt()
		if err != nil {
			return store.ObjectRef{}, err
		}
		return st.NewObject(codec.Boolean(cmp(li, ri)))
	}
}

func concatBuiltin(st *store.Store, args []store.ObjectRef) (store.ObjectRef, error) {
	if len(args) != 2 {
		return store.ObjectRef{}, fmt.Errorf("%w: concat takes 2, got %d", ErrArity, len(args))
	}
	var out []byte
	for _, a := range args {
		v, err := decodeArg(a)
		if err != nil {
			return store.ObjectRef{}, err
		}
		if v.Tag != codec.TagBuffer {
			return store.ObjectRef{}, fmt.Errorf("builtin: concat operand is %s, not buffer", v.Tag)
		}
		out = append(out, v.Buffer...)
	}
	return st.NewObject(codec.Buffer(out))
}

func binaryArgs(args []store.ObjectRef) (*codec.Value, *codec.Value, error) {
	if len(args) != 2 {
		return nil, nil, fmt.Errorf("%w: want 2, got %d", ErrArity, len(args))
	}
	l, err := decodeArg(args[0])
	if err != nil {
		return nil, nil, err
	}
	r, err := decodeArg(args[1])
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

func decodeArg(ref store.ObjectRef) (*codec.Value, error) {
	d, err := ref.Value()
	if err != nil {
		return nil, err
	}
	return d.Decode()
}
