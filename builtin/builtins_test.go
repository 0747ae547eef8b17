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
	"context"
	"errors"
	"testing"

	"github.com/lumen-lang/go-lumen/codec"
	"github.com/lumen-lang/go-lumen/store"
)

func obj(t *testing.T, st *store.Store, v *codec.Value) store.ObjectRef {
	t.Helper()
	ref, err := st.NewObject(v)
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	return ref
}

func decode(t *testing.T, ref store.ObjectRef) *codec.Value {
	t.Helper()
	d, err := ref.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	v, err := d.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return v
}

func TestArithmetic(t *testing.T) {
	st := store.NewArena(0, 0)
	reg := Default()

	cases := []struct {
		name string
		a, b int64
		want int64
	}{
		{"add", 19, 23, 42},
		{"sub", 3, 10, -7},
		{"mul", 6, 7, 42},
		{"div", 85, 2, 42},
		{"mod", 127, 5, 2},
	}
	for _, tc := range cases {
		res, err := reg.Sync(st, tc.name, []store.ObjectRef{
			obj(t, st, codec.Int64(tc.a)),
			obj(t, st, codec.Int64(tc.b)),
		})
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if v := decode(t, res); v.Int != tc.want {
			t.Errorf("%s(%d,%d) = %d; want %d", tc.name, tc.a, tc.b, v.Int, tc.want)
		}
	}
}

func TestFloatPromotion(t *testing.T) {
	st := store.NewArena(0, 0)
	reg := Default()
	res, err := reg.Sync(st, "add", []store.ObjectRef{
		obj(t, st, codec.Int64(1)),
		obj(t, st, codec.Float64(2.5)),
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	v := decode(t, res)
	if v.Tag != codec.TagFloat || v.Float != 3.5 {
		t.Errorf("add(1, 2.5) = %v; want float 3.5", v)
	}
}

func TestDivisionByZero(t *testing.T) {
	st := store.NewArena(0, 0)
	reg := Default()
	_, err := reg.Sync(st, "div", []store.ObjectRef{
		obj(t, st, codec.Int64(1)),
		obj(t, st, codec.Int64(0)),
	})
	if !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("got %v; want ErrDivisionByZero", err)
	}
}

func TestComparison(t *testing.T) {
	st := store.NewArena(0, 0)
	reg := Default()
	res, err := reg.Sync(st, "lt", []store.ObjectRef{
		obj(t, st, codec.Int64(3)),
		obj(t, st, codec.Int64(4)),
	})
	if err != nil {
		t.Fatalf("lt: %v", err)
	}
	if v := decode(t, res); v.Tag != codec.TagBool || !v.Bool {
		t.Errorf("lt(3,4) = %v; want true", v)
	}
}

func TestConcat(t *testing.T) {
	st := store.NewArena(0, 0)
	reg := Default()
	res, err := reg.Sync(st, "concat", []store.ObjectRef{
		obj(t, st, codec.Buffer([]byte("foo"))),
		obj(t, st, codec.Buffer([]byte("bar"))),
	})
	if err != nil {
		t.Fatalf("concat: %v", err)
	}
	if v := decode(t, res); string(v.Buffer) != "foobar" {
		t.Errorf("concat = %q; want foobar", v.Buffer)
	}
}

func TestTypeErrors(t *testing.T) {
	st := store.NewArena(0, 0)
	reg := Default()
	if _, err := reg.Sync(st, "add", []store.ObjectRef{
		obj(t, st, codec.Boolean(true)),
		obj(t, st, codec.Int64(1)),
	}); err == nil {
		t.Errorf("add on a bool succeeded")
	}
	if _, err := reg.Sync(st, "add", []store.ObjectRef{obj(t, st, codec.Int64(1))}); !errors.Is(err, ErrArity) {
		t.Errorf("got %v; want ErrArity", err)
	}
}

func TestUnknownName(t *testing.T) {
	st := store.NewArena(0, 0)
	reg := Default()
	if _, err := reg.Sync(st, "warp", nil); !errors.Is(err, ErrUnknownBuiltin) {
		t.Errorf("Sync: got %v; want ErrUnknownBuiltin", err)
	}
	if _, err := reg.Async(context.Background(), st, "warp", nil); !errors.Is(err, ErrUnknownBuiltin) {
		t.Errorf("Async: got %v; want ErrUnknownBuiltin", err)
	}
	if reg.IsSync("warp") {
		t.Errorf("unknown name reported synchronous")
	}
}

func TestRegistrationReplaces(t *testing.T) {
	st := store.NewArena(0, 0)
	reg := NewRegistry()
	reg.RegisterSync("op", func(st *store.Store, _ []store.ObjectRef) (store.ObjectRef, error) {
		return st.NewObject(codec.Int64(1))
	})
	if !reg.IsSync("op") {
		t.Fatalf("sync registration missed")
	}
	reg.RegisterAsync("op", func(_ context.Context, st *store.Store, _ []store.ObjectRef) (store.ObjectRef, error) {
		return st.NewObject(codec.Int64(2))
	})
	if reg.IsSync("op") {
		t.Errorf("async re-registration left the sync binding")
	}
	res, err := reg.Async(context.Background(), st, "op", nil)
	if err != nil {
		t.Fatalf("Async: %v", err)
	}
	if v := decode(t, res); v.Int != 2 {
		t.Errorf("async op = %d; want 2", v.Int)
	}
}
