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

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/lumen-lang/go-lumen/builtin"
	"github.com/lumen-lang/go-lumen/codec"
	"github.com/lumen-lang/go-lumen/store"
)

// ---- Test helpers ----------------------------------------------------------

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	return store.NewArena(0, 0)
}

// mustObject publishes v as a fresh store object.
func mustObject(t *testing.T, st *store.Store, v *codec.Value) store.ObjectRef {
	t.Helper()
	ref, err := st.NewObject(v)
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	return ref
}

// mustBuild assembles a code object and fails the test on builder errors.
func mustBuild(t *testing.T, b *codec.CodeBuilder) *codec.Code {
	t.Helper()
	code, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return code
}

// thunkOf wraps target in a fresh thunk object.
func thunkOf(t *testing.T, st *store.Store, target store.ObjectRef) store.ObjectRef {
	t.Helper()
	return mustObject(t, st, codec.Thunk(target.Ptr()))
}

// partialThunk builds Thunk(Partial(code, args)) ready for forcing.
func partialThunk(t *testing.T, st *store.Store, code *codec.Code, args ...store.ObjectRef) store.ObjectRef {
	t.Helper()
	codeRef := mustObject(t, st, codec.CodeValue(code))
	ptrs := make([]codec.ObjPointer, len(args))
	for i, a := range args {
		ptrs[i] = a.Ptr()
	}
	partial := mustObject(t, st, codec.Partial(codeRef.Ptr(), ptrs))
	return thunkOf(t, st, partial)
}

// forceInt forces ref and decodes the result as an integer primitive.
func forceInt(t *testing.T, m *Machine, ref store.ObjectRef) int64 {
	t.Helper()
	res, err := m.Force(context.Background(), ref)
	if err != nil {
		t.Fatalf("Force: %v", err)
	}
	d, err := res.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	v, err := d.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	i, err := v.AsInt()
	if err != nil {
		t.Fatalf("result is %s, want int", v.Tag)
	}
	return i
}

// ---- Scenario tests --------------------------------------------------------

// A constant-only return: force(Invoke(c)) where c = [Ret(k)], k = 42.
func TestForceConstantReturn(t *testing.T) {
	st := newTestStore(t)
	k := mustObject(t, st, codec.Int64(42))

	b := codec.NewCodeBuilder("const42")
	b.Ret(b.Constant(k.Ptr()))
	code := mustBuild(t, b)

	codeRef := mustObject(t, st, codec.CodeValue(code))
	m := NewMachine(st, nil, nil, nil)
	if got := forceInt(t, m, thunkOf(t, st, codeRef)); got != 42 {
		t.Errorf("force = %d; want 42", got)
	}
}

// Builtin application through a partial: add(2, 3) = 5.
func TestForcePartialBuiltin(t *testing.T) {
	st := newTestStore(t)

	b := codec.NewCodeBuilder("add2")
	p0, p1 := b.Param(), b.Param()
	b.Ret(b.Builtin("add", p0, p1))
	code := mustBuild(t, b)

	two := mustObject(t, st, codec.Int64(2))
	three := mustObject(t, st, codec.Int64(3))
	m := NewMachine(st, nil, nil, nil)
	if got := forceInt(t, m, partialThunk(t, st, code, two, three)); got != 5 {
		t.Errorf("force = %d; want 5", got)
	}
}

// Two independent forces feeding one builtin: add dispatches only after
// both complete, in whatever order the forces finish.
func TestForceIndependentDataflow(t *testing.T) {
	st := newTestStore(t)

	leaf := func(n int64) store.ObjectRef {
		k := mustObject(t, st, codec.Int64(n))
		lb := codec.NewCodeBuilder("leaf")
		lb.Ret(lb.Constant(k.Ptr()))
		return thunkOf(t, st, mustObject(t, st, codec.CodeValue(mustBuild(t, lb))))
	}
	t1, t2 := leaf(30), leaf(12)

	b := codec.NewCodeBuilder("sum")
	a1 := b.Constant(t1.Ptr())
	a2 := b.Constant(t2.Ptr())
	f1 := b.Force(a1)
	f2 := b.Force(a2)
	b.Ret(b.Builtin("add", f1, f2))
	code := mustBuild(t, b)

	codeRef := mustObject(t, st, codec.CodeValue(code))
	m := NewMachine(st, nil, nil, nil)
	if got := forceInt(t, m, thunkOf(t, st, codeRef)); got != 42 {
		t.Errorf("force = %d; want 42", got)
	}
}

// A thunk chain t -> u -> code forces tail-recursively and records a
// trace entry for every thunk traversed.
func TestForceThunkChain(t *testing.T) {
	st := newTestStore(t)
	k := mustObject(t, st, codec.Int64(7))

	b := codec.NewCodeBuilder("const7")
	b.Ret(b.Constant(k.Ptr()))
	codeRef := mustObject(t, st, codec.CodeValue(mustBuild(t, b)))

	u := thunkOf(t, st, codeRef)
	tt := thunkOf(t, st, u)

	m := NewMachine(st, nil, nil, nil)
	if got := forceInt(t, m, tt); got != 7 {
		t.Errorf("force = %d; want 7", got)
	}
	if lk := m.Cache().Query(tt); !lk.Hit {
		t.Errorf("no trace entry for the outer thunk")
	}
	if lk := m.Cache().Query(u); !lk.Hit {
		t.Errorf("no trace entry for the inner thunk")
	}
}

// A second force of the same thunk hits the trace cache: no op runs and
// the same result pointer comes back.
func TestForceMemoized(t *testing.T) {
	st := newTestStore(t)
	var calls atomic.Int64
	reg := builtin.Default()
	reg.RegisterSync("tick", func(st *store.Store, _ []store.ObjectRef) (store.ObjectRef, error) {
		calls.Add(1)
		return st.NewObject(codec.Int64(99))
	})

	// Scheduling is completion-driven, so the builtin takes an anchor
	// constant as an ignored argument to get itself released.
	b := codec.NewCodeBuilder("tick")
	anchor := b.Constant(mustObject(t, st, codec.Unit()).Ptr())
	b.Ret(b.Builtin("tick", anchor))
	code := mustBuild(t, b)

	codeRef := mustObject(t, st, codec.CodeValue(code))
	thunk := thunkOf(t, st, codeRef)
	m := NewMachine(st, nil, reg, nil)

	first, err := m.Force(context.Background(), thunk)
	if err != nil {
		t.Fatalf("first force: %v", err)
	}
	second, err := m.Force(context.Background(), thunk)
	if err != nil {
		t.Fatalf("second force: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("builtin ran %d times; want 1", calls.Load())
	}
	if first.Ptr() != second.Ptr() {
		t.Errorf("second force returned %s; want %s", second.Ptr(), first.Ptr())
	}
}

// ---- Boundary behaviors ----------------------------------------------------

func TestForceNonThunk(t *testing.T) {
	st := newTestStore(t)
	val := mustObject(t, st, codec.Int64(5))
	m := NewMachine(st, nil, nil, nil)
	res, err := m.Force(context.Background(), val)
	if err != nil {
		t.Fatalf("Force: %v", err)
	}
	if res.Ptr() != val.Ptr() {
		t.Errorf("force of WHNF returned %s; want the same %s", res.Ptr(), val.Ptr())
	}
	// Idempotence: forcing the result changes nothing.
	again, err := m.Force(context.Background(), res)
	if err != nil {
		t.Fatalf("Force again: %v", err)
	}
	if again.Ptr() != res.Ptr() {
		t.Errorf("force is not idempotent: %s != %s", again.Ptr(), res.Ptr())
	}
}

func TestSelectOutOfRange(t *testing.T) {
	st := newTestStore(t)
	caseObj := mustObject(t, st, codec.Int64(2))
	v0 := mustObject(t, st, codec.Int64(10))
	v1 := mustObject(t, st, codec.Int64(20))

	b := codec.NewCodeBuilder("badselect")
	c := b.Constant(caseObj.Ptr())
	b0 := b.Constant(v0.Ptr())
	b1 := b.Constant(v1.Ptr())
	b.Ret(b.Select(c, b0, b1))
	code := mustBuild(t, b)

	codeRef := mustObject(t, st, codec.CodeValue(code))
	m := NewMachine(st, nil, nil, nil)
	_, err := m.Force(context.Background(), thunkOf(t, st, codeRef))
	if !errors.Is(err, ErrNoSuchBranch) {
		t.Errorf("got %v; want ErrNoSuchBranch", err)
	}
}

func TestSelectPicksBranch(t *testing.T) {
	st := newTestStore(t)
	caseObj := mustObject(t, st, codec.Int64(1))
	v0 := mustObject(t, st, codec.Int64(10))
	v1 := mustObject(t, st, codec.Int64(20))

	b := codec.NewCodeBuilder("select")
	c := b.Constant(caseObj.Ptr())
	b0 := b.Constant(v0.Ptr())
	b1 := b.Constant(v1.Ptr())
	b.Ret(b.Select(c, b0, b1))
	code := mustBuild(t, b)

	codeRef := mustObject(t, st, codec.CodeValue(code))
	m := NewMachine(st, nil, nil, nil)
	if got := forceInt(t, m, thunkOf(t, st, codeRef)); got != 20 {
		t.Errorf("select = %d; want 20", got)
	}
}

func TestBindNonCallable(t *testing.T) {
	st := newTestStore(t)
	num := mustObject(t, st, codec.Int64(1))

	b := codec.NewCodeBuilder("badbind")
	lam := b.Constant(num.Ptr())
	arg := b.Constant(num.Ptr())
	b.Ret(b.Bind(lam, arg))
	code := mustBuild(t, b)

	codeRef := mustObject(t, st, codec.CodeValue(code))
	m := NewMachine(st, nil, nil, nil)
	_, err := m.Force(context.Background(), thunkOf(t, st, codeRef))
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("got %v; want ErrTypeMismatch", err)
	}
}

func TestForceNonCallableTarget(t *testing.T) {
	st := newTestStore(t)
	num := mustObject(t, st, codec.Int64(3))
	m := NewMachine(st, nil, nil, nil)
	_, err := m.Force(context.Background(), thunkOf(t, st, num))
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("got %v; want ErrTypeMismatch", err)
	}
}

func TestRecForceNotImplemented(t *testing.T) {
	st := newTestStore(t)
	anchor := mustObject(t, st, codec.Unit())

	// RecForce has no operands, so it is wired in by hand with a single
	// synthetic dependency satisfied by the constant.
	code := &codec.Code{
		Name: "recforce",
		Constants: []codec.Constant{{
			Dest: codec.Dest{ID: 0, UsedBy: []codec.OpAddr{0}},
			Ptr:  anchor.Ptr(),
		}},
		Ops: []codec.Op{{Opcode: codec.OpRecForce, NumDeps: 1}},
	}
	codeRef := mustObject(t, st, codec.CodeValue(code))
	m := NewMachine(st, nil, nil, nil)
	_, err := m.Force(context.Background(), thunkOf(t, st, codeRef))
	if !errors.Is(err, ErrNotImplemented) {
		t.Errorf("got %v; want ErrNotImplemented", err)
	}
}

// ---- Semantics details -----------------------------------------------------

// Two-stage partial application: bind prepends new args before old ones,
// so the outermost (latest) bind supplies the leading parameters.
func TestBindArgumentOrder(t *testing.T) {
	st := newTestStore(t)

	sb := codec.NewCodeBuilder("sub2")
	p0, p1 := sb.Param(), sb.Param()
	sb.Ret(sb.Builtin("sub", p0, p1))
	subCode := mustBuild(t, sb)
	subRef := mustObject(t, st, codec.CodeValue(subCode))

	ten := mustObject(t, st, codec.Int64(10))
	three := mustObject(t, st, codec.Int64(3))

	b := codec.NewCodeBuilder("twostage")
	lam := b.Constant(subRef.Ptr())
	first := b.Bind(lam, b.Constant(ten.Ptr()))
	second := b.Bind(first, b.Constant(three.Ptr()))
	inv := b.Invoke(second)
	b.Ret(b.Force(inv))
	code := mustBuild(t, b)

	codeRef := mustObject(t, st, codec.CodeValue(code))
	m := NewMachine(st, nil, nil, nil)
	// Later-bound 3 lands before earlier-bound 10: sub(3, 10) = -7.
	if got := forceInt(t, m, thunkOf(t, st, codeRef)); got != -7 {
		t.Errorf("two-stage bind = %d; want -7", got)
	}
}

// Invoke creates a suspension: the wrapped code must not run until the
// thunk is forced.
func TestInvokeIsLazy(t *testing.T) {
	st := newTestStore(t)
	var calls atomic.Int64
	reg := builtin.Default()
	reg.RegisterSync("tock", func(st *store.Store, _ []store.ObjectRef) (store.ObjectRef, error) {
		calls.Add(1)
		return st.NewObject(codec.Int64(1))
	})

	ib := codec.NewCodeBuilder("effect")
	anchor := ib.Constant(mustObject(t, st, codec.Unit()).Ptr())
	ib.Ret(ib.Builtin("tock", anchor))
	effectRef := mustObject(t, st, codec.CodeValue(mustBuild(t, ib)))

	b := codec.NewCodeBuilder("suspend")
	lam := b.Constant(effectRef.Ptr())
	b.Ret(b.Invoke(lam))
	code := mustBuild(t, b)

	codeRef := mustObject(t, st, codec.CodeValue(code))
	m := NewMachine(st, nil, reg, nil)
	res, err := m.Force(context.Background(), thunkOf(t, st, codeRef))
	if err != nil {
		t.Fatalf("Force: %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("invoked code ran %d times before being forced", calls.Load())
	}
	// The result is itself a thunk object; forcing it runs the effect.
	if _, err := m.Force(context.Background(), res); err != nil {
		t.Fatalf("Force of suspension: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("invoked code ran %d times after forcing; want 1", calls.Load())
	}
}

// Match feeds Select: an integer literal pattern picks the branch.
func TestMatchSelect(t *testing.T) {
	st := newTestStore(t)
	scrut := mustObject(t, st, codec.Int64(5))
	vNo := mustObject(t, st, codec.Int64(0))
	vYes := mustObject(t, st, codec.Int64(1))

	spec := &codec.MatchSpec{
		Patterns: []codec.Pattern{
			{Kind: codec.PatInt, Int: 4},
			{Kind: codec.PatInt, Int: 5},
		},
		Default: codec.NoDefault,
	}

	b := codec.NewCodeBuilder("matchsel")
	s := b.Constant(scrut.Ptr())
	no := b.Constant(vNo.Ptr())
	yes := b.Constant(vYes.Ptr())
	c := b.Match(s, spec)
	b.Ret(b.Select(c, no, yes))
	code := mustBuild(t, b)

	codeRef := mustObject(t, st, codec.CodeValue(code))
	m := NewMachine(st, nil, nil, nil)
	if got := forceInt(t, m, thunkOf(t, st, codeRef)); got != 1 {
		t.Errorf("match+select = %d; want 1", got)
	}
}

func TestComputeMatch(t *testing.T) {
	cases := []struct {
		name    string
		val     *codec.Value
		spec    *codec.MatchSpec
		want    int64
		wantErr error
	}{
		{
			name: "tag pattern",
			val:  codec.Boolean(true),
			spec: &codec.MatchSpec{Patterns: []codec.Pattern{
				{Kind: codec.PatTag, Tag: codec.TagInt},
				{Kind: codec.PatTag, Tag: codec.TagBool},
			}, Default: codec.NoDefault},
			want: 1,
		},
		{
			name: "first match wins",
			val:  codec.Int64(9),
			spec: &codec.MatchSpec{Patterns: []codec.Pattern{
				{Kind: codec.PatInt, Int: 9},
				{Kind: codec.PatTag, Tag: codec.TagInt},
			}, Default: codec.NoDefault},
			want: 0,
		},
		{
			name: "default arm",
			val:  codec.Unit(),
			spec: &codec.MatchSpec{Patterns: []codec.Pattern{
				{Kind: codec.PatInt, Int: 1},
			}, Default: 7},
			want: 7,
		},
		{
			name: "no arm",
			val:  codec.Unit(),
			spec: &codec.MatchSpec{Patterns: []codec.Pattern{
				{Kind: codec.PatBool, Bool: true},
			}, Default: codec.NoDefault},
			wantErr: ErrNoSuchBranch,
		},
	}
	for _, tc := range cases {
		got, err := computeMatch(tc.val, tc.spec)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("%s: got %v; want %v", tc.name, err, tc.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: case = %d; want %d", tc.name, got, tc.want)
		}
	}
}

// An async builtin completes through a cooperative sub-task.
func TestAsyncBuiltin(t *testing.T) {
	st := newTestStore(t)
	reg := builtin.Default()
	reg.RegisterAsync("slow42", func(_ context.Context, st *store.Store, _ []store.ObjectRef) (store.ObjectRef, error) {
		return st.NewObject(codec.Int64(42))
	})

	b := codec.NewCodeBuilder("async")
	anchor := b.Constant(mustObject(t, st, codec.Unit()).Ptr())
	b.Ret(b.Builtin("slow42", anchor))
	code := mustBuild(t, b)

	codeRef := mustObject(t, st, codec.CodeValue(code))
	m := NewMachine(st, nil, reg, nil)
	if got := forceInt(t, m, thunkOf(t, st, codeRef)); got != 42 {
		t.Errorf("async builtin = %d; want 42", got)
	}
}

// A failing force is not memoized: the sentinel clears and a retry runs.
func TestErrorNotMemoized(t *testing.T) {
	st := newTestStore(t)
	var calls atomic.Int64
	reg := builtin.Default()
	reg.RegisterSync("flaky", func(st *store.Store, _ []store.ObjectRef) (store.ObjectRef, error) {
		if calls.Add(1) == 1 {
			return store.ObjectRef{}, errors.New("transient failure")
		}
		return st.NewObject(codec.Int64(8))
	})

	b := codec.NewCodeBuilder("flaky")
	anchor := b.Constant(mustObject(t, st, codec.Unit()).Ptr())
	b.Ret(b.Builtin("flaky", anchor))
	code := mustBuild(t, b)

	codeRef := mustObject(t, st, codec.CodeValue(code))
	thunk := thunkOf(t, st, codeRef)
	m := NewMachine(st, nil, reg, nil)

	if _, err := m.Force(context.Background(), thunk); err == nil {
		t.Fatalf("first force succeeded; want error")
	}
	if got := forceInt(t, m, thunk); got != 8 {
		t.Errorf("retry = %d; want 8", got)
	}
	if calls.Load() != 2 {
		t.Errorf("builtin ran %d times; want 2", calls.Load())
	}
}

func TestUnknownBuiltin(t *testing.T) {
	st := newTestStore(t)
	b := codec.NewCodeBuilder("unknown")
	anchor := b.Constant(mustObject(t, st, codec.Unit()).Ptr())
	b.Ret(b.Builtin("no-such-op", anchor))
	code := mustBuild(t, b)

	codeRef := mustObject(t, st, codec.CodeValue(code))
	m := NewMachine(st, nil, nil, nil)
	_, err := m.Force(context.Background(), thunkOf(t, st, codeRef))
	if !errors.Is(err, builtin.ErrUnknownBuiltin) {
		t.Errorf("got %v; want ErrUnknownBuiltin", err)
	}
}
