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

// Package vm implements the lazy-evaluation machine: a forcing loop that
// reduces thunks to weak-head normal form by executing their code objects
// as dependency-ordered dataflow, with per-invocation registers, a ready
// queue, cooperative sub-tasks, and identity-keyed memoization.
package vm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lumen-lang/go-lumen/builtin"
	"github.com/lumen-lang/go-lumen/codec"
	"github.com/lumen-lang/go-lumen/store"
)

// Machine evaluates thunks against a shared store.  The trace cache
// pins results for the machine's lifetime; updating the world a machine
// computes over means instantiating a new machine.
type Machine struct {
	store    *store.Store
	cache    *TraceCache
	builtins *builtin.Registry
	log      *zap.SugaredLogger
}

// NewMachine creates a machine over st.  cache may be nil for a fresh
// cache, builtins may be nil for the default registry, and logger may be
// nil to disable logging.
func NewMachine(st *store.Store, cache *TraceCache, builtins *builtin.Registry, logger *zap.Logger) *Machine {
	if cache == nil {
		cache = NewTraceCache()
	}
	if builtins == nil {
		builtins = builtin.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		store:    st,
		cache:    cache,
		builtins: builtins,
		log:      logger.Sugar().With("machine", uuid.NewString()[:8]),
	}
}

// Store returns the machine's object store.
func (m *Machine) Store() *store.Store { return m.store }

// Cache returns the machine's trace cache.
func (m *Machine) Cache() *TraceCache { return m.cache }

// opResult is the interpreter's verdict on one op.
type opResult struct {
	kind resultKind
	ref  store.ObjectRef
}

type resultKind uint8

const (
	resContinue resultKind = iota
	resRet                 // the object whose value is the stack's result
	resForceRet            // the thunk to tail-call into
)

// Force reduces ref to weak-head normal form.  Results are memoized by
// thunk identity; a tail-forced chain records the final result against
// every thunk traversed.  Errors are not memoized.
func (m *Machine) Force(ctx context.Context, ref store.ObjectRef) (store.ObjectRef, error) {
	// Builders for every in-progress thunk along the current tail chain.
	var pending []*TraceBuilder
	abandon := func() {
		for _, b := range pending {
			b.Abandon()
		}
	}
	for {
		d, err := ref.Value()
		if err != nil {
			abandon()
			return store.ObjectRef{}, err
		}
		v, err := d.Decode()
		if err != nil {
			abandon()
			return store.ObjectRef{}, err
		}
		if v.WHNF() {
			m.log.Debugw("already whnf", "ptr", ref.Ptr())
			for _, b := range pending {
				b.Returned(ref)
			}
			return ref, nil
		}
		lookup := m.cache.Query(ref)
		if lookup.Hit {
			m.log.Debugw("trace hit", "ptr", ref.Ptr())
			for _, b := range pending {
				b.Returned(lookup.Value)
			}
			return lookup.Value, nil
		}
		m.log.Debugw("trace miss", "ptr", ref.Ptr())
		pending = append(pending, lookup.Trace)

		res, err := m.forceStack(ctx, v)
		if err != nil {
			abandon()
			return store.ObjectRef{}, err
		}
		switch res.kind {
		case resRet:
			for _, b := range pending {
				b.Returned(res.ref)
			}
			return res.ref, nil
		case resForceRet:
			// Tail call: continue the loop with the next thunk instead of
			// recursing, so chains force in constant native stack.
			m.log.Debugw("tail force", "from", ref.Ptr(), "to", res.ref.Ptr())
			ref = res.ref
		default:
			abandon()
			return store.ObjectRef{}, fmt.Errorf("%w: continue escaped the stack", ErrNotImplemented)
		}
	}
}

// forceStack runs a single stack worth of forcing for the thunk value tv
// and returns the first Ret or ForceRet observed.
func (m *Machine) forceStack(ctx context.Context, tv *codec.Value) (opResult, error) {
	target := m.store.Get(tv.Target)
	td, err := target.Value()
	if err != nil {
		return opResult{}, err
	}
	targetVal, err := td.Decode()
	if err != nil {
		return opResult{}, err
	}

	var codeRef store.ObjectRef
	var args []store.ObjectRef
	switch targetVal.Tag {
	case codec.TagThunk:
		// A thunk of a thunk reduces by tail-forcing the inner one.
		return opResult{kind: resForceRet, ref: target}, nil
	case codec.TagCode:
		codeRef = target
	case codec.TagPartial:
		codeRef = m.store.Get(targetVal.CodePtr)
		args = make([]store.ObjectRef, len(targetVal.Args))
		for i, p := range targetVal.Args {
			args[i] = m.store.Get(p)
		}
	default:
		return opResult{}, fmt.Errorf("%w: force target is %s, not code or partial", ErrTypeMismatch, targetVal.Tag)
	}

	cd, err := codeRef.Value()
	if err != nil {
		return opResult{}, err
	}
	codeVal, err := cd.Decode()
	if err != nil {
		return opResult{}, err
	}
	if codeVal.Tag != codec.TagCode {
		return opResult{}, fmt.Errorf("%w: partial lambda is %s, not code", ErrTypeMismatch, codeVal.Tag)
	}
	code := codeVal.Code

	queue := NewExecQueue(len(code.Ops))
	regs := NewRegisters(m.store)
	if err := m.populate(regs, queue, code, args); err != nil {
		return opResult{}, err
	}

	// The executor scope: the group and its context are torn down before
	// this function returns, so no sub-task outlives the registers and
	// queue it borrows.
	stackCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(stackCtx)

	var res opResult
	var loopErr error
	for {
		addr, err := queue.NextOp(gctx)
		if err != nil {
			loopErr = err
			break
		}
		op := &code.Ops[addr]
		m.log.Debugw("dispatch", "code", code.Name, "op", addr, "opcode", op.Opcode.String())
		r, err := m.execOp(gctx, g, op, code, regs, queue)
		if err != nil {
			loopErr = err
			break
		}
		if r.kind != resContinue {
			res = r
			break
		}
	}

	// Cancel whatever is still running, then wait so borrowed references
	// are dropped before the registers and queue go away.
	cancel()
	waitErr := g.Wait()
	if loopErr != nil {
		// NextOp unblocks with context.Canceled when a sub-task fails; the
		// sub-task's own error is the one to surface.
		if errors.Is(loopErr, context.Canceled) && waitErr != nil && !errors.Is(waitErr, context.Canceled) {
			return opResult{}, waitErr
		}
		return opResult{}, loopErr
	}
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return opResult{}, waitErr
	}
	return res, nil
}

// populate seeds the registers and queue with the code object's
// constants and the invocation arguments.  Parameters beyond the
// supplied arguments stay unbound; a consumer reaching one lifts it.
func (m *Machine) populate(regs *Registers, queue *ExecQueue, code *codec.Code, args []store.ObjectRef) error {
	for _, k := range code.Constants {
		if err := regs.SetObject(k.Dest, m.store.Get(k.Ptr)); err != nil {
			return err
		}
		if err := queue.Complete(k.Dest, code); err != nil {
			return err
		}
	}
	for i, dest := range code.Params {
		if i >= len(args) {
			break
		}
		if err := regs.SetObject(dest, args[i]); err != nil {
			return err
		}
		if err := queue.Complete(dest, code); err != nil {
			return err
		}
	}
	return nil
}

// execOp dispatches one op.  Force, Select, and asynchronous builtins
// spawn cooperative sub-tasks on g; everything else completes inline.
func (m *Machine) execOp(ctx context.Context, g *errgroup.Group, op *codec.Op, code *codec.Code, regs *Registers, queue *ExecQueue) (opResult, error) {
	switch op.Opcode {
	case codec.OpRet:
		ref, err := regs.Consume(op.Src)
		if err != nil {
			return opResult{}, err
		}
		return opResult{kind: resRet, ref: ref}, nil

	case codec.OpForceRet:
		ref, err := regs.Consume(op.Src)
		if err != nil {
			return opResult{}, err
		}
		return opResult{kind: resForceRet, ref: ref}, nil

	case codec.OpForce:
		arg, err := regs.Consume(op.Src)
		if err != nil {
			return opResult{}, err
		}
		dest := op.Dest
		g.Go(func() error {
			res, err := m.Force(ctx, arg)
			if err != nil {
				return err
			}
			if err := regs.SetObject(dest, res); err != nil {
				return err
			}
			return queue.Complete(dest, code)
		})

	case codec.OpBind:
		if err := m.execBind(op, code, regs, queue); err != nil {
			return opResult{}, err
		}

	case codec.OpInvoke:
		src, err := regs.Consume(op.Src)
		if err != nil {
			return opResult{}, err
		}
		thunk, err := m.store.NewObject(codec.Thunk(src.Ptr()))
		if err != nil {
			return opResult{}, err
		}
		if err := m.produce(op.Dest, thunk, code, regs, queue); err != nil {
			return opResult{}, err
		}

	case codec.OpBuiltin:
		args, err := m.consumeAll(regs, op.Args)
		if err != nil {
			return opResult{}, err
		}
		if m.builtins.IsSync(op.Name) {
			res, err := m.builtins.Sync(m.store, op.Name, args)
			if err != nil {
				return opResult{}, err
			}
			if err := m.produce(op.Dest, res, code, regs, queue); err != nil {
				return opResult{}, err
			}
		} else {
			dest := op.Dest
			name := op.Name
			g.Go(func() error {
				res, err := m.builtins.Async(ctx, m.store, name, args)
				if err != nil {
					return err
				}
				if err := regs.SetObject(dest, res); err != nil {
					return err
				}
				return queue.Complete(dest, code)
			})
		}

	case codec.OpMatch:
		scrut, err := regs.Consume(op.Src)
		if err != nil {
			return opResult{}, err
		}
		sd, err := scrut.Value()
		if err != nil {
			return opResult{}, err
		}
		sv, err := sd.Decode()
		if err != nil {
			return opResult{}, err
		}
		caseIdx, err := computeMatch(sv, op.Match)
		if err != nil {
			return opResult{}, err
		}
		res, err := m.store.NewObject(codec.Int64(caseIdx))
		if err != nil {
			return opResult{}, err
		}
		if err := m.produce(op.Dest, res, code, regs, queue); err != nil {
			return opResult{}, err
		}

	case codec.OpSelect:
		branches, err := m.consumeAll(regs, op.Args)
		if err != nil {
			return opResult{}, err
		}
		caseRef, err := regs.Consume(op.Src)
		if err != nil {
			return opResult{}, err
		}
		cd, err := caseRef.Value()
		if err != nil {
			return opResult{}, err
		}
		cv, err := cd.Decode()
		if err != nil {
			return opResult{}, err
		}
		caseIdx, err := cv.AsInt()
		if err != nil {
			return opResult{}, fmt.Errorf("%w: select case is %s, not int", ErrTypeMismatch, cv.Tag)
		}
		if caseIdx < 0 || caseIdx >= int64(len(branches)) {
			return opResult{}, fmt.Errorf("%w: select case %d of %d branches", ErrNoSuchBranch, caseIdx, len(branches))
		}
		chosen := branches[caseIdx]
		dest := op.Dest
		g.Go(func() error {
			res, err := m.Force(ctx, chosen)
			if err != nil {
				return err
			}
			if err := regs.SetObject(dest, res); err != nil {
				return err
			}
			return queue.Complete(dest, code)
		})

	case codec.OpRecForce:
		return opResult{}, fmt.Errorf("%w: rec-force", ErrNotImplemented)

	default:
		return opResult{}, fmt.Errorf("%w: opcode %d", ErrNotImplemented, op.Opcode)
	}
	return opResult{kind: resContinue}, nil
}

// execBind composes a new partial from a code or partial plus freshly
// bound arguments.  New arguments are applied before previously bound
// ones.
func (m *Machine) execBind(op *codec.Op, code *codec.Code, regs *Registers, queue *ExecQueue) error {
	lam, err := regs.Consume(op.Src)
	if err != nil {
		return err
	}
	ld, err := lam.Value()
	if err != nil {
		return err
	}
	lv, err := ld.Decode()
	if err != nil {
		return err
	}
	var codePtr codec.ObjPointer
	var oldArgs []codec.ObjPointer
	switch lv.Tag {
	case codec.TagCode:
		codePtr = lam.Ptr()
	case codec.TagPartial:
		codePtr = lv.CodePtr
		oldArgs = lv.Args
	default:
		return fmt.Errorf("%w: bind target is %s, not code or partial", ErrTypeMismatch, lv.Tag)
	}
	combined := make([]codec.ObjPointer, 0, len(op.Args)+len(oldArgs))
	for _, id := range op.Args {
		ref, err := regs.Consume(id)
		if err != nil {
			return err
		}
		combined = append(combined, ref.Ptr())
	}
	combined = append(combined, oldArgs...)
	partial, err := m.store.NewObject(codec.Partial(codePtr, combined))
	if err != nil {
		return err
	}
	return m.produce(op.Dest, partial, code, regs, queue)
}

// produce stores an op's result and notifies its consumers.
func (m *Machine) produce(dest codec.Dest, ref store.ObjectRef, code *codec.Code, regs *Registers, queue *ExecQueue) error {
	if err := regs.SetObject(dest, ref); err != nil {
		return err
	}
	return queue.Complete(dest, code)
}

func (m *Machine) consumeAll(regs *Registers, ids []codec.ObjectID) ([]store.ObjectRef, error) {
	out := make([]store.ObjectRef, len(ids))
	for i, id := range ids {
		ref, err := regs.Consume(id)
		if err != nil {
			return nil, err
		}
		out[i] = ref
	}
	return out, nil
}

// computeMatch returns the arm index of the first pattern matching the
// scrutinee, the default arm when none does, or ErrNoSuchBranch when the
// specification has no default.
func computeMatch(v *codec.Value, spec *codec.MatchSpec) (int64, error) {
	if spec == nil {
		return 0, fmt.Errorf("%w: match without specification", ErrTypeMismatch)
	}
	for i, p := range spec.Patterns {
		switch p.Kind {
		case codec.PatTag:
			if v.Tag == p.Tag {
				return int64(i), nil
			}
		case codec.PatInt:
			if v.Tag == codec.TagInt && v.Int == p.Int {
				return int64(i), nil
			}
		case codec.PatBool:
			if v.Tag == codec.TagBool && v.Bool == p.Bool {
				return int64(i), nil
			}
		}
	}
	if spec.Default >= 0 {
		return int64(spec.Default), nil
	}
	return 0, fmt.Errorf("%w: no arm matches %s", ErrNoSuchBranch, v.Tag)
}
