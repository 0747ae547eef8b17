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

// Package builtin provides the machine's builtin operator registry.
// Synchronous builtins run inline on the interpreter goroutine;
// asynchronous builtins run as cooperative sub-tasks and must honor
// context cancellation.
package builtin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lumen-lang/go-lumen/store"
)

// ErrUnknownBuiltin is returned when a code object names an operator the
// registry does not know.
var ErrUnknownBuiltin = errors.New("builtin: unknown builtin")

// ErrArity is returned when a builtin receives the wrong argument count.
var ErrArity = errors.New("builtin: wrong number of arguments")

// SyncFunc is a synchronous operator.  Arguments arrive in WHNF only if
// the calling code forced them; builtins that need WHNF operands are
// expected to be called on forced values.
type SyncFunc func(st *store.Store, args []store.ObjectRef) (store.ObjectRef, error)

// AsyncFunc is an asynchronous operator.
type AsyncFunc func(ctx context.Context, st *store.Store, args []store.ObjectRef) (store.ObjectRef, error)

// Registry maps operator names to implementations.  Registration is
// expected at startup; lookups may come from any interpreter goroutine.
type Registry struct {
	mu    sync.RWMutex
	sync  map[string]SyncFunc
	async map[string]AsyncFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sync:  make(map[string]SyncFunc),
		async: make(map[string]AsyncFunc),
	}
}

// RegisterSync installs a synchronous operator, replacing any previous
// binding of the name.
func (r *Registry) RegisterSync(name string, fn SyncFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.async, name)
	r.sync[name] = fn
}

// RegisterAsync installs an asynchronous operator, replacing any
// previous binding of the name.
func (r *Registry) RegisterAsync(name string, fn AsyncFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sync, name)
	r.async[name] = fn
}

// IsSync reports whether name is a synchronous operator.  Unknown names
// report false; the error surfaces from the subsequent call.
func (r *Registry) IsSync(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sync[name]
	return ok
}

// Sync applies a synchronous operator.
func (r *Registry) Sync(st *store.Store, name string, args []store.ObjectRef) (store.ObjectRef, error) {
	r.mu.RLock()
	fn, ok := r.sync[name]
	r.mu.RUnlock()
	if !ok {
		return store.ObjectRef{}, fmt.Errorf("%w: %q", ErrUnknownBuiltin, name)
	}
	return fn(st, args)
}

// Async applies an asynchronous operator.
func (r *Registry) Async(ctx context.Context, st *store.Store, name string, args []store.ObjectRef) (store.ObjectRef, error) {
	r.mu.RLock()
	fn, ok := r.async[name]
	r.mu.RUnlock()
	if !ok {
		return store.ObjectRef{}, fmt.Errorf("%w: %q", ErrUnknownBuiltin, name)
	}
	return fn(ctx, st, args)
}
