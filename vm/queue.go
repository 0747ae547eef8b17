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
	"fmt"
	"sync"

	"github.com/lumen-lang/go-lumen/codec"
)

// ExecQueue drives one code block's execution by tracking dependencies.
// An op sits in the waiting map until all of its operand producers have
// completed, then moves to the ready queue exactly once.
type ExecQueue struct {
	// ready is buffered to the op count of the code block, so pushes
	// never block: each op is released at most once.
	ready chan codec.OpAddr

	mu      sync.Mutex
	waiting map[codec.OpAddr]uint16
}

// NewExecQueue creates a queue for a code block of numOps operations.
func NewExecQueue(numOps int) *ExecQueue {
	return &ExecQueue{
		ready:   make(chan codec.OpAddr, numOps),
		waiting: make(map[codec.OpAddr]uint16),
	}
}

// NextOp blocks until an op is ready or ctx is done.
func (q *ExecQueue) NextOp(ctx context.Context) (codec.OpAddr, error) {
	select {
	case addr := <-q.ready:
		return addr, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Complete notifies every consumer of dest that one of its dependencies
// has finished.
func (q *ExecQueue) Complete(dest codec.Dest, code *codec.Code) error {
	for _, addr := range dest.UsedBy {
		if err := q.depCompleteFor(addr, code); err != nil {
			return err
		}
	}
	return nil
}

// depCompleteFor records one completed dependency for the op at addr,
// releasing the op into the ready queue when its count reaches zero.
// The first notification reads the op's static NumDeps; ops with a
// single dependency skip the waiting map entirely.
func (q *ExecQueue) depCompleteFor(addr codec.OpAddr, code *codec.Code) error {
	if int(addr) >= len(code.Ops) {
		return fmt.Errorf("%w: completion for op %d of %d", ErrTypeMismatch, addr, len(code.Ops))
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if left, ok := q.waiting[addr]; ok {
		left--
		if left == 0 {
			delete(q.waiting, addr)
			q.ready <- addr
		} else {
			q.waiting[addr] = left
		}
		return nil
	}
	deps := code.Ops[addr].NumDeps
	if deps > 1 {
		q.waiting[addr] = deps - 1
	} else {
		q.ready <- addr
	}
	return nil
}
