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

// Package graph provides the construction graph used when assembling
// code objects.  Node references are one level of indirection away from
// node slots, so a reference can be created before its node exists and
// patched afterwards; that is how recursive definitions are built.
package graph

import (
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set"
)

// ErrNoRoot is returned by Flatten when no root has been set.
var ErrNoRoot = errors.New("graph: no root set")

// ErrBadNode is returned when a reference does not resolve to a node.
var ErrBadNode = errors.New("graph: invalid node reference")

// ErrNotTemp is returned when SetTo is called on a bound reference.
var ErrNotTemp = errors.New("graph: reference is already bound")

// Node is anything a graph can hold.
type Node interface {
	// OutEdges returns the references this node points at.
	OutEdges() []NodeRef
}

// NodeRef names a node slot.  Copies share the slot: binding a
// temporary reference with SetTo is observed by every copy, which is
// what allows cycles to be tied after construction.
type NodeRef struct {
	cell *int
}

// Temp returns an unbound reference to be patched later with SetTo.
func Temp() NodeRef {
	return NodeRef{cell: new(int)}
}

// Bound reports whether the reference resolves to a node slot.
func (r NodeRef) Bound() bool { return r.cell != nil && *r.cell != 0 }

// SetTo binds a temporary reference to the slot of other.
func (r NodeRef) SetTo(other NodeRef) error {
	if r.Bound() {
		return ErrNotTemp
	}
	*r.cell = *other.cell
	return nil
}

// Graph is a slab of nodes plus an optional root.
type Graph struct {
	nodes []Node
	root  *NodeRef
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{}
}

// Insert adds a node and returns a reference to it.
func (g *Graph) Insert(n Node) NodeRef {
	g.nodes = append(g.nodes, n)
	idx := len(g.nodes) // slot indexes are 1-based; 0 means unbound
	return NodeRef{cell: &idx}
}

// InsertAt adds a node into the slot of a previously created temporary
// reference.
func (g *Graph) InsertAt(r NodeRef, n Node) {
	g.nodes = append(g.nodes, n)
	*r.cell = len(g.nodes)
}

// SetRoot marks the traversal entry point.
func (g *Graph) SetRoot(r NodeRef) { g.root = &r }

// Root returns the root reference, if set.
func (g *Graph) Root() (NodeRef, bool) {
	if g.root == nil {
		return NodeRef{}, false
	}
	return *g.root, true
}

// Get resolves a reference.
func (g *Graph) Get(r NodeRef) (Node, error) {
	if r.cell == nil || *r.cell == 0 || *r.cell > len(g.nodes) {
		return nil, ErrBadNode
	}
	return g.nodes[*r.cell-1], nil
}

// Flattened is a traversal of the graph from its root: the visit order
// and, for every reached node, the references pointing at it.
type Flattened struct {
	InEdges map[NodeRef][]NodeRef
	Order   []NodeRef
}

// Flatten walks the graph from the root, depth first, visiting every
// reachable node once.
func (g *Graph) Flatten() (*Flattened, error) {
	if g.root == nil {
		return nil, ErrNoRoot
	}
	out := &Flattened{InEdges: make(map[NodeRef][]NodeRef)}
	// Distinct references can name the same slot (a patched temporary and
	// the Insert-returned reference), so visits and in-edge keys are
	// canonicalized per slot.
	seen := mapset.NewSet()
	canon := make(map[int]NodeRef)
	canonical := func(r NodeRef) NodeRef {
		if c, ok := canon[*r.cell]; ok {
			return c
		}
		canon[*r.cell] = r
		return r
	}
	stack := []NodeRef{*g.root}
	for len(stack) > 0 {
		ref := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if ref.cell == nil {
			return nil, fmt.Errorf("%w: during flatten", ErrBadNode)
		}
		if !seen.Add(*ref.cell) {
			continue
		}
		ref = canonical(ref)
		n, err := g.Get(ref)
		if err != nil {
			return nil, fmt.Errorf("%w: during flatten", err)
		}
		out.Order = append(out.Order, ref)
		for _, edge := range n.OutEdges() {
			if edge.cell == nil {
				return nil, fmt.Errorf("%w: during flatten", ErrBadNode)
			}
			key := canonical(edge)
			out.InEdges[key] = append(out.InEdges[key], ref)
			stack = append(stack, edge)
		}
	}
	return out, nil
}
