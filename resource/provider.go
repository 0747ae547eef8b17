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

// Package resource loads external data into a machine's store.  A
// retrieved resource becomes a buffer value; providers are layered, the
// first one that can serve a URL wins.
package resource

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/lumen-lang/go-lumen/builtin"
	"github.com/lumen-lang/go-lumen/codec"
	"github.com/lumen-lang/go-lumen/store"
)

// ErrNotFound is returned when no provider can serve a URL.
var ErrNotFound = errors.New("resource: not found")

// Provider retrieves the contents of a URL as a store object.
type Provider interface {
	Retrieve(ctx context.Context, u *url.URL) (store.ObjectRef, error)
}

// Chain tries providers in order; the first success wins.
type Chain struct {
	providers []Provider
}

// NewChain creates a layered provider.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Retrieve tries each layer in order.  Any layer error moves on to the
// next layer; if every layer fails the result is ErrNotFound.
func (c *Chain) Retrieve(ctx context.Context, u *url.URL) (store.ObjectRef, error) {
	for _, p := range c.providers {
		if ref, err := p.Retrieve(ctx, u); err == nil {
			return ref, nil
		}
	}
	return store.ObjectRef{}, fmt.Errorf("%w: %s", ErrNotFound, u)
}

// RegisterFetch installs the asynchronous "fetch" builtin, which takes a
// buffer holding a URL and yields the retrieved resource as a buffer.
func RegisterFetch(reg *builtin.Registry, p Provider) {
	reg.RegisterAsync("fetch", func(ctx context.Context, st *store.Store, args []store.ObjectRef) (store.ObjectRef, error) {
		if len(args) != 1 {
			return store.ObjectRef{}, fmt.Errorf("%w: fetch takes 1, got %d", builtin.ErrArity, len(args))
		}
		d, err := args[0].Value()
		if err != nil {
			return store.ObjectRef{}, err
		}
		v, err := d.Decode()
		if err != nil {
			return store.ObjectRef{}, err
		}
		if v.Tag != codec.TagBuffer {
			return store.ObjectRef{}, fmt.Errorf("resource: fetch argument is %s, not buffer", v.Tag)
		}
		u, err := url.Parse(string(v.Buffer))
		if err != nil {
			return store.ObjectRef{}, fmt.Errorf("resource: bad url: %w", err)
		}
		return p.Retrieve(ctx, u)
	})
}

// bufferValue decodes a retrieved object back into raw bytes; cache
// layers use it to look through the refs handed up by inner providers.
func bufferValue(ref store.ObjectRef) ([]byte, error) {
	d, err := ref.Value()
	if err != nil {
		return nil, err
	}
	v, err := d.Decode()
	if err != nil {
		return nil, err
	}
	if v.Tag != codec.TagBuffer {
		return nil, fmt.Errorf("resource: retrieved %s, not buffer", v.Tag)
	}
	return v.Buffer, nil
}
