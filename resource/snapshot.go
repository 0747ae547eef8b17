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

package resource

import (
	"context"
	"net/url"

	lru "github.com/hashicorp/golang-lru"

	"github.com/lumen-lang/go-lumen/store"
)

// DefaultSnapshotEntries sizes a snapshot's pin cache.
const DefaultSnapshotEntries = 1024

// Snapshot pins retrieval results so a machine observes one consistent
// version of every resource for its lifetime, even if the underlying
// resource changes mid-run.
type Snapshot struct {
	inner Provider
	cache *lru.Cache
}

// NewSnapshot wraps inner with a pin cache of at most entries URLs.
// If entries is 0, DefaultSnapshotEntries is used.
func NewSnapshot(inner Provider, entries int) (*Snapshot, error) {
	if entries == 0 {
		entries = DefaultSnapshotEntries
	}
	cache, err := lru.New(entries)
	if err != nil {
		return nil, err
	}
	return &Snapshot{inner: inner, cache: cache}, nil
}

// Retrieve returns the pinned object for u, retrieving through the
// inner provider on first sight.
func (s *Snapshot) Retrieve(ctx context.Context, u *url.URL) (store.ObjectRef, error) {
	key := u.String()
	if v, ok := s.cache.Get(key); ok {
		return v.(store.ObjectRef), nil
	}
	ref, err := s.inner.Retrieve(ctx, u)
	if err != nil {
		return store.ObjectRef{}, err
	}
	s.cache.Add(key, ref)
	return ref, nil
}
