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

	"github.com/golang/snappy"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"golang.org/x/crypto/sha3"

	"github.com/lumen-lang/go-lumen/codec"
	"github.com/lumen-lang/go-lumen/store"
)

// DBCache persists retrieval results in a leveldb keyed by the SHA3 of
// the URL, with snappy-compressed payloads.  Unlike Snapshot it
// survives process restarts, so cold machines skip refetching resources
// their predecessors already pulled.
type DBCache struct {
	inner Provider
	store *store.Store
	db    *leveldb.DB
}

// NewDBCache wraps inner with the given open database.
func NewDBCache(inner Provider, st *store.Store, db *leveldb.DB) *DBCache {
	return &DBCache{inner: inner, store: st, db: db}
}

// OpenDBCache wraps inner with a database at path.
func OpenDBCache(inner Provider, st *store.Store, path string) (*DBCache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return NewDBCache(inner, st, db), nil
}

// OpenMemDBCache wraps inner with a memory-backed database, for tests
// and ephemeral runs.
func OpenMemDBCache(inner Provider, st *store.Store) (*DBCache, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return NewDBCache(inner, st, db), nil
}

// Close releases the underlying database.
func (c *DBCache) Close() error { return c.db.Close() }

// Retrieve serves u from the database when present, otherwise pulls
// through the inner provider and records the result.
func (c *DBCache) Retrieve(ctx context.Context, u *url.URL) (store.ObjectRef, error) {
	key := sha3.Sum256([]byte(u.String()))
	if compressed, err := c.db.Get(key[:], nil); err == nil {
		body, err := snappy.Decode(nil, compressed)
		if err == nil {
			return c.store.NewObject(codec.Buffer(body))
		}
		// A corrupt entry falls through to a fresh retrieval.
	}
	ref, err := c.inner.Retrieve(ctx, u)
	if err != nil {
		return store.ObjectRef{}, err
	}
	body, err := bufferValue(ref)
	if err != nil {
		return store.ObjectRef{}, err
	}
	if err := c.db.Put(key[:], snappy.Encode(nil, body), nil); err != nil {
		return store.ObjectRef{}, err
	}
	return ref, nil
}
