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
	"fmt"
	"net/url"
	"os"

	"github.com/lumen-lang/go-lumen/codec"
	"github.com/lumen-lang/go-lumen/store"
)

// FileProvider serves file:// URLs from the local filesystem.
type FileProvider struct {
	store *store.Store
}

// NewFileProvider creates a file provider inserting into st.
func NewFileProvider(st *store.Store) *FileProvider {
	return &FileProvider{store: st}
}

// Retrieve reads the file at the URL path into a buffer value.
func (p *FileProvider) Retrieve(_ context.Context, u *url.URL) (store.ObjectRef, error) {
	if u.Scheme != "file" {
		return store.ObjectRef{}, fmt.Errorf("%w: scheme %q", ErrNotFound, u.Scheme)
	}
	b, err := os.ReadFile(u.Path)
	if err != nil {
		return store.ObjectRef{}, fmt.Errorf("resource: read %s: %w", u.Path, err)
	}
	return p.store.NewObject(codec.Buffer(b))
}
