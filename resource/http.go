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
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/lumen-lang/go-lumen/codec"
	"github.com/lumen-lang/go-lumen/store"
)

// DefaultHTTPCacheBytes sizes the in-memory response cache (8 MiB).
const DefaultHTTPCacheBytes = 8 * 1024 * 1024

// HTTPProvider serves http:// and https:// URLs.  Fetched bodies are
// kept in a byte cache so repeated retrievals of one URL hit the network
// once; transient failures are retried with exponential backoff.
type HTTPProvider struct {
	store  *store.Store
	client *http.Client
	cache  *fastcache.Cache
	log    *zap.SugaredLogger
}

// NewHTTPProvider creates an HTTP provider inserting into st.  client
// may be nil for a default with a 30s timeout; logger may be nil.
func NewHTTPProvider(st *store.Store, client *http.Client, logger *zap.Logger) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPProvider{
		store:  st,
		client: client,
		cache:  fastcache.New(DefaultHTTPCacheBytes),
		log:    logger.Sugar(),
	}
}

// Retrieve fetches the URL body into a buffer value.
func (p *HTTPProvider) Retrieve(ctx context.Context, u *url.URL) (store.ObjectRef, error) {
	if u.Scheme != "http" && u.Scheme != "https" {
		return store.ObjectRef{}, fmt.Errorf("%w: scheme %q", ErrNotFound, u.Scheme)
	}
	key := []byte(u.String())
	if body, ok := p.cache.HasGet(nil, key); ok {
		p.log.Debugw("http cache hit", "url", u.String(), "bytes", len(body))
		return p.store.NewObject(codec.Buffer(body))
	}
	var body []byte
	fetch := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("resource: %s: status %d", u, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("resource: %s: status %d", u, resp.StatusCode))
		}
		body, err = io.ReadAll(resp.Body)
		return err
	}
	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(fetch, backoff.WithMaxRetries(bo, 4)); err != nil {
		return store.ObjectRef{}, err
	}
	p.log.Debugw("http fetched", "url", u.String(), "bytes", len(body))
	p.cache.Set(key, body)
	return p.store.NewObject(codec.Buffer(body))
}
