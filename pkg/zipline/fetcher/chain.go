package fetcher

import (
	"context"
	"fmt"

	"github.com/opencontainers/go-digest"
	"github.com/samber/lo"

	zerrdefs "github.com/wuxler/zipline/pkg/zipline/errdefs"
	"github.com/wuxler/zipline/pkg/zipline/cache"
	"github.com/wuxler/zipline/pkg/zipline/manifest"
)

// Chain composes the embedded and cache-or-http tiers in the order each kind
// of request needs: modules try fast local sources first, manifests try the
// network first so freshness wins. It also owns Pin/Unpin, since only the
// cache tier has anything to pin.
type Chain struct {
	embedded *Embedded
	cacheOr  *Cache
	cache    cache.Cache
}

// NewChain builds a Chain over the given cache and embedded filesystem. http
// may be nil, meaning no network tier is configured at all (a fully offline
// deployment); module/manifest requests then only ever resolve from embedded
// or cache sources.
func NewChain(c cache.Cache, embedded *Embedded, http *HTTP) *Chain {
	return &Chain{
		embedded: embedded,
		cacheOr:  NewCache(c, http),
		cache:    c,
	}
}

// FetchModule consults embedded, then cache-or-http, in that order.
func (c *Chain) FetchModule(ctx context.Context, appName, id string, hash digest.Digest, url string) ([]byte, bool, error) {
	for _, f := range []Fetcher{c.embedded, c.cacheOr} {
		data, found, err := f.FetchModule(ctx, appName, id, hash, url)
		if err != nil {
			return nil, false, err
		}
		if found {
			return data, true, nil
		}
	}
	return nil, false, nil
}

// FetchManifest consults cache-or-http, then embedded -- the reverse of
// FetchModule's order, so a fresh network copy wins over a stale local one.
// With an empty url there is no network copy, and it consults embedded
// first, then the pinned cache.
func (c *Chain) FetchManifest(ctx context.Context, appName, url string) ([]byte, *manifest.Manifest, bool, error) {
	order := []Fetcher{c.cacheOr, c.embedded}
	if url == "" {
		order = []Fetcher{c.embedded, c.cacheOr}
	}
	for _, f := range order {
		raw, m, found, err := f.FetchManifest(ctx, appName, url)
		if err != nil {
			return nil, nil, false, err
		}
		if found {
			return raw, m, true, nil
		}
	}
	return nil, nil, false, nil
}

// Pin persists raw (the manifest bytes) in the cache and marks it, together
// with every module hash the manifest lists, as pinned for appName. Every
// other pin previously held for appName is released.
func (c *Chain) Pin(ctx context.Context, appName string, raw []byte, m *manifest.Manifest) error {
	manifestHash := digest.FromBytes(raw)
	if _, err := c.cache.GetOrPut(ctx, manifestHash, func(context.Context) ([]byte, error) {
		return raw, nil
	}); err != nil {
		return fmt.Errorf("fetcher: pin: store manifest: %w", err)
	}

	moduleHashes := lo.Map(lo.Values(m.Modules), func(mod *manifest.Module, _ int) digest.Digest {
		return mod.SHA256
	})

	if err := c.cache.Pin(ctx, appName, manifestHash, append(moduleHashes, manifestHash)); err != nil {
		return fmt.Errorf("%w: %v", zerrdefs.ErrCacheCorrupt, err)
	}
	return nil
}

// Unpin releases the pin for appName's current manifest, identified by its
// raw bytes' hash.
func (c *Chain) Unpin(ctx context.Context, appName string, raw []byte) error {
	manifestHash := digest.FromBytes(raw)
	return c.cache.Unpin(ctx, appName, manifestHash)
}
