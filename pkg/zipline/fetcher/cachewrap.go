package fetcher

import (
	"context"
	"fmt"

	"github.com/opencontainers/go-digest"

	"github.com/wuxler/zipline/pkg/xlog"
	zerrdefs "github.com/wuxler/zipline/pkg/zipline/errdefs"
	"github.com/wuxler/zipline/pkg/zipline/cache"
	"github.com/wuxler/zipline/pkg/zipline/manifest"
)

// Cache composes the content-addressed cache with the HTTP tier.
//
// For modules it is cache-first: a READY entry satisfies the request
// directly; a miss delegates to HTTP as cache.GetOrPut's producer, so the
// download is verified and persisted in the same step.
//
// For manifests it is network-first: a manifest has no hash known in
// advance, so there is nothing to key a GetOrPut on until after it has been
// fetched once. A successful network fetch wins outright; failure or an
// empty url falls back to whatever manifest is currently pinned for appName.
type Cache struct {
	cache cache.Cache
	http  *HTTP
}

// NewCache builds a Cache fetcher over c and http.
func NewCache(c cache.Cache, http *HTTP) *Cache {
	return &Cache{cache: c, http: http}
}

func (c *Cache) FetchModule(ctx context.Context, appName, id string, hash digest.Digest, url string) ([]byte, bool, error) {
	if data, ok, err := c.cache.Read(ctx, hash); err != nil {
		return nil, false, err
	} else if ok {
		return data, true, nil
	}

	if url == "" {
		return nil, false, nil
	}

	data, err := c.cache.GetOrPut(ctx, hash, func(ctx context.Context) ([]byte, error) {
		b, found, err := c.http.FetchModule(ctx, appName, id, hash, url)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: module %s: no http source", zerrdefs.ErrFetchFailed, id)
		}
		return b, nil
	})
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (c *Cache) FetchManifest(ctx context.Context, appName, url string) ([]byte, *manifest.Manifest, bool, error) {
	if url != "" {
		raw, m, found, err := c.http.FetchManifest(ctx, appName, url)
		if err != nil {
			xlog.C(ctx).WarnfContext(ctx, "manifest fetch over network failed for %s, falling back to pinned cache: %v", appName, err)
		} else if found {
			return raw, m, true, nil
		}
	}

	manifestHash, ok, err := c.cache.FindPin(ctx, appName)
	if err != nil {
		return nil, nil, false, err
	}
	if !ok {
		return nil, nil, false, nil
	}

	raw, found, err := c.cache.Read(ctx, manifestHash)
	if err != nil {
		return nil, nil, false, err
	}
	if !found {
		return nil, nil, false, nil
	}

	m, err := manifest.Parse(raw)
	if err != nil {
		return nil, nil, false, err
	}
	return raw, m, true, nil
}
