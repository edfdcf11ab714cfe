// Package fetcher implements the tiered fetch pipeline: an ordered chain of
// sources consulted in turn for module bytes and application manifests, with
// the first hit winning.
package fetcher

import (
	"context"

	"github.com/opencontainers/go-digest"

	"github.com/wuxler/zipline/pkg/zipline/manifest"
)

// Fetcher is the uniform capability every tier of the chain implements. A
// (nil, false, nil) result means "miss, try the next tier" -- not an error.
type Fetcher interface {
	// FetchModule returns the bytes for a module identified by its expected
	// content hash. found is false on a miss; err is non-nil only on a
	// transport or I/O failure this tier cannot recover from.
	FetchModule(ctx context.Context, appName, id string, hash digest.Digest, url string) (data []byte, found bool, err error)

	// FetchManifest returns the raw manifest bytes and its parsed form. url
	// may be empty, meaning "no network source is available for this call"
	// -- tiers that only serve local sources ignore it; tiers that require
	// a URL must report a miss rather than an error.
	FetchManifest(ctx context.Context, appName, url string) (raw []byte, parsed *manifest.Manifest, found bool, err error)
}
