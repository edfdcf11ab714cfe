// Package errdefs defines the sentinel error kinds shared across the zipline
// packages. Callers should match against these with errors.Is; wrapped detail
// is attached with Newf/NewE from github.com/wuxler/zipline/pkg/errdefs.
package errdefs

import "errors"

var (
	// ErrFetchFailed signals a transport-level failure from a fetcher.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrChecksumMismatch signals that downloaded content does not hash to the
	// value recorded in the manifest.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrSignatureMismatch signals that a recognized signature did not verify.
	ErrSignatureMismatch = errors.New("signature mismatch")

	// ErrNoTrustedKey signals that no signature entry named a recognized key.
	ErrNoTrustedKey = errors.New("no trusted key")

	// ErrManifestParseFailed signals malformed manifest JSON.
	ErrManifestParseFailed = errors.New("manifest parse failed")

	// ErrCycleDetected signals a cycle in the module dependency graph.
	ErrCycleDetected = errors.New("dependency cycle detected")

	// ErrMissingDependency signals a dependsOnIds entry with no matching module.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrReceiverFailed signals that Receiver.Receive returned an error.
	ErrReceiverFailed = errors.New("receiver failed")

	// ErrCacheCorrupt signals an index row with no backing file, or vice versa.
	ErrCacheCorrupt = errors.New("cache corrupt")

	// ErrCacheFull signals that a single object exceeds the cache's max size
	// even after evicting everything evictable.
	ErrCacheFull = errors.New("cache full")
)
