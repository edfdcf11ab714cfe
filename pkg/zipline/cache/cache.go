// Package cache implements the content-addressed, size-bounded, reference
// counted file cache that backs zipline's tiered fetch pipeline. Entries are
// keyed by SHA-256; a persisted index tracks state and pin references so the
// cache survives process restarts; eviction runs LRU over unpinned, ready
// entries whenever the index changes.
package cache

import (
	"context"
	"time"

	"github.com/opencontainers/go-digest"
)

// State is a cache entry's position in its lifecycle.
type State string

// Cache entry states.
const (
	// StateDirtyDownload marks an entry whose bytes are still being written.
	StateDirtyDownload State = "DIRTY_DOWNLOAD"
	// StateReady marks an entry with verified, readable bytes on disk.
	StateReady State = "READY"
)

// Entry is one row of the cache's index.
type Entry struct {
	Hash       digest.Digest
	Size       int64
	State      State
	LastUsedMs int64
}

// Stats is a point-in-time snapshot of cache disk usage, for operators.
type Stats struct {
	TotalBytes     int64
	PinnedBytes    int64
	EvictableBytes int64
	ReadyCount     int
	DirtyCount     int
}

// Producer supplies the bytes for a cache miss. A failed Producer leaves the
// entry absent, not in a poisoned state; every waiter coalesced onto the same
// call observes the same failure.
type Producer func(ctx context.Context) ([]byte, error)

// Cache is the content-addressed store's public contract.
type Cache interface {
	// GetOrPut returns the cached bytes for hash if READY; otherwise it calls
	// producer, verifies the result hashes to hash, writes it to disk,
	// flips the entry to READY, and runs eviction before returning.
	// Concurrent calls for the same hash coalesce onto a single producer
	// invocation.
	GetOrPut(ctx context.Context, hash digest.Digest, producer Producer) ([]byte, error)

	// Read returns the cached bytes for hash only if already READY; it never
	// invokes a producer. It is used to read a manifest previously pinned for
	// an application, without knowing a Producer for it.
	Read(ctx context.Context, hash digest.Digest) ([]byte, bool, error)

	// Pin creates or updates the pin record binding (appName, manifestHash)
	// to fileHashes. Every listed hash must already be READY. On success,
	// every other pin for appName is released.
	Pin(ctx context.Context, appName string, manifestHash digest.Digest, fileHashes []digest.Digest) error

	// Unpin removes the pin for (appName, manifestHash) and runs eviction.
	Unpin(ctx context.Context, appName string, manifestHash digest.Digest) error

	// FindPin returns the manifest hash currently pinned for appName, if any.
	FindPin(ctx context.Context, appName string) (digest.Digest, bool, error)

	// Prune drops DIRTY_DOWNLOAD entries whose backing files are absent or
	// stale, reconciles orphaned files, and runs eviction. Called once at
	// startup before the cache serves any request.
	Prune(ctx context.Context) error

	// Stats reports current disk usage.
	Stats(ctx context.Context) (Stats, error)

	// Close releases the cache's file-system and database handles.
	Close() error
}

// Clock abstracts time for testability; production code uses a real clock,
// tests inject a fake one to assert LRU eviction order deterministically.
type Clock interface {
	Now() time.Time
}
