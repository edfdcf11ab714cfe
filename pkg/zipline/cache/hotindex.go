package cache

import (
	"context"

	"github.com/wuxler/zipline/pkg/util/xcache"
)

// hotIndex is an in-process front cache of Entry metadata keyed by hash hex,
// so a GetOrPut hit does not round-trip to SQLite every time. It is
// invalidated explicitly by every call that mutates the files table. It is
// built on xcache.Cache, the same otter-backed generic cache the rest of the
// codebase uses for in-process memoization, rather than wiring otter
// directly a second time.
type hotIndex struct {
	entries xcache.Cache[Entry]
}

// newHotIndex builds the front cache. capacity is only checked to be
// positive; it does not bound the cache, whose size and TTL are fixed by
// xcache.NewMemory (no entry limit, one-hour expiry).
func newHotIndex(capacity int) *hotIndex {
	if capacity <= 0 {
		// Only possible with a misconfigured Config; callers pass a fixed
		// positive constant, so this is a programmer error.
		panic("cache: newHotIndex: capacity must be positive")
	}
	return &hotIndex{entries: xcache.NewMemory[Entry]()}
}

func (h *hotIndex) get(hash string) (Entry, bool) {
	return h.entries.Get(context.Background(), hash)
}

func (h *hotIndex) set(hash string, e Entry) {
	h.entries.Set(context.Background(), hash, e)
}

func (h *hotIndex) invalidate(hash string) {
	h.entries.Delete(context.Background(), hash)
}
