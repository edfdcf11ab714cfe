// Package event defines the external callback seam loader operations report
// through, plus a no-op and a logging implementation.
package event

import (
	"context"

	"github.com/opencontainers/go-digest"

	"github.com/wuxler/zipline/pkg/xlog"
)

// Listener observes the lifecycle of an application load.
type Listener interface {
	ApplicationLoadStart(ctx context.Context, appName, url string)
	ApplicationLoadEnd(ctx context.Context, appName, url string)
	ApplicationLoadFailed(ctx context.Context, appName, url string, err error)
}

// Telemetry is implemented optionally by a Listener that wants per-fetch and
// per-cache detail. Callers use EmitFetchAttempt/EmitCacheHit/etc, which
// silently do nothing when the configured Listener does not implement it.
type Telemetry interface {
	FetchAttempt(ctx context.Context, tier, id string)
	CacheHit(ctx context.Context, hash digest.Digest)
	CacheMiss(ctx context.Context, hash digest.Digest)
	Evicted(ctx context.Context, hash digest.Digest, size int64)
}

// EmitFetchAttempt reports a fetch attempt if l implements Telemetry.
func EmitFetchAttempt(ctx context.Context, l Listener, tier, id string) {
	if t, ok := l.(Telemetry); ok {
		t.FetchAttempt(ctx, tier, id)
	}
}

// EmitCacheHit reports a cache hit if l implements Telemetry.
func EmitCacheHit(ctx context.Context, l Listener, hash digest.Digest) {
	if t, ok := l.(Telemetry); ok {
		t.CacheHit(ctx, hash)
	}
}

// EmitCacheMiss reports a cache miss if l implements Telemetry.
func EmitCacheMiss(ctx context.Context, l Listener, hash digest.Digest) {
	if t, ok := l.(Telemetry); ok {
		t.CacheMiss(ctx, hash)
	}
}

// EmitEvicted reports an eviction if l implements Telemetry.
func EmitEvicted(ctx context.Context, l Listener, hash digest.Digest, size int64) {
	if t, ok := l.(Telemetry); ok {
		t.Evicted(ctx, hash, size)
	}
}

// NopListener discards every callback. It is the default when no Listener is
// configured.
type NopListener struct{}

var _ Listener = NopListener{}

func (NopListener) ApplicationLoadStart(context.Context, string, string)         {}
func (NopListener) ApplicationLoadEnd(context.Context, string, string)           {}
func (NopListener) ApplicationLoadFailed(context.Context, string, string, error) {}

// LoggingListener forwards every callback to the structured logger carried
// on the context, matching the reference codebase's convention of a logging
// implementation for every optional external seam.
type LoggingListener struct{}

var (
	_ Listener  = LoggingListener{}
	_ Telemetry = LoggingListener{}
)

func (LoggingListener) ApplicationLoadStart(ctx context.Context, appName, url string) {
	xlog.C(ctx).InfofContext(ctx, "application load start: app=%s url=%s", appName, url)
}

func (LoggingListener) ApplicationLoadEnd(ctx context.Context, appName, url string) {
	xlog.C(ctx).InfofContext(ctx, "application load end: app=%s url=%s", appName, url)
}

func (LoggingListener) ApplicationLoadFailed(ctx context.Context, appName, url string, err error) {
	xlog.C(ctx).ErrorfContext(ctx, "application load failed: app=%s url=%s: %v", appName, url, err)
}

func (LoggingListener) FetchAttempt(ctx context.Context, tier, id string) {
	xlog.C(ctx).DebugfContext(ctx, "fetch attempt: tier=%s id=%s", tier, id)
}

func (LoggingListener) CacheHit(ctx context.Context, hash digest.Digest) {
	xlog.C(ctx).DebugfContext(ctx, "cache hit: sha256=%s", hash)
}

func (LoggingListener) CacheMiss(ctx context.Context, hash digest.Digest) {
	xlog.C(ctx).DebugfContext(ctx, "cache miss: sha256=%s", hash)
}

func (LoggingListener) Evicted(ctx context.Context, hash digest.Digest, size int64) {
	xlog.C(ctx).InfofContext(ctx, "evicted: sha256=%s bytes=%d", hash, size)
}
