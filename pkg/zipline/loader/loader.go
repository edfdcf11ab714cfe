// Package loader provides the façade applications use to load a signed,
// content-addressed application bundle: fetch and verify its manifest, pull
// every module in dependency order, smoke-test the result, and pin it so it
// survives cache eviction and serves offline on the next run.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	imagespec "github.com/opencontainers/image-spec/specs-go"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/spf13/afero"

	"github.com/wuxler/zipline/pkg/xlog"
	"github.com/wuxler/zipline/pkg/zipline/cache"
	zerrdefs "github.com/wuxler/zipline/pkg/zipline/errdefs"
	"github.com/wuxler/zipline/pkg/zipline/event"
	"github.com/wuxler/zipline/pkg/zipline/fetcher"
	"github.com/wuxler/zipline/pkg/zipline/manifest"
	"github.com/wuxler/zipline/pkg/zipline/receiver"
	"github.com/wuxler/zipline/pkg/zipline/verify"
)

// Loader is the façade over the fetch chain, the receive engine, and the
// cache's pin/unpin lifecycle.
type Loader struct {
	chain    *fetcher.Chain
	verifier *verify.Verifier
	listener event.Listener
}

// New builds a Loader. c backs content-addressed storage and pins;
// embeddedFS is the read-only tree bundled with the binary; client is the
// outbound HTTP seam; verifier authenticates every manifest before it is
// trusted.
func New(c cache.Cache, embeddedFS afero.Fs, client fetcher.Client, verifier *verify.Verifier, opts ...Option) *Loader {
	cfg := newConfig(opts...)
	http := fetcher.NewHTTP(client, cfg.concurrentDownloads)
	chain := fetcher.NewChain(c, fetcher.NewEmbedded(embeddedFS), http)
	return &Loader{chain: chain, verifier: verifier, listener: cfg.listener}
}

// LoadOrFail fetches and verifies appName's manifest from manifestURL (the
// chain's usual embedded/cache/network tiers apply), receives every module
// in dependency order into a session built by newSession, runs the caller's
// Initializer, and pins the result. Any failure along the way closes the
// session, reports ApplicationLoadFailed, and returns the error.
func (l *Loader) LoadOrFail(ctx context.Context, appName, manifestURL string, newSession SessionFactory, init Initializer) (Session, error) {
	raw, m, err := l.FetchAndVerifyManifest(ctx, appName, manifestURL)
	if err != nil {
		l.listener.ApplicationLoadStart(ctx, appName, manifestURL)
		l.listener.ApplicationLoadFailed(ctx, appName, manifestURL, err)
		return nil, err
	}
	return l.LoadManifest(ctx, appName, manifestURL, raw, m, newSession, init)
}

// LoadManifest runs the receive-engine, Initializer, and pin steps of a load
// against an already-fetched-and-verified manifest. It exists separately
// from LoadOrFail so callers that fetch the manifest themselves (the
// continuous-load controller, which must compare manifest content across
// polls before deciding to load) do not pay for a second fetch.
func (l *Loader) LoadManifest(ctx context.Context, appName, manifestURL string, raw []byte, m *manifest.Manifest, newSession SessionFactory, init Initializer) (Session, error) {
	l.listener.ApplicationLoadStart(ctx, appName, manifestURL)

	session := newSession(appName, m)

	if err := receiver.Run(ctx, appName, m, receiver.Fetch(l.chain.FetchModule), session); err != nil {
		_ = session.Close()
		_ = l.chain.Unpin(ctx, appName, raw)
		l.listener.ApplicationLoadFailed(ctx, appName, manifestURL, err)
		return nil, err
	}

	if init != nil {
		if err := init(ctx, session); err != nil {
			wrapped := fmt.Errorf("%w: initializer rejected %s: %v", zerrdefs.ErrReceiverFailed, appName, err)
			_ = session.Close()
			_ = l.chain.Unpin(ctx, appName, raw)
			l.listener.ApplicationLoadFailed(ctx, appName, manifestURL, wrapped)
			return nil, wrapped
		}
	}

	if err := l.chain.Pin(ctx, appName, raw, m); err != nil {
		_ = session.Close()
		_ = l.chain.Unpin(ctx, appName, raw)
		l.listener.ApplicationLoadFailed(ctx, appName, manifestURL, err)
		return nil, err
	}

	l.listener.ApplicationLoadEnd(ctx, appName, manifestURL)
	return session, nil
}

// LoadOrFallBack tries LoadOrFail against manifestURL; on any failure it
// retries once with an empty manifest URL, which forces the fetch chain to
// satisfy the manifest from embedded or cached sources only.
func (l *Loader) LoadOrFallBack(ctx context.Context, appName, manifestURL string, newSession SessionFactory, init Initializer) (Session, error) {
	session, err := l.LoadOrFail(ctx, appName, manifestURL, newSession, init)
	if err == nil {
		return session, nil
	}
	xlog.C(ctx).WarnfContext(ctx, "load of %s via %s failed, retrying from local sources only: %v", appName, manifestURL, err)
	return l.LoadOrFail(ctx, appName, "", newSession, init)
}

// Download runs the same fetch/verify/receive pipeline as LoadOrFail but
// writes each module's bytes to dir/<sha256-hex>.zipline and the manifest to
// dir/<appName>.manifest.zipline.json instead of handing them to a Session.
func (l *Loader) Download(ctx context.Context, appName, dir string, fs afero.Fs, manifestURL string) error {
	raw, m, err := l.FetchAndVerifyManifest(ctx, appName, manifestURL)
	if err != nil {
		return err
	}

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("loader: download: create dir: %w", err)
	}

	writer := receiver.ReceiverFunc(func(_ context.Context, data []byte, _ string, hash digest.Digest) error {
		path := filepath.Join(dir, hash.Encoded()+".zipline")
		return afero.WriteFile(fs, path, data, 0o644)
	})

	if err := receiver.Run(ctx, appName, m, receiver.Fetch(l.chain.FetchModule), writer); err != nil {
		return err
	}

	manifestPath := filepath.Join(dir, appName+".manifest.zipline.json")
	if err := afero.WriteFile(fs, manifestPath, raw, 0o644); err != nil {
		return fmt.Errorf("loader: download: write manifest: %w", err)
	}

	return writeOCIIndex(fs, dir, m)
}

// writeOCIIndex writes an OCI image-spec index.json alongside a downloaded
// bundle's module blobs, each module rendered as its OCIDescriptor, so
// tooling built against the standard descriptor shape can consume the bundle
// without understanding the zipline manifest format.
func writeOCIIndex(fs afero.Fs, dir string, m *manifest.Manifest) error {
	ids := m.ModuleIDs()
	manifests := make([]v1.Descriptor, 0, len(ids))
	for _, id := range ids {
		manifests = append(manifests, m.Modules[id].OCIDescriptor())
	}

	index := v1.Index{
		Versioned: imagespec.Versioned{SchemaVersion: 2},
		MediaType: v1.MediaTypeImageIndex,
		Manifests: manifests,
	}
	raw, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("loader: download: marshal oci index: %w", err)
	}
	return afero.WriteFile(fs, filepath.Join(dir, "index.json"), raw, 0o644)
}

// FetchAndVerifyManifest consults the fetch chain for appName's manifest,
// authenticates it against the configured Verifier, and runs Validate. When
// url is non-empty, every non-empty module URL is resolved against it, so
// module URLs relative to the manifest become absolute; with an empty url
// module URLs are left as written.
func (l *Loader) FetchAndVerifyManifest(ctx context.Context, appName, url string) ([]byte, *manifest.Manifest, error) {
	raw, m, found, err := l.chain.FetchManifest(ctx, appName, url)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, fmt.Errorf("%w: no manifest source available for %s", zerrdefs.ErrFetchFailed, appName)
	}
	if err := l.verifier.Verify(raw, m); err != nil {
		return nil, nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}
	if url != "" {
		for id, mod := range m.Modules {
			if mod.URL == "" {
				continue
			}
			resolved, err := fetcher.Resolve(url, mod.URL)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: module %s url: %v", zerrdefs.ErrManifestParseFailed, id, err)
			}
			mod.URL = resolved
		}
	}
	return raw, m, nil
}
