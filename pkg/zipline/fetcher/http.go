package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	stdurl "net/url"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/semaphore"

	"github.com/wuxler/zipline/pkg/util/xhttp"
	"github.com/wuxler/zipline/pkg/util/xio"
	zerrdefs "github.com/wuxler/zipline/pkg/zipline/errdefs"
	"github.com/wuxler/zipline/pkg/zipline/manifest"
)

// Client is the seam this package consumes for outbound HTTP.
type Client = xhttp.Client

// maxDownloadBytes caps a single module or manifest download, guarding
// against a compromised or misbehaving origin serving an unbounded body.
const maxDownloadBytes = 512 * xio.MiB

// HTTP fetches modules and manifests over the network. The concurrency
// semaphore is acquired only around the byte-transfer itself, not around any
// surrounding cache bookkeeping or dependency waiting.
type HTTP struct {
	client Client
	sem    *semaphore.Weighted
}

// NewHTTP builds an HTTP fetcher bounding concurrent transfers to
// concurrentDownloads permits.
func NewHTTP(client Client, concurrentDownloads int64) *HTTP {
	return &HTTP{client: client, sem: semaphore.NewWeighted(concurrentDownloads)}
}

func (h *HTTP) FetchModule(ctx context.Context, _, _ string, _ digest.Digest, url string) ([]byte, bool, error) {
	if h == nil || url == "" {
		return nil, false, nil
	}
	data, err := h.download(ctx, url)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (h *HTTP) FetchManifest(ctx context.Context, _, url string) ([]byte, *manifest.Manifest, bool, error) {
	if h == nil || url == "" {
		return nil, nil, false, nil
	}
	raw, err := h.download(ctx, url)
	if err != nil {
		return nil, nil, false, err
	}
	m, err := manifest.Parse(raw)
	if err != nil {
		return nil, nil, false, err
	}
	return raw, m, true, nil
}

func (h *HTTP) download(ctx context.Context, url string) ([]byte, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("fetcher: http: acquire semaphore: %w", err)
	}
	defer h.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request for %s: %v", zerrdefs.ErrFetchFailed, url, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", zerrdefs.ErrFetchFailed, url, err)
	}
	body := xio.NewCanceledReadCloser(ctx, resp.Body)
	defer xio.CloseAndLogError(body, "fetcher: http: response body: "+url)

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %s: status %d", zerrdefs.ErrFetchFailed, url, resp.StatusCode)
	}

	var buf bytes.Buffer
	if err := xio.LimitCopy(&buf, body, maxDownloadBytes); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", zerrdefs.ErrFetchFailed, url, err)
	}
	return buf.Bytes(), nil
}

// Resolve resolves relativeURL against baseURL, matching the reference
// codebase's convention for module URLs expressed relative to their
// manifest's own URL.
func Resolve(baseURL, relativeURL string) (string, error) {
	base, err := stdurl.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("fetcher: parse base url %q: %w", baseURL, err)
	}
	rel, err := stdurl.Parse(relativeURL)
	if err != nil {
		return "", fmt.Errorf("fetcher: parse relative url %q: %w", relativeURL, err)
	}
	return base.ResolveReference(rel).String(), nil
}
