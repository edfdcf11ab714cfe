package continuous_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuxler/zipline/pkg/zipline/continuous"
	zipcache "github.com/wuxler/zipline/pkg/zipline/cache"
	"github.com/wuxler/zipline/pkg/zipline/loader"
	"github.com/wuxler/zipline/pkg/zipline/verify"
)

type fakeClient struct {
	responses map[string]fakeResponse
	calls     map[string]int
}

type fakeResponse struct {
	status int
	body   []byte
}

func (f *fakeClient) Do(req *http.Request) (*http.Response, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	url := req.URL.String()
	f.calls[url]++
	resp, ok := f.responses[url]
	if !ok {
		return nil, fmt.Errorf("fake client: no response for %s", url)
	}
	return &http.Response{StatusCode: resp.status, Body: io.NopCloser(bytes.NewReader(resp.body))}, nil
}

func manifestJSON(t *testing.T, mainModuleID string, moduleContent string) []byte {
	t.Helper()
	b := []byte(moduleContent)
	doc := map[string]any{
		"modules": map[string]any{
			"a": map[string]any{"url": "https://cdn.example/a.zipline", "sha256": digest.FromBytes(b).Encoded()},
		},
		"mainModuleId": mainModuleID,
		"mainFunction": "main",
		"signatures":   map[string]any{},
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return raw
}

func newFixture(t *testing.T) (*loader.Loader, *fakeClient) {
	t.Helper()
	c, err := zipcache.New(t.TempDir(), zipcache.WithFS(afero.NewOsFs()), zipcache.WithMaxSizeBytes(1<<20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	client := &fakeClient{responses: map[string]fakeResponse{
		"https://cdn.example/a.zipline": {status: 200, body: []byte("module a bytes")},
	}}
	l := loader.New(c, afero.NewMemMapFs(), client, verify.New(verify.WithNoVerify()))
	return l, client
}

func TestControllerSuppressesDuplicateManifestContent(t *testing.T) {
	l, client := newFixture(t)
	same := manifestJSON(t, "a", "module a bytes")
	client.responses["https://cdn.example/app.json"] = fakeResponse{status: 200, body: same}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	urls := make(chan string, 3)
	urls <- "https://cdn.example/app.json"
	urls <- "https://cdn.example/app.json"
	urls <- "https://cdn.example/app.json"
	close(urls)

	ctrl := continuous.New(l)
	results := ctrl.Run(ctx, "myapp", urls, loader.NewMemorySession, nil)

	var got []continuous.Result
	for r := range results {
		got = append(got, r)
	}
	require.Len(t, got, 1, "three identical manifests must collapse to one load")
	assert.NoError(t, got[0].Err)
}

func TestControllerEmitsOnManifestChange(t *testing.T) {
	l, client := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	urls := make(chan string, 2)
	client.responses["https://cdn.example/app.json"] = fakeResponse{status: 200, body: manifestJSON(t, "a", "module a bytes")}
	urls <- "https://cdn.example/app.json"

	ctrl := continuous.New(l)
	results := ctrl.Run(ctx, "myapp", urls, loader.NewMemorySession, nil)

	first := <-results
	require.NoError(t, first.Err)

	client.responses["https://cdn.example/app.json"] = fakeResponse{status: 200, body: manifestJSON(t, "a-v2", "module a bytes")}
	urls <- "https://cdn.example/app.json"
	close(urls)

	second := <-results
	require.NoError(t, second.Err)

	_, more := <-results
	assert.False(t, more)
}

func TestControllerDropsFetchFailureSilently(t *testing.T) {
	l, client := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	urls := make(chan string, 2)
	client.responses["https://cdn.example/broken.json"] = fakeResponse{status: 503}
	urls <- "https://cdn.example/broken.json" // fails, dropped silently

	client.responses["https://cdn.example/app.json"] = fakeResponse{status: 200, body: manifestJSON(t, "a", "module a bytes")}
	urls <- "https://cdn.example/app.json" // succeeds
	close(urls)

	ctrl := continuous.New(l)
	results := ctrl.Run(ctx, "myapp", urls, loader.NewMemorySession, nil)

	var got []continuous.Result
	for r := range results {
		got = append(got, r)
	}
	require.Len(t, got, 1, "the failed fetch must produce no Result at all")
	assert.NoError(t, got[0].Err)
}

func TestControllerRebouncesOnQuietUpstream(t *testing.T) {
	l, client := newFixture(t)
	client.responses["https://cdn.example/app.json"] = fakeResponse{status: 200, body: manifestJSON(t, "a", "module a bytes")}

	mock := clock.NewMock()
	ctrl := continuous.New(l, continuous.WithPollInterval(time.Second), continuous.WithClock(mock))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	urls := make(chan string)
	results := make(chan continuous.Result, 4)
	go func() {
		for r := range ctrl.Run(ctx, "myapp", urls, loader.NewMemorySession, nil) {
			results <- r
		}
	}()

	urls <- "https://cdn.example/app.json"
	first := <-results
	require.NoError(t, first.Err)

	// Upstream stays quiet; since the manifest content never changes, the
	// distinct stage collapses every rebounced re-emission -- but the tick
	// must still have fired for rebounce to have re-sent anything at all.
	mock.Add(time.Second)
	mock.Add(time.Second)

	select {
	case r := <-results:
		t.Fatalf("unexpected extra result for unchanged manifest content: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
}
