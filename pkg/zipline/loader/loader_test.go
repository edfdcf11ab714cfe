package loader_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/opencontainers/go-digest"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	zipcache "github.com/wuxler/zipline/pkg/zipline/cache"
	"github.com/wuxler/zipline/pkg/zipline/fetcher"
	"github.com/wuxler/zipline/pkg/zipline/loader"
	"github.com/wuxler/zipline/pkg/zipline/manifest"
	"github.com/wuxler/zipline/pkg/zipline/verify"
)

type fakeClient struct {
	responses map[string]fakeResponse
}

type fakeResponse struct {
	status int
	body   []byte
}

func (f *fakeClient) Do(req *http.Request) (*http.Response, error) {
	resp, ok := f.responses[req.URL.String()]
	if !ok {
		return nil, fmt.Errorf("fake client: no response for %s", req.URL.String())
	}
	return &http.Response{StatusCode: resp.status, Body: io.NopCloser(bytes.NewReader(resp.body))}, nil
}

func buildManifestJSON(t *testing.T, moduleContents map[string]string) ([]byte, map[string][]byte) {
	t.Helper()
	modules := map[string]any{}
	data := map[string][]byte{}
	for id, content := range moduleContents {
		b := []byte(content)
		data[id] = b
		modules[id] = map[string]any{
			"url":    "https://cdn.example/" + id + ".zipline",
			"sha256": digest.FromBytes(b).Encoded(),
		}
	}
	doc := map[string]any{
		"modules":      modules,
		"mainModuleId": "a",
		"mainFunction": "main",
		"signatures":   map[string]any{},
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return raw, data
}

func newLoaderFixture(t *testing.T, manifestRaw []byte, moduleData map[string][]byte) (*loader.Loader, *fakeClient) {
	t.Helper()
	c, err := zipcache.New(t.TempDir(), zipcache.WithFS(afero.NewOsFs()), zipcache.WithMaxSizeBytes(1<<20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	responses := map[string]fakeResponse{
		"https://cdn.example/app.json": {status: 200, body: manifestRaw},
	}
	for id, b := range moduleData {
		responses["https://cdn.example/"+id+".zipline"] = fakeResponse{status: 200, body: b}
	}
	client := &fakeClient{responses: responses}

	l := loader.New(c, afero.NewMemMapFs(), client, verify.New(verify.WithNoVerify()))
	return l, client
}

func TestLoadOrFailHappyPath(t *testing.T) {
	raw, data := buildManifestJSON(t, map[string]string{"a": "module a bytes"})
	l, _ := newLoaderFixture(t, raw, data)

	session, err := l.LoadOrFail(context.Background(), "myapp", "https://cdn.example/app.json", loader.NewMemorySession, nil)
	require.NoError(t, err)
	mem := session.(*loader.MemorySession)
	got, ok := mem.Module("a")
	assert.True(t, ok)
	assert.Equal(t, "module a bytes", string(got))
}

func TestLoadOrFailClosesSessionOnInitializerFailure(t *testing.T) {
	raw, data := buildManifestJSON(t, map[string]string{"a": "module a bytes"})
	l, _ := newLoaderFixture(t, raw, data)

	boom := fmt.Errorf("smoke test failed")
	var got loader.Session
	_, err := l.LoadOrFail(context.Background(), "myapp", "https://cdn.example/app.json", loader.NewMemorySession,
		func(ctx context.Context, s loader.Session) error { got = s; return boom })
	require.Error(t, err)
	require.NotNil(t, got)
	assert.True(t, got.(*loader.MemorySession).Closed())
}

func TestLoadOrFallBackServesPinnedManifestOffline(t *testing.T) {
	raw, data := buildManifestJSON(t, map[string]string{"a": "module a bytes"})
	l, client := newLoaderFixture(t, raw, data)

	// First load succeeds over the network and pins the result.
	_, err := l.LoadOrFail(context.Background(), "myapp", "https://cdn.example/app.json", loader.NewMemorySession, nil)
	require.NoError(t, err)

	// Network now fails entirely for this app.
	delete(client.responses, "https://cdn.example/app.json")
	delete(client.responses, "https://cdn.example/a.zipline")

	session, err := l.LoadOrFallBack(context.Background(), "myapp", "https://cdn.example/app.json", loader.NewMemorySession, nil)
	require.NoError(t, err, "fallback must serve the pinned manifest and modules from cache")
	mem := session.(*loader.MemorySession)
	got, ok := mem.Module("a")
	assert.True(t, ok)
	assert.Equal(t, "module a bytes", string(got))
}

func TestDownloadWritesModulesAndManifestToDisk(t *testing.T) {
	raw, data := buildManifestJSON(t, map[string]string{"a": "module a bytes"})
	l, _ := newLoaderFixture(t, raw, data)

	fs := afero.NewMemMapFs()
	require.NoError(t, l.Download(context.Background(), "myapp", "/out", fs, "https://cdn.example/app.json"))

	manifestBytes, err := afero.ReadFile(fs, "/out/myapp.manifest.zipline.json")
	require.NoError(t, err)
	assert.Equal(t, raw, manifestBytes)

	moduleBytes, err := afero.ReadFile(fs, "/out/"+digest.FromBytes(data["a"]).Encoded()+".zipline")
	require.NoError(t, err)
	assert.Equal(t, data["a"], moduleBytes)

	indexBytes, err := afero.ReadFile(fs, "/out/index.json")
	require.NoError(t, err)
	var index v1.Index
	require.NoError(t, json.Unmarshal(indexBytes, &index))
	require.Len(t, index.Manifests, 1)
	assert.Equal(t, digest.FromBytes(data["a"]), index.Manifests[0].Digest)
	assert.Equal(t, manifest.ModuleMediaType, index.Manifests[0].MediaType)
}

func TestResolveUsedForRelativeModuleURLs(t *testing.T) {
	got, err := fetcher.Resolve("https://cdn.example/apps/foo/manifest.json", "../bar/a.zipline")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/apps/bar/a.zipline", got)
}
