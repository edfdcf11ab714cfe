package config_test

import (
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuxler/zipline/pkg/zipline/config"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zipline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesSettings(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	keyHex := hex.EncodeToString(pub)

	path := writeFile(t, `
cache:
  dir: /var/lib/zipline/cache
  maxSizeBytes: 104857600
loader:
  concurrentDownloads: 5
continuous:
  pollInterval: 30s
trustedKeys:
  release: `+keyHex+`
`)

	f, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/zipline/cache", f.Cache.Dir)
	assert.Equal(t, int64(104857600), f.Cache.MaxSizeBytes)
	assert.Equal(t, int64(5), f.Loader.ConcurrentDownloads)
	assert.Len(t, f.CacheOptions(), 1)
	assert.Len(t, f.LoaderOptions(), 1)
	assert.Len(t, f.ContinuousOptions(), 1)

	verifierOpts, err := f.VerifierOptions()
	require.NoError(t, err)
	assert.Len(t, verifierOpts, 1)
}

func TestVerifierOptionsRejectsMalformedKey(t *testing.T) {
	path := writeFile(t, `
trustedKeys:
  release: not-hex
`)
	f, err := config.Load(path)
	require.NoError(t, err)

	_, err = f.VerifierOptions()
	require.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
