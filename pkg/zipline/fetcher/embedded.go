package fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"

	"github.com/wuxler/zipline/pkg/zipline/manifest"
)

// Embedded serves modules and manifests baked into the binary (or otherwise
// shipped alongside it) from a read-only filesystem. It never writes.
type Embedded struct {
	fs afero.Fs
}

// NewEmbedded builds an Embedded fetcher over fs. Production wires a real
// afero.OsFs rooted at an install directory; tests substitute an
// afero.MemMapFs populated from embed.FS bytes.
func NewEmbedded(fs afero.Fs) *Embedded {
	return &Embedded{fs: fs}
}

func (e *Embedded) modulePath(hash digest.Digest) string {
	return filepath.Join("/", hash.Encoded()+".zipline")
}

func (e *Embedded) manifestPath(appName string) string {
	return filepath.Join("/", appName+".manifest.zipline.json")
}

func (e *Embedded) FetchModule(_ context.Context, _, _ string, hash digest.Digest, _ string) ([]byte, bool, error) {
	data, err := afero.ReadFile(e.fs, e.modulePath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("fetcher: embedded: read module: %w", err)
	}
	return data, true, nil
}

func (e *Embedded) FetchManifest(_ context.Context, appName, _ string) ([]byte, *manifest.Manifest, bool, error) {
	raw, err := afero.ReadFile(e.fs, e.manifestPath(appName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, fmt.Errorf("fetcher: embedded: read manifest: %w", err)
	}
	m, err := manifest.Parse(raw)
	if err != nil {
		return nil, nil, false, err
	}
	return raw, m, true, nil
}
