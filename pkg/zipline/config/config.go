// Package config loads the deployment-time settings for a zipline loader
// from a YAML file: cache bounds, download concurrency, poll interval, and
// trusted signing keys. The typed Config structs in cache, loader, and
// continuous stay functional-options-only (per their own packages); this
// package is the one place that turns an operator-supplied file into those
// options.
package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wuxler/zipline/pkg/zipline/cache"
	"github.com/wuxler/zipline/pkg/zipline/continuous"
	"github.com/wuxler/zipline/pkg/zipline/loader"
	"github.com/wuxler/zipline/pkg/zipline/verify"
)

// File is the on-disk shape of a zipline deployment's settings.
type File struct {
	Cache struct {
		Dir          string `yaml:"dir"`
		MaxSizeBytes int64  `yaml:"maxSizeBytes"`
	} `yaml:"cache"`

	Loader struct {
		ConcurrentDownloads int64 `yaml:"concurrentDownloads"`
	} `yaml:"loader"`

	Continuous struct {
		PollInterval time.Duration `yaml:"pollInterval"`
	} `yaml:"continuous"`

	// TrustedKeys maps a signer name to its hex-encoded Ed25519 public key,
	// matching the name a manifest's signatures map uses to register a
	// signature under that same signer.
	TrustedKeys map[string]string `yaml:"trustedKeys"`
}

// Load reads and parses a YAML settings file.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &f, nil
}

// CacheOptions returns the cache.Option set this file describes. WithFS is
// deliberately not among them: the filesystem seam is a caller-level
// dependency-injection decision, not a deployment setting.
func (f *File) CacheOptions() []cache.Option {
	var opts []cache.Option
	if f.Cache.MaxSizeBytes > 0 {
		opts = append(opts, cache.WithMaxSizeBytes(f.Cache.MaxSizeBytes))
	}
	return opts
}

// LoaderOptions returns the loader.Option set this file describes.
func (f *File) LoaderOptions() []loader.Option {
	var opts []loader.Option
	if f.Loader.ConcurrentDownloads > 0 {
		opts = append(opts, loader.WithConcurrentDownloads(f.Loader.ConcurrentDownloads))
	}
	return opts
}

// ContinuousOptions returns the continuous.Option set this file describes.
func (f *File) ContinuousOptions() []continuous.Option {
	var opts []continuous.Option
	if f.Continuous.PollInterval > 0 {
		opts = append(opts, continuous.WithPollInterval(f.Continuous.PollInterval))
	}
	return opts
}

// VerifierOptions decodes TrustedKeys into verify.Option values. A key that
// fails to decode as 32 bytes of hex is reported by name, not silently
// skipped, since an unusable trusted key is a deployment misconfiguration.
func (f *File) VerifierOptions() ([]verify.Option, error) {
	opts := make([]verify.Option, 0, len(f.TrustedKeys))
	for name, hexKey := range f.TrustedKeys {
		raw, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("config: trusted key %q: %w", name, err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("config: trusted key %q: expected %d bytes, got %d", name, ed25519.PublicKeySize, len(raw))
		}
		opts = append(opts, verify.WithKey(name, ed25519.PublicKey(raw)))
	}
	return opts, nil
}
