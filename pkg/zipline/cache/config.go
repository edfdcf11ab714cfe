package cache

import (
	"github.com/benbjohnson/clock"
	"github.com/spf13/afero"
)

// Config holds the cache's constructor options.
type Config struct {
	fs           afero.Fs
	clock        Clock
	maxSizeBytes int64
	hotCapacity  int
}

// Option configures a Cache at construction time.
type Option func(*Config)

// WithFS sets the filesystem blob reads and writes go through. Defaults to
// afero.NewOsFs(). The cache directory itself (for the zipline.db index)
// must always be a real OS path regardless of this setting, since the pure-Go
// sqlite driver has no notion of afero's virtual filesystems.
func WithFS(fs afero.Fs) Option {
	return func(c *Config) { c.fs = fs }
}

// WithClock overrides the clock used for last-used timestamps, for
// deterministic LRU eviction tests.
func WithClock(clk Clock) Option {
	return func(c *Config) { c.clock = clk }
}

// WithMaxSizeBytes sets the cap on total size of unpinned READY entries.
// There is no default: a cache constructed without this option fails, since
// an unbounded cache is considered a caller bug, not a safe default.
func WithMaxSizeBytes(n int64) Option {
	return func(c *Config) { c.maxSizeBytes = n }
}

// WithHotIndexCapacity sets the capacity value passed to the in-memory
// metadata front-cache, which must be positive. Defaults to 4096. The value
// does not limit how many entries the front-cache holds.
func WithHotIndexCapacity(n int) Option {
	return func(c *Config) { c.hotCapacity = n }
}

func newConfig(opts ...Option) Config {
	cfg := Config{
		fs:          afero.NewOsFs(),
		clock:       clock.New(),
		hotCapacity: 4096,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
