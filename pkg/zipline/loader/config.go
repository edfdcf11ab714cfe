package loader

import (
	"github.com/wuxler/zipline/pkg/zipline/event"
)

// Config holds the loader's constructor options.
type Config struct {
	concurrentDownloads int64
	listener            event.Listener
}

// Option configures a Loader at construction time.
type Option func(*Config)

// WithConcurrentDownloads bounds the number of module fetches in flight at
// once across every load this Loader runs. Defaults to 3.
func WithConcurrentDownloads(n int64) Option {
	return func(c *Config) { c.concurrentDownloads = n }
}

// WithListener sets the event listener notified of load lifecycle and
// telemetry events. Defaults to event.NopListener{}.
func WithListener(l event.Listener) Option {
	return func(c *Config) { c.listener = l }
}

func newConfig(opts ...Option) Config {
	cfg := Config{
		concurrentDownloads: 3,
		listener:            event.NopListener{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
