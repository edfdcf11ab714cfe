package continuous

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Config holds the continuous-load controller's constructor options.
type Config struct {
	pollInterval time.Duration
	clock        clock.Clock
}

// Option configures a Controller at construction time.
type Option func(*Config)

// WithPollInterval sets the rebounce interval T: each URL the upstream
// sequence emits is re-emitted at least this often.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) { c.pollInterval = d }
}

// WithClock overrides the clock used to drive rebounce timing, for
// deterministic tests.
func WithClock(clk clock.Clock) Option {
	return func(c *Config) { c.clock = clk }
}

func newConfig(opts ...Option) Config {
	cfg := Config{clock: clock.New()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
