// Package continuous implements the continuous-load controller: a poll loop
// over a sequence of manifest URLs that rebounces, fetches, de-duplicates by
// manifest content, and loads each surviving version.
package continuous

import (
	"bytes"
	"context"

	"github.com/google/uuid"

	"github.com/wuxler/zipline/pkg/xlog"
	"github.com/wuxler/zipline/pkg/zipline/loader"
)

// Result is one outcome the controller emits: either a successfully loaded
// Session or the error from a load that made it past the fetch/verify and
// distinct stages but then failed. A manifest that fails only the fetch
// stage is dropped silently (beyond a log line) and never produces a Result
// -- it is treated as a transient hiccup, not a load failure.
type Result struct {
	PollID  string
	URL     string
	Session loader.Session
	Err     error
}

// Controller polls a sequence of manifest URLs and produces a sequence of
// load results.
type Controller struct {
	loader *loader.Loader
	cfg    Config
}

// New builds a Controller driving l.
func New(l *loader.Loader, opts ...Option) *Controller {
	return &Controller{loader: l, cfg: newConfig(opts...)}
}

// Run consumes urls, a sequence of manifest URLs for appName, and returns a
// channel of Results. Cancelling ctx stops every stage and closes the
// returned channel.
func (c *Controller) Run(ctx context.Context, appName string, urls <-chan string, newSession loader.SessionFactory, init loader.Initializer) <-chan Result {
	rebounced := c.rebounce(ctx, urls)
	out := make(chan Result)
	go c.pump(ctx, appName, rebounced, newSession, init, out)
	return out
}

// rebounce re-emits the latest upstream value at least every pollInterval;
// if upstream emits faster than that, values pass straight through.
func (c *Controller) rebounce(ctx context.Context, urls <-chan string) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)

		if c.cfg.pollInterval <= 0 {
			for {
				select {
				case <-ctx.Done():
					return
				case url, ok := <-urls:
					if !ok {
						return
					}
					select {
					case out <- url:
					case <-ctx.Done():
						return
					}
				}
			}
		}

		ticker := c.cfg.clock.Ticker(c.cfg.pollInterval)
		defer ticker.Stop()

		var current string
		have := false
		for {
			select {
			case <-ctx.Done():
				return
			case url, ok := <-urls:
				if !ok {
					return
				}
				current = url
				have = true
				select {
				case out <- current:
				case <-ctx.Done():
					return
				}
			case <-ticker.C:
				if !have {
					continue
				}
				select {
				case out <- current:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (c *Controller) pump(ctx context.Context, appName string, urls <-chan string, newSession loader.SessionFactory, init loader.Initializer, out chan<- Result) {
	defer close(out)

	var lastRaw []byte
	haveLast := false

	for {
		select {
		case <-ctx.Done():
			return
		case url, ok := <-urls:
			if !ok {
				return
			}

			pollID := uuid.NewString()
			raw, m, err := c.loader.FetchAndVerifyManifest(ctx, appName, url)
			if err != nil {
				xlog.C(ctx).WarnfContext(ctx, "continuous load poll %s for %s dropped: %v", pollID, appName, err)
				continue
			}

			if haveLast && bytes.Equal(raw, lastRaw) {
				continue
			}
			lastRaw = raw
			haveLast = true

			session, loadErr := c.loader.LoadManifest(ctx, appName, url, raw, m, newSession, init)
			result := Result{PollID: pollID, URL: url, Session: session, Err: loadErr}
			select {
			case out <- result:
			case <-ctx.Done():
				return
			}
		}
	}
}
