package loader

import (
	"context"
	"sync"

	"github.com/opencontainers/go-digest"

	"github.com/wuxler/zipline/pkg/zipline/manifest"
	"github.com/wuxler/zipline/pkg/zipline/receiver"
)

// Session is a load target: it receives verified module bytes in dependency
// order and can be torn down if the load fails partway through or the
// caller's Initializer rejects it.
type Session interface {
	receiver.Receiver
	Close() error
}

// SessionFactory creates a fresh Session for a manifest that has just been
// fetched and verified, before any module has been received.
type SessionFactory func(appName string, m *manifest.Manifest) Session

// Initializer is the caller's smoke test, run once every module has been
// received and before the manifest is pinned. A returned error is treated as
// a load failure and the session is discarded.
type Initializer func(ctx context.Context, s Session) error

// MemorySession keeps every received module's bytes in memory, keyed by id.
// It is the default session used by tests and by callers with no script
// engine of their own to hand modules to.
type MemorySession struct {
	AppName  string
	Manifest *manifest.Manifest

	mu      sync.Mutex
	modules map[string][]byte
	closed  bool
}

var _ Session = (*MemorySession)(nil)

// NewMemorySession builds the default in-memory Session.
func NewMemorySession(appName string, m *manifest.Manifest) Session {
	return &MemorySession{AppName: appName, Manifest: m, modules: map[string][]byte{}}
}

// Receive implements receiver.Receiver.
func (s *MemorySession) Receive(_ context.Context, data []byte, id string, _ digest.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := append([]byte(nil), data...)
	s.modules[id] = cp
	return nil
}

// Module returns the bytes received for id, if any.
func (s *MemorySession) Module(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.modules[id]
	return b, ok
}

// Close implements Session. A MemorySession holds no external resources.
func (s *MemorySession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.modules = nil
	return nil
}

// Closed reports whether Close has been called, for tests asserting cleanup
// on a failed load.
func (s *MemorySession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
