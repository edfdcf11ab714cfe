// Package receiver implements the dependency-ordered receive engine: it
// fetches every module a manifest lists, verifies each against its declared
// hash, and hands bytes to a Receiver strictly in dependency order while
// letting fetches themselves proceed in whatever order they complete.
package receiver

import (
	"context"

	"github.com/opencontainers/go-digest"
)

// Receiver consumes verified module bytes in dependency order. Typical
// implementations are a script-engine loader (not safe for concurrent calls,
// hence the engine's single-dispatcher hand-off) or a disk writer.
type Receiver interface {
	Receive(ctx context.Context, data []byte, id string, hash digest.Digest) error
}

// ReceiverFunc adapts a plain function to the Receiver interface.
type ReceiverFunc func(ctx context.Context, data []byte, id string, hash digest.Digest) error

// Receive implements Receiver.
func (f ReceiverFunc) Receive(ctx context.Context, data []byte, id string, hash digest.Digest) error {
	return f(ctx, data, id, hash)
}
