package cache

import (
	"io"

	"github.com/opencontainers/go-digest"
)

// verifyReader tees a read through a digester so the bytes streamed to the
// temp file can be checked against an expected hash in one pass, instead of
// buffering twice. Adapted from the verifying reader the reference codebase
// uses for its own content-addressed blob store.
type verifyReader struct {
	io.Reader
	digester digest.Digester
}

func newVerifyReader(r io.Reader) *verifyReader {
	digester := digest.Canonical.Digester()
	return &verifyReader{
		Reader:   io.TeeReader(r, digester.Hash()),
		digester: digester,
	}
}

// Digest returns the running digest of everything read so far. Call only
// after the underlying reader has been fully drained.
func (r *verifyReader) Digest() digest.Digest {
	return r.digester.Digest()
}
