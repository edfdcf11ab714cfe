// Package verify checks a manifest's signature against a trusted key set.
package verify

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/wuxler/zipline/pkg/errdefs"
	zerrdefs "github.com/wuxler/zipline/pkg/zipline/errdefs"
	"github.com/wuxler/zipline/pkg/zipline/manifest"
	"github.com/wuxler/zipline/pkg/zipline/sigpayload"
)

// Verifier checks manifest signatures against a fixed set of named public
// keys, using Ed25519 over the compact canonical signature payload.
type Verifier struct {
	keys     map[string]ed25519.PublicKey
	noVerify bool
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithKey registers a trusted public key under name.
func WithKey(name string, key ed25519.PublicKey) Option {
	return func(v *Verifier) {
		v.keys[name] = key
	}
}

// WithNoVerify disables signature checking entirely. Only ever appropriate
// for local development and tests; production loaders must not set this.
func WithNoVerify() Option {
	return func(v *Verifier) {
		v.noVerify = true
	}
}

// New builds a Verifier from the given options.
func New(opts ...Option) *Verifier {
	v := &Verifier{keys: map[string]ed25519.PublicKey{}}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks raw manifest bytes against m.Signatures. It recomputes the
// canonical signature payload from raw (never from re-serializing m, to
// avoid any formatter drift between the parser and the signer). It returns
// nil on the first signature entry that verifies successfully.
func (v *Verifier) Verify(raw []byte, m *manifest.Manifest) error {
	if v.noVerify {
		return nil
	}
	if len(m.Signatures) == 0 {
		return zerrdefs.ErrNoTrustedKey
	}

	canonical, err := sigpayload.Canonicalize(raw)
	if err != nil {
		return errdefs.NewE(zerrdefs.ErrManifestParseFailed, err)
	}
	payload := sigpayload.SerializeCompact(canonical)

	recognized := false
	for _, entry := range m.Signatures {
		key, ok := v.keys[entry.Name]
		if !ok {
			continue
		}
		recognized = true

		sig, err := hex.DecodeString(entry.Value)
		if err != nil {
			continue
		}
		if ed25519.Verify(key, payload, sig) {
			return nil
		}
	}

	if !recognized {
		return zerrdefs.ErrNoTrustedKey
	}
	return fmt.Errorf("%w: no registered key matched", zerrdefs.ErrSignatureMismatch)
}
