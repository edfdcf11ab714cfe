// Package manifest provides the round-trip-safe data model for a zipline
// application manifest: its modules, their dependency DAG, and the ordered
// signature set a verifier checks.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/opencontainers/go-digest"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/wuxler/zipline/pkg/errdefs"
	zerrdefs "github.com/wuxler/zipline/pkg/zipline/errdefs"
)

// ModuleMediaType is the media type reported in a Module's OCIDescriptor.
const ModuleMediaType = "application/vnd.zipline.module.v1+octet-stream"

// SignatureEntry is one (name, hex-signature) pair. Signatures are carried as
// an ordered slice, not a map, because both presence and ordering of the
// signature key set are part of what gets signed (see the sigpayload package).
type SignatureEntry struct {
	Name  string
	Value string
}

// Module describes one unit of code addressed by a stable id and a SHA-256
// content hash, plus the ids of modules it depends on.
type Module struct {
	URL          string
	SHA256       digest.Digest
	DependsOnIDs []string

	// SizeBytes is the module's declared byte size, if the manifest carries
	// one. Different manifest producers encode it as either a JSON number or
	// a numeric string, so it is decoded leniently via cast rather than a
	// strict json.Number field; zero means "not declared".
	SizeBytes int64

	// Extra carries any JSON fields this type does not model explicitly, so
	// they survive an unmarshal/marshal round-trip.
	Extra map[string]json.RawMessage
}

// OCIDescriptor renders the module as an OCI content descriptor, for tooling
// that consumes a downloaded bundle (see Loader.Download) through the
// standard image-spec shape rather than zipline's own manifest format.
func (m Module) OCIDescriptor() v1.Descriptor {
	d := v1.Descriptor{
		MediaType: ModuleMediaType,
		Digest:    m.SHA256,
		Size:      m.SizeBytes,
	}
	if m.URL != "" {
		d.URLs = []string{m.URL}
	}
	return d
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Module) UnmarshalJSON(data []byte) error {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("module: %w", err)
	}

	if raw, ok := fields["url"]; ok {
		if err := json.Unmarshal(raw, &m.URL); err != nil {
			return fmt.Errorf("module.url: %w", err)
		}
		delete(fields, "url")
	}
	if raw, ok := fields["sha256"]; ok {
		var hex string
		if err := json.Unmarshal(raw, &hex); err != nil {
			return fmt.Errorf("module.sha256: %w", err)
		}
		d := digest.NewDigestFromEncoded(digest.SHA256, hex)
		if err := d.Validate(); err != nil {
			return fmt.Errorf("module.sha256: %w", err)
		}
		m.SHA256 = d
		delete(fields, "sha256")
	}
	if raw, ok := fields["dependsOnIds"]; ok {
		if err := json.Unmarshal(raw, &m.DependsOnIDs); err != nil {
			return fmt.Errorf("module.dependsOnIds: %w", err)
		}
		delete(fields, "dependsOnIds")
	}
	if raw, ok := fields["size"]; ok {
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return fmt.Errorf("module.size: %w", err)
		}
		size, err := cast.ToInt64E(parsed)
		if err != nil {
			return fmt.Errorf("module.size: %w", err)
		}
		m.SizeBytes = size
		delete(fields, "size")
	}
	m.Extra = fields
	return nil
}

// MarshalJSON implements json.Marshaler.
func (m Module) MarshalJSON() ([]byte, error) {
	out := map[string]json.RawMessage{}
	for k, v := range m.Extra {
		out[k] = v
	}
	urlRaw, err := json.Marshal(m.URL)
	if err != nil {
		return nil, err
	}
	out["url"] = urlRaw
	if m.SHA256 != "" {
		shaRaw, err := json.Marshal(m.SHA256.Encoded())
		if err != nil {
			return nil, err
		}
		out["sha256"] = shaRaw
	}
	if len(m.DependsOnIDs) > 0 {
		depsRaw, err := json.Marshal(m.DependsOnIDs)
		if err != nil {
			return nil, err
		}
		out["dependsOnIds"] = depsRaw
	}
	if m.SizeBytes > 0 {
		sizeRaw, err := json.Marshal(m.SizeBytes)
		if err != nil {
			return nil, err
		}
		out["size"] = sizeRaw
	}
	return json.Marshal(out)
}

// Manifest maps module ids to Module plus the application's entry point and
// signature set. Raw holds the exact bytes the manifest was parsed from;
// verification and pinning key off Raw, never off a re-marshaled form.
type Manifest struct {
	Modules      map[string]*Module
	MainModuleID string
	MainFunction string
	Signatures   []SignatureEntry

	// Extra carries unknown top-level fields, preserved verbatim.
	Extra map[string]json.RawMessage
	// Raw is the exact serialized form this Manifest was parsed from.
	Raw []byte
}

// Parse decodes raw manifest JSON bytes into a Manifest, preserving unknown
// fields and signature ordering. It does not run Validate; callers must call
// Validate before scheduling any fetch.
func Parse(raw []byte) (*Manifest, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errdefs.NewE(zerrdefs.ErrManifestParseFailed, err)
	}

	m := &Manifest{Raw: append([]byte(nil), raw...)}

	if raw, ok := fields["modules"]; ok {
		var rawModules map[string]json.RawMessage
		if err := json.Unmarshal(raw, &rawModules); err != nil {
			return nil, errdefs.NewE(zerrdefs.ErrManifestParseFailed, fmt.Errorf("modules: %w", err))
		}
		m.Modules = make(map[string]*Module, len(rawModules))
		for id, modRaw := range rawModules {
			mod := &Module{}
			if err := json.Unmarshal(modRaw, mod); err != nil {
				return nil, errdefs.NewE(zerrdefs.ErrManifestParseFailed, fmt.Errorf("modules[%s]: %w", id, err))
			}
			m.Modules[id] = mod
		}
		delete(fields, "modules")
	}
	if raw, ok := fields["mainModuleId"]; ok {
		if err := json.Unmarshal(raw, &m.MainModuleID); err != nil {
			return nil, errdefs.NewE(zerrdefs.ErrManifestParseFailed, fmt.Errorf("mainModuleId: %w", err))
		}
		delete(fields, "mainModuleId")
	}
	if raw, ok := fields["mainFunction"]; ok {
		if err := json.Unmarshal(raw, &m.MainFunction); err != nil {
			return nil, errdefs.NewE(zerrdefs.ErrManifestParseFailed, fmt.Errorf("mainFunction: %w", err))
		}
		delete(fields, "mainFunction")
	}
	if raw, ok := fields["signatures"]; ok {
		entries, err := decodeOrderedSignatures(raw)
		if err != nil {
			return nil, errdefs.NewE(zerrdefs.ErrManifestParseFailed, fmt.Errorf("signatures: %w", err))
		}
		m.Signatures = entries
		delete(fields, "signatures")
	}
	m.Extra = fields
	return m, nil
}

// Hash returns the content hash of the manifest's original serialized bytes.
// This is the value used to key the manifest's own cache entry and pin record.
func (m *Manifest) Hash() digest.Digest {
	return digest.FromBytes(m.Raw)
}

// SignatureValue returns the hex signature registered under name, if any.
func (m *Manifest) SignatureValue(name string) (string, bool) {
	for _, e := range m.Signatures {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}

// ModuleIDs returns the manifest's module ids, order unspecified.
func (m *Manifest) ModuleIDs() []string {
	return lo.Keys(m.Modules)
}

// MarshalJSON implements json.Marshaler. It is used by callers that need a
// fresh JSON document (e.g. re-signing tooling); it is intentionally not used
// on the verify/pin hot paths, which always operate on Raw.
func (m Manifest) MarshalJSON() ([]byte, error) {
	out := map[string]json.RawMessage{}
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Modules != nil {
		modulesRaw, err := json.Marshal(m.Modules)
		if err != nil {
			return nil, err
		}
		out["modules"] = modulesRaw
	}
	if m.MainModuleID != "" {
		raw, err := json.Marshal(m.MainModuleID)
		if err != nil {
			return nil, err
		}
		out["mainModuleId"] = raw
	}
	if m.MainFunction != "" {
		raw, err := json.Marshal(m.MainFunction)
		if err != nil {
			return nil, err
		}
		out["mainFunction"] = raw
	}
	if len(m.Signatures) > 0 {
		raw, err := marshalOrderedSignatures(m.Signatures)
		if err != nil {
			return nil, err
		}
		out["signatures"] = raw
	}
	return json.Marshal(out)
}

func decodeOrderedSignatures(raw json.RawMessage) ([]SignatureEntry, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}
	var entries []SignatureEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("signature %q: %w", key, err)
		}
		entries = append(entries, SignatureEntry{Name: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return entries, nil
}

func marshalOrderedSignatures(entries []SignatureEntry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyRaw, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		valRaw, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(keyRaw)
		buf.WriteByte(':')
		buf.Write(valRaw)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
