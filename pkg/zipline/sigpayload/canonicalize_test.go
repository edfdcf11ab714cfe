package sigpayload_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wuxler/zipline/pkg/zipline/sigpayload"
)

const hash = "6bd4a9ef496f4aa4ed9c2a93db4d1cdc4c5a93d0a5f4bf1a5fba93a12f7b6d6a"

func canonicalCompact(t *testing.T, raw string) string {
	t.Helper()
	v, err := sigpayload.Canonicalize([]byte(raw))
	require.NoError(t, err)
	return string(sigpayload.SerializeCompact(v))
}

func TestCanonicalizeSampleManifest(t *testing.T) {
	raw := `{"modules":{"./kotlin_kotlin.js":{"url":"kotlin_kotlin.zipline","sha256":"` + hash + `"}},"signatures":{"sigA":"0f91"}}`
	got := canonicalCompact(t, raw)
	want := `{"modules":{"./kotlin_kotlin.js":{"url":"","sha256":"` + hash + `"}},"signatures":{"sigA":""}}`
	require.Equal(t, want, got)
}

// P1: determinism - identical input produces byte-identical output.
func TestCanonicalizeDeterministic(t *testing.T) {
	raw := `{"modules":{"a":{"url":"u","sha256":"` + hash + `"}},"signatures":{"s":"v"}}`
	a := canonicalCompact(t, raw)
	b := canonicalCompact(t, raw)
	require.Equal(t, a, b)
}

// P2: url irrelevance.
func TestCanonicalizeURLIrrelevant(t *testing.T) {
	raw1 := `{"modules":{"a":{"url":"one","sha256":"` + hash + `"}},"signatures":{"s":"v"}}`
	raw2 := `{"modules":{"a":{"url":"completely-different","sha256":"` + hash + `"}},"signatures":{"s":"v"}}`
	require.Equal(t, canonicalCompact(t, raw1), canonicalCompact(t, raw2))
}

// P3: signature value irrelevance.
func TestCanonicalizeSignatureValueIrrelevant(t *testing.T) {
	raw1 := `{"modules":{},"signatures":{"sigA":"0f91"}}`
	raw2 := `{"modules":{},"signatures":{"sigA":"ffff"}}`
	require.Equal(t, canonicalCompact(t, raw1), canonicalCompact(t, raw2))
}

// P4: signature key-set / order significance.
func TestCanonicalizeSignatureKeySetSignificant(t *testing.T) {
	base := `{"modules":{},"signatures":{"sigA":"0f91"}}`
	removed := `{"modules":{},"signatures":{}}`
	require.NotEqual(t, canonicalCompact(t, base), canonicalCompact(t, removed))

	reordered1 := `{"modules":{},"signatures":{"sigA":"x","sigB":"y"}}`
	reordered2 := `{"modules":{},"signatures":{"sigB":"y","sigA":"x"}}`
	require.NotEqual(t, canonicalCompact(t, reordered1), canonicalCompact(t, reordered2))
}

// P5: content significance.
func TestCanonicalizeContentSignificant(t *testing.T) {
	a := `{"modules":{"a":{"url":"u","sha256":"` + hash + `","dependsOnIds":["x"]}},"mainModuleId":"a","mainFunction":"main"}`
	b := `{"modules":{"a":{"url":"u","sha256":"` + hash + `","dependsOnIds":["y"]}},"mainModuleId":"a","mainFunction":"main"}`
	require.NotEqual(t, canonicalCompact(t, a), canonicalCompact(t, b))
}

// P6: unknown-field round trip, including null/bool/number/string, nested.
func TestCanonicalizeUnknownFieldsRoundTrip(t *testing.T) {
	raw := `{"modules":{},"custom":{"n":null,"b":true,"num":42.5,"s":"hi","nested":{"deep":[1,2,3]}}}`
	v, err := sigpayload.Canonicalize([]byte(raw))
	require.NoError(t, err)
	got := string(sigpayload.SerializeCompact(v))
	require.JSONEq(t, raw, got)
}

func TestCanonicalizeDoesNotMutateInput(t *testing.T) {
	raw := []byte(`{"modules":{"a":{"url":"u","sha256":"` + hash + `"}},"signatures":{"s":"v"}}`)
	_, err := sigpayload.Canonicalize(raw)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"url":"u"`)
	require.Contains(t, string(raw), `"s":"v"`)
}

func TestSerializePretty(t *testing.T) {
	v, err := sigpayload.Canonicalize([]byte(`{"a":1}`))
	require.NoError(t, err)
	pretty := string(sigpayload.SerializePretty(v))
	require.Contains(t, pretty, "\n")
}
