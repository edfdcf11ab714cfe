package manifest_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wuxler/zipline/pkg/zipline/manifest"
)

const sampleManifest = `{
	"modules": {
		"./kotlin_kotlin.js": {
			"url": "kotlin_kotlin.zipline",
			"sha256": "6bd4a9ef496f4aa4ed9c2a93db4d1cdc4c5a93d0a5f4bf1a5fba93a12f7b6d6a",
			"unknownModuleField": 42
		}
	},
	"mainModuleId": "./kotlin_kotlin.js",
	"mainFunction": "main",
	"signatures": {
		"sigA": "0f91"
	},
	"unsignedIntegrityCheck": "deadbeef",
	"unknownTopField": [1, 2, 3]
}`

func TestParsePreservesUnknownFields(t *testing.T) {
	m, err := manifest.Parse([]byte(sampleManifest))
	require.NoError(t, err)

	require.Equal(t, "./kotlin_kotlin.js", m.MainModuleID)
	require.Equal(t, "main", m.MainFunction)
	require.Len(t, m.Signatures, 1)
	require.Equal(t, "sigA", m.Signatures[0].Name)
	require.Equal(t, "0f91", m.Signatures[0].Value)

	require.Contains(t, m.Extra, "unsignedIntegrityCheck")
	require.Contains(t, m.Extra, "unknownTopField")

	mod, ok := m.Modules["./kotlin_kotlin.js"]
	require.True(t, ok)
	require.Equal(t, "kotlin_kotlin.zipline", mod.URL)
	require.Contains(t, mod.Extra, "unknownModuleField")
}

func TestValidateDetectsMissingDependency(t *testing.T) {
	m, err := manifest.Parse([]byte(`{"modules":{"a":{"url":"a","sha256":"` + zeroHash + `","dependsOnIds":["b"]}}}`))
	require.NoError(t, err)
	err = m.Validate()
	require.Error(t, err)
}

func TestValidateDetectsCycle(t *testing.T) {
	raw := `{"modules":{
		"a":{"url":"a","sha256":"` + zeroHash + `","dependsOnIds":["b"]},
		"b":{"url":"b","sha256":"` + zeroHash + `","dependsOnIds":["a"]}
	}}`
	m, err := manifest.Parse([]byte(raw))
	require.NoError(t, err)
	err = m.Validate()
	require.Error(t, err)
}

func TestValidateAcceptsDAG(t *testing.T) {
	raw := `{"modules":{
		"a":{"url":"a","sha256":"` + zeroHash + `"},
		"b":{"url":"b","sha256":"` + zeroHash + `","dependsOnIds":["a"]}
	}}`
	m, err := manifest.Parse([]byte(raw))
	require.NoError(t, err)
	require.NoError(t, m.Validate())
}

func TestModuleSizeAcceptsNumberOrString(t *testing.T) {
	raw := `{"modules":{
		"a":{"url":"a","sha256":"` + zeroHash + `","size":1024},
		"b":{"url":"b","sha256":"` + zeroHash + `","size":"2048"}
	}}`
	m, err := manifest.Parse([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, int64(1024), m.Modules["a"].SizeBytes)
	require.Equal(t, int64(2048), m.Modules["b"].SizeBytes)
}

func TestModuleOCIDescriptorCarriesURLDigestAndSize(t *testing.T) {
	raw := `{"modules":{"a":{"url":"https://cdn.example/a.zipline","sha256":"` + zeroHash + `","size":512}}}`
	m, err := manifest.Parse([]byte(raw))
	require.NoError(t, err)

	desc := m.Modules["a"].OCIDescriptor()
	require.Equal(t, manifest.ModuleMediaType, desc.MediaType)
	require.Equal(t, int64(512), desc.Size)
	require.Equal(t, []string{"https://cdn.example/a.zipline"}, desc.URLs)
	require.Equal(t, m.Modules["a"].SHA256, desc.Digest)
}

const zeroHash = "0000000000000000000000000000000000000000000000000000000000000000"
