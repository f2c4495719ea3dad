package component

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipwayhq/slipway-go/pkg/reference"
)

func TestParseDefinitionCompilesSchemas(t *testing.T) {
	data := []byte(`{
		"publisher": "acme", "name": "widget", "version": "1.0.0",
		"input_schema": {"type": "object", "required": ["value"], "properties": {"value": {"type": "number"}}},
		"output_schema": {"type": "object", "properties": {"value": {"type": "number"}}}
	}`)
	d, err := ParseDefinition(data)
	require.NoError(t, err)

	require.NoError(t, d.ValidateInput(map[string]any{"value": 5.0}))
	require.Error(t, d.ValidateInput(map[string]any{"nope": true}))
}

func TestParseDefinitionRejectsInvalidSchema(t *testing.T) {
	data := []byte(`{
		"publisher": "acme", "name": "widget", "version": "1.0.0",
		"input_schema": {"type": "not-a-real-type"}
	}`)
	_, err := ParseDefinition(data)
	require.Error(t, err)
}

func TestIsFragment(t *testing.T) {
	d, err := ParseDefinition([]byte(`{"publisher":"acme","name":"frag","version":"1.0.0","rigging":{"components":{}}}`))
	require.NoError(t, err)
	assert.True(t, d.IsFragment())

	d2, err := ParseDefinition([]byte(`{"publisher":"acme","name":"plain","version":"1.0.0"}`))
	require.NoError(t, err)
	assert.False(t, d2.IsFragment())
}

func buildTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gzw.Close())
	return buf.Bytes()
}

func TestFromArchiveRoundTrip(t *testing.T) {
	archive := buildTarGz(t, map[string]string{
		DefinitionFile: `{"publisher":"acme","name":"widget","version":"1.0.0"}`,
		WasmArtifact:   "fake-wasm-bytes",
	})
	ref := reference.Registry("acme", "widget", "1.0.0")
	loaded, err := FromArchive(ref, archive)
	require.NoError(t, err)
	assert.Equal(t, "widget", loaded.Definition.Name)
	assert.True(t, loaded.Files.Exists(WasmArtifact))
	assert.Equal(t, ref, loaded.Reference())
}

func TestFromArchiveMissingDefinitionFails(t *testing.T) {
	archive := buildTarGz(t, map[string]string{"other.txt": "hi"})
	_, err := FromArchive(reference.Local("/tmp/x"), archive)
	require.Error(t, err)
}

func TestMemFilesExistsAndGet(t *testing.T) {
	f := NewMemFiles(reference.Local("x"), map[string][]byte{"a.txt": []byte("hello")})
	assert.True(t, f.Exists("a.txt"))
	assert.False(t, f.Exists("b.txt"))

	text, ok, err := f.TryGetText("a.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", text)

	_, ok, err = f.TryGetBin("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
