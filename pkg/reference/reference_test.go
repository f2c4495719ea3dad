package reference

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShorthandRegistry(t *testing.T) {
	ref, err := ParseShorthand("acme.widget.1.2.3")
	require.NoError(t, err)
	assert.Equal(t, Registry("acme", "widget", "1.2.3"), ref)
}

func TestParseShorthandSpecial(t *testing.T) {
	ref, err := ParseShorthand("slipway.passthrough.1.0.0")
	require.NoError(t, err)
	assert.Equal(t, KindSpecial, ref.Kind)
	assert.Equal(t, Special("passthrough", "1.0.0"), ref)
}

func TestParseJSONLocal(t *testing.T) {
	ref, err := ParseJSON([]byte(`{"local":{"path":"./components/x.tar"}}`))
	require.NoError(t, err)
	assert.Equal(t, Local("./components/x.tar"), ref)
}

func TestParseJSONURL(t *testing.T) {
	ref, err := ParseJSON([]byte(`{"url":"https://example.com/c.tar"}`))
	require.NoError(t, err)
	assert.Equal(t, URLRef("https://example.com/c.tar"), ref)
}

func TestParseJSONRegistryObjectForm(t *testing.T) {
	ref, err := ParseJSON([]byte(`{"registry":{"publisher":"acme","name":"widget","version":"1.0.0"}}`))
	require.NoError(t, err)
	assert.Equal(t, Registry("acme", "widget", "1.0.0"), ref)
}

func TestReferenceEqualityIsStructural(t *testing.T) {
	a := Registry("acme", "widget", "1.0.0")
	b := Registry("acme", "widget", "1.0.0")
	assert.Equal(t, a, b)
	assert.True(t, a == b)

	m := map[Reference]int{a: 1}
	m[b]++
	assert.Equal(t, 2, m[a])
}

func TestRoundTripJSON(t *testing.T) {
	for _, ref := range []Reference{
		Local("/tmp/c.tar"),
		Registry("acme", "widget", "2.0.0"),
		URLRef("https://example.com/c.tar"),
		Special("passthrough", "1.0.0"),
	} {
		data, err := json.Marshal(ref)
		require.NoError(t, err)
		var out Reference
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, ref, out)
	}
}

func TestParseJSONInvalid(t *testing.T) {
	_, err := ParseJSON([]byte(`42`))
	require.Error(t, err)
}
