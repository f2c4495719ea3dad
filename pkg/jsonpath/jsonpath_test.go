package jsonpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDependenciesSimple(t *testing.T) {
	v := map[string]any{
		"type":  "increment",
		"value": "$.rigging.a.output.value",
	}
	deps, err := ExtractDependencies(v)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"a": {}}, deps)
}

func TestExtractDependenciesNoDeps(t *testing.T) {
	v := map[string]any{"type": "increment", "value": float64(0)}
	deps, err := ExtractDependencies(v)
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestExtractDependenciesEscapeContributesNone(t *testing.T) {
	v := map[string]any{"literal": "$$not.a.path"}
	deps, err := ExtractDependencies(v)
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestExtractDependenciesMalformedIsError(t *testing.T) {
	v := map[string]any{"bad": "$.not.rigging.shaped"}
	_, err := ExtractDependencies(v)
	require.Error(t, err)
}

func TestExtractDependenciesNested(t *testing.T) {
	v := []any{
		map[string]any{"a": "$.rigging.x.output"},
		map[string]any{"b": "$.rigging.y.output.nested.key"},
	}
	deps, err := ExtractDependencies(v)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"x": {}, "y": {}}, deps)
}

func TestSubstituteReplacesWholeOutput(t *testing.T) {
	v := map[string]any{"value": "$.rigging.a.output"}
	resolve := func(handle string) (any, bool) {
		if handle == "a" {
			return map[string]any{"value": float64(6)}, true
		}
		return nil, false
	}
	out, err := Substitute(v, resolve)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"value": map[string]any{"value": float64(6)}}, out)
}

func TestSubstituteReplacesSuffix(t *testing.T) {
	v := map[string]any{"value": "$.rigging.a.output.value"}
	resolve := func(handle string) (any, bool) {
		return map[string]any{"value": float64(6)}, true
	}
	out, err := Substitute(v, resolve)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"value": float64(6)}, out)
}

func TestSubstituteEscapeUnescapes(t *testing.T) {
	v := "$$literal.dollar"
	out, err := Substitute(v, func(string) (any, bool) { return nil, false })
	require.NoError(t, err)
	assert.Equal(t, "$literal.dollar", out)
}

func TestSubstituteUnresolvedIsInternalError(t *testing.T) {
	v := "$.rigging.missing.output"
	_, err := Substitute(v, func(string) (any, bool) { return nil, false })
	require.Error(t, err)
}
