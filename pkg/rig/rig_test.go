package rig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRigJSON(bInput string) string {
	return `{
		"name": "test_rig",
		"publisher": "acme",
		"version": "1.0.0",
		"rigging": {
			"components": {
				"a": {
					"component": "acme.increment.1.0.0",
					"input": {"type": "increment", "value": 5}
				},
				"b": {
					"component": "acme.increment.1.0.0",
					"input": {"type": "increment", "value": ` + bInput + `}
				}
			}
		}
	}`
}

func TestParseValidTwoStageChain(t *testing.T) {
	r, err := Parse([]byte(validRigJSON(`"$.rigging.a.output.value"`)))
	require.NoError(t, err)
	assert.Equal(t, "test_rig", r.Name)
	assert.Len(t, r.Rigging.Components, 2)
}

func TestParseDetectsCycle(t *testing.T) {
	data := []byte(`{
		"name": "cyclic_rig", "publisher": "acme", "version": "1.0.0",
		"rigging": {"components": {
			"a": {"component": "acme.x.1.0.0", "input": {"v": "$.rigging.b.output.v"}},
			"b": {"component": "acme.x.1.0.0", "input": {"v": "$.rigging.a.output.v"}}
		}}
	}`)
	_, err := Parse(data)
	require.Error(t, err)
}

func TestParseRejectsUnknownDependency(t *testing.T) {
	data := []byte(`{
		"name": "rig", "publisher": "acme", "version": "1.0.0",
		"rigging": {"components": {
			"a": {"component": "acme.x.1.0.0", "input": {"v": "$.rigging.missing.output.v"}}
		}}
	}`)
	_, err := Parse(data)
	require.Error(t, err)
}

func TestParseRejectsBadHandle(t *testing.T) {
	data := []byte(`{
		"name": "rig", "publisher": "acme", "version": "1.0.0",
		"rigging": {"components": {
			"Bad-Handle": {"component": "acme.x.1.0.0"}
		}}
	}`)
	_, err := Parse(data)
	require.Error(t, err)
}

func TestDetectCycleSelfLoop(t *testing.T) {
	deps := map[string]map[string]struct{}{
		"a": {"a": {}},
	}
	cycle, found := DetectCycle(deps)
	assert.True(t, found)
	assert.Equal(t, []string{"a", "a"}, cycle)
}

func TestDetectCycleNoneForDAG(t *testing.T) {
	deps := map[string]map[string]struct{}{
		"a": {},
		"b": {"a": {}},
		"c": {"a": {}, "b": {}},
	}
	_, found := DetectCycle(deps)
	assert.False(t, found)
}
