package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipwayhq/slipway-go/pkg/rig"
)

func mustParseRig(t *testing.T, data string) *rig.Rig {
	t.Helper()
	r, err := rig.Parse([]byte(data))
	require.NoError(t, err)
	return r
}

func TestSingleComponentIncrement(t *testing.T) {
	r := mustParseRig(t, `{
		"name": "single", "publisher": "acme", "version": "1.0.0",
		"rigging": {"components": {
			"t": {"component": "acme.increment.1.0.0", "input": {"type": "increment", "value": 0}}
		}}
	}`)
	state, err := Initialize(r)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"t"}}, state.Order)

	group := state.NextRunnableGroup()
	require.Equal(t, []string{"t"}, group)

	state, err = Step(state, Instruction{Kind: SetOutput, Handle: "t", Value: map[string]any{"value": 1.0}})
	require.NoError(t, err)
	assert.True(t, state.AllHaveOutput())

	out, ok := state.Components["t"].Output()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"value": 1.0}, out)
}

func twoStageRig(t *testing.T) *rig.Rig {
	return mustParseRig(t, `{
		"name": "chain", "publisher": "acme", "version": "1.0.0",
		"rigging": {"components": {
			"a": {"component": "acme.increment.1.0.0", "input": {"type": "increment", "value": 5}},
			"b": {"component": "acme.increment.1.0.0", "input": {"type": "increment", "value": "$.rigging.a.output.value"}}
		}}
	}`)
}

func TestTwoStageChain(t *testing.T) {
	r := twoStageRig(t)
	state, err := Initialize(r)
	require.NoError(t, err)

	assert.Equal(t, map[string]struct{}{}, state.Components["a"].Dependencies)
	assert.Equal(t, map[string]struct{}{"a": {}}, state.Components["b"].Dependencies)
	assert.Equal(t, [][]string{{"a"}, {"b"}}, state.Order)

	assert.Equal(t, []string{"a"}, state.NextRunnableGroup())
	state, err = Step(state, Instruction{Kind: SetOutput, Handle: "a", Value: map[string]any{"value": 6.0}})
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, state.NextRunnableGroup())
	bInput := state.Components["b"].ExecutionInput.Value.(map[string]any)
	assert.Equal(t, 6.0, bInput["value"])

	state, err = Step(state, Instruction{Kind: SetOutput, Handle: "b", Value: map[string]any{"value": 7.0}})
	require.NoError(t, err)
	assert.True(t, state.AllHaveOutput())
}

func TestOverrideShortCircuitsExecution(t *testing.T) {
	r := twoStageRig(t)
	state, err := Initialize(r)
	require.NoError(t, err)

	state, err = Step(state, Instruction{Kind: SetOutputOverride, Handle: "a", Value: map[string]any{"value": 42.0}})
	require.NoError(t, err)

	bInput := state.Components["b"].ExecutionInput.Value.(map[string]any)
	assert.Equal(t, 42.0, bInput["value"])

	state, err = Step(state, Instruction{Kind: SetOutput, Handle: "b", Value: map[string]any{"value": 43.0}})
	require.NoError(t, err)
	out, _ := state.Components["b"].Output()
	assert.Equal(t, map[string]any{"value": 43.0}, out)

	state, err = Step(state, Instruction{Kind: ClearOutputOverride, Handle: "a"})
	require.NoError(t, err)
	_, aHasOutput := state.Components["a"].Output()
	assert.False(t, aHasOutput)
}

func TestSetOutputOverrideIdempotent(t *testing.T) {
	r := twoStageRig(t)
	state, err := Initialize(r)
	require.NoError(t, err)

	s1, err := Step(state, Instruction{Kind: SetOutputOverride, Handle: "a", Value: map[string]any{"value": 9.0}})
	require.NoError(t, err)
	s2, err := Step(s1, Instruction{Kind: SetOutputOverride, Handle: "a", Value: map[string]any{"value": 9.0}})
	require.NoError(t, err)

	out1, _ := s1.Components["a"].Output()
	out2, _ := s2.Components["a"].Output()
	assert.Equal(t, out1, out2)
	assert.Equal(t, s1.Components["b"].ExecutionInput.Hash, s2.Components["b"].ExecutionInput.Hash)
}

func TestHashStability(t *testing.T) {
	v1 := map[string]any{"a": 1.0, "b": []any{"x", "y"}}
	v2 := map[string]any{"b": []any{"x", "y"}, "a": 1.0}
	m1, err := NewJsonMetadata(v1)
	require.NoError(t, err)
	m2, err := NewJsonMetadata(v2)
	require.NoError(t, err)
	assert.Equal(t, m1.Hash, m2.Hash)
}

func TestSetOutputRejectsAlreadyPresentOutput(t *testing.T) {
	r := mustParseRig(t, `{
		"name": "single", "publisher": "acme", "version": "1.0.0",
		"rigging": {"components": {
			"t": {"component": "acme.increment.1.0.0", "input": {"value": 0}}
		}}
	}`)
	state, err := Initialize(r)
	require.NoError(t, err)
	state, err = Step(state, Instruction{Kind: SetOutput, Handle: "t", Value: map[string]any{"value": 1.0}})
	require.NoError(t, err)

	_, err = Step(state, Instruction{Kind: SetOutput, Handle: "t", Value: map[string]any{"value": 2.0}})
	require.Error(t, err)
}
