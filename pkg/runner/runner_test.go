package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipwayhq/slipway-go/pkg/capability"
	"github.com/slipwayhq/slipway-go/pkg/component"
	"github.com/slipwayhq/slipway-go/pkg/loader"
	"github.com/slipwayhq/slipway-go/pkg/logging"
	"github.com/slipwayhq/slipway-go/pkg/reference"
)

var testRef = reference.Local("test")

func newTestJSRunner(t *testing.T) *JSRunner {
	t.Helper()
	log := logging.NewDefault("test")
	chain := loader.NewChain(log)
	cache := loader.NewCache(log, chain)
	surface := capability.New(cache, &capability.DirFontStore{}, func(string) (string, bool) { return "", false }, log, nil)
	return NewJSRunner(surface, log)
}

func TestJSRunnerCanRun(t *testing.T) {
	r := newTestJSRunner(t)
	files := component.NewMemFiles(testRef, map[string][]byte{
		component.JSComponentManifest: []byte(`{}`),
	})
	assert.True(t, r.CanRun(files))

	emptyFiles := component.NewMemFiles(testRef, map[string][]byte{})
	assert.False(t, r.CanRun(emptyFiles))
}

func TestJSRunnerExecutesIncrement(t *testing.T) {
	r := newTestJSRunner(t)
	def, err := component.ParseDefinition([]byte(`{"publisher":"acme","name":"increment","version":"1.0.0"}`))
	require.NoError(t, err)

	script := `function handle(input) { return {value: input.value + 1}; }`
	files := component.NewMemFiles(testRef, map[string][]byte{
		component.JSComponentManifest: []byte(`{"script":"index.js"}`),
		"index.js":                    []byte(script),
		component.DefinitionFile:      []byte(`{"publisher":"acme","name":"increment","version":"1.0.0"}`),
	})
	loaded := &component.Loaded{Definition: def, Files: files}

	result, err := r.Run(context.Background(), ExecutionData{
		Handle: "t",
		Loaded: loaded,
		Input:  map[string]any{"value": 5.0},
	})
	require.NoError(t, err)
	assert.True(t, result.Ran)
	assert.Equal(t, map[string]any{"value": 6.0}, result.Output)
}

func TestJSRunnerReportsScriptError(t *testing.T) {
	r := newTestJSRunner(t)
	def, _ := component.ParseDefinition([]byte(`{"publisher":"acme","name":"broken","version":"1.0.0"}`))
	files := component.NewMemFiles(testRef, map[string][]byte{
		component.JSComponentManifest: []byte(`{"script":"index.js"}`),
		"index.js":                    []byte(`this is not valid javascript {{{`),
	})
	loaded := &component.Loaded{Definition: def, Files: files}

	_, err := r.Run(context.Background(), ExecutionData{Handle: "t", Loaded: loaded, Input: map[string]any{}})
	require.Error(t, err)
}

func TestDispatchNoneClaim(t *testing.T) {
	r := newTestJSRunner(t)
	def, _ := component.ParseDefinition([]byte(`{"publisher":"acme","name":"plain","version":"1.0.0"}`))
	files := component.NewMemFiles(testRef, map[string][]byte{})
	loaded := &component.Loaded{Definition: def, Files: files}

	_, _, claimed, err := Dispatch(context.Background(), []Runner{r}, ExecutionData{Handle: "t", Loaded: loaded})
	require.NoError(t, err)
	assert.False(t, claimed)
}
