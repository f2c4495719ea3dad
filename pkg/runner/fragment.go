package runner

import (
	"context"
	"encoding/json"

	"github.com/slipwayhq/slipway-go/pkg/component"
	"github.com/slipwayhq/slipway-go/pkg/slerr"
)

// FragmentExecutor recursively drives a component's inner rigging as a
// sub-rig, per §4.7; implemented by pkg/driver to avoid runner depending
// on driver (driver already depends on runner for dispatch).
type FragmentExecutor interface {
	RunFragment(ctx context.Context, data ExecutionData) (any, error)
}

// FragmentRunner claims components whose definition carries an inner
// `rigging` field and interprets it as a nested rig, recursively invoking
// the top-level driver via executor — pure composition of the core, no
// new third-party dependency.
type FragmentRunner struct {
	executor FragmentExecutor
}

// NewFragmentRunner builds a FragmentRunner delegating recursive
// invocation to executor.
func NewFragmentRunner(executor FragmentExecutor) *FragmentRunner {
	return &FragmentRunner{executor: executor}
}

func (r *FragmentRunner) Identifier() string { return "fragment" }

func (r *FragmentRunner) CanRun(files component.Files) bool {
	raw, ok, err := files.TryGetBin(component.DefinitionFile)
	if err != nil || !ok {
		return false
	}
	var def component.Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return false
	}
	return def.IsFragment()
}

func (r *FragmentRunner) Run(ctx context.Context, data ExecutionData) (TryRunResult, error) {
	if !data.Loaded.Definition.IsFragment() {
		return CannotRun, nil
	}
	output, err := r.executor.RunFragment(ctx, data)
	if err != nil {
		return TryRunResult{}, slerr.RunComponentFailed(data.Handle, r.Identifier(), []string{err.Error()})
	}
	return Ran(output), nil
}
