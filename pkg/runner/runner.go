// Package runner implements §4.7 of the rig spec: the Runner interface
// and dispatch, plus three concrete runners — WASM (wazero), JavaScript
// (goja), and fragment (recursive sub-rig).
package runner

import (
	"context"

	"github.com/slipwayhq/slipway-go/pkg/callchain"
	"github.com/slipwayhq/slipway-go/pkg/component"
)

// ExecutionData is everything a Runner needs to run one component
// invocation: its loaded artifact, the evaluated input, and the call
// chain frame under which capability calls are checked.
type ExecutionData struct {
	Handle string
	Loaded *component.Loaded
	Input  any
	Frame  *callchain.Frame
}

// TryRunResult is the outcome of a Runner's Run call: either it ran and
// produced an output, or it declined because it does not claim this
// component. CannotRun is a first-class value, not an error, per §9
// DESIGN NOTES.
type TryRunResult struct {
	Ran    bool
	Output any
}

// Ran constructs a TryRunResult recording a successful run.
func Ran(output any) TryRunResult { return TryRunResult{Ran: true, Output: output} }

// CannotRun is the sentinel "this runner does not claim the component"
// result.
var CannotRun = TryRunResult{Ran: false}

// Runner claims components whose Files match a well-known shape and
// executes them. Runners are an open sum over this interface, scanned in
// registration order by the driver (§4.7, §9 DESIGN NOTES).
type Runner interface {
	Identifier() string
	CanRun(files component.Files) bool
	Run(ctx context.Context, data ExecutionData) (TryRunResult, error)
}

// Dispatch tries each runner in order, returning the first that claims
// data.Loaded.Files; if none claim it, claimed is false.
func Dispatch(ctx context.Context, runners []Runner, data ExecutionData) (result TryRunResult, runnerID string, claimed bool, err error) {
	for _, r := range runners {
		if !r.CanRun(data.Loaded.Files) {
			continue
		}
		res, err := r.Run(ctx, data)
		if err != nil {
			return TryRunResult{}, r.Identifier(), true, err
		}
		if res.Ran {
			return res, r.Identifier(), true, nil
		}
		// A runner that claims via CanRun but returns CannotRun from Run
		// is treated as a non-claim; keep scanning.
	}
	return TryRunResult{}, "", false, nil
}
