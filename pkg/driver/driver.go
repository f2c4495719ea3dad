// Package driver implements §4.10 of the rig spec: the top-level run
// loop that drives a rig's execution state to completion, dispatching
// runners per runnable group and folding outputs back via engine.Step,
// plus the recursive callout/fragment entry points the capability
// surface and fragment runner call back into.
package driver

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slipwayhq/slipway-go/pkg/callchain"
	"github.com/slipwayhq/slipway-go/pkg/capability"
	"github.com/slipwayhq/slipway-go/pkg/engine"
	"github.com/slipwayhq/slipway-go/pkg/loader"
	"github.com/slipwayhq/slipway-go/pkg/logging"
	"github.com/slipwayhq/slipway-go/pkg/metrics"
	"github.com/slipwayhq/slipway-go/pkg/permission"
	"github.com/slipwayhq/slipway-go/pkg/rig"
	"github.com/slipwayhq/slipway-go/pkg/runner"
	"github.com/slipwayhq/slipway-go/pkg/slerr"
)

// Outcome is the exit-code convention of §6: a rig run ends in exactly
// one of these three states.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeStalled
	OutcomeFailed
)

// EventHandler observes a run without influencing it — the abstract
// interface §4.10 names for UI/tracing integrations. Every method has a
// no-op default via NopEventHandler so embedders only implement what
// they need.
type EventHandler interface {
	ComponentRunStart(handle string)
	ComponentRunEnd(handle string, err error)
	StateChange(state *engine.ExecutionState)
}

// NopEventHandler implements EventHandler with no-ops.
type NopEventHandler struct{}

func (NopEventHandler) ComponentRunStart(string)           {}
func (NopEventHandler) ComponentRunEnd(string, error)      {}
func (NopEventHandler) StateChange(*engine.ExecutionState) {}

// Result is the terminal outcome of Driver.Run.
type Result struct {
	RunID   string
	Outcome Outcome
	State   *engine.ExecutionState
	Err     error
}

// Driver owns the run loop, the component cache, and the registered
// runner chain. One Driver can run many rigs (top-level and recursive
// callouts/fragments) sharing the same cache.
type Driver struct {
	cache   *loader.Cache
	runners []runner.Runner
	surface *capability.Surface
	log     *logging.Logger
	events  EventHandler
	metrics *metrics.Metrics
}

// SetMetrics wires runner dispatch counters into the driver. Optional: a
// Driver with no metrics attached simply doesn't record any.
func (d *Driver) SetMetrics(m *metrics.Metrics) {
	d.metrics = m
}

// New builds a Driver. The caller constructs the capability.Surface and
// runners first, then calls surface.SetCalloutInvoker(driver) to close
// the construction cycle described in pkg/capability.
func New(cache *loader.Cache, surface *capability.Surface, runners []runner.Runner, log *logging.Logger, events EventHandler) *Driver {
	if events == nil {
		events = NopEventHandler{}
	}
	d := &Driver{cache: cache, runners: runners, surface: surface, log: log, events: events}
	return d
}

// Run drives r to completion (or stall) from a top-level invocation: a
// single root call-chain frame carrying rootPermissions. Every call gets
// its own RunID, useful for correlating log lines and EventHandler
// callbacks across a single run.
func (d *Driver) Run(ctx context.Context, r *rig.Rig, rootPermissions permission.Set) Result {
	runID := uuid.NewString()
	log := d.log.WithField("run_id", runID)

	state, err := engine.Initialize(r)
	if err != nil {
		log.WithError(err).Debug("run failed during initialization")
		return Result{RunID: runID, Outcome: OutcomeFailed, Err: err}
	}
	frame := callchain.Root("__root__", rootPermissions)
	result := d.drive(ctx, state, frame)
	result.RunID = runID
	log.WithField("outcome", int(result.Outcome)).Debug("run complete")
	return result
}

// drive implements the §4.10 loop body against an already-initialized
// state and a call-chain frame (root or callout-derived).
func (d *Driver) drive(ctx context.Context, state *engine.ExecutionState, parentFrame *callchain.Frame) Result {
	for {
		select {
		case <-ctx.Done():
			return Result{Outcome: OutcomeFailed, State: state, Err: slerr.Cancelled()}
		default:
		}

		group := state.NextRunnableGroup()
		if len(group) == 0 {
			if state.AllHaveOutput() {
				return Result{Outcome: OutcomeSuccess, State: state}
			}
			return Result{Outcome: OutcomeStalled, State: state}
		}

		next, err := d.runGroup(ctx, state, parentFrame, group)
		if err != nil {
			return Result{Outcome: OutcomeFailed, State: state, Err: err}
		}
		state = next
		d.events.StateChange(state)
	}
}

// runGroup runs every handle in group, which may be dispatched
// concurrently since outputs within a group are commutative (§5), and
// folds every SetOutput back into a single next state. A failure in any
// handle aborts the whole group atomically: no partial outputs from this
// group are applied (§5 cancellation invariant).
func (d *Driver) runGroup(ctx context.Context, state *engine.ExecutionState, parentFrame *callchain.Frame, group []string) (*engine.ExecutionState, error) {
	type outcome struct {
		handle string
		output any
		err    error
	}
	results := make(chan outcome, len(group))

	var wg sync.WaitGroup
	for _, handle := range group {
		handle := handle
		wg.Add(1)
		go func() {
			defer wg.Done()
			output, err := d.runOne(ctx, state, parentFrame, handle)
			results <- outcome{handle: handle, output: output, err: err}
		}()
	}
	wg.Wait()
	close(results)

	collected := make([]outcome, 0, len(group))
	for o := range results {
		collected = append(collected, o)
	}

	for _, o := range collected {
		if o.err != nil {
			return nil, o.err
		}
	}

	next := state
	for _, o := range collected {
		var err error
		next, err = engine.Step(next, engine.Instruction{Kind: engine.SetOutput, Handle: o.handle, Value: o.output})
		if err != nil {
			return nil, err
		}
	}
	return next, nil
}

func (d *Driver) runOne(ctx context.Context, state *engine.ExecutionState, parentFrame *callchain.Frame, handle string) (any, error) {
	d.events.ComponentRunStart(handle)
	output, err := d.runComponent(ctx, state, parentFrame, handle)
	d.events.ComponentRunEnd(handle, err)
	return output, err
}

func (d *Driver) runComponent(ctx context.Context, state *engine.ExecutionState, parentFrame *callchain.Frame, handle string) (any, error) {
	cs := state.Components[handle]
	frame := parentFrame.Push(handle, cs.Rigging.Permissions)

	loaded, err := d.cache.Get(ctx, cs.Rigging.Component)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, runnerID, claimed, err := runner.Dispatch(ctx, d.runners, runner.ExecutionData{
		Handle: handle,
		Loaded: loaded,
		Input:  cs.ExecutionInput.Value,
		Frame:  frame,
	})
	duration := time.Since(start)
	switch {
	case err != nil:
		d.metrics.RecordRunnerDispatch(runnerID, "error", duration)
		return nil, err
	case !claimed, !res.Ran:
		d.metrics.RecordRunnerDispatch(runnerID, "declined", duration)
		return nil, slerr.NoRunnerAvailable(handle)
	}
	d.metrics.RecordRunnerDispatch(runnerID, "ran", duration)
	d.log.WithField("handle", handle).WithField("runner", runnerID).Debug("component run complete")
	return res.Output, nil
}

// InvokeCallout implements capability.CalloutInvoker: it resolves
// calloutName against the currently running component's declared
// callouts, loads the target, runs it to completion as a
// single-component invocation with input as its literal input, and
// returns its output. The callout runs in a frame pushed beneath
// cc.Frame with an empty permission set (the synthetic rig gives it no
// permissions), so every permission-checked capability call the callout
// itself makes is denied.
func (d *Driver) InvokeCallout(ctx context.Context, cc capability.CallContext, calloutName string, input any) (any, error) {
	ref, ok := cc.Callouts[calloutName]
	if !ok {
		return nil, slerr.ValidationFailed("unknown callout handle").WithDetail("handle", calloutName)
	}

	loaded, err := d.cache.Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	soloRig := &rig.Rig{
		Name:      "callout",
		Publisher: "slipway",
		Version:   "1.0.0",
		Rigging: rig.Rigging{
			Components: map[string]rig.ComponentRigging{
				calloutName: {Component: ref, Input: input},
			},
		},
	}
	state, err := engine.Initialize(soloRig)
	if err != nil {
		return nil, err
	}

	_ = loaded // the cache lookup above both validates the reference resolves and warms it before drive() re-fetches it by reference

	result := d.drive(ctx, state, cc.Frame)
	if result.Err != nil {
		return nil, result.Err
	}
	if result.Outcome != OutcomeSuccess {
		return nil, slerr.New(slerr.CodeRunComponentFailed, "callout stalled").WithDetail("handle", calloutName)
	}
	output, _ := result.State.Components[calloutName].Output()
	return output, nil
}

// RunFragment implements runner.FragmentExecutor: it interprets the
// component's own `rigging` field as a nested rig and recursively drives
// it through the same engine, reusing the parent's call-chain frame so
// permissions narrow exactly as they would for any other callout.
func (d *Driver) RunFragment(ctx context.Context, data runner.ExecutionData) (any, error) {
	inner, err := parseFragmentRig(data.Loaded.Definition.Rigging)
	if err != nil {
		return nil, err
	}

	state, err := engine.Initialize(inner)
	if err != nil {
		return nil, err
	}
	if data.Input != nil {
		if root, ok := findFragmentRoot(inner); ok {
			state, err = engine.Step(state, engine.Instruction{Kind: engine.SetInputOverride, Handle: root, Value: data.Input})
			if err != nil {
				return nil, err
			}
		}
	}

	result := d.drive(ctx, state, data.Frame)
	if result.Err != nil {
		return nil, result.Err
	}
	if result.Outcome != OutcomeSuccess {
		return nil, slerr.New(slerr.CodeRunComponentFailed, "fragment stalled").WithDetail("handle", data.Handle)
	}

	output := map[string]any{}
	for h, cs := range result.State.Components {
		if v, ok := cs.Output(); ok {
			output[h] = v
		}
	}
	return output, nil
}

// findFragmentRoot returns the single handle with no dependencies when
// there is exactly one, used as the conventional entry point a
// fragment's caller-supplied input feeds into.
func findFragmentRoot(r *rig.Rig) (string, bool) {
	var root string
	count := 0
	for handle, cr := range r.Rigging.Components {
		deps, err := rig.DependenciesOf(cr.Input)
		if err != nil {
			continue
		}
		if len(deps) == 0 {
			root = handle
			count++
		}
	}
	if count == 1 {
		return root, true
	}
	return "", false
}

// parseFragmentRig decodes a fragment component's `rigging` field — a
// handle -> ComponentRigging map, the same shape as a top-level rig's
// rigging — into a standalone Rig wrapper so it can be driven through
// the ordinary engine/driver path.
func parseFragmentRig(raw json.RawMessage) (*rig.Rig, error) {
	var rigging rig.Rigging
	if err := json.Unmarshal(raw, &rigging); err != nil {
		return nil, slerr.ParseFailed("fragment rigging", err)
	}
	return &rig.Rig{
		Name:      "fragment",
		Publisher: "slipway",
		Version:   "0.0.0",
		Rigging:   rigging,
	}, nil
}
