package engine

import (
	"sort"

	"github.com/slipwayhq/slipway-go/pkg/jsonpath"
	"github.com/slipwayhq/slipway-go/pkg/rig"
	"github.com/slipwayhq/slipway-go/pkg/slerr"
)

// ExecutionOutput is the recorded result of running a component for a
// given input hash, or a value installed by SetOutput.
type ExecutionOutput struct {
	Value         any
	InputHashUsed string
}

// ComponentState is the per-handle slice of an ExecutionState, per §3.
type ComponentState struct {
	Handle       string
	Rigging      rig.ComponentRigging
	Dependencies map[string]struct{}

	InputOverride  *any
	OutputOverride *any

	ExecutionInput  *JsonMetadata
	ExecutionOutput *ExecutionOutput
}

// Output returns the value visible to downstream components, per §3:
// OutputOverride if set, else ExecutionOutput.Value if set, else not
// present.
func (cs *ComponentState) Output() (any, bool) {
	if cs.OutputOverride != nil {
		return *cs.OutputOverride, true
	}
	if cs.ExecutionOutput != nil {
		return cs.ExecutionOutput.Value, true
	}
	return nil, false
}

// HasExecutionOutput reports whether the component has a visible output
// as far as the driver's runnability check is concerned (§4.10): an
// override counts, since it short-circuits execution entirely.
func (cs *ComponentState) HasExecutionOutput() bool {
	_, ok := cs.Output()
	return ok
}

// ExecutionState is one immutable snapshot of a running rig: every
// handle's ComponentState plus the grouped execution order derived from
// the current dependency graph (§4.4). A new ExecutionState is produced
// wholesale by Initialize or Step; nothing is mutated in place.
type ExecutionState struct {
	Rig        *rig.Rig
	Components map[string]*ComponentState
	Order      [][]string
}

// Initialize builds the first ExecutionState for r: every handle's
// dependencies are derived from its rigging input (§4.2), inputs are
// evaluated wherever possible (§4.3), and the execution order is
// computed (§4.4). Initialize itself performs no I/O; r is assumed to
// have already passed rig.Validate.
func Initialize(r *rig.Rig) (*ExecutionState, error) {
	components := make(map[string]*ComponentState, len(r.Rigging.Components))
	for handle, cr := range r.Rigging.Components {
		deps, err := jsonpath.ExtractDependencies(cr.Input)
		if err != nil {
			return nil, err
		}
		components[handle] = &ComponentState{
			Handle:       handle,
			Rigging:      cr,
			Dependencies: deps,
		}
	}

	state := &ExecutionState{Rig: r, Components: components}
	if err := state.recompute(); err != nil {
		return nil, err
	}
	return state, nil
}

// recompute re-evaluates every component's execution_input (§4.3) and
// the execution order (§4.4) from the current overrides and outputs. It
// mutates state in place; callers operating on an already-published
// state must clone first (see clone in step.go).
func (s *ExecutionState) recompute() error {
	for _, cs := range s.Components {
		if err := s.evaluateInput(cs); err != nil {
			return err
		}
	}
	order, err := s.computeOrder()
	if err != nil {
		return err
	}
	s.Order = order
	return nil
}

// evaluateInput implements §4.3 steps 1-5 for a single component.
func (s *ExecutionState) evaluateInput(cs *ComponentState) error {
	for dep := range cs.Dependencies {
		depState, ok := s.Components[dep]
		if !ok {
			return slerr.ValidationFailed("unknown dependency handle").
				WithDetail("handle", cs.Handle).WithDetail("dependency", dep)
		}
		if _, visible := depState.Output(); !visible {
			cs.ExecutionInput = nil
			return nil
		}
	}

	var raw any
	if cs.InputOverride != nil {
		raw = *cs.InputOverride
	} else {
		raw = cs.Rigging.Input
	}
	if raw == nil {
		raw = map[string]any{}
	}

	resolver := func(handle string) (any, bool) {
		depState, ok := s.Components[handle]
		if !ok {
			return nil, false
		}
		return depState.Output()
	}

	evaluated, err := jsonpath.Substitute(raw, resolver)
	if err != nil {
		return err
	}

	meta, err := NewJsonMetadata(evaluated)
	if err != nil {
		return err
	}
	cs.ExecutionInput = meta

	if cs.ExecutionOutput != nil && cs.ExecutionOutput.InputHashUsed != meta.Hash {
		cs.ExecutionOutput = nil
	}
	return nil
}

// computeOrder implements §4.4: a layered topological sort over the
// dependency graph, ties broken lexicographically by handle.
func (s *ExecutionState) computeOrder() ([][]string, error) {
	remaining := make(map[string]map[string]struct{}, len(s.Components))
	for h, cs := range s.Components {
		deps := make(map[string]struct{}, len(cs.Dependencies))
		for d := range cs.Dependencies {
			deps[d] = struct{}{}
		}
		remaining[h] = deps
	}

	var order [][]string
	placed := make(map[string]struct{}, len(s.Components))

	for len(placed) < len(s.Components) {
		var group []string
		for h, deps := range remaining {
			if _, done := placed[h]; done {
				continue
			}
			ready := true
			for d := range deps {
				if _, done := placed[d]; !done {
					ready = false
					break
				}
			}
			if ready {
				group = append(group, h)
			}
		}
		if len(group) == 0 {
			return nil, slerr.Internal("dependency graph failed to converge to a valid order", nil)
		}
		sort.Strings(group)
		for _, h := range group {
			placed[h] = struct{}{}
		}
		order = append(order, group)
	}

	return order, nil
}

// AllHaveOutput reports whether every component in s has a visible
// output, the driver's success condition (§4.10).
func (s *ExecutionState) AllHaveOutput() bool {
	for _, cs := range s.Components {
		if !cs.HasExecutionOutput() {
			return false
		}
	}
	return true
}

// NextRunnableGroup returns the first group in s.Order containing at
// least one handle with an execution_input present and no execution
// output yet, per §4.10. A nil slice means no group is currently
// runnable.
func (s *ExecutionState) NextRunnableGroup() []string {
	for _, group := range s.Order {
		var runnable []string
		for _, h := range group {
			cs := s.Components[h]
			if cs.ExecutionInput != nil && !cs.HasExecutionOutput() {
				runnable = append(runnable, h)
			}
		}
		if len(runnable) > 0 {
			return runnable
		}
	}
	return nil
}
