package engine

import "github.com/slipwayhq/slipway-go/pkg/slerr"

// InstructionKind discriminates the closed set of operations step()
// accepts, per §4.5.
type InstructionKind int

const (
	SetInputOverride InstructionKind = iota
	ClearInputOverride
	SetOutputOverride
	ClearOutputOverride
	SetOutput
)

// Instruction is the single operation type accepted by Step.
type Instruction struct {
	Kind   InstructionKind
	Handle string
	Value  any
}

// clone produces a deep-enough copy of s for Step to mutate without
// disturbing the published state the caller may still be holding.
// ComponentState values are always replaced wholesale rather than
// mutated, matching the "states are cheap to share, definitions and file
// handles are reference-counted" discipline of §3.
func (s *ExecutionState) clone() *ExecutionState {
	components := make(map[string]*ComponentState, len(s.Components))
	for h, cs := range s.Components {
		copyCS := *cs
		components[h] = &copyCS
	}
	return &ExecutionState{Rig: s.Rig, Components: components}
}

// Step applies instr to s and returns a new immutable ExecutionState with
// inputs re-evaluated and the execution order recomputed, per §4.5. s
// itself is never mutated.
func Step(s *ExecutionState, instr Instruction) (*ExecutionState, error) {
	next := s.clone()
	cs, ok := next.Components[instr.Handle]
	if !ok {
		return nil, slerr.ValidationFailed("unknown handle").WithDetail("handle", instr.Handle)
	}

	switch instr.Kind {
	case SetInputOverride:
		v := instr.Value
		cs.InputOverride = &v
		cs.ExecutionOutput = nil

	case ClearInputOverride:
		cs.InputOverride = nil
		cs.ExecutionOutput = nil

	case SetOutputOverride:
		v := instr.Value
		cs.OutputOverride = &v

	case ClearOutputOverride:
		cs.OutputOverride = nil

	case SetOutput:
		if cs.ExecutionInput == nil {
			return nil, slerr.Internal("SetOutput applied to a component with no evaluated input", nil).
				WithDetail("handle", instr.Handle)
		}
		if cs.HasExecutionOutput() {
			return nil, slerr.Internal("SetOutput applied to a component that already has an output", nil).
				WithDetail("handle", instr.Handle)
		}
		cs.ExecutionOutput = &ExecutionOutput{Value: instr.Value, InputHashUsed: cs.ExecutionInput.Hash}

	default:
		return nil, slerr.Internal("unknown instruction kind", nil)
	}

	if err := next.recompute(); err != nil {
		return nil, err
	}
	return next, nil
}
