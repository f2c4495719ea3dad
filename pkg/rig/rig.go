// Package rig implements the rig description data model and its parser
// and static validator: §3 (Rig, ComponentRigging) and §6 (Rig JSON
// schema) of the rig spec.
package rig

import (
	"encoding/json"

	"github.com/slipwayhq/slipway-go/pkg/identifier"
	"github.com/slipwayhq/slipway-go/pkg/permission"
	"github.com/slipwayhq/slipway-go/pkg/reference"
	"github.com/slipwayhq/slipway-go/pkg/slerr"
)

// ComponentRigging is the body of one component invocation inside a rig:
// which component to run, its literal input (if any), the permissions it
// runs under, any callout overrides, and a list of allowed handles.
// Validate checks that every allowed handle exists in the rig; nothing
// else reads Allow, so it does not restrict which outputs a component's
// input may reference.
type ComponentRigging struct {
	Component   reference.Reference            `json:"component"`
	Input       any                             `json:"input,omitempty"`
	Permissions permission.Set                  `json:"permissions,omitempty"`
	Callouts    map[string]reference.Reference  `json:"callouts,omitempty"`
	Allow       []string                        `json:"allow,omitempty"`
}

// Rigging is the handle -> ComponentRigging map that gives a Rig its
// shape; see §3.
type Rigging struct {
	Components map[string]ComponentRigging `json:"components"`
}

// Rig is a named, versioned collection of component invocations with
// data-flow references between them, per §3 and the JSON shape in §6.
type Rig struct {
	Name        string          `json:"name"`
	Publisher   string          `json:"publisher"`
	Version     string          `json:"version"`
	Description string          `json:"description,omitempty"`
	Constants   json.RawMessage `json:"constants,omitempty"`
	Rigging     Rigging         `json:"rigging"`
}

// Parse deserializes a rig description and runs static validation (§3
// invariants, §4.1 identifier shapes, §4.2 dependency cycle detection)
// before returning it. A structurally valid but semantically invalid rig
// (unknown handle reference, cycle, malformed identifier) is reported as
// a slerr.ValidationFailed error, never a panic.
func Parse(data []byte) (*Rig, error) {
	var r Rig
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, slerr.ParseFailed("rig", err)
	}
	if err := Validate(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks the static invariants of a parsed Rig: every handle is a
// valid identifier (§4.1), every `allow` handle and every handle referenced
// by a literal input exists in the same rig, and the dependency
// graph induced by each component's literal input is acyclic (§3, §8
// property 4).
func Validate(r *Rig) error {
	if _, err := identifier.New(identifier.KindRigName, r.Name); err != nil {
		return err
	}
	if _, err := identifier.New(identifier.KindPublisher, r.Publisher); err != nil {
		return err
	}

	deps := make(map[string]map[string]struct{}, len(r.Rigging.Components))
	for handle, cr := range r.Rigging.Components {
		if _, err := identifier.New(identifier.KindHandle, handle); err != nil {
			return err
		}
		for _, allowed := range cr.Allow {
			if _, ok := r.Rigging.Components[allowed]; !ok {
				return slerr.ValidationFailed("handle allows unknown handle").
					WithDetail("handle", handle).WithDetail("allowed", allowed)
			}
		}
		d, err := DependenciesOf(cr.Input)
		if err != nil {
			return err
		}
		for dep := range d {
			if _, ok := r.Rigging.Components[dep]; !ok {
				return slerr.ValidationFailed("unknown dependency handle").
					WithDetail("handle", handle).WithDetail("dependency", dep)
			}
		}
		deps[handle] = d
	}

	if cycle, ok := DetectCycle(deps); ok {
		return slerr.ValidationFailed("dependency cycle detected").WithDetail("cycle", cycle)
	}

	return nil
}
