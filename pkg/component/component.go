// Package component implements the component definition and file
// abstractions of §3: an immutable description of a loaded component
// (publisher, name, version, schemas, constants, optional fragment
// rigging, optional callouts) plus the reference-counted byte handle that
// backs it regardless of whether it came from a tarball, a directory, or
// an in-memory map.
package component

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/slipwayhq/slipway-go/pkg/reference"
	"github.com/slipwayhq/slipway-go/pkg/slerr"
)

// DefinitionFile is the well-known name of a component's own definition
// inside its archive; rig_get_component_file.rs's no-file-segment
// behavior (SPEC_FULL.md §9) defaults to returning this file's bytes.
const DefinitionFile = "slipway_component.json"

// WasmArtifact and JSComponentManifest are the well-known filenames a
// runner probes for in can_run (§4.7).
const (
	WasmArtifact        = "slipway_component.wasm"
	JSComponentManifest = "slipway_js_component.json"
)

// Definition is the immutable record described by a component's
// slipway_component.json, per §3.
type Definition struct {
	Publisher    string              `json:"publisher"`
	Name         string              `json:"name"`
	Version      string              `json:"version"`
	Description  string              `json:"description,omitempty"`
	InputSchema  json.RawMessage     `json:"input_schema,omitempty"`
	OutputSchema json.RawMessage     `json:"output_schema,omitempty"`
	Constants    json.RawMessage     `json:"constants,omitempty"`
	Rigging      json.RawMessage     `json:"rigging,omitempty"`
	Callouts     map[string]reference.Reference `json:"callouts,omitempty"`

	compiledInput  *jsonschema.Schema
	compiledOutput *jsonschema.Schema
}

// ParseDefinition deserializes a slipway_component.json payload and
// compiles any present JSON Schemas up front, so a malformed schema fails
// fast at load time rather than at the first validation call.
func ParseDefinition(data []byte) (*Definition, error) {
	var d Definition
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, slerr.ParseFailed("component definition", err)
	}
	if len(d.InputSchema) > 0 {
		s, err := compileSchema("input_schema", d.InputSchema)
		if err != nil {
			return nil, err
		}
		d.compiledInput = s
	}
	if len(d.OutputSchema) > 0 {
		s, err := compileSchema("output_schema", d.OutputSchema)
		if err != nil {
			return nil, err
		}
		d.compiledOutput = s
	}
	return &d, nil
}

func compileSchema(field string, raw json.RawMessage) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, slerr.ParseFailed(field, err)
	}
	const resourceURL = "mem://" + "schema"
	if err := c.AddResource(resourceURL, doc); err != nil {
		return nil, slerr.ValidationFailed("invalid " + field).WithDetail("error", err.Error())
	}
	schema, err := c.Compile(resourceURL)
	if err != nil {
		return nil, slerr.ValidationFailed("invalid " + field).WithDetail("error", err.Error())
	}
	return schema, nil
}

// ValidateInput checks v against the component's input schema, if one is
// declared; components with no declared schema accept any input.
func (d *Definition) ValidateInput(v any) error {
	return validateAgainst(d.compiledInput, "input", v)
}

// ValidateOutput checks v against the component's output schema, if one
// is declared.
func (d *Definition) ValidateOutput(v any) error {
	return validateAgainst(d.compiledOutput, "output", v)
}

func validateAgainst(schema *jsonschema.Schema, what string, v any) error {
	if schema == nil {
		return nil
	}
	// jsonschema/v6 validates decoded-JSON values directly; round-trip
	// through encoding/json first so numeric types match its expectations.
	data, err := json.Marshal(v)
	if err != nil {
		return slerr.Internal("failed to marshal value for "+what+" validation", err)
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return slerr.Internal("failed to decode value for "+what+" validation", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return slerr.ValidationFailed(what + " does not match declared schema").WithDetail("error", err.Error())
	}
	return nil
}

// IsFragment reports whether this component is a declarative fragment
// (has an inner rigging) rather than a WASM or JS executable.
func (d *Definition) IsFragment() bool {
	return len(d.Rigging) > 0
}
