package runner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"

	"github.com/slipwayhq/slipway-go/pkg/capability"
	"github.com/slipwayhq/slipway-go/pkg/component"
	"github.com/slipwayhq/slipway-go/pkg/logging"
	"github.com/slipwayhq/slipway-go/pkg/slerr"
)

// entryPoint is the well-known exported function name a JS component must
// define.
const entryPoint = "handle"

// JSRunner executes components whose archive contains a
// slipway_js_component.json manifest, grounded directly on the gojaScriptEngine
// pattern: a fresh goja.Runtime per execution for isolation, a
// console.log shim capturing log lines, and the entry point invoked via
// goja.AssertFunction. Where that pattern hand-rolls fetch/base64/crypto
// as JS-only stand-ins, this runner exposes a `host` object whose fetch,
// env, log, encodeBin, decodeBin and callout functions call the real
// capability surface; no crypto helper is provided.
type JSRunner struct {
	surface *capability.Surface
	log     *logging.Logger
}

// NewJSRunner builds a JSRunner bound to surface.
func NewJSRunner(surface *capability.Surface, log *logging.Logger) *JSRunner {
	return &JSRunner{surface: surface, log: log}
}

func (r *JSRunner) Identifier() string { return "js" }

func (r *JSRunner) CanRun(files component.Files) bool {
	return files.Exists(component.JSComponentManifest)
}

type jsManifest struct {
	Script     string `json:"script"`
	EntryPoint string `json:"entry_point,omitempty"`
}

func (r *JSRunner) Run(ctx context.Context, data ExecutionData) (TryRunResult, error) {
	manifestRaw, ok, err := data.Loaded.Files.TryGetText(component.JSComponentManifest)
	if err != nil {
		return TryRunResult{}, err
	}
	if !ok {
		return CannotRun, nil
	}
	var manifest jsManifest
	if err := json.Unmarshal([]byte(manifestRaw), &manifest); err != nil {
		return TryRunResult{}, slerr.ParseFailed("js component manifest", err)
	}
	script, ok, err := data.Loaded.Files.TryGetText(manifest.Script)
	if err != nil {
		return TryRunResult{}, err
	}
	if !ok {
		return TryRunResult{}, slerr.New(slerr.CodeRunComponentFailed, "js component script file missing").
			WithDetail("handle", data.Handle).WithDetail("script", manifest.Script)
	}
	entry := manifest.EntryPoint
	if entry == "" {
		entry = entryPoint
	}

	vm := goja.New()

	console := vm.NewObject()
	_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
		args := make([]any, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = a.Export()
		}
		r.log.LogFromComponent(data.Handle, logging.LevelInfo, fmt.Sprint(args...))
		return goja.Undefined()
	})
	_ = vm.Set("console", console)

	ownDef, _, _ := data.Loaded.Files.TryGetBin(component.DefinitionFile)
	cc := capability.CallContext{
		Frame:         data.Frame,
		OwnDefinition: ownDef,
		Callouts:      data.Loaded.Definition.Callouts,
	}

	host := vm.NewObject()
	_ = host.Set("fetch", func(call goja.FunctionCall) goja.Value {
		url := call.Argument(0).String()
		b, err := r.surface.Fetch(ctx, cc, url)
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return vm.ToValue(string(b))
	})
	_ = host.Set("env", func(call goja.FunctionCall) goja.Value {
		v, err := r.surface.Env(cc, call.Argument(0).String())
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return vm.ToValue(v)
	})
	_ = host.Set("log", func(call goja.FunctionCall) goja.Value {
		level := logging.ComponentLevel(call.Argument(0).String())
		r.surface.Log(data.Handle, level, call.Argument(1).String())
		return goja.Undefined()
	})
	_ = host.Set("encodeBin", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(capability.EncodeBin([]byte(call.Argument(0).String())))
	})
	_ = host.Set("decodeBin", func(call goja.FunctionCall) goja.Value {
		b, err := capability.DecodeBin(call.Argument(0).String())
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return vm.ToValue(string(b))
	})
	_ = host.Set("callout", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		output, err := r.surface.InvokeCallout(ctx, cc, name, call.Argument(1).Export())
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return vm.ToValue(output)
	})
	_ = vm.Set("host", host)
	_ = vm.Set("input", vm.ToValue(data.Input))

	if _, err := vm.RunString(script); err != nil {
		return TryRunResult{}, slerr.RunComponentFailed(data.Handle, r.Identifier(), []string{err.Error()})
	}

	fn, ok := goja.AssertFunction(vm.Get(entry))
	if !ok {
		return TryRunResult{}, slerr.RunComponentFailed(data.Handle, r.Identifier(),
			[]string{fmt.Sprintf("entry point %q is not a function", entry)})
	}

	result, err := fn(goja.Undefined(), vm.Get("input"))
	if err != nil {
		return TryRunResult{}, slerr.RunComponentFailed(data.Handle, r.Identifier(), []string{err.Error()})
	}

	output, err := exportOutput(result)
	if err != nil {
		return TryRunResult{}, slerr.RunComponentFailed(data.Handle, r.Identifier(), []string{err.Error()})
	}
	return Ran(output), nil
}

func exportOutput(v goja.Value) (any, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	exported := v.Export()
	data, err := json.Marshal(exported)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
