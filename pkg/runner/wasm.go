package runner

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/slipwayhq/slipway-go/pkg/capability"
	"github.com/slipwayhq/slipway-go/pkg/component"
	"github.com/slipwayhq/slipway-go/pkg/logging"
	"github.com/slipwayhq/slipway-go/pkg/slerr"
)

// WasmRunner executes components whose archive contains
// slipway_component.wasm. Host functions are registered in a module
// table the way the teacher's OCALL handler dispatches enclave-originated
// requests (system/tee/ocall_handler.go, system/tee/sys_api.go): a single
// generic host_call entry point takes a small JSON request envelope and
// returns a JSON response, rather than one bespoke import per capability
// — which keeps the guest ABI stable as the capability surface grows.
//
// Guest contract: export `memory`, `alloc(size int32) int32`, and
// `run(inputPtr, inputLen int32) int64` returning a packed
// (outputPtr<<32 | outputLen); import `env.host_call(reqPtr, reqLen int32) int64`
// returning the same packed pointer/length encoding for its JSON response.
type WasmRunner struct {
	runtime wazero.Runtime
	surface *capability.Surface
	log     *logging.Logger
}

// NewWasmRunner builds a WasmRunner with a shared wazero runtime; ctx is
// used only for runtime construction (module compilation caches, etc.).
func NewWasmRunner(ctx context.Context, surface *capability.Surface, log *logging.Logger) *WasmRunner {
	rt := wazero.NewRuntime(ctx)
	return &WasmRunner{runtime: rt, surface: surface, log: log}
}

// Close releases the underlying wazero runtime and any compiled modules.
func (r *WasmRunner) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}

func (r *WasmRunner) Identifier() string { return "wasm" }

func (r *WasmRunner) CanRun(files component.Files) bool {
	return files.Exists(component.WasmArtifact)
}

type hostRequest struct {
	Op      string   `json:"op"`
	URL     string   `json:"url,omitempty"`
	Key     string   `json:"key,omitempty"`
	Handle  string   `json:"handle,omitempty"`
	Path    string   `json:"path,omitempty"`
	Level   string   `json:"level,omitempty"`
	Message string   `json:"message,omitempty"`
	Stack   []string `json:"stack,omitempty"`
	Input   any      `json:"input,omitempty"`
}

type hostResponse struct {
	OK    bool   `json:"ok"`
	Data  string `json:"data,omitempty"` // base64
	Error string `json:"error,omitempty"`
	Found bool   `json:"found,omitempty"`
}

func (r *WasmRunner) Run(ctx context.Context, data ExecutionData) (TryRunResult, error) {
	wasmBytes, ok, err := data.Loaded.Files.TryGetBin(component.WasmArtifact)
	if err != nil {
		return TryRunResult{}, err
	}
	if !ok {
		return CannotRun, nil
	}

	ownDef, _, _ := data.Loaded.Files.TryGetBin(component.DefinitionFile)
	cc := capability.CallContext{
		Frame:         data.Frame,
		OwnDefinition: ownDef,
		Callouts:      data.Loaded.Definition.Callouts,
	}

	hostMod, err := r.runtime.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, reqPtr, reqLen uint32) uint64 {
			return r.handleHostCall(ctx, m, cc, data, reqPtr, reqLen)
		}).
		Export("host_call").
		Instantiate(ctx)
	if err != nil {
		return TryRunResult{}, slerr.Internal("failed to register wasm host module", err)
	}
	defer hostMod.Close(ctx)

	compiled, err := r.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return TryRunResult{}, slerr.RunComponentFailed(data.Handle, r.Identifier(), []string{err.Error()})
	}
	mod, err := r.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(data.Handle))
	if err != nil {
		return TryRunResult{}, slerr.RunComponentFailed(data.Handle, r.Identifier(), []string{err.Error()})
	}
	defer mod.Close(ctx)

	inputJSON, err := json.Marshal(data.Input)
	if err != nil {
		return TryRunResult{}, slerr.Internal("failed to marshal wasm input", err)
	}

	alloc := mod.ExportedFunction("alloc")
	run := mod.ExportedFunction("run")
	if alloc == nil || run == nil {
		return CannotRun, nil
	}

	inPtr, err := writeToGuest(ctx, mod, alloc, inputJSON)
	if err != nil {
		return TryRunResult{}, slerr.RunComponentFailed(data.Handle, r.Identifier(), []string{err.Error()})
	}

	results, err := run.Call(ctx, uint64(inPtr), uint64(len(inputJSON)))
	if err != nil {
		return TryRunResult{}, slerr.RunComponentFailed(data.Handle, r.Identifier(), []string{err.Error()})
	}
	outPtr, outLen := unpack(results[0])

	outBytes, ok := mod.Memory().Read(outPtr, outLen)
	if !ok {
		return TryRunResult{}, slerr.RunComponentFailed(data.Handle, r.Identifier(), []string{"failed to read wasm output from guest memory"})
	}

	var output any
	if err := json.Unmarshal(outBytes, &output); err != nil {
		return TryRunResult{}, slerr.RunComponentFailed(data.Handle, r.Identifier(), []string{err.Error()})
	}
	return Ran(output), nil
}

// handleHostCall dispatches one `env.host_call` invocation: read the
// request from guest memory, perform the capability call (permission
// checked against cc.Frame), write the JSON response back into newly
// allocated guest memory, and return it packed as the guest's alloc did.
func (r *WasmRunner) handleHostCall(ctx context.Context, mod api.Module, cc capability.CallContext, data ExecutionData, reqPtr, reqLen uint32) uint64 {
	reqBytes, ok := mod.Memory().Read(reqPtr, reqLen)
	if !ok {
		return 0
	}
	var req hostRequest
	if err := json.Unmarshal(reqBytes, &req); err != nil {
		return r.writeResponse(ctx, mod, hostResponse{Error: err.Error()})
	}

	resp := r.dispatch(ctx, cc, data, req)
	return r.writeResponse(ctx, mod, resp)
}

func (r *WasmRunner) dispatch(ctx context.Context, cc capability.CallContext, data ExecutionData, req hostRequest) hostResponse {
	switch req.Op {
	case "fetch":
		b, err := r.surface.Fetch(ctx, cc, req.URL)
		if err != nil {
			return hostResponse{Error: err.Error()}
		}
		return hostResponse{OK: true, Data: base64.StdEncoding.EncodeToString(b)}
	case "load_text":
		s, err := r.surface.LoadText(ctx, cc, req.Handle, req.Path)
		if err != nil {
			return hostResponse{Error: err.Error()}
		}
		return hostResponse{OK: true, Data: base64.StdEncoding.EncodeToString([]byte(s))}
	case "load_bin":
		b, err := r.surface.LoadBin(ctx, cc, req.Handle, req.Path)
		if err != nil {
			return hostResponse{Error: err.Error()}
		}
		return hostResponse{OK: true, Data: base64.StdEncoding.EncodeToString(b)}
	case "env":
		v, err := r.surface.Env(cc, req.Key)
		if err != nil {
			return hostResponse{Error: err.Error()}
		}
		return hostResponse{OK: true, Data: base64.StdEncoding.EncodeToString([]byte(v))}
	case "resolve_font":
		b, found, err := r.surface.TryResolveFont(cc, req.Stack)
		if err != nil {
			return hostResponse{Error: err.Error()}
		}
		return hostResponse{OK: true, Found: found, Data: base64.StdEncoding.EncodeToString(b)}
	case "log":
		r.surface.Log(data.Handle, logging.ComponentLevel(req.Level), req.Message)
		return hostResponse{OK: true}
	case "invoke_callout":
		output, err := r.surface.InvokeCallout(ctx, cc, req.Handle, req.Input)
		if err != nil {
			return hostResponse{Error: err.Error()}
		}
		outJSON, err := json.Marshal(output)
		if err != nil {
			return hostResponse{Error: err.Error()}
		}
		return hostResponse{OK: true, Data: base64.StdEncoding.EncodeToString(outJSON)}
	default:
		return hostResponse{Error: "unknown host op: " + req.Op}
	}
}

func (r *WasmRunner) writeResponse(ctx context.Context, mod api.Module, resp hostResponse) uint64 {
	payload, err := json.Marshal(resp)
	if err != nil {
		return 0
	}
	alloc := mod.ExportedFunction("alloc")
	if alloc == nil {
		return 0
	}
	ptr, err := writeToGuest(ctx, mod, alloc, payload)
	if err != nil {
		return 0
	}
	return pack(ptr, uint32(len(payload)))
}

func writeToGuest(ctx context.Context, mod api.Module, alloc api.Function, data []byte) (uint32, error) {
	results, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, err
	}
	ptr := uint32(results[0])
	if !mod.Memory().Write(ptr, data) {
		return 0, slerr.Internal("failed to write to guest memory", nil)
	}
	return ptr, nil
}

func pack(ptr, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

func unpack(packed uint64) (uint32, uint32) {
	return uint32(packed >> 32), uint32(packed)
}
