// Package capability implements the host capability surface of §4.8: the
// functions runners expose to sandboxed code (fetch, file/text/bin reads,
// env lookup, font resolution, logging, base64 helpers), every one of
// them gated by a permission check against the current call chain
// (§4.9) before it does any real work.
package capability

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/slipwayhq/slipway-go/pkg/callchain"
	"github.com/slipwayhq/slipway-go/pkg/component"
	"github.com/slipwayhq/slipway-go/pkg/loader"
	"github.com/slipwayhq/slipway-go/pkg/logging"
	"github.com/slipwayhq/slipway-go/pkg/metrics"
	"github.com/slipwayhq/slipway-go/pkg/permission"
	"github.com/slipwayhq/slipway-go/pkg/reference"
	"github.com/slipwayhq/slipway-go/pkg/slerr"
)

// EnvLookup resolves an environment variable; injected so the surface
// never reads the process environment directly, keeping it testable.
type EnvLookup func(key string) (string, bool)

// FontStore resolves a CSS-style font stack to raw font bytes.
type FontStore interface {
	Resolve(stack []string) ([]byte, bool)
}

// CallContext carries the per-invocation data a capability call needs
// beyond its explicit arguments: the call chain frame to check
// permissions against, and the declared callouts of the currently
// running component (so component:// URLs can resolve a bare handle to
// a Reference).
type CallContext struct {
	Frame         *callchain.Frame
	OwnDefinition []byte
	Callouts      map[string]reference.Reference
}

// CalloutInvoker recursively runs a named callout component to
// completion and returns its output, in a new call-chain frame beneath
// the caller's (§4.7, §4.9).
// Implemented by pkg/driver; Surface depends only on this narrow
// interface so it never imports driver.
type CalloutInvoker interface {
	InvokeCallout(ctx context.Context, cc CallContext, calloutName string, input any) (any, error)
}

// Surface is the concrete implementation of the host capability surface,
// shared by every runner.
type Surface struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	fonts      FontStore
	env        EnvLookup
	cache      *loader.Cache
	log        *logging.Logger
	invoker    CalloutInvoker
	metrics    *metrics.Metrics
}

// SetMetrics wires permission-decision counters into the surface.
// Optional: a Surface with no metrics attached simply doesn't record any.
func (s *Surface) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// checkPermission runs callchain.Check and records its outcome, labeled
// by the permission kind requested, before returning the same result.
func (s *Surface) checkPermission(frame *callchain.Frame, req permission.Request) error {
	err := callchain.Check(frame, req)
	s.metrics.RecordPermissionDecision(permissionKindLabel(req.Kind), err == nil)
	return err
}

func permissionKindLabel(k permission.Kind) string {
	switch k {
	case permission.KindAll:
		return "all"
	case permission.KindHTTP:
		return "http"
	case permission.KindFile:
		return "file"
	case permission.KindEnv:
		return "env"
	case permission.KindComponent:
		return "component"
	case permission.KindFontQuery:
		return "font_query"
	case permission.KindRegistry:
		return "registry"
	default:
		return "unknown"
	}
}

// New builds a Surface. limiter may be nil to disable outbound rate
// limiting (tests, trusted embeddings).
func New(cache *loader.Cache, fonts FontStore, env EnvLookup, log *logging.Logger, limiter *rate.Limiter) *Surface {
	return &Surface{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    limiter,
		fonts:      fonts,
		env:        env,
		cache:      cache,
		log:        log,
	}
}

// Fetch resolves url under one of the schemes in §4.8: http/https (real
// HTTP fetch), file (filesystem read; a relative path is resolved against
// the working directory), component://<handle>[/<file>] (a file within a
// callout component's archive; with no file segment, that callout's
// definition file, or for `self` or an empty handle the current
// component's own definition file, per rig_get_component_file.rs), and
// env://<KEY>.
func (s *Surface) Fetch(ctx context.Context, cc CallContext, rawURL string) ([]byte, error) {
	switch {
	case strings.HasPrefix(rawURL, "http://"), strings.HasPrefix(rawURL, "https://"):
		return s.fetchHTTP(ctx, cc, rawURL)
	case strings.HasPrefix(rawURL, "file://"):
		return s.fetchFile(cc, strings.TrimPrefix(rawURL, "file://"))
	case strings.HasPrefix(rawURL, "file:"):
		return s.fetchFile(cc, strings.TrimPrefix(rawURL, "file:"))
	case strings.HasPrefix(rawURL, "component://"):
		return s.fetchComponent(ctx, cc, strings.TrimPrefix(rawURL, "component://"))
	case strings.HasPrefix(rawURL, "env://"):
		key := strings.TrimPrefix(rawURL, "env://")
		v, err := s.Env(cc, key)
		if err != nil {
			return nil, err
		}
		return []byte(v), nil
	default:
		return nil, slerr.ValidationFailed("unsupported fetch scheme").WithDetail("url", rawURL)
	}
}

func (s *Surface) fetchHTTP(ctx context.Context, cc CallContext, rawURL string) ([]byte, error) {
	if err := s.checkPermission(cc.Frame, permission.Request{Kind: permission.KindHTTP, URL: rawURL}); err != nil {
		return nil, err
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, slerr.Cancelled()
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, slerr.Internal("failed to build fetch request", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, slerr.Wrap(slerr.CodeInternal, "fetch failed", err).WithDetail("url", rawURL)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s *Surface) fetchFile(cc CallContext, path string) ([]byte, error) {
	if err := s.checkPermission(cc.Frame, permission.Request{Kind: permission.KindFile, Path: path}); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, slerr.Internal("failed to resolve file path", err).WithDetail("path", path)
	}
	files := component.NewDirFiles(reference.Local("/"), "/")
	b, ok, err := files.TryGetBin(abs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, slerr.New(slerr.CodeInternal, "file not found").WithDetail("path", path)
	}
	return b, nil
}

// fetchComponent implements the component:// scheme's file-access half
// (returning archive bytes); invoking a callout as a nested execution is
// a separate capability, InvokeCallout, since its result is an arbitrary
// JSON value rather than a byte stream.
func (s *Surface) fetchComponent(ctx context.Context, cc CallContext, rest string) ([]byte, error) {
	handle, file, _ := strings.Cut(rest, "/")

	if err := s.checkPermission(cc.Frame, permission.Request{Kind: permission.KindComponent, ComponentHandle: handle}); err != nil {
		return nil, err
	}

	if file == "" {
		if handle == "" || handle == "self" {
			if cc.OwnDefinition == nil {
				return nil, slerr.New(slerr.CodeInternal, "own definition unavailable")
			}
			return cc.OwnDefinition, nil
		}
		file = component.DefinitionFile
	}

	ref, ok := cc.Callouts[handle]
	if !ok {
		return nil, slerr.ValidationFailed("unknown callout handle").WithDetail("handle", handle)
	}
	loaded, err := s.cache.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	b, ok, err := loaded.Files.TryGetBin(file)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, slerr.New(slerr.CodeInternal, "component file not found").
			WithDetail("handle", handle).WithDetail("file", file)
	}
	return b, nil
}

// LoadText reads a UTF-8 text file from a callout component's archive.
func (s *Surface) LoadText(ctx context.Context, cc CallContext, handle, path string) (string, error) {
	b, err := s.loadFromCallout(ctx, cc, handle, path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// LoadBin reads a binary file from a callout component's archive.
func (s *Surface) LoadBin(ctx context.Context, cc CallContext, handle, path string) ([]byte, error) {
	return s.loadFromCallout(ctx, cc, handle, path)
}

func (s *Surface) loadFromCallout(ctx context.Context, cc CallContext, handle, path string) ([]byte, error) {
	if err := s.checkPermission(cc.Frame, permission.Request{Kind: permission.KindComponent, ComponentHandle: handle}); err != nil {
		return nil, err
	}
	ref, ok := cc.Callouts[handle]
	if !ok {
		return nil, slerr.ValidationFailed("unknown callout handle").WithDetail("handle", handle)
	}
	loaded, err := s.cache.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	b, ok, err := loaded.Files.TryGetBin(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, slerr.New(slerr.CodeInternal, "component file not found").
			WithDetail("handle", handle).WithDetail("path", path)
	}
	return b, nil
}

// SetCalloutInvoker wires the driver's recursive invocation entry point
// into the surface, resolving the construction-order cycle (the driver
// needs a Surface to build runners; the Surface needs the driver to run
// callouts) without capability importing driver.
func (s *Surface) SetCalloutInvoker(invoker CalloutInvoker) {
	s.invoker = invoker
}

// InvokeCallout recursively runs the named callout component to
// completion, subject to the component permission check against the
// current frame.
func (s *Surface) InvokeCallout(ctx context.Context, cc CallContext, calloutName string, input any) (any, error) {
	if err := s.checkPermission(cc.Frame, permission.Request{Kind: permission.KindComponent, ComponentHandle: calloutName}); err != nil {
		return nil, err
	}
	if s.invoker == nil {
		return nil, slerr.New(slerr.CodeInternal, "no callout invoker configured")
	}
	return s.invoker.InvokeCallout(ctx, cc, calloutName, input)
}

// Env reads an environment variable, subject to permission.
func (s *Surface) Env(cc CallContext, key string) (string, error) {
	if err := s.checkPermission(cc.Frame, permission.Request{Kind: permission.KindEnv, EnvKey: key}); err != nil {
		return "", err
	}
	v, ok := s.env(key)
	if !ok {
		return "", nil
	}
	return v, nil
}

// TryResolveFont resolves a CSS-style font stack (e.g. ["Helvetica",
// "sans-serif"]) against the configured FontStore.
func (s *Surface) TryResolveFont(cc CallContext, stack []string) ([]byte, bool, error) {
	joined := strings.Join(stack, ",")
	if err := s.checkPermission(cc.Frame, permission.Request{Kind: permission.KindFontQuery, FontQuery: joined}); err != nil {
		return nil, false, err
	}
	b, ok := s.fonts.Resolve(stack)
	return b, ok, nil
}

// Log records a log line emitted by a sandboxed component.
func (s *Surface) Log(handle string, level logging.ComponentLevel, message string) {
	s.log.LogFromComponent(handle, level, message)
}

// EncodeBin base64-encodes b.
func EncodeBin(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// DecodeBin base64-decodes s.
func DecodeBin(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, slerr.ValidationFailed(fmt.Sprintf("invalid base64: %v", err))
	}
	return b, nil
}
