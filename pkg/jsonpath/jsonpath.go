// Package jsonpath implements §4.2 of the rig spec: finding the `$.…` and
// `$$…` string leaves inside arbitrary decoded JSON, deriving the set of
// component handles a value depends on, and substituting those
// expressions with concrete upstream values during input evaluation
// (§4.3).
//
// Leaves are found by a plain recursive walk over `any` (the shape
// encoding/json decodes into); indexing into a resolved upstream value by
// its dotted suffix is delegated to github.com/tidwall/gjson, the same
// dotted-path JSON lookup library the teacher uses for indexing into
// fetched response bodies (services/datafeed/marble/core.go,
// services/requests/marble/dispatcher.go).
package jsonpath

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/tidwall/gjson"

	"github.com/slipwayhq/slipway-go/pkg/slerr"
)

// refExpr matches `$.rigging.<handle>.output` or
// `$.rigging.<handle>.output.<suffix>`.
var refExpr = regexp.MustCompile(`^\$\.rigging\.([a-z][a-z0-9_]*)\.output(?:\.(.+))?$`)

// Resolver looks up the currently visible output() value for handle, per
// §3: output_override, else execution_output.value, else not present.
type Resolver func(handle string) (value any, ok bool)

// ExtractDependencies walks v and returns the set of component handles
// referenced by `$.rigging.<handle>.output[...]` leaves. A malformed `$.`
// expression (one that does not match the rigging-output grammar) is a
// validation error; `$$` escapes never contribute a dependency.
func ExtractDependencies(v any) (map[string]struct{}, error) {
	deps := make(map[string]struct{})
	if err := walk(v, func(s string) error {
		if len(s) >= 2 && s[0] == '$' && s[1] == '$' {
			return nil
		}
		if len(s) >= 2 && s[0] == '$' && s[1] == '.' {
			m := refExpr.FindStringSubmatch(s)
			if m == nil {
				return slerr.ValidationFailed(fmt.Sprintf("malformed path expression: %q", s))
			}
			deps[m[1]] = struct{}{}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return deps, nil
}

// Substitute walks v, replacing every `$.rigging.<handle>.output[.suffix]`
// leaf with the corresponding value from resolve (indexed by the
// dot-separated suffix when present) and every `$$X` leaf with the
// literal string `$X`. It returns an error if a referenced handle is not
// visible via resolve; callers are expected to call this only once every
// dependency of v has been confirmed visible (§4.3 step 2).
func Substitute(v any, resolve Resolver) (any, error) {
	return substitute(v, resolve)
}

func substitute(v any, resolve Resolver) (any, error) {
	switch t := v.(type) {
	case string:
		if len(t) >= 2 && t[0] == '$' && t[1] == '$' {
			return "$" + t[2:], nil
		}
		if len(t) >= 2 && t[0] == '$' && t[1] == '.' {
			m := refExpr.FindStringSubmatch(t)
			if m == nil {
				return nil, slerr.ValidationFailed(fmt.Sprintf("malformed path expression: %q", t))
			}
			handle, suffix := m[1], m[2]
			upstream, ok := resolve(handle)
			if !ok {
				return nil, slerr.Internal("dependency not visible during substitution", nil).
					WithDetail("handle", handle)
			}
			if suffix == "" {
				return upstream, nil
			}
			return indexBySuffix(upstream, suffix)
		}
		return t, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			sub, err := substitute(child, resolve)
			if err != nil {
				return nil, err
			}
			out[k] = sub
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			sub, err := substitute(child, resolve)
			if err != nil {
				return nil, err
			}
			out[i] = sub
		}
		return out, nil
	default:
		return t, nil
	}
}

// indexBySuffix resolves a dotted suffix (e.g. "value.nested") against an
// upstream output value by round-tripping through JSON and delegating to
// gjson, which natively understands dotted paths and array indices.
func indexBySuffix(upstream any, suffix string) (any, error) {
	data, err := json.Marshal(upstream)
	if err != nil {
		return nil, slerr.Internal("failed to marshal upstream output for indexing", err)
	}
	result := gjson.GetBytes(data, suffix)
	if !result.Exists() {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal([]byte(result.Raw), &out); err != nil {
		// Raw may be empty for scalars gjson reports via .Value() instead.
		return result.Value(), nil
	}
	return out, nil
}

// walk recursively visits every string leaf of v, calling visit on each.
func walk(v any, visit func(string) error) error {
	switch t := v.(type) {
	case string:
		return visit(t)
	case map[string]any:
		for _, child := range t {
			if err := walk(child, visit); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for _, child := range t {
			if err := walk(child, visit); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}
