package permission

import (
	"encoding/json"
	"fmt"

	"github.com/slipwayhq/slipway-go/pkg/reference"
	"github.com/slipwayhq/slipway-go/pkg/slerr"
)

// MarshalJSON renders a Matcher as one of: "any", {"exact":"v"},
// {"prefix":"v"}, {"suffix":"v"}, {"within":"v"}.
func (m Matcher) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case MatchAny:
		return json.Marshal("any")
	case MatchExact:
		return json.Marshal(map[string]string{"exact": m.Value})
	case MatchPrefix:
		return json.Marshal(map[string]string{"prefix": m.Value})
	case MatchSuffix:
		return json.Marshal(map[string]string{"suffix": m.Value})
	case MatchWithin:
		return json.Marshal(map[string]string{"within": m.Value})
	default:
		return nil, slerr.Internal("cannot marshal invalid matcher", nil)
	}
}

func (m *Matcher) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		if asString != "any" {
			return slerr.ParseFailed("matcher", fmt.Errorf("unrecognized matcher literal %q", asString))
		}
		*m = Any()
		return nil
	}

	var obj map[string]string
	if err := json.Unmarshal(data, &obj); err != nil {
		return slerr.ParseFailed("matcher", err)
	}
	for key, kind := range map[string]MatcherKind{
		"exact": MatchExact, "prefix": MatchPrefix, "suffix": MatchSuffix, "within": MatchWithin,
	} {
		if v, ok := obj[key]; ok {
			*m = Matcher{Kind: kind, Value: v}
			return nil
		}
	}
	return slerr.ParseFailed("matcher", fmt.Errorf("unrecognized matcher object %v", obj))
}

type componentMatchJSON struct {
	Reference *reference.Reference `json:"reference,omitempty"`
	Handle    *Matcher             `json:"handle,omitempty"`
}

type permissionJSON struct {
	All       *bool               `json:"all,omitempty"`
	HTTP      *Matcher            `json:"http,omitempty"`
	File      *Matcher            `json:"file,omitempty"`
	Env       *Matcher            `json:"env,omitempty"`
	Registry  *Matcher            `json:"registry,omitempty"`
	FontQuery *Matcher            `json:"font_query,omitempty"`
	Component *componentMatchJSON `json:"component,omitempty"`
}

// MarshalJSON renders a Permission as a single-key object naming its kind.
func (p Permission) MarshalJSON() ([]byte, error) {
	out := permissionJSON{}
	switch p.Kind {
	case KindAll:
		t := true
		out.All = &t
	case KindHTTP:
		out.HTTP = &p.URL
	case KindFile:
		out.File = &p.Path
	case KindEnv:
		out.Env = &p.EnvKey
	case KindRegistry:
		out.Registry = &p.URL
	case KindFontQuery:
		out.FontQuery = &p.FontQuery
	case KindComponent:
		out.Component = &componentMatchJSON{Reference: p.Component.ByReference}
		if p.Component.ByReference == nil {
			out.Component.Handle = &p.Component.ByHandle
		}
	default:
		return nil, slerr.Internal("cannot marshal invalid permission", nil)
	}
	return json.Marshal(out)
}

func (p *Permission) UnmarshalJSON(data []byte) error {
	var in permissionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return slerr.ParseFailed("permission", err)
	}
	switch {
	case in.All != nil && *in.All:
		*p = All()
	case in.HTTP != nil:
		*p = HTTP(*in.HTTP)
	case in.File != nil:
		*p = File(*in.File)
	case in.Env != nil:
		*p = Env(*in.Env)
	case in.Registry != nil:
		*p = Registry(*in.Registry)
	case in.FontQuery != nil:
		*p = FontQuery(*in.FontQuery)
	case in.Component != nil:
		if in.Component.Reference != nil {
			*p = ComponentByReference(*in.Component.Reference)
		} else if in.Component.Handle != nil {
			*p = ComponentByHandle(*in.Component.Handle)
		} else {
			return slerr.ParseFailed("permission", fmt.Errorf("component permission needs reference or handle"))
		}
	default:
		return slerr.ParseFailed("permission", fmt.Errorf("unrecognized permission object"))
	}
	return nil
}
