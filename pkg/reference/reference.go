// Package reference implements the Reference sum type that globally
// identifies a component: a local filesystem path, a registry
// publisher/name/version triple, an absolute URL to a tarball, or a
// built-in special identifier.
//
// Reference is deliberately a flat, all-comparable struct rather than an
// interface: every field is a comparable scalar (an int Kind and strings),
// so two References are structurally
// equal under plain `==`, which is exactly the equality and hashing rule
// §3 of the rig spec requires, and lets Reference be used directly as a Go
// map key in the component cache (pkg/loader) with no custom hashing code.
package reference

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/slipwayhq/slipway-go/pkg/slerr"
)

// Kind discriminates the Reference variants.
type Kind int

const (
	KindLocal Kind = iota
	KindRegistry
	KindURL
	KindSpecial
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRegistry:
		return "registry"
	case KindURL:
		return "url"
	case KindSpecial:
		return "special"
	default:
		return "unknown"
	}
}

// SpecialPublisher is the fixed publisher name under which built-in
// components are addressed (e.g. "slipway.passthrough.1.0.0").
const SpecialPublisher = "slipway"

// Reference is the global identifier of a component. Only the fields
// relevant to Kind are populated; callers should branch on Kind before
// reading fields.
type Reference struct {
	Kind Kind

	// Local
	Path string

	// Registry, Special
	Publisher string
	Name      string
	Version   string

	// URL
	URL string
}

// Local constructs a Reference to a local filesystem path.
func Local(path string) Reference { return Reference{Kind: KindLocal, Path: path} }

// Registry constructs a Reference to a registry-hosted component.
func Registry(publisher, name, version string) Reference {
	return Reference{Kind: KindRegistry, Publisher: publisher, Name: name, Version: version}
}

// URLRef constructs a Reference to a tarball served from an absolute URL.
func URLRef(url string) Reference { return Reference{Kind: KindURL, URL: url} }

// Special constructs a Reference to a built-in component.
func Special(name, version string) Reference {
	return Reference{Kind: KindSpecial, Publisher: SpecialPublisher, Name: name, Version: version}
}

// String renders the Reference back to its canonical shorthand form where
// one exists, matching the serialization in §6.
func (r Reference) String() string {
	switch r.Kind {
	case KindLocal:
		return fmt.Sprintf("local:%s", r.Path)
	case KindRegistry:
		return fmt.Sprintf("%s.%s.%s", r.Publisher, r.Name, r.Version)
	case KindURL:
		return r.URL
	case KindSpecial:
		return fmt.Sprintf("%s.%s.%s", r.Publisher, r.Name, r.Version)
	default:
		return "<invalid reference>"
	}
}

// rawLocal and rawRegistry mirror the object forms from §6.
type rawLocal struct {
	Local *struct {
		Path string `json:"path"`
	} `json:"local,omitempty"`
}

type rawRegistryObj struct {
	Registry *struct {
		Publisher string `json:"publisher"`
		Name      string `json:"name"`
		Version   string `json:"version"`
	} `json:"registry,omitempty"`
}

type rawURL struct {
	URL string `json:"url,omitempty"`
}

// ParseJSON parses one of the four serialized reference forms from §6:
// a JSON string (registry/special shorthand "<publisher>.<name>.<version>")
// or a JSON object ({"local":{...}}, {"url":"..."}, {"registry":{...}}).
func ParseJSON(data []byte) (Reference, error) {
	trimmed := strings.TrimSpace(string(data))
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var shorthand string
		if err := json.Unmarshal(data, &shorthand); err != nil {
			return Reference{}, slerr.ParseFailed("reference", err)
		}
		return ParseShorthand(shorthand)
	}

	var local rawLocal
	if err := json.Unmarshal(data, &local); err == nil && local.Local != nil {
		return Local(local.Local.Path), nil
	}

	var url rawURL
	if err := json.Unmarshal(data, &url); err == nil && url.URL != "" {
		return URLRef(url.URL), nil
	}

	var reg rawRegistryObj
	if err := json.Unmarshal(data, &reg); err == nil && reg.Registry != nil {
		return Registry(reg.Registry.Publisher, reg.Registry.Name, reg.Registry.Version), nil
	}

	return Reference{}, slerr.ParseFailed("reference", fmt.Errorf("unrecognized reference shape: %s", trimmed))
}

// ParseShorthand parses the "<publisher>.<name>.<version>" shorthand used
// for both registry references and built-in specials (publisher "slipway").
func ParseShorthand(s string) (Reference, error) {
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 {
		return Reference{}, slerr.ParseFailed("reference", fmt.Errorf("shorthand %q must have the form <publisher>.<name>.<version>", s))
	}
	publisher, name, version := parts[0], parts[1], parts[2]
	if publisher == SpecialPublisher {
		return Special(name, version), nil
	}
	return Registry(publisher, name, version), nil
}

// MarshalJSON renders the Reference back to one of the §6 wire forms.
func (r Reference) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindLocal:
		return json.Marshal(rawLocal{Local: &struct {
			Path string `json:"path"`
		}{Path: r.Path}})
	case KindURL:
		return json.Marshal(rawURL{URL: r.URL})
	case KindRegistry, KindSpecial:
		return json.Marshal(r.String())
	default:
		return nil, slerr.Internal("cannot marshal invalid reference", nil)
	}
}

// UnmarshalJSON implements json.Unmarshaler via ParseJSON.
func (r *Reference) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
