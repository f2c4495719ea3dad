// Package permission implements §4.9 of the rig spec: Permission and
// Matcher values and their match rules. The deny-then-narrowing-allow
// decision over a call chain lives in pkg/callchain.
//
// The matcher-pattern style (a closed set of match kinds compared against
// a single string field) is grounded on the teacher's own wildcard
// secret-pattern matcher in system/tee/engine.go (matchPattern /
// isSecretAllowed): a small, explicit switch over match kinds rather than
// a general glob or regex engine.
package permission

import (
	"path/filepath"
	"strings"

	"github.com/slipwayhq/slipway-go/pkg/reference"
)

// MatcherKind is the closed set of ways a string value can be matched.
type MatcherKind int

const (
	MatchAny MatcherKind = iota
	MatchExact
	MatchPrefix
	MatchSuffix
	// MatchWithin is only meaningful for filesystem paths: it matches
	// when the candidate path is contained within Value after both are
	// cleaned and made absolute (§9 Supplemented Features).
	MatchWithin
)

// Matcher tests a single string payload (a URL, a path, an env key, a
// font query, a registry URL) against one of the closed match kinds.
type Matcher struct {
	Kind  MatcherKind
	Value string
}

func Any() Matcher                  { return Matcher{Kind: MatchAny} }
func Exact(value string) Matcher    { return Matcher{Kind: MatchExact, Value: value} }
func Prefix(prefix string) Matcher  { return Matcher{Kind: MatchPrefix, Value: prefix} }
func Suffix(suffix string) Matcher  { return Matcher{Kind: MatchSuffix, Value: suffix} }
func Within(directory string) Matcher { return Matcher{Kind: MatchWithin, Value: directory} }

// Match reports whether candidate satisfies m.
func (m Matcher) Match(candidate string) bool {
	switch m.Kind {
	case MatchAny:
		return true
	case MatchExact:
		return candidate == m.Value
	case MatchPrefix:
		return strings.HasPrefix(candidate, m.Value)
	case MatchSuffix:
		return strings.HasSuffix(candidate, m.Value)
	case MatchWithin:
		return pathWithin(m.Value, candidate)
	default:
		return false
	}
}

// pathWithin compares filepath.Clean'd absolute forms, per the
// normalization rule fixed in SPEC_FULL.md §9.
func pathWithin(directory, candidate string) bool {
	dirAbs, err1 := filepath.Abs(filepath.Clean(directory))
	candAbs, err2 := filepath.Abs(filepath.Clean(candidate))
	if err1 != nil || err2 != nil {
		return false
	}
	rel, err := filepath.Rel(dirAbs, candAbs)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") )
}

// Kind is the closed set of capability kinds a Permission can govern.
type Kind int

const (
	KindAll Kind = iota
	KindHTTP
	KindFile
	KindEnv
	KindComponent
	KindFontQuery
	KindRegistry
)

// ComponentMatch matches a component callout either by its full Reference
// or by its bare handle, per original_source's local_component_permission.rs
// (SPEC_FULL.md §9).
type ComponentMatch struct {
	ByReference *reference.Reference
	ByHandle    Matcher
}

func (c ComponentMatch) matches(ref reference.Reference, handle string) bool {
	if c.ByReference != nil {
		return *c.ByReference == ref
	}
	return c.ByHandle.Match(handle)
}

// Permission is a single capability grant or restriction.
type Permission struct {
	Kind      Kind
	URL       Matcher         // KindHTTP, KindRegistry
	Path      Matcher         // KindFile
	EnvKey    Matcher         // KindEnv
	FontQuery Matcher         // KindFontQuery
	Component ComponentMatch  // KindComponent
}

func All() Permission                        { return Permission{Kind: KindAll} }
func HTTP(m Matcher) Permission               { return Permission{Kind: KindHTTP, URL: m} }
func File(m Matcher) Permission               { return Permission{Kind: KindFile, Path: m} }
func Env(m Matcher) Permission                { return Permission{Kind: KindEnv, EnvKey: m} }
func Registry(m Matcher) Permission           { return Permission{Kind: KindRegistry, URL: m} }
func FontQuery(m Matcher) Permission          { return Permission{Kind: KindFontQuery, FontQuery: m} }
func ComponentByHandle(m Matcher) Permission  { return Permission{Kind: KindComponent, Component: ComponentMatch{ByHandle: m}} }
func ComponentByReference(ref reference.Reference) Permission {
	return Permission{Kind: KindComponent, Component: ComponentMatch{ByReference: &ref}}
}

// Request describes one capability check: what kind of capability, and
// the payload being checked against it (a URL, a path, an env key, a
// handle+reference pair, a font query).
type Request struct {
	Kind            Kind
	URL             string
	Path            string
	EnvKey          string
	FontQuery       string
	ComponentHandle string
	ComponentRef    reference.Reference
}

// Matches reports whether p governs req, i.e. p's Kind is KindAll or
// equals req.Kind and the relevant matcher accepts req's payload.
func (p Permission) Matches(req Request) bool {
	if p.Kind == KindAll {
		return true
	}
	if p.Kind != req.Kind {
		return false
	}
	switch p.Kind {
	case KindHTTP, KindRegistry:
		return p.URL.Match(req.URL)
	case KindFile:
		return p.Path.Match(req.Path)
	case KindEnv:
		return p.EnvKey.Match(req.EnvKey)
	case KindFontQuery:
		return p.FontQuery.Match(req.FontQuery)
	case KindComponent:
		return p.Component.matches(req.ComponentRef, req.ComponentHandle)
	default:
		return false
	}
}

// Set is the allow/deny permission set carried by one call-chain frame.
type Set struct {
	Allow []Permission `json:"allow,omitempty"`
	Deny  []Permission `json:"deny,omitempty"`
}
