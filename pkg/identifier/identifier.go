// Package identifier implements the validated-string primitives shared by
// every name-like value in a rig: component handles, publishers, names,
// loader ids, rig names. Each kind is a regex constraint plus a length
// bound and a fallible constructor; invalid input fails with a
// slerr.ValidationFailed error rather than panicking.
package identifier

import (
	"regexp"

	"github.com/slipwayhq/slipway-go/pkg/slerr"
)

// Kind names one of the validated-string shapes, used only for error
// messages so a caller can tell which constraint was violated.
type Kind string

const (
	KindHandle    Kind = "handle"
	KindPublisher Kind = "publisher"
	KindName      Kind = "name"
	KindLoaderID  Kind = "loader_id"
	KindRigName   Kind = "rig_name"
)

// rule describes the regex and length bounds for one Kind.
type rule struct {
	pattern *regexp.Regexp
	minLen  int
	maxLen  int
}

var rules = map[Kind]rule{
	// Component handles: lowercase alphanumeric + underscore, per §4.1.
	KindHandle: {pattern: regexp.MustCompile(`^[a-z][a-z0-9_]*$`), minLen: 1, maxLen: 64},
	// Publisher/name: URL-safe, lowercase alphanumeric + hyphen.
	KindPublisher: {pattern: regexp.MustCompile(`^[a-z][a-z0-9-]*$`), minLen: 1, maxLen: 64},
	KindName:      {pattern: regexp.MustCompile(`^[a-z][a-z0-9-]*$`), minLen: 1, maxLen: 64},
	KindLoaderID:  {pattern: regexp.MustCompile(`^[a-z][a-z0-9_-]*$`), minLen: 1, maxLen: 64},
	KindRigName:   {pattern: regexp.MustCompile(`^[a-z][a-z0-9_-]*$`), minLen: 1, maxLen: 128},
}

// Identifier is a validated, immutable string of a known Kind. The zero
// value is not a valid Identifier; always construct via New.
type Identifier struct {
	kind  Kind
	value string
}

// New validates value against kind's rule and returns an Identifier, or a
// slerr.ValidationFailed error describing why it was rejected.
func New(kind Kind, value string) (Identifier, error) {
	r, ok := rules[kind]
	if !ok {
		return Identifier{}, slerr.Internal("unknown identifier kind", nil).WithDetail("kind", string(kind))
	}
	if len(value) < r.minLen || len(value) > r.maxLen {
		return Identifier{}, slerr.ValidationFailed("invalid " + string(kind) + ": length out of bounds").
			WithDetail("value", value).
			WithDetail("kind", string(kind))
	}
	if !r.pattern.MatchString(value) {
		return Identifier{}, slerr.ValidationFailed("invalid " + string(kind) + ": does not match required shape").
			WithDetail("value", value).
			WithDetail("kind", string(kind))
	}
	return Identifier{kind: kind, value: value}, nil
}

// MustNew is New but panics on error; intended for literals known valid at
// compile time (tests, built-in special component names).
func MustNew(kind Kind, value string) Identifier {
	id, err := New(kind, value)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the identifier verbatim.
func (id Identifier) String() string { return id.value }

// Kind returns the identifier's validated shape.
func (id Identifier) Kind() Kind { return id.kind }

// IsZero reports whether id is the unconstructed zero value.
func (id Identifier) IsZero() bool { return id.value == "" && id.kind == "" }
