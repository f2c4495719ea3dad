// Package callchain implements the call chain described in §3 and §4.9 of
// the rig spec: a linked list of frames (top-level invocation first, each
// callout pushing a child frame) that is the sole authority for
// permission decisions, and the deny-then-narrowing-allow algorithm
// itself.
package callchain

import (
	"fmt"

	"github.com/slipwayhq/slipway-go/pkg/permission"
	"github.com/slipwayhq/slipway-go/pkg/slerr"
)

// Frame is one entry in a call chain: the handle of the component running
// at this depth, and the permissions effective at this depth. Frame is
// immutable; building a child frame never mutates the parent.
type Frame struct {
	Handle      string
	Permissions permission.Set
	parent      *Frame
}

// Root constructs the top-level frame (depth 0) for a rig invocation.
func Root(handle string, perms permission.Set) *Frame {
	return &Frame{Handle: handle, Permissions: perms}
}

// Push builds a child frame for a callout issued by the current frame,
// carrying its own permission set (already narrowed by the caller, e.g.
// from a callout's `permissions` override in its rigging).
func (f *Frame) Push(handle string, perms permission.Set) *Frame {
	return &Frame{Handle: handle, Permissions: perms, parent: f}
}

// Chain returns the frames from root to f, in that order (root first),
// the order the decision algorithm scans in.
func (f *Frame) Chain() []*Frame {
	if f == nil {
		return nil
	}
	var rev []*Frame
	for cur := f; cur != nil; cur = cur.parent {
		rev = append(rev, cur)
	}
	chain := make([]*Frame, len(rev))
	for i, fr := range rev {
		chain[len(rev)-1-i] = fr
	}
	return chain
}

// Trail renders the chain's permission sets as human-readable strings for
// inclusion in a PermissionDenied error's audit trail.
func (f *Frame) Trail() []string {
	chain := f.Chain()
	trail := make([]string, len(chain))
	for i, fr := range chain {
		trail[i] = fmt.Sprintf("%s: allow=%d deny=%d", fr.Handle, len(fr.Permissions.Allow), len(fr.Permissions.Deny))
	}
	return trail
}

// Check runs the §4.9 decision algorithm: scan deny across every frame
// first (any match denies); if none matched, every frame must contain at
// least one matching allow permission (inherited narrowing) for the
// request to be allowed.
func Check(f *Frame, req permission.Request) error {
	chain := f.Chain()

	for _, fr := range chain {
		for _, deny := range fr.Permissions.Deny {
			if permissionMatches(deny, req) {
				return slerr.PermissionDenied(requestString(req), f.Trail())
			}
		}
	}

	for _, fr := range chain {
		if !frameAllows(fr, req) {
			return slerr.PermissionDenied(requestString(req), f.Trail())
		}
	}

	return nil
}

func frameAllows(fr *Frame, req permission.Request) bool {
	for _, allow := range fr.Permissions.Allow {
		if permissionMatches(allow, req) {
			return true
		}
	}
	return false
}

// permissionMatches is exported indirectly through Check; kept unexported
// here and implemented by delegating to the permission package's matching
// rules via a tiny adapter, so callchain owns only chain traversal and
// permission owns match semantics.
func permissionMatches(p permission.Permission, req permission.Request) bool {
	return p.Matches(req)
}

func requestString(req permission.Request) string {
	switch req.Kind {
	case permission.KindHTTP:
		return "http:" + req.URL
	case permission.KindFile:
		return "file:" + req.Path
	case permission.KindEnv:
		return "env:" + req.EnvKey
	case permission.KindFontQuery:
		return "font:" + req.FontQuery
	case permission.KindRegistry:
		return "registry:" + req.URL
	case permission.KindComponent:
		if req.ComponentHandle != "" {
			return "component:" + req.ComponentHandle
		}
		return "component:" + req.ComponentRef.String()
	default:
		return "unknown"
	}
}
