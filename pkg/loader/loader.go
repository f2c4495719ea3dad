// Package loader implements §4.6 of the rig spec: a chain of loaders
// tried in order against a Reference, and a content-addressed cache that
// coalesces concurrent loads of the same reference via singleflight.
//
// The chain/cache split is grounded on the teacher's in-memory script
// store (system/tee/script_store_memory.go), which hand-rolls a
// mutex-guarded "load once" cache in front of a slower backing fetch;
// here that pattern is generalized with golang.org/x/sync/singleflight,
// a dependency present across the wider retrieval pack.
package loader

import (
	"context"
	"errors"

	"github.com/slipwayhq/slipway-go/pkg/component"
	"github.com/slipwayhq/slipway-go/pkg/logging"
	"github.com/slipwayhq/slipway-go/pkg/reference"
	"github.com/slipwayhq/slipway-go/pkg/slerr"
)

var errNoLoaderClaimed = errors.New("no loader claimed this reference")

// Loader tries to resolve a single Reference kind into a Loaded
// component. A loader that does not handle ref's kind returns
// (nil, nil) — no error, no result; this is distinct from an
// attempted-but-failed load, which returns a non-nil error.
type Loader interface {
	Identifier() string
	Load(ctx context.Context, ref reference.Reference) (*component.Loaded, error)
}

// Chain tries each registered Loader in order; the first to return a
// non-nil result wins. If every loader declines (returns nil, nil) and
// none returned an error, a synthetic "no loader claimed this" failure is
// produced, matching §4.6's explicit-failure requirement rather than
// silently returning nothing.
type Chain struct {
	loaders []Loader
	log     *logging.Logger
}

// NewChain builds a Chain trying loaders in the given order.
func NewChain(log *logging.Logger, loaders ...Loader) *Chain {
	return &Chain{loaders: loaders, log: log}
}

// Load tries every loader in order against ref, returning the first
// successful result or a ComponentLoadFailed aggregating every attempt.
func (c *Chain) Load(ctx context.Context, ref reference.Reference) (*component.Loaded, error) {
	var failures []slerr.LoaderFailure
	for _, l := range c.loaders {
		loaded, err := l.Load(ctx, ref)
		if err != nil {
			c.log.WithField("loader", l.Identifier()).WithField("reference", ref.String()).
				WithError(err).Debug("loader attempt failed")
			failures = append(failures, slerr.LoaderFailure{LoaderID: l.Identifier(), Err: err})
			continue
		}
		if loaded != nil {
			c.log.WithField("loader", l.Identifier()).WithField("reference", ref.String()).
				Debug("loader claimed reference")
			return loaded, nil
		}
	}
	if len(failures) == 0 {
		failures = append(failures, slerr.LoaderFailure{
			LoaderID: "chain",
			Err:      errNoLoaderClaimed,
		})
	}
	return nil, slerr.ComponentLoadFailed(ref.String(), failures)
}
