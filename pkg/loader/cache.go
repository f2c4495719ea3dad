package loader

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/slipwayhq/slipway-go/pkg/component"
	"github.com/slipwayhq/slipway-go/pkg/logging"
	"github.com/slipwayhq/slipway-go/pkg/metrics"
	"github.com/slipwayhq/slipway-go/pkg/reference"
)

// Cache is the content-addressed, reference-keyed component store of
// §4.6: at-most-once load per reference, with concurrent requests for the
// same reference coalescing into a single underlying Chain.Load call via
// singleflight. Failures are never cached, so a transient loader error
// doesn't poison future attempts.
type Cache struct {
	chain *Chain
	group singleflight.Group
	log   *logging.Logger

	mu      sync.RWMutex
	entries map[reference.Reference]*component.Loaded

	metrics *metrics.Metrics
}

// NewCache builds a Cache backed by chain.
func NewCache(log *logging.Logger, chain *Chain) *Cache {
	return &Cache{
		chain:   chain,
		log:     log,
		entries: make(map[reference.Reference]*component.Loaded),
	}
}

// SetMetrics wires hit/miss/coalesce counters into the cache. Optional:
// a Cache with no metrics attached simply doesn't record any.
func (c *Cache) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// Get returns the cached Loaded component for ref, loading it through the
// chain on a cache miss. Reference's structural equality (§3) makes it
// usable directly as both the map key and the singleflight key via its
// String() form.
func (c *Cache) Get(ctx context.Context, ref reference.Reference) (*component.Loaded, error) {
	c.mu.RLock()
	loaded, ok := c.entries[ref]
	c.mu.RUnlock()
	if ok {
		c.log.WithField("reference", ref.String()).Debug("component cache hit")
		c.metrics.RecordCacheHit()
		return loaded, nil
	}

	key := ref.String()
	result, err, shared := c.group.Do(key, func() (any, error) {
		loaded, err := c.chain.Load(ctx, ref)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[ref] = loaded
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		c.log.WithField("reference", ref.String()).WithError(err).Debug("component cache load failed")
		return nil, err
	}
	if shared {
		c.log.WithField("reference", ref.String()).Debug("component cache load coalesced")
		c.metrics.RecordCacheCoalesced()
	} else {
		c.metrics.RecordCacheMiss()
	}
	return result.(*component.Loaded), nil
}
