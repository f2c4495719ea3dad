package loader

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipwayhq/slipway-go/pkg/component"
	"github.com/slipwayhq/slipway-go/pkg/logging"
	"github.com/slipwayhq/slipway-go/pkg/reference"
)

type fakeLoader struct {
	id       string
	kind     reference.Kind
	loads    int32
	loadFunc func(ref reference.Reference) (*component.Loaded, error)
}

func (f *fakeLoader) Identifier() string { return f.id }

func (f *fakeLoader) Load(ctx context.Context, ref reference.Reference) (*component.Loaded, error) {
	if ref.Kind != f.kind {
		return nil, nil
	}
	atomic.AddInt32(&f.loads, 1)
	return f.loadFunc(ref)
}

func testLoaded(ref reference.Reference) *component.Loaded {
	def, _ := component.ParseDefinition([]byte(`{"publisher":"acme","name":"x","version":"1.0.0"}`))
	files := component.NewMemFiles(ref, map[string][]byte{component.DefinitionFile: []byte("{}")})
	return &component.Loaded{Definition: def, Files: files}
}

func TestChainFirstMatchWins(t *testing.T) {
	log := logging.NewDefault("test")
	ref := reference.Local("/tmp/thing")
	claimed := testLoaded(ref)

	declining := &fakeLoader{id: "declining", kind: reference.KindURL, loadFunc: func(ref reference.Reference) (*component.Loaded, error) {
		return nil, nil
	}}
	claiming := &fakeLoader{id: "claiming", kind: reference.KindLocal, loadFunc: func(ref reference.Reference) (*component.Loaded, error) {
		return claimed, nil
	}}

	chain := NewChain(log, declining, claiming)
	out, err := chain.Load(context.Background(), ref)
	require.NoError(t, err)
	assert.Same(t, claimed, out)
}

func TestChainAllDeclineProducesSyntheticFailure(t *testing.T) {
	log := logging.NewDefault("test")
	declining := &fakeLoader{id: "declining", kind: reference.KindURL, loadFunc: func(ref reference.Reference) (*component.Loaded, error) {
		return nil, nil
	}}
	chain := NewChain(log, declining)
	_, err := chain.Load(context.Background(), reference.Local("/tmp/x"))
	require.Error(t, err)
}

func TestCacheCoalescesConcurrentLoads(t *testing.T) {
	log := logging.NewDefault("test")
	ref := reference.Local("/tmp/shared")
	claimed := testLoaded(ref)
	fake := &fakeLoader{id: "fake", kind: reference.KindLocal, loadFunc: func(ref reference.Reference) (*component.Loaded, error) {
		return claimed, nil
	}}
	chain := NewChain(log, fake)
	cache := NewCache(log, chain)

	const n = 20
	results := make([]*component.Loaded, n)
	errs := make([]error, n)
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			r, err := cache.Get(context.Background(), ref)
			results[i] = r
			errs[i] = err
			done <- i
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, claimed, results[i])
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.loads))
}

func TestCacheDoesNotCacheFailures(t *testing.T) {
	log := logging.NewDefault("test")
	ref := reference.Local("/tmp/fails")
	fake := &fakeLoader{id: "fake", kind: reference.KindLocal, loadFunc: func(ref reference.Reference) (*component.Loaded, error) {
		return nil, assert.AnError
	}}
	chain := NewChain(log, fake)
	cache := NewCache(log, chain)

	_, err := cache.Get(context.Background(), ref)
	require.Error(t, err)
	_, err = cache.Get(context.Background(), ref)
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fake.loads))
}

func TestExpandTemplate(t *testing.T) {
	ref := reference.Registry("acme", "widget", "1.2.3")
	url := expandTemplate("https://reg.example/{publisher}/{name}/{version}.tar.gz", ref)
	assert.Equal(t, "https://reg.example/acme/widget/1.2.3.tar.gz", url)
}
