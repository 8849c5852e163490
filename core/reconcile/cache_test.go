package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"inventory-sync/core/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedAdapter_ServesWithinTTL(t *testing.T) {
	inner := newFake("dst", buildGraph(t, site("nyc1", "nyc1")))
	cached := NewCachedAdapter(inner, time.Minute)

	g1, err := cached.Load(context.Background())
	require.NoError(t, err)
	g2, err := cached.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), inner.loads.Load())
	assert.Equal(t, 1, g2.Size())

	// Callers receive independent copies.
	require.NoError(t, g1.Put(graph.Entity{Type: tSite, Key: graph.NewKey("x"), Attributes: graph.Attributes{"slug": "x"}}))
	g3, err := cached.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, g3.Size())
}

func TestCachedAdapter_Expires(t *testing.T) {
	inner := newFake("dst", graph.New(testSchema))
	cached := NewCachedAdapter(inner, time.Minute)
	now := time.Now()
	cached.now = func() time.Time { return now }

	_, err := cached.Load(context.Background())
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = cached.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.loads.Load())
}

func TestCachedAdapter_WriteInvalidates(t *testing.T) {
	inner := newFake("dst", graph.New(testSchema))
	cached := NewCachedAdapter(inner, time.Minute)

	_, err := cached.Load(context.Background())
	require.NoError(t, err)

	_, err = cached.Create(context.Background(), tSite, graph.NewKey("nyc1"), graph.Attributes{"slug": "nyc1"})
	require.NoError(t, err)

	g, err := cached.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, g.Has(tSite, graph.NewKey("nyc1")))
	assert.Equal(t, int32(2), inner.loads.Load())
}

func TestCachedAdapter_ZeroTTLDisables(t *testing.T) {
	inner := newFake("dst", graph.New(testSchema))
	cached := NewCachedAdapter(inner, 0)

	for i := 0; i < 3; i++ {
		_, err := cached.Load(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), inner.loads.Load())
}

func TestCachedAdapter_ConcurrentLoadsShareOneBackendLoad(t *testing.T) {
	inner := newFake("dst", graph.New(testSchema))
	inner.delay = 20 * time.Millisecond
	cached := NewCachedAdapter(inner, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cached.Load(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), inner.loads.Load())
}

func TestCachedAdapter_ForwardsCapabilities(t *testing.T) {
	inner := newFake("dst", graph.New(testSchema))
	cached := NewCachedAdapter(inner, time.Minute)

	require.NoError(t, cached.Prepare(context.Background()))
	require.NoError(t, cached.Flush(context.Background()))
	assert.True(t, inner.prepared.Load())
	assert.Equal(t, int32(1), inner.flushed.Load())
	assert.Equal(t, "dst", cached.Name())
	assert.Same(t, inner, cached.Unwrap())
}
