package cart

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFactory struct {
	calls    atomic.Int32
	storages sync.Map
}

func (f *countingFactory) factory(sessionID string) Storage {
	f.calls.Add(1)
	s, _ := f.storages.LoadOrStore(sessionID, NewMemoryStorage())
	return s.(*MemoryStorage)
}

func TestSessions_ReturnsSameStore(t *testing.T) {
	f := &countingFactory{}
	sessions := NewSessions(f.factory, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	stores := make([]*Store, 20)
	for i := range stores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stores[i] = sessions.Get(ctx, "s1")
		}(i)
	}
	wg.Wait()

	for _, s := range stores {
		assert.Same(t, stores[0], s)
	}
	assert.Equal(t, int32(1), f.calls.Load())
	assert.NotSame(t, stores[0], sessions.Get(ctx, "s2"))
}

func TestSessions_PruneRehydrates(t *testing.T) {
	f := &countingFactory{}
	sessions := NewSessions(f.factory, nil)
	ctx := context.Background()

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sessions.now = func() time.Time { return clock }

	first := sessions.Get(ctx, "s1")
	require.NoError(t, first.AddItem(ctx, product("p1", "9.99"), 2))
	sessions.Get(ctx, "kept")

	clock = clock.Add(2 * time.Hour)
	pruned := sessions.Prune(time.Hour, func(id string) bool { return id == "kept" })

	assert.Equal(t, 1, pruned)
	assert.Equal(t, 1, sessions.Len())
	assert.False(t, sessions.Held("s1"))
	assert.True(t, sessions.Held("kept"))

	second := sessions.Get(ctx, "s1")
	assert.NotSame(t, first, second)
	assert.Equal(t, "19.98", second.Snapshot().Total.String())
}

type stubCatalog struct {
	mu       sync.Mutex
	products map[string]Product
	err      error
}

func (c *stubCatalog) set(p Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *stubCatalog) Products(_ context.Context, ids []string) ([]Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	var out []Product
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestSessions_RehydratedCartFollowsCatalogPrice(t *testing.T) {
	f := &countingFactory{}
	catalog := &stubCatalog{products: map[string]Product{}}
	sessions := NewSessions(f.factory, nil, WithCatalog(catalog))
	ctx := context.Background()

	catalog.set(product("p1", "9.99"))
	store := sessions.Get(ctx, "s1")
	require.NoError(t, store.AddItem(ctx, product("p1", "9.99"), 2))
	require.NoError(t, store.AddItem(ctx, product("gone", "3"), 1))

	require.Equal(t, 1, sessions.Prune(0, nil))
	catalog.set(product("p1", "12"))

	reloaded := sessions.Get(ctx, "s1")
	snap := reloaded.Snapshot()
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "12", snap.Items[0].Product.Price.String())
	assert.Equal(t, "24", snap.Items[0].Amount.String())
	assert.Equal(t, "3", snap.Items[1].Amount.String(), "products the catalog does not know keep their stored price")
	assert.Equal(t, "27", snap.Total.String())

	// the new price is persisted, not only held in memory
	stored, _ := f.storages.Load("s1")
	assert.Equal(t, "27", NewStore(ctx, stored.(*MemoryStorage), nil).Snapshot().Total.String())
}

func TestSessions_RepriceFailureKeepsStoredPrices(t *testing.T) {
	f := &countingFactory{}
	catalog := &stubCatalog{products: map[string]Product{}, err: errors.New("db down")}
	sessions := NewSessions(f.factory, nil, WithCatalog(catalog))
	ctx := context.Background()

	require.NoError(t, sessions.Get(ctx, "s1").AddItem(ctx, product("p1", "9.99"), 1))
	sessions.Prune(0, nil)

	assert.Equal(t, "9.99", sessions.Get(ctx, "s1").Snapshot().Total.String())
}

func TestSessionCart_FollowsLiveStoreAcrossPrune(t *testing.T) {
	f := &countingFactory{}
	sessions := NewSessions(f.factory, nil)
	ctx := context.Background()

	source := sessions.Source("s1")
	require.NoError(t, sessions.Get(ctx, "s1").AddItem(ctx, product("p1", "10"), 1))
	require.Equal(t, 1, sessions.Prune(0, nil))

	live := sessions.Get(ctx, "s1")
	require.NoError(t, live.AddItem(ctx, product("p2", "5"), 2))

	assert.Equal(t, 3, source.Snapshot().ItemCount)

	source.Deduct(ctx, map[string]int{"p2": 2})
	assert.Equal(t, 1, live.Snapshot().ItemCount)

	source.Clear(ctx)
	assert.True(t, live.Snapshot().IsEmpty())
}
