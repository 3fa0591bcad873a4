package cart

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id, price string) Product {
	return Product{ID: id, Name: "Bouquet " + id, Price: decimal.RequireFromString(price)}
}

func newTestStore(t *testing.T) (*Store, *MemoryStorage) {
	t.Helper()
	storage := NewMemoryStorage()
	return NewStore(context.Background(), storage, nil), storage
}

func TestAddItem_NewProduct(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.AddItem(context.Background(), product("p1", "45.99"), 2))

	snap := store.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "91.98", snap.Total.String())
	assert.Equal(t, 2, snap.ItemCount)
	assert.Equal(t, "91.98", snap.Items[0].Amount.String())
}

func TestAddItem_ExistingProductIncrements(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, product("p1", "45.99"), 2))
	require.NoError(t, store.AddItem(ctx, product("p1", "45.99"), 1))

	snap := store.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 3, snap.Items[0].Quantity)
	assert.Equal(t, "137.97", snap.Items[0].Amount.String())
	assert.Equal(t, "137.97", snap.Total.String())
}

func TestAddItem_RejectsNonPositiveQuantity(t *testing.T) {
	store, storage := newTestStore(t)

	for _, q := range []int{0, -3} {
		err := store.AddItem(context.Background(), product("p1", "10"), q)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}

	assert.True(t, store.Snapshot().IsEmpty())
	assert.Nil(t, storage.Raw(), "rejected add must not persist")
}

func TestUpdateQuantity(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddItem(ctx, product("p1", "12.50"), 1))

	store.UpdateQuantity(ctx, "p1", 4)

	snap := store.Snapshot()
	assert.Equal(t, 4, snap.ItemCount)
	assert.Equal(t, "50", snap.Total.String())
}

func TestUpdateQuantity_ZeroOrNegativeRemoves(t *testing.T) {
	for _, q := range []int{0, -1} {
		store, _ := newTestStore(t)
		ctx := context.Background()
		require.NoError(t, store.AddItem(ctx, product("p1", "5"), 2))
		require.NoError(t, store.AddItem(ctx, product("p2", "7"), 1))

		store.UpdateQuantity(ctx, "p1", q)

		snap := store.Snapshot()
		require.Len(t, snap.Items, 1)
		assert.Equal(t, "p2", snap.Items[0].Product.ID)
		assert.Equal(t, "7", snap.Total.String())
	}
}

func TestUpdateQuantity_AbsentIsNoop(t *testing.T) {
	store, storage := newTestStore(t)

	store.UpdateQuantity(context.Background(), "missing", 3)

	assert.True(t, store.Snapshot().IsEmpty())
	assert.Nil(t, storage.Raw())
}

func TestRemoveItem_AbsentIsNoop(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddItem(ctx, product("p1", "5"), 1))

	assert.NotPanics(t, func() { store.RemoveItem(ctx, "nope") })
	assert.Len(t, store.Snapshot().Items, 1)
}

func TestRemoveItem_PreservesOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.AddItem(ctx, product(id, "1"), 1))
	}

	store.RemoveItem(ctx, "b")

	snap := store.Snapshot()
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "a", snap.Items[0].Product.ID)
	assert.Equal(t, "c", snap.Items[1].Product.ID)
}

func TestUpdateProduct_RecomputesAmount(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddItem(ctx, product("p1", "10"), 3))

	calls := 0
	store.Subscribe(func(Snapshot) { calls++ })

	store.UpdateProduct(ctx, product("p1", "12"))
	store.UpdateProduct(ctx, product("p1", "12"))
	store.UpdateProduct(ctx, product("p9", "1"))

	snap := store.Snapshot()
	assert.Equal(t, "36", snap.Total.String())
	assert.Equal(t, 1, calls, "unchanged or absent products do not notify")
}

func TestDeduct(t *testing.T) {
	store, storage := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddItem(ctx, product("p1", "10"), 3))
	require.NoError(t, store.AddItem(ctx, product("p2", "5"), 1))
	require.NoError(t, store.AddItem(ctx, product("p3", "2"), 4))

	store.Deduct(ctx, map[string]int{"p1": 2, "p2": 1, "p9": 5})

	snap := store.Snapshot()
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "p1", snap.Items[0].Product.ID)
	assert.Equal(t, 1, snap.Items[0].Quantity)
	assert.Equal(t, "10", snap.Items[0].Amount.String())
	assert.Equal(t, "p3", snap.Items[1].Product.ID)
	assert.Equal(t, "18", snap.Total.String())

	assert.Equal(t, 5, NewStore(ctx, storage, nil).Snapshot().ItemCount)
}

func TestClear_SurvivesReload(t *testing.T) {
	store, storage := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddItem(ctx, product("p1", "45.99"), 2))

	store.Clear(ctx)

	snap := store.Snapshot()
	assert.Empty(t, snap.Items)
	assert.True(t, snap.Total.IsZero())
	assert.Equal(t, 0, snap.ItemCount)

	reloaded := NewStore(ctx, storage, nil).Snapshot()
	assert.Empty(t, reloaded.Items)
	assert.True(t, reloaded.Total.IsZero())
	assert.Equal(t, 0, reloaded.ItemCount)
}

func TestReload_RestoresItems(t *testing.T) {
	store, storage := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddItem(ctx, product("p1", "45.99"), 2))
	require.NoError(t, store.AddItem(ctx, product("p2", "3.50"), 1))

	reloaded := NewStore(ctx, storage, nil).Snapshot()

	require.Len(t, reloaded.Items, 2)
	assert.Equal(t, "95.48", reloaded.Total.String())
	assert.Equal(t, 3, reloaded.ItemCount)
}

func TestReload_SanitizesCorruptState(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, storage.Save(ctx, &Cart{Items: []LineItem{
		{Product: product("p1", "2"), Quantity: 1, Amount: decimal.NewFromInt(999)},
		{Product: product("p1", "2"), Quantity: 2},
		{Product: product("p2", "5"), Quantity: 0},
	}}))

	snap := NewStore(ctx, storage, nil).Snapshot()

	require.Len(t, snap.Items, 1)
	assert.Equal(t, 3, snap.Items[0].Quantity)
	assert.Equal(t, "6", snap.Total.String())
}

func TestSaveFailure_KeepsInMemoryState(t *testing.T) {
	store, storage := newTestStore(t)
	storage.SaveErr = errors.New("quota exceeded")

	require.NoError(t, store.AddItem(context.Background(), product("p1", "4"), 2))

	snap := store.Snapshot()
	assert.Equal(t, 2, snap.ItemCount)
	assert.Equal(t, "8", snap.Total.String())
}

func TestSnapshot_IsDetached(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddItem(ctx, product("p1", "45.99"), 2))

	snap := store.Snapshot()
	snap.Items[0].Quantity = 100
	store.Clear(ctx)

	assert.Equal(t, 100, snap.Items[0].Quantity)
	assert.Equal(t, "91.98", snap.Total.String())
	assert.True(t, store.Snapshot().IsEmpty())
}

func TestSubscribe_NotifiedSynchronously(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	var seen []int
	unsubscribe := store.Subscribe(func(s Snapshot) {
		seen = append(seen, s.ItemCount)
		// Reading from a subscriber must not deadlock.
		assert.Equal(t, s.ItemCount, store.Snapshot().ItemCount)
	})

	require.NoError(t, store.AddItem(ctx, product("p1", "1"), 2))
	assert.Equal(t, []int{2}, seen)

	store.UpdateQuantity(ctx, "p1", 5)
	store.RemoveItem(ctx, "p1")
	assert.Equal(t, []int{2, 5, 0}, seen)

	unsubscribe()
	store.Clear(ctx)
	assert.Len(t, seen, 3)
}

func TestRandomSequences_TotalsNeverDrift(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ids := []string{"p1", "p2", "p3", "p4"}
	prices := map[string]string{"p1": "45.99", "p2": "0.10", "p3": "19.95", "p4": "3"}

	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		id := ids[rng.Intn(len(ids))]
		switch rng.Intn(3) {
		case 0:
			_ = store.AddItem(ctx, product(id, prices[id]), rng.Intn(4))
		case 1:
			store.RemoveItem(ctx, id)
		case 2:
			store.UpdateQuantity(ctx, id, rng.Intn(6)-1)
		}

		snap := store.Snapshot()
		wantTotal := decimal.Zero
		wantCount := 0
		seen := map[string]bool{}
		for _, item := range snap.Items {
			require.False(t, seen[item.Product.ID], "duplicate line for %s", item.Product.ID)
			seen[item.Product.ID] = true
			require.GreaterOrEqual(t, item.Quantity, 1)
			require.True(t, item.Amount.Equal(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))))
			wantTotal = wantTotal.Add(item.Amount)
			wantCount += item.Quantity
		}
		require.True(t, wantTotal.Equal(snap.Total), "step %d: total %s != %s", i, snap.Total, wantTotal)
		require.Equal(t, wantCount, snap.ItemCount)
	}
}
