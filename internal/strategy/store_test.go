package strategy

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "strategies.db"))
	assert.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleStrategy(owner string) *Strategy {
	return &Strategy{
		OwnerID: owner,
		Name:    "golden cross",
		Symbols: []string{"BTC", "ETH"},
		Blocks: []Block{
			{ID: "i1", Type: "indicator", Subtype: "sma", Settings: map[string]any{"period": 50.0}, Position: 0},
			{ID: "c1", Type: "condition", Subtype: "crossover", Settings: map[string]any{"source1": "i1", "source2": "200"}, Position: 1},
		},
		Timeframe: "1d",
	}
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, sampleStrategy("user-1"))
	assert.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := store.Get(ctx, created.ID)
	assert.NoError(t, err)
	assert.Equal(t, "golden cross", got.Name)
	assert.Equal(t, "user-1", got.OwnerID)
	assert.Len(t, got.Blocks, 2)
	assert.Equal(t, "sma", got.Blocks[0].Subtype)
	assert.Equal(t, 50.0, got.Blocks[0].Settings["period"])
	assert.Equal(t, []string{"BTC", "ETH"}, got.Symbols)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListByOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, err := store.Create(ctx, sampleStrategy("user-1"))
	assert.NoError(t, err)
	_, err = store.Create(ctx, sampleStrategy("user-1"))
	assert.NoError(t, err)
	_, err = store.Create(ctx, sampleStrategy("user-2"))
	assert.NoError(t, err)

	mine, err := store.ListByOwner(ctx, "user-1")
	assert.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := store.ListByOwner(ctx, "user-2")
	assert.NoError(t, err)
	assert.Len(t, theirs, 1)
}

func TestUpdateAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created, err := store.Create(ctx, sampleStrategy("user-1"))
	assert.NoError(t, err)

	created.Name = "death cross"
	created.Blocks = created.Blocks[:1]
	updated, err := store.Update(ctx, created)
	assert.NoError(t, err)

	got, err := store.Get(ctx, updated.ID)
	assert.NoError(t, err)
	assert.Equal(t, "death cross", got.Name)
	assert.Len(t, got.Blocks, 1)

	assert.NoError(t, store.Delete(ctx, got.ID))
	_, err = store.Get(ctx, got.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, got.ID), ErrNotFound)
}

func TestUpdateMissingReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	st := sampleStrategy("user-1")
	st.ID = "ghost"
	_, err := store.Update(context.Background(), st)
	assert.ErrorIs(t, err, ErrNotFound)
}
