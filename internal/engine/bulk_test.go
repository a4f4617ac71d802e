package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gadgetry/internal/model"
	"gadgetry/internal/store"
)

func TestBulkMoveItems(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	box, err := store.CreateLocation(ctx, eng.DB(), "Box", model.LocationKindContainer, "", nil)
	require.NoError(t, err)

	a, err := eng.CreateItem(ctx, draft("Cable A"))
	require.NoError(t, err)
	b, err := eng.CreateItem(ctx, draft("Cable B"))
	require.NoError(t, err)

	moved, err := eng.BulkMoveItems(ctx, []string{a.ID, b.ID}, &box.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	for _, id := range []string{a.ID, b.ID} {
		got, err := store.GetItem(ctx, eng.DB(), id)
		require.NoError(t, err)
		require.NotNil(t, got.LocationID)
		assert.Equal(t, box.ID, *got.LocationID)

		actions := historyActions(t, eng, id)
		require.Len(t, actions, 2)
		assert.Equal(t, model.ActionMoved, actions[0])
	}
}

func TestBulkMoveSkipsVanishedIDs(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a, err := eng.CreateItem(ctx, draft("Survivor"))
	require.NoError(t, err)

	moved, err := eng.BulkMoveItems(ctx, []string{a.ID, "vanished-1", "vanished-2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	// The survivor still got its history entry.
	actions := historyActions(t, eng, a.ID)
	require.Len(t, actions, 2)
	assert.Equal(t, model.ActionMoved, actions[0])
}

func TestBulkMoveToMissingLocation(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a, err := eng.CreateItem(ctx, draft("Stays Put"))
	require.NoError(t, err)

	missing := "no-such-location"
	_, err = eng.BulkMoveItems(ctx, []string{a.ID}, &missing)
	assert.ErrorIs(t, err, ErrNotFound)

	got, _ := store.GetItem(ctx, eng.DB(), a.ID)
	assert.Nil(t, got.LocationID)
}

func TestBulkMoveToUnclassified(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	shelf, err := store.CreateLocation(ctx, eng.DB(), "Shelf", model.LocationKindFixed, "", nil)
	require.NoError(t, err)

	d := draft("Dock")
	d.LocationID = &shelf.ID
	item, err := eng.CreateItem(ctx, d)
	require.NoError(t, err)

	moved, err := eng.BulkMoveItems(ctx, []string{item.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	got, _ := store.GetItem(ctx, eng.DB(), item.ID)
	assert.Nil(t, got.LocationID)
}

func TestBulkLendSkipsLentAndMissing(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	free, err := eng.CreateItem(ctx, draft("Free"))
	require.NoError(t, err)
	taken, err := eng.CreateItem(ctx, draft("Taken"))
	require.NoError(t, err)
	_, err = eng.LendItem(ctx, taken.ID, "Ana", nil)
	require.NoError(t, err)

	lent, err := eng.BulkLendItems(ctx, []string{free.ID, taken.ID, "ghost"}, "Bor", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, lent)

	// The already-lent item keeps its original borrower.
	open, _ := store.GetOpenLending(ctx, eng.DB(), taken.ID)
	assert.Equal(t, "Ana", open.BorrowerName)

	open, _ = store.GetOpenLending(ctx, eng.DB(), free.ID)
	require.NotNil(t, open)
	assert.Equal(t, "Bor", open.BorrowerName)
	assert.Equal(t, 1, openLoans(t, eng, free.ID))
	assert.Equal(t, 1, openLoans(t, eng, taken.ID))
}

func TestBulkLendRequiresBorrower(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.BulkLendItems(context.Background(), []string{"x"}, "", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBulkDeleteItems(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	a, err := eng.CreateItem(ctx, draft("Old Mouse"))
	require.NoError(t, err)
	b, err := eng.CreateItem(ctx, draft("Old Keyboard"))
	require.NoError(t, err)

	deleted, err := eng.BulkDeleteItems(ctx, []string{a.ID, b.ID, "ghost"})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	items, err := store.ListItems(ctx, eng.DB(), store.ItemFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestBulkOpsWithEmptyInput(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	moved, err := eng.BulkMoveItems(ctx, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, moved)

	deleted, err := eng.BulkDeleteItems(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
