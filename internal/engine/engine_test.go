package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gadgetry/internal/db"
	"gadgetry/internal/model"
	"gadgetry/internal/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(db.NewTestDB(t), nil, nil, nil, nil)
}

func draft(name string) *model.ItemDraft {
	return &model.ItemDraft{Name: name, Category: "laptop"}
}

// openLoans counts open lending records for an item, for invariant checks.
func openLoans(t *testing.T, eng *Engine, itemID string) int {
	t.Helper()
	records, err := store.ListItemLendings(context.Background(), eng.DB(), itemID)
	require.NoError(t, err)
	open := 0
	for _, rec := range records {
		if rec.Open() {
			open++
		}
	}
	return open
}

func historyActions(t *testing.T, eng *Engine, itemID string) []string {
	t.Helper()
	entries, err := store.ListItemHistory(context.Background(), eng.DB(), itemID)
	require.NoError(t, err)
	actions := make([]string, len(entries))
	for i, e := range entries {
		actions[i] = e.Action
	}
	return actions
}

func TestCreateItemWritesHistory(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	item, err := eng.CreateItem(ctx, draft("MacBook Air"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, item.Status)
	assert.NotEmpty(t, item.ID)

	actions := historyActions(t, eng, item.ID)
	require.Len(t, actions, 1)
	assert.Equal(t, model.ActionCreated, actions[0])
}

func TestCreateItemValidation(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateItem(ctx, draft("   "))
	assert.ErrorIs(t, err, ErrValidation)

	bad := draft("Thing")
	bad.Status = "exploded"
	_, err = eng.CreateItem(ctx, bad)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateLentItemOpensLoan(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	d := draft("GoPro")
	d.Status = model.StatusLent
	d.BorrowerName = "Nina"

	item, err := eng.CreateItem(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, model.StatusLent, item.Status)
	assert.Equal(t, 1, openLoans(t, eng, item.ID))

	actions := historyActions(t, eng, item.ID)
	// Newest first: lent, then created.
	require.Len(t, actions, 2)
	assert.Equal(t, model.ActionLent, actions[0])
	assert.Equal(t, model.ActionCreated, actions[1])
}

func TestCreateLentItemWithoutBorrowerCreatesNothing(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	d := draft("Switch")
	d.Status = model.StatusLent

	_, err := eng.CreateItem(ctx, d)
	require.ErrorIs(t, err, ErrValidation)

	// The whole transaction rolled back: no item row survived.
	items, err := store.ListItems(ctx, eng.DB(), store.ItemFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestUpdateItemMoveWritesHistory(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	shelf, err := store.CreateLocation(ctx, eng.DB(), "Shelf", model.LocationKindFixed, "", nil)
	require.NoError(t, err)

	item, err := eng.CreateItem(ctx, draft("Kindle"))
	require.NoError(t, err)

	d := draft("Kindle")
	d.LocationID = &shelf.ID
	updated, err := eng.UpdateItem(ctx, item.ID, d)
	require.NoError(t, err)
	require.NotNil(t, updated.LocationID)
	assert.Equal(t, shelf.ID, *updated.LocationID)

	actions := historyActions(t, eng, item.ID)
	require.Len(t, actions, 2)
	assert.Equal(t, model.ActionMoved, actions[0])
}

func TestUpdateItemEnterAndExitLent(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	item, err := eng.CreateItem(ctx, draft("Camera"))
	require.NoError(t, err)

	// Enter lent through a plain status edit.
	d := draft("Camera")
	d.Status = model.StatusLent
	d.BorrowerName = "Tine"
	updated, err := eng.UpdateItem(ctx, item.ID, d)
	require.NoError(t, err)
	assert.Equal(t, model.StatusLent, updated.Status)
	assert.Equal(t, 1, openLoans(t, eng, item.ID))

	// Exit lent the same way; the open record closes.
	d = draft("Camera")
	d.Status = model.StatusAvailable
	updated, err = eng.UpdateItem(ctx, item.ID, d)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, updated.Status)
	assert.Equal(t, 0, openLoans(t, eng, item.ID))

	actions := historyActions(t, eng, item.ID)
	require.Len(t, actions, 3)
	assert.Equal(t, model.ActionReturned, actions[0])
	assert.Equal(t, model.ActionLent, actions[1])
}

func TestUpdateItemEnterLentWithoutBorrowerRollsBack(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	item, err := eng.CreateItem(ctx, draft("iPad"))
	require.NoError(t, err)

	d := draft("iPad")
	d.Status = model.StatusLent
	_, err = eng.UpdateItem(ctx, item.ID, d)
	require.ErrorIs(t, err, ErrValidation)

	got, err := store.GetItem(ctx, eng.DB(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, got.Status)
	assert.Equal(t, 0, openLoans(t, eng, item.ID))
}

func TestUpdateItemPlainEditRecordsUpdate(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	item, err := eng.CreateItem(ctx, draft("Router"))
	require.NoError(t, err)

	d := draft("Router")
	d.Notes = "flashed OpenWrt"
	_, err = eng.UpdateItem(ctx, item.ID, d)
	require.NoError(t, err)

	actions := historyActions(t, eng, item.ID)
	require.Len(t, actions, 2)
	assert.Equal(t, model.ActionUpdated, actions[0])
}

func TestUpdateMissingItem(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.UpdateItem(context.Background(), "ghost", draft("Ghost"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetItemDetail(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	shelf, err := store.CreateLocation(ctx, eng.DB(), "Shelf", model.LocationKindFixed, "", nil)
	require.NoError(t, err)

	d := draft("NAS")
	d.LocationID = &shelf.ID
	item, err := eng.CreateItem(ctx, d)
	require.NoError(t, err)

	detail, err := eng.GetItemDetail(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, detail.Item.ID)
	require.NotNil(t, detail.Location)
	assert.Equal(t, "Shelf", detail.Location.Name)
	assert.Len(t, detail.History, 1)

	_, err = eng.GetItemDetail(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteItem(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	item, err := eng.CreateItem(ctx, draft("Webcam"))
	require.NoError(t, err)

	require.NoError(t, eng.DeleteItem(ctx, item.ID))

	got, err := store.GetItem(ctx, eng.DB(), item.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, eng.DeleteItem(ctx, item.ID), ErrNotFound)
}

func TestStatusMatchesOpenLoanInvariant(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	// Walk an item through every transition and check the invariant after
	// each step: status is lent exactly when one open loan exists.
	item, err := eng.CreateItem(ctx, draft("Deck"))
	require.NoError(t, err)

	check := func() {
		t.Helper()
		got, err := store.GetItem(ctx, eng.DB(), item.ID)
		require.NoError(t, err)
		open := openLoans(t, eng, item.ID)
		if got.Status == model.StatusLent {
			assert.Equal(t, 1, open, "lent item must have exactly one open loan")
		} else {
			assert.Equal(t, 0, open, "non-lent item must have no open loan")
		}
	}

	check()
	_, err = eng.LendItem(ctx, item.ID, "Ziga", nil)
	require.NoError(t, err)
	check()
	_, err = eng.ReturnItem(ctx, item.ID)
	require.NoError(t, err)
	check()

	d := draft("Deck")
	d.Status = model.StatusInRepair
	_, err = eng.UpdateItem(ctx, item.ID, d)
	require.NoError(t, err)
	check()
}
