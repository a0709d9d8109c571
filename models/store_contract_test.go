package models_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/matcon/erp_backend/costing"
	"github.com/matcon/erp_backend/models"
	"github.com/matcon/erp_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every Store implementation must share.
func runStoreContract(t *testing.T, store models.Store) {
	ctx := context.Background()
	tag := fmt.Sprintf("t%d", time.Now().UnixNano())

	cement, err := store.CreateItem(ctx, &models.NewInventoryItem{
		Name:      "Cemento gris 42.5kg " + tag,
		Category:  models.CategoryCemento,
		SalePrice: decimal.RequireFromString("9.50"),
	})
	require.NoError(t, err)
	rebar, err := store.CreateItem(ctx, &models.NewInventoryItem{
		Name:     "Varilla 3/8 " + tag,
		Category: models.CategoryAcero,
	})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(cement.Code, "ITEM-"))
	require.NotEqual(t, cement.Code, rebar.Code)
	require.Less(t, cement.Code, rebar.Code)

	// virgin state
	assert.Equal(t, 0, cement.CurrentStock)
	assert.True(t, cement.AverageUnitCost.IsZero())
	assert.Empty(t, cement.Lots)
	assert.Equal(t, 0, cement.Version)

	engine := costing.NewEngine()
	next, lot, err := engine.IngestLot(cement.Snapshot(), 3, decimal.RequireFromString("30"))
	require.NoError(t, err)

	saved, err := store.SaveItemCostedState(ctx, cement.ID, cement.Version, next)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Version)
	assert.Equal(t, 3, saved.CurrentStock)
	assert.True(t, saved.AverageUnitCost.Equal(decimal.NewFromInt(10)), "avg=%s", saved.AverageUnitCost)
	require.Len(t, saved.Lots, 1)
	assert.Equal(t, lot.ID, saved.Lots[0].ID)
	assert.True(t, saved.Lots[0].TotalCost.Equal(decimal.NewFromInt(30)))

	// stale writer loses
	stale, _, err := engine.IngestLot(cement.Snapshot(), 1, decimal.RequireFromString("5"))
	require.NoError(t, err)
	_, err = store.SaveItemCostedState(ctx, cement.ID, cement.Version, stale)
	require.ErrorIs(t, err, models.ErrVersionConflict)

	fetched, err := store.FetchItem(ctx, cement.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, fetched.CurrentStock)
	assert.Len(t, fetched.Lots, 1)

	_, err = store.SaveItemCostedState(ctx, 999999999, 0, next)
	require.ErrorIs(t, err, utils.ErrorRecordNotFound)

	// descriptive edits leave costed fields and version alone
	updated, err := store.UpdateItemDetails(ctx, cement.ID, &models.NewInventoryItem{
		Name:      "Cemento gris 50kg " + tag,
		Category:  models.CategoryCemento,
		SalePrice: decimal.RequireFromString("11"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Cemento gris 50kg "+tag, updated.Name)
	assert.Equal(t, cement.Code, updated.Code)
	assert.Equal(t, 3, updated.CurrentStock)
	assert.Equal(t, 1, updated.Version)
	assert.Len(t, updated.Lots, 1)

	// search and category filters
	found, err := store.ListItems(ctx, models.ItemFilter{Search: strings.ToUpper(tag)})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	found, err = store.ListItems(ctx, models.ItemFilter{Search: tag, Category: models.CategoryAcero})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, rebar.ID, found[0].ID)

	byIds, err := store.FetchItemsByIds(ctx, []int{rebar.ID, cement.ID})
	require.NoError(t, err)
	assert.Len(t, byIds, 2)

	// movements
	project, err := store.CreateProject(ctx, &models.NewProject{Name: "Obra " + tag})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusActive, project.Status)

	line := &models.ProjectMaterial{
		ProjectId:  project.ID,
		ItemId:     cement.ID,
		ItemCode:   cement.Code,
		ItemName:   updated.Name,
		Kind:       models.MovementKindDispatch,
		Quantity:   2,
		UnitCost:   saved.AverageUnitCost,
		TotalValue: saved.AverageUnitCost.Mul(decimal.NewFromInt(2)),
		CreatedAt:  time.Now().UTC(),
	}
	moved, err := store.RecordMovement(ctx, updated.Version, line)
	require.NoError(t, err)
	assert.Equal(t, 1, moved.CurrentStock)
	assert.Equal(t, 2, moved.Version)
	assert.True(t, moved.AverageUnitCost.Equal(decimal.NewFromInt(10)))
	assert.Len(t, moved.Lots, 1)
	assert.Equal(t, moved.Version, line.ItemSeq)

	_, err = store.RecordMovement(ctx, updated.Version, &models.ProjectMaterial{
		ProjectId: project.ID,
		ItemId:    cement.ID,
		ItemCode:  cement.Code,
		ItemName:  updated.Name,
		Kind:      models.MovementKindDispatch,
		Quantity:  1,
		CreatedAt: time.Now().UTC(),
	})
	require.True(t, errors.Is(err, models.ErrVersionConflict), "got %v", err)

	lines, err := store.ListProjectMaterials(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, models.MovementKindDispatch, lines[0].Kind)
	assert.Equal(t, 2, lines[0].Quantity)

	movements, err := store.ListMovements(ctx, cement.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, -2, movements[0].Delta)
	assert.Equal(t, 2, movements[0].Seq)
	assert.Equal(t, 2, lines[0].ItemSeq)

	replayed := costing.Replay(moved.Lots, movements)
	require.NoError(t, costing.Verify(moved.ID, moved.Snapshot(), replayed))

	// closing is idempotent and keeps the lines
	closed, err := store.CloseProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusClosed, closed.Status)
	closed, err = store.CloseProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusClosed, closed.Status)
	refetched, err := store.FetchProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusClosed, refetched.Status)
	_, err = store.CloseProject(ctx, 999999999)
	require.ErrorIs(t, err, utils.ErrorRecordNotFound)

	// averages well past 1e14 fit the money columns
	costly, _, err := engine.IngestLot(rebar.Snapshot(), 1, decimal.RequireFromString("1000000000000000"))
	require.NoError(t, err)
	costlySaved, err := store.SaveItemCostedState(ctx, rebar.ID, rebar.Version, costly)
	require.NoError(t, err)
	assert.True(t, costlySaved.AverageUnitCost.Equal(decimal.RequireFromString("1000000000000000")),
		"avg=%s", costlySaved.AverageUnitCost)

	// deletion drops the item; codes are never reused
	_, err = store.DeleteItem(ctx, rebar.ID)
	require.NoError(t, err)
	_, err = store.FetchItem(ctx, rebar.ID)
	require.ErrorIs(t, err, utils.ErrorRecordNotFound)
	_, err = store.DeleteItem(ctx, rebar.ID)
	require.ErrorIs(t, err, utils.ErrorRecordNotFound)

	brick, err := store.CreateItem(ctx, &models.NewInventoryItem{Name: "Bloque 15 " + tag, Category: models.CategoryBloques})
	require.NoError(t, err)
	assert.NotEqual(t, rebar.Code, brick.Code)
	assert.Greater(t, brick.Code, rebar.Code)

	_, err = store.FetchProject(ctx, 999999999)
	require.ErrorIs(t, err, utils.ErrorRecordNotFound)
}
