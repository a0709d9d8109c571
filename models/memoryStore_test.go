package models_test

import (
	"context"
	"testing"

	"github.com/matcon/erp_backend/models"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, models.NewMemoryStore())
}

func TestMemoryStoreCodesStartAtOne(t *testing.T) {
	ctx := context.Background()
	store := models.NewMemoryStore()

	first, err := store.CreateItem(ctx, &models.NewInventoryItem{Name: "Arena", Category: models.CategoryAgregados})
	require.NoError(t, err)
	second, err := store.CreateItem(ctx, &models.NewInventoryItem{Name: "Grava", Category: models.CategoryAgregados})
	require.NoError(t, err)
	require.Equal(t, "ITEM-001", first.Code)
	require.Equal(t, "ITEM-002", second.Code)

	_, err = store.DeleteItem(ctx, second.ID)
	require.NoError(t, err)
	third, err := store.CreateItem(ctx, &models.NewInventoryItem{Name: "Piedrin", Category: models.CategoryAgregados})
	require.NoError(t, err)
	require.Equal(t, "ITEM-003", third.Code)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := models.NewMemoryStore()
	item, err := store.CreateItem(ctx, &models.NewInventoryItem{Name: "Pintura", Category: models.CategoryPintura})
	require.NoError(t, err)

	item.CurrentStock = 50
	item.Name = "mutated"

	fetched, err := store.FetchItem(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, 0, fetched.CurrentStock)
	require.Equal(t, "Pintura", fetched.Name)
}
