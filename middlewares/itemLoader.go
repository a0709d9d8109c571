package middlewares

import (
	"context"
	"fmt"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/matcon/erp_backend/models"
	"github.com/matcon/erp_backend/utils"
)

type itemReader struct {
	reader ItemReader
}

func (r *itemReader) getItems(ctx context.Context, ids []int) []*dataloader.Result[*models.InventoryItem] {
	results, err := r.reader.FetchItemsByIds(ctx, ids)
	if err != nil {
		return handleError[*models.InventoryItem](len(ids), err)
	}

	resultMap := make(map[int]*models.InventoryItem, len(results))
	for _, result := range results {
		resultMap[result.ID] = result
	}

	loaderResults := make([]*dataloader.Result[*models.InventoryItem], 0, len(ids))
	for _, id := range ids {
		item, ok := resultMap[id]
		if !ok {
			loaderResults = append(loaderResults, &dataloader.Result[*models.InventoryItem]{
				Error: fmt.Errorf("inventory item %d: %w", id, utils.ErrorRecordNotFound),
			})
			continue
		}
		loaderResults = append(loaderResults, &dataloader.Result[*models.InventoryItem]{Data: item})
	}
	return loaderResults
}

// GetItems loads the items in one batch. The error slice lines up with ids.
func GetItems(ctx context.Context, ids []int) ([]*models.InventoryItem, []error) {
	loaders := For(ctx)
	if loaders == nil {
		return nil, []error{errLoadersMissing}
	}
	return loaders.itemLoader.LoadMany(ctx, ids)()
}
