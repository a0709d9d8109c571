package middlewares

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/matcon/erp_backend/models"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

var errLoadersMissing = errors.New("dataloaders not installed on request context")

// ItemReader is the part of the item store the loaders batch against.
type ItemReader interface {
	FetchItemsByIds(ctx context.Context, ids []int) ([]*models.InventoryItem, error)
}

// Loaders wrap your data loaders to inject via middleware
type Loaders struct {
	itemLoader *dataloader.Loader[int, *models.InventoryItem]
}

// NewLoaders instantiates data loaders for the middleware
func NewLoaders(reader ItemReader) *Loaders {
	itemReader := &itemReader{reader: reader}
	return &Loaders{
		itemLoader: dataloader.NewBatchedLoader(itemReader.getItems, dataloader.WithWait[int, *models.InventoryItem](time.Millisecond)),
	}
}

// LoaderMiddleware gives every request its own loaders, so nothing is cached
// across requests.
func LoaderMiddleware(reader ItemReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(reader)
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func For(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(loadersKey).(*Loaders)
	return loaders
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}
