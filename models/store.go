package models

import (
	"context"
	"errors"

	"github.com/matcon/erp_backend/costing"
)

// ErrVersionConflict means the row changed since it was read: the expected
// version given to a costed write no longer matches.
var ErrVersionConflict = errors.New("inventory item was modified concurrently")

type ItemFilter struct {
	Search   string
	Category Category
}

// ItemStore persists catalog items and their costed state.
// Missing rows are reported as utils.ErrorRecordNotFound.
type ItemStore interface {
	FetchItem(ctx context.Context, id int) (*InventoryItem, error)
	FetchItemsByIds(ctx context.Context, ids []int) ([]*InventoryItem, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]*InventoryItem, error)
	// SaveItemCostedState writes stock, average and ledger together, only if the
	// stored version still equals expectedVersion. The version is bumped.
	SaveItemCostedState(ctx context.Context, id int, expectedVersion int, snapshot costing.Snapshot) (*InventoryItem, error)
	// CreateItem assigns the next item code and starts from the virgin state.
	CreateItem(ctx context.Context, input *NewInventoryItem) (*InventoryItem, error)
	// UpdateItemDetails changes descriptive fields only.
	UpdateItemDetails(ctx context.Context, id int, input *NewInventoryItem) (*InventoryItem, error)
	DeleteItem(ctx context.Context, id int) (*InventoryItem, error)
	// ListMovements returns the item's dispatch/return stock changes in the
	// order they were written.
	ListMovements(ctx context.Context, itemId int) ([]costing.Movement, error)
}

type ProjectStore interface {
	CreateProject(ctx context.Context, input *NewProject) (*Project, error)
	FetchProject(ctx context.Context, id int) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	// CloseProject marks the project CLOSED. Closing a closed project is a no-op.
	CloseProject(ctx context.Context, id int) (*Project, error)
	ListProjectMaterials(ctx context.Context, projectId int) ([]*ProjectMaterial, error)
	// RecordMovement applies line.Delta() to the item's stock and inserts the line
	// in one transaction, guarded by the same version check as costed writes.
	// line.ItemSeq is set to the item version the write produces.
	RecordMovement(ctx context.Context, expectedVersion int, line *ProjectMaterial) (*InventoryItem, error)
}

type Store interface {
	ItemStore
	ProjectStore
}
