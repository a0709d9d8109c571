package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/matcon/erp_backend/config"
	"github.com/matcon/erp_backend/costing"
	"github.com/matcon/erp_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// LotInput is one purchase to ingest. RequestKey, when set, makes a retried
// request return the lot recorded by the first attempt.
type LotInput struct {
	Quantity   int
	TotalCost  decimal.Decimal
	RequestKey string
}

type IngestResult struct {
	Item *models.InventoryItem
	Lot  costing.Lot
	// Duplicate is true when the request key was already in the ledger and
	// nothing was written.
	Duplicate bool
}

// InventoryService owns the catalog and the costed state of every item.
type InventoryService struct {
	serviceDeps
	store  models.ItemStore
	locker ItemLocker
}

func NewInventoryService(store models.ItemStore, locker ItemLocker, opts ...Option) *InventoryService {
	return &InventoryService{
		serviceDeps: newDeps(opts),
		store:       store,
		locker:      locker,
	}
}

func (s *InventoryService) CreateItem(ctx context.Context, input *models.NewInventoryItem) (*models.InventoryItem, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	item, err := s.store.CreateItem(ctx, input)
	if err != nil {
		return nil, storeError("create item", err)
	}
	s.invalidate(ctx)
	s.entry(ctx, item.ID).WithField("code", item.Code).Info("inventory.item.created")
	return item, nil
}

// UpdateItem changes name, category and sale price. The costed state is untouched.
func (s *InventoryService) UpdateItem(ctx context.Context, id int, input *models.NewInventoryItem) (*models.InventoryItem, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	item, err := s.store.UpdateItemDetails(ctx, id, input)
	if err != nil {
		return nil, itemNotFound(id, storeError("update item", err))
	}
	s.invalidate(ctx, id)
	return item, nil
}

// DeleteItem removes the item together with its lot ledger.
func (s *InventoryService) DeleteItem(ctx context.Context, id int) (*models.InventoryItem, error) {
	unlock, err := lockItem(ctx, s.locker, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	item, err := s.store.DeleteItem(ctx, id)
	if err != nil {
		return nil, itemNotFound(id, storeError("delete item", err))
	}
	s.invalidate(ctx, id)
	s.entry(ctx, id).WithField("code", item.Code).Info("inventory.item.deleted")
	return item, nil
}

// GetItem reads through the redis cache. An entry is only kept when the
// item version did not change while it was being cached.
func (s *InventoryService) GetItem(ctx context.Context, id int) (*models.InventoryItem, error) {
	cached, err := s.cache.Get(ctx, id)
	if err != nil {
		s.entry(ctx, id).WithField("error", err.Error()).Warn("inventory.cache.get_failed")
	}
	if cached != nil {
		return cached, nil
	}
	item, err := s.store.FetchItem(ctx, id)
	if err != nil {
		return nil, itemNotFound(id, storeError("fetch item", err))
	}
	if !s.cache.Enabled() {
		return item, nil
	}
	if err := s.cache.Set(ctx, id, item); err != nil {
		s.entry(ctx, id).WithField("error", err.Error()).Warn("inventory.cache.set_failed")
		return item, nil
	}
	// A write that landed between the fetch and the Set has already run its
	// invalidation, so drop the entry if the stored version moved on.
	current, err := s.store.FetchItem(ctx, id)
	if err != nil || current.Version != item.Version {
		s.invalidate(ctx, id)
	}
	return item, nil
}

func (s *InventoryService) ListItems(ctx context.Context, filter models.ItemFilter) ([]*models.InventoryItem, error) {
	listKey := fmt.Sprintf("%s|%s", filter.Category, filter.Search)
	cached, err := s.cache.GetList(ctx, listKey)
	if err != nil {
		s.logger.WithField("error", err.Error()).Warn("inventory.cache.get_failed")
	}
	if cached != nil {
		return cached, nil
	}
	items, err := s.store.ListItems(ctx, filter)
	if err != nil {
		return nil, storeError("list items", err)
	}
	if err := s.cache.SetList(ctx, listKey, items); err != nil {
		s.logger.WithField("error", err.Error()).Warn("inventory.cache.set_failed")
	}
	return items, nil
}

// IngestLot appends a purchase lot and recomputes stock and average cost.
// A failed write is reported as *costing.PersistenceError and is not retried;
// the stored state is then whatever it was before the call.
func (s *InventoryService) IngestLot(ctx context.Context, itemId int, input LotInput) (*IngestResult, error) {
	ctx, span := startSpan(ctx, "InventoryService.IngestLot", itemId)
	start := time.Now()
	result, err := s.ingestLot(ctx, itemId, input)
	s.metrics.observeIngest(time.Since(start), err)
	endSpan(span, err)
	if err != nil {
		s.entry(ctx, itemId).WithFields(logrus.Fields{
			"quantity":   input.Quantity,
			"total_cost": input.TotalCost.String(),
			"error":      err.Error(),
		}).Warn("inventory.lot.rejected")
	}
	return result, err
}

func (s *InventoryService) ingestLot(ctx context.Context, itemId int, input LotInput) (*IngestResult, error) {
	if err := costing.ValidateLot(input.Quantity, input.TotalCost); err != nil {
		return nil, err
	}

	unlock, err := lockItem(ctx, s.locker, itemId)
	if err != nil {
		return nil, err
	}
	defer unlock()

	item, err := s.store.FetchItem(ctx, itemId)
	if err != nil {
		return nil, itemNotFound(itemId, storeError("fetch item", err))
	}

	if lot, ok := costing.FindByRequestKey(item.Lots, input.RequestKey); ok {
		if lot.Quantity != input.Quantity || !lot.TotalCost.Equal(input.TotalCost) {
			return nil, &costing.ValidationError{Field: "idempotency_key", Reason: "was already used for a different lot"}
		}
		s.entry(ctx, itemId).WithField("lot_id", lot.ID).Info("inventory.lot.duplicate")
		return &IngestResult{Item: item, Lot: lot, Duplicate: true}, nil
	}

	// the lot takes the version this save produces, the same sequence movement lines use
	next, lot, err := s.engine.IngestSequencedLot(item.Snapshot(), item.Version+1, input.Quantity, input.TotalCost, input.RequestKey)
	if err != nil {
		return nil, err
	}

	saved, err := s.store.SaveItemCostedState(ctx, itemId, item.Version, next)
	if err != nil {
		return nil, itemNotFound(itemId, storeError("save costed state", err))
	}
	s.invalidate(ctx, itemId)

	s.entry(ctx, itemId).WithFields(logrus.Fields{
		"lot_id":            lot.ID,
		"quantity":          lot.Quantity,
		"total_cost":        lot.TotalCost.String(),
		"current_stock":     saved.CurrentStock,
		"average_unit_cost": saved.AverageUnitCost.String(),
	}).Info("inventory.lot.ingested")

	if s.verifyOnIngest {
		s.verifyAfterWrite(ctx, saved)
	}
	return &IngestResult{Item: saved, Lot: lot}, nil
}

// verifyAfterWrite replays the saved ledger and reports drift. The write is kept.
func (s *InventoryService) verifyAfterWrite(ctx context.Context, saved *models.InventoryItem) {
	movements, err := s.store.ListMovements(ctx, saved.ID)
	if err != nil {
		config.LogError(s.logger, moduleName, "verifyAfterWrite", "list movements", saved.ID, err)
		return
	}
	replayed := costing.Replay(saved.Lots, movements)
	if err := costing.Verify(saved.ID, saved.Snapshot(), replayed); err != nil {
		s.metrics.drift()
		config.LogError(s.logger, moduleName, "verifyAfterWrite", "ledger drift", saved.ID, err)
	}
}

// GetSnapshot returns the current costed state read from the store.
func (s *InventoryService) GetSnapshot(ctx context.Context, itemId int) (costing.Snapshot, error) {
	item, err := s.store.FetchItem(ctx, itemId)
	if err != nil {
		return costing.Snapshot{}, itemNotFound(itemId, storeError("fetch item", err))
	}
	return item.Snapshot(), nil
}

// LotHistory lists the item's lots most recent first.
func (s *InventoryService) LotHistory(ctx context.Context, itemId int) ([]costing.LotView, error) {
	item, err := s.store.FetchItem(ctx, itemId)
	if err != nil {
		return nil, itemNotFound(itemId, storeError("fetch item", err))
	}
	return costing.History(item.Lots), nil
}
