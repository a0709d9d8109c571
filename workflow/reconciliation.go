package workflow

import (
	"context"

	"github.com/matcon/erp_backend/costing"
	"github.com/matcon/erp_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// VerifyResult compares an item's stored snapshot with the replay of its
// ledger and movement lines.
type VerifyResult struct {
	ItemId          int             `json:"item_id"`
	Code            string          `json:"code"`
	InSync          bool            `json:"in_sync"`
	LotCount        int             `json:"lot_count"`
	MovementCount   int             `json:"movement_count"`
	StoredStock     int             `json:"stored_stock"`
	ReplayedStock   int             `json:"replayed_stock"`
	StoredAverage   decimal.Decimal `json:"stored_average_unit_cost"`
	ReplayedAverage decimal.Decimal `json:"replayed_average_unit_cost"`
}

type ReconciliationReport struct {
	Checked int             `json:"checked"`
	Drifted []*VerifyResult `json:"drifted"`
}

func (s *InventoryService) replayItem(ctx context.Context, item *models.InventoryItem) (*VerifyResult, costing.Snapshot, error) {
	movements, err := s.store.ListMovements(ctx, item.ID)
	if err != nil {
		return nil, costing.Snapshot{}, storeError("list movements", err)
	}
	replayed := costing.Replay(item.Lots, movements)
	stored := item.Snapshot()
	result := &VerifyResult{
		ItemId:          item.ID,
		Code:            item.Code,
		InSync:          true,
		LotCount:        len(item.Lots),
		MovementCount:   len(movements),
		StoredStock:     stored.CurrentStock,
		ReplayedStock:   replayed.CurrentStock,
		StoredAverage:   stored.AverageUnitCost,
		ReplayedAverage: replayed.AverageUnitCost,
	}
	verr := costing.Verify(item.ID, stored, replayed)
	if verr != nil {
		result.InSync = false
	}
	return result, replayed, verr
}

// VerifyItem returns the comparison and, when the snapshot drifted, a
// *costing.InvariantViolation alongside it.
func (s *InventoryService) VerifyItem(ctx context.Context, itemId int) (*VerifyResult, error) {
	ctx, span := startSpan(ctx, "InventoryService.VerifyItem", itemId)
	item, err := s.store.FetchItem(ctx, itemId)
	if err != nil {
		err = itemNotFound(itemId, storeError("fetch item", err))
		endSpan(span, err)
		return nil, err
	}
	result, _, err := s.replayItem(ctx, item)
	if costing.IsInvariantViolation(err) {
		s.metrics.drift()
		s.entry(ctx, itemId).WithFields(logrus.Fields{
			"stored_stock":   result.StoredStock,
			"replayed_stock": result.ReplayedStock,
		}).Warn("inventory.ledger.drift")
	}
	endSpan(span, err)
	return result, err
}

// VerifyAll checks every item. Only store failures abort the run.
func (s *InventoryService) VerifyAll(ctx context.Context) (*ReconciliationReport, error) {
	items, err := s.store.ListItems(ctx, models.ItemFilter{})
	if err != nil {
		return nil, storeError("list items", err)
	}
	report := &ReconciliationReport{Drifted: make([]*VerifyResult, 0)}
	for _, item := range items {
		result, _, err := s.replayItem(ctx, item)
		report.Checked++
		if err == nil {
			continue
		}
		if !costing.IsInvariantViolation(err) {
			return report, err
		}
		s.metrics.drift()
		report.Drifted = append(report.Drifted, result)
	}
	s.logger.WithFields(logrus.Fields{
		"checked": report.Checked,
		"drifted": len(report.Drifted),
	}).Info("inventory.ledger.verify_all")
	return report, nil
}

// RebuildItem overwrites the stored snapshot with the replay of the ledger.
// It reports whether anything had to change.
func (s *InventoryService) RebuildItem(ctx context.Context, itemId int) (*models.InventoryItem, bool, error) {
	ctx, span := startSpan(ctx, "InventoryService.RebuildItem", itemId)
	item, changed, err := s.rebuildItem(ctx, itemId)
	endSpan(span, err)
	return item, changed, err
}

func (s *InventoryService) rebuildItem(ctx context.Context, itemId int) (*models.InventoryItem, bool, error) {
	unlock, err := lockItem(ctx, s.locker, itemId)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	item, err := s.store.FetchItem(ctx, itemId)
	if err != nil {
		return nil, false, itemNotFound(itemId, storeError("fetch item", err))
	}
	result, replayed, err := s.replayItem(ctx, item)
	if err == nil {
		return item, false, nil
	}
	if !costing.IsInvariantViolation(err) {
		return nil, false, err
	}

	saved, err := s.store.SaveItemCostedState(ctx, itemId, item.Version, replayed)
	if err != nil {
		return nil, false, itemNotFound(itemId, storeError("save costed state", err))
	}
	s.invalidate(ctx, itemId)
	s.entry(ctx, itemId).WithFields(logrus.Fields{
		"stored_stock":    result.StoredStock,
		"stored_average":  result.StoredAverage.String(),
		"rebuilt_stock":   saved.CurrentStock,
		"rebuilt_average": saved.AverageUnitCost.String(),
		"lot_count":       result.LotCount,
		"movement_count":  result.MovementCount,
	}).Warn("inventory.ledger.rebuilt")
	return saved, true, nil
}
