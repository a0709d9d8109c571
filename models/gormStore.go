package models

import (
	"context"
	"errors"
	"strings"

	"github.com/matcon/erp_backend/costing"
	"github.com/matcon/erp_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on top of a gorm connection (postgres or mysql).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorRecordNotFound
	}
	return err
}

func (s *GormStore) FetchItem(ctx context.Context, id int) (*InventoryItem, error) {
	var item InventoryItem
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (s *GormStore) FetchItemsByIds(ctx context.Context, ids []int) ([]*InventoryItem, error) {
	var items []*InventoryItem
	if len(ids) == 0 {
		return items, nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *GormStore) ListItems(ctx context.Context, filter ItemFilter) ([]*InventoryItem, error) {
	var items []*InventoryItem
	dbCtx := s.db.WithContext(ctx).Model(&InventoryItem{})
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		dbCtx = dbCtx.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", like, like)
	}
	if filter.Category != "" {
		dbCtx = dbCtx.Where("category = ?", filter.Category)
	}
	if err := dbCtx.Order("code").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// guardedUpdate applies updates to the item only at expectedVersion and bumps
// the version. Zero affected rows is either a missing item or a conflict.
func guardedUpdate(tx *gorm.DB, id int, expectedVersion int, updates map[string]interface{}) error {
	updates["version"] = gorm.Expr("version + 1")
	result := tx.Model(&InventoryItem{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}
	var count int64
	if err := tx.Model(&InventoryItem{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return utils.ErrorRecordNotFound
	}
	return ErrVersionConflict
}

func (s *GormStore) SaveItemCostedState(ctx context.Context, id int, expectedVersion int, snapshot costing.Snapshot) (*InventoryItem, error) {
	db := s.db.WithContext(ctx)
	err := guardedUpdate(db, id, expectedVersion, map[string]interface{}{
		"current_stock":     snapshot.CurrentStock,
		"average_unit_cost": snapshot.AverageUnitCost,
		"lots":              LotLedger(snapshot.Lots),
	})
	if err != nil {
		return nil, err
	}
	return s.FetchItem(ctx, id)
}

// nextItemCode locks the sequence row for the rest of the transaction.
func nextItemCode(tx *gorm.DB) (string, error) {
	seq := ItemCodeSequence{Name: itemCodeSequenceName}
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", itemCodeSequenceName).
		FirstOrCreate(&seq).Error; err != nil {
		return "", err
	}
	seq.LastValue++
	if err := tx.Model(&ItemCodeSequence{}).
		Where("name = ?", itemCodeSequenceName).
		Update("last_value", seq.LastValue).Error; err != nil {
		return "", err
	}
	return FormatItemCode(seq.LastValue), nil
}

func (s *GormStore) CreateItem(ctx context.Context, input *NewInventoryItem) (*InventoryItem, error) {
	var item InventoryItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := nextItemCode(tx)
		if err != nil {
			return err
		}
		virgin := costing.Virgin()
		item = InventoryItem{
			Code:            code,
			Name:            input.Name,
			Category:        input.Category,
			SalePrice:       input.SalePrice,
			CurrentStock:    virgin.CurrentStock,
			AverageUnitCost: virgin.AverageUnitCost,
			Lots:            LotLedger(virgin.Lots),
		}
		return tx.Create(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *GormStore) UpdateItemDetails(ctx context.Context, id int, input *NewInventoryItem) (*InventoryItem, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&InventoryItem{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return utils.ErrorRecordNotFound
		}
		return tx.Model(&InventoryItem{}).Where("id = ?", id).Updates(map[string]interface{}{
			"name":       input.Name,
			"category":   input.Category,
			"sale_price": input.SalePrice,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.FetchItem(ctx, id)
}

func (s *GormStore) DeleteItem(ctx context.Context, id int) (*InventoryItem, error) {
	item, err := s.FetchItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Delete(&InventoryItem{}, id).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func (s *GormStore) ListMovements(ctx context.Context, itemId int) ([]costing.Movement, error) {
	var lines []*ProjectMaterial
	if err := s.db.WithContext(ctx).
		Where("item_id = ?", itemId).
		Order("item_seq, created_at, id").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	movements := make([]costing.Movement, 0, len(lines))
	for _, l := range lines {
		movements = append(movements, l.Movement())
	}
	return movements, nil
}

func (s *GormStore) CreateProject(ctx context.Context, input *NewProject) (*Project, error) {
	project := Project{
		Name:       input.Name,
		ClientName: input.ClientName,
		Address:    input.Address,
		Status:     ProjectStatusActive,
	}
	if err := s.db.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (s *GormStore) FetchProject(ctx context.Context, id int) (*Project, error) {
	var project Project
	if err := s.db.WithContext(ctx).First(&project, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &project, nil
}

func (s *GormStore) ListProjects(ctx context.Context) ([]*Project, error) {
	var projects []*Project
	if err := s.db.WithContext(ctx).Order("id DESC").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (s *GormStore) CloseProject(ctx context.Context, id int) (*Project, error) {
	var project Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&project, id).Error; err != nil {
			return notFound(err)
		}
		if project.Status == ProjectStatusClosed {
			return nil
		}
		project.Status = ProjectStatusClosed
		return tx.Model(&project).Update("status", ProjectStatusClosed).Error
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (s *GormStore) ListProjectMaterials(ctx context.Context, projectId int) ([]*ProjectMaterial, error) {
	var lines []*ProjectMaterial
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectId).
		Order("created_at, id").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *GormStore) RecordMovement(ctx context.Context, expectedVersion int, line *ProjectMaterial) (*InventoryItem, error) {
	line.ItemSeq = expectedVersion + 1
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := guardedUpdate(tx, line.ItemId, expectedVersion, map[string]interface{}{
			"current_stock": gorm.Expr("current_stock + ?", line.Delta()),
		}); err != nil {
			return err
		}
		return tx.Create(line).Error
	})
	if err != nil {
		return nil, err
	}
	return s.FetchItem(ctx, line.ItemId)
}
