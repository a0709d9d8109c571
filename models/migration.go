package models

import (
	"gorm.io/gorm"
)

func MigrateTable(db *gorm.DB) error {
	err := db.AutoMigrate(
		&InventoryItem{}, &ItemCodeSequence{},
		&Project{}, &ProjectMaterial{},
	)
	if err != nil {
		return err
	}
	seq := ItemCodeSequence{Name: itemCodeSequenceName}
	return db.Where("name = ?", itemCodeSequenceName).FirstOrCreate(&seq).Error
}
