package models

import "fmt"

const itemCodeSequenceName = "inventory_item"

// ItemCodeSequence is a persisted monotonic counter. Item codes are drawn from
// it so a deleted item's code is never handed out again.
type ItemCodeSequence struct {
	Name      string `gorm:"primaryKey;size:50" json:"name"`
	LastValue int    `gorm:"not null;default:0" json:"last_value"`
}

func FormatItemCode(n int) string {
	return fmt.Sprintf("ITEM-%03d", n)
}
