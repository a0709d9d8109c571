package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/matcon/erp_backend/costing"
	"github.com/shopspring/decimal"
)

// InventoryItem is a catalog entry together with its costed state.
// CurrentStock, AverageUnitCost and Lots are written only through
// ItemStore.SaveItemCostedState and ProjectStore.RecordMovement.
type InventoryItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	Code            string          `gorm:"size:20;uniqueIndex;not null" json:"code"`
	Name            string          `gorm:"size:150;index;not null" json:"name"`
	Category        Category        `gorm:"size:20;index;not null" json:"category"`
	SalePrice       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"sale_price"`
	CurrentStock    int             `gorm:"not null;default:0" json:"current_stock"`
	AverageUnitCost decimal.Decimal `gorm:"type:decimal(65,16);not null;default:0" json:"average_unit_cost"`
	Lots            LotLedger       `gorm:"type:text" json:"lots"`
	Version         int             `gorm:"not null;default:0" json:"version"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInventoryItem struct {
	Name      string          `json:"name" binding:"required,max=150"`
	Category  Category        `json:"category" binding:"required"`
	SalePrice decimal.Decimal `json:"sale_price"`
}

// LotLedger is the append-only lot list stored as a JSON text column.
type LotLedger []costing.Lot

// Value implements the driver.Valuer interface
func (l LotLedger) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]costing.Lot(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (l *LotLedger) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = LotLedger{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot convert %T to LotLedger", value)
	}
	if len(raw) == 0 {
		*l = LotLedger{}
		return nil
	}
	var lots []costing.Lot
	if err := json.Unmarshal(raw, &lots); err != nil {
		return err
	}
	if lots == nil {
		lots = []costing.Lot{}
	}
	*l = LotLedger(lots)
	return nil
}

// Snapshot returns the costed state with its own copy of the ledger.
func (item InventoryItem) Snapshot() costing.Snapshot {
	lots := make([]costing.Lot, len(item.Lots))
	copy(lots, item.Lots)
	return costing.Snapshot{
		CurrentStock:    item.CurrentStock,
		AverageUnitCost: item.AverageUnitCost,
		Lots:            lots,
	}
}

func (item *InventoryItem) ApplySnapshot(s costing.Snapshot) {
	lots := make(LotLedger, len(s.Lots))
	copy(lots, s.Lots)
	item.CurrentStock = s.CurrentStock
	item.AverageUnitCost = s.AverageUnitCost
	item.Lots = lots
}

func (item InventoryItem) StockValue() decimal.Decimal {
	return item.Snapshot().StockValue()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// same tags gin reads on request binding
	v.SetTagName("binding")
	return v
}

// Validate normalises the input and returns a *costing.ValidationError naming
// the first offending field.
func (input *NewInventoryItem) Validate() error {
	input.Name = strings.TrimSpace(input.Name)
	if err := validateStruct(input); err != nil {
		return err
	}
	if !input.Category.IsValid() {
		return &costing.ValidationError{Field: "category", Reason: "unknown category"}
	}
	if input.SalePrice.IsNegative() {
		return &costing.ValidationError{Field: "sale_price", Reason: "must not be negative"}
	}
	return nil
}

// validateStruct runs the binding tags and reports the first failure.
func validateStruct(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	return ValidationErrorFrom(err)
}

// ValidationErrorFrom turns a validator failure into a *costing.ValidationError
// for its first field.
func ValidationErrorFrom(err error) error {
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		fe := fieldErrors[0]
		return &costing.ValidationError{Field: jsonFieldName(fe.Field()), Reason: tagReason(fe.Tag())}
	}
	return &costing.ValidationError{Field: "input", Reason: err.Error()}
}

func jsonFieldName(field string) string {
	switch field {
	case "SalePrice":
		return "sale_price"
	case "ProjectId":
		return "project_id"
	case "ItemId":
		return "item_id"
	case "ClientName":
		return "client_name"
	}
	return strings.ToLower(field)
}

func tagReason(tag string) string {
	switch tag {
	case "required":
		return "is required"
	case "max":
		return "is too long"
	case "gt", "min":
		return "must be positive"
	}
	return "failed " + tag
}
