package models

import (
	"strings"
	"time"

	"github.com/matcon/erp_backend/costing"
	"github.com/shopspring/decimal"
)

// Project is a construction site (obra) that materials are dispatched to.
type Project struct {
	ID         int           `gorm:"primary_key" json:"id"`
	Name       string        `gorm:"size:150;not null" json:"name"`
	ClientName string        `gorm:"size:150" json:"client_name"`
	Address    string        `gorm:"size:255" json:"address"`
	Status     ProjectStatus `gorm:"size:10;not null;default:ACTIVE;index" json:"status"`
	CreatedAt  time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProject struct {
	Name       string `json:"name" binding:"required,max=150"`
	ClientName string `json:"client_name" binding:"max=150"`
	Address    string `json:"address" binding:"max=255"`
}

func (input *NewProject) Validate() error {
	input.Name = strings.TrimSpace(input.Name)
	input.ClientName = strings.TrimSpace(input.ClientName)
	input.Address = strings.TrimSpace(input.Address)
	return validateStruct(input)
}

// ProjectMaterial is one dispatch or return line on a project's material list.
// The line is valued at the item's average unit cost at the time of the movement.
// ItemSeq is the item version the movement produced; it orders the line
// against the item's lots during replay.
type ProjectMaterial struct {
	ID         int             `gorm:"primary_key" json:"id"`
	ProjectId  int             `gorm:"index;not null" json:"project_id"`
	ItemId     int             `gorm:"index:idx_project_materials_item_seq,priority:1;not null" json:"item_id"`
	ItemSeq    int             `gorm:"index:idx_project_materials_item_seq,priority:2;not null;default:0" json:"item_seq"`
	ItemCode   string          `gorm:"size:20;not null" json:"item_code"`
	ItemName   string          `gorm:"size:150;not null" json:"item_name"`
	Kind       MovementKind    `gorm:"size:10;not null" json:"kind"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	UnitCost   decimal.Decimal `gorm:"type:decimal(65,16);not null" json:"unit_cost"`
	TotalValue decimal.Decimal `gorm:"type:decimal(65,16);not null" json:"total_value"`
	CreatedAt  time.Time       `gorm:"index;not null" json:"created_at"`
}

type NewStockMovement struct {
	ItemId   int `json:"item_id" binding:"required,gt=0"`
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

func (input *NewStockMovement) Validate() error {
	if input.ItemId <= 0 {
		return &costing.ValidationError{Field: "item_id", Reason: "is required"}
	}
	if input.Quantity <= 0 {
		return &costing.ValidationError{Field: "quantity", Reason: "must be a positive integer"}
	}
	return nil
}

// Delta is the signed stock change of the line.
func (m ProjectMaterial) Delta() int {
	if m.Kind == MovementKindReturn {
		return m.Quantity
	}
	return -m.Quantity
}

func (m ProjectMaterial) Movement() costing.Movement {
	return costing.Movement{Seq: m.ItemSeq, At: m.CreatedAt, Delta: m.Delta()}
}

// NetDispatched sums dispatches minus returns of one item over the given lines.
func NetDispatched(lines []*ProjectMaterial, itemId int) int {
	net := 0
	for _, l := range lines {
		if l.ItemId == itemId {
			net -= l.Delta()
		}
	}
	return net
}

// ProjectMaterialSummary totals a project's lines per item.
type ProjectMaterialSummary struct {
	ItemId        int             `json:"item_id"`
	ItemCode      string          `json:"item_code"`
	ItemName      string          `json:"item_name"`
	NetQuantity   int             `json:"net_quantity"`
	NetValue      decimal.Decimal `json:"net_value"`
	DispatchedQty int             `json:"dispatched_quantity"`
	ReturnedQty   int             `json:"returned_quantity"`
}

// SummarizeMaterials keeps the order in which items first appear.
func SummarizeMaterials(lines []*ProjectMaterial) []*ProjectMaterialSummary {
	byItem := make(map[int]*ProjectMaterialSummary)
	result := make([]*ProjectMaterialSummary, 0)
	for _, l := range lines {
		s, ok := byItem[l.ItemId]
		if !ok {
			s = &ProjectMaterialSummary{
				ItemId:   l.ItemId,
				ItemCode: l.ItemCode,
				ItemName: l.ItemName,
				NetValue: decimal.Zero,
			}
			byItem[l.ItemId] = s
			result = append(result, s)
		}
		if l.Kind == MovementKindReturn {
			s.ReturnedQty += l.Quantity
			s.NetValue = s.NetValue.Sub(l.TotalValue)
		} else {
			s.DispatchedQty += l.Quantity
			s.NetValue = s.NetValue.Add(l.TotalValue)
		}
		s.NetQuantity = s.DispatchedQty - s.ReturnedQty
	}
	return result
}
