package reports

import (
	"github.com/matcon/erp_backend/costing"
	"github.com/matcon/erp_backend/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	valuationSheet = "Valuation"
	lotsSheet      = "Lots"
)

type valuationRow struct {
	item *models.InventoryItem
}

func (r valuationRow) GetCellValues() []interface{} {
	return []interface{}{
		r.item.Code,
		r.item.Name,
		string(r.item.Category),
		r.item.CurrentStock,
		money(r.item.AverageUnitCost, 4),
		money(r.item.StockValue(), 2),
		money(r.item.SalePrice, 2),
	}
}

// InventoryValuation lists every item valued at its average unit cost, with a
// grand total on the last row.
func InventoryValuation(items []*models.InventoryItem) (*excelize.File, error) {
	f, err := newWorkbook(valuationSheet)
	if err != nil {
		return nil, err
	}
	rows := make([]valuationRow, 0, len(items))
	total := decimal.Zero
	for _, item := range items {
		rows = append(rows, valuationRow{item: item})
		total = total.Add(item.StockValue())
	}
	next, err := writeSheet(f, valuationSheet, []string{
		"Code", "Name", "Category", "Stock", "AverageUnitCost", "StockValue", "SalePrice",
	}, rows)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := writeRow(f, valuationSheet, next, []interface{}{"TOTAL", nil, nil, nil, nil, money(total, 2)}); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

type lotRow struct {
	view costing.LotView
}

func (r lotRow) GetCellValues() []interface{} {
	return []interface{}{
		r.view.Timestamp.Format("2006-01-02 15:04:05"),
		r.view.ID,
		r.view.Quantity,
		money(r.view.TotalCost, 2),
		money(r.view.UnitCost, 4),
	}
}

// LotHistory exports an item's lots, most recent first.
func LotHistory(item *models.InventoryItem) (*excelize.File, error) {
	f, err := newWorkbook(lotsSheet)
	if err != nil {
		return nil, err
	}
	views := costing.History(item.Lots)
	rows := make([]lotRow, 0, len(views))
	for _, v := range views {
		rows = append(rows, lotRow{view: v})
	}
	if _, err := writeSheet(f, lotsSheet, []string{"Date", "LotId", "Quantity", "TotalCost", "UnitCost"}, rows); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: item.Code + " " + item.Name}); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}
