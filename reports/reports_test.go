package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/matcon/erp_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func reopen(t *testing.T, f *excelize.File) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, f))
	out, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = out.Close() })
	return out
}

func TestInventoryValuation(t *testing.T) {
	items := []*models.InventoryItem{
		{Code: "ITEM-001", Name: "Cemento gris", Category: models.CategoryCemento, CurrentStock: 35, AverageUnitCost: dec("5"), SalePrice: dec("7.5")},
		{Code: "ITEM-002", Name: "Varilla 3/8", Category: models.CategoryAcero, CurrentStock: 3, AverageUnitCost: dec("11.6666666666666667")},
	}
	f, err := InventoryValuation(items)
	require.NoError(t, err)
	f = reopen(t, f)

	header, err := f.GetCellValue(valuationSheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Code", header)

	code, _ := f.GetCellValue(valuationSheet, "A3")
	assert.Equal(t, "ITEM-002", code)
	avg, _ := f.GetCellValue(valuationSheet, "E3")
	assert.Equal(t, "11.6667", avg)
	value, _ := f.GetCellValue(valuationSheet, "F2")
	assert.Equal(t, "175", value)

	label, _ := f.GetCellValue(valuationSheet, "A4")
	assert.Equal(t, "TOTAL", label)
	total, _ := f.GetCellValue(valuationSheet, "F4")
	assert.Equal(t, "210", total)
}

func TestLotHistoryMostRecentFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	item := &models.InventoryItem{
		Code: "ITEM-001",
		Name: "Cemento gris",
		Lots: models.LotLedger{
			{ID: "lot-a", Timestamp: base, Quantity: 10, TotalCost: dec("40"), UnitCost: dec("4")},
			{ID: "lot-b", Timestamp: base.Add(time.Hour), Quantity: 25, TotalCost: dec("135"), UnitCost: dec("5.4")},
		},
	}
	f, err := LotHistory(item)
	require.NoError(t, err)
	f = reopen(t, f)

	rows, err := f.GetRows(lotsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Date", "LotId", "Quantity", "TotalCost", "UnitCost"}, rows[0])
	assert.Equal(t, "lot-b", rows[1][1])
	assert.Equal(t, "2026-03-01 09:00:00", rows[1][0])
	assert.Equal(t, "lot-a", rows[2][1])

	props, err := f.GetDocProps()
	require.NoError(t, err)
	assert.Equal(t, "ITEM-001 Cemento gris", props.Title)
}

func TestProjectMaterials(t *testing.T) {
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	lines := []*models.ProjectMaterial{
		{ItemId: 1, ItemCode: "ITEM-001", ItemName: "Cemento gris", Kind: models.MovementKindDispatch, Quantity: 9, UnitCost: dec("5"), TotalValue: dec("45"), CreatedAt: at},
		{ItemId: 1, ItemCode: "ITEM-001", ItemName: "Cemento gris", Kind: models.MovementKindReturn, Quantity: 2, UnitCost: dec("5"), TotalValue: dec("10"), CreatedAt: at.Add(time.Hour)},
	}
	summary := models.SummarizeMaterials(lines)

	f, err := ProjectMaterials(&models.Project{Name: "Torre Norte"}, lines, summary)
	require.NoError(t, err)
	f = reopen(t, f)

	assert.Equal(t, []string{movementsSheet, summarySheet}, f.GetSheetList())
	kind, _ := f.GetCellValue(movementsSheet, "B3")
	assert.Equal(t, "RETURN", kind)

	net, _ := f.GetCellValue(summarySheet, "E2")
	assert.Equal(t, "7", net)
	total, _ := f.GetCellValue(summarySheet, "F3")
	assert.Equal(t, "35", total)
}
