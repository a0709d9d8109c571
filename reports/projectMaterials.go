package reports

import (
	"github.com/matcon/erp_backend/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	movementsSheet = "Movements"
	summarySheet   = "Summary"
)

type movementRow struct {
	line *models.ProjectMaterial
}

func (r movementRow) GetCellValues() []interface{} {
	return []interface{}{
		r.line.CreatedAt.Format("2006-01-02 15:04:05"),
		string(r.line.Kind),
		r.line.ItemCode,
		r.line.ItemName,
		r.line.Quantity,
		money(r.line.UnitCost, 4),
		money(r.line.TotalValue, 2),
	}
}

type summaryRow struct {
	row *models.ProjectMaterialSummary
}

func (r summaryRow) GetCellValues() []interface{} {
	return []interface{}{
		r.row.ItemCode,
		r.row.ItemName,
		r.row.DispatchedQty,
		r.row.ReturnedQty,
		r.row.NetQuantity,
		money(r.row.NetValue, 2),
	}
}

// ProjectMaterials exports every movement of a project plus the per-item net
// totals on a second sheet.
func ProjectMaterials(project *models.Project, lines []*models.ProjectMaterial, summary []*models.ProjectMaterialSummary) (*excelize.File, error) {
	f, err := newWorkbook(movementsSheet)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*excelize.File, error) {
		_ = f.Close()
		return nil, err
	}

	movements := make([]movementRow, 0, len(lines))
	for _, line := range lines {
		movements = append(movements, movementRow{line: line})
	}
	if _, err := writeSheet(f, movementsSheet, []string{
		"Date", "Kind", "ItemCode", "ItemName", "Quantity", "UnitCost", "TotalValue",
	}, movements); err != nil {
		return fail(err)
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fail(err)
	}
	rows := make([]summaryRow, 0, len(summary))
	total := decimal.Zero
	for _, s := range summary {
		rows = append(rows, summaryRow{row: s})
		total = total.Add(s.NetValue)
	}
	next, err := writeSheet(f, summarySheet, []string{
		"ItemCode", "ItemName", "Dispatched", "Returned", "NetQuantity", "NetValue",
	}, rows)
	if err != nil {
		return fail(err)
	}
	if err := writeRow(f, summarySheet, next, []interface{}{"TOTAL", nil, nil, nil, nil, money(total, 2)}); err != nil {
		return fail(err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: project.Name}); err != nil {
		return fail(err)
	}
	return f, nil
}
