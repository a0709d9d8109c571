package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/matcon/erp_backend/costing"
	"github.com/matcon/erp_backend/models"
	"github.com/matcon/erp_backend/reports"
	"github.com/matcon/erp_backend/workflow"
)

func (h *Handler) listItems(c *gin.Context) {
	filter := models.ItemFilter{Search: strings.TrimSpace(c.Query("search"))}
	if raw := strings.TrimSpace(c.Query("category")); raw != "" {
		category, err := models.ParseCategory(raw)
		if err != nil {
			respondError(c, &costing.ValidationError{Field: "category", Reason: "unknown category"})
			return
		}
		filter.Category = category
	}
	items, err := h.inventory.ListItems(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) createItem(c *gin.Context) {
	var input models.NewInventoryItem
	if !bindJSON(c, &input) {
		return
	}
	item, err := h.inventory.CreateItem(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) getItem(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	item, err := h.inventory.GetItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) updateItem(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewInventoryItem
	if !bindJSON(c, &input) {
		return
	}
	item, err := h.inventory.UpdateItem(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) deleteItem(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	item, err := h.inventory.DeleteItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// lotRequest keeps quantity and total_cost raw so that "12", 12 and "abc" all
// reach costing.ParseLotInput and fail or pass the same way.
type lotRequest struct {
	Quantity   json.RawMessage `json:"quantity"`
	TotalCost  json.RawMessage `json:"total_cost"`
	RequestKey string          `json:"request_key"`
}

func rawValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	v := strings.TrimSpace(string(raw))
	if v == "null" {
		return ""
	}
	return v
}

type ingestResponse struct {
	Item      *models.InventoryItem `json:"item"`
	Lot       costing.Lot           `json:"lot"`
	Duplicate bool                  `json:"duplicate"`
}

func (h *Handler) ingestLot(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req lotRequest
	if !bindJSON(c, &req) {
		return
	}
	quantity, totalCost, err := costing.ParseLotInput(rawValue(req.Quantity), rawValue(req.TotalCost))
	if err != nil {
		respondError(c, err)
		return
	}
	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if key == "" {
		key = strings.TrimSpace(req.RequestKey)
	}

	result, err := h.inventory.IngestLot(c.Request.Context(), id, workflow.LotInput{
		Quantity:   quantity,
		TotalCost:  totalCost,
		RequestKey: key,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, ingestResponse{Item: result.Item, Lot: result.Lot, Duplicate: result.Duplicate})
}

func (h *Handler) lotHistory(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	views, err := h.inventory.LotHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) exportLots(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	item, err := h.inventory.GetItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	f, err := reports.LotHistory(item)
	if err != nil {
		respondError(c, err)
		return
	}
	writeWorkbook(c, item.Code+"-lots.xlsx", f)
}

type snapshotResponse struct {
	costing.Snapshot
	AverageUnitCostDisplay string `json:"average_unit_cost_display"`
	StockValueDisplay      string `json:"stock_value_display"`
	LotCount               int    `json:"lot_count"`
}

func (h *Handler) snapshot(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	snap, err := h.inventory.GetSnapshot(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshotResponse{
		Snapshot:               snap,
		AverageUnitCostDisplay: snap.AverageUnitCost.StringFixed(2),
		StockValueDisplay:      snap.StockValue().StringFixed(2),
		LotCount:               len(snap.Lots),
	})
}

func (h *Handler) verifyItem(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := h.inventory.VerifyItem(c.Request.Context(), id)
	if err != nil && !costing.IsInvariantViolation(err) {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if !result.InSync {
		status = http.StatusConflict
	}
	c.JSON(status, result)
}

func (h *Handler) rebuildItem(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	item, changed, err := h.inventory.RebuildItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item, "changed": changed})
}

func (h *Handler) verifyAll(c *gin.Context) {
	report, err := h.inventory.VerifyAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if len(report.Drifted) > 0 {
		status = http.StatusConflict
	}
	c.JSON(status, report)
}

func (h *Handler) exportInventoryValuation(c *gin.Context) {
	items, err := h.inventory.ListItems(c.Request.Context(), models.ItemFilter{})
	if err != nil {
		respondError(c, err)
		return
	}
	f, err := reports.InventoryValuation(items)
	if err != nil {
		respondError(c, err)
		return
	}
	writeWorkbook(c, "inventory-valuation.xlsx", f)
}
