package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/matcon/erp_backend/middlewares"
	"github.com/matcon/erp_backend/models"
	"github.com/matcon/erp_backend/reports"
	"github.com/matcon/erp_backend/utils"
	"github.com/matcon/erp_backend/workflow"
	"github.com/shopspring/decimal"
)

func (h *Handler) listProjects(c *gin.Context) {
	projects, err := h.dispatch.ListProjects(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (h *Handler) createProject(c *gin.Context) {
	var input models.NewProject
	if !bindJSON(c, &input) {
		return
	}
	project, err := h.dispatch.CreateProject(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

// materialView is a summary row joined with the item's current state.
// Deleted items keep their summary but carry no current figures.
type materialView struct {
	*models.ProjectMaterialSummary
	CurrentStock           *int             `json:"current_stock"`
	CurrentAverageUnitCost *decimal.Decimal `json:"current_average_unit_cost"`
	Deleted                bool             `json:"item_deleted"`
}

type projectResponse struct {
	Project    *models.Project           `json:"project"`
	Lines      []*models.ProjectMaterial `json:"lines"`
	Materials  []materialView            `json:"materials"`
	TotalValue decimal.Decimal           `json:"total_value"`
}

func (h *Handler) getProject(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	detail, err := h.dispatch.GetProject(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	ids := make([]int, len(detail.Summary))
	for i, row := range detail.Summary {
		ids[i] = row.ItemId
	}
	items, errs := middlewares.GetItems(c.Request.Context(), ids)
	materials := make([]materialView, len(detail.Summary))
	for i, row := range detail.Summary {
		view := materialView{ProjectMaterialSummary: row}
		switch {
		case len(errs) > i && errs[i] != nil:
			if !utils.IsNotFound(errs[i]) {
				respondError(c, fmt.Errorf("load item %d: %w", row.ItemId, errs[i]))
				return
			}
			view.Deleted = true
		case i < len(items) && items[i] != nil:
			stock, avg := items[i].CurrentStock, items[i].AverageUnitCost
			view.CurrentStock = &stock
			view.CurrentAverageUnitCost = &avg
		}
		materials[i] = view
	}

	c.JSON(http.StatusOK, projectResponse{
		Project:    detail.Project,
		Lines:      detail.Lines,
		Materials:  materials,
		TotalValue: detail.TotalValue,
	})
}

func (h *Handler) closeProject(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	project, err := h.dispatch.CloseProject(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *Handler) dispatchMaterial(c *gin.Context) {
	h.recordMovement(c, h.dispatch.Dispatch)
}

func (h *Handler) returnMaterial(c *gin.Context) {
	h.recordMovement(c, h.dispatch.Return)
}

type movementFunc func(ctx context.Context, projectId int, input *models.NewStockMovement) (*workflow.MovementResult, error)

func (h *Handler) recordMovement(c *gin.Context, move movementFunc) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewStockMovement
	if !bindJSON(c, &input) {
		return
	}
	result, err := move(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) exportProjectMaterials(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	detail, err := h.dispatch.GetProject(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	f, err := reports.ProjectMaterials(detail.Project, detail.Lines, detail.Summary)
	if err != nil {
		respondError(c, err)
		return
	}
	writeWorkbook(c, fmt.Sprintf("project-%d-materials.xlsx", id), f)
}
