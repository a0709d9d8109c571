package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/matcon/erp_backend/costing"
	"github.com/matcon/erp_backend/models"
	"github.com/matcon/erp_backend/reports"
	"github.com/matcon/erp_backend/utils"
	"github.com/matcon/erp_backend/workflow"
	"github.com/xuri/excelize/v2"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type Handler struct {
	inventory *workflow.InventoryService
	dispatch  *workflow.DispatchService
}

func New(inventory *workflow.InventoryService, dispatch *workflow.DispatchService) *Handler {
	return &Handler{inventory: inventory, dispatch: dispatch}
}

// Register mounts the JSON API and the xlsx exports under r.
func (h *Handler) Register(r gin.IRouter) {
	items := r.Group("/items")
	items.GET("", h.listItems)
	items.POST("", h.createItem)
	items.GET("/:id", h.getItem)
	items.PUT("/:id", h.updateItem)
	items.DELETE("/:id", h.deleteItem)
	items.POST("/:id/lots", h.ingestLot)
	items.GET("/:id/lots", h.lotHistory)
	items.GET("/:id/lots.xlsx", h.exportLots)
	items.GET("/:id/snapshot", h.snapshot)
	items.GET("/:id/verify", h.verifyItem)
	items.POST("/:id/rebuild", h.rebuildItem)

	r.GET("/ledger/verify", h.verifyAll)

	projects := r.Group("/projects")
	projects.GET("", h.listProjects)
	projects.POST("", h.createProject)
	projects.GET("/:id", h.getProject)
	projects.POST("/:id/close", h.closeProject)
	projects.POST("/:id/dispatches", h.dispatchMaterial)
	projects.POST("/:id/returns", h.returnMaterial)
	projects.GET("/:id/materials.xlsx", h.exportProjectMaterials)

	r.GET("/reports/inventory-valuation.xlsx", h.exportInventoryValuation)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case costing.IsValidation(err):
		return http.StatusBadRequest
	case utils.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, models.ErrVersionConflict),
		errors.Is(err, workflow.ErrLockNotObtained),
		costing.IsInvariantViolation(err):
		return http.StatusConflict
	case costing.IsPersistence(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": ...}. Server-side failures are also attached
// to the gin context so the error logger picks them up.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	body := gin.H{"error": err.Error()}
	var ve *costing.ValidationError
	if errors.As(err, &ve) {
		body["field"] = ve.Field
	}
	c.AbortWithStatusJSON(status, body)
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		respondError(c, &costing.ValidationError{Field: "id", Reason: "must be a positive integer"})
		return 0, false
	}
	return id, true
}

// bindJSON answers 400 when the body does not decode or fails its binding tags.
func bindJSON(c *gin.Context, obj interface{}) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}
	details := utils.ProcessValidationErrors(err)
	if reason, ok := details["_"]; ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": (&costing.ValidationError{Field: "body", Reason: reason}).Error(),
			"field": "body",
		})
		return false
	}
	ve := models.ValidationErrorFrom(err).(*costing.ValidationError)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   ve.Error(),
		"field":   ve.Field,
		"details": details,
	})
	return false
}

func writeWorkbook(c *gin.Context, filename string, f *excelize.File) {
	c.Header("Content-Type", reports.ContentTypeXLSX)
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Status(http.StatusOK)
	if err := reports.Write(c.Writer, f); err != nil {
		_ = c.Error(err)
	}
}
