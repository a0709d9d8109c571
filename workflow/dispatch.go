package workflow

import (
	"context"
	"fmt"

	"github.com/matcon/erp_backend/costing"
	"github.com/matcon/erp_backend/models"
	"github.com/matcon/erp_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DispatchService moves stock between the warehouse and projects. It changes
// stock only; average cost and lots are left as they are.
type DispatchService struct {
	serviceDeps
	store  models.Store
	locker ItemLocker
}

func NewDispatchService(store models.Store, locker ItemLocker, opts ...Option) *DispatchService {
	return &DispatchService{
		serviceDeps: newDeps(opts),
		store:       store,
		locker:      locker,
	}
}

type MovementResult struct {
	Item *models.InventoryItem   `json:"item"`
	Line *models.ProjectMaterial `json:"line"`
}

type ProjectDetail struct {
	Project    *models.Project                  `json:"project"`
	Lines      []*models.ProjectMaterial        `json:"lines"`
	Summary    []*models.ProjectMaterialSummary `json:"summary"`
	TotalValue decimal.Decimal                  `json:"total_value"`
}

func (s *DispatchService) CreateProject(ctx context.Context, input *models.NewProject) (*models.Project, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	project, err := s.store.CreateProject(ctx, input)
	if err != nil {
		return nil, storeError("create project", err)
	}
	s.logger.WithFields(logrus.Fields{
		"project_id": project.ID,
		"name":       project.Name,
	}).Info("project.created")
	return project, nil
}

func (s *DispatchService) ListProjects(ctx context.Context) ([]*models.Project, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, storeError("list projects", err)
	}
	return projects, nil
}

// CloseProject stops further dispatches and returns on the project. Its
// material lines stay as they are.
func (s *DispatchService) CloseProject(ctx context.Context, id int) (*models.Project, error) {
	project, err := s.store.CloseProject(ctx, id)
	if err != nil {
		err = storeError("close project", err)
		if utils.IsNotFound(err) {
			return nil, fmt.Errorf("project %d: %w", id, utils.ErrorRecordNotFound)
		}
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"project_id": project.ID,
		"name":       project.Name,
	}).Info("project.closed")
	return project, nil
}

func (s *DispatchService) fetchProject(ctx context.Context, id int) (*models.Project, error) {
	project, err := s.store.FetchProject(ctx, id)
	if err != nil {
		err = storeError("fetch project", err)
		if utils.IsNotFound(err) {
			return nil, fmt.Errorf("project %d: %w", id, utils.ErrorRecordNotFound)
		}
		return nil, err
	}
	return project, nil
}

// GetProject returns the project with its material lines and per-item totals.
func (s *DispatchService) GetProject(ctx context.Context, id int) (*ProjectDetail, error) {
	project, err := s.fetchProject(ctx, id)
	if err != nil {
		return nil, err
	}
	lines, err := s.store.ListProjectMaterials(ctx, id)
	if err != nil {
		return nil, storeError("list project materials", err)
	}
	summary := models.SummarizeMaterials(lines)
	total := decimal.Zero
	for _, row := range summary {
		total = total.Add(row.NetValue)
	}
	return &ProjectDetail{
		Project:    project,
		Lines:      lines,
		Summary:    summary,
		TotalValue: total,
	}, nil
}

// Dispatch sends quantity units of an item to an active project, valued at the
// item's current average unit cost.
func (s *DispatchService) Dispatch(ctx context.Context, projectId int, input *models.NewStockMovement) (*MovementResult, error) {
	return s.move(ctx, projectId, input, models.MovementKindDispatch)
}

// Return brings units back from a project. It cannot exceed what the project
// has on net received of that item.
func (s *DispatchService) Return(ctx context.Context, projectId int, input *models.NewStockMovement) (*MovementResult, error) {
	return s.move(ctx, projectId, input, models.MovementKindReturn)
}

func (s *DispatchService) move(ctx context.Context, projectId int, input *models.NewStockMovement, kind models.MovementKind) (*MovementResult, error) {
	ctx, span := startSpan(ctx, "DispatchService."+string(kind), input.ItemId)
	result, err := s.doMove(ctx, projectId, input, kind)
	endSpan(span, err)
	if err != nil {
		s.entry(ctx, input.ItemId).WithFields(logrus.Fields{
			"project_id": projectId,
			"kind":       kind,
			"quantity":   input.Quantity,
			"error":      err.Error(),
		}).Warn("inventory.movement.rejected")
	}
	return result, err
}

func (s *DispatchService) doMove(ctx context.Context, projectId int, input *models.NewStockMovement, kind models.MovementKind) (*MovementResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	project, err := s.fetchProject(ctx, projectId)
	if err != nil {
		return nil, err
	}
	if project.Status != models.ProjectStatusActive {
		return nil, &costing.ValidationError{Field: "project_id", Reason: "project is not active"}
	}

	unlock, err := lockItem(ctx, s.locker, input.ItemId)
	if err != nil {
		return nil, err
	}
	defer unlock()

	item, err := s.store.FetchItem(ctx, input.ItemId)
	if err != nil {
		return nil, itemNotFound(input.ItemId, storeError("fetch item", err))
	}

	switch kind {
	case models.MovementKindDispatch:
		if !s.allowNegativeStock && item.CurrentStock < input.Quantity {
			return nil, &costing.ValidationError{
				Field:  "quantity",
				Reason: fmt.Sprintf("insufficient stock (%d available)", item.CurrentStock),
			}
		}
	case models.MovementKindReturn:
		lines, err := s.store.ListProjectMaterials(ctx, projectId)
		if err != nil {
			return nil, storeError("list project materials", err)
		}
		if net := models.NetDispatched(lines, item.ID); input.Quantity > net {
			return nil, &costing.ValidationError{
				Field:  "quantity",
				Reason: fmt.Sprintf("exceeds quantity dispatched to the project (%d)", net),
			}
		}
	}

	line := &models.ProjectMaterial{
		ProjectId:  projectId,
		ItemId:     item.ID,
		ItemCode:   item.Code,
		ItemName:   item.Name,
		Kind:       kind,
		Quantity:   input.Quantity,
		UnitCost:   item.AverageUnitCost,
		TotalValue: item.AverageUnitCost.Mul(decimal.NewFromInt(int64(input.Quantity))),
		CreatedAt:  s.now(),
	}
	saved, err := s.store.RecordMovement(ctx, item.Version, line)
	if err != nil {
		return nil, itemNotFound(item.ID, storeError("record movement", err))
	}
	s.invalidate(ctx, item.ID)
	s.metrics.movement(kind)

	s.entry(ctx, item.ID).WithFields(logrus.Fields{
		"project_id":    projectId,
		"kind":          kind,
		"quantity":      input.Quantity,
		"total_value":   line.TotalValue.String(),
		"current_stock": saved.CurrentStock,
	}).Info("inventory.movement.recorded")

	return &MovementResult{Item: saved, Line: line}, nil
}
