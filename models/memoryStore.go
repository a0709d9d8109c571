package models

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/matcon/erp_backend/costing"
	"github.com/matcon/erp_backend/utils"
)

// MemoryStore implements Store in process memory. Returned values are copies,
// so callers never share state with the store.
type MemoryStore struct {
	mu          sync.Mutex
	items       map[int]*InventoryItem
	projects    map[int]*Project
	materials   []*ProjectMaterial
	codeSeq     int
	nextItemId  int
	nextProject int
	nextLine    int
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:    make(map[int]*InventoryItem),
		projects: make(map[int]*Project),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func cloneItem(item *InventoryItem) *InventoryItem {
	c := *item
	c.Lots = make(LotLedger, len(item.Lots))
	copy(c.Lots, item.Lots)
	return &c
}

func (s *MemoryStore) FetchItem(ctx context.Context, id int) (*InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return cloneItem(item), nil
}

func (s *MemoryStore) FetchItemsByIds(ctx context.Context, ids []int) ([]*InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]*InventoryItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			items = append(items, cloneItem(item))
		}
	}
	return items, nil
}

func (s *MemoryStore) ListItems(ctx context.Context, filter ItemFilter) ([]*InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	items := make([]*InventoryItem, 0, len(s.items))
	for _, item := range s.items {
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(item.Name), search) &&
			!strings.Contains(strings.ToLower(item.Code), search) {
			continue
		}
		items = append(items, cloneItem(item))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Code < items[j].Code })
	return items, nil
}

// guard must be called with mu held.
func (s *MemoryStore) guard(id int, expectedVersion int) (*InventoryItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	if item.Version != expectedVersion {
		return nil, ErrVersionConflict
	}
	return item, nil
}

func (s *MemoryStore) SaveItemCostedState(ctx context.Context, id int, expectedVersion int, snapshot costing.Snapshot) (*InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, err := s.guard(id, expectedVersion)
	if err != nil {
		return nil, err
	}
	item.ApplySnapshot(snapshot)
	item.Version++
	item.UpdatedAt = s.now()
	return cloneItem(item), nil
}

func (s *MemoryStore) CreateItem(ctx context.Context, input *NewInventoryItem) (*InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codeSeq++
	s.nextItemId++
	now := s.now()
	item := &InventoryItem{
		ID:        s.nextItemId,
		Code:      FormatItemCode(s.codeSeq),
		Name:      input.Name,
		Category:  input.Category,
		SalePrice: input.SalePrice,
		CreatedAt: now,
		UpdatedAt: now,
	}
	item.ApplySnapshot(costing.Virgin())
	s.items[item.ID] = item
	return cloneItem(item), nil
}

func (s *MemoryStore) UpdateItemDetails(ctx context.Context, id int, input *NewInventoryItem) (*InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	item.Name = input.Name
	item.Category = input.Category
	item.SalePrice = input.SalePrice
	item.UpdatedAt = s.now()
	return cloneItem(item), nil
}

func (s *MemoryStore) DeleteItem(ctx context.Context, id int) (*InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	delete(s.items, id)
	return cloneItem(item), nil
}

func (s *MemoryStore) ListMovements(ctx context.Context, itemId int) ([]costing.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	movements := make([]costing.Movement, 0)
	for _, l := range s.materials {
		if l.ItemId == itemId {
			movements = append(movements, l.Movement())
		}
	}
	sort.SliceStable(movements, func(i, j int) bool { return movements[i].Seq < movements[j].Seq })
	return movements, nil
}

func (s *MemoryStore) CreateProject(ctx context.Context, input *NewProject) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextProject++
	now := s.now()
	project := &Project{
		ID:         s.nextProject,
		Name:       input.Name,
		ClientName: input.ClientName,
		Address:    input.Address,
		Status:     ProjectStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.projects[project.ID] = project
	c := *project
	return &c, nil
}

func (s *MemoryStore) FetchProject(ctx context.Context, id int) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projects[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	c := *project
	return &c, nil
}

func (s *MemoryStore) CloseProject(ctx context.Context, id int) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projects[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	if project.Status != ProjectStatusClosed {
		project.Status = ProjectStatusClosed
		project.UpdatedAt = s.now()
	}
	c := *project
	return &c, nil
}

func (s *MemoryStore) ListProjects(ctx context.Context) ([]*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	projects := make([]*Project, 0, len(s.projects))
	for _, p := range s.projects {
		c := *p
		projects = append(projects, &c)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID > projects[j].ID })
	return projects, nil
}

func (s *MemoryStore) ListProjectMaterials(ctx context.Context, projectId int) ([]*ProjectMaterial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]*ProjectMaterial, 0)
	for _, l := range s.materials {
		if l.ProjectId == projectId {
			c := *l
			lines = append(lines, &c)
		}
	}
	return lines, nil
}

func (s *MemoryStore) RecordMovement(ctx context.Context, expectedVersion int, line *ProjectMaterial) (*InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, err := s.guard(line.ItemId, expectedVersion)
	if err != nil {
		return nil, err
	}
	s.nextLine++
	line.ID = s.nextLine
	line.ItemSeq = expectedVersion + 1
	if line.CreatedAt.IsZero() {
		line.CreatedAt = s.now()
	}
	stored := *line
	s.materials = append(s.materials, &stored)

	item.CurrentStock += line.Delta()
	item.Version++
	item.UpdatedAt = s.now()
	return cloneItem(item), nil
}
