package workflow

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matcon/erp_backend/costing"
	"github.com/matcon/erp_backend/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// stepClock advances one minute per reading.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

// flakyStore fails selected writes and counts save attempts. afterFetch, when
// set, runs once right after the next FetchItem has read its row.
type flakyStore struct {
	*models.MemoryStore
	saveErr     error
	movementErr error
	saves       atomic.Int32
	afterFetch  func()
}

func (f *flakyStore) FetchItem(ctx context.Context, id int) (*models.InventoryItem, error) {
	item, err := f.MemoryStore.FetchItem(ctx, id)
	if hook := f.afterFetch; hook != nil {
		f.afterFetch = nil
		hook()
	}
	return item, err
}

func (f *flakyStore) SaveItemCostedState(ctx context.Context, id int, expectedVersion int, s costing.Snapshot) (*models.InventoryItem, error) {
	f.saves.Add(1)
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return f.MemoryStore.SaveItemCostedState(ctx, id, expectedVersion, s)
}

func (f *flakyStore) RecordMovement(ctx context.Context, expectedVersion int, line *models.ProjectMaterial) (*models.InventoryItem, error) {
	if f.movementErr != nil {
		return nil, f.movementErr
	}
	return f.MemoryStore.RecordMovement(ctx, expectedVersion, line)
}

// noLocker lets every caller through, leaving only the version check.
type noLocker struct{}

func (noLocker) Lock(ctx context.Context, itemId int) (func(), error) {
	return func() {}, nil
}

type fixture struct {
	store     *flakyStore
	clock     *stepClock
	metrics   *Metrics
	registry  *prometheus.Registry
	inventory *InventoryService
	dispatch  *DispatchService
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:    &flakyStore{MemoryStore: models.NewMemoryStore()},
		clock:    newStepClock(),
		registry: prometheus.NewRegistry(),
	}
	f.metrics = NewMetrics(f.registry)
	locker := NewLocalItemLocker()
	all := append([]Option{
		WithClock(f.clock.Now),
		WithMetrics(f.metrics),
		WithLogger(quietLogger()),
	}, opts...)
	f.inventory = NewInventoryService(f.store, locker, all...)
	f.dispatch = NewDispatchService(f.store, locker, all...)
	return f
}

func (f *fixture) createItem(t *testing.T, name string) *models.InventoryItem {
	t.Helper()
	item, err := f.inventory.CreateItem(context.Background(), &models.NewInventoryItem{
		Name:     name,
		Category: models.CategoryCemento,
	})
	require.NoError(t, err)
	return item
}

func (f *fixture) ingest(t *testing.T, itemId int, qty int, cost string) *IngestResult {
	t.Helper()
	res, err := f.inventory.IngestLot(context.Background(), itemId, LotInput{Quantity: qty, TotalCost: dec(cost)})
	require.NoError(t, err)
	return res
}

var errDiskFull = errors.New("disk full")
