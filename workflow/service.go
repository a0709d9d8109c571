package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matcon/erp_backend/appctx"
	"github.com/matcon/erp_backend/config"
	"github.com/matcon/erp_backend/costing"
	"github.com/matcon/erp_backend/models"
	"github.com/matcon/erp_backend/utils"
	"github.com/sirupsen/logrus"
)

const moduleName = "workflow"

type ItemCache = utils.RedisCache[models.InventoryItem]

// serviceDeps is shared by the inventory and dispatch services.
type serviceDeps struct {
	cache              *ItemCache
	metrics            *Metrics
	logger             *logrus.Logger
	now                func() time.Time
	engine             *costing.Engine
	verifyOnIngest     bool
	allowNegativeStock bool
}

type Option func(*serviceDeps)

func WithCache(cache *ItemCache) Option {
	return func(d *serviceDeps) { d.cache = cache }
}

func WithMetrics(m *Metrics) Option {
	return func(d *serviceDeps) { d.metrics = m }
}

func WithLogger(logger *logrus.Logger) Option {
	return func(d *serviceDeps) { d.logger = logger }
}

// WithClock sets the time source for lot timestamps and movement lines, so
// both stay on one timeline for replay.
func WithClock(now func() time.Time) Option {
	return func(d *serviceDeps) { d.now = now }
}

// WithEngine overrides the costing engine; the clock given by WithClock is
// then ignored for lots.
func WithEngine(engine *costing.Engine) Option {
	return func(d *serviceDeps) { d.engine = engine }
}

func WithVerifyOnIngest(enabled bool) Option {
	return func(d *serviceDeps) { d.verifyOnIngest = enabled }
}

func WithAllowNegativeStock(enabled bool) Option {
	return func(d *serviceDeps) { d.allowNegativeStock = enabled }
}

func newDeps(opts []Option) serviceDeps {
	d := serviceDeps{
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&d)
	}
	if d.logger == nil {
		d.logger = config.GetLogger()
	}
	if d.engine == nil {
		d.engine = costing.NewEngine(costing.WithClock(d.now))
	}
	return d
}

// invalidate drops the cached item and every cached item list. Cache errors
// are logged only; the store stays the source of truth.
func (d *serviceDeps) invalidate(ctx context.Context, itemIds ...int) {
	if err := d.cache.Delete(ctx, itemIds...); err != nil {
		d.logger.WithFields(logrus.Fields{
			"item_ids": itemIds,
			"error":    err.Error(),
		}).Warn("inventory.cache.invalidate_failed")
	}
}

func (d *serviceDeps) entry(ctx context.Context, itemId int) *logrus.Entry {
	fields := logrus.Fields{"item_id": itemId}
	if id, ok := appctx.GetCorrelationId(ctx); ok {
		fields["correlation_id"] = id
	}
	if actor, ok := appctx.GetActor(ctx); ok {
		fields["actor"] = actor
	}
	return d.logger.WithFields(fields)
}

// storeError passes through not-found and validation errors and wraps
// everything else in a *costing.PersistenceError.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, utils.ErrorRecordNotFound) || costing.IsValidation(err) {
		return err
	}
	return costing.NewPersistenceError(op, err)
}

func itemNotFound(itemId int, err error) error {
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return fmt.Errorf("inventory item %d: %w", itemId, utils.ErrorRecordNotFound)
	}
	return err
}

func lockItem(ctx context.Context, locker ItemLocker, itemId int) (func(), error) {
	unlock, err := locker.Lock(ctx, itemId)
	if err != nil {
		return nil, costing.NewPersistenceError("lock item", err)
	}
	return unlock, nil
}
