package workflow

import (
	"errors"
	"time"

	"github.com/matcon/erp_backend/costing"
	"github.com/matcon/erp_backend/models"
	"github.com/matcon/erp_backend/utils"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the inventory counters exposed on /metrics. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	LotsIngested   prometheus.Counter
	IngestFailures *prometheus.CounterVec
	StockMovements *prometheus.CounterVec
	LedgerDrift    prometheus.Counter
	IngestDuration prometheus.Histogram
}

// NewMetrics builds the collectors and registers them on reg when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LotsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_lots_ingested_total",
			Help: "Purchase lots appended to an item ledger.",
		}),
		IngestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_ingest_failures_total",
			Help: "Lot ingestions that were rejected or failed, by reason.",
		}, []string{"reason"}),
		StockMovements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_stock_movements_total",
			Help: "Dispatches and returns recorded against projects.",
		}, []string{"kind"}),
		LedgerDrift: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_ledger_drift_total",
			Help: "Stored snapshots that did not match the replay of their ledger.",
		}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inventory_ingest_duration_seconds",
			Help:    "Time spent ingesting one lot, lock wait included.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.LotsIngested, m.IngestFailures, m.StockMovements, m.LedgerDrift, m.IngestDuration)
	}
	return m
}

func (m *Metrics) observeIngest(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.IngestDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.IngestFailures.WithLabelValues(failureReason(err)).Inc()
		return
	}
	m.LotsIngested.Inc()
}

func (m *Metrics) movement(kind models.MovementKind) {
	if m == nil {
		return
	}
	m.StockMovements.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) drift() {
	if m == nil {
		return
	}
	m.LedgerDrift.Inc()
}

func failureReason(err error) string {
	switch {
	case costing.IsValidation(err):
		return "validation"
	case errors.Is(err, utils.ErrorRecordNotFound):
		return "not_found"
	case errors.Is(err, models.ErrVersionConflict):
		return "version_conflict"
	case errors.Is(err, ErrLockNotObtained):
		return "lock"
	case costing.IsPersistence(err):
		return "persistence"
	}
	return "other"
}
