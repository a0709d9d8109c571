// Package costing keeps the per-item purchase lot ledger and the moving
// weighted-average unit cost derived from it.
//
// For every ingested lot:
//
//	newStock = max(0, oldStock) + quantity
//	newAvg   = (max(0, oldStock) * oldAvg + totalCost) / newStock
//
// The stored stock/average pair is a cache of replaying the ledger from (0, 0).
package costing

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matcon/erp_backend/utils"
	"github.com/shopspring/decimal"
)

// maxTotalCost is the exclusive upper bound on a lot's total cost. Averages
// and line values derived from it fit the decimal(65,16) money columns.
var maxTotalCost = decimal.New(1, 30)

// Lot is one purchase event. It is never edited once appended.
//
// Seq orders the lot against the item's stock movements. It is the item
// version produced by the write that appended the lot; zero means unknown.
type Lot struct {
	ID         string          `json:"id"`
	Seq        int             `json:"seq,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Quantity   int             `json:"quantity"`
	TotalCost  decimal.Decimal `json:"total_cost"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	RequestKey string          `json:"request_key,omitempty"`
}

// Snapshot is the costed state of one inventory item.
type Snapshot struct {
	CurrentStock    int             `json:"current_stock"`
	AverageUnitCost decimal.Decimal `json:"average_unit_cost"`
	Lots            []Lot           `json:"lots"`
}

// Virgin is the state of a freshly created item.
func Virgin() Snapshot {
	return Snapshot{
		CurrentStock:    0,
		AverageUnitCost: decimal.Zero,
		Lots:            []Lot{},
	}
}

// IsVirgin reports whether the item has never been stocked or moved.
func (s Snapshot) IsVirgin() bool {
	return s.CurrentStock == 0 && s.AverageUnitCost.IsZero() && len(s.Lots) == 0
}

// StockValue is the valuation of the on-hand quantity at the current average.
// Negative stock is valued at zero.
func (s Snapshot) StockValue() decimal.Decimal {
	return decimal.NewFromInt(int64(clampStock(s.CurrentStock))).Mul(s.AverageUnitCost)
}

type Engine struct {
	newID func() string
	now   func() time.Time
}

type Option func(*Engine)

// WithIDGenerator replaces the default UUID lot id generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

func WithClock(fn func() time.Time) Option {
	return func(e *Engine) {
		e.now = fn
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IngestLot computes the next costed state for a new purchase lot.
// The given snapshot is left untouched; the returned one owns a fresh ledger slice.
func (e *Engine) IngestLot(current Snapshot, quantity int, totalCost decimal.Decimal) (Snapshot, Lot, error) {
	return e.IngestLotWithKey(current, quantity, totalCost, "")
}

// IngestLotWithKey is IngestLot recording the caller's request key on the lot,
// so a retried request can be recognised with FindByRequestKey.
func (e *Engine) IngestLotWithKey(current Snapshot, quantity int, totalCost decimal.Decimal, requestKey string) (Snapshot, Lot, error) {
	return e.IngestSequencedLot(current, 0, quantity, totalCost, requestKey)
}

// IngestSequencedLot is IngestLotWithKey stamping the lot with seq, the
// position of the write in the item's combined lot and movement history.
func (e *Engine) IngestSequencedLot(current Snapshot, seq int, quantity int, totalCost decimal.Decimal, requestKey string) (Snapshot, Lot, error) {
	if err := ValidateLot(quantity, totalCost); err != nil {
		return Snapshot{}, Lot{}, err
	}
	if quantity > math.MaxInt-clampStock(current.CurrentStock) {
		return Snapshot{}, Lot{}, &ValidationError{Field: "quantity", Reason: "would overflow the stock counter"}
	}

	lot := Lot{
		ID:         e.newID(),
		Seq:        seq,
		Timestamp:  e.now(),
		Quantity:   quantity,
		TotalCost:  totalCost,
		UnitCost:   totalCost.Div(decimal.NewFromInt(int64(quantity))),
		RequestKey: strings.TrimSpace(requestKey),
	}

	stock, avg := applyLot(current.CurrentStock, current.AverageUnitCost, quantity, totalCost)

	lots := make([]Lot, 0, len(current.Lots)+1)
	lots = append(lots, current.Lots...)
	lots = append(lots, lot)

	return Snapshot{
		CurrentStock:    stock,
		AverageUnitCost: avg,
		Lots:            lots,
	}, lot, nil
}

func ValidateLot(quantity int, totalCost decimal.Decimal) error {
	if quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be a positive integer"}
	}
	if totalCost.IsNegative() {
		return &ValidationError{Field: "total_cost", Reason: "must not be negative"}
	}
	if totalCost.GreaterThanOrEqual(maxTotalCost) {
		return &ValidationError{Field: "total_cost", Reason: "exceeds the supported maximum of 1e30"}
	}
	return nil
}

// ParseLotInput converts raw user input. Anything that is not a base-10
// integer quantity or a plain decimal cost is a ValidationError.
func ParseLotInput(rawQuantity, rawTotalCost string) (int, decimal.Decimal, error) {
	q := strings.TrimSpace(rawQuantity)
	if q == "" {
		return 0, decimal.Zero, &ValidationError{Field: "quantity", Reason: "is required"}
	}
	quantity, err := strconv.Atoi(q)
	if err != nil {
		return 0, decimal.Zero, &ValidationError{Field: "quantity", Reason: "must be an integer"}
	}

	c := strings.TrimSpace(rawTotalCost)
	if c == "" {
		return 0, decimal.Zero, &ValidationError{Field: "total_cost", Reason: "is required"}
	}
	totalCost, err := utils.ParseDecimal(c)
	if err != nil {
		return 0, decimal.Zero, &ValidationError{Field: "total_cost", Reason: "must be a number"}
	}

	if err := ValidateLot(quantity, totalCost); err != nil {
		return 0, decimal.Zero, err
	}
	return quantity, totalCost, nil
}

func applyLot(stock int, avg decimal.Decimal, quantity int, totalCost decimal.Decimal) (int, decimal.Decimal) {
	prior := clampStock(stock)
	priorValue := decimal.NewFromInt(int64(prior)).Mul(avg)
	newStock := prior + quantity
	newAvg := priorValue.Add(totalCost).Div(decimal.NewFromInt(int64(newStock)))
	return newStock, newAvg
}

func clampStock(stock int) int {
	if stock < 0 {
		return 0
	}
	return stock
}

// FindByRequestKey returns the lot recorded under key, if any.
func FindByRequestKey(lots []Lot, key string) (Lot, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Lot{}, false
	}
	for _, lot := range lots {
		if lot.RequestKey == key {
			return lot, true
		}
	}
	return Lot{}, false
}
