package costing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var tolerance = decimal.New(1, -9)

// Tolerance bounds the accepted difference between a stored average and its replay.
func Tolerance() decimal.Decimal {
	return tolerance
}

// Movement is a stock change made outside the ledger (dispatch < 0, return > 0).
// Movements never change the average cost. Seq has the same meaning as Lot.Seq.
type Movement struct {
	Seq   int       `json:"seq,omitempty"`
	At    time.Time `json:"at"`
	Delta int       `json:"delta"`
}

// sequenced reports whether a and b can be ordered by Seq; otherwise callers
// fall back to wall-clock time.
func sequenced(a, b int) bool {
	return a > 0 && b > 0
}

func movementBefore(a, b Movement) bool {
	if sequenced(a.Seq, b.Seq) {
		return a.Seq < b.Seq
	}
	return a.At.Before(b.At)
}

func appliesBefore(m Movement, lot Lot) bool {
	if sequenced(m.Seq, lot.Seq) {
		return m.Seq < lot.Seq
	}
	return m.At.Before(lot.Timestamp)
}

// Replay folds lots and movements from the virgin state. Lots keep their
// ledger order. Movements are merged in by Seq; entries written without one
// are placed by timestamp, after any lot recorded at the same instant.
func Replay(lots []Lot, movements []Movement) Snapshot {
	if len(lots) == 0 && len(movements) == 0 {
		return Virgin()
	}
	moves := make([]Movement, len(movements))
	copy(moves, movements)
	sort.SliceStable(moves, func(i, j int) bool {
		return movementBefore(moves[i], moves[j])
	})

	stock := 0
	avg := decimal.Zero
	m := 0
	for _, lot := range lots {
		for m < len(moves) && appliesBefore(moves[m], lot) {
			stock += moves[m].Delta
			m++
		}
		stock, avg = applyLot(stock, avg, lot.Quantity, lot.TotalCost)
	}
	for ; m < len(moves); m++ {
		stock += moves[m].Delta
	}

	ledger := make([]Lot, len(lots))
	copy(ledger, lots)
	return Snapshot{
		CurrentStock:    stock,
		AverageUnitCost: avg,
		Lots:            ledger,
	}
}

// Verify compares a stored snapshot with its replay.
func Verify(itemID int, stored, replayed Snapshot) error {
	if stored.IsVirgin() && replayed.IsVirgin() {
		return nil
	}
	if stored.CurrentStock != replayed.CurrentStock ||
		stored.AverageUnitCost.Sub(replayed.AverageUnitCost).Abs().GreaterThan(tolerance) {
		return &InvariantViolation{ItemID: itemID, Stored: stored, Replayed: replayed}
	}
	return nil
}

// LotView is a display row of the lot history.
type LotView struct {
	ID               string          `json:"id"`
	Timestamp        time.Time       `json:"timestamp"`
	Quantity         int             `json:"quantity"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	TotalCostDisplay string          `json:"total_cost_display"`
	UnitCostDisplay  string          `json:"unit_cost_display"`
}

// History lists lots most recent first.
func History(lots []Lot) []LotView {
	views := make([]LotView, 0, len(lots))
	for i := len(lots) - 1; i >= 0; i-- {
		lot := lots[i]
		views = append(views, LotView{
			ID:               lot.ID,
			Timestamp:        lot.Timestamp,
			Quantity:         lot.Quantity,
			TotalCost:        lot.TotalCost,
			UnitCost:         lot.UnitCost,
			TotalCostDisplay: lot.TotalCost.StringFixed(2),
			UnitCostDisplay:  lot.UnitCost.StringFixed(2),
		})
	}
	return views
}
