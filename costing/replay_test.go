package costing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplay_ReproducesIngestedSnapshot(t *testing.T) {
	e := testEngine()
	s := Virgin()
	for _, in := range []struct {
		qty  int
		cost string
	}{{10, "100"}, {5, "75"}, {20, "0"}, {1, "3.33"}, {8, "41.17"}} {
		var err error
		s, _, err = e.IngestLot(s, in.qty, dec(in.cost))
		require.NoError(t, err)
	}

	replayed := Replay(s.Lots, nil)
	assert.Equal(t, s.CurrentStock, replayed.CurrentStock)
	assert.True(t, s.AverageUnitCost.Equal(replayed.AverageUnitCost),
		"stored %s replayed %s", s.AverageUnitCost, replayed.AverageUnitCost)
	assert.NoError(t, Verify(1, s, replayed))
}

func TestReplay_VirginLedger(t *testing.T) {
	r := Replay(nil, nil)
	assert.True(t, r.IsVirgin())
}

func TestReplay_AppliesMovementsInTimeOrder(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	lots := []Lot{
		{ID: "a", Timestamp: t0, Quantity: 10, TotalCost: dec("80"), UnitCost: dec("8")},
		{ID: "b", Timestamp: t0.Add(3 * time.Hour), Quantity: 10, TotalCost: dec("90"), UnitCost: dec("9")},
	}
	moves := []Movement{
		{At: t0.Add(2 * time.Hour), Delta: -13}, // over-issue drives stock to -3
		{At: t0.Add(time.Hour), Delta: 0},
	}

	r := Replay(lots, moves)
	// the second lot sees stock -3, clamps it, and ignores the stale average
	assert.Equal(t, 10, r.CurrentStock)
	assert.True(t, r.AverageUnitCost.Equal(dec("9")), "avg %s", r.AverageUnitCost)
}

func TestReplay_MovementAtLotInstantAppliesAfterLot(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	lots := []Lot{{ID: "a", Timestamp: t0, Quantity: 5, TotalCost: dec("50")}}
	moves := []Movement{{At: t0, Delta: -2}}

	r := Replay(lots, moves)
	assert.Equal(t, 3, r.CurrentStock)
	assert.True(t, r.AverageUnitCost.Equal(dec("10")))
}

func TestReplay_SequenceOverridesClock(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lots := []Lot{
		{ID: "a", Seq: 1, Timestamp: t0.Add(-time.Second), Quantity: 10, TotalCost: dec("100")},
		{ID: "b", Seq: 2, Timestamp: t0.Add(400 * time.Microsecond), Quantity: 5, TotalCost: dec("100")},
	}
	// written after lot b, but its stored time lost sub-millisecond precision
	moves := []Movement{{Seq: 3, At: t0, Delta: -5}}

	r := Replay(lots, moves)
	assert.Equal(t, 10, r.CurrentStock)
	assert.Equal(t, "13.3333333333333333", r.AverageUnitCost.String())

	stored := Snapshot{CurrentStock: 10, AverageUnitCost: dec("13.3333333333333333"), Lots: lots}
	assert.NoError(t, Verify(1, stored, r))
}

func TestReplay_SequencedMovementsSortBySeq(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lots := []Lot{
		{ID: "a", Seq: 1, Timestamp: t0, Quantity: 4, TotalCost: dec("40")},
		{ID: "b", Seq: 4, Timestamp: t0, Quantity: 4, TotalCost: dec("80")},
	}
	moves := []Movement{
		{Seq: 3, At: t0, Delta: -2},
		{Seq: 2, At: t0.Add(time.Hour), Delta: -2},
		{Seq: 5, At: t0.Add(-time.Hour), Delta: -1},
	}

	r := Replay(lots, moves)
	// lot b lands on empty stock, so its unit cost becomes the average
	assert.Equal(t, 3, r.CurrentStock)
	assert.True(t, r.AverageUnitCost.Equal(dec("20")), "avg %s", r.AverageUnitCost)
}

func TestVerify_DetectsDrift(t *testing.T) {
	replayed := Snapshot{CurrentStock: 15, AverageUnitCost: dec("11.6666666666666667")}

	stored := replayed
	stored.CurrentStock = 10
	err := Verify(7, stored, replayed)
	require.Error(t, err)
	assert.True(t, IsInvariantViolation(err))

	var iv *InvariantViolation
	require.True(t, errors.As(err, &iv))
	assert.Equal(t, 7, iv.ItemID)

	stored = replayed
	stored.AverageUnitCost = dec("11.67")
	assert.Error(t, Verify(7, stored, replayed))

	stored.AverageUnitCost = dec("11.66666666666666670001")
	assert.NoError(t, Verify(7, stored, replayed))

	assert.NoError(t, Verify(7, Virgin(), Replay(nil, nil)))
	assert.True(t, Tolerance().Equal(dec("0.000000001")))
}

func TestHistory_MostRecentFirst(t *testing.T) {
	e := testEngine()
	s := Virgin()
	for i := 1; i <= 3; i++ {
		var err error
		s, _, err = e.IngestLot(s, 3, dec("10"))
		require.NoError(t, err)
	}

	views := History(s.Lots)
	require.Len(t, views, 3)
	assert.Equal(t, "lot-3", views[0].ID)
	assert.Equal(t, "lot-1", views[2].ID)
	assert.Equal(t, "3.33", views[0].UnitCostDisplay)
	assert.Equal(t, "10.00", views[0].TotalCostDisplay)
	// source ledger order is untouched
	assert.Equal(t, "lot-1", s.Lots[0].ID)
}

func TestPersistenceErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewPersistenceError("save item", cause)
	assert.True(t, IsPersistence(err))
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, NewPersistenceError("noop", nil))
}
