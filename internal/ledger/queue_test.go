package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func buyLot(qty, price string, date time.Time) Lot {
	q, p := d(qty), d(price)
	return Lot{
		AcquisitionDate:     date,
		AcquisitionPrice:    p,
		AcquisitionQuantity: q,
		AcquisitionCost:     q.Mul(p),
		AcquisitionFXRate:   decimal.NewFromInt(1),
		RemainingQuantity:   q,
	}
}

func TestLotQueue_DisposeConsumesOldestFirst(t *testing.T) {
	q := NewLotQueue("AAPL")
	q.Add(buyLot("100", "150", day(2024, 1, 10)))
	q.Add(buyLot("50", "160", day(2024, 2, 10)))

	disp, err := q.Dispose(d("120"), d("170"), day(2024, 3, 1), d("1"), false)
	require.NoError(t, err)

	require.Len(t, disp.Disposals, 2)
	assert.Equal(t, 0, disp.Disposals[0].LotIndex)
	assert.True(t, disp.Disposals[0].Quantity.Equal(d("100")))
	assert.Equal(t, 1, disp.Disposals[1].LotIndex)
	assert.True(t, disp.Disposals[1].Quantity.Equal(d("20")))

	// 100 × (170 − 150) + 20 × (170 − 160)
	assert.True(t, disp.RealizedPnL.Equal(d("2200")), "realized = %s", disp.RealizedPnL)
	assert.True(t, q.RealizedPnL().Equal(d("2200")))
	assert.True(t, q.TotalQuantity().Equal(d("30")))
	assert.Equal(t, 1, q.ActiveCount())
	assert.Equal(t, 2, q.Len(), "depleted lots stay in the arena")
}

func TestLotQueue_RealizedIsExactSumOverLots(t *testing.T) {
	q := NewLotQueue("MSFT")
	q.Add(buyLot("3", "101.17", day(2023, 5, 1)))
	q.Add(buyLot("7", "99.03", day(2023, 6, 1)))
	q.Add(buyLot("11", "104.59", day(2023, 7, 1)))

	disp, err := q.Dispose(d("15"), d("110.01"), day(2024, 1, 5), d("1"), false)
	require.NoError(t, err)

	want := d("3").Mul(d("110.01").Sub(d("101.17"))).
		Add(d("7").Mul(d("110.01").Sub(d("99.03")))).
		Add(d("5").Mul(d("110.01").Sub(d("104.59"))))
	assert.True(t, disp.RealizedPnL.Equal(want), "got %s want %s", disp.RealizedPnL, want)
}

func TestLotQueue_RemainingSumInvariant(t *testing.T) {
	q := NewLotQueue("VAS")
	bought := decimal.Zero
	disposed := decimal.Zero

	steps := []struct {
		buy  string
		sell string
	}{
		{buy: "10"}, {buy: "25"}, {sell: "12"}, {buy: "5"}, {sell: "20"}, {sell: "3"}, {buy: "40"}, {sell: "41"},
	}
	for i, s := range steps {
		date := day(2024, 1, 1).AddDate(0, 0, i)
		if s.buy != "" {
			q.Add(buyLot(s.buy, "10", date))
			bought = bought.Add(d(s.buy))
		} else {
			disp, err := q.Dispose(d(s.sell), d("12"), date, d("1"), false)
			require.NoError(t, err)
			disposed = disposed.Add(disp.Filled)
		}

		sum := decimal.Zero
		for _, lot := range q.Lots() {
			sum = sum.Add(lot.RemainingQuantity)
			assert.True(t, lot.RemainingQuantity.LessThanOrEqual(lot.AcquisitionQuantity))
		}
		assert.True(t, sum.Equal(bought.Sub(disposed)), "step %d: %s != %s", i, sum, bought.Sub(disposed))
		assert.True(t, q.TotalQuantity().Equal(sum))
	}
}

func TestLotQueue_LenientOversellDisposesAvailable(t *testing.T) {
	q := NewLotQueue("CBA")
	q.Add(buyLot("10", "100", day(2024, 1, 1)))

	disp, err := q.Dispose(d("15"), d("110"), day(2024, 2, 1), d("1"), false)
	require.NoError(t, err)

	assert.True(t, disp.Filled.Equal(d("10")))
	assert.True(t, disp.Unfilled.Equal(d("5")))
	assert.True(t, disp.Oversold())
	assert.True(t, disp.RealizedPnL.Equal(d("100")))
	assert.True(t, q.TotalQuantity().IsZero())
}

func TestLotQueue_StrictOversellMutatesNothing(t *testing.T) {
	q := NewLotQueue("CBA")
	q.Add(buyLot("10", "100", day(2024, 1, 1)))

	_, err := q.Dispose(d("15"), d("110"), day(2024, 2, 1), d("1"), true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientQuantity))

	assert.True(t, q.TotalQuantity().Equal(d("10")))
	assert.True(t, q.RealizedPnL().IsZero())
	assert.Empty(t, q.Disposals())
}

func TestLotQueue_DisposeUsesAcquisitionFX(t *testing.T) {
	q := NewLotQueue("SAP")
	lot := buyLot("10", "100", day(2024, 1, 1))
	lot.AcquisitionFXRate = d("1.10")
	q.Add(lot)

	disp, err := q.Dispose(d("10"), d("120"), day(2024, 6, 1), d("1.20"), false)
	require.NoError(t, err)

	// proceeds 10 × 120 × 1.20 = 1440, cost 1000 × 1.10 = 1100
	assert.True(t, disp.Proceeds.Equal(d("1440")))
	assert.True(t, disp.Cost.Equal(d("1100")))
	assert.True(t, disp.RealizedPnL.Equal(d("340")))
}

func TestLotQueue_UnrealizedExcludesDepleted(t *testing.T) {
	q := NewLotQueue("AAPL")
	q.Add(buyLot("100", "150", day(2024, 1, 10)))
	q.Add(buyLot("50", "160", day(2024, 2, 10)))
	_, err := q.Dispose(d("75"), d("170"), day(2024, 3, 1), d("1"), false)
	require.NoError(t, err)

	// 25 × (175 − 150) + 50 × (175 − 160)
	assert.True(t, q.UnrealizedPnL(d("175"), d("1")).Equal(d("1375")))
}

func TestLotQueue_SplitTenForOne(t *testing.T) {
	q := NewLotQueue("NVDA")
	q.Add(buyLot("1", "1000", day(2024, 1, 1)))

	ratio, err := q.ApplySplit(d("9"))
	require.NoError(t, err)
	assert.True(t, ratio.Equal(d("10")))

	lot, err := q.Lot(0)
	require.NoError(t, err)
	assert.True(t, lot.RemainingQuantity.Equal(d("10")))
	assert.True(t, lot.AcquisitionQuantity.Equal(d("10")))
	assert.True(t, lot.AcquisitionPrice.Equal(d("100")))
	assert.True(t, lot.AcquisitionCost.Equal(d("1000")))
	assert.True(t, lot.RemainingCostBasis().Equal(d("1000")))
}

func TestLotQueue_SplitAfterPartialDisposal(t *testing.T) {
	q := NewLotQueue("TSLA")
	q.Add(buyLot("10", "300", day(2024, 1, 1)))
	q.Add(buyLot("10", "200", day(2024, 2, 1)))
	_, err := q.Dispose(d("15"), d("250"), day(2024, 3, 1), d("1"), false)
	require.NoError(t, err)

	costBefore := q.TotalCostBasis()

	// 5 held, 10 new shares → 3-for-1
	ratio, err := q.ApplySplit(d("10"))
	require.NoError(t, err)
	assert.True(t, ratio.Equal(d("3")))

	assert.True(t, q.TotalQuantity().Equal(d("15")))
	assert.True(t, q.TotalCostBasis().Equal(costBefore))

	first, _ := q.Lot(0)
	assert.True(t, first.AcquisitionQuantity.Equal(d("10")), "depleted lots are not rescaled")
}

func TestLotQueue_SplitWithNothingHeldIsIgnored(t *testing.T) {
	q := NewLotQueue("GME")
	q.Add(buyLot("5", "20", day(2024, 1, 1)))
	q.DisposeAll(d("25"), day(2024, 2, 1), d("1"))

	ratio, err := q.ApplySplit(d("15"))
	require.NoError(t, err)
	assert.True(t, ratio.IsZero())

	lot, _ := q.Lot(0)
	assert.True(t, lot.AcquisitionPrice.Equal(d("20")))
}

func TestLotQueue_ReverseSplitRatio(t *testing.T) {
	q := NewLotQueue("XYZ")
	q.Add(buyLot("100", "1", day(2024, 1, 1)))

	require.NoError(t, q.ApplyRatio(d("0.1")))

	lot, _ := q.Lot(0)
	assert.True(t, lot.RemainingQuantity.Equal(d("10")))
	assert.True(t, lot.AcquisitionPrice.Equal(d("10")))
	assert.True(t, lot.RemainingCostBasis().Equal(d("100")))

	err := q.ApplyRatio(decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidRatio)
}

func TestLotQueue_DeterministicLotIDs(t *testing.T) {
	a := NewLotQueue("AAPL")
	b := NewLotQueue("AAPL")
	la := a.Add(buyLot("1", "1", day(2024, 1, 1)))
	lb := b.Add(buyLot("2", "2", day(2024, 1, 2)))
	assert.Equal(t, la.ID, lb.ID, "same symbol and index give the same ID")

	lc := a.Add(buyLot("1", "1", day(2024, 1, 3)))
	assert.NotEqual(t, la.ID, lc.ID)

	other := NewLotQueue("MSFT").Add(buyLot("1", "1", day(2024, 1, 1)))
	assert.NotEqual(t, la.ID, other.ID)
}

func TestLotQueue_DisposalLogIsAppendOnly(t *testing.T) {
	q := NewLotQueue("AAPL")
	q.Add(buyLot("10", "100", day(2024, 1, 1)))
	_, _ = q.Dispose(d("4"), d("110"), day(2024, 2, 1), d("1"), false)

	log := q.Disposals()
	require.Len(t, log, 1)
	log[0].Quantity = d("999")

	_, _ = q.Dispose(d("2"), d("120"), day(2024, 3, 1), d("1"), false)
	after := q.Disposals()
	require.Len(t, after, 2)
	assert.True(t, after[0].Quantity.Equal(d("4")), "returned log is a copy")
	assert.True(t, after[1].RealizedPnL.Equal(d("40")))
}
