package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Disposal is one append-only entry in a queue's disposal log.
type Disposal struct {
	LotIndex         int             `json:"lot_index"`
	LotID            string          `json:"lot_id"`
	AcquisitionDate  time.Time       `json:"acquisition_date"`
	AcquisitionPrice decimal.Decimal `json:"acquisition_price"`
	Quantity         decimal.Decimal `json:"quantity_disposed"`
	Proceeds         decimal.Decimal `json:"proceeds"`
	Cost             decimal.Decimal `json:"cost"`
	RealizedPnL      decimal.Decimal `json:"realized_pnl"`
	DisposalDate     time.Time       `json:"disposal_date"`
	LongTerm         bool            `json:"long_term"`
}

// Disposition summarises one FIFO disposal request.
type Disposition struct {
	Symbol      string          `json:"symbol"`
	Requested   decimal.Decimal `json:"requested"`
	Filled      decimal.Decimal `json:"filled"`
	Unfilled    decimal.Decimal `json:"unfilled"` // lenient mode only
	Proceeds    decimal.Decimal `json:"proceeds"`
	Cost        decimal.Decimal `json:"cost"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Disposals   []Disposal      `json:"disposals"`
}

// Oversold is true when part of the request could not be filled.
func (d Disposition) Oversold() bool {
	return d.Unfilled.IsPositive()
}

// LotQueue is the oldest-first arena of lots for one symbol. Lots are
// addressed by index and never removed, so the disposal log stays valid.
type LotQueue struct {
	symbol    string
	lots      []Lot
	realized  decimal.Decimal
	disposals []Disposal
}

// NewLotQueue creates an empty queue.
func NewLotQueue(symbol string) *LotQueue {
	return &LotQueue{symbol: symbol}
}

// Symbol returns the queue's symbol.
func (q *LotQueue) Symbol() string { return q.symbol }

// Add appends lot to the tail, assigning its index and ID.
func (q *LotQueue) Add(lot Lot) Lot {
	lot.Symbol = q.symbol
	lot.Index = len(q.lots)
	lot.ID = lotID(q.symbol, lot.Index)
	if lot.AcquisitionFXRate.IsZero() {
		lot.AcquisitionFXRate = decimal.NewFromInt(1)
	}
	q.lots = append(q.lots, lot)
	return lot
}

// Len returns the arena size, depleted lots included.
func (q *LotQueue) Len() int { return len(q.lots) }

// Lot returns a copy of the lot at index i.
func (q *LotQueue) Lot(i int) (Lot, error) {
	if i < 0 || i >= len(q.lots) {
		return Lot{}, fmt.Errorf("lot index %d out of range for %s", i, q.symbol)
	}
	return q.lots[i], nil
}

// Lots returns a copy of the whole arena in acquisition order.
func (q *LotQueue) Lots() []Lot {
	out := make([]Lot, len(q.lots))
	copy(out, q.lots)
	return out
}

// ActiveLots returns copies of the undepleted lots in acquisition order.
func (q *LotQueue) ActiveLots() []Lot {
	var out []Lot
	for i := range q.lots {
		if !q.lots[i].IsDepleted() {
			out = append(out, q.lots[i])
		}
	}
	return out
}

// TotalQuantity sums remaining quantity across undepleted lots.
func (q *LotQueue) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for i := range q.lots {
		if !q.lots[i].IsDepleted() {
			total = total.Add(q.lots[i].RemainingQuantity)
		}
	}
	return total
}

// TotalCostBasis sums the local-currency cost of the remaining units.
func (q *LotQueue) TotalCostBasis() decimal.Decimal {
	total := decimal.Zero
	for i := range q.lots {
		if !q.lots[i].IsDepleted() {
			total = total.Add(q.lots[i].RemainingCostBasis())
		}
	}
	return total
}

// TotalBaseCost sums the base-currency cost of the remaining units.
func (q *LotQueue) TotalBaseCost() decimal.Decimal {
	total := decimal.Zero
	for i := range q.lots {
		if !q.lots[i].IsDepleted() {
			total = total.Add(q.lots[i].RemainingBaseCost())
		}
	}
	return total
}

// AverageCost is the weighted local-currency cost per remaining unit.
func (q *LotQueue) AverageCost() decimal.Decimal {
	qty := q.TotalQuantity()
	if qty.IsZero() {
		return decimal.Zero
	}
	return q.TotalCostBasis().Div(qty)
}

// ActiveCount returns the number of undepleted lots.
func (q *LotQueue) ActiveCount() int {
	n := 0
	for i := range q.lots {
		if !q.lots[i].IsDepleted() {
			n++
		}
	}
	return n
}

// RealizedPnL is the cumulative realized P&L of every disposal.
func (q *LotQueue) RealizedPnL() decimal.Decimal { return q.realized }

// Disposals returns a copy of the disposal log.
func (q *LotQueue) Disposals() []Disposal {
	out := make([]Disposal, len(q.disposals))
	copy(out, q.disposals)
	return out
}

// Dispose consumes quantity from the head of the queue at price and fx.
// When the request exceeds the quantity held, strict mode returns
// ErrInsufficientQuantity without mutating anything; otherwise what is held
// is disposed and the rest is reported as Unfilled.
func (q *LotQueue) Dispose(quantity, price decimal.Decimal, date time.Time, fx decimal.Decimal, strict bool) (Disposition, error) {
	if fx.IsZero() {
		fx = decimal.NewFromInt(1)
	}
	d := Disposition{
		Symbol:      q.symbol,
		Requested:   quantity,
		Filled:      decimal.Zero,
		Unfilled:    decimal.Zero,
		Proceeds:    decimal.Zero,
		Cost:        decimal.Zero,
		RealizedPnL: decimal.Zero,
	}
	if !quantity.IsPositive() {
		return d, nil
	}

	held := q.TotalQuantity()
	if quantity.GreaterThan(held) && strict {
		return d, fmt.Errorf("dispose %s of %s, holding %s: %w", quantity, q.symbol, held, ErrInsufficientQuantity)
	}

	left := quantity
	for i := range q.lots {
		if !left.IsPositive() {
			break
		}
		lot := &q.lots[i]
		if lot.IsDepleted() {
			continue
		}

		take := decimal.Min(lot.RemainingQuantity, left)
		proceeds := take.Mul(price).Mul(fx)
		cost := lot.costOf(take).Mul(lot.fxRate())
		pnl := proceeds.Sub(cost)

		entry := Disposal{
			LotIndex:         lot.Index,
			LotID:            lot.ID,
			AcquisitionDate:  lot.AcquisitionDate,
			AcquisitionPrice: lot.AcquisitionPrice,
			Quantity:         take,
			Proceeds:         proceeds,
			Cost:             cost,
			RealizedPnL:      pnl,
			DisposalDate:     date,
			LongTerm:         lot.IsLongTerm(date),
		}

		lot.RemainingQuantity = lot.RemainingQuantity.Sub(take)
		left = left.Sub(take)

		q.disposals = append(q.disposals, entry)
		d.Disposals = append(d.Disposals, entry)
		d.Filled = d.Filled.Add(take)
		d.Proceeds = d.Proceeds.Add(proceeds)
		d.Cost = d.Cost.Add(cost)
		d.RealizedPnL = d.RealizedPnL.Add(pnl)
	}

	d.Unfilled = left
	q.realized = q.realized.Add(d.RealizedPnL)
	return d, nil
}

// DisposeAll consumes every remaining unit at price.
func (q *LotQueue) DisposeAll(price decimal.Decimal, date time.Time, fx decimal.Decimal) Disposition {
	d, _ := q.Dispose(q.TotalQuantity(), price, date, fx, false)
	return d
}

// UnrealizedPnL sums unrealized P&L over the undepleted lots.
func (q *LotQueue) UnrealizedPnL(price, fx decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for i := range q.lots {
		total = total.Add(q.lots[i].UnrealizedPnL(price, fx))
	}
	return total
}

// ApplyRatio scales every undepleted lot's quantities by ratio and divides
// its acquisition price by ratio. Acquisition cost is left untouched.
func (q *LotQueue) ApplyRatio(ratio decimal.Decimal) error {
	if !ratio.IsPositive() {
		return fmt.Errorf("apply ratio %s to %s: %w", ratio, q.symbol, ErrInvalidRatio)
	}
	for i := range q.lots {
		lot := &q.lots[i]
		if lot.IsDepleted() {
			continue
		}
		lot.RemainingQuantity = lot.RemainingQuantity.Mul(ratio)
		lot.AcquisitionQuantity = lot.AcquisitionQuantity.Mul(ratio)
		lot.AcquisitionPrice = lot.AcquisitionPrice.Div(ratio)
	}
	return nil
}

// ApplySplit applies a split reported as newShares received. The ratio is
// (held + newShares) / held. A queue holding nothing ignores the split and
// returns a zero ratio.
func (q *LotQueue) ApplySplit(newShares decimal.Decimal) (decimal.Decimal, error) {
	held := q.TotalQuantity()
	if held.IsZero() {
		return decimal.Zero, nil
	}
	ratio := held.Add(newShares).Div(held)
	if err := q.ApplyRatio(ratio); err != nil {
		return decimal.Zero, err
	}
	return ratio, nil
}

// LotDetails returns the audit view of every lot, depleted ones included.
func (q *LotQueue) LotDetails(asOf time.Time) []LotDetail {
	out := make([]LotDetail, 0, len(q.lots))
	for i := range q.lots {
		out = append(out, q.lots[i].detail(asOf))
	}
	return out
}

func (q *LotQueue) String() string {
	return fmt.Sprintf("LotQueue(%s): %d lots, %s units", q.symbol, q.ActiveCount(), q.TotalQuantity())
}
