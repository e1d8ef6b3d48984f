// Package ledger tracks FIFO acquisition lots per symbol.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/vire-recon/internal/models"
)

// longTermDays is the holding period after which a lot is long-term.
const longTermDays = 365

var lotNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("vire-recon/lot"))

// lotID derives a stable identifier from the symbol and arena index so that
// identical inputs produce identical lot IDs across runs.
func lotID(symbol string, index int) string {
	return uuid.NewSHA1(lotNamespace, []byte(fmt.Sprintf("%s#%d", symbol, index))).String()
}

// Lot is one acquisition event. Only RemainingQuantity changes on disposal;
// splits rescale quantity and price but never cost.
type Lot struct {
	ID                  string           `json:"lot_id"`
	Index               int              `json:"index"`
	Symbol              string           `json:"symbol"`
	AssetType           models.AssetType `json:"asset_type,omitempty"`
	AcquisitionDate     time.Time        `json:"acquisition_date"`
	AcquisitionPrice    decimal.Decimal  `json:"acquisition_price"`
	AcquisitionQuantity decimal.Decimal  `json:"acquisition_quantity"`
	AcquisitionCost     decimal.Decimal  `json:"acquisition_cost"` // includes allocated fees
	AcquisitionFXRate   decimal.Decimal  `json:"acquisition_fx_rate"`
	Currency            string           `json:"currency,omitempty"`
	AllocatedFees       decimal.Decimal  `json:"allocated_fees"`
	RemainingQuantity   decimal.Decimal  `json:"remaining_quantity"`
	TransactionID       string           `json:"transaction_id,omitempty"`

	Terms models.InstrumentTerms `json:"terms"`
}

// NewLotFromTransaction builds a lot from a buy-type transaction.
// Cost is the net amount, so buy-side fees are capitalised.
func NewLotFromTransaction(txn models.Transaction) Lot {
	lot := Lot{
		Symbol:              txn.Symbol,
		AssetType:           txn.AssetType,
		AcquisitionDate:     txn.Date,
		AcquisitionPrice:    txn.Price,
		AcquisitionQuantity: txn.Quantity,
		AcquisitionCost:     txn.NetAmount(),
		AcquisitionFXRate:   txn.Rate(),
		Currency:            txn.Currency,
		AllocatedFees:       txn.TotalFees(),
		RemainingQuantity:   txn.Quantity,
		TransactionID:       txn.ID,
	}
	if txn.AssetType.IsOption() {
		lot.Terms.Strike = txn.Strike
		lot.Terms.Expiry = txn.Expiry
		lot.Terms.Underlying = txn.Underlying
		lot.Terms.Multiplier = txn.Multiplier
	}
	if txn.AssetType.IsFixedIncome() || txn.AssetType.IsStructured() {
		lot.Terms.FaceValue = txn.FaceValue
		lot.Terms.CouponRate = txn.CouponRate
		lot.Terms.Maturity = txn.Maturity
	}
	return lot
}

// CostPerUnit is acquisition cost / acquisition quantity.
func (l *Lot) CostPerUnit() decimal.Decimal {
	if l.AcquisitionQuantity.IsZero() {
		return decimal.Zero
	}
	return l.AcquisitionCost.Div(l.AcquisitionQuantity)
}

// costOf returns the local-currency cost of q units as cost × q / quantity,
// keeping rounding to a single division.
func (l *Lot) costOf(q decimal.Decimal) decimal.Decimal {
	if l.AcquisitionQuantity.IsZero() {
		return decimal.Zero
	}
	return l.AcquisitionCost.Mul(q).Div(l.AcquisitionQuantity)
}

// RemainingCostBasis is the local-currency cost of the unsold units.
func (l *Lot) RemainingCostBasis() decimal.Decimal {
	return l.costOf(l.RemainingQuantity)
}

// RemainingBaseCost is RemainingCostBasis converted at the acquisition FX rate.
func (l *Lot) RemainingBaseCost() decimal.Decimal {
	return l.RemainingCostBasis().Mul(l.fxRate())
}

func (l *Lot) fxRate() decimal.Decimal {
	if l.AcquisitionFXRate.IsZero() {
		return decimal.NewFromInt(1)
	}
	return l.AcquisitionFXRate
}

// IsDepleted is true once nothing remains.
func (l *Lot) IsDepleted() bool {
	return !l.RemainingQuantity.IsPositive()
}

// HoldingPeriodDays counts calendar days from acquisition to asOf.
func (l *Lot) HoldingPeriodDays(asOf time.Time) int {
	return daysBetween(l.AcquisitionDate, asOf)
}

// IsLongTerm is true when held for more than a year.
func (l *Lot) IsLongTerm(asOf time.Time) bool {
	return l.HoldingPeriodDays(asOf) > longTermDays
}

// UnrealizedPnL values the remaining units at price and fx against their cost.
func (l *Lot) UnrealizedPnL(price, fx decimal.Decimal) decimal.Decimal {
	if l.IsDepleted() {
		return decimal.Zero
	}
	return l.RemainingQuantity.Mul(price).Mul(fx).Sub(l.RemainingBaseCost())
}

func (l *Lot) String() string {
	id := l.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("Lot(%s) %s: %s/%s @ %s",
		id, l.Symbol, l.RemainingQuantity, l.AcquisitionQuantity, l.AcquisitionPrice)
}

// LotDetail is the audit view of a lot as of a date.
type LotDetail struct {
	LotID               string          `json:"lot_id"`
	Index               int             `json:"index"`
	AcquisitionDate     time.Time       `json:"acquisition_date"`
	AcquisitionPrice    decimal.Decimal `json:"acquisition_price"`
	AcquisitionQuantity decimal.Decimal `json:"acquisition_quantity"`
	RemainingQuantity   decimal.Decimal `json:"remaining_quantity"`
	CostPerUnit         decimal.Decimal `json:"cost_per_unit"`
	RemainingCostBasis  decimal.Decimal `json:"remaining_cost_basis"`
	AcquisitionFXRate   decimal.Decimal `json:"acquisition_fx_rate"`
	HoldingPeriodDays   int             `json:"holding_period_days"`
	LongTerm            bool            `json:"long_term"`
	Depleted            bool            `json:"depleted"`
}

func (l *Lot) detail(asOf time.Time) LotDetail {
	return LotDetail{
		LotID:               l.ID,
		Index:               l.Index,
		AcquisitionDate:     l.AcquisitionDate,
		AcquisitionPrice:    l.AcquisitionPrice,
		AcquisitionQuantity: l.AcquisitionQuantity,
		RemainingQuantity:   l.RemainingQuantity,
		CostPerUnit:         l.CostPerUnit(),
		RemainingCostBasis:  l.RemainingCostBasis(),
		AcquisitionFXRate:   l.fxRate(),
		HoldingPeriodDays:   l.HoldingPeriodDays(asOf),
		LongTerm:            l.IsLongTerm(asOf),
		Depleted:            l.IsDepleted(),
	}
}

func daysBetween(from, to time.Time) int {
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}
