package pnl

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/vire-recon/internal/interfaces"
	"github.com/bobmcallan/vire-recon/internal/models"
)

// EquityStrategy values instruments quoted per unit. It is also the fallback.
type EquityStrategy struct{}

func (EquityStrategy) Name() string { return "equity" }

func (EquityStrategy) Supports(asset models.AssetType) bool {
	return asset == "" || asset.IsEquity()
}

func (EquityStrategy) UnitValue(price decimal.Decimal, _ models.InstrumentTerms) decimal.Decimal {
	return price
}

func (EquityStrategy) Validate(models.Transaction) error { return nil }

// OptionStrategy values contracts at premium × multiplier.
type OptionStrategy struct{}

func (OptionStrategy) Name() string { return "option" }

func (OptionStrategy) Supports(asset models.AssetType) bool { return asset.IsOption() }

func (OptionStrategy) UnitValue(price decimal.Decimal, terms models.InstrumentTerms) decimal.Decimal {
	return terms.OptionUnitValue(price)
}

func (OptionStrategy) Validate(txn models.Transaction) error {
	if txn.Strike.IsZero() {
		return fmt.Errorf("option %s missing strike price", txn.Symbol)
	}
	if txn.Expiry.IsZero() {
		return fmt.Errorf("option %s missing expiry date", txn.Symbol)
	}
	if txn.Expiry.Before(txn.Date) {
		return fmt.Errorf("option %s expiry before transaction", txn.Symbol)
	}
	return nil
}

// BondStrategy values fixed income quoted per 100 of face.
type BondStrategy struct{}

func (BondStrategy) Name() string { return "bond" }

func (BondStrategy) Supports(asset models.AssetType) bool { return asset.IsFixedIncome() }

func (BondStrategy) UnitValue(price decimal.Decimal, terms models.InstrumentTerms) decimal.Decimal {
	return terms.PerHundredUnitValue(price)
}

func (BondStrategy) Validate(txn models.Transaction) error {
	if txn.Maturity.IsZero() {
		return fmt.Errorf("bond %s missing maturity date", txn.Symbol)
	}
	if txn.Maturity.Before(txn.Date) {
		return fmt.Errorf("bond %s maturity before transaction", txn.Symbol)
	}
	if txn.CouponRate.IsNegative() {
		return fmt.Errorf("bond %s negative coupon rate", txn.Symbol)
	}
	return nil
}

// StructuredStrategy values notes quoted per 100 of notional.
type StructuredStrategy struct{}

func (StructuredStrategy) Name() string { return "structured" }

func (StructuredStrategy) Supports(asset models.AssetType) bool { return asset.IsStructured() }

func (StructuredStrategy) UnitValue(price decimal.Decimal, terms models.InstrumentTerms) decimal.Decimal {
	return terms.PerHundredUnitValue(price)
}

func (StructuredStrategy) Validate(txn models.Transaction) error {
	if txn.Maturity.IsZero() {
		return fmt.Errorf("structured product %s missing maturity date", txn.Symbol)
	}
	return nil
}

// ValuationRegistry resolves a strategy by asset type, equity as fallback.
type ValuationRegistry struct {
	strategies []interfaces.ValuationStrategy
	fallback   interfaces.ValuationStrategy
}

// NewValuationRegistry returns a registry with the built-in strategies.
func NewValuationRegistry() *ValuationRegistry {
	return &ValuationRegistry{
		strategies: []interfaces.ValuationStrategy{
			OptionStrategy{},
			BondStrategy{},
			StructuredStrategy{},
			EquityStrategy{},
		},
		fallback: EquityStrategy{},
	}
}

// Register adds a strategy ahead of the built-ins.
func (r *ValuationRegistry) Register(s interfaces.ValuationStrategy) {
	r.strategies = append([]interfaces.ValuationStrategy{s}, r.strategies...)
}

// Resolve returns the first strategy supporting asset.
func (r *ValuationRegistry) Resolve(asset models.AssetType) interfaces.ValuationStrategy {
	for _, s := range r.strategies {
		if s.Supports(asset) {
			return s
		}
	}
	return r.fallback
}

// Ensure ValuationRegistry implements StrategyResolver
var _ interfaces.StrategyResolver = (*ValuationRegistry)(nil)
