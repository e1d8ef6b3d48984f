package models

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DefaultContractMultiplier is used for options without an explicit multiplier.
var DefaultContractMultiplier = hundred

// InstrumentTerms carries option and bond terms copied onto lots.
type InstrumentTerms struct {
	Strike          decimal.Decimal `json:"strike,omitzero"`
	Expiry          time.Time       `json:"expiry,omitzero"`
	Underlying      string          `json:"underlying,omitempty"`
	Multiplier      decimal.Decimal `json:"multiplier,omitzero"` // 100 when zero
	FaceValue       decimal.Decimal `json:"face_value,omitzero"` // face or notional per unit
	CouponRate      decimal.Decimal `json:"coupon_rate,omitzero"`
	Maturity        time.Time       `json:"maturity,omitzero"`
	AccruedInterest decimal.Decimal `json:"accrued_interest,omitzero"`
}

// ContractMultiplier returns the option multiplier, defaulting to 100.
func (t InstrumentTerms) ContractMultiplier() decimal.Decimal {
	if t.Multiplier.IsPositive() {
		return t.Multiplier
	}
	return DefaultContractMultiplier
}

// OptionUnitValue is a per-contract value: premium × multiplier.
func (t InstrumentTerms) OptionUnitValue(price decimal.Decimal) decimal.Decimal {
	return price.Mul(t.ContractMultiplier())
}

// PerHundredUnitValue converts a price quoted per 100 of face or notional.
// With a face value the quantity counts instruments, otherwise it counts
// face currency units.
func (t InstrumentTerms) PerHundredUnitValue(price decimal.Decimal) decimal.Decimal {
	if t.FaceValue.IsPositive() {
		return price.Mul(t.FaceValue).Div(hundred)
	}
	return price.Div(hundred)
}

// UnitValue applies the quote convention of the asset type. Equities and
// unknown types are quoted per unit.
func UnitValue(asset AssetType, price decimal.Decimal, terms InstrumentTerms) decimal.Decimal {
	switch {
	case asset.IsOption():
		return terms.OptionUnitValue(price)
	case asset.IsFixedIncome(), asset.IsStructured():
		return terms.PerHundredUnitValue(price)
	default:
		return price
	}
}
