// Package models defines data structures for vire-recon
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType categorises a portfolio transaction.
type TransactionType string

const (
	TxDeposit          TransactionType = "deposit"
	TxWithdrawal       TransactionType = "withdrawal"
	TxBuy              TransactionType = "buy"
	TxSell             TransactionType = "sell"
	TxDividend         TransactionType = "dividend"
	TxInterest         TransactionType = "interest"
	TxCoupon           TransactionType = "coupon"
	TxStockSplit       TransactionType = "stock_split"
	TxReverseSplit     TransactionType = "reverse_split"
	TxSpinOff          TransactionType = "spin_off"
	TxMerger           TransactionType = "merger"
	TxOptionBuy        TransactionType = "option_buy"
	TxOptionSell       TransactionType = "option_sell"
	TxOptionExercise   TransactionType = "option_exercise"
	TxOptionAssignment TransactionType = "option_assignment"
	TxOptionExpiry     TransactionType = "option_expiry"
	TxFee              TransactionType = "fee"
	TxCommission       TransactionType = "commission"
	TxWithholdingTax   TransactionType = "withholding_tax"
	TxTransferIn       TransactionType = "transfer_in"
	TxTransferOut      TransactionType = "transfer_out"
	TxFXTrade          TransactionType = "fx_trade"
)

var validTransactionTypes = map[TransactionType]bool{
	TxDeposit: true, TxWithdrawal: true, TxBuy: true, TxSell: true,
	TxDividend: true, TxInterest: true, TxCoupon: true,
	TxStockSplit: true, TxReverseSplit: true, TxSpinOff: true, TxMerger: true,
	TxOptionBuy: true, TxOptionSell: true, TxOptionExercise: true,
	TxOptionAssignment: true, TxOptionExpiry: true,
	TxFee: true, TxCommission: true, TxWithholdingTax: true,
	TxTransferIn: true, TxTransferOut: true, TxFXTrade: true,
}

// ParseTransactionType parses a snake_case type name, case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !validTransactionTypes[t] {
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
	return t, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TransactionType) UnmarshalText(text []byte) error {
	parsed, err := ParseTransactionType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IsBuyType returns true for transactions that add inventory.
func (t TransactionType) IsBuyType() bool {
	switch t {
	case TxBuy, TxOptionBuy, TxDeposit, TxTransferIn:
		return true
	}
	return false
}

// IsSellType returns true for transactions that remove inventory.
func (t TransactionType) IsSellType() bool {
	switch t {
	case TxSell, TxOptionSell, TxWithdrawal, TxTransferOut:
		return true
	}
	return false
}

// IsIncome returns true for dividend, interest and coupon.
func (t TransactionType) IsIncome() bool {
	switch t {
	case TxDividend, TxInterest, TxCoupon:
		return true
	}
	return false
}

// IsExpense returns true for fee, commission and withholding tax.
func (t TransactionType) IsExpense() bool {
	switch t {
	case TxFee, TxCommission, TxWithholdingTax:
		return true
	}
	return false
}

// IsExternalFlow returns true for investor deposits and withdrawals.
func (t TransactionType) IsExternalFlow() bool {
	return t == TxDeposit || t == TxWithdrawal
}

// AssetType categorises the instrument a transaction refers to.
type AssetType string

const (
	AssetCash           AssetType = "cash"
	AssetEquity         AssetType = "equity"
	AssetETF            AssetType = "etf"
	AssetMutualFund     AssetType = "mutual_fund"
	AssetADR            AssetType = "adr"
	AssetGovernmentBond AssetType = "government_bond"
	AssetCorporateBond  AssetType = "corporate_bond"
	AssetMunicipalBond  AssetType = "municipal_bond"
	AssetTreasuryBill   AssetType = "treasury_bill"
	AssetZeroCouponBond AssetType = "zero_coupon_bond"
	AssetCallOption     AssetType = "call_option"
	AssetPutOption      AssetType = "put_option"
	AssetStructuredNote AssetType = "structured_note"
	AssetBarrierOption  AssetType = "barrier_option"
	AssetAutocallable   AssetType = "autocallable"
	AssetFuture         AssetType = "future"
	AssetForward        AssetType = "forward"
	AssetSwap           AssetType = "swap"
)

var validAssetTypes = map[AssetType]bool{
	AssetCash: true, AssetEquity: true, AssetETF: true, AssetMutualFund: true, AssetADR: true,
	AssetGovernmentBond: true, AssetCorporateBond: true, AssetMunicipalBond: true,
	AssetTreasuryBill: true, AssetZeroCouponBond: true,
	AssetCallOption: true, AssetPutOption: true,
	AssetStructuredNote: true, AssetBarrierOption: true, AssetAutocallable: true,
	AssetFuture: true, AssetForward: true, AssetSwap: true,
}

// ParseAssetType parses a snake_case asset type name, case-insensitively.
func ParseAssetType(s string) (AssetType, error) {
	a := AssetType(strings.ToLower(strings.TrimSpace(s)))
	if !validAssetTypes[a] {
		return "", fmt.Errorf("unknown asset type %q", s)
	}
	return a, nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty value leaves
// the asset type unset.
func (a *AssetType) UnmarshalText(text []byte) error {
	if strings.TrimSpace(string(text)) == "" {
		*a = ""
		return nil
	}
	parsed, err := ParseAssetType(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a AssetType) IsEquity() bool {
	switch a {
	case AssetEquity, AssetETF, AssetMutualFund, AssetADR:
		return true
	}
	return false
}

func (a AssetType) IsFixedIncome() bool {
	switch a {
	case AssetGovernmentBond, AssetCorporateBond, AssetMunicipalBond, AssetTreasuryBill, AssetZeroCouponBond:
		return true
	}
	return false
}

func (a AssetType) IsOption() bool {
	return a == AssetCallOption || a == AssetPutOption
}

func (a AssetType) IsStructured() bool {
	switch a {
	case AssetStructuredNote, AssetBarrierOption, AssetAutocallable:
		return true
	}
	return false
}

// FeeCategory is the expense bucket a fee-like transaction is booked to.
type FeeCategory string

const (
	FeeWithholdingTax  FeeCategory = "withholding_tax"
	FeeInterestExpense FeeCategory = "interest_expense"
	FeeOther           FeeCategory = "other_fees"
)

// Transaction is one normalised portfolio event. Treat as immutable once decoded.
type Transaction struct {
	ID             string          `json:"id"`
	Date           time.Time       `json:"date"`
	SettlementDate time.Time       `json:"settlement_date"`
	Type           TransactionType `json:"type"`
	AssetType      AssetType       `json:"asset_type"`
	Symbol         string          `json:"symbol"`
	Quantity       decimal.Decimal `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency"`
	Description    string          `json:"description,omitempty"`

	Commission decimal.Decimal `json:"commission"`
	Fees       decimal.Decimal `json:"fees"`
	Taxes      decimal.Decimal `json:"taxes"`
	FXRate     decimal.Decimal `json:"fx_rate"` // rate to base currency, 1 when absent

	// FeeType is the structured expense category when the source carries one.
	FeeType FeeCategory `json:"fee_type,omitempty"`

	// Explicit amounts from the source override the derived ones.
	Gross *decimal.Decimal `json:"gross_amount,omitempty"`
	Net   *decimal.Decimal `json:"net_amount,omitempty"`

	InstrumentTerms
}

// GrossAmount is |quantity × unit price|, plus accrued interest for fixed income.
func (t Transaction) GrossAmount() decimal.Decimal {
	if t.Gross != nil {
		return *t.Gross
	}
	gross := t.Quantity.Mul(t.UnitPrice()).Abs()
	if t.AssetType.IsFixedIncome() {
		gross = gross.Add(t.AccruedInterest)
	}
	return gross
}

// UnitPrice converts the quoted price to a per-unit value.
func (t Transaction) UnitPrice() decimal.Decimal {
	return UnitValue(t.AssetType, t.Price, t.InstrumentTerms)
}

// TotalFees sums commission, fees and taxes.
func (t Transaction) TotalFees() decimal.Decimal {
	return t.Commission.Add(t.Fees).Add(t.Taxes)
}

// NetAmount adds fees for buy-type transactions and subtracts them otherwise.
func (t Transaction) NetAmount() decimal.Decimal {
	if t.Net != nil {
		return *t.Net
	}
	if t.Type.IsBuyType() {
		return t.GrossAmount().Add(t.TotalFees())
	}
	return t.GrossAmount().Sub(t.TotalFees())
}

// Rate returns the FX rate to base currency, 1 when unset.
func (t Transaction) Rate() decimal.Decimal {
	if t.FXRate.IsZero() {
		return decimal.NewFromInt(1)
	}
	return t.FXRate
}

// BaseAmount is the net amount converted to base currency.
func (t Transaction) BaseAmount() decimal.Decimal {
	return t.NetAmount().Mul(t.Rate())
}

// CashFlow returns the investor-signed flow: money paid in is negative,
// money received is positive. Non-cash events return zero.
func (t Transaction) CashFlow() decimal.Decimal {
	switch t.Type {
	case TxDeposit, TxBuy, TxOptionBuy:
		return t.NetAmount().Neg()
	case TxWithdrawal, TxSell, TxOptionSell:
		return t.NetAmount()
	}
	if t.Type.IsIncome() {
		return t.NetAmount()
	}
	return decimal.Zero
}

func (t Transaction) String() string {
	return fmt.Sprintf("%s | %s | %s | %s @ %s %s",
		t.Date.Format(DateLayout), t.Type, t.Symbol, t.Quantity, t.Price, t.Currency)
}

// UnmarshalJSON accepts date-only strings as well as RFC 3339 timestamps.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type alias Transaction
	aux := struct {
		*alias
		Date           string `json:"date"`
		SettlementDate string `json:"settlement_date"`
		Expiry         string `json:"expiry"`
		Maturity       string `json:"maturity"`
	}{alias: (*alias)(t)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if t.Date, err = ParseDate(aux.Date); err != nil {
		return fmt.Errorf("transaction %s: date: %w", t.ID, err)
	}
	if t.SettlementDate, err = ParseDate(aux.SettlementDate); err != nil {
		return fmt.Errorf("transaction %s: settlement_date: %w", t.ID, err)
	}
	if t.Expiry, err = ParseDate(aux.Expiry); err != nil {
		return fmt.Errorf("transaction %s: expiry: %w", t.ID, err)
	}
	if t.Maturity, err = ParseDate(aux.Maturity); err != nil {
		return fmt.Errorf("transaction %s: maturity: %w", t.ID, err)
	}
	return nil
}

// DateLayout is the date-only layout used in inputs and reports.
const DateLayout = "2006-01-02"

// ParseDate parses a date-only or RFC 3339 string. Empty input yields the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.Parse(DateLayout, s); err == nil {
		return d, nil
	}
	d, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return d, nil
}
