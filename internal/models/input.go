package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RunInput is the envelope handed over by the ingestion collaborator.
type RunInput struct {
	PortfolioID   string                     `json:"portfolio_id"`
	ValuationDate time.Time                  `json:"valuation_date"`
	BaseCurrency  string                     `json:"base_currency"`
	Transactions  []Transaction              `json:"transactions"`
	Prices        map[string]decimal.Decimal `json:"prices"`
	FXRates       map[string]decimal.Decimal `json:"fx_rates,omitempty"` // symbol → rate to base
	DailyValues   []DailyValue               `json:"daily_values,omitempty"`
	Expected      *ExpectedValues            `json:"expected,omitempty"`
}

// UnmarshalJSON accepts a date-only valuation date and daily value dates.
func (in *RunInput) UnmarshalJSON(data []byte) error {
	type dailyValue struct {
		Date     string  `json:"date"`
		Value    float64 `json:"value"`
		CashFlow float64 `json:"cash_flow"`
	}
	type alias RunInput
	aux := struct {
		*alias
		ValuationDate string       `json:"valuation_date"`
		DailyValues   []dailyValue `json:"daily_values"`
	}{alias: (*alias)(in)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if in.ValuationDate, err = ParseDate(aux.ValuationDate); err != nil {
		return fmt.Errorf("valuation_date: %w", err)
	}

	in.DailyValues = nil
	for i, dv := range aux.DailyValues {
		d, err := ParseDate(dv.Date)
		if err != nil {
			return fmt.Errorf("daily_values[%d]: %w", i, err)
		}
		in.DailyValues = append(in.DailyValues, DailyValue{Date: d, Value: dv.Value, CashFlow: dv.CashFlow})
	}
	return nil
}

// AsOf returns the valuation date, falling back to the latest transaction date.
func (in *RunInput) AsOf() time.Time {
	if !in.ValuationDate.IsZero() {
		return in.ValuationDate
	}
	var latest time.Time
	for _, t := range in.Transactions {
		if t.Date.After(latest) {
			latest = t.Date
		}
	}
	return latest
}
