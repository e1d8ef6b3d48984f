package models

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Portfolio-level metric names.
const (
	MetricXIRR                 = "xirr"
	MetricIRR                  = "irr" // alias of xirr
	MetricTWR                  = "twr"
	MetricTWRAnnualized        = "twr_annualized"
	MetricRealizedPnL          = "realized_pnl"
	MetricRealizedCapitalGains = "realized_capital_gains"
	MetricUnrealizedPnL        = "unrealized_pnl"
	MetricTotalPnL             = "total_pnl"
	MetricMarketValue          = "market_value"
	MetricCostBasis            = "cost_basis"
	MetricDividendIncome       = "dividend_income"
	MetricInterestIncome       = "interest_income"
	MetricNetIncome            = "net_income"
	MetricDataQuality          = "data_quality"
)

// Position-level metric names. cost_basis, market_value, unrealized_pnl,
// realized_pnl and total_pnl share their portfolio-level spelling.
const (
	MetricQuantity = "quantity"
)

// PortfolioMetrics lists portfolio checks in the order they are run.
var PortfolioMetrics = []string{
	MetricXIRR,
	MetricTWR,
	MetricTWRAnnualized,
	MetricRealizedPnL,
	MetricRealizedCapitalGains,
	MetricUnrealizedPnL,
	MetricTotalPnL,
	MetricMarketValue,
	MetricCostBasis,
	MetricDividendIncome,
	MetricInterestIncome,
	MetricNetIncome,
}

// PositionMetrics lists position checks in the order they are run.
var PositionMetrics = []string{
	MetricQuantity,
	MetricCostBasis,
	MetricMarketValue,
	MetricUnrealizedPnL,
	MetricRealizedPnL,
	MetricTotalPnL,
}

// ExpectedValues are the figures reported by the PMS. Absent keys skip the check.
type ExpectedValues struct {
	Metrics   map[string]decimal.Decimal            `json:"metrics"`
	Positions map[string]map[string]decimal.Decimal `json:"positions,omitempty"`
}

// NewExpectedValues returns an empty set.
func NewExpectedValues() *ExpectedValues {
	return &ExpectedValues{
		Metrics:   make(map[string]decimal.Decimal),
		Positions: make(map[string]map[string]decimal.Decimal),
	}
}

// Metric returns the expected portfolio value. xirr falls back to irr.
func (e *ExpectedValues) Metric(name string) (decimal.Decimal, bool) {
	if e == nil {
		return decimal.Zero, false
	}
	if v, ok := e.Metrics[name]; ok {
		return v, true
	}
	if name == MetricXIRR {
		v, ok := e.Metrics[MetricIRR]
		return v, ok
	}
	return decimal.Zero, false
}

// Position returns the expected value of a position metric.
func (e *ExpectedValues) Position(symbol, name string) (decimal.Decimal, bool) {
	if e == nil {
		return decimal.Zero, false
	}
	v, ok := e.Positions[symbol][name]
	return v, ok
}

// SetPosition records an expected position value.
func (e *ExpectedValues) SetPosition(symbol, name string, v decimal.Decimal) {
	if e.Positions == nil {
		e.Positions = make(map[string]map[string]decimal.Decimal)
	}
	if e.Positions[symbol] == nil {
		e.Positions[symbol] = make(map[string]decimal.Decimal)
	}
	e.Positions[symbol][name] = v
}

// PositionSymbols returns symbols with expected position values, sorted.
func (e *ExpectedValues) PositionSymbols() []string {
	if e == nil {
		return nil
	}
	syms := make([]string, 0, len(e.Positions))
	for s := range e.Positions {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms
}

// Merge overlays other onto e; values in other win.
func (e *ExpectedValues) Merge(other *ExpectedValues) {
	if other == nil {
		return
	}
	if e.Metrics == nil {
		e.Metrics = make(map[string]decimal.Decimal)
	}
	for k, v := range other.Metrics {
		e.Metrics[k] = v
	}
	for sym, fields := range other.Positions {
		for k, v := range fields {
			e.SetPosition(sym, k, v)
		}
	}
}

// UnmarshalJSON accepts the canonical {"metrics":{...},"positions":{...}}
// shape or a flat object where "positions" sits beside the metrics.
func (e *ExpectedValues) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := NewExpectedValues()

	if m, ok := raw["metrics"]; ok {
		if err := json.Unmarshal(m, &out.Metrics); err != nil {
			return fmt.Errorf("expected metrics: %w", err)
		}
		// "metrics": null leaves the map nil
		if out.Metrics == nil {
			out.Metrics = make(map[string]decimal.Decimal)
		}
	}
	if p, ok := raw["positions"]; ok {
		if err := json.Unmarshal(p, &out.Positions); err != nil {
			return fmt.Errorf("expected positions: %w", err)
		}
	}

	for k, v := range raw {
		if k == "metrics" || k == "positions" {
			continue
		}
		var d decimal.Decimal
		if err := json.Unmarshal(v, &d); err != nil {
			return fmt.Errorf("expected metric %s: %w", k, err)
		}
		out.Metrics[k] = d
	}

	*e = *out
	return nil
}
