package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashFlow is one dated investor-signed amount (negative = paid in).
type CashFlow struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// DailyValue is a portfolio valuation with the external flow booked that day.
// Value is measured after the flow.
type DailyValue struct {
	Date     time.Time `json:"date"`
	Value    float64   `json:"value"`
	CashFlow float64   `json:"cash_flow"` // contribution into the portfolio (positive = money in)
}

// CashFlowMethod records which flows fed the money-weighted solver.
type CashFlowMethod string

const (
	// FlowsExternal uses deposits and withdrawals with market value plus cash as terminal.
	FlowsExternal CashFlowMethod = "external"
	// FlowsSecurity uses buys, sells, income and fees with market value as terminal.
	FlowsSecurity CashFlowMethod = "security"
)

// CashFlowSummary totals investor-signed flows by direction.
type CashFlowSummary struct {
	Inflows          decimal.Decimal `json:"total_inflows"`
	Outflows         decimal.Decimal `json:"total_outflows"`
	Income           decimal.Decimal `json:"total_income"`
	TransactionCount int             `json:"transaction_count"`
}

// Net is inflows plus income less outflows.
func (s CashFlowSummary) Net() decimal.Decimal {
	return s.Inflows.Add(s.Income).Sub(s.Outflows)
}

// PerformanceMetrics holds calculated figures. A nil rate means the solver
// found no result and the metric cannot be compared.
type PerformanceMetrics struct {
	PeriodStart time.Time      `json:"period_start"`
	PeriodEnd   time.Time      `json:"period_end"`
	Method      CashFlowMethod `json:"method"`
	Flows       []CashFlow     `json:"flows,omitempty"`

	XIRR          *float64 `json:"xirr"`
	TWR           *float64 `json:"twr"`
	TWRAnnualized *float64 `json:"twr_annualized"`

	RealizedPnL          decimal.Decimal `json:"realized_pnl"`
	RealizedCapitalGains decimal.Decimal `json:"realized_capital_gains"`
	UnrealizedPnL        decimal.Decimal `json:"unrealized_pnl"`
	TotalPnL             decimal.Decimal `json:"total_pnl"`
	DividendIncome       decimal.Decimal `json:"dividend_income"`
	InterestIncome       decimal.Decimal `json:"interest_income"`
	NetIncome            decimal.Decimal `json:"net_income"`
	TotalCostBasis       decimal.Decimal `json:"total_cost_basis"`
	TotalMarketValue     decimal.Decimal `json:"total_market_value"`
	TerminalValue        decimal.Decimal `json:"terminal_value"`

	Summary CashFlowSummary `json:"cash_flow_summary"`
}

// Days returns the calendar days covered by the period.
func (m *PerformanceMetrics) Days() int {
	if m.PeriodStart.IsZero() || m.PeriodEnd.IsZero() {
		return 0
	}
	return int(m.PeriodEnd.Sub(m.PeriodStart).Hours() / 24)
}
