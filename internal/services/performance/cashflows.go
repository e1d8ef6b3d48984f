package performance

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/vire-recon/internal/models"
)

// CashFlowView is the investor-signed flow series fed to the solvers.
// Negative amounts are money paid in, positive amounts money received.
type CashFlowView struct {
	Method   models.CashFlowMethod `json:"method"`
	Flows    []models.CashFlow     `json:"flows"`
	Terminal decimal.Decimal       `json:"terminal_value"`
	Start    time.Time             `json:"start"`
	End      time.Time             `json:"end"`
}

// XIRRFlows returns the flows with the terminal value appended at End.
func (v CashFlowView) XIRRFlows() []models.CashFlow {
	out := make([]models.CashFlow, 0, len(v.Flows)+1)
	out = append(out, v.Flows...)
	if !v.Terminal.IsZero() {
		out = append(out, models.CashFlow{Date: v.End, Amount: v.Terminal.InexactFloat64()})
	}
	return out
}

// Contributions returns the flows from the portfolio's side, positive = money in.
func (v CashFlowView) Contributions() []models.CashFlow {
	out := make([]models.CashFlow, len(v.Flows))
	for i, f := range v.Flows {
		out[i] = models.CashFlow{Date: f.Date, Amount: -f.Amount}
	}
	return out
}

// CashFlowBuilder derives the flow view from transactions and a valued rollup.
type CashFlowBuilder struct {
	cash map[string]bool
}

// NewCashFlowBuilder creates a builder that ignores trades in cashSymbols
func NewCashFlowBuilder(cashSymbols []string) *CashFlowBuilder {
	b := &CashFlowBuilder{cash: make(map[string]bool, len(cashSymbols))}
	for _, s := range cashSymbols {
		b.cash[strings.ToUpper(s)] = true
	}
	return b
}

// Build picks the flow series. When deposits or withdrawals exist they alone
// are the flows and the terminal value is market value plus net cash.
// Otherwise security trades, income and fees are used with market value as
// the terminal value. A zero asOf falls back to the latest transaction date.
func (b *CashFlowBuilder) Build(txns []models.Transaction, pnl *models.PortfolioPnL, asOf time.Time) CashFlowView {
	view := CashFlowView{Method: models.FlowsSecurity, End: asOf}
	if view.End.IsZero() {
		for _, t := range txns {
			if t.Date.After(view.End) {
				view.End = t.Date
			}
		}
	}

	for _, t := range txns {
		if t.Type.IsExternalFlow() {
			view.Method = models.FlowsExternal
			break
		}
	}

	for _, t := range txns {
		amount := b.flowAmount(t, view.Method)
		if amount.IsZero() {
			continue
		}
		view.Flows = append(view.Flows, models.CashFlow{Date: t.Date, Amount: amount.InexactFloat64()})
	}
	sort.SliceStable(view.Flows, func(i, j int) bool {
		return view.Flows[i].Date.Before(view.Flows[j].Date)
	})
	if len(view.Flows) > 0 {
		view.Start = view.Flows[0].Date
	}

	if pnl != nil {
		view.Terminal = pnl.TotalMarketValue
		if view.Method == models.FlowsExternal {
			view.Terminal = view.Terminal.Add(pnl.NetCash)
		}
	}
	return view
}

// flowAmount returns t's investor-signed base-currency flow under method.
func (b *CashFlowBuilder) flowAmount(t models.Transaction, method models.CashFlowMethod) decimal.Decimal {
	if method == models.FlowsExternal {
		if !t.Type.IsExternalFlow() {
			return decimal.Zero
		}
		return t.CashFlow().Mul(t.Rate())
	}

	switch {
	case t.Type.IsIncome():
		return t.CashFlow().Mul(t.Rate())
	case t.Type.IsExpense():
		return t.NetAmount().Abs().Mul(t.Rate()).Neg()
	case b.cash[strings.ToUpper(t.Symbol)]:
		return decimal.Zero
	}
	return t.CashFlow().Mul(t.Rate())
}

// Summarize totals every transaction's flow by direction. Positive income
// flows count as income, other positive flows as inflows.
func Summarize(txns []models.Transaction) models.CashFlowSummary {
	s := models.CashFlowSummary{
		Inflows:  decimal.Zero,
		Outflows: decimal.Zero,
		Income:   decimal.Zero,
	}
	for _, t := range txns {
		cf := t.CashFlow().Mul(t.Rate())
		if cf.IsZero() {
			continue
		}
		s.TransactionCount++
		switch {
		case cf.IsPositive() && t.Type.IsIncome():
			s.Income = s.Income.Add(cf)
		case cf.IsPositive():
			s.Inflows = s.Inflows.Add(cf)
		default:
			s.Outflows = s.Outflows.Add(cf.Abs())
		}
	}
	return s
}
