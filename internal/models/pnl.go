package models

import (
	"github.com/shopspring/decimal"
)

// Income holds income and expense buckets. Expenses are stored as positive amounts.
type Income struct {
	Dividends       decimal.Decimal `json:"dividends"`
	Interest        decimal.Decimal `json:"interest"`
	OptionPremium   decimal.Decimal `json:"option_premium"`
	WithholdingTax  decimal.Decimal `json:"withholding_tax"`
	InterestExpense decimal.Decimal `json:"interest_expense"`
	OtherFees       decimal.Decimal `json:"other_fees"`
}

// Gross is dividends plus interest plus option premium.
func (i Income) Gross() decimal.Decimal {
	return i.Dividends.Add(i.Interest).Add(i.OptionPremium)
}

// Expenses is withholding tax plus interest expense plus other fees.
func (i Income) Expenses() decimal.Decimal {
	return i.WithholdingTax.Add(i.InterestExpense).Add(i.OtherFees)
}

// Net is gross income less expenses.
func (i Income) Net() decimal.Decimal {
	return i.Gross().Sub(i.Expenses())
}

// AddExpense books a positive amount to the given expense category.
func (i *Income) AddExpense(category FeeCategory, amount decimal.Decimal) {
	switch category {
	case FeeWithholdingTax:
		i.WithholdingTax = i.WithholdingTax.Add(amount)
	case FeeInterestExpense:
		i.InterestExpense = i.InterestExpense.Add(amount)
	default:
		i.OtherFees = i.OtherFees.Add(amount)
	}
}

// PositionPnL is the per-symbol rollup. Total P&L is derived, never stored.
type PositionPnL struct {
	Symbol        string          `json:"symbol"`
	AssetType     AssetType       `json:"asset_type,omitempty"`
	Currency      string          `json:"currency,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	AverageCost   decimal.Decimal `json:"average_cost"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	FXRate        decimal.Decimal `json:"fx_rate"`
	MarketValue   decimal.Decimal `json:"market_value"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	Income        Income          `json:"income"`
	LotCount      int             `json:"lot_count"`
}

// TotalPnL is realized plus net income plus unrealized.
func (p *PositionPnL) TotalPnL() decimal.Decimal {
	return p.RealizedPnL.Add(p.Income.Net()).Add(p.UnrealizedPnL)
}

// PortfolioPnL is the portfolio rollup built by the aggregator.
type PortfolioPnL struct {
	Positions map[string]*PositionPnL `json:"positions"`
	Symbols   []string                `json:"symbols"` // sorted

	RealizedCapitalGains decimal.Decimal `json:"realized_capital_gains"`
	Income               Income          `json:"income"`

	TotalUnrealizedPnL decimal.Decimal `json:"total_unrealized_pnl"`
	TotalCostBasis     decimal.Decimal `json:"total_cost_basis"`
	TotalMarketValue   decimal.Decimal `json:"total_market_value"`

	// NetCash is the running balance of cash-symbol and external movements.
	NetCash decimal.Decimal `json:"net_cash"`
}

// NewPortfolioPnL returns an empty rollup.
func NewPortfolioPnL() *PortfolioPnL {
	return &PortfolioPnL{Positions: make(map[string]*PositionPnL)}
}

// Position returns the rollup for symbol, or nil.
func (p *PortfolioPnL) Position(symbol string) *PositionPnL {
	return p.Positions[symbol]
}

// TotalRealizedPnL is capital gains plus net income.
func (p *PortfolioPnL) TotalRealizedPnL() decimal.Decimal {
	return p.RealizedCapitalGains.Add(p.Income.Net())
}

// TotalPnL is capital gains plus net income plus unrealized.
func (p *PortfolioPnL) TotalPnL() decimal.Decimal {
	return p.TotalRealizedPnL().Add(p.TotalUnrealizedPnL)
}

// Recompute rebuilds portfolio totals from the positions.
func (p *PortfolioPnL) Recompute() {
	p.RealizedCapitalGains = decimal.Zero
	p.TotalUnrealizedPnL = decimal.Zero
	p.TotalCostBasis = decimal.Zero
	p.TotalMarketValue = decimal.Zero
	for _, sym := range p.Symbols {
		pos := p.Positions[sym]
		p.RealizedCapitalGains = p.RealizedCapitalGains.Add(pos.RealizedPnL)
		p.TotalUnrealizedPnL = p.TotalUnrealizedPnL.Add(pos.UnrealizedPnL)
		p.TotalCostBasis = p.TotalCostBasis.Add(pos.CostBasis)
		p.TotalMarketValue = p.TotalMarketValue.Add(pos.MarketValue)
	}
}
