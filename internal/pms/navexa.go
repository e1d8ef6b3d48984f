package pms

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/vire-recon/internal/models"
)

// NavexaPortfolio is the portfolio block of a Navexa export
type NavexaPortfolio struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Currency     string               `json:"currency"`
	TotalValue   *decimal.Decimal     `json:"total_value"`
	TotalCost    *decimal.Decimal     `json:"total_cost"`
	TotalGain    *decimal.Decimal     `json:"total_gain"`
	TotalGainPct *decimal.Decimal     `json:"total_gain_pct"`
	Holdings     []NavexaHolding      `json:"holdings,omitempty"`
	Performance  *NavexaPerformance   `json:"performance,omitempty"`
	Income       *NavexaIncomeSummary `json:"income,omitempty"`
}

// NavexaHolding is one holding row
type NavexaHolding struct {
	Ticker       string           `json:"ticker"`
	Exchange     string           `json:"exchange"`
	Name         string           `json:"name"`
	Units        *decimal.Decimal `json:"units"`
	AvgCost      *decimal.Decimal `json:"avg_cost"`
	TotalCost    *decimal.Decimal `json:"total_cost"`
	CurrentPrice *decimal.Decimal `json:"current_price"`
	MarketValue  *decimal.Decimal `json:"market_value"`
	GainLoss     *decimal.Decimal `json:"gain_loss"`
	CapitalGain  *decimal.Decimal `json:"capital_gain"`
	TotalReturn  *decimal.Decimal `json:"total_return"`
}

// NavexaPerformance carries return figures. Navexa reports them as
// percentages (12.5 = 12.5%).
type NavexaPerformance struct {
	TotalReturn      *decimal.Decimal `json:"total_return"`
	TotalReturnPct   *decimal.Decimal `json:"total_return_pct"`
	AnnualisedReturn *decimal.Decimal `json:"annualised_return"`
	TimeWeighted     *decimal.Decimal `json:"time_weighted_return"`
	CapitalGain      *decimal.Decimal `json:"capital_gain"`
}

// NavexaIncomeSummary is the income block
type NavexaIncomeSummary struct {
	Dividends *decimal.Decimal `json:"dividends"`
	Interest  *decimal.Decimal `json:"interest"`
	Total     *decimal.Decimal `json:"total"`
}

// NavexaSource maps a Navexa portfolio export onto expected values. The
// export is either the portfolio object or {"data": portfolio}.
type NavexaSource struct{}

// NewNavexaSource creates a Navexa decoder
func NewNavexaSource() *NavexaSource { return &NavexaSource{} }

func (NavexaSource) Name() string { return KindNavexa }

func (NavexaSource) Parse(data []byte) (*models.ExpectedValues, error) {
	var envelope struct {
		Data *NavexaPortfolio `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	p := envelope.Data
	if p == nil {
		p = &NavexaPortfolio{}
		if err := json.Unmarshal(data, p); err != nil {
			return nil, err
		}
	}
	return p.Expected(), nil
}

var hundred = decimal.NewFromInt(100)

// Expected converts the export. Absent figures are left out so the
// corresponding checks are skipped.
func (p *NavexaPortfolio) Expected() *models.ExpectedValues {
	exp := models.NewExpectedValues()
	set := func(name string, v *decimal.Decimal) {
		if v != nil {
			exp.Metrics[name] = *v
		}
	}
	pct := func(name string, v *decimal.Decimal) {
		if v != nil {
			exp.Metrics[name] = v.Div(hundred)
		}
	}

	set(models.MetricMarketValue, p.TotalValue)
	set(models.MetricCostBasis, p.TotalCost)
	set(models.MetricUnrealizedPnL, p.TotalGain)

	if perf := p.Performance; perf != nil {
		set(models.MetricTotalPnL, perf.TotalReturn)
		set(models.MetricRealizedCapitalGains, perf.CapitalGain)
		pct(models.MetricXIRR, perf.AnnualisedReturn)
		pct(models.MetricTWR, perf.TimeWeighted)
	}
	if inc := p.Income; inc != nil {
		set(models.MetricDividendIncome, inc.Dividends)
		set(models.MetricInterestIncome, inc.Interest)
	}

	for _, h := range p.Holdings {
		sym := h.Symbol()
		if sym == "" {
			continue
		}
		setPos := func(name string, v *decimal.Decimal) {
			if v != nil {
				exp.SetPosition(sym, name, *v)
			}
		}
		setPos(models.MetricQuantity, h.Units)
		setPos(models.MetricCostBasis, h.TotalCost)
		setPos(models.MetricMarketValue, h.MarketValue)
		setPos(models.MetricUnrealizedPnL, h.GainLoss)
		setPos(models.MetricRealizedPnL, h.CapitalGain)
		setPos(models.MetricTotalPnL, h.TotalReturn)
	}
	return exp
}

// Symbol is the upper-cased ticker. The exchange is not appended.
func (h NavexaHolding) Symbol() string {
	return strings.ToUpper(strings.TrimSpace(h.Ticker))
}
