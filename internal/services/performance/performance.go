// Package performance computes money-weighted and time-weighted returns
package performance

import (
	"time"

	"github.com/bobmcallan/vire-recon/internal/common"
	"github.com/bobmcallan/vire-recon/internal/interfaces"
	"github.com/bobmcallan/vire-recon/internal/models"
)

// Calculator assembles PerformanceMetrics from a valued rollup
type Calculator struct {
	xirr   *XIRRSolver
	twr    *TWRSolver
	flows  *CashFlowBuilder
	logger *common.Logger
}

// NewCalculator creates a calculator with solvers built from cfg
func NewCalculator(cfg *common.Config, logger *common.Logger) *Calculator {
	return &Calculator{
		xirr:   NewXIRRSolver(cfg.Solver),
		twr:    NewTWRSolver(),
		flows:  NewCashFlowBuilder(cfg.Classifier.CashSymbols),
		logger: logger,
	}
}

// XIRR exposes the money-weighted solver
func (c *Calculator) XIRR() *XIRRSolver { return c.xirr }

// TWR exposes the time-weighted solver
func (c *Calculator) TWR() *TWRSolver { return c.twr }

// Metrics computes XIRR and TWR and copies the P&L figures from pnl. With two
// or more daily valuations TWR chains sub-periods; otherwise it falls back to
// a whole-period Modified Dietz over the flow view. Rates that cannot be
// solved are left nil.
func (c *Calculator) Metrics(txns []models.Transaction, pnl *models.PortfolioPnL, daily []models.DailyValue, asOf time.Time) *models.PerformanceMetrics {
	view := c.flows.Build(txns, pnl, asOf)

	m := &models.PerformanceMetrics{
		PeriodStart:   view.Start,
		PeriodEnd:     view.End,
		Method:        view.Method,
		Flows:         view.XIRRFlows(),
		TerminalValue: view.Terminal,
		Summary:       Summarize(txns),
	}
	if pnl != nil {
		m.RealizedPnL = pnl.TotalRealizedPnL()
		m.RealizedCapitalGains = pnl.RealizedCapitalGains
		m.UnrealizedPnL = pnl.TotalUnrealizedPnL
		m.TotalPnL = pnl.TotalPnL()
		m.DividendIncome = pnl.Income.Dividends
		m.InterestIncome = pnl.Income.Interest
		m.NetIncome = pnl.Income.Net()
		m.TotalCostBasis = pnl.TotalCostBasis
		m.TotalMarketValue = pnl.TotalMarketValue
	}

	if r, ok := c.xirr.Solve(m.Flows); ok {
		m.XIRR = &r
	} else {
		c.logger.Warn().
			Int("flows", len(m.Flows)).
			Str("method", string(view.Method)).
			Msg("XIRR did not converge")
	}

	var (
		twr  float64
		ok   bool
		days int
	)
	if len(daily) >= 2 {
		sorted := sortDaily(daily)
		twr, ok = c.twr.TimeWeighted(sorted)
		days = calendarDays(sorted[0].Date, sorted[len(sorted)-1].Date)
	} else {
		twr, ok = c.twr.ModifiedDietz(0, view.Terminal.InexactFloat64(), view.Start, view.End, view.Contributions())
		days = calendarDays(view.Start, view.End)
	}
	if ok {
		ann := Annualize(twr, days)
		m.TWR = &twr
		m.TWRAnnualized = &ann
	} else {
		c.logger.Warn().Int("daily_values", len(daily)).Msg("TWR could not be computed")
	}

	c.logger.Debug().
		Str("method", string(view.Method)).
		Int("flows", len(m.Flows)).
		Str("terminal", view.Terminal.StringFixed(2)).
		Msg("Performance metrics computed")

	return m
}

var (
	_ interfaces.RateSolver   = (*XIRRSolver)(nil)
	_ interfaces.ReturnSolver = (*TWRSolver)(nil)
)
