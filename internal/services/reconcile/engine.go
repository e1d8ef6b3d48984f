// Package reconcile compares calculated figures against PMS-reported ones
package reconcile

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/vire-recon/internal/common"
	"github.com/bobmcallan/vire-recon/internal/interfaces"
	"github.com/bobmcallan/vire-recon/internal/models"
)

// Tolerances are the configured per-metric tolerances as decimals
type Tolerances struct {
	Rate              decimal.Decimal
	TWR               decimal.Decimal
	RealizedPnL       decimal.Decimal
	UnrealizedPnL     decimal.Decimal
	TotalPnLPosition  decimal.Decimal
	TotalPnLPortfolio decimal.Decimal
	Quantity          decimal.Decimal
	MarketValue       decimal.Decimal
}

// NewTolerances converts the configured floats once
func NewTolerances(cfg common.TolerancesConfig) Tolerances {
	rate := cfg.XIRR
	if rate == 0 {
		rate = cfg.IRR
	}
	return Tolerances{
		Rate:              decimal.NewFromFloat(rate),
		TWR:               decimal.NewFromFloat(cfg.TWR),
		RealizedPnL:       decimal.NewFromFloat(cfg.RealizedPnL),
		UnrealizedPnL:     decimal.NewFromFloat(cfg.UnrealizedPnL),
		TotalPnLPosition:  decimal.NewFromFloat(cfg.TotalPnLPosition),
		TotalPnLPortfolio: decimal.NewFromFloat(cfg.TotalPnLPortfolio),
		Quantity:          decimal.NewFromFloat(cfg.Quantity),
		MarketValue:       decimal.NewFromFloat(cfg.MarketValue),
	}
}

// portfolio returns the tolerance applied to a portfolio-level metric
func (t Tolerances) portfolio(metric string) decimal.Decimal {
	switch metric {
	case models.MetricXIRR:
		return t.Rate
	case models.MetricTWR, models.MetricTWRAnnualized:
		return t.TWR
	case models.MetricUnrealizedPnL:
		return t.UnrealizedPnL
	case models.MetricTotalPnL:
		return t.TotalPnLPortfolio
	case models.MetricMarketValue, models.MetricCostBasis:
		return t.MarketValue
	default:
		// realized figures and income lines
		return t.RealizedPnL
	}
}

// position returns the tolerance applied to a position-level metric
func (t Tolerances) position(metric string) decimal.Decimal {
	switch metric {
	case models.MetricQuantity:
		return t.Quantity
	case models.MetricCostBasis, models.MetricMarketValue:
		return t.MarketValue
	case models.MetricUnrealizedPnL:
		return t.UnrealizedPnL
	case models.MetricTotalPnL:
		return t.TotalPnLPosition
	default:
		return t.RealizedPnL
	}
}

// Engine builds the reconciliation result set. It never fails: mismatches
// and uncomputable metrics are recorded as results.
type Engine struct {
	tolerances     Tolerances
	failOnCritical bool
	logger         *common.Logger
}

// EngineOption configures the engine
type EngineOption func(*Engine)

// WithCriticalQualityFailure records critical data-quality issues as a FAIL
// instead of a WARNING
func WithCriticalQualityFailure(fail bool) EngineOption {
	return func(e *Engine) {
		e.failOnCritical = fail
	}
}

// NewEngine creates an engine with tolerances from cfg
func NewEngine(cfg common.TolerancesConfig, logger *common.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		tolerances: NewTolerances(cfg),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tolerances returns the decimal tolerances in use
func (e *Engine) Tolerances() Tolerances { return e.tolerances }

// Reconcile compares every expected metric that has a calculated counterpart.
// Portfolio checks run in models.PortfolioMetrics order, then positions in
// symbol order.
func (e *Engine) Reconcile(portfolioID string, date time.Time, baseCurrency string, pnl *models.PortfolioPnL,
	metrics *models.PerformanceMetrics, expected *models.ExpectedValues) *models.PortfolioReconciliation {

	rec := models.NewPortfolioReconciliation(portfolioID, date, baseCurrency)
	rec.CalculatedMetrics = metrics

	for _, name := range models.PortfolioMetrics {
		exp, ok := expected.Metric(name)
		if !ok {
			continue
		}
		calc, ok := portfolioValue(name, metrics)
		if !ok {
			rec.Add(models.NewWarning(name, uncomputedNote(name)).WithExpected(exp))
			continue
		}
		rec.Add(models.NewResult(name, calc, exp, e.tolerances.portfolio(name)))
	}

	skipped := 0
	for _, sym := range e.positionSymbols(pnl, expected, &skipped) {
		pos := pnl.Position(sym)
		for _, name := range models.PositionMetrics {
			exp, ok := expected.Position(sym, name)
			if !ok {
				continue
			}
			calc := positionValue(name, pos)
			rec.Add(models.NewResult(name, calc, exp, e.tolerances.position(name)).WithSymbol(sym, pos.AssetType))
		}
	}

	e.logger.Info().
		Str("portfolio", portfolioID).
		Int("checks", rec.TotalChecks).
		Int("failed", rec.FailedChecks).
		Int("warnings", rec.WarningChecks).
		Int("skipped_symbols", skipped).
		Msg("Reconciliation complete")

	return rec
}

// AddDataQuality attaches the upstream report. Critical issues add a WARNING
// result by default, or a FAIL of the critical count against zero when the
// engine is configured to fail on them.
func (e *Engine) AddDataQuality(rec *models.PortfolioReconciliation, report *models.DataQualityReport) {
	if rec == nil || report == nil {
		return
	}
	rec.DataQuality = report
	if !report.HasCritical() {
		return
	}
	notes := fmt.Sprintf("%d critical data quality issue(s) found", report.CriticalCount)
	if e.failOnCritical {
		rec.Add(models.NewResult(models.MetricDataQuality,
			decimal.NewFromInt(int64(report.CriticalCount)), decimal.Zero, decimal.Zero).WithNotes(notes))
	} else {
		rec.Add(models.NewWarning(models.MetricDataQuality, notes))
	}
	e.logger.Warn().
		Int("critical", report.CriticalCount).
		Int("warnings", report.WarningCount).
		Msg("Critical data quality issues")
}

// positionSymbols returns the intersection of calculated and expected
// symbols in sorted order, counting those present on only one side
func (e *Engine) positionSymbols(pnl *models.PortfolioPnL, expected *models.ExpectedValues, skipped *int) []string {
	var out []string
	for _, sym := range expected.PositionSymbols() {
		if pnl == nil || pnl.Position(sym) == nil {
			*skipped++
			e.logger.Debug().Str("symbol", sym).Msg("Expected position has no calculated counterpart")
			continue
		}
		out = append(out, sym)
	}
	if pnl != nil {
		for _, sym := range pnl.Symbols {
			if expected == nil || expected.Positions[sym] == nil {
				*skipped++
			}
		}
	}
	return out
}

func portfolioValue(name string, m *models.PerformanceMetrics) (decimal.Decimal, bool) {
	if m == nil {
		return decimal.Zero, false
	}
	switch name {
	case models.MetricXIRR:
		return rate(m.XIRR)
	case models.MetricTWR:
		return rate(m.TWR)
	case models.MetricTWRAnnualized:
		return rate(m.TWRAnnualized)
	case models.MetricRealizedPnL:
		return m.RealizedPnL, true
	case models.MetricRealizedCapitalGains:
		return m.RealizedCapitalGains, true
	case models.MetricUnrealizedPnL:
		return m.UnrealizedPnL, true
	case models.MetricTotalPnL:
		return m.TotalPnL, true
	case models.MetricMarketValue:
		return m.TotalMarketValue, true
	case models.MetricCostBasis:
		return m.TotalCostBasis, true
	case models.MetricDividendIncome:
		return m.DividendIncome, true
	case models.MetricInterestIncome:
		return m.InterestIncome, true
	case models.MetricNetIncome:
		return m.NetIncome, true
	}
	return decimal.Zero, false
}

func positionValue(name string, p *models.PositionPnL) decimal.Decimal {
	switch name {
	case models.MetricQuantity:
		return p.Quantity
	case models.MetricCostBasis:
		return p.CostBasis
	case models.MetricMarketValue:
		return p.MarketValue
	case models.MetricUnrealizedPnL:
		return p.UnrealizedPnL
	case models.MetricRealizedPnL:
		return p.RealizedPnL
	case models.MetricTotalPnL:
		return p.TotalPnL()
	}
	return decimal.Zero
}

func rate(v *float64) (decimal.Decimal, bool) {
	if v == nil {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(*v), true
}

func uncomputedNote(metric string) string {
	switch metric {
	case models.MetricXIRR:
		return "XIRR did not converge or flows have no sign change"
	case models.MetricTWR, models.MetricTWRAnnualized:
		return "TWR could not be computed from the available valuations"
	}
	return "metric could not be computed"
}

// Ensure Engine implements Reconciler
var _ interfaces.Reconciler = (*Engine)(nil)
