package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/vire-recon/internal/common"
	"github.com/bobmcallan/vire-recon/internal/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func f(v float64) *float64 { return &v }

var asOf = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

func newEngine() *Engine {
	return NewEngine(common.NewDefaultConfig().Tolerances, common.NewSilentLogger())
}

func samplePnL() *models.PortfolioPnL {
	p := models.NewPortfolioPnL()
	p.Positions["BHP"] = &models.PositionPnL{
		Symbol:        "BHP",
		AssetType:     models.AssetEquity,
		Quantity:      d("100"),
		CostBasis:     d("4000"),
		MarketValue:   d("4500"),
		UnrealizedPnL: d("500"),
		RealizedPnL:   d("20"),
	}
	p.Positions["CBA"] = &models.PositionPnL{
		Symbol:      "CBA",
		AssetType:   models.AssetEquity,
		Quantity:    d("10"),
		CostBasis:   d("1000"),
		MarketValue: d("1200"),
	}
	p.Symbols = []string{"BHP", "CBA"}
	p.Recompute()
	return p
}

func sampleMetrics() *models.PerformanceMetrics {
	return &models.PerformanceMetrics{
		XIRR:             f(0.1234),
		TWR:              f(0.1101),
		RealizedPnL:      d("20"),
		UnrealizedPnL:    d("700"),
		TotalPnL:         d("720"),
		TotalMarketValue: d("5700"),
		TotalCostBasis:   d("5000"),
	}
}

func TestNewResult_Boundaries(t *testing.T) {
	r := models.NewResult("realized_pnl", d("100.004"), d("100.00"), d("0.01"))
	assert.Equal(t, models.StatusPass, r.Status())
	assert.True(t, r.Difference().Equal(d("0.004")))

	r = models.NewResult("realized_pnl", d("100.02"), d("100.00"), d("0.01"))
	assert.Equal(t, models.StatusFail, r.Status())

	r = models.NewResult("realized_pnl", d("99.99"), d("100.00"), d("0.01"))
	assert.Equal(t, models.StatusPass, r.Status(), "tolerance is inclusive")
	assert.True(t, r.Difference().Equal(d("-0.01")), "difference is signed")
}

func TestNewTolerances(t *testing.T) {
	tol := newEngine().Tolerances()
	assert.True(t, tol.Rate.Equal(d("0.0001")))
	assert.True(t, tol.TotalPnLPortfolio.Equal(d("1")))
	assert.True(t, tol.TotalPnLPosition.Equal(d("0.01")))
	assert.True(t, tol.Quantity.Equal(d("0.0001")))

	// irr is used when xirr is unset
	cfg := common.TolerancesConfig{IRR: 0.005}
	assert.True(t, NewTolerances(cfg).Rate.Equal(d("0.005")))
}

func TestReconcile_PortfolioChecks(t *testing.T) {
	exp := models.NewExpectedValues()
	exp.Metrics[models.MetricIRR] = d("0.12345")
	exp.Metrics[models.MetricTWR] = d("0.1150")
	exp.Metrics[models.MetricTotalPnL] = d("719.25")
	exp.Metrics[models.MetricMarketValue] = d("5700")

	rec := newEngine().Reconcile("P1", asOf, "AUD", samplePnL(), sampleMetrics(), exp)

	require.Len(t, rec.Results, 4)
	names := make([]string, 0, len(rec.Results))
	for _, r := range rec.Results {
		names = append(names, r.Metric())
	}
	assert.Equal(t, []string{"xirr", "twr", "total_pnl", "market_value"}, names, "fixed check order")

	assert.Equal(t, models.StatusPass, rec.Results[0].Status(), "irr alias within 1bp")
	assert.Equal(t, models.StatusFail, rec.Results[1].Status())
	assert.Equal(t, models.StatusPass, rec.Results[2].Status(), "portfolio total P&L tolerance is 1.00")
	assert.Equal(t, models.StatusPass, rec.Results[3].Status())

	assert.Equal(t, 3, rec.PassedChecks)
	assert.Equal(t, 1, rec.FailedChecks)
	assert.False(t, rec.IsFullyReconciled())
	assert.InDelta(t, 75.0, rec.PassRate(), 1e-9)
	assert.NotNil(t, rec.CalculatedMetrics)
}

func TestReconcile_UncomputedRateIsWarning(t *testing.T) {
	m := sampleMetrics()
	m.XIRR = nil
	exp := models.NewExpectedValues()
	exp.Metrics[models.MetricXIRR] = d("0.08")

	rec := newEngine().Reconcile("P1", asOf, "AUD", samplePnL(), m, exp)
	require.Len(t, rec.Results, 1)
	r := rec.Results[0]
	assert.Equal(t, models.StatusWarning, r.Status())
	assert.False(t, r.HasCalculated())
	assert.True(t, r.Expected().Equal(d("0.08")))
	assert.NotEmpty(t, r.Notes())
	assert.True(t, rec.IsFullyReconciled(), "warnings do not fail the run")
}

func TestReconcile_PositionIntersection(t *testing.T) {
	exp := models.NewExpectedValues()
	exp.SetPosition("CBA", models.MetricMarketValue, d("1200.005"))
	exp.SetPosition("CBA", models.MetricQuantity, d("10"))
	exp.SetPosition("BHP", models.MetricTotalPnL, d("520"))
	exp.SetPosition("BHP", models.MetricCostBasis, d("4000.50"))
	exp.SetPosition("WES", models.MetricQuantity, d("5"))

	rec := newEngine().Reconcile("P1", asOf, "AUD", samplePnL(), sampleMetrics(), exp)

	assert.Equal(t, []string{"BHP", "CBA"}, rec.PositionSymbols(), "WES is expected only and skipped")
	require.Len(t, rec.Results, 4)

	bhp := rec.PositionResults["BHP"]
	require.Len(t, bhp, 2)
	assert.Equal(t, models.MetricCostBasis, bhp[0].Metric())
	assert.Equal(t, models.StatusFail, bhp[0].Status())
	assert.Equal(t, models.MetricTotalPnL, bhp[1].Metric())
	assert.Equal(t, models.StatusPass, bhp[1].Status())
	assert.Equal(t, models.AssetEquity, bhp[1].AssetType())

	cba := rec.PositionResults["CBA"]
	require.Len(t, cba, 2)
	assert.Equal(t, models.MetricQuantity, cba[0].Metric())
	assert.Equal(t, models.StatusPass, cba[1].Status())
	assert.Equal(t, 1, rec.FailedChecks)
}

func TestReconcile_NoExpectedValues(t *testing.T) {
	rec := newEngine().Reconcile("P1", asOf, "AUD", samplePnL(), sampleMetrics(), nil)
	assert.Empty(t, rec.Results)
	assert.True(t, rec.IsFullyReconciled())
	assert.Equal(t, 100.0, rec.PassRate())
}

func TestAddDataQuality(t *testing.T) {
	e := newEngine()
	rec := models.NewPortfolioReconciliation("P1", asOf, "AUD")

	report := &models.DataQualityReport{TotalRecords: 3}
	report.Add(models.DataQualityIssue{Severity: models.SeverityWarning, Category: "validity", Message: "zero price"})
	e.AddDataQuality(rec, report)
	assert.Same(t, report, rec.DataQuality)
	assert.Empty(t, rec.Results, "warnings alone add no result")

	report.Add(models.DataQualityIssue{Severity: models.SeverityCritical, Category: "consistency", Message: "oversold"})
	e.AddDataQuality(rec, report)
	require.Len(t, rec.Results, 1)
	assert.Equal(t, models.MetricDataQuality, rec.Results[0].Metric())
	assert.Equal(t, models.StatusWarning, rec.Results[0].Status())
	assert.True(t, rec.IsFullyReconciled())
	assert.Equal(t, 2, rec.Summary().DataQualityIssues)
}

func TestAddDataQuality_CriticalFails(t *testing.T) {
	e := NewEngine(common.NewDefaultConfig().Tolerances, common.NewSilentLogger(), WithCriticalQualityFailure(true))
	rec := models.NewPortfolioReconciliation("P1", asOf, "AUD")

	report := &models.DataQualityReport{TotalRecords: 2}
	report.Add(models.DataQualityIssue{Severity: models.SeverityCritical, Category: "consistency", Message: "oversold"})
	e.AddDataQuality(rec, report)

	require.Len(t, rec.Results, 1)
	r := rec.Results[0]
	assert.Equal(t, models.MetricDataQuality, r.Metric())
	assert.Equal(t, models.StatusFail, r.Status())
	assert.Equal(t, "1 critical data quality issue(s) found", r.Notes())
	assert.False(t, rec.IsFullyReconciled())
}
