package app

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/vire-recon/internal/common"
	"github.com/bobmcallan/vire-recon/internal/ledger"
	"github.com/bobmcallan/vire-recon/internal/models"
	"github.com/bobmcallan/vire-recon/internal/pms"
)

const runJSON = `{
	"portfolio_id": "SMSF",
	"valuation_date": "2024-01-01",
	"base_currency": "USD",
	"transactions": [
		{"id": "t1", "date": "2023-01-01", "type": "deposit", "symbol": "USD", "currency": "USD", "net_amount": "10000"},
		{"id": "t2", "date": "2023-01-02", "type": "buy", "asset_type": "equity", "symbol": "AAPL", "currency": "USD",
		 "quantity": "100", "price": "90", "commission": "10"},
		{"id": "t3", "date": "2023-06-01", "type": "sell", "asset_type": "equity", "symbol": "AAPL", "currency": "USD",
		 "quantity": "40", "price": "100"},
		{"id": "t4", "date": "2023-09-01", "type": "dividend", "symbol": "AAPL", "currency": "USD", "net_amount": "50"}
	],
	"prices": {"AAPL": "110"},
	"expected": {
		"metrics": {"xirr": 0.164, "twr": 0.17, "realized_pnl": 446, "unrealized_pnl": 1194},
		"positions": {
			"AAPL": {"quantity": 60, "market_value": 6600, "cost_basis": 5406},
			"WES": {"quantity": 10}
		}
	}
}`

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestApp() *App {
	return NewAppWithConfig(common.NewDefaultConfig(), common.NewSilentLogger())
}

func loadRun(t *testing.T, body string) *models.RunInput {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	in, err := LoadInput(path)
	require.NoError(t, err)
	return in
}

func result(t *testing.T, rec *models.PortfolioReconciliation, symbol, metric string) models.ReconciliationResult {
	t.Helper()
	for _, r := range rec.Results {
		if r.Symbol() == symbol && r.Metric() == metric {
			return r
		}
	}
	require.Failf(t, "result not found", "%s %s", symbol, metric)
	return models.ReconciliationResult{}
}

func TestRun_EndToEnd(t *testing.T) {
	in := loadRun(t, runJSON)
	res, err := newTestApp().Run(in, nil)
	require.NoError(t, err)

	p := res.PnL
	assert.True(t, p.RealizedCapitalGains.Equal(d("396")), "got %s", p.RealizedCapitalGains)
	assert.True(t, p.TotalRealizedPnL().Equal(d("446")))
	assert.True(t, p.TotalUnrealizedPnL.Equal(d("1194")))
	assert.True(t, p.NetCash.Equal(d("5040")))

	rec := res.Reconciliation
	assert.Equal(t, "SMSF", rec.PortfolioID)
	assert.Equal(t, models.StatusPass, result(t, rec, "", models.MetricXIRR).Status())
	assert.Equal(t, models.StatusFail, result(t, rec, "", models.MetricTWR).Status())
	assert.Equal(t, models.StatusPass, result(t, rec, "", models.MetricRealizedPnL).Status())
	assert.Equal(t, models.StatusPass, result(t, rec, "", models.MetricUnrealizedPnL).Status())
	assert.Equal(t, models.StatusPass, result(t, rec, "AAPL", models.MetricQuantity).Status())
	assert.Equal(t, models.StatusPass, result(t, rec, "AAPL", models.MetricMarketValue).Status())
	assert.Equal(t, models.StatusPass, result(t, rec, "AAPL", models.MetricCostBasis).Status())
	assert.Equal(t, []string{"AAPL"}, rec.PositionSymbols(), "WES has no calculated position")

	assert.Equal(t, 7, rec.TotalChecks)
	assert.Equal(t, 1, rec.FailedChecks)
	assert.False(t, rec.IsFullyReconciled())
	require.NotNil(t, rec.DataQuality)
	assert.True(t, rec.DataQuality.IsClean(), "%+v", rec.DataQuality.Issues)

	require.Len(t, res.Lots["AAPL"], 1)
	assert.True(t, res.Lots["AAPL"][0].RemainingQuantity.Equal(d("60")))
	require.Len(t, res.Disposals["AAPL"], 1)
	assert.True(t, res.Disposals["AAPL"][0].RealizedPnL.Equal(d("396")))
	require.Len(t, res.TaxLots.Symbols, 1)
}

func TestRun_ExternalExpectedOverridesEnvelope(t *testing.T) {
	in := loadRun(t, runJSON)
	navexa, err := pms.NewNavexaSource().Parse([]byte(`{"performance": {"time_weighted_return": 16.4}}`))
	require.NoError(t, err)

	res, err := newTestApp().Run(in, navexa)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPass, result(t, res.Reconciliation, "", models.MetricTWR).Status())
	assert.True(t, res.Reconciliation.IsFullyReconciled())
}

func TestRun_IsDeterministic(t *testing.T) {
	a := newTestApp()
	first, err := a.Run(loadRun(t, runJSON), nil)
	require.NoError(t, err)
	second, err := a.Run(loadRun(t, runJSON), nil)
	require.NoError(t, err)

	j1, err := json.Marshal(first.Reconciliation.Results)
	require.NoError(t, err)
	j2, err := json.Marshal(second.Reconciliation.Results)
	require.NoError(t, err)
	assert.JSONEq(t, string(j1), string(j2))
	assert.Equal(t, first.Lots["AAPL"][0].LotID, second.Lots["AAPL"][0].LotID)
}

func TestRun_StrictOversellFails(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Ledger.Oversell = common.OversellStrict
	a := NewAppWithConfig(cfg, common.NewSilentLogger())

	in := loadRun(t, `{
		"portfolio_id": "P",
		"valuation_date": "2024-01-01",
		"transactions": [
			{"id": "b", "date": "2023-01-02", "type": "buy", "symbol": "X", "quantity": "1", "price": "10"},
			{"id": "s", "date": "2023-02-02", "type": "sell", "symbol": "X", "quantity": "2", "price": "10"}
		],
		"prices": {"X": "10"}
	}`)
	_, err := a.Run(in, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInsufficientQuantity)
}

func TestRun_CriticalDataQualityIsWarning(t *testing.T) {
	in := loadRun(t, `{
		"portfolio_id": "P",
		"valuation_date": "2024-01-01",
		"transactions": [
			{"id": "b", "date": "2023-01-02", "type": "buy", "symbol": "X", "quantity": "1", "price": "10"},
			{"id": "s", "date": "2023-02-02", "type": "sell", "symbol": "X", "quantity": "2", "price": "10"}
		],
		"prices": {"X": "10"}
	}`)
	res, err := newTestApp().Run(in, nil)
	require.NoError(t, err, "lenient mode disposes what is held")

	rec := res.Reconciliation
	assert.True(t, rec.DataQuality.HasCritical())
	assert.Equal(t, models.StatusWarning, result(t, rec, "", models.MetricDataQuality).Status())
	assert.True(t, rec.IsFullyReconciled())
	assert.Equal(t, "USD", rec.BaseCurrency, "falls back to the configured base currency")
}

func TestCheckQuality_MatchesRun(t *testing.T) {
	a := newTestApp()
	in := loadRun(t, runJSON)
	report := a.CheckQuality(in)
	require.NotNil(t, report)
	assert.Equal(t, len(in.Transactions), report.TotalRecords)

	res, err := a.Run(in, nil)
	require.NoError(t, err)
	assert.Equal(t, len(report.Issues), len(res.Reconciliation.DataQuality.Issues))
}

func TestLoadInput_Errors(t *testing.T) {
	_, err := LoadInput(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"valuation_date": "01/02/2024"}`), 0o644))
	_, err = LoadInput(path)
	assert.Error(t, err)
}
