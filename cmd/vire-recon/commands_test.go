package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const envelope = `{
	"portfolio_id": "SMSF",
	"valuation_date": "2024-01-01",
	"base_currency": "USD",
	"transactions": [
		{"id": "t1", "date": "2023-01-01", "type": "deposit", "symbol": "USD", "currency": "USD", "net_amount": "10000"},
		{"id": "t2", "date": "2023-01-02", "type": "buy", "symbol": "AAPL", "currency": "USD", "quantity": "100", "price": "90", "commission": "10"},
		{"id": "t3", "date": "2023-06-01", "type": "sell", "symbol": "AAPL", "currency": "USD", "quantity": "40", "price": "100"}
	],
	"prices": {"AAPL": "110"},
	"expected": {"positions": {"AAPL": {"quantity": 60}}}
}`

type harness struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
	exit   int
	dir    string
	config string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{exit: -1, dir: t.TempDir()}
	h.config = h.path("missing.toml")
	require.NoError(t, os.WriteFile(h.path("run.json"), []byte(envelope), 0o644))
	return h
}

func (h *harness) path(name string) string { return filepath.Join(h.dir, name) }

// run parses args against a fresh grammar. The config path does not exist
// unless a test writes one, so defaults apply.
func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	var grammar struct {
		Commands
	}
	k, err := kong.New(&grammar,
		kong.Name("vire-recon"),
		kong.Writers(&h.stdout, &h.stderr),
		kong.Exit(func(code int) { h.exit = code }),
		kong.Bind(&grammar.Globals),
	)
	require.NoError(t, err)

	args = append([]string{"--config", h.config}, args...)
	ctx, err := k.Parse(args)
	require.NoError(t, err)
	return ctx.Run()
}

func TestRunCmd_WritesReconciliation(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t, "--quiet", "run", "--input", h.path("run.json")))

	var out map[string]any
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &out))
	summary := out["summary"].(map[string]any)
	assert.Equal(t, "SMSF", summary["portfolio_id"])
	assert.Equal(t, true, summary["fully_reconciled"])
	assert.Empty(t, h.stderr.String())
	assert.Equal(t, -1, h.exit)
}

func TestRunCmd_FullReportToFile(t *testing.T) {
	h := newHarness(t)
	out := h.path("report.json")
	require.NoError(t, h.run(t, "run", "-i", h.path("run.json"), "--full", "-o", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var report map[string]any
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Contains(t, report, "reconciliation")
	assert.Contains(t, report, "pnl")
	assert.Contains(t, report, "lots")

	assert.Empty(t, h.stdout.String())
	assert.Contains(t, h.stderr.String(), "Fully reconciled")
	assert.Contains(t, h.stderr.String(), "Report written to")
}

func TestRunCmd_StrictExitsOnFailure(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.path("pms.json"), []byte(`{"positions": {"AAPL": {"quantity": 61}}}`), 0o644))

	require.NoError(t, h.run(t, "-q", "run", "-i", h.path("run.json"), "-e", h.path("pms.json"), "--format", "canonical", "--strict"))
	assert.Equal(t, exitUnreconciled, h.exit)
}

func TestRunCmd_NavexaExport(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.path("navexa.json"),
		[]byte(`{"data": {"holdings": [{"ticker": "AAPL", "exchange": "NASDAQ", "units": 60}]}}`), 0o644))

	require.NoError(t, h.run(t, "-q", "run", "-i", h.path("run.json"), "-e", h.path("navexa.json"), "--format", "navexa", "--strict"))
	assert.Equal(t, -1, h.exit)
}

func TestRunCmd_NavexaAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/portfolios/SMSF":
			_, _ = w.Write([]byte(`{"data": {"id": "SMSF", "holdings": [{"ticker": "AAPL", "units": 59}], "performance": {}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	h := newHarness(t)
	h.config = h.path("vire-recon.toml")
	require.NoError(t, os.WriteFile(h.config, []byte(fmt.Sprintf("[navexa]\nbase_url = %q\napi_key = \"k\"\n", srv.URL)), 0o644))

	require.NoError(t, h.run(t, "-q", "run", "-i", h.path("run.json"), "--navexa-portfolio", "SMSF", "--strict"))
	assert.Equal(t, exitUnreconciled, h.exit, "Navexa reports 59 units against 60 held")
}

func TestRunCmd_NavexaAPIRequiresKey(t *testing.T) {
	t.Setenv("NAVEXA_API_KEY", "")
	h := newHarness(t)
	err := h.run(t, "-q", "run", "-i", h.path("run.json"), "--navexa-portfolio", "SMSF")
	assert.ErrorContains(t, err, "navexa api key not configured")
}

func TestLotsCmd_FiltersBySymbol(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t, "-q", "lots", "-i", h.path("run.json"), "--symbol", "aapl"))

	var report lotsReport
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &report))
	require.Len(t, report.Lots["AAPL"], 1)
	require.Len(t, report.Disposals["AAPL"], 1)
	assert.Nil(t, report.TaxLots)

	h.stdout.Reset()
	err := h.run(t, "-q", "lots", "-i", h.path("run.json"), "--symbol", "MSFT")
	assert.ErrorContains(t, err, "no lots for symbol MSFT")
}

func TestQualityCmd_FailOnCritical(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.path("bad.json"), []byte(`{
		"portfolio_id": "P",
		"valuation_date": "2024-01-01",
		"transactions": [
			{"id": "s", "date": "2023-02-02", "type": "sell", "symbol": "X", "quantity": "2", "price": "10"}
		]
	}`), 0o644))

	require.NoError(t, h.run(t, "-q", "quality", "-i", h.path("bad.json")))
	assert.Contains(t, h.stdout.String(), `"critical_issues": 1`)

	err := h.run(t, "-q", "quality", "-i", h.path("bad.json"), "--fail-on-critical")
	assert.ErrorContains(t, err, "critical data quality issue")
}
