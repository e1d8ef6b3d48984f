package navexa

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/vire-recon/internal/common"
	"github.com/bobmcallan/vire-recon/internal/models"
)

func newTestServer(t *testing.T, routes map[string]string) (*httptest.Server, *[]string) {
	t.Helper()
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, ok := routes[r.URL.Path]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestFetch_AssemblesExpectedValues(t *testing.T) {
	srv, seen := newTestServer(t, map[string]string{
		"/v1/portfolios/42": `{"data": {"id": "42", "currency": "AUD", "total_value": 6600, "total_cost": 5406}}`,
		"/v1/portfolios/42/holdings": `{"data": [
			{"ticker": "aapl", "exchange": "NASDAQ", "units": 60, "market_value": 6600, "gain_loss": 1194}
		]}`,
		"/v1/portfolios/42/performance": `{"data": {"annualised_return": 16.4, "time_weighted_return": 17}}`,
	})

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(100))
	exp, err := client.Fetch(context.Background(), "42")
	require.NoError(t, err)

	assert.Equal(t, []string{"/v1/portfolios/42", "/v1/portfolios/42/holdings", "/v1/portfolios/42/performance"}, *seen)

	xirr, ok := exp.Metric(models.MetricXIRR)
	require.True(t, ok)
	assert.True(t, xirr.Equal(decimal.RequireFromString("0.164")), "got %s", xirr)
	mv, ok := exp.Metric(models.MetricMarketValue)
	require.True(t, ok)
	assert.True(t, mv.Equal(decimal.NewFromInt(6600)))

	qty, ok := exp.Position("AAPL", models.MetricQuantity)
	require.True(t, ok)
	assert.True(t, qty.Equal(decimal.NewFromInt(60)))
}

func TestFetch_SkipsCallsForEmbeddedBlocks(t *testing.T) {
	srv, seen := newTestServer(t, map[string]string{
		"/v1/portfolios/7": `{"data": {
			"id": "7",
			"holdings": [{"ticker": "BHP", "units": 10}],
			"performance": {"annualised_return": 5}
		}}`,
	})

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Fetch(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, []string{"/v1/portfolios/7"}, *seen)
}

func TestFetch_APIError(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{})

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Fetch(context.Background(), "missing")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "/v1/portfolios/missing", apiErr.Endpoint)
}

func TestNewClientFromConfig(t *testing.T) {
	cfg := common.NewDefaultConfig().Navexa
	cfg.APIKey = "k"
	cfg.Timeout = "2s"

	c := NewClientFromConfig(cfg, common.NewSilentLogger())
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, "k", c.apiKey)
	assert.Equal(t, "2s", c.httpClient.Timeout.String())
}
