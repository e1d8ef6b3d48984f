// Package pms decodes PMS exports into expected values for reconciliation
package pms

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/vire-recon/internal/common"
	"github.com/bobmcallan/vire-recon/internal/interfaces"
	"github.com/bobmcallan/vire-recon/internal/models"
)

// Source kinds accepted by NewSource
const (
	KindCanonical = "canonical"
	KindMapping   = "mapping"
	KindNavexa    = "navexa"
)

// NewSource returns the decoder for kind. An empty kind picks the jsonpath
// mapping when one is configured, else the canonical format.
func NewSource(kind string, cfg common.PMSConfig) (interfaces.ExpectedValuesSource, error) {
	switch strings.ToLower(kind) {
	case "":
		if len(cfg.Metrics) > 0 || cfg.PositionsPath != "" {
			return NewMappingSource(cfg), nil
		}
		return NewCanonicalSource(), nil
	case KindCanonical:
		return NewCanonicalSource(), nil
	case KindMapping:
		return NewMappingSource(cfg), nil
	case KindNavexa:
		return NewNavexaSource(), nil
	}
	return nil, fmt.Errorf("unknown PMS source %q", kind)
}

// Load reads path and decodes it with src
func Load(path string, src interfaces.ExpectedValuesSource) (*models.ExpectedValues, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PMS export %s: %w", path, err)
	}
	exp, err := src.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s export %s: %w", src.Name(), path, err)
	}
	return exp, nil
}

// CanonicalSource decodes models.ExpectedValues JSON, either nested
// ({"metrics":{...},"positions":{...}}), flat, or as metric/value rows.
type CanonicalSource struct{}

// NewCanonicalSource creates a canonical decoder
func NewCanonicalSource() *CanonicalSource { return &CanonicalSource{} }

func (CanonicalSource) Name() string { return KindCanonical }

func (CanonicalSource) Parse(data []byte) (*models.ExpectedValues, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		return parseRows(data)
	}

	var exp models.ExpectedValues
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, err
	}
	return normalize(&exp), nil
}

// parseRows decodes [{"metric": "XIRR", "value": "12.5%"}, ...]. A row may
// carry a symbol to scope it to a position.
func parseRows(data []byte) (*models.ExpectedValues, error) {
	var rows []struct {
		Metric string `json:"metric"`
		Symbol string `json:"symbol"`
		Value  any    `json:"value"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}

	exp := models.NewExpectedValues()
	for i, r := range rows {
		name := metricKey(r.Metric)
		if name == "" || r.Value == nil {
			continue
		}
		v, err := ParseAmount(r.Value)
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i+1, r.Metric, err)
		}
		if r.Symbol != "" {
			exp.SetPosition(r.Symbol, name, v)
			continue
		}
		exp.Metrics[name] = v
	}
	return exp, nil
}

// normalize lower-cases metric names so "XIRR" and "Market Value" match
func normalize(exp *models.ExpectedValues) *models.ExpectedValues {
	out := models.NewExpectedValues()
	for k, v := range exp.Metrics {
		out.Metrics[metricKey(k)] = v
	}
	for sym, fields := range exp.Positions {
		for k, v := range fields {
			out.SetPosition(sym, metricKey(k), v)
		}
	}
	return out
}

func metricKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

var amountCleaner = strings.NewReplacer(",", "", "$", "", "€", "", "£", "", " ", "")

// ParseAmount converts a JSON scalar to a decimal. Strings may carry
// thousands separators and currency symbols; a trailing % divides by 100.
func ParseAmount(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), nil
	case json.Number:
		return decimal.NewFromString(t.String())
	case string:
		s := amountCleaner.Replace(strings.TrimSpace(t))
		percent := strings.HasSuffix(s, "%")
		s = strings.TrimSuffix(s, "%")
		if s == "" {
			return decimal.Zero, fmt.Errorf("empty amount")
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid amount %q", t)
		}
		if percent {
			d = d.Div(decimal.NewFromInt(100))
		}
		return d, nil
	}
	return decimal.Zero, fmt.Errorf("unsupported amount type %T", v)
}
